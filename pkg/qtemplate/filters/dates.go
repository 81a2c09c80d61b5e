package filters

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/dustin/go-humanize"
	"github.com/goodsign/monday"
	"github.com/ncruces/go-strftime"
	"golang.org/x/text/language"
)

const defaultDateLayout = "2006-01-02 3:04 PM"

var (
	localeMu sync.RWMutex
	locale   monday.Locale = monday.LocaleEnUS
	tag                    = language.AmericanEnglish
)

// now is replaced in tests.
var now = time.Now

var mondayLocales = map[string]monday.Locale{
	"en":    monday.LocaleEnUS,
	"en_us": monday.LocaleEnUS,
	"en_gb": monday.LocaleEnGB,
	"de":    monday.LocaleDeDE,
	"de_de": monday.LocaleDeDE,
	"fr":    monday.LocaleFrFR,
	"fr_fr": monday.LocaleFrFR,
	"fr_ca": monday.LocaleFrCA,
	"es":    monday.LocaleEsES,
	"es_es": monday.LocaleEsES,
	"it":    monday.LocaleItIT,
	"it_it": monday.LocaleItIT,
	"pt":    monday.LocalePtPT,
	"pt_br": monday.LocalePtBR,
	"nl":    monday.LocaleNlNL,
	"ru":    monday.LocaleRuRU,
	"pl":    monday.LocalePlPL,
	"sv":    monday.LocaleSvSE,
	"ja":    monday.LocaleJaJP,
	"zh":    monday.LocaleZhCN,
}

// SetLocale selects the locale used for month and day names, number
// grouping and title casing. Unknown locales fall back to en_US.
func SetLocale(name string) error {
	norm := strings.ToLower(strings.ReplaceAll(name, "-", "_"))
	l, ok := mondayLocales[norm]
	if !ok {
		lang, _, _ := strings.Cut(norm, "_")
		l, ok = mondayLocales[lang]
	}
	t, err := language.Parse(strings.ReplaceAll(name, "_", "-"))
	localeMu.Lock()
	defer localeMu.Unlock()
	if !ok || err != nil {
		locale, tag = monday.LocaleEnUS, language.AmericanEnglish
		return fmt.Errorf("unsupported locale %q", name)
	}
	locale, tag = l, t
	return nil
}

func currentTag() language.Tag {
	localeMu.RLock()
	defer localeMu.RUnlock()
	return tag
}

func currentLocale() monday.Locale {
	localeMu.RLock()
	defer localeMu.RUnlock()
	return locale
}

// toTime accepts times, date strings and unix timestamps in seconds or
// milliseconds.
func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case *time.Time:
		return *t, nil
	case string:
		if parsed, err := dateparse.ParseLocal(t); err == nil {
			return parsed, nil
		}
	}
	return timestamp(v)
}

func timestamp(v any) (time.Time, error) {
	f, err := toFloat(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a date: %v", v)
	}
	if f > 9999999999 {
		f /= 1000
	}
	return time.Unix(int64(f), 0), nil
}

// formatTime renders t with a strftime pattern, using localized names.
func formatTime(t time.Time, args []string) string {
	pattern := arg(args, 0, "")
	if pattern == "" {
		return monday.Format(t, defaultDateLayout, currentLocale())
	}
	layout, err := strftime.Layout(pattern)
	if err != nil {
		return strftime.Format(pattern, t)
	}
	return monday.Format(t, layout, currentLocale())
}

func formatDate(value any, args ...string) (any, error) {
	if value == nil {
		return "", nil
	}
	t, err := toTime(value)
	if err != nil {
		return nil, err
	}
	return formatTime(t, args), nil
}

func formatTimestamp(value any, args ...string) (any, error) {
	if value == nil {
		return "", nil
	}
	t, err := timestamp(value)
	if err != nil {
		return nil, err
	}
	return formatTime(t, args), nil
}

func timeAgo(value any, args ...string) (any, error) {
	if !truthy(value) {
		return "", nil
	}
	t, err := toTime(value)
	if err != nil {
		return nil, err
	}
	return secondsToStr(now().Sub(t).Seconds(), args...)
}

func timestampAgo(value any, args ...string) (any, error) {
	if value == nil {
		return "", nil
	}
	t, err := timestamp(value)
	if err != nil {
		return nil, err
	}
	return secondsToStr(now().Sub(t).Seconds(), args...)
}

func naturalTime(value any, _ ...string) (any, error) {
	if value == nil {
		return "", nil
	}
	t, err := toTime(value)
	if err != nil {
		return nil, err
	}
	return humanize.RelTime(t, now(), "ago", "from now"), nil
}
