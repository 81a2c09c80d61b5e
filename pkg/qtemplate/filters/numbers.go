package filters

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

type unit struct {
	div  float64
	name string
}

var (
	bytes1024 = []unit{{1 << 50, "PB"}, {1 << 40, "TB"}, {1 << 30, "GB"}, {1 << 20, "MB"}, {1 << 10, "KB"}, {1, "B"}}
	millis    = []unit{{604800000, "wks"}, {86400000, "days"}, {3600000, "hrs"}, {60000, "min"}, {1000, "sec"}, {1, "ms"}}
	millisAbb = []unit{{604800000, "w"}, {86400000, "d"}, {3600000, "h"}, {60000, "m"}, {1000, "s"}, {1, "ms"}}
)

var leadingInt = regexp.MustCompile(`^-*\d+`)

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

func precision(args []string, def int) (int, error) {
	p := arg(args, 0, strconv.Itoa(def))
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0, fmt.Errorf("invalid precision %q", p)
	}
	return n, nil
}

// valueToStr renders value in the largest unit it reaches.
func valueToStr(value float64, units []unit, places int, sep string) string {
	for _, u := range units {
		if value >= u.div {
			if places > 0 {
				return strconv.FormatFloat(value/u.div, 'f', places, 64) + sep + u.name
			}
			return strconv.Itoa(int(value/u.div)) + sep + u.name
		}
	}
	return "0" + sep + units[len(units)-1].name
}

func scaled(value any, args []string, factor float64, units []unit, def int, sep string) (any, error) {
	if value == nil {
		return "", nil
	}
	f, err := toFloat(value)
	if err != nil {
		return nil, err
	}
	p, err := precision(args, def)
	if err != nil {
		return nil, err
	}
	return valueToStr(f*factor, units, p, sep), nil
}

func bytesToStr(value any, args ...string) (any, error) {
	return scaled(value, args, 1, bytes1024, 0, " ")
}

func megabytesToStr(value any, args ...string) (any, error) {
	if value == nil {
		value = 0
	}
	return scaled(value, args, 1048576, bytes1024, 0, " ")
}

func millisecondsToStr(value any, args ...string) (any, error) {
	return scaled(value, args, 1, millis, 1, " ")
}

func secondsToStr(value any, args ...string) (any, error) {
	return scaled(value, args, 1000, millis, 1, " ")
}

func secondsToStrShort(value any, args ...string) (any, error) {
	return scaled(value, args, 1000, millisAbb, 0, "")
}

func celsiusToFahrenheit(value any, _ ...string) (any, error) {
	f, err := toFloat(value)
	if err != nil {
		return nil, err
	}
	return int(f*9/5 + 32), nil
}

func fahrenheitToCelsius(value any, _ ...string) (any, error) {
	f, err := toFloat(value)
	if err != nil {
		return nil, err
	}
	return int((f - 32) / 1.8), nil
}

var directions = []string{"North", "NE", "East", "SE", "South", "SW", "West", "NW", "North"}

func degreesToDirection(value any, _ ...string) (any, error) {
	if value == nil {
		return "NA", nil
	}
	f, err := toFloat(value)
	if err != nil {
		return nil, err
	}
	i := int(math.RoundToEven(math.Mod(math.Mod(f, 360)+360, 360) / 45))
	return directions[i], nil
}

func round(value any, args ...string) (any, error) {
	if value == nil {
		return "", nil
	}
	f, err := toFloat(value)
	if err != nil {
		return nil, err
	}
	places, err := precision(args, 0)
	if err != nil {
		return nil, err
	}
	if places == 0 {
		return int(math.RoundToEven(f)), nil
	}
	scale := math.Pow(10, float64(places))
	return math.RoundToEven(f*scale) / scale, nil
}

func toInteger(value any, args ...string) (any, error) {
	if value == nil {
		return 0, nil
	}
	s := fmt.Sprint(value)
	if f, ok := value.(float64); ok {
		s = strconv.FormatFloat(f, 'f', -1, 64)
	}
	m := leadingInt.FindString(s)
	if m == "" {
		return arg(args, 0, "na"), nil
	}
	n, err := strconv.Atoi(strings.TrimLeft(m, "-"))
	if err != nil {
		return arg(args, 0, "na"), nil
	}
	if strings.HasPrefix(m, "-") {
		n = -n
	}
	return n, nil
}

// toFraction renders value as the closest fraction with a denominator
// of at most one million.
func toFraction(value any, _ ...string) (any, error) {
	f, err := toFloat(value)
	if err != nil {
		return nil, err
	}
	if f == 0 {
		return "", nil
	}
	r := new(big.Rat)
	if r.SetFloat64(f) == nil {
		return nil, fmt.Errorf("cannot represent %v as a fraction", value)
	}
	r = limitDenominator(r, big.NewInt(1000000))
	if r.IsInt() {
		return r.Num().String(), nil
	}
	return r.Num().String() + "/" + r.Denom().String(), nil
}

func limitDenominator(r *big.Rat, limit *big.Int) *big.Rat {
	if r.Denom().Cmp(limit) <= 0 {
		return r
	}
	p0, q0 := big.NewInt(0), big.NewInt(1)
	p1, q1 := big.NewInt(1), big.NewInt(0)
	n, d := new(big.Int).Set(r.Num()), new(big.Int).Set(r.Denom())
	for {
		a := new(big.Int).Div(n, d)
		q2 := new(big.Int).Add(q0, new(big.Int).Mul(a, q1))
		if q2.Cmp(limit) > 0 {
			break
		}
		p0, q0, p1, q1 = p1, q1, new(big.Int).Add(p0, new(big.Int).Mul(a, p1)), q2
		n, d = d, new(big.Int).Sub(n, new(big.Int).Mul(a, d))
		if d.Sign() == 0 {
			break
		}
	}
	k := new(big.Int).Div(new(big.Int).Sub(limit, q0), q1)
	b1 := new(big.Rat).SetFrac(new(big.Int).Add(p0, new(big.Int).Mul(k, p1)), new(big.Int).Add(q0, new(big.Int).Mul(k, q1)))
	b2 := new(big.Rat).SetFrac(p1, q1)
	d1 := new(big.Rat).Abs(new(big.Rat).Sub(b2, r))
	d2 := new(big.Rat).Abs(new(big.Rat).Sub(b1, r))
	if d1.Cmp(d2) <= 0 {
		return b2
	}
	return b1
}

func intComma(value any, _ ...string) (any, error) {
	if value == nil {
		return "", nil
	}
	f, err := toFloat(value)
	if err != nil {
		return nil, err
	}
	p := message.NewPrinter(currentTag())
	if f == math.Trunc(f) {
		return p.Sprintf("%v", number.Decimal(int64(f))), nil
	}
	return p.Sprintf("%v", number.Decimal(f)), nil
}

func humanizeBytes(value any, _ ...string) (any, error) {
	if value == nil {
		return "", nil
	}
	f, err := toFloat(value)
	if err != nil {
		return nil, err
	}
	if f < 0 {
		return "-" + humanize.Bytes(uint64(-f)), nil
	}
	return humanize.Bytes(uint64(f)), nil
}
