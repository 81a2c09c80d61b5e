package widget

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Dump writes an indented outline of the tree rooted at w, one widget per
// line: kind, #objectName, layout and the main state of known widget types.
func Dump(out io.Writer, w Widget) error {
	return dump(out, w, 0)
}

// DumpString is Dump into a string.
func DumpString(w Widget) string {
	var sb strings.Builder
	_ = Dump(&sb, w)
	return sb.String()
}

func dump(out io.Writer, w Widget, depth int) error {
	b := w.Core()
	parts := []string{b.kind}
	if b.objectName != "" {
		parts[0] += "#" + b.objectName
	}
	if b.layout != nil {
		m := b.layout.ContentsMargins()
		parts = append(parts, fmt.Sprintf("layout=%s margins=%d,%d,%d,%d spacing=%d",
			b.layout.Kind(), m[0], m[1], m[2], m[3], b.layout.Spacing()))
	}
	for _, name := range b.PropertyNames() {
		parts = append(parts, fmt.Sprintf("%s=%v", name, b.props[name]))
	}
	parts = append(parts, state(b.self)...)
	if !b.visible {
		parts = append(parts, "hidden")
	}
	if _, err := fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", depth), strings.Join(parts, " ")); err != nil {
		return err
	}
	for _, c := range b.children {
		if err := dump(out, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func state(w Widget) []string {
	switch v := w.(type) {
	case *Label:
		return []string{"text=" + strconv.Quote(v.text)}
	case *Button:
		s := []string{"text=" + strconv.Quote(v.text)}
		if v.checkable {
			s = append(s, "checked="+strconv.FormatBool(v.checked))
		}
		return s
	case *CheckBox:
		return []string{"text=" + strconv.Quote(v.text), "checked=" + strconv.FormatBool(v.checked)}
	case *LineEdit:
		return []string{"text=" + strconv.Quote(v.text)}
	case *ComboBox:
		return []string{fmt.Sprintf("items=%q", v.items), "current=" + strconv.Itoa(v.current)}
	case *ProgressBar:
		return []string{fmt.Sprintf("value=%d range=%d,%d", v.value, v.min, v.max)}
	case *SpinBox:
		return []string{fmt.Sprintf("value=%d range=%d,%d", v.value, v.min, v.max)}
	case *Image:
		return []string{"source=" + strconv.Quote(v.source)}
	case *LineChart:
		return []string{fmt.Sprintf("values=%d", len(v.values))}
	}
	return nil
}
