package expr

import (
	"testing"

	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
)

func TestInterpolate(t *testing.T) {
	ctx := testContext()
	tests := []struct {
		src  string
		want string
	}{
		{"cpu {{data.cpu.percent}}%", "cpu 42%"},
		{"{{ data.cpu.name|upper }}", "X86"},
		{"{{data.missing}}!", "!"},
		{"{{data.missing|default:'n/a'}}", "n/a"},
		{"{{data.items|join:' & '}}", "a & b"},
		{"{{data.items|length}} item{{data.items|pluralize}}", "2 items"},
		{"{{nothing.here}}x", "x"},
		{"no placeholders", "no placeholders"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Interpolate(tt.src, ctx)
			if err != nil {
				t.Fatalf("Interpolate(%q): %v", tt.src, err)
			}
			if got != tt.want {
				t.Errorf("Interpolate(%q) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestInterpolateUnknownFilter(t *testing.T) {
	_, err := Evaluate(`"{{data.cpu.name|uper}}"`, testContext())
	if !terrors.Is(err, "UNDEF-0002") {
		t.Fatalf("err = %v, want UNDEF-0002", err)
	}
}
