package expr

import (
	"reflect"
	"testing"
)

func TestDependencies(t *testing.T) {
	tests := []struct {
		src    string
		prefix string
		want   []string
	}{
		{"data.cpu.percent", "data.", []string{"cpu.percent"}},
		{"data.a + data.b.c + data.a", "", []string{"a", "b.c"}},
		{"data", "data.", nil},
		{"data.", "data.", nil},
		{"mydata.x + metadata.y", "data.", nil},
		{`"{{ data.clock.time|format_date:'%H:%M' }}"`, "data.", []string{"clock.time"}},
		{"[data.x, data.y]", "data", []string{"x", "y"}},
		{"state.a", "state.", []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got := Dependencies(tt.src, tt.prefix)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Dependencies(%q, %q) = %#v, want %#v", tt.src, tt.prefix, got, tt.want)
			}
		})
	}
}
