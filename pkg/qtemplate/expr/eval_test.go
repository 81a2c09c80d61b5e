package expr

import (
	"errors"
	"reflect"
	"testing"

	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
)

type point struct {
	X, Y int
}

func (p point) Sum() int { return p.X + p.Y }

type attrs map[string]any

func (a attrs) Attr(name string) (any, bool) {
	v, ok := a[name]
	return v, ok
}

func testContext() Context {
	return Context{
		"data": map[string]any{
			"cpu":   map[string]any{"percent": 42, "name": "x86"},
			"items": List{"a", "b"},
			"empty": "",
		},
		"self": attrs{"title": "Clock", "refresh": func() string { return "refreshed" }},
		"pt":   point{X: 1, Y: 2},
		"n":    7,
	}
}

func TestEvaluateLiterals(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{"", ""},
		{"   ", ""},
		{"true", true},
		{"Yes", true},
		{"FALSE", false},
		{"no", false},
		{"none", nil},
		{"null", nil},
		{"42", 42},
		{"-3", -3},
		{"3.5", 3.5},
		{"-0.25", -0.25},
		{`"hello"`, "hello"},
		{`'it''s'`, "it''s"},
		{`"a, b"`, "a, b"},
		{"Hello", "Hello"},
		{"Hello world", "Hello world"},
		{"unknown.path", "unknown.path"},
		{"[1, 2, 3]", List{1, 2, 3}},
		{"[]", List{}},
		{"()", Tuple{}},
		{"(1, 'a')", Tuple{1, "a"}},
		{"(5,)", Tuple{5}},
		{"[[1, 2], (3, 4)]", List{List{1, 2}, Tuple{3, 4}}},
		{`["a, b", 'c']`, List{"a, b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Evaluate(tt.src, nil)
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tt.src, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Evaluate(%q) = %#v, want %#v", tt.src, got, tt.want)
			}
		})
	}
}

func TestEvaluateOperators(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{"1 + 2", 3},
		{"1 + 2 | 1", 3},
		{"1 | 2 + 1", 4},
		{"6 & 3", 2},
		{"1.5 + 1", 2.5},
		{`"a" + "b"`, "ab"},
		{`"n=" + 4`, "n=4"},
		{"true & false", false},
		{"true | false", true},
		{"[1, 2] + [3]", List{1, 2, 3}},
		{"(1,) + [2]", Tuple{1, 2}},
		{"[1, 2, 3] & [2, 3, 4]", List{2, 3}},
		{"[1, 2] | [2, 3]", List{1, 2, 3}},
		{"none || 5", 5},
		{"0 || '' || 'x'", "x"},
		{"3 || missing.call", 3},
		{"data.empty || 'fallback'", "fallback"},
		{"data.cpu.percent + 8", 50},
	}

	ctx := testContext()
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Evaluate(tt.src, ctx)
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tt.src, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Evaluate(%q) = %#v, want %#v", tt.src, got, tt.want)
			}
		})
	}
}

func TestEvaluateShortCircuitSkipsErrors(t *testing.T) {
	ctx := testContext()
	if _, err := Evaluate("data.missing", ctx); err == nil {
		t.Fatal("expected error for missing segment")
	}
	got, err := Evaluate("1 || data.missing", ctx)
	if err != nil || got != 1 {
		t.Fatalf("got %v, %v; want 1 with right operand unevaluated", got, err)
	}
}

func TestEvaluateOperatorErrors(t *testing.T) {
	tests := []struct {
		src  string
		code string
	}{
		{"true + 1", "OP-0001"},
		{"[1] & 2", "OP-0001"},
		{"1 +", "OP-0002"},
		{"[1, 2", "PARSE-0009"},
		{`"open`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, err := Evaluate(tt.src, nil)
			if tt.code == "" {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if !terrors.Is(err, tt.code) {
				t.Fatalf("Evaluate(%q) error = %v, want %s", tt.src, err, tt.code)
			}
		})
	}
}

func TestEvaluatePaths(t *testing.T) {
	ctx := testContext()
	tests := []struct {
		src  string
		want any
	}{
		{"data.cpu.percent", 42},
		{"data.cpu.name", "x86"},
		{"data.items.1", "b"},
		{"self.title", "Clock"},
		{"pt.X", 1},
		{"pt.y", 2},
		{"n", 7},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := Evaluate(tt.src, ctx)
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", tt.src, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Evaluate(%q) = %#v, want %#v", tt.src, got, tt.want)
			}
		})
	}
}

func TestEvaluateMissingSegmentSuggests(t *testing.T) {
	_, err := Evaluate("data.cpu.percnt", testContext())
	var e *terrors.Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *errors.Error, got %v", err)
	}
	if e.Class != terrors.ClassUndefined {
		t.Errorf("class = %s, want undefined", e.Class)
	}
	if len(e.Hints) == 0 || e.Hints[0] != "Did you mean `percent`?" {
		t.Errorf("hints = %v", e.Hints)
	}
}

func TestEvaluateCall(t *testing.T) {
	ctx := testContext()

	got, err := Evaluate("self.refresh", ctx, WithCall())
	if err != nil || got != "refreshed" {
		t.Fatalf("WithCall: got %v, %v", got, err)
	}

	got, err = Evaluate("pt.Sum", ctx, WithCall())
	if err != nil || got != 3 {
		t.Fatalf("method call: got %v, %v", got, err)
	}

	got, err = Evaluate("self.refresh", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(func() string); !ok {
		t.Errorf("without WithCall got %T, want func", got)
	}

	failing := Context{"f": func() (any, error) { return nil, errors.New("boom") }}
	if _, err := Evaluate("f", failing, WithCall()); err == nil {
		t.Error("expected callable error to propagate")
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	ctx := testContext()
	for _, src := range []string{"[1, 2, 3]", "data.cpu.percent + 1", `"cpu {{data.cpu.percent}}%"`} {
		a, err := Evaluate(src, ctx)
		if err != nil {
			t.Fatal(err)
		}
		b, err := Evaluate(src, ctx)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Evaluate(%q) not idempotent: %#v vs %#v", src, a, b)
		}
	}
}

func TestEvaluateRegister(t *testing.T) {
	var tokens []string
	src := `"{{data.cpu.percent}}% of " + data.cpu.name + data.items || data`
	_, err := Evaluate(src, testContext(), WithRegister("data.", func(tok string) {
		tokens = append(tokens, tok)
	}))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"cpu.percent", "cpu.name", "items"}
	if !reflect.DeepEqual(tokens, want) {
		t.Errorf("tokens = %v, want %v", tokens, want)
	}
}

func TestContextWith(t *testing.T) {
	base := Context{"a": 1}
	sub := base.With("item", 2)
	if _, ok := base["item"]; ok {
		t.Error("With modified the receiver")
	}
	if sub["a"] != 1 || sub["item"] != 2 {
		t.Errorf("sub = %v", sub)
	}
}
