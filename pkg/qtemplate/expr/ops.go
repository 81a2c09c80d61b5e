package expr

import (
	terrors "github.com/sambeau/pkmeter/pkg/qtemplate/errors"
)

func apply(op string, left, right any) (any, error) {
	switch op {
	case "+":
		if v, ok := add(left, right); ok {
			return v, nil
		}
	case "&":
		if v, ok := bitwise(left, right, true); ok {
			return v, nil
		}
	case "|":
		if v, ok := bitwise(left, right, false); ok {
			return v, nil
		}
	}
	return nil, terrors.New("OP-0001", map[string]any{
		"Op":    op,
		"Left":  TypeName(left),
		"Right": TypeName(right),
	})
}

func add(left, right any) (any, bool) {
	li, lInt := toInt(left)
	ri, rInt := toInt(right)
	if lInt && rInt {
		return int(li + ri), true
	}
	lf, lNum := ToFloat(left)
	rf, rNum := ToFloat(right)
	_, lStr := left.(string)
	_, rStr := right.(string)
	if lNum && rNum && !lStr && !rStr && !isBool(left) && !isBool(right) {
		return lf + rf, true
	}
	if lStr || rStr {
		return ToString(left) + ToString(right), true
	}
	ls, lSeq := Sequence(left)
	rs, rSeq := Sequence(right)
	if lSeq && rSeq {
		out := make([]any, 0, len(ls)+len(rs))
		out = append(append(out, ls...), rs...)
		return like(left, out), true
	}
	return nil, false
}

func bitwise(left, right any, and bool) (any, bool) {
	if lb, ok := left.(bool); ok {
		if rb, ok := right.(bool); ok {
			if and {
				return lb && rb, true
			}
			return lb || rb, true
		}
		return nil, false
	}
	if li, ok := toInt(left); ok {
		if ri, ok := toInt(right); ok {
			if and {
				return int(li & ri), true
			}
			return int(li | ri), true
		}
		return nil, false
	}
	ls, lSeq := Sequence(left)
	rs, rSeq := Sequence(right)
	if !lSeq || !rSeq {
		return nil, false
	}
	out := []any{}
	if and {
		for _, item := range ls {
			if contains(rs, item) && !contains(out, item) {
				out = append(out, item)
			}
		}
	} else {
		for _, item := range append(append([]any{}, ls...), rs...) {
			if !contains(out, item) {
				out = append(out, item)
			}
		}
	}
	return like(left, out), true
}

func isBool(v any) bool {
	_, ok := v.(bool)
	return ok
}

func contains(items []any, v any) bool {
	for _, item := range items {
		if Equal(item, v) {
			return true
		}
	}
	return false
}

// like returns items with the collection kind of model.
func like(model any, items []any) any {
	if _, ok := model.(Tuple); ok {
		return Tuple(items)
	}
	return List(items)
}
