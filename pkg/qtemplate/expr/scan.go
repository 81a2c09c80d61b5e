package expr

import "strings"

// closing returns the index of the bracket closing the one at s[open],
// skipping quoted text and nested brackets. It returns -1 when unbalanced.
func closing(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
			if depth == 0 {
				return i
			}
			if depth < 0 {
				return -1
			}
		}
	}
	return -1
}

// splitTop splits s on sep wherever it is outside quotes and brackets.
func splitTop(s string, sep byte) ([]string, bool) {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		default:
			if c == sep && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if quote != 0 || depth != 0 {
		return nil, false
	}
	return append(parts, s[start:]), true
}

// operators in longest-match-first order.
var operators = []string{"||", "&", "|", "+"}

// splitOperators breaks s into operands and the binary operators between them.
// Operators inside quotes or brackets are ignored.
func splitOperators(s string) (operands, ops []string, ok bool) {
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
			continue
		case '[', '(', '{':
			depth++
			continue
		case ']', ')', '}':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		for _, op := range operators {
			if strings.HasPrefix(s[i:], op) {
				operands = append(operands, s[start:i])
				ops = append(ops, op)
				i += len(op) - 1
				start = i + 1
				break
			}
		}
	}
	if quote != 0 || depth != 0 {
		return nil, nil, false
	}
	return append(operands, s[start:]), ops, true
}

// unquote strips matching outer quotes and resolves backslash escapes.
func unquote(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	q := s[0]
	if (q != '"' && q != '\'') || s[len(s)-1] != q {
		return "", false
	}
	body := s[1 : len(s)-1]
	if !strings.ContainsRune(body, '\\') {
		return body, true
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(body[i])
			}
			continue
		}
		b.WriteByte(c)
	}
	return b.String(), true
}
