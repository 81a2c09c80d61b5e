package expr

import "strings"

// Dependencies returns the store tokens referenced by src: every identifier
// beginning with prefix, minus the prefix. Tokens are returned once each in
// order of first appearance. References inside quoted placeholders count.
func Dependencies(src, prefix string) []string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, ".") {
		prefix += "."
	}
	var tokens []string
	seen := map[string]bool{}
	for i := 0; i+len(prefix) <= len(src); {
		j := strings.Index(src[i:], prefix)
		if j < 0 {
			break
		}
		start := i + j
		i = start + len(prefix)
		if start > 0 && isIdentByte(src[start-1]) {
			continue
		}
		end := i
		for end < len(src) && isIdentByte(src[end]) {
			end++
		}
		token := strings.TrimRight(src[i:end], ".")
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
