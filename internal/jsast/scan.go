package jsast

// ScanWords returns the distinct identifier-like words of s in order of first
// appearance. Strings and comments are not skipped, so the result is a
// superset of the identifiers actually present.
func ScanWords(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for i := 0; i < len(s); {
		if !isWordStart(s[i]) {
			i++
			continue
		}
		n := wordLen(s[i:])
		w := s[i : i+n]
		if _, ok := seen[w]; !ok {
			seen[w] = struct{}{}
			out = append(out, w)
		}
		i += n
	}
	return out
}

// wordLen returns the length of the identifier-like prefix of s, counting
// backslash escapes and non-ASCII bytes as part of the word.
func wordLen(s string) int {
	n := 0
	for n < len(s) && (isWordPart(s[n]) || s[n] == '\\') {
		n++
	}
	return n
}

func isWordStart(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isWordPart(c byte) bool {
	return isWordStart(c) || (c >= '0' && c <= '9')
}
