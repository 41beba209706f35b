package blockstore

import "strings"

// ASCII whitespace stripped from both ends of a blocklist line.
const asciiSpace = " \t\n\v\f\r"

// normalizeEntry turns a raw blocklist line into the form stored in the set.
// An empty result means the line carries no entry.
func normalizeEntry(line string) string {
	return lowerASCII(strings.Trim(line, asciiSpace))
}

// lowerASCII folds A-Z to a-z and leaves every other byte alone. The input is
// returned as-is if there's nothing to fold.
func lowerASCII(s string) string {
	i := 0
	for ; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'Z' {
			break
		}
	}
	if i == len(s) {
		return s
	}
	b := []byte(s)
	for ; i < len(b); i++ {
		if c := b[i]; c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
