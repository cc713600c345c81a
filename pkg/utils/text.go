// Package utils provides shared text and logging helpers.
package utils

import "unicode/utf8"

// Truncate shortens s to at most maxRunes runes and appends "..." when anything
// was cut. Multi-byte characters are never split. maxRunes <= 0 returns s as is.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
