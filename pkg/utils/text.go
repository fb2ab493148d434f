// Package utils provides shared helpers for files, text, vectors and logging.
package utils

import "unicode/utf8"

// Truncate returns s cut to maxLen characters with "..." appended when it was longer.
// A maxLen of 0 or less returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
