// Package util provides common utility functions used across the analyzer.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// CleanHeader normalizes a CSV header cell: byte order mark, surrounding
// whitespace and quotes are removed.
func CleanHeader(s string) string {
	return TrimQuotes(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
}

// SafeFileName replaces path separators, spaces and other characters that
// are awkward in file names with underscores.
func SafeFileName(name string) string {
	if name == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, name)
}
