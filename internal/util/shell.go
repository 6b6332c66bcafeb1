package util

import "strings"

// ShellQuote single-quotes s for a remote shell command line. Embedded
// single quotes become '\''.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
