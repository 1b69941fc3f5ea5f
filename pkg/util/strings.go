package util

import "strings"

// NormalizeSymbol upper-cases and trims a symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
