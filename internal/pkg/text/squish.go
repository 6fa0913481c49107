package text

import "strings"

// Squish trims leading and trailing whitespace and collapses every run of
// internal whitespace to a single space.
func Squish(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
