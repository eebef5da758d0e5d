package chunking

import "strings"

// Normalize trims the text and collapses every whitespace run, newlines
// included, into a single space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// WordCount returns the number of whitespace delimited words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
