package helpers

import (
	"strings"
	"unicode/utf8"
)

// MaxTextRunes is the Bot API limit on the text of one message.
const MaxTextRunes = 4096

var defaultBreaks = []string{"\n\n", "\n"}

// SplitText cuts text into pieces of at most limit runes. Each cut is made at
// the last of breaks (tried in order, then blank lines and line ends) that
// fits; the break itself is dropped. A line longer than limit is cut mid-line.
func SplitText(text string, limit int, breaks ...string) []string {
	if limit <= 0 {
		limit = MaxTextRunes
	}
	breaks = append(breaks, defaultBreaks...)

	var parts []string
	for utf8.RuneCountInString(text) > limit {
		head := text[:runeOffset(text, limit)]
		cut, skip := len(head), 0
		for _, br := range breaks {
			if i := strings.LastIndex(head, br); i > 0 {
				cut, skip = i, len(br)
				break
			}
		}
		if part := strings.TrimRight(text[:cut], "\n"); part != "" {
			parts = append(parts, part)
		}
		text = strings.TrimLeft(text[cut+skip:], "\n")
	}
	if text != "" || len(parts) == 0 {
		parts = append(parts, text)
	}
	return parts
}

// runeOffset is the byte offset just past the first n runes of s.
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}
