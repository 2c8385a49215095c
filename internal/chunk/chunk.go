// Package chunk splits plain text into line-aligned pieces small enough for a
// single speech synthesis request.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the provider-safe chunk size in characters.
const DefaultMaxLength = 7000

// Separator joins the lines of a chunk. Joining all chunks with it reproduces
// the original text.
const Separator = "\n"

// Split divides text into chunks at line boundaries.
//
// The threshold is soft: before a line is appended, the pending chunk is
// emitted if its length already exceeds maxLength. A chunk can therefore end up
// longer than maxLength by at most its final line. Lengths are counted in runes
// of the Separator-joined lines.
//
// An empty string yields no chunks. A maxLength of zero or less falls back to
// DefaultMaxLength.
func Split(text string, maxLength int) []string {
	if text == "" {
		return nil
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	var (
		chunks  []string
		pending []string
		size    int // rune length of strings.Join(pending, Separator)
	)

	flush := func() {
		chunks = append(chunks, strings.Join(pending, Separator))
		pending = pending[:0]
		size = 0
	}

	for _, line := range strings.Split(text, Separator) {
		if size > maxLength {
			flush()
		}
		if len(pending) > 0 {
			size += utf8.RuneCountInString(Separator)
		}
		pending = append(pending, line)
		size += utf8.RuneCountInString(line)
	}
	if len(pending) > 0 {
		flush()
	}

	return chunks
}

// Join is the inverse of Split.
func Join(chunks []string) string {
	return strings.Join(chunks, Separator)
}
