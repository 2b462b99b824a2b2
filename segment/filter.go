// Package segment recovers named sections from a stream of paragraphs that
// carry no reliable section markup.
//
// The pipeline is ShouldSkip -> Classifier -> Accumulator. Segment wires the
// three together for one document.
package segment

import (
	"strings"
	"unicode"

	"github.com/brunobiangulo/docsect/parser"
)

// ShouldSkip reports whether a paragraph carries no content worth
// classifying. Blank paragraphs are always skipped; with alphaOnly, so are
// paragraphs without a single letter (phone numbers, "_____" placeholders).
func ShouldSkip(p parser.Paragraph, alphaOnly bool) bool {
	if strings.TrimSpace(p.Text) == "" {
		return true
	}
	if alphaOnly && !strings.ContainsFunc(p.Text, unicode.IsLetter) {
		return true
	}
	return false
}
