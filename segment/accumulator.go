package segment

import (
	"strings"

	"github.com/brunobiangulo/docsect/parser"
)

// Accumulator folds classified paragraphs into a name -> text mapping.
//
// Consecutive headers merge into one name, so a title split over several
// paragraphs stays one section. A header that follows body text flushes
// that body under the pending name. Names repeat at most once in the
// result: a later section with the same name replaces the earlier one.
//
// An Accumulator belongs to one document and is not safe for concurrent use.
type Accumulator struct {
	pendingName string
	pendingBody []string

	sections map[string]string
	order    []string
}

func NewAccumulator() *Accumulator {
	return &Accumulator{sections: make(map[string]string)}
}

// Add consumes one paragraph that already passed the filter.
func (a *Accumulator) Add(text string, isHeader bool) {
	if !isHeader {
		a.pendingBody = append(a.pendingBody, text)
		return
	}

	name := headerName(text)
	if a.flush() {
		a.pendingName = name
		return
	}
	if a.pendingName == "" {
		a.pendingName = name
	} else {
		a.pendingName += " " + name
	}
}

// Flush commits any trailing body text. Call it once the stream ends.
func (a *Accumulator) Flush() {
	a.flush()
}

// flush writes the pending section if it has body text, resets the body,
// and reports whether anything was written.
func (a *Accumulator) flush() bool {
	body := strings.TrimSpace(strings.Join(a.pendingBody, " "))
	if body == "" {
		return false
	}
	if _, seen := a.sections[a.pendingName]; !seen {
		a.order = append(a.order, a.pendingName)
	}
	a.sections[a.pendingName] = body
	a.pendingBody = a.pendingBody[:0]
	return true
}

// Sections returns the mapping built so far. Map iteration order is
// meaningless; use Names for a stable order.
func (a *Accumulator) Sections() map[string]string {
	out := make(map[string]string, len(a.sections))
	for k, v := range a.sections {
		out[k] = v
	}
	return out
}

// Names lists section names in the order they were first flushed.
func (a *Accumulator) Names() []string {
	return append([]string(nil), a.order...)
}

func headerName(text string) string {
	return strings.ToUpper(strings.TrimSpace(text))
}

// Segment runs the whole pipeline over one document's paragraphs and
// returns the flushed accumulator.
func Segment(paras []parser.Paragraph, cls *Classifier, alphaOnly bool) *Accumulator {
	acc := NewAccumulator()
	for _, p := range paras {
		if ShouldSkip(p, alphaOnly) {
			continue
		}
		acc.Add(p.Text, cls.IsHeader(p))
	}
	acc.Flush()
	return acc
}
