package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/docsect/parser"
)

type item struct {
	text   string
	header bool
}

func h(text string) item { return item{text, true} }
func b(text string) item { return item{text, false} }

func accumulate(items ...item) *Accumulator {
	acc := NewAccumulator()
	for _, it := range items {
		acc.Add(it.text, it.header)
	}
	acc.Flush()
	return acc
}

func TestAccumulatorBasic(t *testing.T) {
	acc := accumulate(h("INTRO"), b("hello"), b("world"), h("DETAILS"), b("foo"))
	assert.Equal(t, map[string]string{"INTRO": "hello world", "DETAILS": "foo"}, acc.Sections())
	assert.Equal(t, []string{"INTRO", "DETAILS"}, acc.Names())
}

func TestAccumulatorMultiLineHeader(t *testing.T) {
	acc := accumulate(h("PART"), h("ONE"), b("text"))
	assert.Equal(t, map[string]string{"PART ONE": "text"}, acc.Sections())
}

// Duplicate names keep only the last section; this is the intended
// behaviour, not an accident of map semantics.
func TestAccumulatorDuplicateNameLastWriteWins(t *testing.T) {
	acc := accumulate(h("INTRO"), b("first"), h("INTRO"), b("second"))
	assert.Equal(t, map[string]string{"INTRO": "second"}, acc.Sections())
	assert.Equal(t, []string{"INTRO"}, acc.Names())
}

func TestAccumulatorNormalisesNames(t *testing.T) {
	acc := accumulate(h("  Scope of Work "), b("details"))
	assert.Equal(t, map[string]string{"SCOPE OF WORK": "details"}, acc.Sections())
}

func TestAccumulatorBodyBeforeFirstHeader(t *testing.T) {
	acc := accumulate(b("preamble"), h("INTRO"), b("body"))
	assert.Equal(t, map[string]string{"": "preamble", "INTRO": "body"}, acc.Sections())
	assert.Equal(t, []string{"", "INTRO"}, acc.Names())
}

func TestAccumulatorTrailingHeaderDropped(t *testing.T) {
	acc := accumulate(h("INTRO"), b("body"), h("APPENDIX"))
	assert.Equal(t, map[string]string{"INTRO": "body"}, acc.Sections())
}

func TestAccumulatorHeadersOnly(t *testing.T) {
	acc := accumulate(h("ONE"), h("TWO"))
	assert.Empty(t, acc.Sections())
	assert.Empty(t, acc.Names())
}

func TestAccumulatorBodyTrimmedNotCollapsed(t *testing.T) {
	acc := accumulate(h("NOTES"), b("  first  "), b("second "))
	assert.Equal(t, "first   second", acc.Sections()["NOTES"])
}

func TestAccumulatorSectionsIsCopy(t *testing.T) {
	acc := accumulate(h("INTRO"), b("body"))
	got := acc.Sections()
	got["INTRO"] = "changed"
	assert.Equal(t, "body", acc.Sections()["INTRO"])
}

func TestSegmentPipeline(t *testing.T) {
	paras := []parser.Paragraph{
		{Text: "OVERVIEW", StyleName: "Heading1"},
		{Text: "", StyleName: "Normal"},
		{Text: "Company performed well.", StyleName: "Normal"},
		{Text: "555-0100", StyleName: "Normal"},
		{Text: "Revenue grew 10%.", StyleName: "Normal"},
		{Text: "A. Scope", StyleName: "Normal"},
		{Text: "o first bullet", StyleName: "Normal"},
		{Text: "II. Background", StyleName: "Normal"},
		{Text: "History of the firm.", StyleName: "Normal"},
	}

	acc := Segment(paras, NewClassifier(DefaultConfig()), true)
	assert.Equal(t, map[string]string{
		"OVERVIEW":       "Company performed well. Revenue grew 10%.",
		"A. SCOPE":       "o first bullet",
		"II. BACKGROUND": "History of the firm.",
	}, acc.Sections())
	assert.Equal(t, []string{"OVERVIEW", "A. SCOPE", "II. BACKGROUND"}, acc.Names())
}

func TestSegmentAlphaOnlyOff(t *testing.T) {
	paras := []parser.Paragraph{
		{Text: "Totals", StyleName: "Heading 1"},
		{Text: "12345", StyleName: "Normal"},
		{Text: "net of returns", StyleName: "Normal"},
	}
	cfg := DefaultConfig()
	cfg.UseCapitalization = false

	acc := Segment(paras, NewClassifier(cfg), false)
	assert.Equal(t, map[string]string{"TOTALS": "12345 net of returns"}, acc.Sections())
}

func TestSegmentIdempotent(t *testing.T) {
	paras := []parser.Paragraph{
		{Text: "PART", StyleName: "Normal"},
		{Text: "ONE", StyleName: "Normal"},
		{Text: "Body text here.", StyleName: "Normal", Runs: []parser.Run{plain("Body text here.")}},
		{Text: "Terms: net 30", StyleName: "Normal", Runs: []parser.Run{bold("Terms:"), plain(" net 30")}},
		{Text: "Payment is due monthly.", StyleName: "Normal"},
	}
	cls := NewClassifier(DefaultConfig())

	first := Segment(paras, cls, true)
	second := Segment(paras, cls, true)
	require.Equal(t, first.Sections(), second.Sections())
	require.Equal(t, first.Names(), second.Names())
	assert.Equal(t, map[string]string{
		"PART ONE":      "Body text here.",
		"TERMS: NET 30": "Payment is due monthly.",
	}, first.Sections())
}
