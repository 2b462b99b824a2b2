package parser

import (
	"fmt"
	"sort"
)

// Registry maps lower-case file extensions (without the dot) to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns a registry holding every built-in parser.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	// Register built-in parsers
	docx := &DOCXParser{}
	pptx := &PPTXParser{}
	xlsx := &XLSXParser{}
	pdf := &PDFParser{}
	text := &TextParser{}
	legacy := &LegacyParser{}

	for _, p := range []Parser{docx, pptx, xlsx, pdf, text, legacy} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[format]
	if !ok {
		return nil, fmt.Errorf("no parser for format: %s", format)
	}
	return p, nil
}

func (r *Registry) Register(format string, p Parser) {
	r.parsers[format] = p
}

// Formats lists the registered formats in sorted order.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for f := range r.parsers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
