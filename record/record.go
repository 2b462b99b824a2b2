// Package record assembles the per-document output: full text, table text,
// metadata and the detected sections.
package record

import (
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/docsect/parser"
	"github.com/brunobiangulo/docsect/segment"
)

// Record is everything extracted from one document.
type Record struct {
	Path     string `json:"path" yaml:"path"`
	Filename string `json:"filename" yaml:"filename"`
	Format   string `json:"format" yaml:"format"`

	FullText  string `json:"full_text" yaml:"full_text"`
	TableText string `json:"table_text" yaml:"table_text"`

	// Sections maps upper-cased section names to their body text.
	// SectionOrder lists the same names in first-flush order.
	Sections     map[string]string `json:"sections" yaml:"sections"`
	SectionOrder []string          `json:"section_order" yaml:"section_order"`

	Author         string `json:"author" yaml:"author"`
	LastModifiedBy string `json:"last_modified_by" yaml:"last_modified_by"`
	Created        string `json:"created" yaml:"created"`
	LastPrinted    string `json:"last_printed" yaml:"last_printed"`
	Revision       string `json:"revision" yaml:"revision"`
	TableCount     int    `json:"table_count" yaml:"table_count"`
}

// Options controls what Build extracts.
type Options struct {
	Heuristics segment.Config
	AlphaOnly  bool

	DocText    bool
	Sections   bool
	TableText  bool
	Properties bool
}

// DefaultOptions extracts everything with every heuristic enabled.
func DefaultOptions() Options {
	return Options{
		Heuristics: segment.DefaultConfig(),
		AlphaOnly:  true,
		DocText:    true,
		Sections:   true,
		TableText:  true,
		Properties: true,
	}
}

// Build assembles the record for one parsed document. It holds no state
// between calls.
func Build(path string, src parser.Source, opts Options) *Record {
	rec := &Record{
		Path:     path,
		Filename: filepath.Base(path),
		Format:   strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")),
		Sections: map[string]string{},
	}

	paras := src.Paragraphs()
	if opts.DocText {
		rec.FullText = FullText(paras)
	}
	if opts.Sections {
		acc := segment.Segment(paras, segment.NewClassifier(opts.Heuristics), opts.AlphaOnly)
		rec.Sections = acc.Sections()
		rec.SectionOrder = acc.Names()
	}

	tables := src.Tables()
	if opts.TableText {
		rec.TableText = TableText(tables)
	}
	if opts.Properties {
		props := src.Properties()
		rec.Author = props.Author
		rec.LastModifiedBy = props.LastModifiedBy
		rec.Created = props.Created
		rec.LastPrinted = props.LastPrinted
		rec.Revision = props.Revision
		rec.TableCount = len(tables)
	}
	return rec
}

// FullText joins the trimmed text of every non-blank paragraph with single
// spaces. Paragraphs without letters are kept here; only blank ones go.
func FullText(paras []parser.Paragraph) string {
	parts := make([]string, 0, len(paras))
	for _, p := range paras {
		if segment.ShouldSkip(p, false) {
			continue
		}
		parts = append(parts, strings.TrimSpace(p.Text))
	}
	return strings.Join(parts, " ")
}

// TableText joins the trimmed text of every raw cell of every table.
// Merged cells appear once per grid position, so their text repeats.
func TableText(tables []parser.Table) string {
	var parts []string
	for _, t := range tables {
		for _, c := range t.Cells {
			parts = append(parts, strings.TrimSpace(c))
		}
	}
	return strings.Join(parts, " ")
}
