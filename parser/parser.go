package parser

import "context"

// TriState is a formatting flag that may be explicitly on, explicitly off,
// or left unset (inherited from the style).
type TriState uint8

const (
	Unset TriState = iota
	Off
	On
)

// IsOn reports whether the flag is explicitly set.
func (t TriState) IsOn() bool { return t == On }

func (t TriState) String() string {
	switch t {
	case On:
		return "on"
	case Off:
		return "off"
	default:
		return "unset"
	}
}

// Run is a span of paragraph text sharing one formatting state.
type Run struct {
	Text      string   `json:"text" yaml:"text"`
	Bold      TriState `json:"bold" yaml:"bold"`
	Underline TriState `json:"underline" yaml:"underline"`
}

// Paragraph is one authored paragraph in document order.
type Paragraph struct {
	Text      string `json:"text" yaml:"text"`
	StyleName string `json:"style_name" yaml:"style_name"`
	Runs      []Run  `json:"runs,omitempty" yaml:"runs,omitempty"`
}

// Table exposes a table as its raw cell list. Merged cells appear once per
// grid position they cover.
type Table struct {
	Cells []string `json:"cells" yaml:"cells"`
}

// Properties is the metadata bundle of a document. Values are copied as
// authored; timestamps are not reformatted.
type Properties struct {
	Author         string `json:"author" yaml:"author"`
	LastModifiedBy string `json:"last_modified_by" yaml:"last_modified_by"`
	Created        string `json:"created" yaml:"created"`
	LastPrinted    string `json:"last_printed" yaml:"last_printed"`
	Revision       string `json:"revision" yaml:"revision"`
}

// Source is everything the section detector needs from a parsed document.
type Source interface {
	Paragraphs() []Paragraph
	Tables() []Table
	Properties() Properties
}

// Document is the Source produced by the built-in parsers.
type Document struct {
	paras  []Paragraph
	tables []Table
	props  Properties
	Method string // "native"
}

// NewDocument wraps already-extracted content as a Source.
func NewDocument(paras []Paragraph, tables []Table, props Properties) *Document {
	return &Document{paras: paras, tables: tables, props: props, Method: "native"}
}

func (d *Document) Paragraphs() []Paragraph { return d.paras }
func (d *Document) Tables() []Table         { return d.tables }
func (d *Document) Properties() Properties  { return d.props }

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*Document, error)
	SupportedFormats() []string
}
