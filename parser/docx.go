package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"strings"
)

type DOCXParser struct{}

func (p *DOCXParser) SupportedFormats() []string { return []string{"docx"} }

func (p *DOCXParser) Parse(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	fileIndex := indexZip(&r.Reader)

	// Find word/document.xml
	docFile := fileIndex["word/document.xml"]
	if docFile == nil {
		return nil, fmt.Errorf("word/document.xml not found in DOCX")
	}
	data, err := readZipFile(docFile)
	if err != nil {
		return nil, fmt.Errorf("reading document.xml: %w", err)
	}

	// Styles are optional; without them style IDs stand in for names.
	styles := parseDocxStyles(fileIndex)

	paras, tables, err := parseDocxXML(data, styles)
	if err != nil {
		return nil, fmt.Errorf("parsing DOCX XML: %w", err)
	}

	props := parseCoreProps(fileIndex)

	slog.Debug("docx: parsed", "path", path, "paragraphs", len(paras), "tables", len(tables))
	return NewDocument(paras, tables, props), nil
}

// ---------------------------------------------------------------------------
// Styles
// ---------------------------------------------------------------------------

type docxStyles struct {
	Styles []docxStyle `xml:"style"`
}

type docxStyle struct {
	Type    string `xml:"type,attr"`
	StyleID string `xml:"styleId,attr"`
	Default string `xml:"default,attr"`
	Name    struct {
		Val string `xml:"val,attr"`
	} `xml:"name"`
}

// styleNames maps paragraph style IDs to their display names.
type styleNames struct {
	byID        map[string]string
	defaultName string
}

func (s styleNames) resolve(id string) string {
	if id == "" {
		return s.defaultName
	}
	if name, ok := s.byID[id]; ok {
		return name
	}
	return id
}

func parseDocxStyles(fileIndex map[string]*zip.File) styleNames {
	names := styleNames{byID: map[string]string{}, defaultName: "Normal"}

	f := fileIndex["word/styles.xml"]
	if f == nil {
		return names
	}
	data, err := readZipFile(f)
	if err != nil {
		slog.Debug("docx: reading styles.xml", "error", err)
		return names
	}
	var doc docxStyles
	if err := xml.Unmarshal(data, &doc); err != nil {
		slog.Debug("docx: parsing styles.xml", "error", err)
		return names
	}

	for _, st := range doc.Styles {
		if st.Type != "" && st.Type != "paragraph" {
			continue
		}
		name := uiStyleName(st.Name.Val)
		if name == "" {
			name = st.StyleID
		}
		names.byID[st.StyleID] = name
		if st.Default == "1" || st.Default == "true" {
			names.defaultName = name
		}
	}
	return names
}

// uiStyleName converts the lower-case names Word stores for built-in styles
// ("heading 1") into the names shown to users ("Heading 1").
func uiStyleName(name string) string {
	switch name {
	case "normal", "title", "subtitle", "caption", "quote":
		return strings.ToUpper(name[:1]) + name[1:]
	}
	if rest, ok := strings.CutPrefix(name, "heading "); ok {
		return "Heading " + rest
	}
	return name
}

// ---------------------------------------------------------------------------
// Document body
// ---------------------------------------------------------------------------

// DOCX XML structures (simplified)
type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    docxBody `xml:"body"`
}

type docxBody struct {
	Paras  []docxPara  `xml:"p"`
	Tables []docxTable `xml:"tbl"`
}

// docxPara keeps its runs in document order. Runs nested in hyperlinks
// contribute to the text but are not direct runs of the paragraph.
type docxPara struct {
	StyleID string
	runs    []docxRun
}

type docxRun struct {
	Text      string
	Bold      TriState
	Underline TriState
	direct    bool
}

type docxRunPr struct {
	B *docxOnOff `xml:"b"`
	U *docxOnOff `xml:"u"`
}

type docxOnOff struct {
	Val *string `xml:"val,attr"`
}

func (p *docxPara) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	depth := 0 // >0 while inside a hyperlink
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				var ppr struct {
					PStyle *struct {
						Val string `xml:"val,attr"`
					} `xml:"pStyle"`
				}
				if err := d.DecodeElement(&ppr, &t); err != nil {
					return err
				}
				if ppr.PStyle != nil {
					p.StyleID = ppr.PStyle.Val
				}
			case "hyperlink":
				depth++
			case "r":
				run, err := decodeDocxRun(d, t)
				if err != nil {
					return err
				}
				run.direct = depth == 0
				p.runs = append(p.runs, run)
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			if t.Name.Local == "hyperlink" {
				depth--
				continue
			}
			if t.Name == start.Name {
				return nil
			}
		}
	}
}

func decodeDocxRun(d *xml.Decoder, start xml.StartElement) (docxRun, error) {
	var run docxRun
	var b strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return run, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "rPr":
				var rpr docxRunPr
				if err := d.DecodeElement(&rpr, &t); err != nil {
					return run, err
				}
				run.Bold = onOffState(rpr.B)
				run.Underline = underlineState(rpr.U)
			case "t":
				var s string
				if err := d.DecodeElement(&s, &t); err != nil {
					return run, err
				}
				b.WriteString(s)
			case "tab":
				b.WriteString("\t")
				if err := d.Skip(); err != nil {
					return run, err
				}
			case "br", "cr":
				b.WriteString("\n")
				if err := d.Skip(); err != nil {
					return run, err
				}
			default:
				if err := d.Skip(); err != nil {
					return run, err
				}
			}
		case xml.EndElement:
			if t.Name == start.Name {
				run.Text = b.String()
				return run, nil
			}
		}
	}
}

// onOffState reads a w:ST_OnOff toggle such as <w:b/> or <w:b w:val="0"/>.
func onOffState(v *docxOnOff) TriState {
	if v == nil {
		return Unset
	}
	if v.Val == nil {
		return On
	}
	switch strings.ToLower(*v.Val) {
	case "0", "false", "off":
		return Off
	default:
		return On
	}
}

// underlineState treats every underline style except "none" as underlined.
func underlineState(v *docxOnOff) TriState {
	if v == nil {
		return Unset
	}
	if v.Val != nil && strings.EqualFold(*v.Val, "none") {
		return Off
	}
	return On
}

func (p docxPara) text() string {
	var b strings.Builder
	for _, r := range p.runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

func (p docxPara) paragraph(styles styleNames) Paragraph {
	para := Paragraph{
		Text:      p.text(),
		StyleName: styles.resolve(p.StyleID),
	}
	for _, r := range p.runs {
		if !r.direct {
			continue
		}
		para.Runs = append(para.Runs, Run{Text: r.Text, Bold: r.Bold, Underline: r.Underline})
	}
	return para
}

type docxTable struct {
	Grid struct {
		Cols []struct{} `xml:"gridCol"`
	} `xml:"tblGrid"`
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Pr *struct {
		GridSpan *struct {
			Val int `xml:"val,attr"`
		} `xml:"gridSpan"`
		VMerge *struct {
			Val string `xml:"val,attr"`
		} `xml:"vMerge"`
	} `xml:"tcPr"`
	Paras []docxPara `xml:"p"`
}

func (c docxCell) span() int {
	if c.Pr == nil || c.Pr.GridSpan == nil || c.Pr.GridSpan.Val < 1 {
		return 1
	}
	return c.Pr.GridSpan.Val
}

// continues reports whether the cell is the lower part of a vertical merge.
func (c docxCell) continues() bool {
	return c.Pr != nil && c.Pr.VMerge != nil && c.Pr.VMerge.Val != "restart"
}

func (c docxCell) text() string {
	parts := make([]string, len(c.Paras))
	for i, p := range c.Paras {
		parts[i] = p.text()
	}
	return strings.Join(parts, "\n")
}

// rawCells flattens the table into one entry per grid position. A cell
// spanning columns repeats its text; a vertically merged continuation
// repeats the text of the cell above.
func (t docxTable) rawCells() []string {
	cols := len(t.Grid.Cols)
	if cols == 0 {
		for _, row := range t.Rows {
			n := 0
			for _, c := range row.Cells {
				n += c.span()
			}
			cols = max(cols, n)
		}
	}

	var cells []string
	for _, row := range t.Rows {
		for _, c := range row.Cells {
			for i := 0; i < c.span(); i++ {
				switch {
				case c.continues() && len(cells) >= cols && cols > 0:
					cells = append(cells, cells[len(cells)-cols])
				case i > 0:
					cells = append(cells, cells[len(cells)-1])
				default:
					cells = append(cells, c.text())
				}
			}
		}
	}
	return cells
}

func parseDocxXML(data []byte, styles styleNames) ([]Paragraph, []Table, error) {
	var doc docxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, err
	}

	paras := make([]Paragraph, 0, len(doc.Body.Paras))
	for _, p := range doc.Body.Paras {
		paras = append(paras, p.paragraph(styles))
	}

	tables := make([]Table, 0, len(doc.Body.Tables))
	for _, tbl := range doc.Body.Tables {
		tables = append(tables, Table{Cells: tbl.rawCells()})
	}
	return paras, tables, nil
}
