package parser

import (
	"context"
	"strings"
	"testing"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`

const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles ` + wordNS + `>
  <w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>
  <w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/></w:style>
  <w:style w:type="paragraph" w:styleId="ListParagraph"><w:name w:val="List Paragraph"/></w:style>
  <w:style w:type="character" w:styleId="Strong"><w:name w:val="Strong"/></w:style>
</w:styles>`

func documentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`
}

func parseDocx(t *testing.T, body string, withStyles bool) *Document {
	t.Helper()
	files := map[string]string{
		"word/document.xml": documentXML(body),
		"docProps/core.xml": coreXML,
	}
	if withStyles {
		files["word/styles.xml"] = stylesXML
	}
	path := writeZip(t, "test.docx", files)
	doc, err := (&DOCXParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestDOCXParagraphsAndStyles(t *testing.T) {
	doc := parseDocx(t, `
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Overview</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Company </w:t></w:r><w:r><w:t>performed well.</w:t></w:r></w:p>
<w:p><w:pPr><w:pStyle w:val="Custom"/></w:pPr><w:r><w:t>x</w:t></w:r></w:p>
<w:p/>`, true)

	paras := doc.Paragraphs()
	if len(paras) != 4 {
		t.Fatalf("expected 4 paragraphs, got %d", len(paras))
	}

	tests := []struct {
		text, style string
	}{
		{"Overview", "Heading 1"},
		{"Company performed well.", "Normal"},
		{"x", "Custom"},
		{"", "Normal"},
	}
	for i, tt := range tests {
		if paras[i].Text != tt.text {
			t.Errorf("paragraph %d text = %q, want %q", i, paras[i].Text, tt.text)
		}
		if paras[i].StyleName != tt.style {
			t.Errorf("paragraph %d style = %q, want %q", i, paras[i].StyleName, tt.style)
		}
	}
	if len(paras[1].Runs) != 2 || paras[1].Runs[0].Text != "Company " {
		t.Errorf("unexpected runs: %+v", paras[1].Runs)
	}
}

func TestDOCXWithoutStylesPart(t *testing.T) {
	doc := parseDocx(t, `<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>A</w:t></w:r></w:p><w:p><w:r><w:t>B</w:t></w:r></w:p>`, false)
	paras := doc.Paragraphs()
	if paras[0].StyleName != "Heading1" {
		t.Errorf("expected style id fallback, got %q", paras[0].StyleName)
	}
	if paras[1].StyleName != "Normal" {
		t.Errorf("expected Normal default, got %q", paras[1].StyleName)
	}
}

func TestDOCXRunFormatting(t *testing.T) {
	doc := parseDocx(t, `
<w:p>
  <w:r><w:rPr><w:b/></w:rPr><w:t>bold</w:t></w:r>
  <w:r><w:rPr><w:b w:val="0"/><w:u w:val="single"/></w:rPr><w:t>under</w:t></w:r>
  <w:r><w:rPr><w:b w:val="false"/><w:u w:val="none"/></w:rPr><w:t>off</w:t></w:r>
  <w:r><w:t>plain</w:t></w:r>
</w:p>`, true)

	runs := doc.Paragraphs()[0].Runs
	if len(runs) != 4 {
		t.Fatalf("expected 4 runs, got %d", len(runs))
	}

	tests := []struct {
		text            string
		bold, underline TriState
	}{
		{"bold", On, Unset},
		{"under", Off, On},
		{"off", Off, Off},
		{"plain", Unset, Unset},
	}
	for i, tt := range tests {
		r := runs[i]
		if r.Text != tt.text || r.Bold != tt.bold || r.Underline != tt.underline {
			t.Errorf("run %d = {%q %v %v}, want {%q %v %v}",
				i, r.Text, r.Bold, r.Underline, tt.text, tt.bold, tt.underline)
		}
	}
}

func TestDOCXHyperlinkRunsNotDirect(t *testing.T) {
	doc := parseDocx(t, `
<w:p>
  <w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">See </w:t></w:r>
  <w:hyperlink r:id="rId5"><w:r><w:t>the site</w:t></w:r></w:hyperlink>
  <w:r><w:rPr><w:b/></w:rPr><w:t>.</w:t></w:r>
</w:p>`, true)

	p := doc.Paragraphs()[0]
	if p.Text != "See the site." {
		t.Errorf("text = %q, want hyperlink text included", p.Text)
	}
	if len(p.Runs) != 2 {
		t.Fatalf("expected 2 direct runs, got %d: %+v", len(p.Runs), p.Runs)
	}
	for _, r := range p.Runs {
		if r.Bold != On {
			t.Errorf("run %q not bold", r.Text)
		}
	}
}

func TestDOCXTabsAndBreaks(t *testing.T) {
	doc := parseDocx(t, `<w:p><w:r><w:t>A</w:t><w:tab/><w:t>B</w:t><w:br/><w:t>C</w:t></w:r></w:p>`, true)
	if got := doc.Paragraphs()[0].Text; got != "A\tB\nC" {
		t.Errorf("text = %q", got)
	}
}

func TestDOCXTableMergedCells(t *testing.T) {
	doc := parseDocx(t, `
<w:p><w:r><w:t>Before</w:t></w:r></w:p>
<w:tbl>
  <w:tblGrid><w:gridCol/><w:gridCol/><w:gridCol/></w:tblGrid>
  <w:tr>
    <w:tc><w:tcPr><w:gridSpan w:val="2"/></w:tcPr><w:p><w:r><w:t>Region</w:t></w:r></w:p></w:tc>
    <w:tc><w:tcPr><w:vMerge w:val="restart"/></w:tcPr><w:p><w:r><w:t>Total</w:t></w:r></w:p></w:tc>
  </w:tr>
  <w:tr>
    <w:tc><w:p><w:r><w:t>North</w:t></w:r></w:p></w:tc>
    <w:tc><w:p><w:r><w:t>Line 1</w:t></w:r></w:p><w:p><w:r><w:t>Line 2</w:t></w:r></w:p></w:tc>
    <w:tc><w:tcPr><w:vMerge/></w:tcPr><w:p/></w:tc>
  </w:tr>
</w:tbl>
<w:p><w:r><w:t>After</w:t></w:r></w:p>`, true)

	paras := doc.Paragraphs()
	if len(paras) != 2 || paras[0].Text != "Before" || paras[1].Text != "After" {
		t.Fatalf("table paragraphs must not appear in the body: %+v", paras)
	}

	tables := doc.Tables()
	if len(tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(tables))
	}
	want := []string{"Region", "Region", "Total", "North", "Line 1\nLine 2", "Total"}
	got := tables[0].Cells
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("cells = %q, want %q", got, want)
	}
}

func TestDOCXCoreProperties(t *testing.T) {
	doc := parseDocx(t, `<w:p/>`, true)
	props := doc.Properties()

	want := Properties{
		Author:         "J. Smith",
		LastModifiedBy: "A. Jones",
		Created:        "2019-03-01T10:00:00Z",
		LastPrinted:    "2019-03-02T08:30:00Z",
		Revision:       "7",
	}
	if props != want {
		t.Errorf("properties = %+v, want %+v", props, want)
	}
}

func TestDOCXErrors(t *testing.T) {
	p := &DOCXParser{}

	notZip := writeZip(t, "empty.docx", map[string]string{"other.xml": "<x/>"})
	if _, err := p.Parse(context.Background(), notZip); err == nil {
		t.Error("expected error for missing word/document.xml")
	}

	if _, err := p.Parse(context.Background(), "/does/not/exist.docx"); err == nil {
		t.Error("expected error for missing file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Parse(ctx, notZip); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestUIStyleName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"heading 1", "Heading 1"},
		{"heading 12", "Heading 12"},
		{"normal", "Normal"},
		{"title", "Title"},
		{"List Paragraph", "List Paragraph"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := uiStyleName(tt.in); got != tt.want {
			t.Errorf("uiStyleName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
