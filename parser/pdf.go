package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser turns each text row of a page into a paragraph. Consecutive
// glyphs sharing a font become one run; bold is inferred from the font name.
type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	var paras []Paragraph

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		rows, err := pageRows(page)
		if err != nil {
			// Skip pages that fail to extract
			slog.Debug("pdf: skipping page", "page", i, "error", err)
			continue
		}
		paras = append(paras, rows...)
	}

	return NewDocument(paras, nil, pdfProperties(reader)), nil
}

func pageRows(page pdf.Page) (paras []Paragraph, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extracting rows: %v", r)
		}
	}()

	rows, err := page.GetTextByRow()
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		para := Paragraph{}
		var b strings.Builder
		font := ""
		for _, t := range row.Content {
			b.WriteString(t.S)
			if len(para.Runs) > 0 && t.Font == font {
				para.Runs[len(para.Runs)-1].Text += t.S
				continue
			}
			font = t.Font
			para.Runs = append(para.Runs, Run{Text: t.S, Bold: fontWeight(t.Font)})
		}
		para.Text = b.String()
		if strings.TrimSpace(para.Text) == "" {
			continue
		}
		paras = append(paras, para)
	}
	return paras, nil
}

// fontWeight guesses boldness from PostScript font names like
// "Helvetica-Bold" or "ABCDEF+Arial,Black".
func fontWeight(font string) TriState {
	lower := strings.ToLower(font)
	for _, w := range []string{"bold", "black", "heavy", "semibold", "demi"} {
		if strings.Contains(lower, w) {
			return On
		}
	}
	return Off
}

// pdfProperties reads the document Info dictionary. Broken trailers only
// lose metadata, never the text.
func pdfProperties(r *pdf.Reader) (props Properties) {
	defer func() {
		if recover() != nil {
			props = Properties{}
		}
	}()

	trailer := r.Trailer()
	if trailer.IsNull() {
		return props
	}
	info := trailer.Key("Info")
	if info.IsNull() {
		return props
	}

	text := func(key string) string {
		v := info.Key(key)
		if v.IsNull() {
			return ""
		}
		return strings.TrimSpace(v.Text())
	}
	props.Author = text("Author")
	props.Created = text("CreationDate")
	return props
}
