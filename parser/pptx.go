package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

type PPTXParser struct{}

func (p *PPTXParser) SupportedFormats() []string { return []string{"pptx"} }

func (p *PPTXParser) Parse(ctx context.Context, path string) (*Document, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening PPTX: %w", err)
	}
	defer r.Close()

	fileIndex := indexZip(&r.Reader)

	// Collect slide files (ppt/slides/slide1.xml, slide2.xml, ...)
	slideFiles := make(map[int]*zip.File)
	for _, f := range r.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") && strings.HasSuffix(f.Name, ".xml") {
			num := extractSlideNumber(f.Name)
			if num > 0 {
				slideFiles[num] = f
			}
		}
	}
	if len(slideFiles) == 0 {
		return nil, fmt.Errorf("no slides found in PPTX")
	}

	// Sort by slide number
	nums := make([]int, 0, len(slideFiles))
	for n := range slideFiles {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var paras []Paragraph
	var tables []Table
	for _, num := range nums {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readZipFile(slideFiles[num])
		if err != nil {
			slog.Debug("pptx: reading slide", "slide", num, "error", err)
			continue
		}

		var slide pptxSlide
		if err := xml.Unmarshal(data, &slide); err != nil {
			return nil, fmt.Errorf("parsing slide %d: %w", num, err)
		}
		sp, tb := slide.CSld.SpTree.collect()
		paras = append(paras, sp...)
		tables = append(tables, tb...)
	}

	return NewDocument(paras, tables, parseCoreProps(fileIndex)), nil
}

// pptxSlide simplified XML structure
type pptxSlide struct {
	CSld struct {
		SpTree pptxSpTree `xml:"spTree"`
	} `xml:"cSld"`
}

type pptxSpTree struct {
	SPs    []pptxSP     `xml:"sp"`
	Frames []pptxFrame  `xml:"graphicFrame"`
	Groups []pptxSpTree `xml:"grpSp"`
}

type pptxSP struct {
	NvSpPr struct {
		NvPr struct {
			Ph *struct {
				Type string `xml:"type,attr"`
			} `xml:"ph"`
		} `xml:"nvPr"`
	} `xml:"nvSpPr"`
	TxBody *pptxTxBody `xml:"txBody"`
}

type pptxTxBody struct {
	Paras []pptxAPara `xml:"p"`
}

type pptxAPara struct {
	Runs []pptxARun `xml:"r"`
}

type pptxARun struct {
	Pr *struct {
		B *string `xml:"b,attr"`
		U *string `xml:"u,attr"`
	} `xml:"rPr"`
	Text string `xml:"t"`
}

type pptxFrame struct {
	Graphic struct {
		Data struct {
			Tbl *pptxTable `xml:"tbl"`
		} `xml:"graphicData"`
	} `xml:"graphic"`
}

type pptxTable struct {
	Rows []struct {
		Cells []pptxCell `xml:"tc"`
	} `xml:"tr"`
}

type pptxCell struct {
	HMerge string      `xml:"hMerge,attr"`
	VMerge string      `xml:"vMerge,attr"`
	TxBody *pptxTxBody `xml:"txBody"`
}

// placeholderStyle names paragraphs after the placeholder that holds them.
func placeholderStyle(sp pptxSP) string {
	ph := sp.NvSpPr.NvPr.Ph
	if ph == nil {
		return ""
	}
	switch ph.Type {
	case "title", "ctrTitle":
		return "Title"
	case "subTitle":
		return "Subtitle"
	default:
		return ""
	}
}

func (t pptxSpTree) collect() ([]Paragraph, []Table) {
	var paras []Paragraph
	for _, sp := range t.SPs {
		if sp.TxBody == nil {
			continue
		}
		style := placeholderStyle(sp)
		for _, p := range sp.TxBody.Paras {
			paras = append(paras, p.paragraph(style))
		}
	}

	var tables []Table
	for _, f := range t.Frames {
		if f.Graphic.Data.Tbl != nil {
			tables = append(tables, Table{Cells: f.Graphic.Data.Tbl.rawCells()})
		}
	}

	for _, g := range t.Groups {
		gp, gt := g.collect()
		paras = append(paras, gp...)
		tables = append(tables, gt...)
	}
	return paras, tables
}

func (p pptxAPara) paragraph(style string) Paragraph {
	para := Paragraph{StyleName: style}
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
		run := Run{Text: r.Text}
		if r.Pr != nil {
			run.Bold = attrState(r.Pr.B, false)
			run.Underline = attrState(r.Pr.U, true)
		}
		para.Runs = append(para.Runs, run)
	}
	para.Text = b.String()
	return para
}

// attrState reads DrawingML run attributes: b="1"/"0" and u="sng"/"none".
func attrState(v *string, underline bool) TriState {
	if v == nil {
		return Unset
	}
	switch *v {
	case "0", "false", "none":
		return Off
	case "1", "true":
		return On
	}
	if underline {
		return On
	}
	return Unset
}

func (p *pptxTxBody) text() string {
	if p == nil {
		return ""
	}
	lines := make([]string, len(p.Paras))
	for i, para := range p.Paras {
		var b strings.Builder
		for _, r := range para.Runs {
			b.WriteString(r.Text)
		}
		lines[i] = b.String()
	}
	return strings.Join(lines, "\n")
}

// rawCells lists one entry per tc element; merge continuations repeat the
// text of the cell they are merged into.
func (t pptxTable) rawCells() []string {
	var cells []string
	var prev []string
	for _, row := range t.Rows {
		cur := make([]string, 0, len(row.Cells))
		for i, c := range row.Cells {
			var text string
			switch {
			case c.HMerge == "1" && len(cur) > 0:
				text = cur[len(cur)-1]
			case c.VMerge == "1" && i < len(prev):
				text = prev[i]
			default:
				text = c.TxBody.text()
			}
			cur = append(cur, text)
		}
		cells = append(cells, cur...)
		prev = cur
	}
	return cells
}

func extractSlideNumber(name string) int {
	// Extract number from "ppt/slides/slide1.xml"
	name = strings.TrimPrefix(name, "ppt/slides/slide")
	name = strings.TrimSuffix(name, ".xml")
	var num int
	fmt.Sscanf(name, "%d", &num)
	return num
}
