package parser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"
)

// XLSXParser exposes each worksheet as one table. Workbooks carry no
// paragraphs, so their records hold table text and properties only.
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx", "xlsm"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var tables []Table
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			slog.Debug("xlsx: reading sheet", "sheet", sheet, "error", err)
			continue
		}
		if len(rows) == 0 {
			continue
		}

		var cells []string
		for _, row := range rows {
			cells = append(cells, row...)
		}
		tables = append(tables, Table{Cells: cells})
	}

	var props Properties
	if dp, err := f.GetDocProps(); err == nil && dp != nil {
		props = Properties{
			Author:         dp.Creator,
			LastModifiedBy: dp.LastModifiedBy,
			Created:        dp.Created,
			Revision:       dp.Revision,
		}
	}

	return NewDocument(nil, tables, props), nil
}
