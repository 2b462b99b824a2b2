package parser

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TextParser handles plain text (.txt) files: one paragraph per line, no
// styles or run formatting.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	if content == "" {
		return NewDocument(nil, nil, Properties{}), nil
	}

	lines := strings.Split(content, "\n")
	paras := make([]Paragraph, 0, len(lines))
	for _, line := range lines {
		paras = append(paras, Paragraph{Text: line})
	}
	return NewDocument(paras, nil, Properties{}), nil
}
