package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrLegacyFormat is returned for pre-2007 binary Office files.
var ErrLegacyFormat = errors.New("legacy binary format")

// LegacyParser claims the binary Office formats so they are recorded as
// failed documents with a useful message instead of being skipped silently.
type LegacyParser struct{}

func (p *LegacyParser) SupportedFormats() []string { return []string{"doc", "xls", "ppt"} }

func (p *LegacyParser) Parse(ctx context.Context, path string) (*Document, error) {
	return nil, fmt.Errorf("%w: %s: convert to the matching OOXML format (docx, xlsx, pptx)",
		ErrLegacyFormat, filepath.Base(path))
}
