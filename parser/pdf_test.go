package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFontWeight(t *testing.T) {
	tests := []struct {
		font string
		want TriState
	}{
		{"Helvetica-Bold", On},
		{"ABCDEF+Arial,Black", On},
		{"TimesNewRoman-SemiBoldItalic", On},
		{"Futura-Heavy", On},
		{"Helvetica", Off},
		{"", Off},
	}
	for _, tt := range tests {
		if got := fontWeight(tt.font); got != tt.want {
			t.Errorf("fontWeight(%q) = %v, want %v", tt.font, got, tt.want)
		}
	}
}

func TestPDFInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (&PDFParser{}).Parse(context.Background(), path); err == nil {
		t.Fatal("expected error for invalid PDF")
	}
}
