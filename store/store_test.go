//go:build cgo && sqlite_fts5

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	s, err := New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func TestMigrationsApplied(t *testing.T) {
	s := newTestStore(t)
	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if want := migrations[len(migrations)-1].version; v != want {
		t.Fatalf("expected schema version %d, got %d", want, v)
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 2; i++ {
		s, err := New(dbPath)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		s.Close()
	}
}

func TestAddColumnIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	tx, err := s.DB().BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	if err := addColumn(ctx, tx, "documents", "error", "TEXT"); err != nil {
		t.Fatalf("re-adding existing column: %v", err)
	}
	if err := addColumn(ctx, tx, "documents", "reviewer", "TEXT"); err != nil {
		t.Fatalf("adding new column: %v", err)
	}
	var n int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info('documents') WHERE name = 'reviewer'").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected reviewer column, got %d", n)
	}
}

// ---------------------------------------------------------------------------
// Documents and sections
// ---------------------------------------------------------------------------

func sampleDoc(path string) Document {
	return Document{
		Path:           path,
		Filename:       filepath.Base(path),
		Format:         "docx",
		ContentHash:    "abc123",
		Status:         StatusReady,
		DocumentText:   "OVERVIEW Company performed well.",
		TableText:      "Region Sales",
		Author:         "J. Smith",
		LastModifiedBy: "A. Jones",
		Created:        "2019-03-01T10:00:00Z",
		Revision:       "7",
		NumTables:      1,
	}
}

func sampleSections() []Section {
	return []Section{
		{Name: "OVERVIEW", Text: "Company performed well."},
		{Name: "FINANCIAL RESULTS", Text: "Revenue grew ten percent in the northern region."},
	}
}

func TestSaveAndGetDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveDocument(ctx, sampleDoc("/tmp/annual.docx"), sampleSections())
	if err != nil {
		t.Fatalf("saving document: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero document id")
	}

	got, err := s.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("getting document by id: %v", err)
	}
	if got.Filename != "annual.docx" || got.Author != "J. Smith" || got.NumTables != 1 {
		t.Fatalf("unexpected document: %+v", got)
	}
	if got.DocumentText != "OVERVIEW Company performed well." {
		t.Fatalf("unexpected document text %q", got.DocumentText)
	}
	if got.Error != "" {
		t.Fatalf("expected no error, got %q", got.Error)
	}

	byPath, err := s.GetDocumentByPath(ctx, "/tmp/annual.docx")
	if err != nil {
		t.Fatalf("getting document by path: %v", err)
	}
	if byPath.ID != id {
		t.Fatalf("expected id %d, got %d", id, byPath.ID)
	}

	secs, err := s.GetSections(ctx, id)
	if err != nil {
		t.Fatalf("getting sections: %v", err)
	}
	if len(secs) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(secs))
	}
	if secs[0].Name != "OVERVIEW" || secs[0].Position != 0 || secs[1].Position != 1 {
		t.Fatalf("unexpected section order: %+v", secs)
	}
	if secs[0].Filename != "annual.docx" {
		t.Fatalf("expected section filename annual.docx, got %q", secs[0].Filename)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocument(context.Background(), 999)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSaveDocumentReplacesSections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := s.SaveDocument(ctx, sampleDoc("/tmp/annual.docx"), sampleSections())
	if err != nil {
		t.Fatalf("first save: %v", err)
	}

	doc := sampleDoc("/tmp/annual.docx")
	doc.ContentHash = "def456"
	id2, err := s.SaveDocument(ctx, doc, []Section{{Name: "SUMMARY", Text: "Short."}})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same id on re-save, got %d and %d", id1, id2)
	}

	secs, err := s.GetSections(ctx, id1)
	if err != nil {
		t.Fatalf("getting sections: %v", err)
	}
	if len(secs) != 1 || secs[0].Name != "SUMMARY" {
		t.Fatalf("expected only SUMMARY, got %+v", secs)
	}

	got, _ := s.GetDocument(ctx, id1)
	if got.ContentHash != "def456" {
		t.Fatalf("expected updated hash, got %q", got.ContentHash)
	}
}

func TestMarkFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDoc("/tmp/broken.docx")
	id, err := s.SaveDocument(ctx, doc, sampleSections())
	if err != nil {
		t.Fatalf("saving: %v", err)
	}

	if _, err := s.MarkFailed(ctx, doc, errors.New("zip: not a valid zip file")); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	got, err := s.GetDocument(ctx, id)
	if err != nil {
		t.Fatalf("getting document: %v", err)
	}
	if got.Status != StatusError {
		t.Fatalf("expected status %q, got %q", StatusError, got.Status)
	}
	if got.Error != "zip: not a valid zip file" {
		t.Fatalf("unexpected error message %q", got.Error)
	}

	secs, _ := s.GetSections(ctx, id)
	if len(secs) != 0 {
		t.Fatalf("expected sections cleared, got %d", len(secs))
	}
}

func TestListDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"/tmp/b.docx", "/tmp/a.docx"} {
		if _, err := s.SaveDocument(ctx, sampleDoc(p), nil); err != nil {
			t.Fatalf("saving %s: %v", p, err)
		}
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Path != "/tmp/a.docx" {
		t.Fatalf("expected path order, got %s first", docs[0].Path)
	}
	if docs[0].DocumentText != "" {
		t.Fatal("expected listing without document text")
	}
}

func TestSectionsByFilename(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveDocument(ctx, sampleDoc("/x/annual.docx"), sampleSections()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveDocument(ctx, sampleDoc("/y/annual.docx"), sampleSections()[:1]); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveDocument(ctx, sampleDoc("/y/other.docx"), sampleSections()); err != nil {
		t.Fatal(err)
	}

	secs, err := s.GetSectionsByFilename(ctx, "annual.docx")
	if err != nil {
		t.Fatalf("getting sections: %v", err)
	}
	if len(secs) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(secs))
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveDocument(ctx, sampleDoc("/tmp/annual.docx"), sampleSections())
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteDocument(ctx, id); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	if _, err := s.GetDocument(ctx, id); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected document gone, got %v", err)
	}

	var n int
	s.DB().QueryRow("SELECT COUNT(*) FROM sections WHERE document_id = ?", id).Scan(&n)
	if n != 0 {
		t.Fatalf("expected sections deleted, got %d", n)
	}

	if err := s.DeleteDocument(ctx, id); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows deleting twice, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Full-text search
// ---------------------------------------------------------------------------

func TestSearchSections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveDocument(ctx, sampleDoc("/tmp/annual.docx"), sampleSections()); err != nil {
		t.Fatal(err)
	}

	results, err := s.SearchSections(ctx, "revenue", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Name != "FINANCIAL RESULTS" || results[0].Path != "/tmp/annual.docx" {
		t.Fatalf("unexpected result: %+v", results[0])
	}

	// porter stemming
	results, err = s.SearchSections(ctx, "regions", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected stemmed match, got %d", len(results))
	}
}

func TestSearchSectionsAfterReplace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleDoc("/tmp/annual.docx")
	if _, err := s.SaveDocument(ctx, doc, sampleSections()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveDocument(ctx, doc, []Section{{Name: "SUMMARY", Text: "Nothing here."}}); err != nil {
		t.Fatal(err)
	}

	results, err := s.SearchSections(ctx, "revenue", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected stale sections removed from index, got %d", len(results))
	}
}

func TestSearchSectionsQuotesInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveDocument(ctx, sampleDoc("/tmp/annual.docx"), sampleSections()); err != nil {
		t.Fatal(err)
	}

	// Bare FTS5 operators would be a syntax error if passed through.
	if _, err := s.SearchSections(ctx, `revenue NOT OR`, 10); err != nil {
		t.Fatalf("expected quoted query to succeed, got %v", err)
	}
	if _, err := s.SearchSections(ctx, "   ", 10); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestFTSQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"revenue", `"revenue"`},
		{"  annual   report ", `"annual" "report"`},
		{`say "hi"`, `"say" "hi"`},
		{`""`, ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ftsQuery(tt.in); got != tt.want {
			t.Errorf("ftsQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
