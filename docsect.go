// Package docsect splits word-processing documents without reliable section
// markup into named sections and stores the results in SQLite.
package docsect

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brunobiangulo/docsect/parser"
	"github.com/brunobiangulo/docsect/record"
	"github.com/brunobiangulo/docsect/segment"
	"github.com/brunobiangulo/docsect/store"
)

// Engine is the main entry point for section extraction.
type Engine interface {
	// Process parses a document and builds its record without storing it.
	Process(ctx context.Context, path string) (*record.Record, error)

	// Inspect is Process plus a per-paragraph classification trace.
	Inspect(ctx context.Context, path string) (*Inspection, error)

	// Ingest parses, segments and stores a document.
	// Returns document ID. Skips if content hash unchanged.
	Ingest(ctx context.Context, path string, opts ...IngestOption) (int64, error)

	// IngestDir ingests every supported file directly inside dir using a
	// bounded worker pool. A failing file does not stop the others.
	IngestDir(ctx context.Context, dir string, opts ...IngestOption) ([]IngestResult, error)

	// Update re-checks a document by hash. Re-ingests if changed.
	Update(ctx context.Context, path string) (bool, error)

	// UpdateAll checks all ingested documents for changes.
	UpdateAll(ctx context.Context) ([]UpdateResult, error)

	// Delete removes a document and its sections.
	Delete(ctx context.Context, documentID int64) error

	// ListDocuments returns all ingested documents.
	ListDocuments(ctx context.Context) ([]Document, error)

	// GetDocument returns one document including its full and table text.
	GetDocument(ctx context.Context, documentID int64) (*Document, error)

	// Sections returns the stored sections of a document in order.
	Sections(ctx context.Context, documentID int64) ([]store.Section, error)

	// Search runs a full-text query over stored sections.
	Search(ctx context.Context, query string, limit int) ([]store.SearchResult, error)

	// SectionsByFilename returns the sections of every stored document
	// whose base filename matches, ordered by document then position.
	SectionsByFilename(ctx context.Context, filename string) ([]store.Section, error)

	// Close cleanly shuts down the engine.
	Close() error
}

// Document represents an ingested document.
type Document struct {
	ID             int64  `json:"id" yaml:"id"`
	Path           string `json:"path" yaml:"path"`
	Filename       string `json:"filename" yaml:"filename"`
	Format         string `json:"format" yaml:"format"`
	ContentHash    string `json:"content_hash" yaml:"content_hash"`
	Status         string `json:"status" yaml:"status"`
	Error          string `json:"error,omitempty" yaml:"error,omitempty"`
	DocumentText   string `json:"document_text,omitempty" yaml:"document_text,omitempty"`
	TableText      string `json:"table_text,omitempty" yaml:"table_text,omitempty"`
	Author         string `json:"author" yaml:"author"`
	LastModifiedBy string `json:"last_modified_by" yaml:"last_modified_by"`
	Created        string `json:"created" yaml:"created"`
	LastPrinted    string `json:"last_printed" yaml:"last_printed"`
	Revision       string `json:"revision" yaml:"revision"`
	NumTables      int    `json:"num_tables" yaml:"num_tables"`
	CreatedAt      string `json:"created_at" yaml:"created_at"`
	UpdatedAt      string `json:"updated_at" yaml:"updated_at"`
}

// IngestResult reports the outcome for one file of IngestDir.
type IngestResult struct {
	DocumentID int64  `json:"document_id" yaml:"document_id"`
	Path       string `json:"path" yaml:"path"`
	Changed    bool   `json:"changed" yaml:"changed"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// UpdateResult reports the outcome of a document update check.
type UpdateResult struct {
	DocumentID int64  `json:"document_id" yaml:"document_id"`
	Path       string `json:"path" yaml:"path"`
	Changed    bool   `json:"changed" yaml:"changed"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Inspection is a record together with how each paragraph was classified.
type Inspection struct {
	Record *record.Record `json:"record" yaml:"record"`
	Trace  []TraceLine    `json:"trace" yaml:"trace"`
}

// TraceLine describes one paragraph as seen by the section detector.
type TraceLine struct {
	Index   int    `json:"index" yaml:"index"`
	Text    string `json:"text" yaml:"text"`
	Style   string `json:"style,omitempty" yaml:"style,omitempty"`
	Skipped bool   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	segment.Verdict `yaml:",inline"`
}

// IngestOption configures ingestion behavior.
type IngestOption func(*ingestOptions)

type ingestOptions struct {
	forceReparse bool
}

// WithForceReparse forces re-parsing even if the hash hasn't changed.
func WithForceReparse() IngestOption {
	return func(o *ingestOptions) { o.forceReparse = true }
}

type engine struct {
	cfg     Config
	store   *store.Store
	parsers *parser.Registry
	closed  atomic.Bool
}

// New creates a new engine with the given configuration.
func New(cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Resolve database path from config (DBPath > DBName+StorageDir > default)
	dbPath := cfg.resolveDBPath()

	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	slog.Debug("store opened", "db", dbPath)

	return &engine{
		cfg:     cfg,
		store:   s,
		parsers: parser.NewRegistry(),
	}, nil
}

func (e *engine) check() error {
	if e.closed.Load() {
		return ErrStoreClosed
	}
	return nil
}

// parse resolves the parser for path and runs it.
func (e *engine) parse(ctx context.Context, path string) (*parser.Document, error) {
	format := formatOf(path)
	p, err := e.parsers.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	doc, err := p.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParsingFailed, err)
	}
	return doc, nil
}

// Process parses and segments a document without touching the store.
func (e *engine) Process(ctx context.Context, path string) (*record.Record, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	doc, err := e.parse(ctx, absPath)
	if err != nil {
		return nil, err
	}
	return record.Build(absPath, doc, e.cfg.recordOptions()), nil
}

// Inspect builds the record and a trace of every paragraph's verdict.
func (e *engine) Inspect(ctx context.Context, path string) (*Inspection, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	doc, err := e.parse(ctx, absPath)
	if err != nil {
		return nil, err
	}

	cls := segment.NewClassifier(e.cfg.Heuristics)
	paras := doc.Paragraphs()
	trace := make([]TraceLine, 0, len(paras))
	for i, p := range paras {
		line := TraceLine{Index: i, Text: p.Text, Style: p.StyleName}
		if segment.ShouldSkip(p, e.cfg.AlphaOnly) {
			line.Skipped = true
		} else {
			line.Verdict = cls.Explain(p)
		}
		trace = append(trace, line)
	}

	return &Inspection{
		Record: record.Build(absPath, doc, e.cfg.recordOptions()),
		Trace:  trace,
	}, nil
}

// Ingest processes a document through the full pipeline.
func (e *engine) Ingest(ctx context.Context, path string, opts ...IngestOption) (int64, error) {
	id, _, err := e.ingest(ctx, path, opts...)
	return id, err
}

func (e *engine) ingest(ctx context.Context, path string, opts ...IngestOption) (int64, bool, error) {
	if err := e.check(); err != nil {
		return 0, false, err
	}

	options := &ingestOptions{}
	for _, o := range opts {
		o(options)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, false, fmt.Errorf("resolving path: %w", err)
	}

	format := formatOf(absPath)
	if _, err := e.parsers.Get(format); err != nil {
		return 0, false, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	// Compute file hash
	hash, err := fileHash(absPath)
	if err != nil {
		return 0, false, fmt.Errorf("hashing file: %w", err)
	}

	// Check if document already exists with same hash
	if !options.forceReparse {
		existing, err := e.store.GetDocumentByPath(ctx, absPath)
		if err == nil && existing.ContentHash == hash && existing.Status == store.StatusReady {
			slog.Debug("ingest: unchanged, skipping", "file", existing.Filename, "doc_id", existing.ID)
			return existing.ID, false, nil
		}
	}

	filename := filepath.Base(absPath)
	row := store.Document{
		Path:        absPath,
		Filename:    filename,
		Format:      format,
		ContentHash: hash,
	}

	slog.Info("ingest: parsing document", "file", filename, "format", format)
	start := time.Now()

	doc, err := e.parse(ctx, absPath)
	if err != nil {
		docID, markErr := e.store.MarkFailed(ctx, row, err)
		if markErr != nil {
			slog.Error("ingest: recording failure", "file", filename, "error", markErr)
		}
		slog.Warn("ingest: document failed", "file", filename, "doc_id", docID, "error", err)
		return docID, true, err
	}

	rec := record.Build(absPath, doc, e.cfg.recordOptions())
	slog.Info("ingest: segmentation complete",
		"file", filename, "method", doc.Method,
		"paragraphs", len(doc.Paragraphs()), "sections", len(rec.Sections),
		"tables", len(doc.Tables()), "elapsed", time.Since(start).Round(time.Millisecond))

	row.Status = store.StatusReady
	row.DocumentText = rec.FullText
	row.TableText = rec.TableText
	row.Author = rec.Author
	row.LastModifiedBy = rec.LastModifiedBy
	row.Created = rec.Created
	row.LastPrinted = rec.LastPrinted
	row.Revision = rec.Revision
	row.NumTables = rec.TableCount

	sections := make([]store.Section, 0, len(rec.SectionOrder))
	for _, name := range rec.SectionOrder {
		sections = append(sections, store.Section{Name: name, Text: rec.Sections[name]})
	}

	docID, err := e.store.SaveDocument(ctx, row, sections)
	if err != nil {
		return 0, false, fmt.Errorf("saving document: %w", err)
	}

	slog.Info("ingest: document ready", "file", filename, "doc_id", docID,
		"total_elapsed", time.Since(start).Round(time.Millisecond))
	return docID, true, nil
}

// IngestDir walks dir (not recursively) and ingests each supported file.
func (e *engine) IngestDir(ctx context.Context, dir string, opts ...IngestOption) ([]IngestResult, error) {
	if err := e.check(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}

	var paths []string
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
			continue
		}
		if _, err := e.parsers.Get(formatOf(name)); err != nil {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}

	slog.Info("ingest-dir: starting", "dir", dir, "files", len(paths), "workers", e.cfg.Workers)
	start := time.Now()

	results := make([]IngestResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)

	scheduled := 0
	for i, p := range paths {
		if gctx.Err() != nil {
			break
		}
		scheduled++
		g.Go(func() error {
			id, changed, err := e.ingest(gctx, p, opts...)
			results[i] = IngestResult{DocumentID: id, Path: p, Changed: changed}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	g.Wait()
	results = results[:scheduled]

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	slog.Info("ingest-dir: complete", "dir", dir, "files", len(paths), "failed", failed,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return results, ctx.Err()
}

// Update checks if a document has changed and re-ingests if needed.
func (e *engine) Update(ctx context.Context, path string) (bool, error) {
	if err := e.check(); err != nil {
		return false, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolving path: %w", err)
	}

	doc, err := e.store.GetDocumentByPath(ctx, absPath)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrDocumentNotFound, absPath)
	}

	hash, err := fileHash(absPath)
	if err != nil {
		return false, fmt.Errorf("hashing file: %w", err)
	}

	if hash == doc.ContentHash {
		return false, nil
	}

	if _, err := e.Ingest(ctx, absPath, WithForceReparse()); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateAll checks all documents for changes.
func (e *engine) UpdateAll(ctx context.Context) ([]UpdateResult, error) {
	if err := e.check(); err != nil {
		return nil, err
	}

	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]UpdateResult, 0, len(docs))
	for _, doc := range docs {
		changed, err := e.Update(ctx, doc.Path)
		res := UpdateResult{DocumentID: doc.ID, Path: doc.Path, Changed: changed}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results, nil
}

// Delete removes a document and all its sections.
func (e *engine) Delete(ctx context.Context, documentID int64) error {
	if err := e.check(); err != nil {
		return err
	}
	if err := e.store.DeleteDocument(ctx, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrDocumentNotFound, documentID)
		}
		return err
	}
	return nil
}

// ListDocuments returns all ingested documents.
func (e *engine) ListDocuments(ctx context.Context) ([]Document, error) {
	if err := e.check(); err != nil {
		return nil, err
	}

	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Document, len(docs))
	for i, d := range docs {
		result[i] = toDocument(d)
	}
	return result, nil
}

// GetDocument returns a single document.
func (e *engine) GetDocument(ctx context.Context, documentID int64) (*Document, error) {
	if err := e.check(); err != nil {
		return nil, err
	}

	d, err := e.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrDocumentNotFound, documentID)
		}
		return nil, err
	}
	doc := toDocument(*d)
	return &doc, nil
}

// Sections returns the stored sections of a document.
func (e *engine) Sections(ctx context.Context, documentID int64) ([]store.Section, error) {
	if _, err := e.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return e.store.GetSections(ctx, documentID)
}

// Search runs a full-text query over section names and bodies.
func (e *engine) Search(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	if err := e.check(); err != nil {
		return nil, err
	}

	results, err := e.store.SearchSections(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}

// SectionsByFilename looks sections up by base filename. Documents with
// the same name in different directories are all returned.
func (e *engine) SectionsByFilename(ctx context.Context, filename string) ([]store.Section, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	secs, err := e.store.GetSectionsByFilename(ctx, filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if len(secs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, filename)
	}
	return secs, nil
}

// Close shuts down the engine. Calls after the first are no-ops.
func (e *engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return e.store.Close()
}

func toDocument(d store.Document) Document {
	return Document{
		ID:             d.ID,
		Path:           d.Path,
		Filename:       d.Filename,
		Format:         d.Format,
		ContentHash:    d.ContentHash,
		Status:         d.Status,
		Error:          d.Error,
		DocumentText:   d.DocumentText,
		TableText:      d.TableText,
		Author:         d.Author,
		LastModifiedBy: d.LastModifiedBy,
		Created:        d.Created,
		LastPrinted:    d.LastPrinted,
		Revision:       d.Revision,
		NumTables:      d.NumTables,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func formatOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// fileHash computes the SHA-256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
