package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Document statuses.
const (
	StatusReady = "ready"
	StatusError = "error"
)

// Document represents a row in the documents table.
type Document struct {
	ID             int64  `json:"id"`
	Path           string `json:"path"`
	Filename       string `json:"filename"`
	Format         string `json:"format"`
	ContentHash    string `json:"content_hash"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	DocumentText   string `json:"document_text,omitempty"`
	TableText      string `json:"table_text,omitempty"`
	LastModifiedBy string `json:"last_modified_by"`
	Author         string `json:"author"`
	Created        string `json:"created"`
	LastPrinted    string `json:"last_printed"`
	Revision       string `json:"revision"`
	NumTables      int    `json:"num_tables"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// Section represents a row in the sections table.
type Section struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	Filename   string `json:"filename"`
	Name       string `json:"section_name"`
	Text       string `json:"section_text"`
	Position   int    `json:"position"`
}

// SearchResult is a section matched by full-text search.
type SearchResult struct {
	Section
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// Store wraps the SQLite database for all docsect persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema.
func New(dbPath string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Create schema
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "no such module: fts5") {
			return nil, fmt.Errorf("creating schema: %w (rebuild with -tags sqlite_fts5)", err)
		}
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db}

	// Run pending migrations.
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// --- Document operations ---

const upsertDocumentSQL = `
	INSERT INTO documents (path, filename, format, content_hash, status, error,
		document_text, table_text, last_modified_by, author, created, last_printed, revision, num_tables)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET
		filename = excluded.filename,
		format = excluded.format,
		content_hash = excluded.content_hash,
		status = excluded.status,
		error = excluded.error,
		document_text = excluded.document_text,
		table_text = excluded.table_text,
		last_modified_by = excluded.last_modified_by,
		author = excluded.author,
		created = excluded.created,
		last_printed = excluded.last_printed,
		revision = excluded.revision,
		num_tables = excluded.num_tables,
		updated_at = CURRENT_TIMESTAMP
`

func upsertDocument(ctx context.Context, tx *sql.Tx, doc Document) (int64, error) {
	if _, err := tx.ExecContext(ctx, upsertDocumentSQL,
		doc.Path, doc.Filename, doc.Format, doc.ContentHash, doc.Status, nullString(doc.Error),
		doc.DocumentText, doc.TableText, doc.LastModifiedBy, doc.Author, doc.Created,
		doc.LastPrinted, doc.Revision, doc.NumTables); err != nil {
		return 0, err
	}

	// LastInsertId is unreliable after the UPDATE branch of an upsert.
	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE path = ?", doc.Path).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// SaveDocument writes a document row and replaces all of its sections in a
// single transaction. Returns the document ID.
func (s *Store) SaveDocument(ctx context.Context, doc Document, sections []Section) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	id, err := upsertDocument(ctx, tx, doc)
	if err != nil {
		return 0, fmt.Errorf("upserting document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM sections WHERE document_id = ?", id); err != nil {
		return 0, fmt.Errorf("clearing sections: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sections (document_id, filename, section_name, section_text, position)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, sec := range sections {
		if _, err := stmt.ExecContext(ctx, id, doc.Filename, sec.Name, sec.Text, i); err != nil {
			return 0, fmt.Errorf("inserting section %q: %w", sec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// MarkFailed records a document that could not be processed. Sections left
// from an earlier successful run are removed.
func (s *Store) MarkFailed(ctx context.Context, doc Document, cause error) (int64, error) {
	doc.Status = StatusError
	if cause != nil {
		doc.Error = cause.Error()
	}
	return s.SaveDocument(ctx, doc, nil)
}

const documentColumns = `id, path, filename, format, content_hash, COALESCE(status, ''), COALESCE(error, ''),
	COALESCE(document_text, ''), COALESCE(table_text, ''), COALESCE(last_modified_by, ''), COALESCE(author, ''),
	COALESCE(created, ''), COALESCE(last_printed, ''), COALESCE(revision, ''), COALESCE(num_tables, 0),
	created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	d := &Document{}
	err := row.Scan(&d.ID, &d.Path, &d.Filename, &d.Format, &d.ContentHash, &d.Status, &d.Error,
		&d.DocumentText, &d.TableText, &d.LastModifiedBy, &d.Author,
		&d.Created, &d.LastPrinted, &d.Revision, &d.NumTables,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDocumentByPath retrieves a document by its file path.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE path = ?", path))
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	return scanDocument(s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id))
}

// ListDocuments returns all documents ordered by path. Text columns are
// left empty to keep listings small.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+documentColumns+" FROM documents ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		d.DocumentText, d.TableText = "", ""
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document; its sections follow via ON DELETE CASCADE.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- Section operations ---

func scanSections(rows *sql.Rows) ([]Section, error) {
	defer rows.Close()
	var out []Section
	for rows.Next() {
		var sec Section
		if err := rows.Scan(&sec.ID, &sec.DocumentID, &sec.Filename, &sec.Name, &sec.Text, &sec.Position); err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

// GetSections returns the sections of one document in stored order.
func (s *Store) GetSections(ctx context.Context, documentID int64) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, filename, section_name, section_text, position
		FROM sections WHERE document_id = ? ORDER BY position
	`, documentID)
	if err != nil {
		return nil, err
	}
	return scanSections(rows)
}

// GetSectionsByFilename returns sections for every document with the given
// base filename.
func (s *Store) GetSectionsByFilename(ctx context.Context, filename string) ([]Section, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, filename, section_name, section_text, position
		FROM sections WHERE filename = ? ORDER BY document_id, position
	`, filename)
	if err != nil {
		return nil, err
	}
	return scanSections(rows)
}

// SearchSections runs a full-text query over section names and text.
// Terms are quoted so user input never reaches the FTS5 query syntax.
func (s *Store) SearchSections(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	q := ftsQuery(query)
	if q == "" {
		return nil, errors.New("empty search query")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.document_id, s.filename, s.section_name, s.section_text, s.position,
			d.path, bm25(sections_fts)
		FROM sections_fts
		JOIN sections s ON s.id = sections_fts.rowid
		JOIN documents d ON d.id = s.document_id
		WHERE sections_fts MATCH ?
		ORDER BY bm25(sections_fts)
		LIMIT ?
	`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("searching sections: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var rank float64
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Filename, &r.Name, &r.Text, &r.Position,
			&r.Path, &rank); err != nil {
			return nil, err
		}
		r.Score = -rank // bm25 is lower-is-better
		out = append(out, r)
	}
	return out, rows.Err()
}

func ftsQuery(q string) string {
	fields := strings.Fields(q)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, "")
		if f == "" {
			continue
		}
		terms = append(terms, `"`+f+`"`)
	}
	return strings.Join(terms, " ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
