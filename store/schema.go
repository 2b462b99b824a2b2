package store

// schemaSQL is the DDL for all tables. Columns added after the first
// release arrive through migrations, not here.
const schemaSQL = `
-- One row per source document, keyed by absolute path
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    filename TEXT NOT NULL,
    format TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    status TEXT DEFAULT 'pending',
    document_text TEXT,
    table_text TEXT,
    last_modified_by TEXT,
    author TEXT,
    created TEXT,
    last_printed TEXT,
    revision TEXT,
    num_tables INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Detected sections, one per distinct name within a document
CREATE TABLE IF NOT EXISTS sections (
    id INTEGER PRIMARY KEY,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    filename TEXT NOT NULL,
    section_name TEXT NOT NULL,
    section_text TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0
);

-- Full-text search via FTS5
CREATE VIRTUAL TABLE IF NOT EXISTS sections_fts USING fts5(
    section_name,
    section_text,
    content='sections',
    content_rowid='id',
    tokenize='porter unicode61'
);

-- FTS triggers to keep index in sync
CREATE TRIGGER IF NOT EXISTS sections_ai AFTER INSERT ON sections BEGIN
    INSERT INTO sections_fts(rowid, section_name, section_text) VALUES (new.id, new.section_name, new.section_text);
END;
CREATE TRIGGER IF NOT EXISTS sections_ad AFTER DELETE ON sections BEGIN
    INSERT INTO sections_fts(sections_fts, rowid, section_name, section_text) VALUES ('delete', old.id, old.section_name, old.section_text);
END;
CREATE TRIGGER IF NOT EXISTS sections_au AFTER UPDATE ON sections BEGIN
    INSERT INTO sections_fts(sections_fts, rowid, section_name, section_text) VALUES ('delete', old.id, old.section_name, old.section_text);
    INSERT INTO sections_fts(rowid, section_name, section_text) VALUES (new.id, new.section_name, new.section_text);
END;

-- Indexes
CREATE INDEX IF NOT EXISTS idx_sections_document ON sections(document_id);
CREATE INDEX IF NOT EXISTS idx_sections_filename ON sections(filename);
CREATE INDEX IF NOT EXISTS idx_sections_name ON sections(section_name);
CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
`
