package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/brunobiangulo/docsect"
	"github.com/brunobiangulo/docsect/store"
)

type handler struct {
	engine docsect.Engine
}

func newHandler(e docsect.Engine) *handler {
	return &handler{engine: e}
}

// saveUpload copies a multipart "file" field into a temp dir, keeping the
// original base name so the format can be detected from the extension.
// Returns "" if the request carries no file.
func saveUpload(r *http.Request) (path, name string, cleanup func(), err error) {
	if err := r.ParseMultipartForm(100 << 20); err != nil { // 100MB max
		return "", "", nil, nil
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, nil
	}
	defer file.Close()

	// Sanitise filename to prevent path traversal.
	safeName := filepath.Base(header.Filename)

	dir, err := os.MkdirTemp("", "docsect-upload-")
	if err != nil {
		return "", "", nil, err
	}
	cleanup = func() { os.RemoveAll(dir) }

	tmpPath := filepath.Join(dir, safeName)
	dst, err := os.Create(tmpPath)
	if err != nil {
		cleanup()
		return "", "", nil, err
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		cleanup()
		return "", "", nil, err
	}
	dst.Close()
	return tmpPath, safeName, cleanup, nil
}

// existingFile resolves p and checks that it is a regular file.
func existingFile(p string) (string, bool) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return "", false
	}
	return abs, true
}

// POST /ingest
// Accepts multipart file upload or JSON with file path.
func (h *handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	tmpPath, safeName, cleanup, err := saveUpload(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save file")
		slog.Error("saving uploaded file", "error", err)
		return
	}
	if tmpPath != "" {
		defer cleanup()
		docID, err := h.engine.Ingest(ctx, tmpPath)
		if err != nil {
			writeEngineError(w, err, "ingestion failed")
			slog.Error("ingest error", "file", safeName, "error", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"document_id": docID,
			"filename":    safeName,
		})
		return
	}

	// Try JSON body with path
	var req struct {
		Path  string `json:"path"`
		Force bool   `json:"force,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	absPath, ok := existingFile(req.Path)
	if !ok {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	var opts []docsect.IngestOption
	if req.Force {
		opts = append(opts, docsect.WithForceReparse())
	}

	docID, err := h.engine.Ingest(ctx, absPath, opts...)
	if err != nil {
		writeEngineError(w, err, "ingestion failed")
		slog.Error("ingest error", "path", absPath, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": docID,
		"path":        absPath,
	})
}

// POST /ingest-dir
func (h *handler) handleIngestDir(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	var req struct {
		Dir   string `json:"dir"`
		Force bool   `json:"force,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Dir == "" {
		writeError(w, http.StatusBadRequest, "dir is required")
		return
	}
	if info, err := os.Stat(req.Dir); err != nil || !info.IsDir() {
		writeError(w, http.StatusBadRequest, "dir must be an existing directory")
		return
	}

	var opts []docsect.IngestOption
	if req.Force {
		opts = append(opts, docsect.WithForceReparse())
	}

	results, err := h.engine.IngestDir(ctx, req.Dir, opts...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ingest-dir failed")
		slog.Error("ingest-dir error", "dir", req.Dir, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

// POST /inspect
// Runs the section detector without storing anything.
func (h *handler) handleInspect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	tmpPath, _, cleanup, err := saveUpload(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save file")
		slog.Error("saving uploaded file", "error", err)
		return
	}
	path := tmpPath
	if path != "" {
		defer cleanup()
	} else {
		var req struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
			writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
			return
		}
		var ok bool
		if path, ok = existingFile(req.Path); !ok {
			writeError(w, http.StatusBadRequest, "path must be an existing file")
			return
		}
	}

	ins, err := h.engine.Inspect(ctx, path)
	if err != nil {
		writeEngineError(w, err, "inspect failed")
		slog.Error("inspect error", "path", path, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, ins)
}

// POST /update
func (h *handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	changed, err := h.engine.Update(ctx, req.Path)
	if err != nil {
		writeEngineError(w, err, "update failed")
		slog.Error("update error", "path", req.Path, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"path":    req.Path,
		"changed": changed,
	})
}

// POST /update-all
func (h *handler) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	results, err := h.engine.UpdateAll(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "update-all failed")
		slog.Error("update-all error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

func documentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return 0, false
	}
	return id, true
}

// DELETE /documents/{id}
func (h *handler) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	if err := h.engine.Delete(r.Context(), id); err != nil {
		writeEngineError(w, err, "delete failed")
		slog.Error("delete error", "document_id", id, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		slog.Error("list documents error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
	})
}

// GET /documents/{id}
func (h *handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	doc, err := h.engine.GetDocument(r.Context(), id)
	if err != nil {
		writeEngineError(w, err, "failed to get document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GET /documents/{id}/sections
func (h *handler) handleSections(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}

	secs, err := h.engine.Sections(r.Context(), id)
	if err != nil {
		writeEngineError(w, err, "failed to get sections")
		return
	}
	if secs == nil {
		secs = []store.Section{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": id,
		"sections":    secs,
	})
}

// GET /sections?filename=...
func (h *handler) handleSectionsByFilename(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	secs, err := h.engine.SectionsByFilename(r.Context(), filename)
	if err != nil {
		writeEngineError(w, err, "failed to get sections")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename": filename,
		"sections": secs,
	})
}

// GET /search?q=...&limit=...
func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 0 || limit > 100 {
		limit = 0 // use default
	}

	results, err := h.engine.Search(r.Context(), q, limit)
	if errors.Is(err, docsect.ErrNoResults) {
		results, err = []store.SearchResult{}, nil
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		slog.Error("search error", "query", q, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// writeEngineError maps engine sentinel errors to HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, docsect.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, docsect.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, docsect.ErrParsingFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, docsect.ErrStoreClosed):
		writeError(w, http.StatusServiceUnavailable, "service is shutting down")
	default:
		writeError(w, http.StatusInternalServerError, msg)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
