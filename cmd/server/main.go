// Command server exposes the docsect engine over HTTP.
//
// Usage:
//
//	go run -tags sqlite_fts5 ./cmd/server --addr :8080 --config docsect.yaml
//
// Without the sqlite_fts5 tag the store cannot create its search index and
// the server exits at startup. DOCSECT_API_KEY enables bearer auth and
// DOCSECT_CORS_ORIGINS sets the allowed origins.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/pflag"

	"github.com/brunobiangulo/docsect"
)

func main() {
	fs := pflag.NewFlagSet("docsect-server", pflag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (yaml, json or toml)")
	addr := fs.String("addr", ":8080", "Listen address")
	docsect.RegisterFlags(fs)
	fs.Parse(os.Args[1:])

	cfg, err := docsect.LoadConfig(*configPath, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	apiKey := os.Getenv("DOCSECT_API_KEY")
	corsOrigins := os.Getenv("DOCSECT_CORS_ORIGINS")

	engine, err := docsect.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:         *addr,
		Handler:      newRouter(newHandler(engine), apiKey, corsOrigins),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // directory ingests can run long
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr, "workers", cfg.Workers)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// newRouter wires routes and the middleware chain:
// recovery -> cors -> auth -> request id -> logging -> routes.
func newRouter(h *handler, apiKey, corsOrigins string) http.Handler {
	r := chi.NewRouter()
	r.Use(recoverPanics)
	r.Use(allowOrigins(corsOrigins))
	r.Use(requireAPIKey(apiKey))
	r.Use(middleware.RequestID)
	r.Use(requestLogger)

	r.Post("/ingest", h.handleIngest)
	r.Post("/ingest-dir", h.handleIngestDir)
	r.Post("/inspect", h.handleInspect)
	r.Post("/update", h.handleUpdate)
	r.Post("/update-all", h.handleUpdateAll)

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", h.handleListDocuments)
		r.Get("/{id}", h.handleGetDocument)
		r.Get("/{id}/sections", h.handleSections)
		r.Delete("/{id}", h.handleDeleteDocument)
	})

	r.Get("/sections", h.handleSectionsByFilename)
	r.Get("/search", h.handleSearch)
	r.Get("/health", h.handleHealth)
	return r
}
