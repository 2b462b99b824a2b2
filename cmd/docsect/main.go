// Command docsect ingests documents into the section store and inspects how
// the section detector sees them.
//
// The store needs SQLite's FTS5 module, so build with the sqlite_fts5 tag:
//
//	go build -tags sqlite_fts5 ./cmd/docsect
//	go run -tags sqlite_fts5 ./cmd/docsect ingest ./reports
//	go run -tags sqlite_fts5 ./cmd/docsect inspect ./reports/annual.docx
//	go run -tags sqlite_fts5 ./cmd/docsect sections --filename annual.docx
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/docsect"
	"github.com/brunobiangulo/docsect/store"
)

const usage = `Usage: docsect <command> [flags] [args]

Commands:
  ingest <dir|file>        Segment and store a file, or every supported file in a directory
  inspect <file>           Print the record and per-paragraph verdicts as YAML (nothing stored)
  sections <document-id>   Print the stored sections of a document
  sections --filename <f>  Print the sections of every document named f
  documents                List stored documents
  search <query>           Full-text search over stored sections

Run 'docsect <command> --help' for command flags.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cmd, args := args[0], args[1:]
	fs := pflag.NewFlagSet("docsect "+cmd, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file (yaml, json or toml)")
	docsect.RegisterFlags(fs)

	var (
		force    *bool
		limit    *int
		filename *string
	)
	switch cmd {
	case "ingest":
		force = fs.Bool("force", false, "Re-parse files even if unchanged")
	case "search":
		limit = fs.Int("limit", 20, "Maximum results")
	case "sections":
		filename = fs.String("filename", "", "Look sections up by base filename instead of document id")
	case "inspect", "documents":
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := docsect.LoadConfig(*configPath, fs)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	engine, err := docsect.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		return 1
	}
	defer engine.Close()

	switch cmd {
	case "ingest":
		err = runIngest(ctx, engine, fs.Args(), *force, stdout)
	case "inspect":
		err = runInspect(ctx, engine, fs.Args(), stdout)
	case "sections":
		err = runSections(ctx, engine, fs.Args(), *filename, stdout)
	case "documents":
		err = runDocuments(ctx, engine, stdout)
	case "search":
		err = runSearch(ctx, engine, fs.Args(), *limit, stdout)
	}
	if err != nil {
		fmt.Fprintf(stderr, "docsect %s: %v\n", cmd, err)
		return 1
	}
	return 0
}

func runIngest(ctx context.Context, e docsect.Engine, args []string, force bool, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("expected exactly one file or directory")
	}
	var opts []docsect.IngestOption
	if force {
		opts = append(opts, docsect.WithForceReparse())
	}

	info, err := os.Stat(args[0])
	if err != nil {
		return err
	}
	if !info.IsDir() {
		id, err := e.Ingest(ctx, args[0], opts...)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\n", id, args[0])
		return nil
	}

	results, err := e.IngestDir(ctx, args[0], opts...)
	if err != nil {
		return err
	}
	return writeIngestResults(w, results)
}

func writeIngestResults(w io.Writer, results []docsect.IngestResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPATH")
	failed := 0
	for _, r := range results {
		status := "unchanged"
		switch {
		case r.Error != "":
			status = "error: " + r.Error
			failed++
		case r.Changed:
			status = "ingested"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.DocumentID, status, r.Path)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

func runInspect(ctx context.Context, e docsect.Engine, args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("expected exactly one file")
	}
	ins, err := e.Inspect(ctx, args[0])
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ins); err != nil {
		return err
	}
	return enc.Close()
}

func runSections(ctx context.Context, e docsect.Engine, args []string, filename string, w io.Writer) error {
	var (
		secs []store.Section
		err  error
	)
	switch {
	case filename != "" && len(args) == 0:
		secs, err = e.SectionsByFilename(ctx, filename)
	case filename == "" && len(args) == 1:
		id, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil {
			return fmt.Errorf("invalid document id %q", args[0])
		}
		secs, err = e.Sections(ctx, id)
	default:
		return errors.New("expected a document id or --filename")
	}
	if err != nil {
		return err
	}
	writeSections(w, secs)
	return nil
}

// writeSections prints each section as its name followed by its body. An
// item that is not valid UTF-8 prints "encode error" in its place and the
// rest still print.
func writeSections(w io.Writer, secs []store.Section) {
	for _, s := range secs {
		if !utf8.ValidString(s.Name) || !utf8.ValidString(s.Text) {
			fmt.Fprintln(w, "encode error")
			continue
		}
		fmt.Fprintf(w, "%s\n%s\n\n", s.Name, s.Text)
	}
}

func runDocuments(ctx context.Context, e docsect.Engine, w io.Writer) error {
	docs, err := e.ListDocuments(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTABLES\tAUTHOR\tPATH")
	for _, d := range docs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", d.ID, d.Status, d.NumTables, d.Author, d.Path)
	}
	return tw.Flush()
}

func runSearch(ctx context.Context, e docsect.Engine, args []string, limit int, w io.Writer) error {
	if len(args) == 0 {
		return errors.New("expected a query")
	}
	query := args[0]
	for _, a := range args[1:] {
		query += " " + a
	}
	results, err := e.Search(ctx, query, limit)
	if errors.Is(err, docsect.ErrNoResults) {
		fmt.Fprintln(w, "no results")
		return nil
	}
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tSECTION\tPATH")
	for _, r := range results {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\n", r.Score, r.Name, r.Path)
	}
	return tw.Flush()
}
