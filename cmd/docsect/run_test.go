//go:build cgo && sqlite_fts5

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "docs")
	require.NoError(t, os.Mkdir(docs, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "annual.txt"),
		[]byte("OVERVIEW\nCompany performed well.\nOUTLOOK\nSteady.\n"), 0o644))

	db := "--db=" + filepath.Join(dir, "test.db")
	ctx := context.Background()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"ingest", db, docs}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "ingested")

	stdout.Reset()
	code = run(ctx, []string{"documents", db}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "annual.txt")

	stdout.Reset()
	code = run(ctx, []string{"sections", db, "1"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "OVERVIEW\nCompany performed well.\n\nOUTLOOK\nSteady.\n\n", stdout.String())

	stdout.Reset()
	code = run(ctx, []string{"sections", db, "--filename", "annual.txt"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "OVERVIEW\nCompany performed well.\n\nOUTLOOK\nSteady.\n\n", stdout.String())

	stderr.Reset()
	code = run(ctx, []string{"sections", db, "--filename", "missing.txt"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "document not found")

	stdout.Reset()
	code = run(ctx, []string{"search", db, "steady"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "OUTLOOK")

	stdout.Reset()
	code = run(ctx, []string{"inspect", db, filepath.Join(docs, "annual.txt")}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var ins struct {
		Record struct {
			Sections map[string]string `yaml:"sections"`
		} `yaml:"record"`
		Trace []struct {
			Header bool     `yaml:"header"`
			Fired  []string `yaml:"fired"`
		} `yaml:"trace"`
	}
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &ins))
	assert.Equal(t, "Steady.", ins.Record.Sections["OUTLOOK"])
	require.NotEmpty(t, ins.Trace)
	assert.True(t, ins.Trace[0].Header)
	assert.Equal(t, []string{"all-caps"}, ins.Trace[0].Fired)

	code = run(ctx, []string{"sections", db, "abc"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.True(t, strings.Contains(stderr.String(), "invalid document id"))
}
