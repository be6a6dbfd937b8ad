package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCLI_ImportExportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(page, []byte(`<section><h1>Hello</h1><p>World</p></section>`), 0o644))

	out, err := run(t, "", "--dir", dir, "import", "home", page, "--name", "Home")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 3 nodes into 'home'")

	out, err = run(t, "", "--dir", dir, "project", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "- home")

	out, err = run(t, "", "--dir", dir, "project", "export", "home", "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "# Hello")

	out, err = run(t, "", "--dir", dir, "project", "tree", "home")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD"))

	out, err = run(t, "", "--dir", dir, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ home (3 nodes)")

	out, err = run(t, "", "--dir", dir, "project", "rm", "home")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed project 'home'")
}

func TestCLI_ValidateRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(doc, []byte(`[{"id":"a","tag":"p"},{"id":"a","tag":"p"}]`), 0o644))

	out, err := run(t, "", "validate", doc)
	assert.Error(t, err)
	assert.Contains(t, out, "✗ "+doc)
}

func TestCLI_Version(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lattice version 0.1.0")
}
