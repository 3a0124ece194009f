// Package testutil provides shared test helpers for setting up source trees,
// scanners and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/refscan/internal/extract"
	"github.com/starford/refscan/internal/index"
	"github.com/starford/refscan/internal/resolve"
	"github.com/starford/refscan/internal/scan"
	"github.com/starford/refscan/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "refscan-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// WriteTree writes files (slash path -> content) under root.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// TestTree creates a temporary project directory holding files and a
// storage.FS over it that skips node_modules.
func TestTree(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	WriteTree(t, root, files)

	store, err := storage.NewFS(root, storage.Filter{
		Extensions: []string{".js", ".vue", ".ts", ".scss", ".css"},
		SkipDirs:   []string{"node_modules"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// NewScanner builds a scanner over store with the default rules, resolver
// options and category patterns, scanning "src".
func NewScanner(t *testing.T, store *storage.FS, opts ...scan.Option) *scan.Scanner {
	t.Helper()
	ext, err := extract.New(extract.DefaultRules())
	if err != nil {
		t.Fatal(err)
	}
	cls, err := resolve.NewClassifier(resolve.DefaultCategoryPatterns("src"))
	if err != nil {
		t.Fatal(err)
	}
	stats, err := resolve.NewCachedExister(store, 0)
	if err != nil {
		t.Fatal(err)
	}
	res := resolve.New(resolve.DefaultOptions(), stats)
	opts = append([]scan.Option{scan.WithStatCache(stats), scan.WithLogger(Logger())}, opts...)
	return scan.New(store, ext, res, cls, "src", opts...)
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
