package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/refscan/internal/models"
)

// Filter decides which files List returns.
type Filter struct {
	// Extensions are the file suffixes to keep (".vue"). Empty keeps everything.
	Extensions []string
	// SkipDirs are directory names that are never descended into.
	SkipDirs []string
	// Ignore are doublestar globs matched against base-relative slash paths.
	Ignore []string
}

// FS implements Provider backed by the local file system.
type FS struct {
	root   string // absolute path to the project base directory
	filter Filter
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string, filter Filter) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	for _, pattern := range filter.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("storage: invalid ignore pattern %q", pattern)
		}
	}
	return &FS{root: abs, filter: filter}, nil
}

// Root returns the absolute base directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a relative path against the base and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes project root: %s", rel)
	}
	return abs, nil
}

// List walks dir (relative to root) and returns every file accepted by the filter.
// Unreadable subdirectories are skipped; a missing or unreadable dir itself is an error.
func (f *FS) List(dir string) ([]models.SourceFile, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.SourceFile
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == base {
				return walkErr
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(f.root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p != base && (f.skipDir(d.Name()) || f.ignored(rel)) {
				return fs.SkipDir
			}
			return nil
		}
		if !f.accepts(d.Name()) || f.ignored(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, models.SourceFile{
			Path:    rel,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// SkipsDir reports whether a directory name is never scanned.
func (f *FS) SkipsDir(name string) bool {
	return f.skipDir(name)
}

func (f *FS) accepts(name string) bool {
	if len(f.filter.Extensions) == 0 {
		return true
	}
	ext := path.Ext(name)
	for _, e := range f.filter.Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func (f *FS) skipDir(name string) bool {
	for _, s := range f.filter.SkipDirs {
		if name == s {
			return true
		}
	}
	return false
}

func (f *FS) ignored(rel string) bool {
	for _, pattern := range f.filter.Ignore {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// Read returns the raw bytes of a project file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Exists reports whether path exists under the root. Traversal outside the
// root, permission errors and every other stat failure count as absent.
func (f *FS) Exists(path string) bool {
	abs, err := f.safePath(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// Write atomically writes content to a path inside the root.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	return WriteFileAtomic(abs, content)
}

// WriteFileAtomic writes content to an absolute path: tmp file → fsync → rename.
func WriteFileAtomic(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".refscan-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("storage: chmod: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
