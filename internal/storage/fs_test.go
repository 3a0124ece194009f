package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempTree(t *testing.T, filter Filter) (*FS, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir, filter)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs, dir
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWriteAndRead(t *testing.T) {
	s, _ := tempTree(t, Filter{})
	content := []byte(`{"total_imports": 1}`)
	if err := s.Write("report.json", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("report.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s, _ := tempTree(t, Filter{})
	if err := s.Write("out/reports/r.json", []byte("{}")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Exists("out/reports/r.json") {
		t.Error("written file should exist")
	}
}

func TestList_FiltersExtensionsAndSkipDirs(t *testing.T) {
	s, root := tempTree(t, Filter{
		Extensions: []string{".js", ".vue"},
		SkipDirs:   []string{"node_modules"},
	})
	writeFile(t, root, "src/main.js", "")
	writeFile(t, root, "src/pages/Home.vue", "")
	writeFile(t, root, "src/readme.md", "")
	writeFile(t, root, "src/node_modules/pkg/index.js", "")

	items, err := s.List("src")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	// Sorted, slash-separated, base-relative.
	if items[0].Path != "src/main.js" || items[1].Path != "src/pages/Home.vue" {
		t.Errorf("paths = %q, %q", items[0].Path, items[1].Path)
	}
}

func TestList_IgnoreGlobs(t *testing.T) {
	s, root := tempTree(t, Filter{
		Extensions: []string{".ts"},
		Ignore:     []string{"**/*.d.ts", "src/legacy/**"},
	})
	writeFile(t, root, "src/app.ts", "")
	writeFile(t, root, "src/auto-imports.d.ts", "")
	writeFile(t, root, "src/legacy/old.ts", "")

	items, err := s.List("src")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].Path != "src/app.ts" {
		t.Errorf("items = %+v, want only src/app.ts", items)
	}
}

func TestList_MissingDir(t *testing.T) {
	s, _ := tempTree(t, Filter{})
	if _, err := s.List("src"); err == nil {
		t.Error("expected error for missing source root")
	}
}

func TestExists(t *testing.T) {
	s, root := tempTree(t, Filter{})
	writeFile(t, root, "src/components/Header.vue", "")

	if !s.Exists("src/components/Header.vue") {
		t.Error("file should exist")
	}
	if !s.Exists("src/components") {
		t.Error("directories exist too")
	}
	if s.Exists("src/components/Footer.vue") {
		t.Error("missing file reported as existing")
	}
}

func TestExists_TraversalIsAbsent(t *testing.T) {
	s, _ := tempTree(t, Filter{})
	for _, p := range []string{"../outside.js", "../../etc/passwd", "/etc/passwd"} {
		if s.Exists(p) {
			t.Errorf("Exists(%q) = true, want false", p)
		}
	}
}

func TestTraversalBlocked(t *testing.T) {
	s, _ := tempTree(t, Filter{})

	cases := []string{
		"../../etc/passwd",
		"../outside.json",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s, root := tempTree(t, Filter{})
	_ = s.Write("report.json", []byte("original"))
	if err := s.Write("report.json", []byte("updated")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("report.json")
	if string(got) != "updated" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(root, ".refscan-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/refscan-does-not-exist-"+t.Name(), Filter{})
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_InvalidIgnorePattern(t *testing.T) {
	_, err := NewFS(t.TempDir(), Filter{Ignore: []string{"src/[unclosed"}})
	if err == nil {
		t.Error("expected error for invalid glob")
	}
}
