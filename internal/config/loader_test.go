package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPathsGlobsDirectoriesRecursivelyForYAML(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	if err := os.Mkdir(nested, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	write := func(path, body string) {
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", path, err)
		}
	}
	write(filepath.Join(dir, "a.yml"), "watch:\n  - type: true\n")
	write(filepath.Join(nested, "b.yaml"), "watch:\n  - type: true\n")
	write(filepath.Join(dir, "ignore.txt"), "not yaml")

	docs, errs := LoadPaths([]string{dir})
	if len(errs) != 0 {
		t.Fatalf("unexpected load errors: %v", errs)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
}

func TestLoadPathsAcceptsASingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "single.yml")
	if err := os.WriteFile(path, []byte("watch:\n  - type: true\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	docs, errs := LoadPaths([]string{path})
	if len(errs) != 0 {
		t.Fatalf("unexpected load errors: %v", errs)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
}
