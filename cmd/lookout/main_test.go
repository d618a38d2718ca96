package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunExecutesAMinimalConfigurationAgainstAnEphemeralCache(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "conf.yml")
	body := `
watch:
  - type: "true"
    comment: "smoke test"
`
	if err := os.WriteFile(confPath, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := run([]string{confPath}, "", t.TempDir(), "", "", false); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRunReturnsAnErrorWhenNothingLoads(t *testing.T) {
	if err := run([]string{filepath.Join(t.TempDir(), "missing.yml")}, "", t.TempDir(), "", "", false); err == nil {
		t.Fatalf("expected an error when no configuration documents load")
	}
}
