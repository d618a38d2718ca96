package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileLoggerDeduplicatesTheSamePath(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() { CloseFileLoggers() })

	l1, err := FileLogger(dir, "watch-a")
	if err != nil {
		t.Fatalf("FileLogger: %v", err)
	}
	l2, err := FileLogger(dir, "watch-a")
	if err != nil {
		t.Fatalf("FileLogger (second call): %v", err)
	}
	if l1 != l2 {
		t.Errorf("expected the same *logrus.Logger for the same path, got distinct instances")
	}

	l1.Info("hello")
	if err := CloseFileLoggers(); err != nil {
		t.Fatalf("CloseFileLoggers: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "watch-a"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Errorf("expected the log file to contain the written message")
	}
}

func TestInitSetsLevelFromFlags(t *testing.T) {
	Init(false, false)
	if Get().Level.String() != "warning" {
		t.Errorf("default level = %s, want warning", Get().Level)
	}

	Init(true, false)
	if Get().Level.String() != "info" {
		t.Errorf("verbose level = %s, want info", Get().Level)
	}

	Init(false, true)
	if Get().Level.String() != "debug" {
		t.Errorf("debug level = %s, want debug", Get().Level)
	}
}
