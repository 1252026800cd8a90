package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_WritesJSONEntriesToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")

	logger, err := New(logPath, "debug", "error")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("row processed")
	logger.Sync()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log file to contain at least one entry")
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	if _, err := New(logPath, "not-a-level", "info"); err == nil {
		t.Fatal("expected an error for an unparseable file level")
	}
}
