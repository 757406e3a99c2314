package dump

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestMetadataWriter_StartAndFinish(t *testing.T) {
	dir := t.TempDir()

	m, err := NewMetadataWriter(dir)
	if err != nil {
		t.Fatalf("NewMetadataWriter: %v", err)
	}

	start := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	if err := m.WriteStart(start); err != nil {
		t.Fatalf("WriteStart: %v", err)
	}

	finish := start.Add(5 * time.Minute)
	if err := m.WriteFinish(finish); err != nil {
		t.Fatalf("WriteFinish: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".metadata"))
	if err != nil {
		t.Fatalf("read metadata file: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "Started dump at: 2026-07-30 10:00:00") {
		t.Errorf("missing start line: %q", content)
	}
	if !strings.Contains(content, "Finished dump at: 2026-07-30 10:05:00") {
		t.Errorf("missing finish line: %q", content)
	}
}

func TestMetadataWriter_CreatesSidecarFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewMetadataWriter(dir); err != nil {
		t.Fatalf("NewMetadataWriter: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".metadata")); err != nil {
		t.Errorf(".metadata file not created: %v", err)
	}
}
