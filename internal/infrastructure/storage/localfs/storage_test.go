package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveOpenDelete(t *testing.T) {
	base := t.TempDir()
	s, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	key := "c1/0001_processes.json"

	if err := s.Save(ctx, key, strings.NewReader(`[{"pid":1}]`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rc, err := s.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	raw, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(raw) != `[{"pid":1}]` {
		t.Fatalf("unexpected content %q", raw)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "c1")); !os.IsNotExist(err) {
		t.Fatalf("empty case dir should be removed, stat err = %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("deleting a missing object should succeed, got %v", err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	base := t.TempDir()
	s, _ := New(base)

	if err := s.Save(context.Background(), "c1/a.json", strings.NewReader("{}")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(base, "c1"))
	if len(entries) != 1 || entries[0].Name() != "a.json" {
		t.Fatalf("unexpected directory content %v", entries)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	s, _ := New(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"../secret", "/etc/passwd", "", "c1/../../x"} {
		if err := s.Save(ctx, key, strings.NewReader("x")); err == nil {
			t.Fatalf("Save(%q) should fail", key)
		}
	}
}
