package supervisor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStagingWrite(t *testing.T) {
	staging := NewStaging(t.TempDir(), nil)

	path, err := staging.Write("echo hello", ".sh")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if !strings.HasSuffix(path, ".sh") {
		t.Errorf("Staged path should carry the extension, got %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Staged file unreadable: %v", err)
	}
	if string(data) != "echo hello" {
		t.Errorf("Staged content mismatch: %q", data)
	}
}

func TestStagingWriteUniqueNames(t *testing.T) {
	staging := NewStaging(t.TempDir(), nil)

	a, err := staging.Write("echo a", ".sh")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	b, err := staging.Write("echo b", ".sh")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if a == b {
		t.Errorf("Staged paths should be unique, both were %s", a)
	}
}

func TestStagingCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "staging")
	staging := NewStaging(dir, nil)

	if _, err := staging.Write("echo hi", ".sh"); err != nil {
		t.Fatalf("Write should create the staging dir: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("Staging dir missing after write: %v", err)
	}
}

func TestStagingRemove(t *testing.T) {
	staging := NewStaging(t.TempDir(), nil)

	path, err := staging.Write("echo bye", ".sh")
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	staging.Remove(path)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Staged file should be gone after Remove")
	}

	// Removing an already-gone file must be silent
	staging.Remove(path)
	staging.Remove("")
}
