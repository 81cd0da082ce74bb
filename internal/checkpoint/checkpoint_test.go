package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileMeansFreshRun(t *testing.T) {
	idx, err := Load(filepath.Join(t.TempDir(), "progress.txt"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if idx != 0 {
		t.Fatalf("fresh run index = %d, want 0", idx)
	}
}

func TestStoreLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.txt")

	for _, idx := range []int{1, 2, 17} {
		if err := Store(path, idx); err != nil {
			t.Fatalf("Store(%d) returned error: %v", idx, err)
		}
		got, err := Load(path)
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}
		if got != idx {
			t.Fatalf("Load = %d, want %d", got, idx)
		}
	}
}

func TestStoreCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "progress.txt")
	if err := Store(path, 3); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	if got, _ := Load(path); got != 3 {
		t.Fatalf("Load = %d, want 3", got)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.txt")
	if err := os.WriteFile(path, []byte("not-a-number"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable checkpoint")
	}

	if err := os.WriteFile(path, []byte("-4"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative checkpoint")
	}
}

func TestLoadToleratesTrailingWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.txt")
	if err := os.WriteFile(path, []byte(" 42\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if got != 42 {
		t.Fatalf("Load = %d, want 42", got)
	}
}
