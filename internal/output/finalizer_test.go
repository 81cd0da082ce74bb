package output

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testFinalizer(t *testing.T) *Finalizer {
	t.Helper()
	return NewFinalizer(t.TempDir(), "CompositionX.mp4", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFinalizeMissingArtifact(t *testing.T) {
	f := testFinalizer(t)
	if path, ok := f.Finalize(1); ok || path != "" {
		t.Fatalf("expected failure for missing artifact, got %q %v", path, ok)
	}
}

func TestFinalizeEmptyArtifact(t *testing.T) {
	f := testFinalizer(t)
	if err := os.WriteFile(f.SlotPath(), nil, 0o644); err != nil {
		t.Fatalf("write slot: %v", err)
	}
	if _, ok := f.Finalize(1); ok {
		t.Fatal("empty artifact must not finalize")
	}
}

func TestFinalizeRenamesToIndexedName(t *testing.T) {
	f := testFinalizer(t)
	if err := os.WriteFile(f.SlotPath(), []byte("video bytes"), 0o644); err != nil {
		t.Fatalf("write slot: %v", err)
	}

	path, ok := f.Finalize(12)
	if !ok {
		t.Fatal("Finalize returned false for a valid artifact")
	}
	want := filepath.Join(f.Dir, "Composition12.mp4")
	if path != want {
		t.Fatalf("finalized path = %s, want %s", path, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("indexed artifact missing: %v", err)
	}
	if _, err := os.Stat(f.SlotPath()); !os.IsNotExist(err) {
		t.Fatalf("slot should be vacated after finalize: %v", err)
	}
}

func TestCleanupPartialRemovesSlotOnly(t *testing.T) {
	f := testFinalizer(t)
	if err := os.WriteFile(f.SlotPath(), []byte("partial"), 0o644); err != nil {
		t.Fatalf("write slot: %v", err)
	}
	keep := filepath.Join(f.Dir, "Composition3.mp4")
	if err := os.WriteFile(keep, []byte("done"), 0o644); err != nil {
		t.Fatalf("write finished artifact: %v", err)
	}

	f.CleanupPartial()

	if _, err := os.Stat(f.SlotPath()); !os.IsNotExist(err) {
		t.Fatalf("partial artifact not removed: %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("finished artifact must survive cleanup: %v", err)
	}
}

func TestCleanupPartialNoSlotIsNoop(t *testing.T) {
	f := testFinalizer(t)
	f.CleanupPartial() // must not panic or create anything
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("unexpected entries after noop cleanup: %v", entries)
	}
}
