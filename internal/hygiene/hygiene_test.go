package hygiene

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func quietController(t *testing.T) (*Controller, *[][]string) {
	t.Helper()
	var calls [][]string
	c := &Controller{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		run: func(ctx context.Context, name string, args ...string) error {
			calls = append(calls, append([]string{name}, args...))
			return nil
		},
	}
	return c, &calls
}

func TestShouldKillExemptionWins(t *testing.T) {
	patterns := []string{"CEFHelper", "Helper"}
	exempt := []string{"Google Chrome", "Chrome Helper"}

	if !ShouldKill("Notion Helper", "", patterns, exempt) {
		t.Fatal("Notion Helper should match the kill patterns")
	}
	if ShouldKill("Google Chrome Helper", "", patterns, exempt) {
		t.Fatal("exempt process must never be killed")
	}
	if ShouldKill("Chrome Helper (Renderer)", "", patterns, exempt) {
		t.Fatal("exemption must match by substring")
	}
	if ShouldKill("Finder", "", patterns, exempt) {
		t.Fatal("non-matching process should be left alone")
	}
}

func TestShouldKillMatchesCmdline(t *testing.T) {
	patterns := []string{"aerendercore"}
	if !ShouldKill("helper", "/Applications/aerendercore --serve", patterns, nil) {
		t.Fatal("pattern should match against the command line")
	}
	if ShouldKill("helper", "/usr/bin/true", patterns, nil) {
		t.Fatal("unexpected match")
	}
}

func TestShouldKillCaseInsensitive(t *testing.T) {
	if !ShouldKill("ADOBEIPCBROKER", "", []string{"AdobeIPCBroker"}, nil) {
		t.Fatal("matching must be case-insensitive")
	}
}

func TestClearCachesRemovesKnownAndDiscovered(t *testing.T) {
	c, _ := quietController(t)
	tmp := t.TempDir()

	static := filepath.Join(tmp, "Media Cache")
	discovered := filepath.Join(tmp, "Custom Disk Cache")
	survivor := filepath.Join(tmp, "Projects")
	for _, d := range []string{static, discovered, survivor} {
		if err := os.MkdirAll(filepath.Join(d, "sub"), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(d, "sub", "f.bin"), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	c.CachePaths = []string{static, filepath.Join(tmp, "does-not-exist")}
	c.Locators = []CacheLocator{func() []string { return []string{discovered, discovered} }}

	if err := c.ClearCaches(); err != nil {
		t.Fatalf("ClearCaches returned error: %v", err)
	}
	for _, gone := range []string{static, discovered} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Fatalf("cache %s should have been removed: %v", gone, err)
		}
	}
	if _, err := os.Stat(survivor); err != nil {
		t.Fatalf("unrelated directory must survive: %v", err)
	}
}

func TestCycleReportsWarningsWithoutFailing(t *testing.T) {
	c, _ := quietController(t)
	stepErr := errors.New("command unavailable")
	c.run = func(ctx context.Context, name string, args ...string) error { return stepErr }

	results := c.Cycle(context.Background(), "test")
	if len(results) == 0 {
		t.Fatal("expected step results")
	}
	names := map[string]bool{}
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"close-nonessential", "clear-caches", "flush-memory", "indexing-off"} {
		if !names[want] {
			t.Fatalf("missing step %s in %v", want, results)
		}
	}
	// Cycle must be repeat-safe even when every command fails.
	_ = c.Cycle(context.Background(), "again")
}

func TestRestoreTurnsIndexingBackOn(t *testing.T) {
	c, calls := quietController(t)
	c.Restore(context.Background())

	if len(*calls) != 1 {
		t.Fatalf("expected a single command, got %v", *calls)
	}
	got := (*calls)[0]
	last := got[len(got)-1]
	if last != "on" {
		t.Fatalf("expected indexing on, got %v", got)
	}
}

func TestPrefScanLocatorFindsCachePaths(t *testing.T) {
	tmp := t.TempDir()
	prefs := filepath.Join(tmp, "prefs")
	cacheDir := filepath.Join(tmp, "Users", "render", "AE Cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.MkdirAll(prefs, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	pref := `["Disk Cache"]
	"Disk Cache Folder" = "` + cacheDir + `"
`
	if err := os.WriteFile(filepath.Join(prefs, "prefs.txt"), []byte(pref), 0o644); err != nil {
		t.Fatalf("write prefs: %v", err)
	}
	// Binary-ish file with the wrong extension is ignored.
	if err := os.WriteFile(filepath.Join(prefs, "blob.dat"), []byte(cacheDir), 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}

	got := PrefScanLocator(prefs)()
	if len(got) != 1 || got[0] != cacheDir {
		t.Fatalf("locator found %v, want [%s]", got, cacheDir)
	}
}

func TestPrefScanLocatorMissingRoot(t *testing.T) {
	if got := PrefScanLocator(filepath.Join(t.TempDir(), "absent"))(); got != nil {
		t.Fatalf("expected nil for missing prefs root, got %v", got)
	}
}

func TestGlobLocatorOnlyExisting(t *testing.T) {
	tmp := t.TempDir()
	hit := filepath.Join(tmp, "Disk Cache 1")
	if err := os.MkdirAll(hit, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got := GlobLocator(filepath.Join(tmp, "Disk Cache*"), filepath.Join(tmp, "nothing*"))()
	if len(got) != 1 || got[0] != hit {
		t.Fatalf("glob locator found %v, want [%s]", got, hit)
	}
}
