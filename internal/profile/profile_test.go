package profile

import (
	"os"
	"path/filepath"
	"testing"
)

var sel = Selector{
	Sales:     Profile{Name: "sales", ProjectFile: "/proj/Template_Sales.aep"},
	Solutions: Profile{Name: "solutions", ProjectFile: "/proj/Template_Solutions.aep"},
}

func TestForIndexScenario(t *testing.T) {
	tokens := []string{"sales", "solutions", "sales"}

	for i, want := range map[int]string{1: "sales", 2: "solutions", 3: "sales"} {
		if got := sel.ForIndex(i, tokens); got.Name != want {
			t.Fatalf("index %d: got %s, want %s", i, got.Name, want)
		}
	}

	// Out of range falls back to the default.
	if got := sel.ForIndex(4, tokens); got.Name != "solutions" {
		t.Fatalf("index 4: got %s, want solutions fallback", got.Name)
	}
}

func TestForIndexIsTotal(t *testing.T) {
	cases := []struct {
		name   string
		i      int
		tokens []string
	}{
		{"empty list", 1, nil},
		{"zero index", 0, []string{"sales"}},
		{"negative index", -3, []string{"sales"}},
		{"unknown token", 1, []string{"marketing"}},
		{"blank token", 1, []string{"  "}},
	}
	for _, c := range cases {
		if got := sel.ForIndex(c.i, c.tokens); got.Name != "solutions" {
			t.Fatalf("%s: got %s, want solutions", c.name, got.Name)
		}
	}
}

func TestForIndexPrefixMatch(t *testing.T) {
	if got := sel.ForIndex(1, []string{"Sales Team"}); got.Name != "sales" {
		t.Fatalf("prefix match failed: got %s", got.Name)
	}
	if got := sel.ForIndex(1, []string{"SOLUTIONS-EU"}); got.Name != "solutions" {
		t.Fatalf("prefix match failed: got %s", got.Name)
	}
}

func TestLoadTokensMixedDelimiters(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "index.csv")
	if err := os.WriteFile(path, []byte("sales,solutions\r\nsales\n\n ,solutions"), 0o644); err != nil {
		t.Fatalf("write index file: %v", err)
	}

	tokens, err := LoadTokens(path)
	if err != nil {
		t.Fatalf("LoadTokens returned error: %v", err)
	}
	want := []string{"sales", "solutions", "sales", "solutions"}
	if len(tokens) != len(want) {
		t.Fatalf("unexpected token count: got %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d: got %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestLoadTokensMissingFile(t *testing.T) {
	tokens, err := LoadTokens(filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil {
		t.Fatal("expected error for missing index file")
	}
	if len(tokens) != 0 {
		t.Fatalf("expected empty token list, got %v", tokens)
	}
	// The contract still holds: selection works with the empty list.
	if got := sel.ForIndex(1, tokens); got.Name != "solutions" {
		t.Fatalf("fallback broken with empty tokens: got %s", got.Name)
	}
}
