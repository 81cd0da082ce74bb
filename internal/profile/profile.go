// Package profile maps a job index to a render template choice using the
// external index token file.
package profile

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Profile is a named render configuration backed by a project file.
type Profile struct {
	Name        string
	ProjectFile string
}

// Selector chooses between the known profiles. Solutions is the fixed
// default: a bad or missing mapping row must never halt the batch.
type Selector struct {
	Sales     Profile
	Solutions Profile
}

var tokenSplit = regexp.MustCompile(`[,\r\n]+`)

// LoadTokens reads the flat index file into an ordered token list. A missing
// or unreadable file is reported as an error alongside an empty list; the
// caller logs it and every job falls back to the default profile.
func LoadTokens(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index file %s: %w", path, err)
	}
	parts := tokenSplit.Split(string(raw), -1)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens, nil
}

// ForIndex is total: any index and any token list (including empty) yields a
// valid profile. Tokens match by prefix; anything unrecognized or out of
// range defaults to Solutions.
func (s Selector) ForIndex(i int, tokens []string) Profile {
	if i >= 1 && i <= len(tokens) {
		v := strings.ToLower(strings.TrimSpace(tokens[i-1]))
		switch {
		case strings.HasPrefix(v, "sale"):
			return s.Sales
		case strings.HasPrefix(v, "solu"):
			return s.Solutions
		}
	}
	return s.Solutions
}
