// Package checkpoint persists the last completed job index so interrupted
// runs resume instead of re-rendering.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Load reads the last completed index. A missing file means a fresh run and
// reports index 0.
func Load(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	if idx < 0 {
		return 0, fmt.Errorf("checkpoint %s holds negative index %d", path, idx)
	}
	return idx, nil
}

// Store writes the index atomically (temp file + rename) so a crash during
// the write never leaves a torn checkpoint.
func Store(path string, idx int) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(strconv.Itoa(idx) + "\n"); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint into place: %w", err)
	}
	return nil
}
