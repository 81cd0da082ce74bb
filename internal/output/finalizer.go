// Package output verifies and finalizes the renderer's fixed-name artifact.
package output

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const indexPlaceholder = "X"

// Finalizer owns the single output slot. Exit code 0 from the renderer is
// not trusted; only a present, non-empty artifact counts as success.
type Finalizer struct {
	Dir      string
	SlotName string // fixed name the renderer writes, e.g. CompositionX.mp4
	Logger   *slog.Logger
}

func NewFinalizer(dir, slotName string, logger *slog.Logger) *Finalizer {
	return &Finalizer{Dir: dir, SlotName: slotName, Logger: logger}
}

// SlotPath is the renderer's fixed output path.
func (f *Finalizer) SlotPath() string {
	return filepath.Join(f.Dir, f.SlotName)
}

// IndexedPath is the permanent job-indexed artifact path.
func (f *Finalizer) IndexedPath(i int) string {
	return filepath.Join(f.Dir, strings.ReplaceAll(f.SlotName, indexPlaceholder, strconv.Itoa(i)))
}

// CleanupPartial removes a stale slot artifact left by an aborted attempt so
// a leftover file can never be mistaken for this attempt's output.
func (f *Finalizer) CleanupPartial() {
	slot := f.SlotPath()
	if _, err := os.Stat(slot); err != nil {
		return
	}
	if err := os.Remove(slot); err != nil {
		f.Logger.Warn("failed to remove partial artifact", "path", slot, "err", err)
		return
	}
	f.Logger.Info("removed partial artifact", "path", slot)
}

// Finalize confirms the artifact for job i and renames it into place.
// Returns the permanent path and whether the job may be checkpointed.
func (f *Finalizer) Finalize(i int) (string, bool) {
	slot := f.SlotPath()
	info, err := os.Stat(slot)
	if err != nil {
		f.Logger.Warn("output artifact missing", "path", slot, "err", err)
		return "", false
	}
	if info.Size() == 0 {
		f.Logger.Warn("output artifact is empty", "path", slot)
		return "", false
	}

	dst := f.IndexedPath(i)
	if err := os.Rename(slot, dst); err != nil {
		f.Logger.Warn("artifact rename failed", "src", slot, "dst", dst, "err", err)
		return "", false
	}
	f.Logger.Info("artifact finalized", "path", dst, "bytes", info.Size())
	return dst, true
}
