// Package assets copies per-index source files into the fixed slots the
// renderer reads. A missing source degrades to a placeholder instead of
// failing the job.
package assets

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// indexPlaceholder is the marker in a binding pattern that gets replaced
// with the job index to form the source file name. The pattern with the
// marker kept literal is the fixed slot name.
const indexPlaceholder = "X"

// Binding pairs a logical asset category with its file name pattern.
type Binding struct {
	Category string
	Pattern  string
}

// Warning records one degraded category for a swap.
type Warning struct {
	Category string
	Source   string
}

// DefaultBindings lists the variable-driven media assets swapped per index.
func DefaultBindings() []Binding {
	return []Binding{
		{"Linkedin", "LinkedinX.png"},
		{"Names", "NameX.csv"},
		{"Websites", "WebsiteX.mp4"},
		{"Companies", "CompanyX.csv"},
		{"Clones", "CloneX.mp4"},
		{"Voices", "VoiceX.wav"},
		{"Color_1_X", "Color_1_X.csv"},
		{"Color_2_X", "Color_2_X.csv"},
		{"Profiles", "ProfileX.png"},
		{"Greetings", "GreetingX.csv"},
		{"Logos", "LogoX.png"},
	}
}

// Swapper materializes one job's asset bindings into the shared slots.
// Strictly sequential processing is what keeps the slots single-writer.
type Swapper struct {
	Root     string
	Bindings []Binding
	Logger   *slog.Logger
}

func NewSwapper(root string, logger *slog.Logger) *Swapper {
	return &Swapper{Root: root, Bindings: DefaultBindings(), Logger: logger}
}

// Swap prepares every binding for index i. It never fails: a missing source
// leaves the slot's previous content in place, or creates an empty
// placeholder so downstream steps do not trip on a missing file. Exactly one
// warning is returned per degraded category.
func (s *Swapper) Swap(i int) []Warning {
	var warnings []Warning
	for _, b := range s.Bindings {
		src := filepath.Join(s.Root, b.Category, strings.ReplaceAll(b.Pattern, indexPlaceholder, strconv.Itoa(i)))
		dst := filepath.Join(s.Root, b.Category, b.Pattern)

		if _, err := os.Stat(src); err == nil {
			if err := copyFile(src, dst); err != nil {
				s.Logger.Warn("asset copy failed, keeping slot as-is", "category", b.Category, "src", src, "err", err)
				warnings = append(warnings, Warning{Category: b.Category, Source: src})
				continue
			}
			s.Logger.Info("asset swapped", "category", b.Category, "src", filepath.Base(src), "slot", filepath.Base(dst))
			continue
		}

		if _, err := os.Stat(dst); err != nil {
			if err := touch(dst); err != nil {
				s.Logger.Warn("placeholder creation failed", "category", b.Category, "slot", dst, "err", err)
			}
		}
		s.Logger.Warn("asset missing, render continues degraded", "category", b.Category, "src", src)
		warnings = append(warnings, Warning{Category: b.Category, Source: src})
	}
	return warnings
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create slot directory: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create slot %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close slot %s: %w", dst, err)
	}
	return nil
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
