// Package hygiene resets worker processes, disk caches, and OS state
// between render attempts. Every step is best-effort: failures are reported
// as warnings, never as errors that could stall the batch.
package hygiene

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// StepResult reports one hygiene step. Err is nil when the step succeeded.
type StepResult struct {
	Name string
	Err  error
}

// CacheLocator reports extra cache directories to clear. Pluggable so the
// pref-file scan can be swapped for a static manifest.
type CacheLocator func() []string

type runFunc func(ctx context.Context, name string, args ...string) error

// Controller performs the hygiene cycle around every render attempt.
type Controller struct {
	Logger *slog.Logger

	// PoliteQuitApps are asked to quit via scripting before being killed.
	PoliteQuitApps []string
	// NonEssential are force-killed after the polite pass.
	NonEssential []string
	// HelperPatterns match the worker's helper/satellite processes.
	HelperPatterns []string
	// Exempt processes are never killed, whatever else they match.
	Exempt []string

	CachePaths []string
	Locators   []CacheLocator

	run runFunc
}

// New returns a controller with the stock worker process and cache lists.
func New(logger *slog.Logger) *Controller {
	home, _ := os.UserHomeDir()
	return &Controller{
		Logger: logger,
		PoliteQuitApps: []string{
			"Safari", "Slack", "Zoom", "Microsoft Teams", "Dropbox", "OneDrive",
			"Photos", "Music", "Discord", "Notion", "Spotify",
		},
		NonEssential: []string{
			"Slack", "Dropbox", "OneDrive", "photoanalysisd", "photolibraryd",
			"Zoom", "Microsoft Teams", "Discord", "Notion Helper", "CEFHelper", "Spotify",
		},
		HelperPatterns: []string{
			"aerendercore", "dynamiclinkmanager", "dynamiclinkmediaserver",
			"AdobeIPCBroker", "AdobeCRDaemon", "CEPHtmlEngine", "Adobe CEF Helper",
			"Adobe Desktop Service",
		},
		Exempt: []string{
			"Google Chrome", "Google Chrome Helper", "Google Chrome Canary",
			"chromedriver", "Chrome", "Chrome Helper",
		},
		CachePaths: defaultCachePaths(home),
		Locators: []CacheLocator{
			PrefScanLocator(filepath.Join(home, "Library", "Preferences", "Adobe", "After Effects")),
			GlobLocator(
				filepath.Join(home, "Documents", "Adobe After Effects Disk Cache*"),
				filepath.Join(home, "Movies", "Adobe After Effects Disk Cache*"),
				filepath.Join(home, "Library", "Caches", "Adobe", "After Effects", "*Disk*Cache*"),
				"/private/var/folders/*/*/*/com.adobe.AfterEffects*",
				"/private/var/folders/*/*/*/T/com.adobe.AfterEffects*",
				"/private/var/folders/*/*/*/C/com.adobe.AfterEffects*",
			),
		},
		run: runQuiet,
	}
}

func defaultCachePaths(home string) []string {
	return []string{
		filepath.Join(home, "Library", "Caches", "Adobe", "After Effects"),
		filepath.Join(home, "Library", "Application Support", "Adobe", "Common", "Media Cache"),
		filepath.Join(home, "Library", "Application Support", "Adobe", "Common", "Media Cache Files"),
		filepath.Join(home, "Library", "Application Support", "Adobe", "Common", "Team Projects Cache"),
		filepath.Join(home, "Library", "Application Support", "Adobe", "Common", "DynamicLinkMediaServer"),
		filepath.Join(home, "Library", "Caches", "Adobe", "DynamicLinkMediaServer"),
		filepath.Join(home, "Library", "Caches", "Adobe", "GLCache"),
		filepath.Join(home, "Library", "Caches", "Adobe", "UXP"),
	}
}

// Cycle runs the full hygiene sequence. Idempotent and safe to repeat; the
// returned results carry per-step warnings for the caller to log.
func (c *Controller) Cycle(ctx context.Context, tag string) []StepResult {
	c.Logger.Info("hygiene cycle start", "tag", tag)
	results := []StepResult{
		{Name: "close-nonessential", Err: c.closeNonEssential(ctx)},
		{Name: "kill-helpers", Err: c.KillHelpers(ctx)},
		{Name: "clear-caches", Err: c.ClearCaches()},
		{Name: "flush-memory", Err: c.flushInactiveMemory(ctx)},
		{Name: "power-settings", Err: c.lockPowerSettings(ctx)},
		{Name: "indexing-off", Err: c.setIndexing(ctx, false)},
	}
	c.Logger.Info("hygiene cycle complete", "tag", tag, "warnings", countErrs(results))
	return results
}

// Restore re-enables what the cycle turned off for the attempt.
func (c *Controller) Restore(ctx context.Context) {
	if err := c.setIndexing(ctx, true); err != nil {
		c.Logger.Warn("restore indexing failed", "err", err)
	}
}

func (c *Controller) closeNonEssential(ctx context.Context) error {
	for _, app := range c.PoliteQuitApps {
		_ = c.run(ctx, "osascript", "-e", fmt.Sprintf("tell application %q to quit", app))
	}
	time.Sleep(500 * time.Millisecond)
	return c.killMatching(ctx, c.NonEssential)
}

// KillHelpers force-kills the worker's helper processes, honoring the
// exemption list. Exported because termination also needs it.
func (c *Controller) KillHelpers(ctx context.Context) error {
	return c.killMatching(ctx, c.HelperPatterns)
}

func (c *Controller) killMatching(ctx context.Context, patterns []string) error {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}
	var firstErr error
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cmdline, _ := p.CmdlineWithContext(ctx)
		if !ShouldKill(name, cmdline, patterns, c.Exempt) {
			continue
		}
		if err := p.KillWithContext(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("kill %s (pid %d): %w", name, p.Pid, err)
		}
	}
	return firstErr
}

// ShouldKill decides whether a process matches the kill patterns without
// matching the exemption list. Matching is case-insensitive substring, on
// either the short name or the full command line.
func ShouldKill(name, cmdline string, patterns, exempt []string) bool {
	if !matchesAny(name, patterns) && !matchesAny(cmdline, patterns) {
		return false
	}
	return !matchesAny(name, exempt) && !matchesAny(cmdline, exempt)
}

func matchesAny(s string, patterns []string) bool {
	if s == "" {
		return false
	}
	ls := strings.ToLower(s)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(ls, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// ClearCaches removes the known cache directories plus anything the
// locators discover.
func (c *Controller) ClearCaches() error {
	targets := c.cacheTargets()
	if len(targets) == 0 {
		c.Logger.Info("cache cleanup: nothing to remove")
		return nil
	}
	var firstErr error
	for _, p := range targets {
		if err := removeTree(p); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("clear cache %s: %w", p, err)
			}
			continue
		}
		c.Logger.Info("cleared cache", "path", p)
	}
	return firstErr
}

func (c *Controller) cacheTargets() []string {
	seen := map[string]bool{}
	var targets []string
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		if _, err := os.Stat(p); err != nil {
			return
		}
		seen[p] = true
		targets = append(targets, p)
	}
	for _, p := range c.CachePaths {
		add(p)
	}
	for _, loc := range c.Locators {
		for _, p := range loc() {
			add(p)
		}
	}
	return targets
}

func (c *Controller) flushInactiveMemory(ctx context.Context) error {
	// Passwordless sudo first, plain purge as fallback.
	if err := c.run(ctx, "sudo", "-n", "purge"); err == nil {
		return nil
	}
	return c.run(ctx, "purge")
}

func (c *Controller) lockPowerSettings(ctx context.Context) error {
	var firstErr error
	for _, args := range [][]string{
		{"caffeinate", "-dimsu", "-t", "5"},
		{"defaults", "write", "com.adobe.AfterEffects", "NSAppSleepDisabled", "-bool", "true"},
		{"defaults", "write", "com.adobe.aerender", "NSAppSleepDisabled", "-bool", "true"},
	} {
		if err := c.run(ctx, args[0], args[1:]...); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Controller) setIndexing(ctx context.Context, on bool) error {
	state := "off"
	if on {
		state = "on"
	}
	return c.run(ctx, "sudo", "-n", "mdutil", "-a", "-i", state)
}

func countErrs(results []StepResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func runQuiet(ctx context.Context, name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

// removeTree deletes a file or directory tree. A permission fixup pass is
// attempted when the first removal fails.
func removeTree(path string) error {
	if err := os.RemoveAll(path); err == nil {
		return nil
	}
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		_ = os.Chmod(p, 0o700)
		return nil
	})
	return os.RemoveAll(path)
}

// GlobLocator reports cache paths matching any of the glob patterns.
func GlobLocator(patterns ...string) CacheLocator {
	return func() []string {
		var out []string
		for _, pat := range patterns {
			matches, err := filepath.Glob(pat)
			if err != nil {
				continue
			}
			out = append(out, matches...)
		}
		sort.Strings(out)
		return out
	}
}
