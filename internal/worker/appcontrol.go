package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/felix-eriksson/gtm-automation-engine/internal/profile"
)

// Modal windows the worker shows after a crash or bad shutdown. Matching is
// against window titles; buttons are clicked by title.
const dismissModalsScript = `
try
	tell application "System Events"
		if exists process "%[1]s" then
			tell process "%[1]s"
				repeat with w in windows
					try
						set wname to (name of w as text)
						if (wname contains "Crash") or (wname contains "problem") or (wname contains "Safe Mode") or (wname contains "Repair") or (wname contains "Scripting Plugin is not installed") or (wname contains "Unable to execute script") then
							repeat with b in buttons of w
								try
									set t to (title of b as text)
									if t is in {"Continue", "OK", "Close", "Don't Send", "Ignore"} then
										click b
										exit repeat
									end if
								end try
							end repeat
						end if
					end try
				end repeat
			end tell
		end if
	end tell
end try
`

const dismissCrashReporterScript = `
try
	tell application "System Events"
		if exists process "Adobe Crash Reporter" then
			tell process "Adobe Crash Reporter"
				repeat with w in windows
					repeat with b in buttons of w
						try
							set t to (title of b as text)
							if t is in {"Quit", "Close", "Don't Send", "OK"} then click b
						end try
					end repeat
				end repeat
			end tell
		end if
	end tell
end try
`

// AppControl drives the worker through `open` and osascript. All commands
// are quiet and best-effort; state convergence is enforced by bounded polls.
type AppControl struct {
	AppName      string // application name for open/quit/DoScript
	ProcessName  string // accessibility process name for modal dismissal
	ProcSubstr   string // substring identifying worker processes
	TermPatterns []string

	SettleLaunch  time.Duration
	SettleDismiss time.Duration
	PollInterval  time.Duration
	KillGrace     time.Duration

	SavedStateDir string

	// ClearCaches and KillHelpers are wired to the hygiene controller so
	// termination leaves no worker disk state behind.
	ClearCaches func() error
	KillHelpers func(ctx context.Context) error

	Logger *slog.Logger

	run func(ctx context.Context, name string, args ...string) error
}

// NewAppControl returns a control port for the named worker application.
func NewAppControl(appName, procSubstr string, logger *slog.Logger) *AppControl {
	home, _ := os.UserHomeDir()
	return &AppControl{
		AppName:     appName,
		ProcessName: appName + " 2025",
		ProcSubstr:  procSubstr,
		TermPatterns: []string{
			appName, procSubstr, "aerender", "aerendercore",
			"dynamiclinkmanager", "dynamiclinkmediaserver",
			"AdobeIPCBroker", "CEPHtmlEngine", "Adobe CEF Helper",
			"Adobe Crash Reporter", "Adobe Notification Client", "Adobe Desktop Service",
		},
		SettleLaunch:  8 * time.Second,
		SettleDismiss: 22 * time.Second,
		PollInterval:  1500 * time.Millisecond,
		KillGrace:     8 * time.Second,
		SavedStateDir: filepath.Join(home, "Library", "Saved Application State"),
		Logger:        logger,
		run:           runQuiet,
	}
}

// Launch opens the worker with the profile's project, waits the settle
// delay, and dismisses any startup modal with a bare keystroke before the
// accessibility scan takes over.
func (a *AppControl) Launch(ctx context.Context, p profile.Profile) error {
	if err := a.run(ctx, "open", "-a", a.AppName, p.ProjectFile); err != nil {
		return fmt.Errorf("open %s with %s: %w", a.AppName, p.ProjectFile, err)
	}
	a.Logger.Info("worker launching", "app", a.AppName, "project", p.ProjectFile)

	if !sleepCtx(ctx, a.SettleLaunch) {
		return ctx.Err()
	}
	_ = a.run(ctx, "osascript", "-e", `tell application "System Events" to keystroke return`)
	if !sleepCtx(ctx, a.SettleDismiss) {
		return ctx.Err()
	}
	return nil
}

// ProbeReady polls the scripting interface with a trivial expression until
// it responds or the timeout elapses. Each poll also sweeps modals, since a
// modal is the usual reason scripting stays unresponsive.
func (a *AppControl) ProbeReady(ctx context.Context, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return false
		}
		a.DismissModals(ctx)
		if a.doScript(ctx, "1+1;") == nil {
			return true
		}
		if !sleepCtx(ctx, a.PollInterval) {
			return false
		}
	}
	return false
}

// DismissModals sweeps known crash/repair/script-error dialogs.
func (a *AppControl) DismissModals(ctx context.Context) {
	_ = a.run(ctx, "osascript", "-e", fmt.Sprintf(dismissModalsScript, a.ProcessName))
	_ = a.run(ctx, "osascript", "-e", dismissCrashReporterScript)
}

// Terminate converges on "worker absent": in-app purge when scripting is
// responsive, graceful quit, TERM sweep, bounded wait, forced kill of
// stragglers, then cache and saved-session cleanup. It proceeds past the
// grace window rather than waiting forever.
func (a *AppControl) Terminate(ctx context.Context) error {
	if a.ProbeReady(ctx, 5*time.Second) {
		_ = a.doScript(ctx, "app.purge(PurgeTarget.ALL_CACHES);")
	}

	_ = a.run(ctx, "osascript", "-e", fmt.Sprintf("tell application %q to quit", a.AppName))
	_ = a.run(ctx, "osascript", "-e", dismissCrashReporterScript)

	a.signalWorkers(ctx, false)

	deadline := time.Now().Add(a.KillGrace)
	for time.Now().Before(deadline) {
		if !a.workerPresent(ctx) {
			break
		}
		if !sleepCtx(ctx, 200*time.Millisecond) {
			break
		}
	}
	if a.workerPresent(ctx) {
		a.Logger.Warn("worker still present after grace window, forcing kill", "app", a.AppName)
		a.signalWorkers(ctx, true)
	}

	if a.KillHelpers != nil {
		if err := a.KillHelpers(ctx); err != nil {
			a.Logger.Warn("helper kill failed", "err", err)
		}
	}
	if a.ClearCaches != nil {
		if err := a.ClearCaches(); err != nil {
			a.Logger.Warn("cache clear failed", "err", err)
		}
	}
	removed := RemoveSavedState(a.SavedStateDir, []string{"AfterEffects", "After Effects", "com.adobe.AfterEffects"})
	if len(removed) > 0 {
		a.Logger.Info("removed saved session state", "dirs", removed)
	}
	a.Logger.Info("worker terminated", "app", a.AppName)
	return nil
}

func (a *AppControl) doScript(ctx context.Context, js string) error {
	return a.run(ctx, "osascript", "-e", fmt.Sprintf("tell application %q to DoScript %q", a.AppName, js))
}

// signalWorkers sends TERM (or KILL when force) to every process matching
// the termination patterns.
func (a *AppControl) signalWorkers(ctx context.Context, force bool) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		a.Logger.Warn("process enumeration failed", "err", err)
		return
	}
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !matchesAnyFold(name, a.TermPatterns) {
			continue
		}
		if force {
			_ = p.KillWithContext(ctx)
		} else {
			_ = p.TerminateWithContext(ctx)
		}
	}
}

func (a *AppControl) workerPresent(ctx context.Context) bool {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false
	}
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err == nil && strings.Contains(strings.ToLower(name), strings.ToLower(a.ProcSubstr)) {
			return true
		}
	}
	return false
}

// RemoveSavedState deletes saved-session directories whose names contain
// any needle, and reports what was removed.
func RemoveSavedState(root string, needles []string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var removed []string
	for _, e := range entries {
		if !matchesAnyFold(e.Name(), needles) {
			continue
		}
		path := filepath.Join(root, e.Name())
		if err := os.RemoveAll(path); err == nil {
			removed = append(removed, e.Name())
		}
	}
	return removed
}

func matchesAnyFold(s string, patterns []string) bool {
	ls := strings.ToLower(s)
	for _, p := range patterns {
		if p != "" && strings.Contains(ls, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func runQuiet(ctx context.Context, name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Run()
}
