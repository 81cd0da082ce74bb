package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/felix-eriksson/gtm-automation-engine/internal/memstat"
	"github.com/felix-eriksson/gtm-automation-engine/internal/profile"
)

// Invoker runs the headless render command against an already-launched
// worker under a hard wall-clock timeout.
type Invoker struct {
	Bin         string // render binary, aerender-compatible CLI
	Composition string
	OutputPath  string // fixed slot the renderer writes
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Invoke executes the render for the profile's project with the memory
// budget sized by the resource monitor. Timeout and non-zero exit are both
// retryable; exit 0 still needs finalizer confirmation.
func (inv *Invoker) Invoke(ctx context.Context, p profile.Profile, b memstat.Budget) (Outcome, error) {
	if _, err := exec.LookPath(inv.Bin); err != nil {
		return OutcomeFailure, fmt.Errorf("render binary: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, inv.Timeout)
	defer cancel()

	args := inv.buildArgs(p, b)
	inv.Logger.Info("render starting", "project", p.ProjectFile, "comp", inv.Composition,
		"mem_min", b.Min, "mem_max", b.Max, "timeout", inv.Timeout)

	out, err := exec.CommandContext(ctx, inv.Bin, args...).CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return OutcomeTimeout, fmt.Errorf("render exceeded %s wall clock", inv.Timeout)
	}
	if err != nil {
		return OutcomeFailure, fmt.Errorf("render failed: %w\n%s", err, tailLines(string(out), 3))
	}
	return OutcomeSuccess, nil
}

func (inv *Invoker) buildArgs(p profile.Profile, b memstat.Budget) []string {
	return []string{
		"-reuse",
		"-project", p.ProjectFile,
		"-comp", inv.Composition,
		"-output", inv.OutputPath,
		"-v", "ERRORS_AND_PROGRESS",
		"-mem_usage", strconv.Itoa(b.Min), strconv.Itoa(b.Max),
		"-close", "DO_NOT_SAVE_CHANGES",
	}
}

// tailLines keeps the last n non-empty lines of command output for error
// context.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var kept []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return strings.Join(kept, "\n")
}
