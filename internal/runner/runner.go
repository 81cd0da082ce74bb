// Package runner is the top-level control loop: it walks the job range in
// ascending order, drives each attempt through hygiene → launch → invoke →
// finalize, and only checkpoints a job once its artifact is verified.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felix-eriksson/gtm-automation-engine/internal/assets"
	"github.com/felix-eriksson/gtm-automation-engine/internal/checkpoint"
	"github.com/felix-eriksson/gtm-automation-engine/internal/hygiene"
	"github.com/felix-eriksson/gtm-automation-engine/internal/memstat"
	"github.com/felix-eriksson/gtm-automation-engine/internal/profile"
	"github.com/felix-eriksson/gtm-automation-engine/internal/worker"
	"github.com/felix-eriksson/gtm-automation-engine/pkg/schema"
)

// RenderInvoker runs one render against the launched worker.
type RenderInvoker interface {
	Invoke(ctx context.Context, p profile.Profile, b memstat.Budget) (worker.Outcome, error)
}

// HygieneController resets worker and OS state around attempts.
type HygieneController interface {
	Cycle(ctx context.Context, tag string) []hygiene.StepResult
	Restore(ctx context.Context)
}

// Finalizer verifies and renames the output artifact.
type Finalizer interface {
	CleanupPartial()
	Finalize(i int) (string, bool)
}

// Publisher hands finished work downstream. May be nil when no bus is
// configured; publish failures never block the loop.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// JobStatus is a job's terminal state within the run.
type JobStatus string

const (
	StatusCompleted JobStatus = "completed"
	StatusSkipped   JobStatus = "skipped"
)

// RunState carries the run's identity and counters through the loop instead
// of package-level globals.
type RunState struct {
	RunID     string
	StartedAt time.Time
	Completed int
	Skipped   []int
	Aborted   bool
}

// Runner wires the components of the batch loop. All collaborators are
// interfaces or func values so the state machine can be exercised without a
// real worker application.
type Runner struct {
	Logger *slog.Logger

	Control   worker.ControlPort
	Invoker   RenderInvoker
	Hygiene   HygieneController
	Sample    memstat.Sampler
	Select    func(i int) profile.Profile
	Swap      func(i int) []assets.Warning
	Finalizer Finalizer

	CheckpointPath string

	Start int
	End   int

	ReadyTimeout time.Duration
	Backoff      time.Duration
	// MaxAttempts caps retries per job; 0 retries forever.
	MaxAttempts int

	Bus     Publisher
	Subject string
}

// Run processes every index in [Start, End], resuming past the checkpoint.
// It returns early only on a checkpoint persistence failure or when the
// context is cancelled at a job boundary.
func (r *Runner) Run(ctx context.Context) (RunState, error) {
	state := RunState{RunID: uuid.NewString(), StartedAt: time.Now()}

	last, err := checkpoint.Load(r.CheckpointPath)
	if err != nil {
		return state, fmt.Errorf("load checkpoint: %w", err)
	}
	start := r.Start
	if last >= start {
		start = last + 1
		r.Logger.Info("resuming from checkpoint", "last_completed", last, "next", start)
	}

	// The attempt path never observes cancellation: an interrupt lets the
	// job in flight reach its terminal transition, then is honored at the
	// next job boundary.
	work := context.WithoutCancel(ctx)

	r.logSteps(r.Logger, r.Hygiene.Cycle(work, "startup"))

	for i := start; i <= r.End; i++ {
		// Stop flag is honored at job boundaries only, so a partially
		// rendered job is never checkpointed.
		if ctx.Err() != nil {
			state.Aborted = true
			r.Logger.Info("interrupt received, stopping at job boundary", "next_job", i)
			break
		}

		prof := r.Select(i)
		log := r.Logger.With("job", i, "profile", prof.Name)
		log.Info("job start")

		// Bindings are stable for the job; retries reuse them.
		if warnings := r.Swap(i); len(warnings) > 0 {
			log.Warn("job prepared with degraded assets", "missing", len(warnings))
		}

		jobStart := time.Now()
		status, attempts, artifact := r.attemptLoop(work, i, prof, log)

		switch status {
		case StatusCompleted:
			if err := checkpoint.Store(r.CheckpointPath, i); err != nil {
				return state, fmt.Errorf("persist checkpoint for job %d: %w", i, err)
			}
			state.Completed++
			log.Info("job complete", "attempts", attempts, "artifact", artifact)
			r.publish(schema.RenderCompleted{
				RunID:        state.RunID,
				Index:        i,
				Profile:      prof.Name,
				ArtifactPath: artifact,
				Attempts:     attempts,
				DurationMs:   time.Since(jobStart).Milliseconds(),
				HappenedAt:   time.Now().Unix(),
			})
		case StatusSkipped:
			state.Skipped = append(state.Skipped, i)
			log.Error("job skipped after exhausting attempts", "attempts", attempts)
			r.publish(schema.RenderSkipped{
				RunID:      state.RunID,
				Index:      i,
				Profile:    prof.Name,
				Attempts:   attempts,
				Error:      "attempt budget exhausted",
				HappenedAt: time.Now().Unix(),
			})
		}
	}

	_ = r.Control.Terminate(work)
	r.publish(schema.RunSummary{
		RunID:      state.RunID,
		StartIndex: r.Start,
		EndIndex:   r.End,
		Completed:  state.Completed,
		Skipped:    state.Skipped,
		Aborted:    state.Aborted,
		DurationMs: time.Since(state.StartedAt).Milliseconds(),
		HappenedAt: time.Now().Unix(),
	})
	return state, nil
}

// attemptLoop retries one job until it completes or is skipped. Every failed
// attempt ends in a full teardown before the backoff.
func (r *Runner) attemptLoop(ctx context.Context, i int, prof profile.Profile, log *slog.Logger) (JobStatus, int, string) {
	attempt := 0
	for {
		attempt++
		aLog := log.With("attempt", attempt)
		aLog.Info("attempt start")

		_ = r.Control.Terminate(ctx)
		r.Finalizer.CleanupPartial()
		r.logSteps(aLog, r.Hygiene.Cycle(ctx, fmt.Sprintf("job %d attempt %d", i, attempt)))

		artifact, ok := r.runAttempt(ctx, i, prof, aLog)
		r.Hygiene.Restore(ctx)

		if ok {
			// Tear down even on success so the next job starts clean.
			_ = r.Control.Terminate(ctx)
			return StatusCompleted, attempt, artifact
		}

		_ = r.Control.Terminate(ctx)
		if r.MaxAttempts > 0 && attempt >= r.MaxAttempts {
			return StatusSkipped, attempt, ""
		}
		aLog.Info("retrying after backoff", "backoff", r.Backoff)
		sleepCtx(ctx, r.Backoff)
	}
}

// runAttempt executes one launch → probe → invoke → finalize cycle.
func (r *Runner) runAttempt(ctx context.Context, i int, prof profile.Profile, aLog *slog.Logger) (string, bool) {
	if err := r.Control.Launch(ctx, prof); err != nil {
		aLog.Warn("launch failed", "err", err)
		return "", false
	}
	if !r.Control.ProbeReady(ctx, r.ReadyTimeout) {
		aLog.Warn("scripting interface never became ready, relaunching once")
		_ = r.Control.Terminate(ctx)
		if err := r.Control.Launch(ctx, prof); err != nil {
			aLog.Warn("relaunch failed", "err", err)
			return "", false
		}
	}

	level := r.Sample()
	budget := level.Budget()
	aLog.Info("resource pressure sampled", "level", level.String(), "mem_min", budget.Min, "mem_max", budget.Max)

	outcome, err := r.Invoker.Invoke(ctx, prof, budget)
	r.logSteps(aLog, r.Hygiene.Cycle(ctx, fmt.Sprintf("post-render job %d", i)))

	switch outcome {
	case worker.OutcomeTimeout:
		aLog.Warn("render timed out", "err", err)
		return "", false
	case worker.OutcomeFailure:
		aLog.Warn("render failed", "err", err)
		return "", false
	}

	// Exit code 0 is not proof of a usable artifact.
	path, ok := r.Finalizer.Finalize(i)
	if !ok {
		aLog.Warn("render exited cleanly but artifact is missing or empty")
		return "", false
	}
	return path, true
}

func (r *Runner) publish(v any) {
	if r.Bus == nil {
		return
	}
	if err := r.Bus.PublishJSON(r.Subject, v); err != nil {
		r.Logger.Warn("handoff publish failed", "subject", r.Subject, "err", err)
	}
}

func (r *Runner) logSteps(log *slog.Logger, results []hygiene.StepResult) {
	for _, res := range results {
		if res.Err != nil {
			log.Warn("hygiene step degraded", "step", res.Name, "err", res.Err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
