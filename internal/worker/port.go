// Package worker drives the stateful GUI rendering application: launching
// it, probing its scripting interface, invoking renders, and tearing it
// down. The state machine depends only on the ControlPort interface; the
// osascript-backed AppControl is one implementation.
package worker

import (
	"context"
	"time"

	"github.com/felix-eriksson/gtm-automation-engine/internal/profile"
)

// Outcome classifies one render invocation.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "failure"
	}
}

// ControlPort abstracts OS-level control of the worker application.
// Implementations vary per target OS and worker; all methods are
// best-effort and must converge within bounded time.
type ControlPort interface {
	// Launch starts the worker against the profile's project file and
	// performs initial modal dismissal.
	Launch(ctx context.Context, p profile.Profile) error
	// ProbeReady polls the worker's scripting interface up to timeout.
	// False means the caller should treat the attempt as failed.
	ProbeReady(ctx context.Context, timeout time.Duration) bool
	// DismissModals clicks away crash/repair/license dialogs if present.
	DismissModals(ctx context.Context)
	// Terminate requests a graceful quit, then force-terminates, then
	// clears worker state so the next launch starts clean.
	Terminate(ctx context.Context) error
}
