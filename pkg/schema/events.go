// pkg/schema/events.go
package schema

// RenderCompleted is published after a job's artifact has been verified,
// renamed, and checkpointed. Downstream distribution consumes this event.
type RenderCompleted struct {
	RunID        string `json:"run_id"`
	Index        int    `json:"index"`
	Profile      string `json:"profile"`
	ArtifactPath string `json:"artifact_path"`
	Attempts     int    `json:"attempts"`
	DurationMs   int64  `json:"duration_ms"`
	HappenedAt   int64  `json:"happened_at"`
}

// RenderSkipped is published when a job exhausts its attempt budget and the
// run moves on without checkpointing the index.
type RenderSkipped struct {
	RunID      string `json:"run_id"`
	Index      int    `json:"index"`
	Profile    string `json:"profile"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`
	HappenedAt int64  `json:"happened_at"`
}

// RunSummary is published once when the run loop exits.
type RunSummary struct {
	RunID      string `json:"run_id"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	Completed  int    `json:"completed"`
	Skipped    []int  `json:"skipped,omitempty"`
	Aborted    bool   `json:"aborted,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	HappenedAt int64  `json:"happened_at"`
}
