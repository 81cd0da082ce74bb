// Package config resolves the orchestrator's environment-driven settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is everything the batch run needs, resolved once at startup.
type Config struct {
	ProjectDir   string
	IndexFile    string
	VariablesDir string
	OutputDir    string

	CheckpointFile string

	RenderBin        string
	WorkerApp        string
	WorkerProcSubstr string
	Composition      string
	OutputSlot       string

	SalesProject     string
	SolutionsProject string

	StartIndex int
	EndIndex   int

	RenderTimeout time.Duration
	ReadyTimeout  time.Duration
	RetryBackoff  time.Duration
	StartDelay    time.Duration
	// MaxAttempts caps retries per job; 0 keeps the historical
	// retry-forever behavior.
	MaxAttempts int

	NATSURL        string
	HandoffSubject string

	LogFormat string
}

// Load reads the environment. All settings default to a runnable local
// layout; only nonsensical values (bad numbers, inverted ranges) fail.
func Load() (Config, error) {
	projectDir := getenv("PROJECT_DIR", "./video_project")

	cfg := Config{
		ProjectDir:       projectDir,
		IndexFile:        getenv("INDEX_FILE", filepath.Join(projectDir, "index.csv")),
		VariablesDir:     getenv("VARIABLES_DIR", filepath.Join(projectDir, "Footage", "Variables")),
		OutputDir:        getenv("OUTPUT_DIR", filepath.Join(projectDir, "render")),
		CheckpointFile:   getenv("CHECKPOINT_FILE", filepath.Join(projectDir, "checkpoint.txt")),
		RenderBin:        getenv("RENDER_BIN", "aerender"),
		WorkerApp:        getenv("WORKER_APP", "Adobe After Effects"),
		WorkerProcSubstr: getenv("WORKER_PROC_SUBSTR", "After Effects"),
		Composition:      getenv("COMPOSITION", "CompositionX"),
		OutputSlot:       getenv("OUTPUT_SLOT", "CompositionX.mp4"),
		SalesProject:     getenv("SALES_PROJECT", filepath.Join(projectDir, "Template_Sales.aep")),
		SolutionsProject: getenv("SOLUTIONS_PROJECT", filepath.Join(projectDir, "Template_Solutions.aep")),
		NATSURL:          getenv("NATS_URL", ""),
		HandoffSubject:   getenv("HANDOFF_SUBJECT", "renders.completed"),
		LogFormat:        getenv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.StartIndex, err = parsePositiveInt(getenv("START_INDEX", "1"), "START_INDEX"); err != nil {
		return Config{}, err
	}
	if cfg.EndIndex, err = parsePositiveInt(getenv("END_INDEX", "100"), "END_INDEX"); err != nil {
		return Config{}, err
	}
	if cfg.EndIndex < cfg.StartIndex {
		return Config{}, fmt.Errorf("END_INDEX %d is below START_INDEX %d", cfg.EndIndex, cfg.StartIndex)
	}

	renderMin, err := parsePositiveInt(getenv("RENDER_TIMEOUT_MIN", "160"), "RENDER_TIMEOUT_MIN")
	if err != nil {
		return Config{}, err
	}
	cfg.RenderTimeout = time.Duration(renderMin) * time.Minute

	readySec, err := parsePositiveInt(getenv("READY_TIMEOUT_SEC", "90"), "READY_TIMEOUT_SEC")
	if err != nil {
		return Config{}, err
	}
	cfg.ReadyTimeout = time.Duration(readySec) * time.Second

	backoffSec, err := parsePositiveInt(getenv("RETRY_BACKOFF_SEC", "10"), "RETRY_BACKOFF_SEC")
	if err != nil {
		return Config{}, err
	}
	cfg.RetryBackoff = time.Duration(backoffSec) * time.Second

	delayMin, err := parseNonNegativeInt(getenv("START_DELAY_MIN", "0"), "START_DELAY_MIN")
	if err != nil {
		return Config{}, err
	}
	cfg.StartDelay = time.Duration(delayMin) * time.Minute

	if cfg.MaxAttempts, err = parseNonNegativeInt(getenv("MAX_ATTEMPTS", "0"), "MAX_ATTEMPTS"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func parsePositiveInt(value, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

func parseNonNegativeInt(value, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative (got %d)", name, v)
	}
	return v, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
