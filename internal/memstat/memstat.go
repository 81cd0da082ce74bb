// Package memstat classifies live memory pressure and maps it to the
// resource budget handed to the render invocation.
package memstat

import "github.com/shirou/gopsutil/v3/mem"

// Level is a coarse memory-pressure classification.
type Level int

const (
	Low Level = iota
	Med
	High
)

const (
	lowCeiling = 0.65
	medCeiling = 0.80
)

func (l Level) String() string {
	switch l {
	case Med:
		return "med"
	case High:
		return "high"
	default:
		return "low"
	}
}

// Budget is the min/max memory-usage percentage pair passed to the renderer.
type Budget struct {
	Min int
	Max int
}

// Budget returns the render memory budget for the level. Heavier pressure
// leaves the renderer less headroom.
func (l Level) Budget() Budget {
	switch l {
	case Med:
		return Budget{Min: 60, Max: 90}
	case High:
		return Budget{Min: 50, Max: 85}
	default:
		return Budget{Min: 70, Max: 95}
	}
}

// Sampler produces the pressure level for the next attempt. A func type so
// the run loop can be tested with canned levels.
type Sampler func() Level

// Sample reads live memory counters. Telemetry is advisory: any read
// failure degrades to Low so the run never blocks on a missing counter.
func Sample() Level {
	v, err := mem.VirtualMemory()
	if err != nil || v == nil || v.Total == 0 {
		return Low
	}
	// Compressed-page counts are not exposed here; active+wired is the
	// closest stand-in, with the aggregate percentage as a fallback when
	// the platform reports zeros for both.
	ratio := float64(v.Active+v.Wired) / float64(v.Total)
	if v.Active == 0 && v.Wired == 0 {
		ratio = v.UsedPercent / 100
	}
	return levelFor(ratio)
}

func levelFor(usedRatio float64) Level {
	switch {
	case usedRatio < lowCeiling:
		return Low
	case usedRatio < medCeiling:
		return Med
	default:
		return High
	}
}
