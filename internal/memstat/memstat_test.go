package memstat

import "testing"

func TestLevelForThresholds(t *testing.T) {
	cases := []struct {
		ratio float64
		want  Level
	}{
		{0.0, Low},
		{0.64, Low},
		{0.65, Med},
		{0.79, Med},
		{0.80, High},
		{0.99, High},
	}
	for _, c := range cases {
		if got := levelFor(c.ratio); got != c.want {
			t.Fatalf("levelFor(%.2f) = %s, want %s", c.ratio, got, c.want)
		}
	}
}

func TestBudgetMapping(t *testing.T) {
	if b := Low.Budget(); b.Min != 70 || b.Max != 95 {
		t.Fatalf("unexpected low budget: %+v", b)
	}
	if b := Med.Budget(); b.Min != 60 || b.Max != 90 {
		t.Fatalf("unexpected med budget: %+v", b)
	}
	if b := High.Budget(); b.Min != 50 || b.Max != 85 {
		t.Fatalf("unexpected high budget: %+v", b)
	}
}

func TestSampleNeverPanics(t *testing.T) {
	// Counters may be unreadable in CI; Sample must still return a level.
	lvl := Sample()
	if lvl != Low && lvl != Med && lvl != High {
		t.Fatalf("unexpected level: %v", lvl)
	}
}
