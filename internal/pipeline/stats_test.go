package pipeline

import (
	"testing"
	"time"

	"curator/internal/state"
)

func phasesForTest() []state.Phase {
	return state.Phases()
}

func TestEstimateETAUnknownWithoutSamples(t *testing.T) {
	stats := NewStats(0)
	eta, known := stats.EstimateETA(map[state.Phase]int{state.PhaseCache: 5})
	if known {
		t.Fatalf("ETA should be unknown with no samples and no default, got %v", eta)
	}
}

func TestEstimateETAUsesDefaultFallback(t *testing.T) {
	stats := NewStats(2 * time.Second)
	eta, known := stats.EstimateETA(map[state.Phase]int{state.PhaseCache: 3})
	if !known || eta != 6*time.Second {
		t.Fatalf("eta = %v known = %v, want 6s", eta, known)
	}
}

func TestEstimateETAPrefersObservedAverages(t *testing.T) {
	stats := NewStats(time.Minute)
	stats.RecordAttempt(state.PhaseCache, true, 2*time.Second)
	stats.RecordAttempt(state.PhaseCache, true, 4*time.Second)

	eta, known := stats.EstimateETA(map[state.Phase]int{state.PhaseCache: 2})
	if !known || eta != 6*time.Second {
		t.Fatalf("eta = %v known = %v, want 6s from 3s average", eta, known)
	}
}

func TestEstimateETANeverNegative(t *testing.T) {
	stats := NewStats(time.Second)
	stats.RecordAttempt(state.PhaseSync, true, -5*time.Second)
	eta, _ := stats.EstimateETA(map[state.Phase]int{state.PhaseSync: 10})
	if eta < 0 {
		t.Fatalf("eta must never be negative, got %v", eta)
	}
}

func TestEstimateETADecreasesAsWorkCompletes(t *testing.T) {
	stats := NewStats(0)
	stats.RecordAttempt(state.PhaseCache, true, time.Second)

	previous := time.Duration(-1)
	for remaining := 10; remaining >= 0; remaining-- {
		eta, known := stats.EstimateETA(map[state.Phase]int{state.PhaseCache: remaining})
		if remaining == 0 {
			if known {
				t.Fatalf("zero remaining should yield unknown, got %v", eta)
			}
			break
		}
		if !known {
			t.Fatal("expected known ETA with samples")
		}
		if previous >= 0 && eta >= previous {
			t.Fatalf("eta should decrease: %v then %v", previous, eta)
		}
		previous = eta
	}
}

func TestReportCountsAndAverages(t *testing.T) {
	stats := NewStats(0)
	stats.RecordAttempt(state.PhaseCategorize, true, 2*time.Second)
	stats.RecordAttempt(state.PhaseCategorize, false, 4*time.Second)

	report := stats.Report()
	phase := report.Phases[state.PhaseCategorize]
	if phase.Entered != 2 || phase.Succeeded != 1 || phase.Failed != 1 {
		t.Fatalf("unexpected counts %+v", phase)
	}
	if phase.AvgDuration != 3*time.Second {
		t.Fatalf("avg = %v, want 3s", phase.AvgDuration)
	}
	if report.Elapsed < 0 {
		t.Fatal("elapsed must not be negative")
	}
}
