package pipeline

import (
	"sync"
	"time"

	"curator/internal/state"
)

type phaseTally struct {
	entered   int
	succeeded int
	failed    int
	total     time.Duration
}

// Stats aggregates per-phase attempt counts and durations for one run and
// derives the estimated time to completion.
type Stats struct {
	mu         sync.Mutex
	start      time.Time
	defaultAvg time.Duration
	phases     map[state.Phase]*phaseTally
}

// NewStats creates run statistics. defaultAvg seeds ETA estimates for phases
// without samples yet; zero means such phases contribute an unknown ETA.
func NewStats(defaultAvg time.Duration) *Stats {
	return &Stats{
		start:      time.Now(),
		defaultAvg: defaultAvg,
		phases:     make(map[state.Phase]*phaseTally),
	}
}

// RecordAttempt registers one finished phase execution.
func (s *Stats) RecordAttempt(phase state.Phase, ok bool, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tally := s.phases[phase]
	if tally == nil {
		tally = &phaseTally{}
		s.phases[phase] = tally
	}
	tally.entered++
	if ok {
		tally.succeeded++
	} else {
		tally.failed++
	}
	tally.total += duration
}

// PhaseReport summarizes one phase's attempts.
type PhaseReport struct {
	Entered     int
	Succeeded   int
	Failed      int
	AvgDuration time.Duration
}

// Report summarizes the whole run so far.
type Report struct {
	Phases  map[state.Phase]PhaseReport
	Elapsed time.Duration
}

// Report returns a snapshot of counters and averages.
func (s *Stats) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Report{
		Phases:  make(map[state.Phase]PhaseReport, len(s.phases)),
		Elapsed: time.Since(s.start),
	}
	for phase, tally := range s.phases {
		report := PhaseReport{
			Entered:   tally.entered,
			Succeeded: tally.succeeded,
			Failed:    tally.failed,
		}
		if tally.entered > 0 {
			report.AvgDuration = tally.total / time.Duration(tally.entered)
		}
		out.Phases[phase] = report
	}
	return out
}

// EstimateETA sums remaining item counts weighted by the observed average
// duration of each phase. Phases without samples fall back to the configured
// default; with no samples and no default the estimate is unknown.
func (s *Stats) EstimateETA(remaining map[state.Phase]int) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eta time.Duration
	known := false
	for phase, count := range remaining {
		if count <= 0 {
			continue
		}
		avg, ok := s.avgLocked(phase)
		if !ok {
			continue
		}
		eta += time.Duration(count) * avg
		known = true
	}
	if eta < 0 {
		eta = 0
	}
	return eta, known
}

func (s *Stats) avgLocked(phase state.Phase) (time.Duration, bool) {
	if tally := s.phases[phase]; tally != nil && tally.entered > 0 {
		return tally.total / time.Duration(tally.entered), true
	}
	if s.defaultAvg > 0 {
		return s.defaultAvg, true
	}
	return 0, false
}
