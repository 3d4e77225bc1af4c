package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/services"
	"curator/internal/state"
)

// Status is the orchestrator's lifecycle state.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusFailed   Status = "failed"
)

// RunStatus is the terminal outcome of one run.
type RunStatus string

const (
	RunCompleted           RunStatus = "completed"
	RunCompletedWithErrors RunStatus = "completed_with_errors"
	RunStopped             RunStatus = "stopped"
)

// FetchFunc discovers new items before the phase loop. Returned items that
// are not yet known get upserted into the store.
type FetchFunc func(context.Context) ([]*state.ItemState, error)

// FinalizeFunc runs once after the phase loop, typically to regenerate the
// knowledge base's root index.
type FinalizeFunc func(context.Context, map[string]*state.ItemState) error

// PhaseSet bundles the concrete phase functions the orchestrator drives.
type PhaseSet struct {
	Cache      PhaseFunc
	Media      PhaseFunc
	Categorize PhaseFunc
	Generate   PhaseFunc
	Index      PhaseFunc
	Sync       PhaseFunc
}

func (ps PhaseSet) fn(phase state.Phase) PhaseFunc {
	switch phase {
	case state.PhaseCache:
		return ps.Cache
	case state.PhaseMedia:
		return ps.Media
	case state.PhaseCategorize:
		return ps.Categorize
	case state.PhaseGenerate:
		return ps.Generate
	case state.PhaseIndex:
		return ps.Index
	case state.PhaseSync:
		return ps.Sync
	default:
		return nil
	}
}

// Failure describes one item-level phase failure surfaced in the summary.
type Failure struct {
	ItemID  string
	Phase   state.Phase
	Message string
}

// Summary is the terminal report of one run.
type Summary struct {
	RunID      string
	Status     RunStatus
	StartedAt  time.Time
	Duration   time.Duration
	Discovered int
	Executions int
	FetchError string
	Failures   []Failure
	Report     Report
}

// runState carries per-run collaborators so concurrent test instances never
// share mutable state.
type runState struct {
	stats  *Stats
	stopCh chan struct{}
	stop   sync.Once
}

func (r *runState) requestStop() {
	r.stop.Do(func() { close(r.stopCh) })
}

func (r *runState) stopRequested() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

// Orchestrator drives the ordered phase sequence across all known items.
type Orchestrator struct {
	cfg      *config.Config
	store    *state.Store
	logger   *slog.Logger
	gate     *Gate
	phases   PhaseSet
	fetch    FetchFunc
	finalize FinalizeFunc
	events   *broadcaster

	mu     sync.Mutex
	status Status
	run    *runState
}

// Option configures optional orchestrator behavior.
type Option func(*Orchestrator)

// WithFetch installs the input-acquisition step.
func WithFetch(fn FetchFunc) Option {
	return func(o *Orchestrator) { o.fetch = fn }
}

// WithFinalize installs the post-run finalizer.
func WithFinalize(fn FinalizeFunc) Option {
	return func(o *Orchestrator) { o.finalize = fn }
}

// WithGate overrides the resource gate (used in tests).
func WithGate(gate *Gate) Option {
	return func(o *Orchestrator) { o.gate = gate }
}

// New constructs an orchestrator over the given store and phase functions.
func New(cfg *config.Config, store *state.Store, logger *slog.Logger, phases PhaseSet, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		cfg:    cfg,
		store:  store,
		logger: logger,
		gate:   NewGateFromConfig(cfg),
		phases: phases,
		events: newBroadcaster(cfg.Workflow.ProgressBuffer),
		status: StatusIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Status returns the orchestrator lifecycle state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// RequestStop asks the current run to stop at the next batch boundary.
// In-flight item executions finish so no item is left half-written.
func (o *Orchestrator) RequestStop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != StatusRunning || o.run == nil {
		return
	}
	o.status = StatusStopping
	o.run.requestStop()
}

// Subscribe registers a progress observer. The returned cancel func must be
// called when the observer is done.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	return o.events.subscribe()
}

// Run executes one full pass over the phase sequence. Only one run may be
// active per orchestrator; a second concurrent call fails immediately.
func (o *Orchestrator) Run(ctx context.Context, prefs Preferences) (*Summary, error) {
	o.mu.Lock()
	if o.status == StatusRunning || o.status == StatusStopping {
		o.mu.Unlock()
		return nil, errors.New("run already in progress")
	}
	run := &runState{
		stats:  NewStats(time.Duration(o.cfg.Workflow.DefaultPhaseSeconds) * time.Second),
		stopCh: make(chan struct{}),
	}
	o.status = StatusRunning
	o.run = run
	o.mu.Unlock()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, o.logger)

	summary := &Summary{RunID: runID, StartedAt: time.Now().UTC()}
	err := o.execute(ctx, logger, run, prefs, summary)

	o.mu.Lock()
	if err != nil {
		o.status = StatusFailed
	} else {
		o.status = StatusIdle
	}
	o.run = nil
	o.mu.Unlock()

	summary.Duration = time.Since(summary.StartedAt)
	summary.Report = run.stats.Report()
	for _, report := range summary.Report.Phases {
		summary.Executions += report.Entered
	}

	if err != nil {
		logger.Error("run aborted",
			logging.String(logging.FieldEventType, "run_failed"),
			logging.Error(err),
		)
		return summary, err
	}
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_finished"),
		logging.String("status", string(summary.Status)),
		logging.Int("executions", summary.Executions),
		logging.Int("failures", len(summary.Failures)),
		logging.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (o *Orchestrator) execute(ctx context.Context, logger *slog.Logger, run *runState, prefs Preferences, summary *Summary) error {
	// Forcing a phase invalidates it and everything after it for every item;
	// the rewind happens once, up front, so eligibility checks stay simple.
	if err := o.store.ApplyForceRewinds(prefs.ForcedPhases()); err != nil {
		return err
	}

	if _, restricted := prefs.Only(); !restricted && !prefs.SkipFetch && o.fetch != nil {
		if err := o.runFetch(ctx, logger, summary); err != nil {
			return err
		}
	}

	phases := prefs.phaseSequence()
	stopped := false
	for index, phase := range phases {
		if prefs.Skip(phase) {
			logger.Debug("phase skipped by preference", logging.String(logging.FieldPhase, phase.String()))
			continue
		}
		fn := o.phases.fn(phase)
		if fn == nil {
			logger.Warn("no phase function configured",
				logging.String(logging.FieldPhase, phase.String()),
				logging.String(logging.FieldEventType, "phase_unconfigured"),
			)
			continue
		}
		if run.stopRequested() || ctx.Err() != nil {
			stopped = true
			break
		}
		if err := o.runPhaseBatch(ctx, logger, run, prefs, phase, index, len(phases)); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				stopped = true
				break
			}
			return err
		}
	}

	if err := o.finalizeRun(ctx, logger, summary); err != nil {
		return err
	}

	switch {
	case stopped:
		summary.Status = RunStopped
	case len(summary.Failures) > 0:
		summary.Status = RunCompletedWithErrors
	default:
		summary.Status = RunCompleted
	}
	return nil
}

func (o *Orchestrator) runFetch(ctx context.Context, logger *slog.Logger, summary *Summary) error {
	discovered, err := o.fetch(ctx)
	if err != nil {
		// A failed discovery pass leaves the known items intact; the run
		// proceeds with what it has and the summary carries the detail.
		summary.FetchError = err.Error()
		logger.Warn("bookmark discovery failed",
			logging.String(logging.FieldEventType, "fetch_failed"),
			logging.Error(err),
		)
		return nil
	}
	added := 0
	for _, item := range discovered {
		if item == nil || item.ID == "" {
			continue
		}
		if _, known := o.store.Get(item.ID); known {
			continue
		}
		if err := o.store.Upsert(item); err != nil {
			return err
		}
		added++
	}
	summary.Discovered = added
	if added > 0 {
		logger.Info("new items discovered",
			logging.String(logging.FieldEventType, "items_discovered"),
			logging.Int("count", added),
		)
	}
	return nil
}

func (o *Orchestrator) runPhaseBatch(ctx context.Context, logger *slog.Logger, run *runState, prefs Preferences, phase state.Phase, index, totalPhases int) error {
	snapshot := o.store.Snapshot()
	force := prefs.Force(phase)
	eligible := make([]string, 0, len(snapshot))
	for _, id := range o.store.AllIDs() {
		if o.store.NeedsPhase(snapshot[id], phase, force) {
			eligible = append(eligible, id)
		}
	}

	remaining := o.remainingCounts(snapshot, prefs)
	remaining[phase] = len(eligible)

	if len(eligible) == 0 {
		o.publishEvent(run, phase, index, totalPhases, 0, 0, "", remaining)
		return nil
	}

	logger.Info("phase batch started",
		logging.String(logging.FieldPhase, phase.String()),
		logging.String(logging.FieldEventType, "phase_batch_start"),
		logging.Int("eligible", len(eligible)),
		logging.String("resource_class", string(classFor(phase))),
	)

	var (
		wg        sync.WaitGroup
		processed atomic.Int64
		fatalOnce sync.Once
		fatalErr  error
	)
	fn := o.phases.fn(phase)
	for _, id := range eligible {
		wg.Add(1)
		go func(itemID string) {
			defer wg.Done()
			err := o.executeItemPhase(ctx, run, phase, itemID, fn)
			done := int(processed.Add(1))

			progress := copyCounts(remaining)
			progress[phase] = len(eligible) - done
			o.publishEvent(run, phase, index, totalPhases, done, len(eligible), itemID, progress)

			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				fatalOnce.Do(func() {
					fatalErr = err
					run.requestStop()
				})
			}
		}(id)
	}
	wg.Wait()

	if fatalErr != nil {
		return fatalErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	remaining[phase] = 0
	o.publishEvent(run, phase, index, totalPhases, len(eligible), len(eligible), "", remaining)
	return nil
}

// remainingCounts estimates, per later phase, how many items still have to
// pass through it. Items with a recorded error are excluded; they will not
// advance without intervention.
func (o *Orchestrator) remainingCounts(snapshot map[string]*state.ItemState, prefs Preferences) map[state.Phase]int {
	counts := make(map[state.Phase]int, len(state.Phases()))
	for _, phase := range prefs.phaseSequence() {
		if prefs.Skip(phase) {
			continue
		}
		for _, item := range snapshot {
			if item.ErrorMessage != "" {
				continue
			}
			if !item.Completed(phase) {
				counts[phase]++
			}
		}
	}
	return counts
}

func copyCounts(src map[state.Phase]int) map[state.Phase]int {
	out := make(map[state.Phase]int, len(src))
	for phase, count := range src {
		out[phase] = count
	}
	return out
}

func (o *Orchestrator) publishEvent(run *runState, phase state.Phase, index, totalPhases, processed, total int, itemID string, remaining map[state.Phase]int) {
	eta, known := run.stats.EstimateETA(remaining)
	o.events.publish(Event{
		Phase:            phase,
		PhaseIndex:       index,
		TotalPhases:      totalPhases,
		ProcessedInBatch: processed,
		TotalInBatch:     total,
		ItemID:           itemID,
		ETA:              eta,
		ETAKnown:         known,
	})
}

func (o *Orchestrator) finalizeRun(ctx context.Context, logger *slog.Logger, summary *Summary) error {
	snapshot := o.store.Snapshot()
	for _, id := range o.store.AllIDs() {
		item := snapshot[id]
		if item.ErrorMessage != "" {
			summary.Failures = append(summary.Failures, Failure{
				ItemID:  id,
				Phase:   item.FailedPhase,
				Message: item.ErrorMessage,
			})
			continue
		}
		if item.Processed() && item.CompletedAt == nil {
			if err := o.store.MarkProcessed(id); err != nil {
				return err
			}
		}
	}

	if o.finalize != nil {
		if err := o.finalize(ctx, o.store.Snapshot()); err != nil {
			if services.IsFatal(err) {
				return err
			}
			logger.Warn("finalize step failed",
				logging.String(logging.FieldEventType, "finalize_failed"),
				logging.Error(err),
			)
		}
	}
	return nil
}
