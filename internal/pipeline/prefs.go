package pipeline

import (
	"curator/internal/state"
)

// Preferences captures the per-run force/skip flags. Phase names are resolved
// through state.ParsePhase when set, so a misspelled phase fails before the
// run starts instead of silently doing nothing.
type Preferences struct {
	SkipFetch bool

	forced  map[state.Phase]struct{}
	skipped map[state.Phase]struct{}
	only    state.Phase
}

// SetForce marks the named phase as forced: it becomes eligible again even
// for items that already completed it.
func (p *Preferences) SetForce(name string) error {
	phase, err := state.ParsePhase(name)
	if err != nil {
		return err
	}
	if p.forced == nil {
		p.forced = make(map[state.Phase]struct{})
	}
	p.forced[phase] = struct{}{}
	return nil
}

// SetSkip omits the named phase from the run entirely.
func (p *Preferences) SetSkip(name string) error {
	phase, err := state.ParsePhase(name)
	if err != nil {
		return err
	}
	if p.skipped == nil {
		p.skipped = make(map[state.Phase]struct{})
	}
	p.skipped[phase] = struct{}{}
	return nil
}

// SetOnly restricts the run to a single phase.
func (p *Preferences) SetOnly(name string) error {
	phase, err := state.ParsePhase(name)
	if err != nil {
		return err
	}
	p.only = phase
	return nil
}

// Force reports whether the phase was forced for this run.
func (p *Preferences) Force(phase state.Phase) bool {
	_, ok := p.forced[phase]
	return ok
}

// Skip reports whether the phase was skipped for this run.
func (p *Preferences) Skip(phase state.Phase) bool {
	_, ok := p.skipped[phase]
	return ok
}

// Only returns the single-phase restriction, if any.
func (p *Preferences) Only() (state.Phase, bool) {
	return p.only, p.only != state.PhaseNone
}

// ForcedPhases returns the forced set in execution order.
func (p *Preferences) ForcedPhases() []state.Phase {
	if len(p.forced) == 0 {
		return nil
	}
	out := make([]state.Phase, 0, len(p.forced))
	for _, phase := range state.Phases() {
		if _, ok := p.forced[phase]; ok {
			out = append(out, phase)
		}
	}
	return out
}

// phaseSequence returns the phases this run will consider, honoring the
// single-phase restriction.
func (p *Preferences) phaseSequence() []state.Phase {
	if only, ok := p.Only(); ok {
		return []state.Phase{only}
	}
	return state.Phases()
}
