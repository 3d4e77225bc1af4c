package state

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Phase is one ordered processing step applied to an item. The zero value
// means nothing has completed yet.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseCache
	PhaseMedia
	PhaseCategorize
	PhaseGenerate
	PhaseIndex
	PhaseSync
)

var phaseNames = map[Phase]string{
	PhaseNone:       "",
	PhaseCache:      "cache",
	PhaseMedia:      "media",
	PhaseCategorize: "categorize",
	PhaseGenerate:   "generate",
	PhaseIndex:      "index",
	PhaseSync:       "sync",
}

// Phases returns the fixed execution order.
func Phases() []Phase {
	return []Phase{PhaseCache, PhaseMedia, PhaseCategorize, PhaseGenerate, PhaseIndex, PhaseSync}
}

// LastPhase is the final phase of the sequence.
const LastPhase = PhaseSync

// ParsePhase resolves a phase name. Unknown names are rejected so that run
// preferences referencing a misspelled phase fail at construction.
func ParsePhase(name string) (Phase, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	for phase, label := range phaseNames {
		if phase != PhaseNone && label == needle {
			return phase, nil
		}
	}
	return PhaseNone, fmt.Errorf("unknown phase %q", name)
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Label returns a human-readable form for progress output.
func (p Phase) Label() string {
	name := p.String()
	if name == "" {
		return "none"
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// Prev returns the phase immediately before p in the sequence.
func (p Phase) Prev() Phase {
	if p <= PhaseNone {
		return PhaseNone
	}
	return p - 1
}

// MarshalJSON persists phases by name so the state file stays readable and
// stable across reorderings of the internal enum.
func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		*p = PhaseNone
		return nil
	}
	parsed, err := ParsePhase(name)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
