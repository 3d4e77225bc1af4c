package pipeline

import (
	"context"
	"sync/atomic"

	"curator/internal/config"
	"curator/internal/state"
)

// ResourceClass identifies the external resource a phase leans on. Limits are
// configured per class so a slow LLM batch cannot starve fast disk work.
type ResourceClass string

const (
	ClassLLM     ResourceClass = "llm"
	ClassNetwork ResourceClass = "network"
	ClassDB      ResourceClass = "db"
)

func classFor(phase state.Phase) ResourceClass {
	switch phase {
	case state.PhaseCache:
		return ClassNetwork
	case state.PhaseMedia, state.PhaseCategorize, state.PhaseGenerate:
		return ClassLLM
	default:
		return ClassDB
	}
}

type gateSlot struct {
	tokens chan struct{}
	held   atomic.Int64
}

// Gate bounds how many items may run a phase of a given resource class at
// once. Acquisition suspends on a buffered channel, so waiters queue fairly
// and release is safe from any goroutine.
type Gate struct {
	slots map[ResourceClass]*gateSlot
}

// NewGate builds a gate with the provided per-class capacities. Classes with
// a missing or non-positive capacity default to 1.
func NewGate(limits map[ResourceClass]int) *Gate {
	gate := &Gate{slots: make(map[ResourceClass]*gateSlot)}
	for _, class := range []ResourceClass{ClassLLM, ClassNetwork, ClassDB} {
		capacity := limits[class]
		if capacity <= 0 {
			capacity = 1
		}
		gate.slots[class] = &gateSlot{tokens: make(chan struct{}, capacity)}
	}
	return gate
}

// NewGateFromConfig builds a gate from workflow configuration.
func NewGateFromConfig(cfg *config.Config) *Gate {
	return NewGate(map[ResourceClass]int{
		ClassLLM:     cfg.Workflow.LLMSlots,
		ClassNetwork: cfg.Workflow.NetworkSlots,
		ClassDB:      cfg.Workflow.DBSlots,
	})
}

// Acquire blocks until a slot for the class frees up or ctx is done.
func (g *Gate) Acquire(ctx context.Context, class ResourceClass) error {
	slot := g.slots[class]
	select {
	case slot.tokens <- struct{}{}:
		slot.held.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot previously acquired for the class.
func (g *Gate) Release(class ResourceClass) {
	slot := g.slots[class]
	slot.held.Add(-1)
	<-slot.tokens
}

// Held reports the number of currently held slots for the class.
func (g *Gate) Held(class ResourceClass) int {
	return int(g.slots[class].held.Load())
}

// Capacity reports the configured slot count for the class.
func (g *Gate) Capacity(class ResourceClass) int {
	return cap(g.slots[class].tokens)
}
