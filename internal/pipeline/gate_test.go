package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGateBoundsConcurrency(t *testing.T) {
	const capacity = 3
	const burst = 40

	gate := NewGate(map[ResourceClass]int{ClassLLM: capacity})

	var (
		wg      sync.WaitGroup
		current atomic.Int64
		peak    atomic.Int64
	)
	for i := 0; i < burst; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gate.Acquire(context.Background(), ClassLLM); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			defer gate.Release(ClassLLM)

			now := current.Add(1)
			for {
				observed := peak.Load()
				if now <= observed || peak.CompareAndSwap(observed, now) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > capacity {
		t.Fatalf("observed %d concurrent holders, capacity %d", got, capacity)
	}
	if held := gate.Held(ClassLLM); held != 0 {
		t.Fatalf("slots leaked: %d still held", held)
	}
}

func TestGateAcquireRespectsContext(t *testing.T) {
	gate := NewGate(map[ResourceClass]int{ClassDB: 1})
	if err := gate.Acquire(context.Background(), ClassDB); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer gate.Release(ClassDB)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := gate.Acquire(ctx, ClassDB); err == nil {
		t.Fatal("expected context error while gate is full")
	}
}

func TestGateDefaultsCapacity(t *testing.T) {
	gate := NewGate(nil)
	for _, class := range []ResourceClass{ClassLLM, ClassNetwork, ClassDB} {
		if gate.Capacity(class) != 1 {
			t.Errorf("class %s capacity = %d, want 1", class, gate.Capacity(class))
		}
	}
}

func TestClassForCoversAllPhases(t *testing.T) {
	seen := map[ResourceClass]bool{}
	for _, phase := range phasesForTest() {
		seen[classFor(phase)] = true
	}
	for _, class := range []ResourceClass{ClassLLM, ClassNetwork, ClassDB} {
		if !seen[class] {
			t.Errorf("no phase maps to class %s", class)
		}
	}
}
