package pipeline

import (
	"sync"
	"time"

	"curator/internal/state"
)

// Event is one progress snapshot delivered to observers. ItemID is empty for
// batch-boundary snapshots. ETAKnown is false when no estimate exists yet.
type Event struct {
	Phase            state.Phase
	PhaseIndex       int
	TotalPhases      int
	ProcessedInBatch int
	TotalInBatch     int
	ItemID           string
	ETA              time.Duration
	ETAKnown         bool
	Timestamp        time.Time
}

// broadcaster fans events out to subscribers over buffered channels. A slow
// subscriber loses events rather than stalling the run.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	buffer int
}

func newBroadcaster(buffer int) *broadcaster {
	if buffer <= 0 {
		buffer = 1
	}
	return &broadcaster{subs: make(map[int]chan Event), buffer: buffer}
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (b *broadcaster) publish(event Event) {
	event.Timestamp = time.Now().UTC()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
