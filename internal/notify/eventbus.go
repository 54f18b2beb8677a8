package notify

import (
	"context"
	"sync"
	"time"

	"videojobs/internal/pipeline"
)

// Event is a sequenced job update held by the EventBus.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	pipeline.Update
}

// EventBus keeps the most recent updates in memory so HTTP clients can read
// them incrementally. Sequence numbers are global and strictly increasing.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
	now       func() time.Time
}

func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Publish implements pipeline.Notifier.
func (b *EventBus) Publish(_ context.Context, u pipeline.Update) error {
	b.Append(u)
	return nil
}

// Append stores u and returns the sequenced event.
func (b *EventBus) Append(u pipeline.Update) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	evt := Event{Seq: b.nextSeq, Timestamp: b.now(), Update: u}
	b.events = append(b.events, evt)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}
	return evt
}

// Since returns the retained events for jobID with Seq > seq. An empty jobID
// matches every job.
func (b *EventBus) Since(jobID string, seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, evt := range b.events {
		if evt.Seq <= seq {
			continue
		}
		if jobID != "" && evt.JobID != jobID {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// LastSeq is the sequence number of the newest event ever appended.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}
