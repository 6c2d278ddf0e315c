package control

import (
	"sync"

	"github.com/elata-labs/eegpipe/internal/constants"
)

// EventBus fans Events out to every current subscriber. Each subscriber
// gets its own bounded channel; a subscriber that falls behind has its
// oldest buffered event dropped so one slow consumer never blocks
// publication to the rest (the same drop-oldest-on-overflow policy
// internal/api's connection hubs use for the binary data WebSocket).
//
// EventBus also caches the most recent PipelineStarted and SourceReady
// events, so a newly subscribed SSE client can replay pipeline state
// without having raced the events that announced it.
type EventBus struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}

	lastStarted   *Event
	lastSourceReady *Event
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[chan Event]struct{})}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe func the caller must invoke once done (typically when an SSE
// connection closes).
func (b *EventBus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, constants.EventBusSubscriberCapacity)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Publish broadcasts ev to every current subscriber, dropping the oldest
// buffered event for any subscriber whose channel is full, and updates the
// cached replay events.
func (b *EventBus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Type {
	case EventPipelineStarted:
		e := ev
		b.lastStarted = &e
		b.lastSourceReady = nil // a fresh start invalidates any prior source
	case EventSourceReady:
		e := ev
		b.lastSourceReady = &e
	case EventPipelineStopped, EventPipelineFailed:
		b.lastStarted = nil
		b.lastSourceReady = nil
	}

	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// Replay returns the cached PipelineStarted and SourceReady events (either
// may be nil), for a newly subscribed client to catch up on current state.
func (b *EventBus) Replay() (started, sourceReady *Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastStarted, b.lastSourceReady
}
