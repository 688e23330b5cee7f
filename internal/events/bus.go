// Package events provides a non-blocking publish-subscribe bus carrying
// BridgeEvents — the SQ_* callback actions the controller would otherwise
// invoke directly on an upstream bridge — to any number of observers (a
// debug SSE endpoint, a test assertion, a real bridge adapter).
package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/micro-nova/slimproto-go/internal/collab"
	"github.com/micro-nova/slimproto-go/internal/models"
)

const subBufferSize = 16

// BridgeEvent is one SQ_* callback invocation, rendered as a typed value
// so subscribers don't need to know collab.Bridge's method set.
type BridgeEvent struct {
	Action   collab.BridgeAction
	Name     string
	ServerIP uint32
	Volume   uint16
	OnOff    bool
	Track    models.TrackOpen
}

// Bus is a non-blocking publish-subscribe event bus. Subscribers that are
// slow to consume events have events dropped rather than blocking
// publishers, matching the teacher's SSE bus semantics.
type Bus struct {
	mu   sync.Mutex
	subs map[uuid.UUID]chan BridgeEvent
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uuid.UUID]chan BridgeEvent)}
}

// Subscribe creates a new subscription and returns its id plus a channel
// that will receive bridge events. Call Unsubscribe when done.
func (b *Bus) Subscribe() (uuid.UUID, <-chan BridgeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.New()
	ch := make(chan BridgeEvent, subBufferSize)
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish sends an event to all subscribers, dropping it for any
// subscriber whose channel is full.
func (b *Bus) Publish(ev BridgeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
