package engine

import (
	"time"

	"github.com/stillapp/stillsync/internal/schema"
)

// EventType identifies an engine event.
type EventType string

const (
	// EventConnectivity fires when the online/offline flag flips.
	EventConnectivity EventType = "connectivity"

	// EventOpQueued fires when a mutation enters the pending queue.
	EventOpQueued EventType = "op_queued"

	// EventReplayStarted fires at the beginning of a replay pass.
	EventReplayStarted EventType = "replay_started"

	// EventReplayFinished fires when a replay pass ends, complete or not.
	EventReplayFinished EventType = "replay_finished"

	// EventEntityUpdated fires when an entity's local record changes.
	EventEntityUpdated EventType = "entity_updated"
)

// Event describes a state change inside the engine. Events are delivered
// to subscribers synchronously on the goroutine that produced them, so
// handlers must not block.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Online    bool          `json:"online"`
	Pending   int           `json:"pending"`
	Kind      schema.Kind   `json:"kind,omitempty"`
	Op        schema.OpKind `json:"op,omitempty"`
	Replayed  int           `json:"replayed,omitempty"`
	Remaining int           `json:"remaining,omitempty"`
}

// Subscribe registers fn to receive engine events.
func (e *Engine) Subscribe(fn func(Event)) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	e.subs = append(e.subs, fn)
}

// emit delivers an event to all subscribers with the connectivity and
// pending-count fields filled in.
func (e *Engine) emit(ev Event) {
	ev.Timestamp = time.Now().UTC()
	ev.Online = e.Online()
	ev.Pending = e.queue.Len()

	e.subsMu.RLock()
	subs := e.subs
	e.subsMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
