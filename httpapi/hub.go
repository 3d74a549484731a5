package httpapi

import (
	"context"
	"sync"
	"time"

	"pkt.systems/langpad/internal/logx"
	"pkt.systems/langpad/schema"
)

// streamSnapshot is the type of the first event of every stream.
const streamSnapshot schema.UIEventType = "snapshot"

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq uint64 `json:"seq"`
	schema.UIEvent
	Snapshot *SnapshotPayload `json:"snapshot,omitempty"`
}

// SnapshotPayload seeds client state on connect.
type SnapshotPayload struct {
	Playground schema.PlaygroundInfo `json:"playground"`
	State      schema.StateSnapshot  `json:"state"`
	ShareLink  string                `json:"share_link,omitempty"`
}

// Hub broadcasts UI events per playground and keeps a bounded history for replay.
type Hub struct {
	mu          sync.Mutex
	playgrounds map[schema.PlaygroundID]*playgroundHub
	historySize int
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Hub{
		playgrounds: make(map[schema.PlaygroundID]*playgroundHub),
		historySize: historySize,
	}
}

// OnUIEvent implements core.EventSink.
func (h *Hub) OnUIEvent(event schema.UIEvent) {
	if event.Playground == "" {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	logx.WithPlayground(context.Background(), event.Playground).Trace("hub ui event", "type", event.Type, "editor", event.Editor)
	h.publish(event.Playground, StreamEvent{UIEvent: event})
	if event.Type == schema.UIEventClosed {
		h.forget(event.Playground)
	}
}

// Subscribe registers a subscriber for a playground. It returns the history captured
// atomically with the subscription.
func (h *Hub) Subscribe(id schema.PlaygroundID) (<-chan StreamEvent, func(), uint64, []StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ph := h.getOrCreateLocked(id)
	ch := make(chan StreamEvent, 256)
	ph.subs[ch] = struct{}{}
	history := append([]StreamEvent(nil), ph.history...)
	seq := ph.seq
	log := logx.WithPlayground(context.Background(), id)
	log.Info("hub subscribe", "subs", len(ph.subs), "history", len(history))
	var once sync.Once
	unsub := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(ph.subs, ch)
			remaining := len(ph.subs)
			h.mu.Unlock()
			log.Info("hub unsubscribe", "subs", remaining)
		})
	}
	return ch, unsub, seq, history
}

// Replay returns events after the provided seq.
func (h *Hub) Replay(id schema.PlaygroundID, after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ph := h.playgrounds[id]
	if ph == nil {
		return nil
	}
	events := since(ph.history, after)
	logx.WithPlayground(context.Background(), id).Debug("hub replay", "after", after, "count", len(events))
	return events
}

func since(history []StreamEvent, after uint64) []StreamEvent {
	events := make([]StreamEvent, 0, len(history))
	for _, event := range history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	return events
}

func (h *Hub) publish(id schema.PlaygroundID, event StreamEvent) {
	h.mu.Lock()
	ph := h.getOrCreateLocked(id)
	ph.seq++
	event.Seq = ph.seq
	ph.history = append(ph.history, event)
	if len(ph.history) > h.historySize {
		ph.history = ph.history[len(ph.history)-h.historySize:]
	}
	dropped := 0
	for sub := range ph.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 {
		logx.WithPlayground(context.Background(), id).Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}

// forget drops the history of a closed playground. Open streams keep their channel until they
// unsubscribe.
func (h *Hub) forget(id schema.PlaygroundID) {
	h.mu.Lock()
	delete(h.playgrounds, id)
	h.mu.Unlock()
}

func (h *Hub) getOrCreateLocked(id schema.PlaygroundID) *playgroundHub {
	ph := h.playgrounds[id]
	if ph == nil {
		ph = &playgroundHub{
			subs: make(map[chan StreamEvent]struct{}),
		}
		h.playgrounds[id] = ph
	}
	return ph
}

type playgroundHub struct {
	seq     uint64
	history []StreamEvent
	subs    map[chan StreamEvent]struct{}
}
