package eventbus

import (
	"context"
	"sync"

	"pkt.systems/langpad/schema"
	"pkt.systems/pslog"
)

// Bus fans out UI events to per-playground subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.PlaygroundID]map[chan schema.UIEvent]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.PlaygroundID]map[chan schema.UIEvent]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the playground and returns a channel + cancel.
func (b *Bus) Subscribe(id schema.PlaygroundID) (<-chan schema.UIEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.UIEvent, b.depth)
	b.mu.Lock()
	subs := b.subs[id]
	if subs == nil {
		subs = make(map[chan schema.UIEvent]struct{})
		b.subs[id] = subs
	}
	subs[ch] = struct{}{}
	count := len(subs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.With("playground", id).Debug("eventbus subscribe", "subs", count)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[id]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, id)
				}
			}
			close(ch)
			b.mu.Unlock()
			if b.log != nil {
				b.log.With("playground", id).Debug("eventbus unsubscribe")
			}
		})
	}
}

// OnUIEvent publishes a UI event to the subscribers of its playground.
func (b *Bus) OnUIEvent(event schema.UIEvent) {
	if b == nil {
		return
	}
	dropped := 0
	b.mu.Lock()
	subs := b.subs[event.Playground]
	for sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	b.mu.Unlock()
	if dropped > 0 && b.log != nil {
		b.log.With("playground", event.Playground).Trace("eventbus dropped", "count", dropped, "type", event.Type)
	}
}
