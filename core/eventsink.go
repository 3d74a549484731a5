package core

import "pkt.systems/langpad/schema"

// EventSink receives UI events from playgrounds.
type EventSink interface {
	OnUIEvent(event schema.UIEvent)
}
