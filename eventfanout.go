package langpad

import (
	"pkt.systems/langpad/core"
	"pkt.systems/langpad/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnUIEvent(event schema.UIEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnUIEvent(event)
	}
}
