package httpapi

import (
	"testing"
	"time"

	"pkt.systems/langpad/schema"
)

func TestHubSequencesPerPlayground(t *testing.T) {
	hub := NewHub(10)
	hub.OnUIEvent(schema.UIEvent{Playground: "a", Type: schema.UIEventLoading, Loading: true})
	hub.OnUIEvent(schema.UIEvent{Playground: "b", Type: schema.UIEventLoading, Loading: true})
	hub.OnUIEvent(schema.UIEvent{Playground: "a", Type: schema.UIEventLoading})

	events := hub.Replay("a", 0)
	if len(events) != 2 || events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("unexpected replay for a: %+v", events)
	}
	if events[0].Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be filled")
	}
	if got := hub.Replay("b", 0); len(got) != 1 || got[0].Seq != 1 {
		t.Fatalf("unexpected replay for b: %+v", got)
	}
	if got := hub.Replay("a", 1); len(got) != 1 || got[0].Seq != 2 {
		t.Fatalf("expected replay after seq 1, got %+v", got)
	}
}

func TestHubHistoryIsBounded(t *testing.T) {
	hub := NewHub(2)
	for i := 0; i < 5; i++ {
		hub.OnUIEvent(schema.UIEvent{Playground: "a", Type: schema.UIEventLayout})
	}
	events := hub.Replay("a", 0)
	if len(events) != 2 || events[0].Seq != 4 || events[1].Seq != 5 {
		t.Fatalf("unexpected bounded history: %+v", events)
	}
}

func TestHubSubscribeReceivesEvents(t *testing.T) {
	hub := NewHub(10)
	hub.OnUIEvent(schema.UIEvent{Playground: "a", Type: schema.UIEventClearError})
	ch, unsub, seq, history := hub.Subscribe("a")
	defer unsub()
	if seq != 1 || len(history) != 1 {
		t.Fatalf("expected history to be captured, seq=%d history=%d", seq, len(history))
	}
	hub.OnUIEvent(schema.UIEvent{Playground: "a", Type: schema.UIEventError, ErrorName: "Boom"})
	select {
	case event := <-ch:
		if event.Seq != 2 || event.ErrorName != "Boom" {
			t.Fatalf("unexpected event %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
	unsub()
	unsub()
	hub.OnUIEvent(schema.UIEvent{Playground: "a", Type: schema.UIEventLayout})
	select {
	case event := <-ch:
		t.Fatalf("unexpected event after unsubscribe: %+v", event)
	default:
	}
}

func TestHubForgetsClosedPlaygrounds(t *testing.T) {
	hub := NewHub(10)
	hub.OnUIEvent(schema.UIEvent{Playground: "a", Type: schema.UIEventLayout})
	hub.OnUIEvent(schema.UIEvent{Playground: "a", Type: schema.UIEventClosed})
	if got := hub.Replay("a", 0); len(got) != 0 {
		t.Fatalf("expected history to be dropped, got %+v", got)
	}
	hub.OnUIEvent(schema.UIEvent{Type: schema.UIEventLayout})
	if len(hub.playgrounds) != 0 {
		t.Fatalf("expected events without a playground to be ignored")
	}
}
