package core

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
)

// ActionKey identifies a debounced action slot.
type ActionKey int

const (
	// ActionDefinitionChanged regenerates the sample session after grammar edits.
	ActionDefinitionChanged ActionKey = iota
	// ActionSampleChanged re-renders the parse tree after program edits.
	ActionSampleChanged
)

func (k ActionKey) String() string {
	switch k {
	case ActionDefinitionChanged:
		return "definition_changed"
	case ActionSampleChanged:
		return "sample_changed"
	default:
		return "unknown"
	}
}

// Scheduler debounces actions per key.
//
// A new request for a key cancels the pending action for that key; keys never interfere. A
// fired action waits for a still running action of the same key and is skipped if it was
// superseded while waiting, so actions of one key never overlap.
type Scheduler struct {
	mu      sync.Mutex
	slots   map[ActionKey]*actionSlot
	stopped bool
	log     pslog.Logger
}

type actionSlot struct {
	run     sync.Mutex
	timer   *time.Timer
	seq     uint64
	pending bool
}

// NewScheduler constructs a Scheduler.
func NewScheduler(logger pslog.Logger) *Scheduler {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Scheduler{slots: make(map[ActionKey]*actionSlot), log: logger}
}

// Schedule runs action once delay has elapsed without another Schedule for key.
func (s *Scheduler) Schedule(key ActionKey, delay time.Duration, action func()) {
	if action == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.log.Trace("scheduler request ignored", "key", key)
		return
	}
	slot := s.slots[key]
	if slot == nil {
		slot = &actionSlot{}
		s.slots[key] = slot
	}
	if slot.timer != nil && slot.timer.Stop() {
		s.log.Trace("scheduler pending action cancelled", "key", key)
	}
	slot.seq++
	slot.pending = true
	seq := slot.seq
	slot.timer = time.AfterFunc(delay, func() {
		s.fire(key, slot, seq, action)
	})
}

func (s *Scheduler) fire(key ActionKey, slot *actionSlot, seq uint64, action func()) {
	slot.run.Lock()
	defer slot.run.Unlock()
	s.mu.Lock()
	if s.stopped || !slot.pending || slot.seq != seq {
		s.mu.Unlock()
		return
	}
	slot.pending = false
	slot.timer = nil
	s.mu.Unlock()
	s.log.Trace("scheduler action run", "key", key)
	action()
}

// Pending reports whether an action is waiting for its delay to elapse.
func (s *Scheduler) Pending(key ActionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.slots[key]
	return slot != nil && slot.pending
}

// Cancel drops the pending action for key, if any. A running action is not interrupted.
func (s *Scheduler) Cancel(key ActionKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.slots[key]
	if slot == nil || !slot.pending {
		return false
	}
	if slot.timer != nil {
		slot.timer.Stop()
		slot.timer = nil
	}
	slot.pending = false
	slot.seq++
	s.log.Trace("scheduler pending action cancelled", "key", key)
	return true
}

// Stop cancels every pending action. Later requests are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	for _, slot := range s.slots {
		if slot.timer != nil {
			slot.timer.Stop()
			slot.timer = nil
		}
		slot.pending = false
		slot.seq++
	}
}

// Wait blocks until no action is running.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	slots := make([]*actionSlot, 0, len(s.slots))
	for _, slot := range s.slots {
		slots = append(slots, slot)
	}
	s.mu.Unlock()
	for _, slot := range slots {
		slot.run.Lock()
		slot.run.Unlock()
	}
}
