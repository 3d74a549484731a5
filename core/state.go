package core

import (
	"sync"

	"pkt.systems/langpad/schema"
)

// State is the mutable state of one playground.
//
// definitionText is written by the definition notification handler, sampleText by the sample
// notification handler (and by sample edits while no session is live), and sessionSequence only
// by NextSession.
type State struct {
	mu              sync.RWMutex
	definitionText  string
	sampleText      string
	sessionSequence uint64
}

// NewState seeds playground state.
func NewState(grammar, content string) *State {
	return &State{definitionText: grammar, sampleText: content}
}

// Definition returns the last known grammar text.
func (s *State) Definition() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.definitionText
}

// SetDefinition records the grammar text.
func (s *State) SetDefinition(text string) {
	s.mu.Lock()
	s.definitionText = text
	s.mu.Unlock()
}

// Sample returns the last known program text.
func (s *State) Sample() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sampleText
}

// SetSample records the program text.
func (s *State) SetSample(text string) {
	s.mu.Lock()
	s.sampleText = text
	s.mu.Unlock()
}

// NextSession returns a fresh sample session identity.
func (s *State) NextSession() schema.SessionID {
	s.mu.Lock()
	s.sessionSequence++
	n := s.sessionSequence
	s.mu.Unlock()
	return sampleSessionID(n)
}

// Sessions returns how many sample sessions have been allocated.
func (s *State) Sessions() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionSequence
}

// Snapshot exports grammar and program text.
func (s *State) Snapshot() schema.StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return schema.StateSnapshot{Grammar: s.definitionText, Content: s.sampleText}
}
