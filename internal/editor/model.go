// Package editor holds the server-side editor models of a playground.
package editor

import (
	"sort"
	"sync"

	"pkt.systems/langpad/schema"
)

// Options configures a Model.
type Options struct {
	ID   schema.EditorID
	URI  string
	Text string
	// Emit receives markers, highlighting and layout events. Optional.
	Emit func(schema.UIEvent)
}

// Model is a text buffer with a version counter and change listeners.
type Model struct {
	mu        sync.Mutex
	id        schema.EditorID
	uri       string
	text      string
	version   int32
	listeners map[int]func(text string, version int32)
	nextID    int
	markers   []schema.Diagnostic
	highlight *schema.HighlightRules
	emit      func(schema.UIEvent)
}

// New constructs a Model at version 1.
func New(opts Options) *Model {
	return &Model{
		id:        opts.ID,
		uri:       opts.URI,
		text:      schema.NormalizeText(opts.Text),
		version:   1,
		listeners: make(map[int]func(string, int32)),
		emit:      opts.Emit,
	}
}

// ID returns the editor id.
func (m *Model) ID() schema.EditorID { return m.id }

// URI returns the document uri of the model.
func (m *Model) URI() string { return m.uri }

// Value returns the current text.
func (m *Model) Value() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Version returns the current version.
func (m *Model) Version() int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// SetValue replaces the text and notifies listeners. Setting identical text is a no-op.
func (m *Model) SetValue(text string) int32 {
	text = schema.NormalizeText(text)
	m.mu.Lock()
	if text == m.text {
		version := m.version
		m.mu.Unlock()
		return version
	}
	m.text = text
	m.version++
	version := m.version
	listeners := m.snapshotListeners()
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(text, version)
	}
	return version
}

// OnDidChange registers fn for text changes and returns a function that removes it.
func (m *Model) OnDidChange(fn func(text string, version int32)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// SetMarkers replaces the editor markers.
func (m *Model) SetMarkers(diags []schema.Diagnostic) {
	m.mu.Lock()
	m.markers = append([]schema.Diagnostic(nil), diags...)
	m.mu.Unlock()
	m.send(schema.UIEvent{Type: schema.UIEventMarkers, Diagnostics: diags})
}

// Markers returns the current markers.
func (m *Model) Markers() []schema.Diagnostic {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]schema.Diagnostic(nil), m.markers...)
}

// SetHighlighting installs highlighting rules for the model's language.
func (m *Model) SetHighlighting(rules *schema.HighlightRules) {
	m.mu.Lock()
	m.highlight = rules
	m.mu.Unlock()
	m.send(schema.UIEvent{Type: schema.UIEventHighlight, Highlight: rules})
}

// Highlighting returns the installed highlighting rules.
func (m *Model) Highlighting() *schema.HighlightRules {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.highlight
}

// Layout asks the front end to recompute the editor layout.
func (m *Model) Layout() {
	m.send(schema.UIEvent{Type: schema.UIEventLayout})
}

func (m *Model) send(event schema.UIEvent) {
	if m.emit == nil {
		return
	}
	event.Editor = m.id
	m.emit(event)
}

func (m *Model) snapshotListeners() []func(string, int32) {
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(string, int32), 0, len(ids))
	for _, id := range ids {
		out = append(out, m.listeners[id])
	}
	return out
}
