package core

import (
	"errors"

	"pkt.systems/langpad/schema"
)

// Display shows errors, diagnostics and the loading overlay.
type Display interface {
	ReportDiagnostics(diags []schema.Diagnostic)
	ReportError(err error)
	ClearError()
	SetLoading(loading bool)
}

// eventDisplay renders display effects as UI events.
type eventDisplay struct {
	emit func(schema.UIEvent)
}

// NewEventDisplay returns a Display that forwards effects to emit.
func NewEventDisplay(emit func(schema.UIEvent)) Display {
	return &eventDisplay{emit: emit}
}

func (d *eventDisplay) ReportDiagnostics(diags []schema.Diagnostic) {
	d.send(schema.UIEvent{
		Type:        schema.UIEventDiagnostics,
		Editor:      schema.EditorDefinition,
		Diagnostics: append([]schema.Diagnostic(nil), diags...),
	})
}

func (d *eventDisplay) ReportError(err error) {
	if err == nil {
		return
	}
	event := schema.UIEvent{Type: schema.UIEventError, ErrorName: "Error", ErrorDetails: err.Error()}
	var sessionErr *SessionError
	if errors.As(err, &sessionErr) {
		event.ErrorName = sessionErr.Title()
		event.Session = sessionErr.Session
	}
	d.send(event)
}

func (d *eventDisplay) ClearError() {
	d.send(schema.UIEvent{Type: schema.UIEventClearError})
}

func (d *eventDisplay) SetLoading(loading bool) {
	d.send(schema.UIEvent{Type: schema.UIEventLoading, Loading: loading})
}

func (d *eventDisplay) send(event schema.UIEvent) {
	if d == nil || d.emit == nil {
		return
	}
	d.emit(event)
}
