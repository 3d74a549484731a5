package core

import (
	"fmt"

	"pkt.systems/langpad/schema"
)

// SessionErrorKind classifies session failures for the error panel.
type SessionErrorKind string

const (
	// SessionErrorUnknown is an uncategorized session failure.
	SessionErrorUnknown SessionErrorKind = "unknown"
	// SessionErrorHandshake indicates the worker never became ready.
	SessionErrorHandshake SessionErrorKind = "handshake"
	// SessionErrorHighlight indicates highlighting rules could not be generated.
	SessionErrorHighlight SessionErrorKind = "highlight"
	// SessionErrorAttach indicates the language client could not be attached.
	SessionErrorAttach SessionErrorKind = "attach"
	// SessionErrorMissingClient indicates no language client was produced.
	SessionErrorMissingClient SessionErrorKind = "missing_client"
	// SessionErrorStart indicates the language client failed to start.
	SessionErrorStart SessionErrorKind = "start"
	// SessionErrorDispose indicates a previous session could not be disposed cleanly.
	SessionErrorDispose SessionErrorKind = "dispose"
)

// SessionError wraps session failures with a stable classification.
type SessionError struct {
	Kind    SessionErrorKind
	Op      string
	Session schema.SessionID
	Err     error
}

// NewSessionError constructs a classified session error.
func NewSessionError(kind SessionErrorKind, op string, session schema.SessionID, err error) *SessionError {
	return &SessionError{Kind: kind, Op: op, Session: session, Err: err}
}

func (e *SessionError) Error() string {
	if e == nil {
		return "session error"
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("session %s failed", e.Op)
	}
	return "session error"
}

func (e *SessionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Title returns the heading shown in the error panel.
func (e *SessionError) Title() string {
	if e == nil {
		return "Error"
	}
	switch e.Kind {
	case SessionErrorHandshake:
		return "Language worker failed to start"
	case SessionErrorHighlight:
		return "Highlighting generation failed"
	case SessionErrorAttach, SessionErrorMissingClient:
		return "Language client unavailable"
	case SessionErrorStart:
		return "Language client failed to start"
	case SessionErrorDispose:
		return "Previous session did not shut down cleanly"
	default:
		return "Error"
	}
}
