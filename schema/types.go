package schema

// PlaygroundID identifies a playground (one per browser page or terminal watcher).
type PlaygroundID string

// SessionID identifies a language session inside a playground.
type SessionID string

// DefinitionSessionID is the fixed identity of the definition session.
const DefinitionSessionID SessionID = "definition"

// SessionKind distinguishes the two session roles of a playground.
type SessionKind string

const (
	// SessionKindDefinition edits the grammar.
	SessionKindDefinition SessionKind = "definition"
	// SessionKindSample edits a program written in the grammar's language.
	SessionKindSample SessionKind = "sample"
)

// EditorID names one of the two editors of a playground.
type EditorID string

const (
	// EditorDefinition is the grammar editor.
	EditorDefinition EditorID = "definition"
	// EditorSample is the program editor.
	EditorSample EditorID = "sample"
)

// StateSnapshot is the exported playground state used for sharing and persistence.
type StateSnapshot struct {
	Grammar string `json:"grammar"`
	Content string `json:"content"`
}

// PlaygroundInfo is a read-only view of a playground for transports.
type PlaygroundInfo struct {
	ID            PlaygroundID `json:"id"`
	LiveSession   SessionID    `json:"live_session,omitempty"`
	Phase         string       `json:"phase"`
	SessionsTotal uint64       `json:"sessions_total"`
}
