package schema

import "go.lsp.dev/protocol"

// Diagnostic is an LSP diagnostic as produced by the language workers.
type Diagnostic = protocol.Diagnostic

const (
	// SeverityError marks diagnostics that abort a regeneration cycle.
	SeverityError = protocol.DiagnosticSeverityError
	// SeverityWarning marks diagnostics that are reported but never block.
	SeverityWarning = protocol.DiagnosticSeverityWarning
)

// NotificationKind tags the payload carried by a Notification.
type NotificationKind string

const (
	// NotificationDocumentChanged reports a rebuilt document and its diagnostics.
	NotificationDocumentChanged NotificationKind = "document_changed"
)

// Notification is a change notification raised by a language client.
// Diagnostics is nil when the worker did not report any. Text is the document text at Version
// that the diagnostics and document were computed from.
type Notification struct {
	Kind        NotificationKind
	Session     SessionID
	URI         string
	Version     int32
	Text        string
	Diagnostics []Diagnostic
	Document    *ParsedDocument
}

// HasErrors reports whether the notification carries an error-severity diagnostic.
func (n Notification) HasErrors() bool {
	for _, diag := range n.Diagnostics {
		if diag.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns only the error-severity diagnostics.
func (n Notification) Errors() []Diagnostic {
	var out []Diagnostic
	for _, diag := range n.Diagnostics {
		if diag.Severity == SeverityError {
			out = append(out, diag)
		}
	}
	return out
}

// ParsedDocument is the syntax tree of a sample program.
type ParsedDocument struct {
	URI  string `json:"uri"`
	Root *Node  `json:"root,omitempty"`
}

// Node is a syntax tree node. Offset and Length are byte offsets into the document text.
type Node struct {
	Rule     string  `json:"rule"`
	Text     string  `json:"text,omitempty"`
	Offset   int     `json:"offset"`
	Length   int     `json:"length"`
	Children []*Node `json:"children,omitempty"`
}

// HighlightRules are the editor highlighting rules generated from a grammar.
type HighlightRules struct {
	LanguageID string      `json:"language_id"`
	Keywords   []string    `json:"keywords"`
	Operators  []string    `json:"operators"`
	Rules      []TokenRule `json:"rules"`
}

// TokenRule maps a regular expression to a token class.
type TokenRule struct {
	Token   string `json:"token"`
	Pattern string `json:"pattern"`
}

// Locator maps a byte range of a document to an editor range.
type Locator func(offset, length int) protocol.Range
