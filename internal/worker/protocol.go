// Package worker runs language workers as goroutines connected to their clients by an in-memory
// pipe carrying header-framed JSON-RPC 2.0.
package worker

import (
	"go.lsp.dev/protocol"

	"pkt.systems/langpad/schema"
)

// Methods exchanged between clients and workers in addition to the LSP lifecycle methods.
const (
	// MethodStart asks a worker to build its language service.
	MethodStart = "langpad/start"
	// MethodReady reports that a worker accepted its start message.
	MethodReady = "langpad/ready"
	// MethodFailed reports that a worker could not start.
	MethodFailed = "langpad/failed"
	// MethodDocumentChanged reports a rebuilt document with its diagnostics.
	MethodDocumentChanged = "langpad/documentChanged"
)

// LanguageIDGrammar is the language id of definition documents.
const LanguageIDGrammar = "ebnf"

// StartParams is the payload of MethodStart.
type StartParams struct {
	Session schema.SessionID   `json:"session"`
	Kind    schema.SessionKind `json:"kind"`
	Grammar string             `json:"grammar,omitempty"`
}

// FailedParams is the payload of MethodFailed.
type FailedParams struct {
	Message string `json:"message"`
}

// DocumentChangedParams is the payload of MethodDocumentChanged.
type DocumentChangedParams struct {
	URI         protocol.DocumentURI   `json:"uri"`
	Version     int32                  `json:"version"`
	Text        string                 `json:"text"`
	Diagnostics []protocol.Diagnostic  `json:"diagnostics"`
	Document    *schema.ParsedDocument `json:"document,omitempty"`
}
