package schema

import (
	"time"

	"go.lsp.dev/protocol"
)

// UIEventType identifies the UI effect carried by a UIEvent.
type UIEventType string

const (
	// UIEventDiagnostics shows definition diagnostics in the error panel.
	UIEventDiagnostics UIEventType = "diagnostics"
	// UIEventError shows a named error in the error panel.
	UIEventError UIEventType = "error"
	// UIEventClearError hides the error panel.
	UIEventClearError UIEventType = "clear_error"
	// UIEventLoading toggles the loading overlay.
	UIEventLoading UIEventType = "loading"
	// UIEventTree carries a rendered parse tree.
	UIEventTree UIEventType = "tree"
	// UIEventMarkers carries editor markers for one editor.
	UIEventMarkers UIEventType = "markers"
	// UIEventHighlight carries highlighting rules for the sample editor.
	UIEventHighlight UIEventType = "highlight"
	// UIEventLayout asks an editor to recompute its layout.
	UIEventLayout UIEventType = "layout"
	// UIEventClosed reports that the playground was closed.
	UIEventClosed UIEventType = "closed"
)

// UIEvent is a UI-facing effect emitted by a playground.
type UIEvent struct {
	Playground   PlaygroundID    `json:"playground"`
	Type         UIEventType     `json:"type"`
	Editor       EditorID        `json:"editor,omitempty"`
	Session      SessionID       `json:"session,omitempty"`
	Loading      bool            `json:"loading,omitempty"`
	ErrorName    string          `json:"error_name,omitempty"`
	ErrorDetails string          `json:"error_details,omitempty"`
	Diagnostics  []Diagnostic    `json:"diagnostics,omitempty"`
	Tree         *TreeView       `json:"tree,omitempty"`
	Highlight    *HighlightRules `json:"highlight,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// TreeView is a rendered parse tree.
type TreeView struct {
	Lines []string       `json:"lines"`
	Nodes []TreeNodeView `json:"nodes"`
}

// TreeNodeView locates one rendered tree line in the sample editor.
type TreeNodeView struct {
	Rule  string         `json:"rule"`
	Depth int            `json:"depth"`
	Range protocol.Range `json:"range"`
}
