package core

import "pkt.systems/langpad/schema"

// TreeRenderer formats parse trees for the tree panel.
type TreeRenderer interface {
	RenderTree(doc *schema.ParsedDocument, locate schema.Locator) *schema.TreeView
}

// Highlighter derives highlighting rules from grammar source.
type Highlighter interface {
	Generate(grammar string, session schema.SessionID) (*schema.HighlightRules, error)
}
