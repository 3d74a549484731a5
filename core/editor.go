package core

import "pkt.systems/langpad/schema"

// Editor is the editor model a language client attaches to.
type Editor interface {
	ID() schema.EditorID
	URI() string
	Value() string
	Version() int32
	SetValue(text string) int32
	OnDidChange(fn func(text string, version int32)) func()
	SetMarkers(diags []schema.Diagnostic)
	SetHighlighting(rules *schema.HighlightRules)
	Layout()
}
