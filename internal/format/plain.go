package format

import (
	"fmt"
	"strconv"
	"strings"

	"go.lsp.dev/protocol"

	"pkt.systems/langpad/schema"
)

// maxTextWidth truncates leaf text in rendered lines.
const maxTextWidth = 40

// PlainRenderer formats parse trees as indented plain text lines.
type PlainRenderer struct {
	Indent string
}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{Indent: "  "}
}

// RenderTree converts a parsed document into one line per node. locate maps node offsets to
// editor ranges; it may be nil.
func (p *PlainRenderer) RenderTree(doc *schema.ParsedDocument, locate schema.Locator) *schema.TreeView {
	view := &schema.TreeView{Lines: []string{}, Nodes: []schema.TreeNodeView{}}
	if doc == nil || doc.Root == nil {
		return view
	}
	indent := p.Indent
	if indent == "" {
		indent = "  "
	}
	var walk func(node *schema.Node, depth int)
	walk = func(node *schema.Node, depth int) {
		if node == nil {
			return
		}
		view.Lines = append(view.Lines, strings.Repeat(indent, depth)+formatNode(node))
		entry := schema.TreeNodeView{Rule: node.Rule, Depth: depth}
		if locate != nil {
			entry.Range = locate(node.Offset, node.Length)
		}
		view.Nodes = append(view.Nodes, entry)
		for _, child := range node.Children {
			walk(child, depth+1)
		}
	}
	walk(doc.Root, 0)
	return view
}

// FormatDiagnostics converts diagnostics into user-facing lines.
func (p *PlainRenderer) FormatDiagnostics(diags []schema.Diagnostic) []string {
	lines := make([]string, 0, len(diags))
	for _, diag := range diags {
		lines = append(lines, FormatDiagnostic(diag))
	}
	return lines
}

// FormatDiagnostic renders one diagnostic as "line:col: severity: message" with one-based positions.
func FormatDiagnostic(diag schema.Diagnostic) string {
	return fmt.Sprintf("%d:%d: %s: %s", diag.Range.Start.Line+1, diag.Range.Start.Character+1, severityLabel(diag.Severity), diag.Message)
}

func severityLabel(severity protocol.DiagnosticSeverity) string {
	switch severity {
	case protocol.DiagnosticSeverityError:
		return "error"
	case protocol.DiagnosticSeverityWarning:
		return "warning"
	case protocol.DiagnosticSeverityInformation:
		return "info"
	case protocol.DiagnosticSeverityHint:
		return "hint"
	default:
		return "diagnostic"
	}
}

func formatNode(node *schema.Node) string {
	label := node.Rule
	if label == "" {
		label = "node"
	}
	if len(node.Children) > 0 || node.Text == "" {
		return label
	}
	text := node.Text
	if len(text) > maxTextWidth {
		text = text[:maxTextWidth] + "..."
	}
	return label + " " + strconv.Quote(text)
}
