// Package grammar checks EBNF grammars and parses programs written in the languages they define.
//
// Grammars use the notation accepted by golang.org/x/exp/ebnf. The first production in source
// order is the start production. Productions whose names start with a lower-case letter are
// lexical: whitespace is never skipped inside them and they produce leaf nodes. All other
// productions are syntactic: whitespace is skipped before every token they reference.
package grammar

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.lsp.dev/protocol"
	"golang.org/x/exp/ebnf"

	"pkt.systems/langpad/schema"
)

// SourceName is the file name used for grammar positions.
const SourceName = "grammar.ebnf"

// DiagnosticSource tags diagnostics produced by this package.
const DiagnosticSource = "langpad"

// Grammar is a parsed and verified grammar.
type Grammar struct {
	Start       string
	productions ebnf.Grammar
	order       []string
}

// Check parses and verifies a grammar. The returned grammar is nil when any error-severity
// diagnostic was produced.
func Check(src string) (*Grammar, []protocol.Diagnostic) {
	parsed, err := ebnf.Parse(SourceName, strings.NewReader(src))
	if err != nil {
		return nil, toDiagnostics(err)
	}
	if len(parsed) == 0 {
		return nil, []protocol.Diagnostic{newDiagnostic(protocol.Position{}, protocol.DiagnosticSeverityError, "grammar has no productions")}
	}
	order := productionOrder(parsed)
	g := &Grammar{Start: order[0], productions: parsed, order: order}
	diags := toDiagnostics(ebnf.Verify(parsed, g.Start))
	for _, diag := range diags {
		if diag.Severity == protocol.DiagnosticSeverityError {
			return nil, diags
		}
	}
	return g, diags
}

// Compile returns the grammar or an error describing the first error diagnostic.
func Compile(src string) (*Grammar, error) {
	g, diags := Check(src)
	if g != nil {
		return g, nil
	}
	for _, diag := range diags {
		if diag.Severity == protocol.DiagnosticSeverityError {
			return nil, fmt.Errorf("%w: %d:%d: %s", schema.ErrInvalidGrammar, diag.Range.Start.Line+1, diag.Range.Start.Character+1, diag.Message)
		}
	}
	return nil, schema.ErrInvalidGrammar
}

// Productions returns production names in source order.
func (g *Grammar) Productions() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.order...)
}

// IsLexical reports whether a production name denotes a lexical production.
func IsLexical(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsLower(r)
}

// Tokens returns the distinct token literals referenced by the grammar, in source order.
func (g *Grammar) Tokens() []string {
	if g == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, name := range g.order {
		prod := g.productions[name]
		if prod == nil {
			continue
		}
		walk(prod.Expr, func(tok *ebnf.Token) {
			if tok.String == "" {
				return
			}
			if _, ok := seen[tok.String]; ok {
				return
			}
			seen[tok.String] = struct{}{}
			out = append(out, tok.String)
		})
	}
	return out
}

// LexicalTokens returns the literals that appear only inside lexical productions.
func (g *Grammar) LexicalTokens() map[string]bool {
	out := make(map[string]bool)
	if g == nil {
		return out
	}
	syntactic := make(map[string]bool)
	for _, name := range g.order {
		prod := g.productions[name]
		if prod == nil {
			continue
		}
		lexical := IsLexical(name)
		walk(prod.Expr, func(tok *ebnf.Token) {
			if lexical {
				if !syntactic[tok.String] {
					out[tok.String] = true
				}
				return
			}
			syntactic[tok.String] = true
			delete(out, tok.String)
		})
	}
	return out
}

func walk(expr ebnf.Expression, fn func(*ebnf.Token)) {
	switch e := expr.(type) {
	case ebnf.Alternative:
		for _, sub := range e {
			walk(sub, fn)
		}
	case ebnf.Sequence:
		for _, sub := range e {
			walk(sub, fn)
		}
	case *ebnf.Group:
		walk(e.Body, fn)
	case *ebnf.Option:
		walk(e.Body, fn)
	case *ebnf.Repetition:
		walk(e.Body, fn)
	case *ebnf.Token:
		fn(e)
	}
}

func productionOrder(g ebnf.Grammar) []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return g[names[i]].Name.StringPos.Offset < g[names[j]].Name.StringPos.Offset
	})
	return names
}

var errorPattern = regexp.MustCompile(`^(?:.*?:)?(\d+):(\d+): (.*)$`)

func toDiagnostics(err error) []protocol.Diagnostic {
	if err == nil {
		return nil
	}
	errs := splitErrors(err)
	out := make([]protocol.Diagnostic, 0, len(errs))
	for _, e := range errs {
		msg := e.Error()
		pos := protocol.Position{}
		if m := errorPattern.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			col, _ := strconv.Atoi(m[2])
			if line > 0 {
				pos.Line = uint32(line - 1)
			}
			if col > 0 {
				pos.Character = uint32(col - 1)
			}
			msg = m[3]
		} else {
			msg = strings.TrimPrefix(msg, SourceName+": ")
		}
		severity := protocol.DiagnosticSeverityError
		if strings.Contains(msg, "unreachable") {
			severity = protocol.DiagnosticSeverityWarning
		}
		out = append(out, newDiagnostic(pos, severity, msg))
	}
	return out
}

// splitErrors unpacks the error list returned by the ebnf package.
func splitErrors(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	rv := reflect.ValueOf(err)
	if rv.Kind() == reflect.Slice {
		out := make([]error, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if e, ok := rv.Index(i).Interface().(error); ok && e != nil {
				out = append(out, e)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return []error{err}
}

func newDiagnostic(pos protocol.Position, severity protocol.DiagnosticSeverity, msg string) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: pos,
			End:   protocol.Position{Line: pos.Line, Character: pos.Character + 1},
		},
		Severity: severity,
		Source:   DiagnosticSource,
		Message:  msg,
	}
}
