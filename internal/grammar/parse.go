package grammar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.lsp.dev/protocol"
	"golang.org/x/exp/ebnf"

	"pkt.systems/langpad/schema"
)

// Parse parses text with the grammar's start production. The returned document has a nil root
// when the text does not match.
func (g *Grammar) Parse(uri, text string) (*schema.ParsedDocument, []protocol.Diagnostic) {
	doc := &schema.ParsedDocument{URI: uri}
	if g == nil {
		return doc, nil
	}
	p := &parser{
		grammar:  g.productions,
		src:      text,
		memo:     make(map[memoKey]memoEntry),
		active:   make(map[memoKey]bool),
		expected: make(map[string]struct{}),
		farthest: -1,
	}
	end, nodes, ok := p.match(&ebnf.Name{String: g.Start}, 0, false)
	if ok {
		rest := p.skipSpace(end)
		if rest == len(text) {
			if len(nodes) > 0 {
				doc.Root = nodes[0]
			}
			return doc, nil
		}
		if rest > p.farthest {
			p.farthest = rest
			p.expected = map[string]struct{}{"end of input": {}}
		}
	}
	return doc, []protocol.Diagnostic{p.diagnostic()}
}

type memoKey struct {
	name    string
	pos     int
	lexical bool
}

type memoEntry struct {
	end   int
	nodes []*schema.Node
	ok    bool
}

type parser struct {
	grammar  ebnf.Grammar
	src      string
	memo     map[memoKey]memoEntry
	active   map[memoKey]bool
	farthest int
	expected map[string]struct{}
}

func (p *parser) match(expr ebnf.Expression, pos int, lexical bool) (int, []*schema.Node, bool) {
	switch e := expr.(type) {
	case nil:
		return pos, nil, true
	case ebnf.Alternative:
		for _, alt := range e {
			if end, nodes, ok := p.match(alt, pos, lexical); ok {
				return end, nodes, true
			}
		}
		return pos, nil, false
	case ebnf.Sequence:
		cur := pos
		var out []*schema.Node
		for _, item := range e {
			end, nodes, ok := p.match(item, cur, lexical)
			if !ok {
				return pos, nil, false
			}
			cur = end
			out = append(out, nodes...)
		}
		return cur, out, true
	case *ebnf.Group:
		return p.match(e.Body, pos, lexical)
	case *ebnf.Option:
		if end, nodes, ok := p.match(e.Body, pos, lexical); ok {
			return end, nodes, true
		}
		return pos, nil, true
	case *ebnf.Repetition:
		cur := pos
		var out []*schema.Node
		for {
			end, nodes, ok := p.match(e.Body, cur, lexical)
			if !ok || end == cur {
				break
			}
			cur = end
			out = append(out, nodes...)
		}
		return cur, out, true
	case *ebnf.Token:
		start := pos
		if !lexical {
			start = p.skipSpace(pos)
		}
		if strings.HasPrefix(p.src[start:], e.String) {
			return start + len(e.String), nil, true
		}
		p.fail(start, strconv.Quote(e.String))
		return pos, nil, false
	case *ebnf.Range:
		start := pos
		if !lexical {
			start = p.skipSpace(pos)
		}
		lo, _ := utf8.DecodeRuneInString(e.Begin.String)
		hi, _ := utf8.DecodeRuneInString(e.End.String)
		r, size := utf8.DecodeRuneInString(p.src[start:])
		if size > 0 && r >= lo && r <= hi {
			return start + size, nil, true
		}
		p.fail(start, fmt.Sprintf("%q…%q", e.Begin.String, e.End.String))
		return pos, nil, false
	case *ebnf.Name:
		return p.production(e.String, pos, lexical)
	default:
		return pos, nil, false
	}
}

func (p *parser) production(name string, pos int, lexical bool) (int, []*schema.Node, bool) {
	prod := p.grammar[name]
	if prod == nil {
		return pos, nil, false
	}
	isLexical := IsLexical(name)
	start := pos
	if !lexical && isLexical {
		start = p.skipSpace(pos)
	}
	key := memoKey{name: name, pos: start, lexical: lexical}
	if entry, ok := p.memo[key]; ok {
		if !entry.ok {
			return pos, nil, false
		}
		return entry.end, entry.nodes, true
	}
	// Left recursion never makes progress under ordered choice.
	if p.active[key] {
		return pos, nil, false
	}
	p.active[key] = true
	end, children, ok := p.match(prod.Expr, start, lexical || isLexical)
	delete(p.active, key)

	var nodes []*schema.Node
	if ok {
		switch {
		case isLexical && lexical:
			// Nested lexical productions are folded into their enclosing token.
		case isLexical:
			nodes = []*schema.Node{{Rule: name, Text: p.src[start:end], Offset: start, Length: end - start}}
		default:
			offset := start
			if len(children) > 0 {
				offset = children[0].Offset
			} else {
				offset = p.skipSpace(start)
				if offset > end {
					offset = end
				}
			}
			nodes = []*schema.Node{{Rule: name, Offset: offset, Length: end - offset, Children: children}}
		}
	}
	p.memo[key] = memoEntry{end: end, nodes: nodes, ok: ok}
	if !ok {
		return pos, nil, false
	}
	return end, nodes, true
}

func (p *parser) skipSpace(pos int) int {
	for pos < len(p.src) {
		switch p.src[pos] {
		case ' ', '\t', '\n', '\r':
			pos++
		default:
			return pos
		}
	}
	return pos
}

func (p *parser) fail(pos int, expected string) {
	if pos < p.farthest {
		return
	}
	if pos > p.farthest {
		p.farthest = pos
		p.expected = make(map[string]struct{})
	}
	p.expected[expected] = struct{}{}
}

func (p *parser) diagnostic() protocol.Diagnostic {
	pos := p.farthest
	if pos < 0 {
		pos = 0
	}
	found := "end of input"
	if pos < len(p.src) {
		r, _ := utf8.DecodeRuneInString(p.src[pos:])
		found = strconv.QuoteRune(r)
	}
	expected := make([]string, 0, len(p.expected))
	for item := range p.expected {
		expected = append(expected, item)
	}
	sort.Strings(expected)
	msg := "unexpected " + found
	if len(expected) > 0 {
		msg += ", expected " + strings.Join(expected, " or ")
	}
	start := PositionAt(p.src, pos)
	end := start
	if pos < len(p.src) {
		end = PositionAt(p.src, pos+1)
	}
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: start, End: end},
		Severity: protocol.DiagnosticSeverityError,
		Source:   DiagnosticSource,
		Message:  msg,
	}
}
