// Package highlight derives editor highlighting rules from a grammar.
package highlight

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"pkt.systems/langpad/internal/grammar"
	"pkt.systems/langpad/schema"
)

// Token classes emitted in rules.
const (
	TokenKeyword    = "keyword"
	TokenOperator   = "operator"
	TokenIdentifier = "identifier"
	TokenNumber     = "number"
)

// Generator implements the highlighting collaborator used by the lifecycle manager.
type Generator struct{}

// Generate compiles src and returns its highlighting rules.
func (Generator) Generate(src string, session schema.SessionID) (*schema.HighlightRules, error) {
	g, err := grammar.Compile(src)
	if err != nil {
		return nil, err
	}
	rules := FromGrammar(g, session)
	return &rules, nil
}

// FromGrammar derives rules from a compiled grammar. It is pure: the same grammar and session
// always yield the same rules.
func FromGrammar(g *grammar.Grammar, session schema.SessionID) schema.HighlightRules {
	lexical := g.LexicalTokens()
	var keywords, operators []string
	for _, tok := range g.Tokens() {
		if lexical[tok] {
			continue
		}
		if isWord(tok) {
			keywords = append(keywords, tok)
		} else {
			operators = append(operators, tok)
		}
	}
	rules := schema.HighlightRules{
		LanguageID: LanguageID(session),
		Keywords:   keywords,
		Operators:  operators,
	}
	if len(keywords) > 0 {
		rules.Rules = append(rules.Rules, schema.TokenRule{Token: TokenKeyword, Pattern: `\b(?:` + alternation(keywords) + `)\b`})
	}
	if len(operators) > 0 {
		rules.Rules = append(rules.Rules, schema.TokenRule{Token: TokenOperator, Pattern: alternation(operators)})
	}
	rules.Rules = append(rules.Rules,
		schema.TokenRule{Token: TokenNumber, Pattern: `\b\d+(?:\.\d+)?\b`},
		schema.TokenRule{Token: TokenIdentifier, Pattern: `\b[A-Za-z_][A-Za-z0-9_]*\b`},
	)
	return rules
}

// LanguageID returns the editor language id registered for a session.
func LanguageID(session schema.SessionID) string {
	return "langpad-" + string(session)
}

func isWord(tok string) bool {
	for _, r := range tok {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return tok != ""
}

// alternation quotes tokens longest first so longer operators win.
func alternation(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, len(sorted))
	for i, tok := range sorted {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	return strings.Join(quoted, "|")
}
