package worker

import (
	"fmt"

	"go.lsp.dev/protocol"

	"pkt.systems/langpad/internal/grammar"
	"pkt.systems/langpad/schema"
)

// languageService analyzes one document snapshot.
type languageService interface {
	Analyze(uri, text string) ([]protocol.Diagnostic, *schema.ParsedDocument)
}

// buildService returns the language service for a start request.
func buildService(params StartParams) (languageService, error) {
	switch params.Kind {
	case schema.SessionKindDefinition:
		return grammarChecker{}, nil
	case schema.SessionKindSample:
		g, err := grammar.Compile(params.Grammar)
		if err != nil {
			return nil, err
		}
		return sampleParser{grammar: g}, nil
	default:
		return nil, fmt.Errorf("unknown session kind %q", params.Kind)
	}
}

// grammarChecker validates grammar documents.
type grammarChecker struct{}

func (grammarChecker) Analyze(_ string, text string) ([]protocol.Diagnostic, *schema.ParsedDocument) {
	_, diags := grammar.Check(text)
	return diags, nil
}

// sampleParser parses programs with a compiled grammar.
type sampleParser struct {
	grammar *grammar.Grammar
}

func (p sampleParser) Analyze(uri, text string) ([]protocol.Diagnostic, *schema.ParsedDocument) {
	doc, diags := p.grammar.Parse(uri, text)
	return diags, doc
}
