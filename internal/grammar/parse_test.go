package grammar

import (
	"strings"
	"testing"

	"pkt.systems/langpad/schema"
)

func mustCompile(t *testing.T, src string) *Grammar {
	t.Helper()
	g, err := Compile(src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return g
}

func TestParseDefaultContent(t *testing.T) {
	g := mustCompile(t, schema.DefaultGrammar)
	doc, diags := g.Parse("file:///sample", schema.DefaultContent)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics %+v", diags)
	}
	if doc.URI != "file:///sample" {
		t.Fatalf("unexpected uri %q", doc.URI)
	}
	root := doc.Root
	if root == nil || root.Rule != "Model" {
		t.Fatalf("expected Model root, got %+v", root)
	}
	if len(root.Children) != 2 {
		t.Fatalf("expected two greetings, got %d", len(root.Children))
	}
	for i, want := range []string{"World", "Langpad"} {
		greeting := root.Children[i]
		if greeting.Rule != "Greeting" || len(greeting.Children) != 1 {
			t.Fatalf("unexpected greeting %+v", greeting)
		}
		name := greeting.Children[0]
		if name.Rule != "name" || name.Text != want {
			t.Fatalf("expected name %q, got %+v", want, name)
		}
		if schema.DefaultContent[name.Offset:name.Offset+name.Length] != want {
			t.Fatalf("offsets do not cover %q", want)
		}
	}
	if root.Children[1].Offset != strings.Index(schema.DefaultContent, "Hello Langpad") {
		t.Fatalf("unexpected greeting offset %d", root.Children[1].Offset)
	}
}

func TestParseReportsExpectedToken(t *testing.T) {
	g := mustCompile(t, schema.DefaultGrammar)
	doc, diags := g.Parse("file:///sample", "Hello World")
	if doc.Root != nil {
		t.Fatalf("expected no tree on failure")
	}
	if len(diags) != 1 || diags[0].Severity != schema.SeverityError {
		t.Fatalf("expected one error diagnostic, got %+v", diags)
	}
	if !strings.Contains(diags[0].Message, `"!"`) {
		t.Fatalf("expected message to mention \"!\", got %q", diags[0].Message)
	}
	if diags[0].Range.Start.Character != 11 {
		t.Fatalf("expected diagnostic at column 11, got %+v", diags[0].Range)
	}
}

func TestParseTrailingInput(t *testing.T) {
	g := mustCompile(t, schema.DefaultGrammar)
	_, diags := g.Parse("", "Hello World! 42")
	if len(diags) != 1 {
		t.Fatalf("expected one diagnostic, got %+v", diags)
	}
	if !strings.Contains(diags[0].Message, `'4'`) || !strings.Contains(diags[0].Message, `"Hello"`) {
		t.Fatalf("unexpected message %q", diags[0].Message)
	}
}

func TestParseEmptyInput(t *testing.T) {
	g := mustCompile(t, schema.DefaultGrammar)
	doc, diags := g.Parse("", "")
	if len(diags) != 0 || doc.Root == nil || len(doc.Root.Children) != 0 {
		t.Fatalf("expected empty model, got %+v %+v", doc.Root, diags)
	}
}

func TestParseLeftRecursionTerminates(t *testing.T) {
	g := mustCompile(t, "Expr = Expr \"+\" num | num .\nnum = \"0\" … \"9\" .\n")
	doc, diags := g.Parse("", "1")
	if len(diags) != 0 || doc.Root == nil {
		t.Fatalf("expected parse of single number, got %+v", diags)
	}
}

func TestParseOptionAndGroup(t *testing.T) {
	g := mustCompile(t, "Call = ident \"(\" [ ident { \",\" ident } ] \")\" .\nident = ( \"a\" … \"z\" ) { \"a\" … \"z\" } .\n")
	doc, diags := g.Parse("", "f( x , y )")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics %+v", diags)
	}
	if len(doc.Root.Children) != 3 {
		t.Fatalf("expected three identifiers, got %d", len(doc.Root.Children))
	}
	doc, diags = g.Parse("", "f()")
	if len(diags) != 0 || len(doc.Root.Children) != 1 {
		t.Fatalf("expected empty argument list to parse, got %+v", diags)
	}
}
