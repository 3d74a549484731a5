package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.lsp.dev/protocol"

	"pkt.systems/langpad/core"
	"pkt.systems/langpad/internal/appconfig"
	"pkt.systems/langpad/schema"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), want) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output:\n%s", want, out.String())
}

func TestPrintEvent(t *testing.T) {
	diag := protocol.Diagnostic{
		Range:    protocol.Range{Start: protocol.Position{Line: 0, Character: 4}},
		Severity: protocol.DiagnosticSeverityError,
		Message:  "undefined: Missing",
	}
	var out bytes.Buffer
	printEvent(&out, schema.UIEvent{Type: schema.UIEventDiagnostics, Diagnostics: []schema.Diagnostic{diag}})
	printEvent(&out, schema.UIEvent{Type: schema.UIEventMarkers, Editor: schema.EditorDefinition, Diagnostics: []schema.Diagnostic{diag}})
	printEvent(&out, schema.UIEvent{Type: schema.UIEventMarkers, Editor: schema.EditorSample, Diagnostics: []schema.Diagnostic{diag}})
	printEvent(&out, schema.UIEvent{Type: schema.UIEventError, ErrorName: "Handshake failed", ErrorDetails: "worker closed"})
	printEvent(&out, schema.UIEvent{Type: schema.UIEventLoading, Loading: true})
	printEvent(&out, schema.UIEvent{Type: schema.UIEventLoading})
	printEvent(&out, schema.UIEvent{Type: schema.UIEventLayout})
	printEvent(&out, schema.UIEvent{Type: schema.UIEventTree, Session: "sample-1", Tree: &schema.TreeView{Lines: []string{"Model", "  Greeting"}}})
	printEvent(&out, schema.UIEvent{Type: schema.UIEventClosed})

	want := strings.Join([]string{
		"grammar:1:5: error: undefined: Missing",
		"sample:1:5: error: undefined: Missing",
		"error: Handshake failed: worker closed",
		"-- regenerating",
		"-- tree (sample-1)",
		"Model",
		"  Greeting",
		"-- closed",
	}, "\n") + "\n"
	if out.String() != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestUniqueDirs(t *testing.T) {
	dirs := uniqueDirs("/a/g.ebnf", "/a/prog.txt", "/b/x")
	if len(dirs) != 2 || dirs[0] != "/a" || dirs[1] != "/b" {
		t.Fatalf("unexpected dirs %v", dirs)
	}
}

type updateRecorder struct {
	core.Service
	definition []string
	sample     []string
}

func (u *updateRecorder) UpdateDefinition(_ context.Context, req schema.UpdateTextRequest) (schema.UpdateTextResponse, error) {
	u.definition = append(u.definition, req.Text)
	return schema.UpdateTextResponse{}, nil
}

func (u *updateRecorder) UpdateSample(_ context.Context, req schema.UpdateTextRequest) (schema.UpdateTextResponse, error) {
	u.sample = append(u.sample, req.Text)
	return schema.UpdateTextResponse{}, nil
}

func TestApplyChangeRoutesByPath(t *testing.T) {
	dir := t.TempDir()
	files := watchFiles{grammar: filepath.Join(dir, "g.ebnf"), sample: filepath.Join(dir, "prog.txt")}
	if err := os.WriteFile(files.grammar, []byte("G = \"x\" .\r\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(files.sample, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	rec := &updateRecorder{}
	ctx := context.Background()
	if err := applyChange(ctx, rec, "pg", files, files.grammar); err != nil {
		t.Fatalf("apply grammar: %v", err)
	}
	if err := applyChange(ctx, rec, "pg", files, files.sample); err != nil {
		t.Fatalf("apply sample: %v", err)
	}
	if err := applyChange(ctx, rec, "pg", files, filepath.Join(dir, "other")); err != nil {
		t.Fatalf("apply other: %v", err)
	}
	if len(rec.definition) != 1 || rec.definition[0] != "G = \"x\" .\n" {
		t.Fatalf("unexpected definition updates %q", rec.definition)
	}
	if len(rec.sample) != 1 || rec.sample[0] != "x" {
		t.Fatalf("unexpected sample updates %q", rec.sample)
	}
}

func TestRunWatchFollowsFileEdits(t *testing.T) {
	dir := t.TempDir()
	files := watchFiles{grammar: filepath.Join(dir, "g.ebnf"), sample: filepath.Join(dir, "prog.txt")}
	if err := os.WriteFile(files.grammar, []byte(schema.DefaultGrammar), 0o600); err != nil {
		t.Fatalf("write grammar: %v", err)
	}
	if err := os.WriteFile(files.sample, []byte(schema.DefaultContent), 0o600); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.StateDir = filepath.Join(dir, "state")
	cfg.Playground.DebounceMS = 50

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, out, cfg, files, false) }()

	waitForOutput(t, out, `name "World"`)
	if err := os.WriteFile(files.sample, []byte("Hello Gopher!\n"), 0o600); err != nil {
		t.Fatalf("rewrite sample: %v", err)
	}
	waitForOutput(t, out, `name "Gopher"`)
	if err := os.WriteFile(files.grammar, []byte("Model = Missing .\n"), 0o600); err != nil {
		t.Fatalf("rewrite grammar: %v", err)
	}
	waitForOutput(t, out, "grammar:1:")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("watch did not stop")
	}
}
