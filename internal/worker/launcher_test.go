package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.lsp.dev/protocol"

	"pkt.systems/langpad/core"
	"pkt.systems/langpad/schema"
)

type panicService struct{}

func (panicService) Analyze(string, string) ([]protocol.Diagnostic, *schema.ParsedDocument) {
	panic("analyzer exploded")
}

func spawn(t *testing.T, l *Launcher, req core.SpawnRequest) *Endpoint {
	t.Helper()
	w, err := l.Spawn(context.Background(), req)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	t.Cleanup(func() { _ = w.Terminate() })
	return w.(*Endpoint)
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for connection to close")
	}
}

func TestSpawnDefinitionWorker(t *testing.T) {
	l := NewLauncher(Options{})
	ep := spawn(t, l, core.SpawnRequest{Session: schema.DefinitionSessionID, Kind: schema.SessionKindDefinition})
	if ep.Session() != schema.DefinitionSessionID {
		t.Fatalf("unexpected session %s", ep.Session())
	}
}

func TestSpawnSampleWorkerRejectsInvalidGrammar(t *testing.T) {
	l := NewLauncher(Options{})
	_, err := l.Spawn(context.Background(), core.SpawnRequest{Session: "sample-1", Kind: schema.SessionKindSample, Grammar: "Model = Missing ."})
	if !errors.Is(err, schema.ErrWorkerFailed) {
		t.Fatalf("expected ErrWorkerFailed, got %v", err)
	}
}

func TestSpawnRejectsWhenWorkerCrashes(t *testing.T) {
	l := NewLauncher(Options{})
	l.build = func(StartParams) (languageService, error) { panic("boom") }
	_, err := l.Spawn(context.Background(), core.SpawnRequest{Session: "sample-1", Kind: schema.SessionKindSample})
	if !errors.Is(err, schema.ErrWorkerClosed) {
		t.Fatalf("expected ErrWorkerClosed, got %v", err)
	}
}

func TestSpawnHonoursContext(t *testing.T) {
	l := NewLauncher(Options{})
	block := make(chan struct{})
	defer close(block)
	l.build = func(StartParams) (languageService, error) {
		<-block
		return grammarChecker{}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := l.Spawn(ctx, core.SpawnRequest{Session: "sample-1", Kind: schema.SessionKindSample}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSpawnHandshakeTimeout(t *testing.T) {
	l := NewLauncher(Options{HandshakeTimeout: 30 * time.Millisecond})
	block := make(chan struct{})
	defer close(block)
	l.build = func(StartParams) (languageService, error) {
		<-block
		return grammarChecker{}, nil
	}
	if _, err := l.Spawn(context.Background(), core.SpawnRequest{Session: "sample-1", Kind: schema.SessionKindSample}); !errors.Is(err, schema.ErrHandshakeTimeout) {
		t.Fatalf("expected handshake timeout, got %v", err)
	}
}

func TestWorkerPublishesDocumentChanges(t *testing.T) {
	l := NewLauncher(Options{})
	ep := spawn(t, l, core.SpawnRequest{Session: "sample-1", Kind: schema.SessionKindSample, Grammar: schema.DefaultGrammar})
	changes := make(chan DocumentChangedParams, 4)
	cancel := ep.Subscribe(MethodDocumentChanged, func(raw json.RawMessage) {
		var params DocumentChangedParams
		if err := json.Unmarshal(raw, &params); err == nil {
			changes <- params
		}
	})
	defer cancel()

	ctx := context.Background()
	var result protocol.InitializeResult
	if err := ep.Call(ctx, protocol.MethodInitialize, &protocol.InitializeParams{}, &result); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	open := &protocol.DidOpenTextDocumentParams{TextDocument: protocol.TextDocumentItem{
		URI:        "inmemory:///sample.txt",
		LanguageID: "langpad-sample-1",
		Version:    1,
		Text:       "Hello World!",
	}}
	if err := ep.Notify(ctx, protocol.MethodTextDocumentDidOpen, open); err != nil {
		t.Fatalf("did open: %v", err)
	}
	select {
	case got := <-changes:
		if got.Version != 1 || len(got.Diagnostics) != 0 || got.Document == nil || got.Document.Root == nil {
			t.Fatalf("unexpected change %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for document change")
	}

	change := &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: "inmemory:///sample.txt"},
			Version:                2,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: "Hello"}},
	}
	if err := ep.Notify(ctx, protocol.MethodTextDocumentDidChange, change); err != nil {
		t.Fatalf("did change: %v", err)
	}
	select {
	case got := <-changes:
		if got.Version != 2 || len(got.Diagnostics) != 1 || got.Diagnostics[0].Severity != protocol.DiagnosticSeverityError {
			t.Fatalf("expected parse error, got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for document change")
	}

	if err := ep.Call(ctx, protocol.MethodShutdown, nil, nil); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := ep.Notify(ctx, protocol.MethodExit, nil); err != nil {
		t.Fatalf("exit: %v", err)
	}
	waitDone(t, ep.Done())
}

func TestWorkerCrashClosesConnection(t *testing.T) {
	l := NewLauncher(Options{})
	l.build = func(StartParams) (languageService, error) { return panicService{}, nil }
	ep := spawn(t, l, core.SpawnRequest{Session: "sample-1", Kind: schema.SessionKindSample})
	open := &protocol.DidOpenTextDocumentParams{TextDocument: protocol.TextDocumentItem{URI: "inmemory:///sample.txt", Version: 1}}
	if err := ep.Notify(context.Background(), protocol.MethodTextDocumentDidOpen, open); err != nil {
		t.Fatalf("did open: %v", err)
	}
	waitDone(t, ep.Done())
	if err := ep.Notify(context.Background(), protocol.MethodTextDocumentDidOpen, open); !errors.Is(err, schema.ErrWorkerClosed) {
		t.Fatalf("expected ErrWorkerClosed after crash, got %v", err)
	}
}

func TestTerminateIsIdempotent(t *testing.T) {
	l := NewLauncher(Options{})
	ep := spawn(t, l, core.SpawnRequest{Session: schema.DefinitionSessionID, Kind: schema.SessionKindDefinition})
	if err := ep.Terminate(); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if err := ep.Terminate(); err != nil {
		t.Fatalf("second terminate: %v", err)
	}
	waitDone(t, ep.Done())
	if err := ep.Call(context.Background(), protocol.MethodShutdown, nil, nil); !errors.Is(err, schema.ErrWorkerClosed) {
		t.Fatalf("expected ErrWorkerClosed, got %v", err)
	}
}
