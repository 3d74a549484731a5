// Package langclient connects editor models to language workers.
package langclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.lsp.dev/protocol"

	"pkt.systems/langpad/core"
	"pkt.systems/langpad/internal/logx"
	"pkt.systems/langpad/internal/worker"
	"pkt.systems/langpad/schema"
	"pkt.systems/pslog"
)

// Factory attaches clients. It implements core.ClientFactory.
type Factory struct {
	Logger pslog.Logger
}

// Attach builds a client for req. The client does not talk to the worker until Start.
func (f Factory) Attach(_ context.Context, req core.AttachRequest) (core.LanguageClient, error) {
	if req.Worker == nil {
		return nil, fmt.Errorf("attach %s: %w", req.Session, schema.ErrWorkerClosed)
	}
	if req.Editor == nil {
		return nil, fmt.Errorf("attach %s: editor is required", req.Session)
	}
	logger := f.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	languageID := worker.LanguageIDGrammar
	if req.Kind == schema.SessionKindSample {
		languageID = "langpad-" + string(req.Session)
		if req.Highlight != nil && req.Highlight.LanguageID != "" {
			languageID = req.Highlight.LanguageID
		}
	}
	return &Client{
		session:    req.Session,
		worker:     req.Worker,
		editor:     req.Editor,
		languageID: languageID,
		handlers:   make(map[int]func(schema.Notification)),
		log:        logx.WithSession(logger, req.Session),
	}, nil
}

// Client is a language client for one editor model.
type Client struct {
	session    schema.SessionID
	worker     core.Worker
	editor     core.Editor
	languageID string
	log        pslog.Logger

	mu        sync.Mutex
	started   bool
	stopped   bool
	handlers  map[int]func(schema.Notification)
	nextID    int
	releases  []func()
	lastSent  int32

	// sendMu orders document notifications without blocking notification delivery.
	sendMu sync.Mutex
}

// Start initializes the worker and opens the editor document.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return schema.ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	c.track(c.worker.Subscribe(worker.MethodDocumentChanged, c.onDocumentChanged))
	var result protocol.InitializeResult
	if err := c.worker.Call(ctx, protocol.MethodInitialize, &protocol.InitializeParams{}, &result); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if err := c.worker.Notify(ctx, protocol.MethodInitialized, &protocol.InitializedParams{}); err != nil {
		return fmt.Errorf("initialized: %w", err)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.track(c.editor.OnDidChange(c.onEditorChange))
	version := c.editor.Version()
	open := &protocol.DidOpenTextDocumentParams{TextDocument: protocol.TextDocumentItem{
		URI:        protocol.DocumentURI(c.editor.URI()),
		LanguageID: protocol.LanguageIdentifier(c.languageID),
		Version:    version,
		Text:       c.editor.Value(),
	}}
	if err := c.worker.Notify(ctx, protocol.MethodTextDocumentDidOpen, open); err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	c.mu.Lock()
	c.lastSent = version
	c.mu.Unlock()
	c.log.Debug("langclient started", "uri", c.editor.URI(), "language", c.languageID)
	return nil
}

// onEditorChange forwards edits as full-document changes.
func (c *Client) onEditorChange(text string, version int32) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.mu.Lock()
	if c.stopped || version <= c.lastSent {
		c.mu.Unlock()
		return
	}
	c.lastSent = version
	c.mu.Unlock()
	change := &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: protocol.DocumentURI(c.editor.URI())},
			Version:                version,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: text}},
	}
	if err := c.worker.Notify(context.Background(), protocol.MethodTextDocumentDidChange, change); err != nil {
		c.log.Warn("langclient change failed", "version", version, "err", err)
	}
}

// onDocumentChanged runs on the worker connection and must not write to it.
func (c *Client) onDocumentChanged(raw json.RawMessage) {
	var params worker.DocumentChangedParams
	if err := json.Unmarshal(raw, &params); err != nil {
		c.log.Warn("langclient notification malformed", "err", err)
		return
	}
	n := schema.Notification{
		Kind:        schema.NotificationDocumentChanged,
		Session:     c.session,
		URI:         string(params.URI),
		Version:     params.Version,
		Text:        params.Text,
		Diagnostics: params.Diagnostics,
		Document:    params.Document,
	}
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	handlers := make([]func(schema.Notification), 0, len(c.handlers))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.handlers[id]; ok {
			handlers = append(handlers, fn)
		}
	}
	c.mu.Unlock()
	c.editor.SetMarkers(params.Diagnostics)
	for _, fn := range handlers {
		fn(n)
	}
}

// OnNotification registers fn for change notifications.
func (c *Client) OnNotification(fn func(schema.Notification)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// Stop shuts the worker down. Stopping a client that never started returns
// schema.ErrClientNotStarted.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	started := c.started
	releases := c.releases
	c.releases = nil
	c.mu.Unlock()
	for _, release := range releases {
		release()
	}
	if !started {
		return schema.ErrClientNotStarted
	}
	var errs []error
	if err := c.worker.Call(ctx, protocol.MethodShutdown, nil, nil); err != nil {
		errs = append(errs, fmt.Errorf("shutdown: %w", err))
	} else if err := c.worker.Notify(ctx, protocol.MethodExit, nil); err != nil {
		errs = append(errs, fmt.Errorf("exit: %w", err))
	}
	err := errors.Join(errs...)
	if err != nil {
		c.log.Debug("langclient stop failed", "err", err)
	} else {
		c.log.Debug("langclient stopped")
	}
	return err
}

// ModelValue returns the text of the attached editor.
func (c *Client) ModelValue() string {
	return c.editor.Value()
}

// Layout refreshes the attached editor's layout.
func (c *Client) Layout() {
	c.editor.Layout()
}

func (c *Client) track(release func()) {
	if release == nil {
		return
	}
	c.mu.Lock()
	c.releases = append(c.releases, release)
	c.mu.Unlock()
}
