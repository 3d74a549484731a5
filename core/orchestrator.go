package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.lsp.dev/protocol"

	"pkt.systems/langpad/internal/editor"
	"pkt.systems/langpad/internal/grammar"
	"pkt.systems/langpad/internal/logx"
	"pkt.systems/langpad/schema"
	"pkt.systems/pslog"
)

// OrchestratorDeps wires an Orchestrator.
type OrchestratorDeps struct {
	Playground  schema.PlaygroundID
	Config      schema.PlaygroundConfig
	Spawner     WorkerSpawner
	Clients     ClientFactory
	Highlighter Highlighter
	Renderer    TreeRenderer
	// Display overrides the default event-backed display.
	Display Display
	Sink    EventSink
	Logger  pslog.Logger
}

// Orchestrator coordinates the definition and sample sessions of one playground.
type Orchestrator struct {
	id        schema.PlaygroundID
	cfg       schema.PlaygroundConfig
	state     *State
	scheduler *Scheduler
	lifecycle *LifecycleManager
	display   Display
	renderer  TreeRenderer
	sink      EventSink
	log       pslog.Logger

	definitionEditor *editor.Model
	sampleEditor     *editor.Model
	definition       *SessionHandle

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
	closed    bool
}

// StartOrchestrator seeds state, creates both editors and starts the definition session.
// Failing to start the definition session is fatal and returned.
func StartOrchestrator(ctx context.Context, deps OrchestratorDeps, snapshot schema.StateSnapshot) (*Orchestrator, error) {
	cfg, err := schema.NormalizePlaygroundConfig(deps.Config)
	if err != nil {
		return nil, err
	}
	if deps.Spawner == nil || deps.Clients == nil {
		return nil, fmt.Errorf("start playground: %w", schema.ErrMissingClient)
	}
	logger := deps.Logger
	if logger == nil {
		logger = logx.WithPlayground(ctx, deps.Playground)
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o := &Orchestrator{
		id:       deps.Playground,
		cfg:      cfg,
		state:    NewState(schema.NormalizeText(snapshot.Grammar), schema.NormalizeText(snapshot.Content)),
		renderer: deps.Renderer,
		sink:     deps.Sink,
		log:      logger,
		ctx:      runCtx,
		cancel:   cancel,
	}
	o.scheduler = NewScheduler(logger)
	o.display = deps.Display
	if o.display == nil {
		o.display = NewEventDisplay(o.emit)
	}
	o.definitionEditor = editor.New(editor.Options{
		ID:   schema.EditorDefinition,
		URI:  documentURI(o.id, "grammar.ebnf"),
		Text: o.state.Definition(),
		Emit: o.emit,
	})
	o.sampleEditor = editor.New(editor.Options{
		ID:   schema.EditorSample,
		URI:  documentURI(o.id, "sample.txt"),
		Text: o.state.Sample(),
		Emit: o.emit,
	})
	o.lifecycle = NewLifecycleManager(LifecycleConfig{
		State:          o.state,
		Editor:         o.sampleEditor,
		Spawner:        deps.Spawner,
		Clients:        deps.Clients,
		Highlighter:    deps.Highlighter,
		Display:        o.display,
		DisposeTimeout: cfg.DisposeTimeout,
		OnNotification: o.onSampleNotification,
		Logger:         logger,
	})

	if err := o.startDefinition(deps); err != nil {
		cancel()
		logger.Error("orchestrator start failed", "err", err)
		return nil, err
	}
	logger.Info("orchestrator started")
	return o, nil
}

func (o *Orchestrator) startDefinition(deps OrchestratorDeps) error {
	worker, err := deps.Spawner.Spawn(o.ctx, SpawnRequest{Session: schema.DefinitionSessionID, Kind: schema.SessionKindDefinition})
	if err != nil {
		return NewSessionError(SessionErrorHandshake, "spawn definition worker", schema.DefinitionSessionID, err)
	}
	handle := NewSessionHandle(schema.DefinitionSessionID, schema.SessionKindDefinition, worker, o.cfg.DisposeTimeout)
	client, err := deps.Clients.Attach(o.ctx, AttachRequest{
		Session: schema.DefinitionSessionID,
		Kind:    schema.SessionKindDefinition,
		Worker:  worker,
		Editor:  o.definitionEditor,
	})
	if err == nil && client == nil {
		err = schema.ErrMissingClient
	}
	if err != nil {
		o.disposeStartup(handle)
		return NewSessionError(SessionErrorAttach, "attach definition client", schema.DefinitionSessionID, err)
	}
	handle.Client = client
	handle.AddSubscription(client.OnNotification(o.onDefinitionNotification))
	o.definition = handle
	if err := client.Start(o.ctx); err != nil {
		o.disposeStartup(handle)
		return NewSessionError(SessionErrorStart, "start definition client", schema.DefinitionSessionID, err)
	}
	return nil
}

func (o *Orchestrator) disposeStartup(handle *SessionHandle) {
	if err := handle.Dispose(o.ctx); err != nil {
		o.log.Warn("orchestrator cleanup failed", "session", handle.ID, "err", err)
	}
}

// ID returns the playground id.
func (o *Orchestrator) ID() schema.PlaygroundID { return o.id }

// Lifecycle exposes the sample session manager.
func (o *Orchestrator) Lifecycle() *LifecycleManager { return o.lifecycle }

// onDefinitionNotification runs on the worker connection goroutine and must not block.
// Notifications for a version older than the editor's are dropped: a newer one follows.
func (o *Orchestrator) onDefinitionNotification(n schema.Notification) {
	if o.isClosed() {
		return
	}
	text, ok := analyzedText(o.definitionEditor, n)
	if !ok {
		o.log.Debug("orchestrator definition notification stale", "version", n.Version, "current", o.definitionEditor.Version())
		return
	}
	o.state.SetDefinition(text)
	if n.HasErrors() {
		if o.scheduler.Cancel(ActionDefinitionChanged) {
			o.log.Debug("orchestrator pending regeneration cancelled", "version", n.Version)
		}
		o.log.Debug("orchestrator definition has errors", "count", len(n.Errors()), "version", n.Version)
		o.display.ReportDiagnostics(n.Errors())
		return
	}
	o.scheduler.Schedule(ActionDefinitionChanged, o.cfg.DebounceDelay, func() {
		o.regenerate(text)
	})
}

func (o *Orchestrator) regenerate(grammarText string) {
	if o.ctx.Err() != nil {
		return
	}
	start := time.Now()
	o.display.ClearError()
	o.display.SetLoading(true)
	handle := o.lifecycle.Regenerate(o.ctx, grammarText, o.state.Sample())
	o.display.SetLoading(false)
	if handle != nil {
		o.log.Info("orchestrator regenerate ok", "session", handle.ID, "elapsed", time.Since(start))
	}
}

// onSampleNotification is only called for the live sample handle.
func (o *Orchestrator) onSampleNotification(handle *SessionHandle, n schema.Notification) {
	if o.isClosed() {
		return
	}
	o.state.SetSample(handle.Client.ModelValue())
	text, ok := analyzedText(o.sampleEditor, n)
	if !ok {
		o.log.Debug("orchestrator sample notification stale", "session", handle.ID, "version", n.Version)
		return
	}
	doc := n.Document
	o.scheduler.Schedule(ActionSampleChanged, o.cfg.DebounceDelay, func() {
		o.renderTree(handle.ID, doc, text)
	})
}

// analyzedText returns the text a notification was computed from. It reports false when the
// notification is older than the editor. Notifications without a version describe the current text.
func analyzedText(model *editor.Model, n schema.Notification) (string, bool) {
	if n.Version == 0 {
		return model.Value(), true
	}
	if n.Version < model.Version() {
		return "", false
	}
	if n.Text == "" {
		return model.Value(), true
	}
	return n.Text, true
}

func (o *Orchestrator) renderTree(session schema.SessionID, doc *schema.ParsedDocument, text string) {
	if o.renderer == nil {
		return
	}
	view := o.renderer.RenderTree(doc, func(offset, length int) protocol.Range {
		return grammar.RangeOf(text, offset, length)
	})
	o.emit(schema.UIEvent{Type: schema.UIEventTree, Editor: schema.EditorSample, Session: session, Tree: view})
}

// Resize refreshes the layout of both editors.
func (o *Orchestrator) Resize() {
	if o.definition != nil && o.definition.Client != nil {
		o.definition.Client.Layout()
	}
	if live := o.lifecycle.Live(); live != nil && live.Client != nil {
		live.Client.Layout()
	}
}

// EditDefinition replaces the grammar text.
func (o *Orchestrator) EditDefinition(text string) (int32, error) {
	if o.isClosed() {
		return 0, schema.ErrClosed
	}
	return o.definitionEditor.SetValue(text), nil
}

// EditSample replaces the program text.
func (o *Orchestrator) EditSample(text string) (int32, error) {
	if o.isClosed() {
		return 0, schema.ErrClosed
	}
	version := o.sampleEditor.SetValue(text)
	if o.lifecycle.Live() == nil {
		o.state.SetSample(o.sampleEditor.Value())
	}
	return version, nil
}

// Export returns the grammar and program text.
func (o *Orchestrator) Export() schema.StateSnapshot {
	return o.state.Snapshot()
}

// Info describes the playground.
func (o *Orchestrator) Info() schema.PlaygroundInfo {
	info := schema.PlaygroundInfo{
		ID:            o.id,
		Phase:         string(o.lifecycle.Phase()),
		SessionsTotal: o.state.Sessions(),
	}
	if live := o.lifecycle.Live(); live != nil {
		info.LiveSession = live.ID
	}
	return info
}

// Close stops the scheduler and disposes the sample then the definition session.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()
		o.scheduler.Stop()
		o.cancel()
		o.scheduler.Wait()
		var errs []error
		if err := o.lifecycle.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if o.definition != nil {
			if err := o.definition.Dispose(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		o.closeErr = errors.Join(errs...)
		o.emit(schema.UIEvent{Type: schema.UIEventClosed})
		if o.closeErr != nil {
			o.log.Warn("orchestrator close failed", "err", o.closeErr)
		} else {
			o.log.Info("orchestrator closed")
		}
	})
	return o.closeErr
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Orchestrator) emit(event schema.UIEvent) {
	if o.sink == nil {
		return
	}
	event.Playground = o.id
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	o.sink.OnUIEvent(event)
}

func documentURI(id schema.PlaygroundID, name string) string {
	if id == "" {
		return "inmemory:///" + name
	}
	return "inmemory:///" + string(id) + "/" + name
}
