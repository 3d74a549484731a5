package core

import (
	"context"
	"sync"
	"time"

	"pkt.systems/langpad/internal/logx"
	"pkt.systems/langpad/schema"
	"pkt.systems/pslog"
)

// Phase is the state of the current regeneration attempt.
type Phase string

const (
	// PhaseIdle means no regeneration has run yet.
	PhaseIdle Phase = "idle"
	// PhaseDisposing means the previous sample session is being torn down.
	PhaseDisposing Phase = "disposing"
	// PhaseCreating means a new sample session is being started.
	PhaseCreating Phase = "creating"
	// PhaseLive means the last attempt produced a live session.
	PhaseLive Phase = "live"
	// PhaseFailed means the last attempt left no live session.
	PhaseFailed Phase = "failed"
)

// LifecycleConfig wires a LifecycleManager.
type LifecycleConfig struct {
	State          *State
	Editor         Editor
	Spawner        WorkerSpawner
	Clients        ClientFactory
	Highlighter    Highlighter
	Display        Display
	DisposeTimeout time.Duration
	// OnNotification receives notifications from the live sample session only.
	OnNotification func(handle *SessionHandle, n schema.Notification)
	Logger         pslog.Logger
}

// LifecycleManager owns the live sample session. It is the only writer of the live handle.
type LifecycleManager struct {
	cfg LifecycleConfig
	log pslog.Logger

	mu    sync.Mutex
	live  *SessionHandle
	phase Phase
}

// NewLifecycleManager constructs a manager in PhaseIdle.
func NewLifecycleManager(cfg LifecycleConfig) *LifecycleManager {
	logger := cfg.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if cfg.Display == nil {
		cfg.Display = NewEventDisplay(nil)
	}
	return &LifecycleManager{cfg: cfg, log: logger, phase: PhaseIdle}
}

// Live returns the live sample handle or nil.
func (m *LifecycleManager) Live() *SessionHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Phase returns the phase of the current or last attempt.
func (m *LifecycleManager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Regenerate replaces the live sample session with one built from grammar. program seeds the
// sample editor only while it is pristine; edits made during regeneration are kept.
// It never fails: errors are reported to the display and a nil handle is returned.
func (m *LifecycleManager) Regenerate(ctx context.Context, grammar, program string) *SessionHandle {
	id := m.cfg.State.NextSession()
	log := logx.WithSession(m.log, id)

	if old := m.takeLive(); old != nil {
		m.setPhase(log, PhaseDisposing)
		if err := old.Dispose(ctx); err != nil {
			log.Warn("lifecycle dispose failed", "old_session", old.ID, "err", err)
			m.report(ctx, err)
		}
	}

	m.setPhase(log, PhaseCreating)
	handle, err := m.create(ctx, id, grammar, program, log)
	if err != nil {
		m.setPhase(log, PhaseFailed)
		log.Warn("lifecycle session failed", "err", err)
		m.report(ctx, err)
		return nil
	}
	m.setPhase(log, PhaseLive)
	return handle
}

func (m *LifecycleManager) create(ctx context.Context, id schema.SessionID, grammar, program string, log pslog.Logger) (*SessionHandle, error) {
	if m.cfg.Spawner == nil {
		return nil, NewSessionError(SessionErrorHandshake, "spawn worker", id, schema.ErrWorkerClosed)
	}
	worker, err := m.cfg.Spawner.Spawn(ctx, SpawnRequest{Session: id, Kind: schema.SessionKindSample, Grammar: grammar})
	if err != nil {
		return nil, NewSessionError(SessionErrorHandshake, "spawn worker", id, err)
	}
	handle := NewSessionHandle(id, schema.SessionKindSample, worker, m.cfg.DisposeTimeout)
	fail := func(kind SessionErrorKind, op string, err error) error {
		m.clearLive(handle)
		if derr := handle.Dispose(context.WithoutCancel(ctx)); derr != nil {
			log.Warn("lifecycle cleanup failed", "err", derr)
		}
		return NewSessionError(kind, op, id, err)
	}

	var rules *schema.HighlightRules
	if m.cfg.Highlighter != nil {
		rules, err = m.cfg.Highlighter.Generate(grammar, id)
		if err != nil {
			return nil, fail(SessionErrorHighlight, "generate highlighting", err)
		}
	}
	if m.cfg.Editor == nil || m.cfg.Clients == nil {
		return nil, fail(SessionErrorMissingClient, "attach client", schema.ErrMissingClient)
	}
	if m.cfg.Editor.Version() <= 1 && m.cfg.Editor.Value() == "" {
		m.cfg.Editor.SetValue(program)
	}
	if rules != nil {
		m.cfg.Editor.SetHighlighting(rules)
	}
	client, err := m.cfg.Clients.Attach(ctx, AttachRequest{
		Session:   id,
		Kind:      schema.SessionKindSample,
		Worker:    worker,
		Editor:    m.cfg.Editor,
		Highlight: rules,
	})
	if err != nil {
		return nil, fail(SessionErrorAttach, "attach client", err)
	}
	if client == nil {
		return nil, fail(SessionErrorMissingClient, "attach client", schema.ErrMissingClient)
	}
	handle.Client = client
	handle.AddSubscription(client.OnNotification(func(n schema.Notification) {
		m.dispatch(handle, n)
	}))
	m.setLive(handle)
	m.cfg.State.SetSample(m.cfg.Editor.Value())
	if err := client.Start(ctx); err != nil {
		return nil, fail(SessionErrorStart, "start client", err)
	}
	return handle, nil
}

// dispatch forwards notifications of the live handle and drops everything else.
func (m *LifecycleManager) dispatch(handle *SessionHandle, n schema.Notification) {
	if m.Live() != handle {
		m.log.Debug("lifecycle notification dropped", "session", handle.ID)
		return
	}
	if m.cfg.OnNotification != nil {
		m.cfg.OnNotification(handle, n)
	}
}

// Shutdown disposes the live session, if any.
func (m *LifecycleManager) Shutdown(ctx context.Context) error {
	old := m.takeLive()
	if old == nil {
		return nil
	}
	return old.Dispose(ctx)
}

func (m *LifecycleManager) report(ctx context.Context, err error) {
	if ctx.Err() != nil {
		// Closing playgrounds do not surface errors.
		return
	}
	m.cfg.Display.ReportError(err)
}

func (m *LifecycleManager) takeLive() *SessionHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.live
	m.live = nil
	return old
}

func (m *LifecycleManager) setLive(handle *SessionHandle) {
	m.mu.Lock()
	m.live = handle
	m.mu.Unlock()
}

func (m *LifecycleManager) clearLive(handle *SessionHandle) {
	m.mu.Lock()
	if m.live == handle {
		m.live = nil
	}
	m.mu.Unlock()
}

func (m *LifecycleManager) setPhase(log pslog.Logger, phase Phase) {
	m.mu.Lock()
	from := m.phase
	m.phase = phase
	m.mu.Unlock()
	log.Debug("lifecycle phase", "from", from, "phase", phase)
}
