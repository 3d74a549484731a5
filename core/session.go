package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"pkt.systems/langpad/schema"
)

// LanguageClient connects an editor model to a worker.
type LanguageClient interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// OnNotification registers fn for change notifications and returns a cancel func.
	OnNotification(fn func(schema.Notification)) func()
	ModelValue() string
	Layout()
}

// AttachRequest describes a client to attach.
type AttachRequest struct {
	Session   schema.SessionID
	Kind      schema.SessionKind
	Worker    Worker
	Editor    Editor
	Highlight *schema.HighlightRules
}

// ClientFactory attaches language clients to editors and workers.
type ClientFactory interface {
	Attach(ctx context.Context, req AttachRequest) (LanguageClient, error)
}

// SessionHandle bundles a worker, its language client and the subscriptions that feed the
// orchestrator.
type SessionHandle struct {
	ID     schema.SessionID
	Kind   schema.SessionKind
	Worker Worker
	Client LanguageClient

	mu             sync.Mutex
	subscriptions  []func()
	disposed       bool
	disposeTimeout time.Duration
}

// NewSessionHandle wraps a started worker.
func NewSessionHandle(id schema.SessionID, kind schema.SessionKind, worker Worker, disposeTimeout time.Duration) *SessionHandle {
	return &SessionHandle{ID: id, Kind: kind, Worker: worker, disposeTimeout: disposeTimeout}
}

// AddSubscription records a cancel func released on dispose. Subscriptions added after
// dispose are released immediately.
func (h *SessionHandle) AddSubscription(cancel func()) {
	if cancel == nil {
		return
	}
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		cancel()
		return
	}
	h.subscriptions = append(h.subscriptions, cancel)
	h.mu.Unlock()
}

// Disposed reports whether Dispose has run.
func (h *SessionHandle) Disposed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disposed
}

// Dispose stops the client, releases subscriptions and terminates the worker. The worker is
// terminated even when stopping the client fails. Only the first call does any work.
func (h *SessionHandle) Dispose(ctx context.Context) error {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return nil
	}
	h.disposed = true
	subs := h.subscriptions
	h.subscriptions = nil
	client := h.Client
	worker := h.Worker
	h.mu.Unlock()

	var errs []error
	if client != nil {
		stopCtx := ctx
		if h.disposeTimeout > 0 {
			var cancel context.CancelFunc
			stopCtx, cancel = context.WithTimeout(ctx, h.disposeTimeout)
			defer cancel()
		}
		if err := client.Stop(stopCtx); err != nil && !errors.Is(err, schema.ErrClientNotStarted) {
			errs = append(errs, NewSessionError(SessionErrorDispose, "stop client", h.ID, err))
		}
	}
	for _, cancel := range subs {
		cancel()
	}
	if worker != nil {
		if err := worker.Terminate(); err != nil {
			errs = append(errs, NewSessionError(SessionErrorDispose, "terminate worker", h.ID, err))
		}
	}
	return errors.Join(errs...)
}
