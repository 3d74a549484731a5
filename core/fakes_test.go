package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"pkt.systems/langpad/schema"
)

// callLog records ordered side effects across fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) index(call string) int {
	for i, c := range l.snapshot() {
		if c == call {
			return i
		}
	}
	return -1
}

type fakeWorker struct {
	session      schema.SessionID
	log          *callLog
	terminateErr error
	terminated   atomic.Int32
	done       chan struct{}
	once       sync.Once
}

func newFakeWorker(session schema.SessionID, log *callLog) *fakeWorker {
	return &fakeWorker{session: session, log: log, done: make(chan struct{})}
}

func (w *fakeWorker) Session() schema.SessionID { return w.session }

func (w *fakeWorker) Notify(context.Context, string, any) error { return nil }

func (w *fakeWorker) Call(context.Context, string, any, any) error { return nil }

func (w *fakeWorker) Subscribe(string, func(json.RawMessage)) func() { return func() {} }

func (w *fakeWorker) Terminate() error {
	w.terminated.Add(1)
	w.once.Do(func() {
		w.log.add("terminate " + string(w.session))
		close(w.done)
	})
	return w.terminateErr
}

func (w *fakeWorker) Done() <-chan struct{} { return w.done }

func (w *fakeWorker) isTerminated() bool { return w.terminated.Load() > 0 }

type fakeSpawner struct {
	mu       sync.Mutex
	log      *callLog
	requests []SpawnRequest
	workers  map[schema.SessionID]*fakeWorker
	// fail decides whether a spawn request is rejected.
	fail func(req SpawnRequest) error
	// gate blocks sample spawns until closed when non-nil.
	gate chan struct{}
	// terminateErr is returned by every spawned worker's Terminate.
	terminateErr error
}

func newFakeSpawner(log *callLog) *fakeSpawner {
	return &fakeSpawner{log: log, workers: make(map[schema.SessionID]*fakeWorker)}
}

func (s *fakeSpawner) Spawn(ctx context.Context, req SpawnRequest) (Worker, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	fail := s.fail
	gate := s.gate
	s.mu.Unlock()
	s.log.add("spawn " + string(req.Session))
	if gate != nil && req.Kind == schema.SessionKindSample {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		if err := fail(req); err != nil {
			return nil, err
		}
	}
	worker := newFakeWorker(req.Session, s.log)
	s.mu.Lock()
	worker.terminateErr = s.terminateErr
	s.workers[req.Session] = worker
	s.mu.Unlock()
	return worker, nil
}

func (s *fakeSpawner) setFail(fn func(req SpawnRequest) error) {
	s.mu.Lock()
	s.fail = fn
	s.mu.Unlock()
}

func (s *fakeSpawner) worker(id schema.SessionID) *fakeWorker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workers[id]
}

func (s *fakeSpawner) sampleRequests() []SpawnRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SpawnRequest
	for _, req := range s.requests {
		if req.Kind == schema.SessionKindSample {
			out = append(out, req)
		}
	}
	return out
}

type fakeClient struct {
	session schema.SessionID
	editor  Editor
	log     *callLog

	mu       sync.Mutex
	handlers map[int]func(schema.Notification)
	nextID   int
	started  bool
	stopped  bool
	layouts  int
	startErr error
	stopErr  error
}

func (c *fakeClient) Start(context.Context) error {
	c.log.add("start " + string(c.session))
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.started = true
	return nil
}

func (c *fakeClient) Stop(context.Context) error {
	c.log.add("stop " + string(c.session))
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if !c.started {
		return schema.ErrClientNotStarted
	}
	return c.stopErr
}

func (c *fakeClient) OnNotification(fn func(schema.Notification)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = fn
	c.mu.Unlock()
	return func() {
		c.log.add("release " + string(c.session))
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

func (c *fakeClient) ModelValue() string {
	if c.editor == nil {
		return ""
	}
	return c.editor.Value()
}

func (c *fakeClient) Layout() {
	c.mu.Lock()
	c.layouts++
	c.mu.Unlock()
}

// deliver invokes the registered handlers as a worker notification would.
func (c *fakeClient) deliver(n schema.Notification) {
	c.mu.Lock()
	handlers := make([]func(schema.Notification), 0, len(c.handlers))
	for _, fn := range c.handlers {
		handlers = append(handlers, fn)
	}
	c.mu.Unlock()
	n.Session = c.session
	for _, fn := range handlers {
		fn(n)
	}
}

func (c *fakeClient) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *fakeClient) layoutCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layouts
}

type fakeClients struct {
	mu      sync.Mutex
	log     *callLog
	clients map[schema.SessionID]*fakeClient
	// configure adjusts a client before it is returned.
	configure func(c *fakeClient)
	attachErr error
	nilClient bool
}

func newFakeClients(log *callLog) *fakeClients {
	return &fakeClients{log: log, clients: make(map[schema.SessionID]*fakeClient)}
}

func (f *fakeClients) Attach(_ context.Context, req AttachRequest) (LanguageClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachErr != nil && req.Kind == schema.SessionKindSample {
		return nil, f.attachErr
	}
	if f.nilClient && req.Kind == schema.SessionKindSample {
		return nil, nil
	}
	c := &fakeClient{session: req.Session, editor: req.Editor, log: f.log, handlers: make(map[int]func(schema.Notification))}
	if f.configure != nil {
		f.configure(c)
	}
	f.clients[req.Session] = c
	return c, nil
}

func (f *fakeClients) client(id schema.SessionID) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[id]
}

type fakeHighlighter struct {
	err error
}

func (h fakeHighlighter) Generate(_ string, session schema.SessionID) (*schema.HighlightRules, error) {
	if h.err != nil {
		return nil, h.err
	}
	return &schema.HighlightRules{LanguageID: "langpad-" + string(session)}, nil
}

type recordingDisplay struct {
	mu     sync.Mutex
	log    *callLog
	errors []error
	diags  [][]schema.Diagnostic
	clears int
	// loading records SetLoading calls in order.
	loading []bool
}

func (d *recordingDisplay) ReportDiagnostics(diags []schema.Diagnostic) {
	d.mu.Lock()
	d.diags = append(d.diags, diags)
	d.mu.Unlock()
	d.log.add("diagnostics")
}

func (d *recordingDisplay) ReportError(err error) {
	d.mu.Lock()
	d.errors = append(d.errors, err)
	d.mu.Unlock()
	d.log.add("error")
}

func (d *recordingDisplay) ClearError() {
	d.mu.Lock()
	d.clears++
	d.mu.Unlock()
	d.log.add("clear")
}

func (d *recordingDisplay) SetLoading(loading bool) {
	d.mu.Lock()
	d.loading = append(d.loading, loading)
	d.mu.Unlock()
}

func (d *recordingDisplay) errorCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.errors)
}

func (d *recordingDisplay) lastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.errors) == 0 {
		return nil
	}
	return d.errors[len(d.errors)-1]
}

func (d *recordingDisplay) diagnosticsCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.diags)
}

func sessionErrorKind(err error) SessionErrorKind {
	var sessionErr *SessionError
	if errors.As(err, &sessionErr) {
		return sessionErr.Kind
	}
	return ""
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.After(timeout)
	for {
		if cond() {
			return true
		}
		select {
		case <-deadline:
			return cond()
		case <-time.After(5 * time.Millisecond):
		}
	}
}
