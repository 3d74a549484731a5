package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"pkt.systems/langpad/core"
	"pkt.systems/langpad/internal/logx"
	"pkt.systems/langpad/schema"
	"pkt.systems/pslog"
)

// Options configures a Launcher.
type Options struct {
	// HandshakeTimeout bounds the wait for ready. Zero waits until the worker answers, its
	// connection closes or the context ends.
	HandshakeTimeout time.Duration
	Logger           pslog.Logger
}

// Launcher starts in-process workers. It implements core.WorkerSpawner.
type Launcher struct {
	opts  Options
	build func(StartParams) (languageService, error)
}

// NewLauncher constructs a Launcher.
func NewLauncher(opts Options) *Launcher {
	if opts.Logger == nil {
		opts.Logger = pslog.Ctx(context.Background())
	}
	return &Launcher{opts: opts, build: buildService}
}

// Spawn starts a worker and waits for its start handshake. A rejected worker is terminated
// before Spawn returns.
func (l *Launcher) Spawn(ctx context.Context, req core.SpawnRequest) (core.Worker, error) {
	log := logx.WithSession(l.opts.Logger, req.Session).With("kind", req.Kind)
	clientSide, serverSide := net.Pipe()
	runCtx := context.WithoutCancel(ctx)

	srv := newServer(serverSide, l.build, log)
	srv.run(runCtx)
	ep := newEndpoint(req.Session, clientSide, srv, log)

	ready := make(chan struct{})
	var readyOnce sync.Once
	failed := make(chan string, 1)
	cancelReady := ep.Subscribe(MethodReady, func(json.RawMessage) {
		readyOnce.Do(func() { close(ready) })
	})
	defer cancelReady()
	cancelFailed := ep.Subscribe(MethodFailed, func(raw json.RawMessage) {
		var params FailedParams
		if err := json.Unmarshal(raw, &params); err != nil {
			params.Message = "malformed failure message"
		}
		select {
		case failed <- params.Message:
		default:
		}
	})
	defer cancelFailed()
	ep.run(runCtx)

	start := time.Now()
	log.Debug("worker handshake start")
	if err := ep.Notify(ctx, MethodStart, StartParams{Session: req.Session, Kind: req.Kind, Grammar: req.Grammar}); err != nil {
		_ = ep.Terminate()
		return nil, fmt.Errorf("send start: %w", err)
	}

	var timeout <-chan time.Time
	if l.opts.HandshakeTimeout > 0 {
		timer := time.NewTimer(l.opts.HandshakeTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	var err error
	select {
	case <-ready:
		log.Debug("worker handshake ok", "elapsed", time.Since(start))
		return ep, nil
	case msg := <-failed:
		err = fmt.Errorf("%w: %s", schema.ErrWorkerFailed, msg)
	case <-ep.Done():
		err = schema.ErrWorkerClosed
	case <-srv.done():
		err = schema.ErrWorkerClosed
	case <-ctx.Done():
		err = ctx.Err()
	case <-timeout:
		err = schema.ErrHandshakeTimeout
	}
	_ = ep.Terminate()
	log.Warn("worker handshake failed", "err", err, "elapsed", time.Since(start))
	return nil, err
}
