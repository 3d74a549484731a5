package langpad

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/langpad/core"
	"pkt.systems/langpad/httpapi"
	"pkt.systems/langpad/internal/eventbus"
	"pkt.systems/langpad/internal/langclient"
	"pkt.systems/langpad/internal/worker"
	"pkt.systems/langpad/schema"
	"pkt.systems/pslog"
)

// Server composes the playground service with its front ends.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	// Service returns the playground service shared by every front end.
	Service() core.Service
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Playground schema.PlaygroundConfig
	HTTP       httpapi.Config
	HubHistory int
}

// ServerDeps captures dependencies required to build the server. Nil spawner and client
// factory default to in-process workers and language clients.
type ServerDeps struct {
	ServiceDeps core.ServiceDeps
}

// ServerOption toggles compositor components.
type ServerOption func(*serverOptions)

type serverOptions struct {
	enableHTTP bool
	bus        *eventbus.Bus
}

// WithHTTP enables the HTTP API server.
func WithHTTP() ServerOption {
	return func(o *serverOptions) { o.enableHTTP = true }
}

// WithEventBus publishes UI events to bus for in-process front ends.
func WithEventBus(bus *eventbus.Bus) ServerOption {
	return func(o *serverOptions) { o.bus = bus }
}

// New constructs a composable langpad server.
func New(cfg ServerConfig, deps ServerDeps, opts ...ServerOption) (Server, error) {
	options := serverOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if !options.enableHTTP && options.bus == nil {
		return nil, errors.New("no front ends enabled")
	}

	serviceDeps := deps.ServiceDeps
	logger := serviceDeps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if serviceDeps.Spawner == nil {
		serviceDeps.Spawner = worker.NewLauncher(worker.Options{
			HandshakeTimeout: cfg.Playground.HandshakeTimeout,
			Logger:           logger,
		})
	}
	if serviceDeps.Clients == nil {
		serviceDeps.Clients = langclient.Factory{Logger: logger}
	}
	if options.enableHTTP && cfg.Playground.BaseURL == "" {
		cfg.Playground.BaseURL = httpapi.ShareBaseURL(cfg.HTTP)
	}

	var hub *httpapi.Hub
	if options.enableHTTP {
		hub = httpapi.NewHub(cfg.HubHistory)
	}
	sinks := make([]core.EventSink, 0, 3)
	if serviceDeps.EventSink != nil {
		sinks = append(sinks, serviceDeps.EventSink)
	}
	if hub != nil {
		sinks = append(sinks, hub)
	}
	if options.bus != nil {
		sinks = append(sinks, options.bus)
	}
	switch len(sinks) {
	case 0:
		serviceDeps.EventSink = nil
	case 1:
		serviceDeps.EventSink = sinks[0]
	default:
		serviceDeps.EventSink = eventFanout{sinks: sinks}
	}

	service, err := core.NewService(cfg.Playground, serviceDeps)
	if err != nil {
		return nil, err
	}

	var httpSrv *httpapi.Server
	if options.enableHTTP {
		httpSrv = httpapi.NewServer(cfg.HTTP, service, hub)
	}
	return &compositeServer{
		cfg:     cfg,
		options: options,
		httpSrv: httpSrv,
		service: service,
	}, nil
}

type compositeServer struct {
	cfg     ServerConfig
	options serverOptions
	httpSrv *httpapi.Server
	service core.Service
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (s *compositeServer) Service() core.Service {
	return s.service
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http", s.options.enableHTTP,
		"bus", s.options.bus != nil,
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_url", s.cfg.HTTP.BaseURL,
		"http_base_path", s.cfg.HTTP.BasePath,
		"debounce", s.cfg.Playground.DebounceDelay,
	)
	if s.options.enableHTTP && s.httpSrv != nil {
		go func() {
			if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
				log.Error("http server failed", "err", err)
				s.errCh <- err
			}
		}()
	}
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	closeCtx := ctx
	if closeCtx == nil {
		closeCtx = context.Background()
	}
	if s.service != nil {
		if err := s.service.CloseAll(closeCtx); err != nil {
			log.Warn("server playground close failed", "err", err)
		} else {
			log.Info("server playground close ok")
		}
	}
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}
