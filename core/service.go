package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"pkt.systems/langpad/internal/format"
	"pkt.systems/langpad/internal/highlight"
	"pkt.systems/langpad/internal/logx"
	"pkt.systems/langpad/internal/persist"
	"pkt.systems/langpad/internal/share"
	"pkt.systems/langpad/schema"
	"pkt.systems/pslog"
)

// service implements the core service behavior.
type service struct {
	cfg         schema.PlaygroundConfig
	spawner     WorkerSpawner
	clients     ClientFactory
	highlighter Highlighter
	renderer    TreeRenderer
	sink        EventSink
	store       *persist.Store
	logger      pslog.Logger

	mu          sync.Mutex
	playgrounds map[schema.PlaygroundID]*Orchestrator
}

// NewService constructs the core service implementation.
func NewService(cfg schema.PlaygroundConfig, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizePlaygroundConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	if deps.Spawner == nil {
		return nil, errors.New("worker spawner is required")
	}
	if deps.Clients == nil {
		return nil, errors.New("client factory is required")
	}
	if deps.Renderer == nil {
		deps.Renderer = format.NewPlainRenderer()
	}
	if deps.Highlighter == nil {
		deps.Highlighter = highlight.Generator{}
	}
	var store *persist.Store
	if cfg.StateDir != "" {
		store, err = persist.NewStoreWithLogger(cfg.StateDir, deps.Logger)
		if err != nil {
			return nil, err
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &service{
		cfg:         cfg,
		spawner:     deps.Spawner,
		clients:     deps.Clients,
		highlighter: deps.Highlighter,
		renderer:    deps.Renderer,
		sink:        deps.EventSink,
		store:       store,
		logger:      logger,
		playgrounds: make(map[schema.PlaygroundID]*Orchestrator),
	}, nil
}

func (s *service) CreatePlayground(ctx context.Context, req schema.CreatePlaygroundRequest) (schema.CreatePlaygroundResponse, error) {
	if ctx == nil {
		return schema.CreatePlaygroundResponse{}, errors.New("missing context")
	}
	id, snapshot, err := s.resolveSnapshot(req)
	if err != nil {
		return schema.CreatePlaygroundResponse{}, err
	}
	s.mu.Lock()
	_, exists := s.playgrounds[id]
	s.mu.Unlock()
	if exists {
		return schema.CreatePlaygroundResponse{}, fmt.Errorf("%w: playground %s is already open", schema.ErrInvalidRequest, id)
	}

	log := logx.WithPlayground(ctx, id)
	ctx = logx.ContextWithPlaygroundLogger(ctx, log, id)
	log.Info("service playground create start", "restore", req.RestoreID != "", "grammar_bytes", len(snapshot.Grammar), "content_bytes", len(snapshot.Content))
	orch, err := StartOrchestrator(ctx, OrchestratorDeps{
		Playground:  id,
		Config:      s.cfg,
		Spawner:     s.spawner,
		Clients:     s.clients,
		Highlighter: s.highlighter,
		Renderer:    s.renderer,
		Sink:        s.sink,
		Logger:      log,
	}, snapshot)
	if err != nil {
		log.Warn("service playground create failed", "err", err)
		return schema.CreatePlaygroundResponse{}, err
	}
	s.mu.Lock()
	if _, exists := s.playgrounds[id]; exists {
		s.mu.Unlock()
		_ = orch.Close(ctx)
		return schema.CreatePlaygroundResponse{}, fmt.Errorf("%w: playground %s is already open", schema.ErrInvalidRequest, id)
	}
	s.playgrounds[id] = orch
	s.mu.Unlock()
	log.Info("service playground create ok")
	return schema.CreatePlaygroundResponse{Playground: orch.Info(), Snapshot: orch.Export()}, nil
}

func (s *service) resolveSnapshot(req schema.CreatePlaygroundRequest) (schema.PlaygroundID, schema.StateSnapshot, error) {
	if req.RestoreID != "" {
		if err := schema.ValidatePlaygroundID(req.RestoreID); err != nil {
			return "", schema.StateSnapshot{}, err
		}
		if s.store == nil {
			return "", schema.StateSnapshot{}, fmt.Errorf("%w: persistence is disabled", schema.ErrPlaygroundNotFound)
		}
		stored, ok, err := s.store.Load(req.RestoreID)
		if err != nil {
			return "", schema.StateSnapshot{}, err
		}
		if !ok {
			return "", schema.StateSnapshot{}, schema.ErrPlaygroundNotFound
		}
		return req.RestoreID, stored.State, nil
	}
	snapshot := schema.StateSnapshot{Grammar: req.Grammar, Content: req.Content}
	if strings.TrimSpace(req.EncodedGrammar) != "" {
		text, err := share.Decode(req.EncodedGrammar)
		if err != nil {
			return "", schema.StateSnapshot{}, err
		}
		snapshot.Grammar = text
	}
	if strings.TrimSpace(req.EncodedContent) != "" {
		text, err := share.Decode(req.EncodedContent)
		if err != nil {
			return "", schema.StateSnapshot{}, err
		}
		snapshot.Content = text
	}
	if strings.TrimSpace(snapshot.Grammar) == "" {
		snapshot.Grammar = s.cfg.DefaultGrammar
		if snapshot.Content == "" {
			snapshot.Content = s.cfg.DefaultContent
		}
	}
	return newPlaygroundID(), snapshot, nil
}

func (s *service) ClosePlayground(ctx context.Context, req schema.ClosePlaygroundRequest) (schema.ClosePlaygroundResponse, error) {
	s.mu.Lock()
	orch, ok := s.playgrounds[req.ID]
	if ok {
		delete(s.playgrounds, req.ID)
	}
	s.mu.Unlock()
	if !ok {
		return schema.ClosePlaygroundResponse{}, schema.ErrPlaygroundNotFound
	}
	snapshot, err := s.closeOrchestrator(ctx, orch)
	return schema.ClosePlaygroundResponse{Snapshot: snapshot}, err
}

func (s *service) closeOrchestrator(ctx context.Context, orch *Orchestrator) (schema.StateSnapshot, error) {
	log := logx.WithPlayground(ctx, orch.ID())
	closeErr := orch.Close(ctx)
	snapshot := orch.Export()
	if s.store != nil {
		if err := s.store.Save(persist.PlaygroundSnapshot{ID: orch.ID(), State: snapshot, Sessions: orch.state.Sessions()}); err != nil {
			log.Warn("service playground persist failed", "err", err)
		}
	}
	if closeErr != nil {
		log.Warn("service playground close failed", "err", closeErr)
		return snapshot, closeErr
	}
	log.Info("service playground closed")
	return snapshot, nil
}

func (s *service) UpdateDefinition(ctx context.Context, req schema.UpdateTextRequest) (schema.UpdateTextResponse, error) {
	orch, err := s.lookup(req.ID)
	if err != nil {
		return schema.UpdateTextResponse{}, err
	}
	version, err := orch.EditDefinition(req.Text)
	if err != nil {
		return schema.UpdateTextResponse{}, err
	}
	logx.WithPlayground(ctx, req.ID).Trace("service definition updated", "version", version)
	return schema.UpdateTextResponse{Version: version}, nil
}

func (s *service) UpdateSample(ctx context.Context, req schema.UpdateTextRequest) (schema.UpdateTextResponse, error) {
	orch, err := s.lookup(req.ID)
	if err != nil {
		return schema.UpdateTextResponse{}, err
	}
	version, err := orch.EditSample(req.Text)
	if err != nil {
		return schema.UpdateTextResponse{}, err
	}
	logx.WithPlayground(ctx, req.ID).Trace("service sample updated", "version", version)
	return schema.UpdateTextResponse{Version: version}, nil
}

func (s *service) Resize(_ context.Context, req schema.ResizeRequest) (schema.ResizeResponse, error) {
	orch, err := s.lookup(req.ID)
	if err != nil {
		return schema.ResizeResponse{}, err
	}
	orch.Resize()
	return schema.ResizeResponse{}, nil
}

func (s *service) ExportState(_ context.Context, req schema.ExportStateRequest) (schema.ExportStateResponse, error) {
	orch, err := s.lookup(req.ID)
	if err != nil {
		return schema.ExportStateResponse{}, err
	}
	resp := schema.ExportStateResponse{Snapshot: orch.Export(), Info: orch.Info()}
	if s.cfg.BaseURL != "" {
		link, err := share.Link(s.cfg.BaseURL, resp.Snapshot)
		if err != nil {
			return schema.ExportStateResponse{}, err
		}
		resp.ShareLink = link
	}
	return resp, nil
}

func (s *service) ListPlaygrounds(_ context.Context, _ schema.ListPlaygroundsRequest) (schema.ListPlaygroundsResponse, error) {
	s.mu.Lock()
	orchs := make([]*Orchestrator, 0, len(s.playgrounds))
	for _, orch := range s.playgrounds {
		orchs = append(orchs, orch)
	}
	s.mu.Unlock()
	infos := make([]schema.PlaygroundInfo, 0, len(orchs))
	for _, orch := range orchs {
		infos = append(infos, orch.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return schema.ListPlaygroundsResponse{Playgrounds: infos}, nil
}

func (s *service) CloseAll(ctx context.Context) error {
	s.mu.Lock()
	orchs := make([]*Orchestrator, 0, len(s.playgrounds))
	for id, orch := range s.playgrounds {
		orchs = append(orchs, orch)
		delete(s.playgrounds, id)
	}
	s.mu.Unlock()
	if len(orchs) == 0 {
		return nil
	}
	s.logger.Info("service closing playgrounds", "count", len(orchs))
	g, gctx := errgroup.WithContext(ctx)
	for _, orch := range orchs {
		g.Go(func() error {
			_, err := s.closeOrchestrator(gctx, orch)
			return err
		})
	}
	return g.Wait()
}

func (s *service) lookup(id schema.PlaygroundID) (*Orchestrator, error) {
	if err := schema.ValidatePlaygroundID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	orch, ok := s.playgrounds[id]
	if !ok {
		return nil, schema.ErrPlaygroundNotFound
	}
	return orch, nil
}
