package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"

	"pkt.systems/langpad/schema"
	"pkt.systems/pslog"
)

// server is the worker side of a pipe.
type server struct {
	conn  jsonrpc2.Conn
	build func(StartParams) (languageService, error)
	log   pslog.Logger

	mu      sync.Mutex
	session schema.SessionID
	service languageService
	docs    map[protocol.DocumentURI]int32
}

func newServer(rwc io.ReadWriteCloser, build func(StartParams) (languageService, error), logger pslog.Logger) *server {
	if build == nil {
		build = buildService
	}
	return &server{
		conn:  jsonrpc2.NewConn(jsonrpc2.NewStream(rwc)),
		build: build,
		log:   logger,
		docs:  make(map[protocol.DocumentURI]int32),
	}
}

func (s *server) run(ctx context.Context) {
	s.conn.Go(ctx, s.handle)
}

func (s *server) close() error {
	return s.conn.Close()
}

func (s *server) done() <-chan struct{} {
	return s.conn.Done()
}

// handle runs on the connection's read loop. A panic is treated as a worker crash.
func (s *server) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("worker crashed", "method", req.Method(), "panic", fmt.Sprint(r))
			_ = s.conn.Close()
			err = nil
		}
	}()
	switch req.Method() {
	case MethodStart:
		var params StartParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return s.notifyFailed(ctx, reply, fmt.Errorf("decode start: %w", err))
		}
		service, err := s.build(params)
		if err != nil {
			return s.notifyFailed(ctx, reply, err)
		}
		s.mu.Lock()
		s.session = params.Session
		s.service = service
		s.mu.Unlock()
		s.log.Debug("worker ready", "kind", params.Kind)
		if err := s.conn.Notify(ctx, MethodReady, struct{}{}); err != nil {
			return err
		}
		return reply(ctx, nil, nil)
	case protocol.MethodInitialize:
		return reply(ctx, protocol.InitializeResult{
			Capabilities: protocol.ServerCapabilities{TextDocumentSync: protocol.TextDocumentSyncKindFull},
		}, nil)
	case protocol.MethodInitialized:
		return reply(ctx, nil, nil)
	case protocol.MethodTextDocumentDidOpen:
		var params protocol.DidOpenTextDocumentParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return reply(ctx, nil, fmt.Errorf("%w: %v", jsonrpc2.ErrInvalidParams, err))
		}
		if err := s.analyze(ctx, params.TextDocument.URI, params.TextDocument.Version, params.TextDocument.Text); err != nil {
			return err
		}
		return reply(ctx, nil, nil)
	case protocol.MethodTextDocumentDidChange:
		var params protocol.DidChangeTextDocumentParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			return reply(ctx, nil, fmt.Errorf("%w: %v", jsonrpc2.ErrInvalidParams, err))
		}
		if len(params.ContentChanges) == 0 {
			return reply(ctx, nil, nil)
		}
		// Full sync: the last change carries the whole document.
		text := params.ContentChanges[len(params.ContentChanges)-1].Text
		if err := s.analyze(ctx, params.TextDocument.URI, params.TextDocument.Version, text); err != nil {
			return err
		}
		return reply(ctx, nil, nil)
	case protocol.MethodShutdown:
		s.mu.Lock()
		s.service = nil
		s.mu.Unlock()
		return reply(ctx, nil, nil)
	case protocol.MethodExit:
		_ = reply(ctx, nil, nil)
		return s.conn.Close()
	default:
		return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
	}
}

func (s *server) notifyFailed(ctx context.Context, reply jsonrpc2.Replier, cause error) error {
	s.log.Warn("worker start failed", "err", cause)
	if err := s.conn.Notify(ctx, MethodFailed, FailedParams{Message: cause.Error()}); err != nil {
		return err
	}
	return reply(ctx, nil, nil)
}

func (s *server) analyze(ctx context.Context, uri protocol.DocumentURI, version int32, text string) error {
	s.mu.Lock()
	service := s.service
	if current, ok := s.docs[uri]; ok && version != 0 && version < current {
		s.mu.Unlock()
		return nil
	}
	s.docs[uri] = version
	s.mu.Unlock()
	if service == nil {
		return nil
	}
	diags, doc := service.Analyze(string(uri), text)
	if diags == nil {
		diags = []protocol.Diagnostic{}
	}
	return s.conn.Notify(ctx, MethodDocumentChanged, DocumentChangedParams{
		URI:         uri,
		Version:     version,
		Text:        text,
		Diagnostics: diags,
		Document:    doc,
	})
}
