package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/langpad/core"
	"pkt.systems/langpad/internal/logx"
	"pkt.systems/langpad/schema"
)

const maxBodySize = 4 << 20

// Server serves the playground HTTP API.
type Server struct {
	cfg      Config
	service  core.Service
	hub      *Hub
	basePath string
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, service core.Service, hub *Hub) *Server {
	if hub == nil {
		hub = NewHub(0)
	}
	return &Server{
		cfg:      cfg,
		service:  service,
		hub:      hub,
		basePath: normalizeBasePath(cfg.BasePath),
	}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/playgrounds", s.handleCreate)
	mux.HandleFunc("GET /api/playgrounds", s.handleList)
	mux.HandleFunc("GET /api/playgrounds/{id}/state", s.handleState)
	mux.HandleFunc("PUT /api/playgrounds/{id}/definition", s.handleDefinition)
	mux.HandleFunc("PUT /api/playgrounds/{id}/sample", s.handleSample)
	mux.HandleFunc("POST /api/playgrounds/{id}/resize", s.handleResize)
	mux.HandleFunc("DELETE /api/playgrounds/{id}", s.handleClose)
	mux.HandleFunc("GET /api/playgrounds/{id}/stream", s.handleStream)

	handler := withRequestLogging(mux)
	if s.basePath == "" {
		return handler
	}
	prefix := s.basePath
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}

type createPayload struct {
	Grammar        string `json:"grammar"`
	Content        string `json:"content"`
	EncodedGrammar string `json:"encoded_grammar"`
	EncodedContent string `json:"encoded_content"`
	RestoreID      string `json:"restore_id"`
}

type textPayload struct {
	Text string `json:"text"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	log := logx.Ctx(r.Context()).With("remote", clientIP(r))
	var payload createPayload
	if err := decodeJSON(r.Body, &payload); err != nil && !errors.Is(err, io.EOF) {
		log.Warn("http playground decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.service.CreatePlayground(r.Context(), schema.CreatePlaygroundRequest{
		Grammar:        payload.Grammar,
		Content:        payload.Content,
		EncodedGrammar: payload.EncodedGrammar,
		EncodedContent: payload.EncodedContent,
		RestoreID:      schema.PlaygroundID(payload.RestoreID),
	})
	if err != nil {
		log.Warn("http playground create failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"playground": resp.Playground,
		"snapshot":   resp.Snapshot,
	})
	log.Info("http playground create ok", "playground", resp.Playground.ID)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	resp, err := s.service.ListPlaygrounds(r.Context(), schema.ListPlaygroundsRequest{})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	playgrounds := resp.Playgrounds
	if playgrounds == nil {
		playgrounds = []schema.PlaygroundInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"playgrounds": playgrounds})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id := schema.PlaygroundID(r.PathValue("id"))
	resp, err := s.service.ExportState(r.Context(), schema.ExportStateRequest{ID: id})
	if err != nil {
		logx.WithPlayground(r.Context(), id).Debug("http state failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, SnapshotPayload{
		Playground: resp.Info,
		State:      resp.Snapshot,
		ShareLink:  resp.ShareLink,
	})
}

func (s *Server) handleDefinition(w http.ResponseWriter, r *http.Request) {
	s.handleEdit(w, r, schema.EditorDefinition, s.service.UpdateDefinition)
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	s.handleEdit(w, r, schema.EditorSample, s.service.UpdateSample)
}

type updateFunc func(ctx context.Context, req schema.UpdateTextRequest) (schema.UpdateTextResponse, error)

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request, editor schema.EditorID, update updateFunc) {
	id := schema.PlaygroundID(r.PathValue("id"))
	log := logx.WithPlayground(r.Context(), id).With("editor", editor)
	var payload textPayload
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http edit decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := update(r.Context(), schema.UpdateTextRequest{ID: id, Text: payload.Text})
	if err != nil {
		log.Warn("http edit failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"version": resp.Version})
	log.Debug("http edit ok", "version", resp.Version, "bytes", len(payload.Text))
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	id := schema.PlaygroundID(r.PathValue("id"))
	if _, err := s.service.Resize(r.Context(), schema.ResizeRequest{ID: id}); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := schema.PlaygroundID(r.PathValue("id"))
	log := logx.WithPlayground(r.Context(), id)
	resp, err := s.service.ClosePlayground(r.Context(), schema.ClosePlaygroundRequest{ID: id})
	if err != nil {
		log.Warn("http playground close failed", "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshot": resp.Snapshot})
	log.Info("http playground close ok")
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	id := schema.PlaygroundID(r.PathValue("id"))
	log := logx.WithPlayground(r.Context(), id)
	state, err := s.service.ExportState(r.Context(), schema.ExportStateRequest{ID: id})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	ch, unsubscribe, _, history := s.hub.Subscribe(id)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	_ = writeSSEvent(w, StreamEvent{
		UIEvent: schema.UIEvent{Playground: id, Type: streamSnapshot, Timestamp: time.Now()},
		Snapshot: &SnapshotPayload{
			Playground: state.Info,
			State:      state.Snapshot,
			ShareLink:  state.ShareLink,
		},
	})
	replay := since(history, lastID)
	sent := lastID
	for _, event := range replay {
		_ = writeSSEvent(w, event)
		sent = event.Seq
	}
	flusher.Flush()

	notify := r.Context().Done()
	log.Info("http stream opened", "last_id", lastID, "replay", len(replay))
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case event := <-ch:
			if event.Seq <= sent {
				continue
			}
			sent = event.Seq
			_ = writeSSEvent(w, event)
			flusher.Flush()
			if event.Type == schema.UIEventClosed {
				log.Info("http stream ended", "reason", "playground closed")
				return
			}
		}
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrPlaygroundNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrInvalidRequest),
		errors.Is(err, schema.ErrInvalidPlayground),
		errors.Is(err, schema.ErrInvalidShareData):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, schema.ErrWorkerFailed),
		errors.Is(err, schema.ErrWorkerClosed),
		errors.Is(err, schema.ErrHandshakeTimeout):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(io.LimitReader(body, maxBodySize))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", event.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
