// Package http exposes a scene over a JSON HTTP API routed with chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/aretw0/theatre"
	"github.com/aretw0/theatre/internal/logging"
	"github.com/aretw0/theatre/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// Scene is the part of *theatre.Scene the API drives.
type Scene interface {
	Name() string
	Situation() string
	AddNode(title string) (domain.NodeInfo, error)
	RemoveNode(id string) error
	Node(id string) (domain.NodeInfo, error)
	Nodes() []domain.NodeInfo
	Connect(start, end string, spec *domain.EventSpec) (string, error)
	Disconnect(edgeID string) error
	Reconnect(edgeID, start, end string) error
	SetEventSpec(edgeID string, spec *domain.EventSpec) error
	AddDelta(nodeID, name string) (string, error)
	RemoveDelta(nodeID, name string) error
	SetCustomValue(ctx context.Context, id string, state *domain.State) (*domain.Output, error)
	ResetCustomValue(id string) error
	MarkDirty(id string) error
	Evaluate(ctx context.Context, id string) (*domain.Output, error)
	Trace(id string) ([]string, error)
	EvaluateTrace(ctx context.Context, id string) ([]theatre.TraceStep, error)
	Diff(ctx context.Context, id string) (*domain.StateDiff, error)
	Spec() *domain.SceneSpec
	Save(ctx context.Context) error
}

var _ Scene = (*theatre.Scene)(nil)

// Server serves the API for one scene.
type Server struct {
	Scene   Scene
	Streams *StreamManager
	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithStreams shares a StreamManager whose Hooks are registered on the scene.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithMetricsHandler mounts h (typically promhttp.Handler()) on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates the HTTP handler for scene.
func NewHandler(scene Scene, opts ...Option) http.Handler {
	s := &Server{Scene: scene, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager()
	}

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/graph", s.GetGraph)
	r.Post("/save", s.SaveScene)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/nodes", func(r chi.Router) {
		r.Get("/", s.ListNodes)
		r.Post("/", s.CreateNode)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetNode)
			r.Delete("/", s.DeleteNode)
			r.Post("/evaluate", s.EvaluateNode)
			r.Post("/dirty", s.MarkDirty)
			r.Get("/trace", s.GetTrace)
			r.Post("/trace/evaluate", s.EvaluateTrace)
			r.Get("/diff", s.GetDiff)
			r.Put("/custom", s.SetCustom)
			r.Delete("/custom", s.ResetCustom)
			r.Post("/deltas", s.AddDelta)
			r.Delete("/deltas/{name}", s.RemoveDelta)
		})
	})

	r.Route("/edges", func(r chi.Router) {
		r.Post("/", s.CreateEdge)
		r.Route("/{id}", func(r chi.Router) {
			r.Delete("/", s.DeleteEdge)
			r.Patch("/", s.ReconnectEdge)
			r.Put("/event-spec", s.SetEventSpec)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// param returns a decoded path parameter; delta ids carry an escaped '#'.
func param(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if dec, err := url.PathUnescape(v); err == nil {
		return dec
	}
	return v
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrEdgeNotFound),
		errors.Is(err, domain.ErrDeltaNotFound),
		errors.Is(err, domain.ErrSceneNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrCycle), errors.Is(err, domain.ErrAlreadyConnected):
		status = http.StatusConflict
	case errors.As(err, new(*domain.Failure)):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":      s.Scene.Name(),
		"situation": s.Scene.Situation(),
		"nodes":     len(s.Scene.Nodes()),
	})
}

// GetGraph handles GET /graph: the persisted shape of the scene.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Scene.Spec())
}

// SaveScene handles POST /save.
func (s *Server) SaveScene(w http.ResponseWriter, r *http.Request) {
	if err := s.Scene.Save(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNodes handles GET /nodes.
func (s *Server) ListNodes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Scene.Nodes())
}

type createNodeRequest struct {
	Title string `json:"title"`
}

// CreateNode handles POST /nodes.
func (s *Server) CreateNode(w http.ResponseWriter, r *http.Request) {
	var body createNodeRequest
	if !s.decode(w, r, &body) {
		return
	}
	info, err := s.Scene.AddNode(body.Title)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, info)
}

// GetNode handles GET /nodes/{id}.
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	info, err := s.Scene.Node(param(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// DeleteNode handles DELETE /nodes/{id}.
func (s *Server) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := s.Scene.RemoveNode(param(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EvaluateNode handles POST /nodes/{id}/evaluate. The id may name a delta.
func (s *Server) EvaluateNode(w http.ResponseWriter, r *http.Request) {
	out, err := s.Scene.Evaluate(r.Context(), param(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// MarkDirty handles POST /nodes/{id}/dirty.
func (s *Server) MarkDirty(w http.ResponseWriter, r *http.Request) {
	if err := s.Scene.MarkDirty(param(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetTrace handles GET /nodes/{id}/trace.
func (s *Server) GetTrace(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Scene.Trace(param(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// EvaluateTrace handles POST /nodes/{id}/trace/evaluate.
func (s *Server) EvaluateTrace(w http.ResponseWriter, r *http.Request) {
	steps, err := s.Scene.EvaluateTrace(r.Context(), param(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, steps)
}

// GetDiff handles GET /nodes/{id}/diff. An empty object means the node did
// not change its parent's state.
func (s *Server) GetDiff(w http.ResponseWriter, r *http.Request) {
	diff, err := s.Scene.Diff(r.Context(), param(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if diff == nil {
		diff = &domain.StateDiff{}
	}
	s.writeJSON(w, http.StatusOK, diff)
}

// SetCustom handles PUT /nodes/{id}/custom with a State body.
func (s *Server) SetCustom(w http.ResponseWriter, r *http.Request) {
	var state domain.State
	if !s.decode(w, r, &state) {
		return
	}
	out, err := s.Scene.SetCustomValue(r.Context(), param(r, "id"), &state)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// ResetCustom handles DELETE /nodes/{id}/custom.
func (s *Server) ResetCustom(w http.ResponseWriter, r *http.Request) {
	if err := s.Scene.ResetCustomValue(param(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addDeltaRequest struct {
	Name string `json:"name"`
}

// AddDelta handles POST /nodes/{id}/deltas.
func (s *Server) AddDelta(w http.ResponseWriter, r *http.Request) {
	var body addDeltaRequest
	if !s.decode(w, r, &body) {
		return
	}
	id, err := s.Scene.AddDelta(param(r, "id"), body.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// RemoveDelta handles DELETE /nodes/{id}/deltas/{name}.
func (s *Server) RemoveDelta(w http.ResponseWriter, r *http.Request) {
	if err := s.Scene.RemoveDelta(param(r, "id"), param(r, "name")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type edgeRequest struct {
	Start     string            `json:"start"`
	End       string            `json:"end"`
	EventSpec *domain.EventSpec `json:"event_spec,omitempty"`
}

// CreateEdge handles POST /edges.
func (s *Server) CreateEdge(w http.ResponseWriter, r *http.Request) {
	var body edgeRequest
	if !s.decode(w, r, &body) {
		return
	}
	id, err := s.Scene.Connect(body.Start, body.End, body.EventSpec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// DeleteEdge handles DELETE /edges/{id}.
func (s *Server) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	if err := s.Scene.Disconnect(param(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReconnectEdge handles PATCH /edges/{id}; empty endpoints are kept.
func (s *Server) ReconnectEdge(w http.ResponseWriter, r *http.Request) {
	var body edgeRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.Scene.Reconnect(param(r, "id"), body.Start, body.End); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetEventSpec handles PUT /edges/{id}/event-spec with an EventSpec body.
func (s *Server) SetEventSpec(w http.ResponseWriter, r *http.Request) {
	var spec domain.EventSpec
	if !s.decode(w, r, &spec) {
		return
	}
	if err := s.Scene.SetEventSpec(param(r, "id"), &spec); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
