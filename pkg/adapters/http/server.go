package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aretw0/graphlens"
	"github.com/aretw0/graphlens/internal/logging"
	"github.com/aretw0/graphlens/internal/metrics"
	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/oapi-codegen/runtime"
)

// DefaultMaxUploadSize bounds POST /workflows bodies.
const DefaultMaxUploadSize = 64 << 20

// Viewer is the part of graphlens.Viewer the server drives.
type Viewer interface {
	Load(ctx context.Context, filename string, data []byte) (*graphlens.Snapshot, error)
	Reload(ctx context.Context, filename string) (*graphlens.Snapshot, error)
	Preview(ctx context.Context, filename string) (*graphlens.Snapshot, error)
	Forget(ctx context.Context, filename string) error
	History(ctx context.Context) ([]domain.HistoryEntry, error)
	Entry(ctx context.Context, filename string) (*domain.HistoryEntry, error)
	Current() *graphlens.Snapshot
	ProjectCurrent(vp domain.Viewport) (*domain.ProjectedGraph, error)
	Subscribe(ctx context.Context) (<-chan domain.LoadEvent, func())
}

var _ Viewer = (*graphlens.Viewer)(nil)

// Server serves a Viewer over HTTP.
type Server struct {
	Viewer     Viewer
	logger     *slog.Logger
	metrics    *metrics.Metrics
	maxUpload  int64
	apiVersion string
	upgrader   websocket.Upgrader
}

type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics mounts the prometheus handler at /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMaxUploadSize overrides DefaultMaxUploadSize.
func WithMaxUploadSize(n int64) Option {
	return func(s *Server) {
		s.maxUpload = n
	}
}

// NewHandler creates the HTTP handler for the viewer. It fails when the
// embedded OpenAPI document does not validate.
func NewHandler(viewer Viewer, opts ...Option) (http.Handler, error) {
	doc, err := LoadSpec(context.Background())
	if err != nil {
		return nil, err
	}

	s := &Server{
		Viewer:     viewer,
		maxUpload:  DefaultMaxUploadSize,
		apiVersion: doc.Info.Version,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Post("/workflows", s.LoadWorkflow)
	r.Get("/graph", s.GetGraph)
	r.Route("/history", func(r chi.Router) {
		r.Get("/", s.ListHistory)
		r.Get("/{filename}", s.GetHistoryEntry)
		r.Delete("/{filename}", s.DeleteHistoryEntry)
		r.Get("/{filename}/graph", s.PreviewHistoryEntry)
		r.Post("/{filename}/open", s.OpenHistoryEntry)
	})
	r.Get("/events", s.SubscribeEvents)
	r.Get("/ws", s.SubscribeWebsocket)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// snapshotResponse is the wire form of a graphlens.Snapshot.
type snapshotResponse struct {
	Filename string                 `json:"filename"`
	Source   string                 `json:"source"`
	Digest   string                 `json:"digest"`
	Graph    *domain.ProjectedGraph `json:"graph"`
}

func newSnapshotResponse(snap *graphlens.Snapshot) snapshotResponse {
	return snapshotResponse{Filename: snap.Filename, Source: snap.Source, Digest: snap.Digest, Graph: snap.Graph}
}

// historyItem is a history entry without its content.
type historyItem struct {
	Filename  string `json:"filename"`
	Timestamp int64  `json:"timestamp"`
	Digest    string `json:"digest,omitempty"`
}

// LoadWorkflow handles POST /workflows. The file comes either as the
// "file" part of a multipart form or as the raw body with ?filename=.
func (s *Server) LoadWorkflow(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	filename, data, err := readUpload(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_upload", err)
		return
	}

	snap, err := s.Viewer.Load(r.Context(), filename, data)
	if err != nil {
		s.fail(w, "LoadWorkflow", err)
		return
	}

	vp, ok, err := viewportParams(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_parameter", err)
		return
	}
	resp := newSnapshotResponse(snap)
	if ok {
		if resp.Graph, err = s.Viewer.ProjectCurrent(vp); err != nil {
			s.fail(w, "LoadWorkflow", err)
			return
		}
	}
	s.writeJSON(w, http.StatusCreated, resp)
}

func readUpload(r *http.Request) (string, []byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("missing file part: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		return header.Filename, data, err
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		return "", nil, errors.New("filename query parameter is required for raw uploads")
	}
	data, err := io.ReadAll(r.Body)
	return filename, data, err
}

// GetGraph handles GET /graph.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	vp, ok, err := viewportParams(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_parameter", err)
		return
	}

	if !ok {
		snap := s.Viewer.Current()
		if snap == nil {
			s.fail(w, "GetGraph", domain.ErrNoGraphLoaded)
			return
		}
		s.writeJSON(w, http.StatusOK, snap.Graph)
		return
	}

	graph, err := s.Viewer.ProjectCurrent(vp)
	if err != nil {
		s.fail(w, "GetGraph", err)
		return
	}
	s.writeJSON(w, http.StatusOK, graph)
}

// viewportParams binds the optional width and height query parameters.
// Both must be present to override the viewer's viewport.
func viewportParams(r *http.Request) (domain.Viewport, bool, error) {
	var width, height *float64
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "width", query, &width); err != nil {
		return domain.Viewport{}, false, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "height", query, &height); err != nil {
		return domain.Viewport{}, false, err
	}
	if width == nil && height == nil {
		return domain.Viewport{}, false, nil
	}
	if width == nil || height == nil || *width < 1 || *height < 1 {
		return domain.Viewport{}, false, errors.New("width and height must both be given and at least 1")
	}
	return domain.Viewport{Width: *width, Height: *height}, true, nil
}

// ListHistory handles GET /history.
func (s *Server) ListHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Viewer.History(r.Context())
	if err != nil {
		s.fail(w, "ListHistory", err)
		return
	}
	items := make([]historyItem, len(entries))
	for i, e := range entries {
		items[i] = historyItem{Filename: e.Filename, Timestamp: e.Timestamp, Digest: e.Digest}
	}
	s.writeJSON(w, http.StatusOK, items)
}

// GetHistoryEntry handles GET /history/{filename}.
func (s *Server) GetHistoryEntry(w http.ResponseWriter, r *http.Request) {
	filename, err := filenameParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_parameter", err)
		return
	}
	entry, err := s.Viewer.Entry(r.Context(), filename)
	if err != nil {
		s.fail(w, "GetHistoryEntry", err)
		return
	}
	s.writeJSON(w, http.StatusOK, entry)
}

// DeleteHistoryEntry handles DELETE /history/{filename}.
func (s *Server) DeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	filename, err := filenameParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_parameter", err)
		return
	}
	if err := s.Viewer.Forget(r.Context(), filename); err != nil {
		s.fail(w, "DeleteHistoryEntry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewHistoryEntry handles GET /history/{filename}/graph.
func (s *Server) PreviewHistoryEntry(w http.ResponseWriter, r *http.Request) {
	s.historySnapshot(w, r, "PreviewHistoryEntry", s.Viewer.Preview)
}

// OpenHistoryEntry handles POST /history/{filename}/open.
func (s *Server) OpenHistoryEntry(w http.ResponseWriter, r *http.Request) {
	s.historySnapshot(w, r, "OpenHistoryEntry", s.Viewer.Reload)
}

func (s *Server) historySnapshot(w http.ResponseWriter, r *http.Request, op string, fn func(context.Context, string) (*graphlens.Snapshot, error)) {
	filename, err := filenameParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_parameter", err)
		return
	}
	snap, err := fn(r.Context(), filename)
	if err != nil {
		s.fail(w, op, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newSnapshotResponse(snap))
}

// filenameParam returns the {filename} segment. chi matches on the raw
// path when one is present, so encoded slashes (%2F) arrive escaped.
func filenameParam(r *http.Request) (string, error) {
	param := chi.URLParam(r, "filename")
	if r.URL.RawPath == "" {
		return param, nil
	}
	return url.PathUnescape(param)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "graphlens-http",
		"version":     graphlens.Version(),
		"api_version": s.apiVersion,
	})
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
	} else {
		s.logger.Debug(op+" rejected", "error", err, "code", code)
	}
	s.writeError(w, status, code, err)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code string, err error) {
	s.writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}
