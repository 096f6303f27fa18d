package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/automonocle/automonocle/internal/discovery"
	"github.com/automonocle/automonocle/internal/history"
)

// RunStore is the slice of the history store the API reads.
type RunStore interface {
	RecentRuns(ctx context.Context, limit int) ([]history.Run, error)
	RunCameras(ctx context.Context, runID string) ([]history.RunCamera, error)
}

// Server serves the status API while the add-on runs in watch mode.
type Server struct {
	addr   string
	store  RunStore
	http   *http.Server
	logger *slog.Logger

	mu     sync.RWMutex
	latest *discovery.Result
}

// StatusData is the /api/status payload.
type StatusData struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Total      int       `json:"total"`
	Resolved   int       `json:"resolved"`
	RelayFound bool      `json:"relay_found"`
	UniFiMode  string    `json:"unifi_mode"`
}

// CameraData is one entry of the /api/cameras payload. Stream URLs
// are redacted of embedded credentials before leaving the process.
type CameraData struct {
	EntityID string `json:"entity_id"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	Origin   string `json:"origin,omitempty"`
	Resolved bool   `json:"resolved"`
}

// NewServer creates a status API server on the given port.
func NewServer(port int, store RunStore) *Server {
	s := &Server{
		addr:   fmt.Sprintf(":%d", port),
		store:  store,
		logger: slog.Default().With("component", "api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/cameras", s.handleCameras)
	r.Get("/api/runs", s.handleRuns)
	r.Get("/api/runs/{runID}/cameras", s.handleRunCameras)

	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until the context is canceled.
func (s *Server) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Status API listening", "addr", s.addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Status API failed", "error", err)
	}
}

// SetResult records the latest discovery result for the status
// endpoints.
func (s *Server) SetResult(result *discovery.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = result
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	OK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil {
		NotFound(w, "No discovery pass has completed yet")
		return
	}

	OK(w, StatusData{
		RunID:      latest.RunID,
		StartedAt:  latest.StartedAt,
		FinishedAt: latest.FinishedAt,
		Total:      latest.Total,
		Resolved:   latest.Resolved,
		RelayFound: latest.RelayFound,
		UniFiMode:  string(latest.UniFiMode),
	})
}

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil {
		NotFound(w, "No discovery pass has completed yet")
		return
	}

	cameras := make([]CameraData, 0, len(latest.Records))
	for _, rec := range latest.Records {
		cameras = append(cameras, CameraData{
			EntityID: rec.EntityID,
			Name:     rec.Name,
			URL:      RedactURL(rec.StreamURL),
			Origin:   string(rec.Origin),
			Resolved: rec.Resolved(),
		})
	}
	OK(w, cameras)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		NotFound(w, "Run history is not enabled")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.store.RecentRuns(r.Context(), limit)
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	OK(w, runs)
}

func (s *Server) handleRunCameras(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		NotFound(w, "Run history is not enabled")
		return
	}

	cameras, err := s.store.RunCameras(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	if len(cameras) == 0 {
		NotFound(w, "Run not found")
		return
	}
	for i := range cameras {
		cameras[i].URL = RedactURL(cameras[i].URL)
	}
	OK(w, cameras)
}

// RedactURL strips embedded credentials from a stream URL.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("redacted")
	return u.String()
}
