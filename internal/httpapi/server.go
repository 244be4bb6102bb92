package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/avarra-systems/chronovoice/internal/call"
	"github.com/avarra-systems/chronovoice/internal/config"
	"github.com/avarra-systems/chronovoice/internal/observability"
)

// Server exposes the operational surface of the agent: health probes,
// metrics, the current call snapshot, and a live event feed for dashboards.
type Server struct {
	cfg      config.Config
	tracker  *call.Tracker
	feed     *Feed
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func New(cfg config.Config, tracker *call.Tracker, feed *Feed, metrics *observability.Metrics, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		cfg:     cfg,
		tracker: tracker,
		feed:    feed,
		metrics: metrics,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browser clients may watch the call feed
				// unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/v1/calls", s.handleCalls)
	r.Get("/v1/feed/ws", s.handleFeedWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (s *Server) handleCalls(w http.ResponseWriter, _ *http.Request) {
	sess, ok := s.tracker.Snapshot()
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"active":  true,
		"session": sess,
	})
}

func (s *Server) handleFeedWS(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "event feed not configured")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error.
		s.log.Warnw("feed websocket upgrade failed", "error", err)
		return
	}
	s.feed.serve(conn)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
