// Package api is the HTTP surface: the SSE transport adapter for streaming
// answers plus the JSON endpoints for memory and session management.
package api

import (
	"errors"
	"net/http"

	"github.com/uplift-ai/uplift/internal/agent"
	"github.com/uplift-ai/uplift/internal/log"
	"github.com/uplift-ai/uplift/internal/memory"
	"github.com/uplift-ai/uplift/internal/stream"
)

// ServerConfig carries the server's collaborators.
type ServerConfig struct {
	Logger   log.Logger
	Mux      *stream.Mux         // Required
	Memory   *memory.Gateway     // Required (may be disabled, never nil)
	Sessions *agent.SessionStore // Required

	TrustProxy bool    // Trust X-Real-IP/X-Forwarded-For (behind a reverse proxy)
	RateRPS    float64 // Per-IP sustained requests per second (0 = default 5)
	RateBurst  int     // Per-IP burst size (0 = default 60)
}

// Server is the HTTP server. Health probes bypass the middleware stack so a
// saturated rate limiter never fails a readiness check.
type Server struct {
	mux *http.ServeMux
}

// NewServer wires all routes and middleware.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Mux == nil {
		return nil, errors.New("stream mux is required")
	}
	if cfg.Memory == nil {
		return nil, errors.New("memory gateway is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{mux: cfg.Mux, logger: logger}
	mh := &memoryHandler{gateway: cfg.Memory, logger: logger}
	sh := &sessionHandler{sessions: cfg.Sessions, logger: logger}

	routes := http.NewServeMux()
	routes.HandleFunc("POST /chat", ch.stream)
	routes.HandleFunc("POST /chat-sync", ch.sync)

	routes.HandleFunc("GET /memory/stats", mh.stats)
	routes.HandleFunc("POST /memory/search", mh.search)
	routes.HandleFunc("GET /memory/recent", mh.recent)
	routes.HandleFunc("POST /memory/clear", mh.clear)

	routes.HandleFunc("POST /session/clear", sh.clear)
	routes.HandleFunc("GET /session/status", sh.status)

	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 5.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(rps, burst)

	var handler http.Handler = routes
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	top := http.NewServeMux()
	top.HandleFunc("GET /health", healthHandler(cfg.Memory))
	top.Handle("/", handler)

	return &Server{mux: top}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
