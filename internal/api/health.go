package api

import (
	"encoding/json"
	"net/http"

	"github.com/uplift-ai/uplift/internal/memory"
)

// healthHandler reports process liveness plus whether memory is wired in.
// It sits outside the middleware stack so probes never hit the rate limiter.
func healthHandler(gateway *memory.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":         "ok",
			"memory_enabled": gateway.Enabled(),
		})
	}
}
