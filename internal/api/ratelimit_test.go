package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/uplift-ai/uplift/internal/agent"
	"github.com/uplift-ai/uplift/internal/log"
	"github.com/uplift-ai/uplift/internal/memory"
	"github.com/uplift-ai/uplift/internal/stream"
)

func newRateLimitedServer(t *testing.T, rps float64, burst int) *httptest.Server {
	t.Helper()

	gateway := memory.NewGateway(&fakeBackend{}, true, log.NewNop())
	mux := stream.NewMux(gateway, &fakeOpener{}, stream.Policy{}, "", log.NewNop())
	sessions, err := agent.NewSessionStore(t.TempDir(), log.NewNop())
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	srv, err := NewServer(ServerConfig{
		Mux:       mux,
		Memory:    gateway,
		Sessions:  sessions,
		RateRPS:   rps,
		RateBurst: burst,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getStatus(t *testing.T, ts *httptest.Server) int {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + "/session/status")
	if err != nil {
		t.Fatalf("GET /session/status: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestRateLimit_BurstExhaustion(t *testing.T) {
	ts := newRateLimitedServer(t, 0.001, 1)

	if code := getStatus(t, ts); code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
	resp, err := ts.Client().Get(ts.URL + "/session/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After")
	}
}

func TestRateLimit_ConfiguredRateRefills(t *testing.T) {
	// Burst of one and a fast configured rate: the second request only passes
	// if the bucket refills at the configured RPS rather than a fixed one.
	ts := newRateLimitedServer(t, 500, 1)

	if code := getStatus(t, ts); code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
	time.Sleep(20 * time.Millisecond)
	if code := getStatus(t, ts); code != http.StatusOK {
		t.Errorf("refilled request status = %d, want 200", code)
	}
}

func TestRateLimit_HealthBypasses(t *testing.T) {
	ts := newRateLimitedServer(t, 0.001, 1)

	if code := getStatus(t, ts); code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health with exhausted bucket = %d, want 200", resp.StatusCode)
	}
}
