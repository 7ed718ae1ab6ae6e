package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/uplift-ai/uplift/internal/agent"
	"github.com/uplift-ai/uplift/internal/log"
	"github.com/uplift-ai/uplift/internal/memory"
	"github.com/uplift-ai/uplift/internal/stream"
)

// fakeSource replays a fixed script of raw events, then ends naturally.
type fakeSource struct {
	events []stream.RawEvent
	pos    int
}

func (s *fakeSource) Next(ctx context.Context) (stream.RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return stream.RawEvent{}, err
	}
	if s.pos >= len(s.events) {
		return stream.RawEvent{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

type fakeOpener struct {
	events  []stream.RawEvent
	openErr error
}

func (o *fakeOpener) Open(context.Context, stream.Query, string) (stream.Source, func(), error) {
	if o.openErr != nil {
		return nil, nil, o.openErr
	}
	return &fakeSource{events: o.events}, func() {}, nil
}

// fakeBackend is an in-memory memory.Backend.
type fakeBackend struct {
	records []*memory.Record
	addErr  error
}

func (b *fakeBackend) Add(_ context.Context, ownerID, query, answer string, _ map[string]string) error {
	if b.addErr != nil {
		return b.addErr
	}
	b.records = append(b.records, &memory.Record{OwnerID: ownerID, Query: query, Answer: answer})
	return nil
}

func (b *fakeBackend) Search(_ context.Context, ownerID, _ string, _ int) ([]*memory.Record, error) {
	return b.owned(ownerID), nil
}

func (b *fakeBackend) Recent(_ context.Context, ownerID string, _ int) ([]*memory.Record, error) {
	return b.owned(ownerID), nil
}

func (b *fakeBackend) Stats(_ context.Context, ownerID string) (memory.Stats, error) {
	return memory.Stats{Enabled: true, Count: int64(len(b.owned(ownerID)))}, nil
}

func (b *fakeBackend) Clear(_ context.Context, ownerID string) (int64, error) {
	kept := b.records[:0]
	var deleted int64
	for _, r := range b.records {
		if r.OwnerID == ownerID {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	b.records = kept
	return deleted, nil
}

func (b *fakeBackend) owned(ownerID string) []*memory.Record {
	var out []*memory.Record
	for _, r := range b.records {
		if r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out
}

func contentRaw(text string) stream.RawEvent {
	return stream.RawEvent{Kind: stream.RawContent, Text: text}
}

// newTestServer wires a full server over fakes. The returned backend lets
// tests observe memory writes.
func newTestServer(t *testing.T, opener stream.Opener) (*httptest.Server, *fakeBackend) {
	t.Helper()

	backend := &fakeBackend{}
	gateway := memory.NewGateway(backend, true, log.NewNop())
	mux := stream.NewMux(gateway, opener, stream.Policy{
		HeartbeatInterval: time.Second,
		PullTimeout:       time.Second,
		SoftCeiling:       time.Minute,
	}, "You help with infrastructure upgrades.", log.NewNop())

	sessions, err := agent.NewSessionStore(t.TempDir(), log.NewNop())
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}

	srv, err := NewServer(ServerConfig{
		Logger:   log.NewNop(),
		Mux:      mux,
		Memory:   gateway,
		Sessions: sessions,
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, backend
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Error("expected error for empty config")
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOpener{})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"memory_enabled":true`) {
		t.Errorf("body = %s", body)
	}
}

func TestSessionStatusAndClear(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOpener{events: []stream.RawEvent{contentRaw("answer")}})

	resp, err := http.Get(ts.URL + "/session/status")
	if err != nil {
		t.Fatalf("GET /session/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"exists":false`) {
		t.Errorf("body = %s", body)
	}

	resp2, err := http.Post(ts.URL+"/session/clear", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /session/clear: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("clear status = %d", resp2.StatusCode)
	}
}

func TestMemoryEndpoints(t *testing.T) {
	ts, backend := newTestServer(t, &fakeOpener{})
	backend.records = []*memory.Record{
		{OwnerID: "someone-else", Query: "q", Answer: "a"},
	}

	client := ts.Client()

	// A fresh caller gets a fresh uid, so the other owner's record is invisible.
	resp, err := client.Get(ts.URL + "/memory/stats")
	if err != nil {
		t.Fatalf("GET /memory/stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("stats status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"count":0`) {
		t.Errorf("stats body = %s", body)
	}

	// Bad search request.
	resp2, err := client.Post(ts.URL+"/memory/search", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /memory/search: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("empty search query status = %d, want 400", resp2.StatusCode)
	}

	resp3, err := client.Get(ts.URL + "/memory/recent?limit=bogus")
	if err != nil {
		t.Fatalf("GET /memory/recent: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus limit status = %d, want 400", resp3.StatusCode)
	}
}

func TestMemoryDisabled(t *testing.T) {
	gateway := memory.NewGateway(nil, false, log.NewNop())
	mux := stream.NewMux(gateway, &fakeOpener{}, stream.Policy{}, "", log.NewNop())
	sessions, err := agent.NewSessionStore(t.TempDir(), log.NewNop())
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	srv, err := NewServer(ServerConfig{Mux: mux, Memory: gateway, Sessions: sessions})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp, err := http.Post(ts.URL+"/memory/clear", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /memory/clear: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestUidCookieIssued(t *testing.T) {
	ts, _ := newTestServer(t, &fakeOpener{})

	resp, err := http.Get(ts.URL + "/session/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == "uid" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("no uid cookie issued")
	}
}
