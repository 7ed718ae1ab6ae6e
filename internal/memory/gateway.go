package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uplift-ai/uplift/internal/log"
)

// Backend is the store surface the Gateway fronts. *Store satisfies it; tests
// inject fakes.
type Backend interface {
	Add(ctx context.Context, ownerID, query, answer string, metadata map[string]string) error
	Search(ctx context.Context, ownerID, query string, topK int) ([]*Record, error)
	Recent(ctx context.Context, ownerID string, limit int) ([]*Record, error)
	Stats(ctx context.Context, ownerID string) (Stats, error)
	Clear(ctx context.Context, ownerID string) (int64, error)
}

// Gateway is the facade between the orchestration core and long-term memory.
// The streaming path never sees an error from it: context fetch degrades to
// empty text and writes report failure through their return value. The
// administrative operations return errors for their handlers to report, but
// still never panic and never leak another owner's data.
type Gateway struct {
	backend Backend
	enabled bool
	logger  log.Logger
}

// NewGateway creates a Gateway. A nil backend forces disabled mode.
func NewGateway(backend Backend, enabled bool, logger log.Logger) *Gateway {
	if backend == nil {
		enabled = false
	}
	return &Gateway{backend: backend, enabled: enabled, logger: logger}
}

// Enabled reports whether long-term memory is active.
func (g *Gateway) Enabled() bool {
	return g.enabled
}

// ContextForQuery searches prior exchanges for the query and formats the best
// matches into a context block. Returns "" when memory is disabled, nothing
// matches, or the lookup fails; failures are logged, never propagated.
func (g *Gateway) ContextForQuery(ctx context.Context, userID, query string) string {
	if !g.enabled {
		return ""
	}

	records, err := g.backend.Search(ctx, userID, query, DefaultTopK)
	if err != nil {
		g.logger.Warn("memory context lookup failed, continuing without context",
			"user_id", userID, "error", err)
		return ""
	}
	if len(records) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Relevant prior exchanges\n")
	b.WriteString("These past exchanges with the same user may provide useful context:\n\n")
	for i, r := range records {
		fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n", i+1,
			sanitizeForPrompt(r.Query), sanitizeForPrompt(r.Answer))
	}
	return b.String()
}

// RecordExchange persists one completed exchange, best-effort. Callers only
// invoke it with a non-empty answer; the return value reports success so the
// caller can log, never fail, on a miss.
func (g *Gateway) RecordExchange(ctx context.Context, userID, query, answer string) bool {
	if !g.enabled {
		return false
	}

	metadata := map[string]string{
		"source":      "chat",
		"recorded_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := g.backend.Add(ctx, userID, query, answer, metadata); err != nil {
		g.logger.Warn("recording exchange failed", "user_id", userID, "error", err)
		return false
	}
	return true
}

// Stats reports the owner's memory statistics. Disabled memory yields a zero
// Stats with Enabled=false rather than an error.
func (g *Gateway) Stats(ctx context.Context, userID string) (Stats, error) {
	if !g.enabled {
		return Stats{Enabled: false}, nil
	}
	return g.backend.Stats(ctx, userID)
}

// Search exposes similarity search for the memory admin endpoints.
func (g *Gateway) Search(ctx context.Context, userID, query string, topK int) ([]*Record, error) {
	if !g.enabled {
		return nil, ErrDisabled
	}
	return g.backend.Search(ctx, userID, query, topK)
}

// Recent exposes newest-first listing for the memory admin endpoints.
func (g *Gateway) Recent(ctx context.Context, userID string, limit int) ([]*Record, error) {
	if !g.enabled {
		return nil, ErrDisabled
	}
	return g.backend.Recent(ctx, userID, limit)
}

// Clear removes all of the owner's exchanges.
func (g *Gateway) Clear(ctx context.Context, userID string) (int64, error) {
	if !g.enabled {
		return 0, ErrDisabled
	}
	return g.backend.Clear(ctx, userID)
}

// sanitizeForPrompt prevents prompt injection when stored content is folded
// back into a live prompt: strips tag delimiters and collapses newlines so a
// stored answer cannot fake an instruction boundary.
func sanitizeForPrompt(s string) string {
	return strings.NewReplacer(
		"<", "",
		">", "",
		"`", "",
		"\n", " ",
		"\r", " ",
	).Replace(s)
}
