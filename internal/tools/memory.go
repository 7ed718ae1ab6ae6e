package tools

// memory.go defines tools that let the agent consult the user's long-term
// memory. Every handler resolves the user identity from the invocation
// context; there is no fallback scope, a call without an identity is refused.

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/uplift-ai/uplift/internal/log"
	"github.com/uplift-ai/uplift/internal/memory"
)

// Tool names for memory operations. The "search" substring drives the stream
// layer's user-facing phrasing.
const (
	SearchMemoryName = "search_memory"
	RecentMemoryName = "recent_memory"
)

// MemorySearchInput is the model-facing input for search_memory.
type MemorySearchInput struct {
	Query string `json:"query" jsonschema_description:"Text to match against past exchanges"`
	TopK  int    `json:"topK,omitempty" jsonschema_description:"Maximum results to return (1-10)"`
}

// MemoryRecentInput is the model-facing input for recent_memory.
type MemoryRecentInput struct {
	Limit int `json:"limit,omitempty" jsonschema_description:"Maximum exchanges to return (1-10)"`
}

// ExchangeReader is the slice of the memory gateway the tools need.
type ExchangeReader interface {
	Search(ctx context.Context, userID, query string, topK int) ([]*memory.Record, error)
	Recent(ctx context.Context, userID string, limit int) ([]*memory.Record, error)
}

// Memory holds dependencies for the memory tool handlers.
type Memory struct {
	reader ExchangeReader
	logger log.Logger
}

// NewMemory creates a Memory toolset.
func NewMemory(reader ExchangeReader, logger log.Logger) (*Memory, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Memory{reader: reader, logger: logger}, nil
}

// RegisterMemory registers the memory tools with genkit and returns them for
// provider aggregation.
func RegisterMemory(g *genkit.Genkit, mt *Memory) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if mt == nil {
		return nil, fmt.Errorf("Memory is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, SearchMemoryName,
			"Search this user's past exchanges by semantic similarity. "+
				"Use it to recall what the user asked before and what was answered. "+
				"Only the current user's history is visible.",
			WithEvents(SearchMemoryName, mt.SearchMemory)),
		genkit.DefineTool(g, RecentMemoryName,
			"List this user's most recent exchanges, newest first. "+
				"Use it for references like 'my last question'.",
			WithEvents(RecentMemoryName, mt.RecentMemory)),
	}, nil
}

// SearchMemory finds the user's past exchanges similar to the query.
func (m *Memory) SearchMemory(ctx *ai.ToolContext, input MemorySearchInput) (Result, error) {
	userID := UserIDFromContext(ctx.Context)
	if userID == "" {
		return errorResult(ErrCodeScope, "no user identity in call context"), nil
	}
	if input.Query == "" {
		return errorResult(ErrCodeValidation, "query is required"), nil
	}

	records, err := m.reader.Search(ctx, userID, input.Query, input.TopK)
	if err != nil {
		m.logger.Warn("SearchMemory failed", "user_id", userID, "error", err)
		return errorResult(ErrCodeExecution, fmt.Sprintf("searching memory: %v", err)), nil
	}

	return successResult(map[string]any{
		"query":        input.Query,
		"result_count": len(records),
		"results":      records,
	}), nil
}

// RecentMemory lists the user's newest exchanges.
func (m *Memory) RecentMemory(ctx *ai.ToolContext, input MemoryRecentInput) (Result, error) {
	userID := UserIDFromContext(ctx.Context)
	if userID == "" {
		return errorResult(ErrCodeScope, "no user identity in call context"), nil
	}

	records, err := m.reader.Recent(ctx, userID, input.Limit)
	if err != nil {
		m.logger.Warn("RecentMemory failed", "user_id", userID, "error", err)
		return errorResult(ErrCodeExecution, fmt.Sprintf("listing recent memory: %v", err)), nil
	}

	return successResult(map[string]any{
		"result_count": len(records),
		"results":      records,
	}), nil
}
