package tools

// knowledge.go defines the knowledge-search tool backed by the passage store.

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/uplift-ai/uplift/internal/knowledge"
	"github.com/uplift-ai/uplift/internal/log"
)

// SearchKnowledgeName is the registered name of the knowledge-search tool.
// The stream layer matches on the "search" substring for user-facing phrasing.
const SearchKnowledgeName = "search_knowledge"

// KnowledgeSearchInput is the model-facing input schema.
type KnowledgeSearchInput struct {
	Query string `json:"query" jsonschema_description:"The search query string"`
	TopK  int    `json:"topK,omitempty" jsonschema_description:"Maximum results to return (1-10)"`
}

// PassageSearcher is the slice of the knowledge store the tool needs.
type PassageSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.Passage, error)
}

// Knowledge holds dependencies for the knowledge-search handler.
type Knowledge struct {
	searcher PassageSearcher
	logger   log.Logger
}

// NewKnowledge creates a Knowledge toolset.
func NewKnowledge(searcher PassageSearcher, logger log.Logger) (*Knowledge, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Knowledge{searcher: searcher, logger: logger}, nil
}

// RegisterKnowledge registers the knowledge tools with genkit and returns them
// for provider aggregation.
func RegisterKnowledge(g *genkit.Genkit, kt *Knowledge) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if kt == nil {
		return nil, fmt.Errorf("Knowledge is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, SearchKnowledgeName,
			"Search the upgrade documentation knowledge base using semantic similarity. "+
				"Finds passages about version changes, breaking changes, migration steps and known issues. "+
				"Returns the best-matching passages joined into one text block. "+
				"Default topK: 3. Maximum topK: 10.",
			WithEvents(SearchKnowledgeName, kt.SearchKnowledge)),
	}, nil
}

// SearchKnowledge runs a semantic search over indexed passages.
func (k *Knowledge) SearchKnowledge(ctx *ai.ToolContext, input KnowledgeSearchInput) (Result, error) {
	k.logger.Info("SearchKnowledge called", "query", input.Query, "topK", input.TopK)

	if input.Query == "" {
		return errorResult(ErrCodeValidation, "query is required"), nil
	}

	passages, err := k.searcher.Search(ctx, input.Query, input.TopK)
	if err != nil {
		k.logger.Warn("SearchKnowledge failed", "query", input.Query, "error", err)
		return errorResult(ErrCodeExecution, fmt.Sprintf("searching knowledge: %v", err)), nil
	}

	k.logger.Info("SearchKnowledge succeeded", "query", input.Query, "result_count", len(passages))
	return successResult(map[string]any{
		"query":        input.Query,
		"result_count": len(passages),
		"text":         knowledge.JoinText(passages),
	}), nil
}
