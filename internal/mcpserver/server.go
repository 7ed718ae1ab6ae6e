// Package mcpserver exposes the knowledge base to external MCP clients over
// stdio, so editors and other agents can query the same passages the chat
// agent uses.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/uplift-ai/uplift/internal/knowledge"
	"github.com/uplift-ai/uplift/internal/log"
	"github.com/uplift-ai/uplift/internal/tools"
)

// SearchInput is the MCP-facing input schema for search_knowledge.
type SearchInput struct {
	Query string `json:"query" jsonschema:"Text to search the upgrade documentation for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"Maximum passages to return (1-10, default 3)"`
}

// Config holds MCP server identity and collaborators.
type Config struct {
	Name     string
	Version  string
	Searcher tools.PassageSearcher
	Logger   log.Logger
}

// Server wraps the MCP SDK server around the passage store.
type Server struct {
	mcpServer *mcp.Server
	searcher  tools.PassageSearcher
	logger    log.Logger
}

// NewServer builds the server and registers its tools.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" || cfg.Version == "" {
		return nil, errors.New("server name and version are required")
	}
	if cfg.Searcher == nil {
		return nil, errors.New("passage searcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil),
		searcher:  cfg.Searcher,
		logger:    logger,
	}
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

// Run serves the MCP protocol on the transport until ctx ends. Blocking.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	schema, err := jsonschema.For[SearchInput](nil)
	if err != nil {
		return fmt.Errorf("schema for search_knowledge: %w", err)
	}

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: tools.SearchKnowledgeName,
		Description: "Search the upgrade documentation knowledge base using semantic similarity. " +
			"Returns the best-matching passages joined into one text block.",
		InputSchema: schema,
	}, s.searchKnowledge)
	return nil
}

// searchKnowledge handles the search_knowledge MCP tool call. Validation
// failures come back as error results the caller can read; infrastructure
// failures propagate as protocol errors.
func (s *Server) searchKnowledge(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, any, error) {
	if input.Query == "" {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: "Error [validation_error]: query is required"}},
			IsError: true,
		}, nil, nil
	}

	passages, err := s.searcher.Search(ctx, input.Query, input.TopK)
	if err != nil {
		return nil, nil, fmt.Errorf("searching knowledge: %w", err)
	}

	s.logger.Debug("mcp search_knowledge", "query", input.Query, "results", len(passages))
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: knowledge.JoinText(passages)}},
	}, nil, nil
}
