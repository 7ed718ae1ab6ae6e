package tools

// mcp.go exposes external documentation servers, reached over the Model
// Context Protocol, as a tool provider.

import (
	"context"
	"fmt"
	"sort"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/mcp"

	"github.com/uplift-ai/uplift/internal/config"
	"github.com/uplift-ai/uplift/internal/log"
)

// MCPProvider aggregates tools from every configured MCP server. Enumeration
// happens per query through GetActiveTools, so a server that is down only
// costs this provider, never the build.
type MCPProvider struct {
	host   *mcp.MCPHost
	g      *genkit.Genkit
	logger log.Logger
}

// NewMCPProvider connects to the configured servers. Returns nil (no
// provider) when none are configured or allowed.
func NewMCPProvider(ctx context.Context, g *genkit.Genkit, mcpCfg config.MCPConfig,
	servers map[string]config.MCPServer, logger log.Logger) (*MCPProvider, error) {

	serverConfigs := buildServerConfigs(mcpCfg, servers)
	if len(serverConfigs) == 0 {
		return nil, nil
	}

	host, err := mcp.NewMCPHost(g, mcp.MCPHostOptions{
		Name:       "uplift",
		Version:    "1.0.0",
		MCPServers: serverConfigs,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP host: %w", err)
	}

	logger.Info("connected MCP servers", "count", len(serverConfigs))
	return &MCPProvider{host: host, g: g, logger: logger}, nil
}

// Name identifies the provider in logs.
func (p *MCPProvider) Name() string { return "mcp" }

// Tools enumerates the active servers' tools.
func (p *MCPProvider) Tools(ctx context.Context) ([]ai.ToolRef, error) {
	tools, err := p.host.GetActiveTools(ctx, p.g)
	if err != nil {
		return nil, fmt.Errorf("listing MCP tools: %w", err)
	}
	refs := make([]ai.ToolRef, 0, len(tools))
	for _, t := range tools {
		refs = append(refs, t)
	}
	return refs, nil
}

// buildServerConfigs translates configuration into client options, applying
// the allow/exclude filters. Server order is sorted by name so tool ordering
// stays deterministic.
func buildServerConfigs(mcpCfg config.MCPConfig, servers map[string]config.MCPServer) []mcp.MCPServerConfig {
	names := make([]string, 0, len(servers))
	for name := range servers {
		if mcpCfg.Enabled(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	configs := make([]mcp.MCPServerConfig, 0, len(names))
	for _, name := range names {
		srv := servers[name]
		configs = append(configs, mcp.MCPServerConfig{
			Name: name,
			Config: mcp.MCPClientOptions{
				Name: name,
				Stdio: &mcp.StdioConfig{
					Command: srv.Command,
					Args:    srv.Args,
					Env:     envMapToSlice(srv.Env),
				},
			},
		})
	}
	return configs
}

func envMapToSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
