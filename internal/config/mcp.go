package config

import (
	"encoding/json"
	"fmt"
)

// MCPConfig controls global MCP (Model Context Protocol) behavior.
type MCPConfig struct {
	Allowed  []string `mapstructure:"allowed" json:"allowed"`   // whitelist of server names (empty = all configured)
	Excluded []string `mapstructure:"excluded" json:"excluded"` // blacklist, higher priority than Allowed
	Timeout  int      `mapstructure:"timeout" json:"timeout"`   // connection timeout in seconds
}

// MCPServer defines one documentation/tool server reachable over MCP stdio.
type MCPServer struct {
	Command      string            `mapstructure:"command" json:"command"` // executable path, e.g. "npx"
	Args         []string          `mapstructure:"args" json:"args"`
	Env          map[string]string `mapstructure:"env" json:"env"` // SECURITY: may carry API keys/tokens
	Timeout      int               `mapstructure:"timeout" json:"timeout"`
	IncludeTools []string          `mapstructure:"include_tools" json:"include_tools"`
	ExcludeTools []string          `mapstructure:"exclude_tools" json:"exclude_tools"`
}

// Enabled reports whether server name passes the allow/exclude filters.
func (m MCPConfig) Enabled(name string) bool {
	for _, excluded := range m.Excluded {
		if excluded == name {
			return false
		}
	}
	if len(m.Allowed) == 0 {
		return true
	}
	for _, allowed := range m.Allowed {
		if allowed == name {
			return true
		}
	}
	return false
}

// MarshalJSON masks every Env value, any of which may hold a token.
func (m MCPServer) MarshalJSON() ([]byte, error) {
	type alias MCPServer
	a := alias(m)
	if a.Env != nil {
		masked := make(map[string]string, len(a.Env))
		for k, v := range a.Env {
			masked[k] = maskSecret(v)
		}
		a.Env = masked
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal mcp server: %w", err)
	}
	return data, nil
}
