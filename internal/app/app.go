// Package app assembles the application: database, model runtime, stores,
// tools, agent manager and the orchestration core, with teardown in reverse
// order of construction.
package app

import (
	"context"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uplift-ai/uplift/internal/agent"
	"github.com/uplift-ai/uplift/internal/config"
	"github.com/uplift-ai/uplift/internal/knowledge"
	"github.com/uplift-ai/uplift/internal/log"
	"github.com/uplift-ai/uplift/internal/memory"
	"github.com/uplift-ai/uplift/internal/stream"
)

// App is the application container. Fields are read-only after Setup.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Memory    *memory.Gateway
	Knowledge *knowledge.Store
	Sessions  *agent.SessionStore
	Manager   *agent.Manager
	Mux       *stream.Mux

	otelShutdown func(context.Context) error
}

// Close releases resources in reverse construction order: flush traces
// first while the pool is still alive, then close the pool.
func (a *App) Close() error {
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Logger.Warn("shutting down tracer provider", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
	return nil
}
