package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uplift-ai/uplift/db"
	"github.com/uplift-ai/uplift/internal/agent"
	"github.com/uplift-ai/uplift/internal/config"
	"github.com/uplift-ai/uplift/internal/knowledge"
	"github.com/uplift-ai/uplift/internal/log"
	"github.com/uplift-ai/uplift/internal/memory"
	"github.com/uplift-ai/uplift/internal/observability"
	"github.com/uplift-ai/uplift/internal/stream"
	"github.com/uplift-ai/uplift/internal/tools"
)

// systemPrompt frames every query. Historical context and the user's question
// are appended by the orchestration core.
const systemPrompt = `You are an assistant for infrastructure upgrade questions:
version changes, breaking changes, migration steps and known issues. Ground
answers in the knowledge base and cited documentation pages; when unsure, say
so rather than guessing. Answer in the user's language.`

const defaultOllamaHost = "http://localhost:11434"

// Setup builds the full application. On failure everything already
// constructed is torn down before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first so genkit's tracer provider has its processor before any
	// spans are produced.
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLP.Endpoint,
		ServiceName: cfg.OTLP.ServiceName,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.otelShutdown = shutdown

	pool, err := providePool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	g, embedder, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g
	a.Embedder = embedder

	memStore, err := memory.NewStore(pool, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating memory store: %w", err)
	}
	a.Memory = memory.NewGateway(memStore, cfg.MemoryEnabled, logger)

	a.Knowledge, err = knowledge.NewStore(pool, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}

	builder, err := provideTools(ctx, a, cfg, logger)
	if err != nil {
		return nil, err
	}

	a.Sessions, err = agent.NewSessionStore(cfg.SessionDir, logger)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	a.Manager, err = agent.NewManager(agent.ManagerConfig{
		Genkit:         g,
		Sessions:       a.Sessions,
		Builder:        builder,
		PreferredModel: cfg.FullModelName(cfg.PreferredModel),
		FallbackModel:  cfg.FullModelName(cfg.FallbackModel),
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent manager: %w", err)
	}

	a.Mux = stream.NewMux(a.Memory, a.Manager, stream.Policy{
		HeartbeatInterval: cfg.Stream.HeartbeatInterval,
		PullTimeout:       cfg.Stream.PullTimeout,
		SoftCeiling:       cfg.Stream.SoftCeiling,
		HardCeiling:       cfg.Stream.HardCeiling,
	}, systemPrompt, logger)

	return a, nil
}

// providePool applies migrations and opens the connection pool.
func providePool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.ConnString(), logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// provideGenkit initializes the model runtime for the configured provider and
// resolves the embedder the stores share.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, ai.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: defaultOllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with ollama provider")
		}
		for _, name := range []string{cfg.PreferredModel, cfg.FallbackModel} {
			plugin.DefineModel(g, ollama.ModelDefinition{Name: name, Type: "chat"}, nil)
		}
		embedder := plugin.DefineEmbedder(g, defaultOllamaHost, cfg.EmbedderModel, nil)
		logger.Info("genkit initialized", "provider", cfg.Provider, "model", cfg.PreferredModel)
		return g, embedder, nil

	case config.ProviderGoogleAI, "":
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, nil, errors.New("initializing genkit with googleai provider")
		}
		embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
		if embedder == nil {
			return nil, nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
		}
		logger.Info("genkit initialized", "provider", config.ProviderGoogleAI, "model", cfg.PreferredModel)
		return g, embedder, nil

	default:
		return nil, nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// provideTools registers the local toolsets with genkit and aggregates them
// with the MCP servers into one builder.
func provideTools(ctx context.Context, a *App, cfg *config.Config, logger log.Logger) (*tools.Builder, error) {
	builder := tools.NewBuilder(logger)

	kt, err := tools.NewKnowledge(a.Knowledge, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge toolset: %w", err)
	}
	knowledgeTools, err := tools.RegisterKnowledge(a.Genkit, kt)
	if err != nil {
		return nil, fmt.Errorf("registering knowledge tools: %w", err)
	}

	ct, err := tools.NewCrawler(tools.CrawlerOptions{
		Parallelism: cfg.Crawler.Parallelism,
		Delay:       time.Duration(cfg.Crawler.DelayMs) * time.Millisecond,
		Timeout:     time.Duration(cfg.Crawler.TimeoutMs) * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating crawler toolset: %w", err)
	}
	crawlerTools, err := tools.RegisterCrawler(a.Genkit, ct)
	if err != nil {
		return nil, fmt.Errorf("registering crawler tools: %w", err)
	}

	builder.Add(tools.NewStatic("local", append(knowledgeTools, crawlerTools...)))

	if cfg.MemoryEnabled {
		mt, err := tools.NewMemory(a.Memory, logger)
		if err != nil {
			return nil, fmt.Errorf("creating memory toolset: %w", err)
		}
		memoryTools, err := tools.RegisterMemory(a.Genkit, mt)
		if err != nil {
			return nil, fmt.Errorf("registering memory tools: %w", err)
		}
		builder.Add(tools.NewStatic("memory", memoryTools))
	}

	mcpProvider, err := tools.NewMCPProvider(ctx, a.Genkit, cfg.MCP, cfg.MCPServers, logger)
	if err != nil {
		// External servers are optional; their absence must not block startup.
		logger.Warn("MCP servers unavailable, continuing without them", "error", err)
	} else if mcpProvider != nil {
		builder.Add(mcpProvider)
	}

	return builder, nil
}
