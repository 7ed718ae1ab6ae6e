package tools

import (
	"context"

	"github.com/firebase/genkit/go/ai"

	"github.com/uplift-ai/uplift/internal/log"
)

// Provider exposes a named set of tools. Providers are enumerated fresh for
// every query; a provider may legitimately return an empty set.
type Provider interface {
	// Name identifies the provider in logs.
	Name() string

	// Tools returns the provider's tools. An error marks the whole provider
	// unavailable for this query.
	Tools(ctx context.Context) ([]ai.ToolRef, error)
}

// Builder aggregates tools from zero or more providers into one flat list per
// query. Providers are isolated: one failing to enumerate is skipped with a
// logged warning and never fails the build. There are no retries within a
// query; the next query enumerates all providers again.
type Builder struct {
	providers []Provider
	logger    log.Logger
}

// NewBuilder creates a Builder over the given providers. Order is preserved
// into the built tool list so test runs see a deterministic ordering.
func NewBuilder(logger log.Logger, providers ...Provider) *Builder {
	return &Builder{providers: providers, logger: logger}
}

// Add appends a provider to the enumeration order.
func (b *Builder) Add(p Provider) {
	b.providers = append(b.providers, p)
}

// Build enumerates every provider and returns the aggregated tool list.
func (b *Builder) Build(ctx context.Context) []ai.ToolRef {
	var all []ai.ToolRef
	for _, p := range b.providers {
		tools, err := p.Tools(ctx)
		if err != nil {
			b.logger.Warn("tool provider unavailable, skipping",
				"provider", p.Name(), "error", err)
			continue
		}
		all = append(all, tools...)
	}
	return all
}

// Static is a Provider over a fixed tool list assembled at startup.
type Static struct {
	name  string
	tools []ai.ToolRef
}

// NewStatic wraps already-registered tools as a Provider.
func NewStatic(name string, tools []ai.Tool) *Static {
	refs := make([]ai.ToolRef, 0, len(tools))
	for _, t := range tools {
		refs = append(refs, t)
	}
	return &Static{name: name, tools: refs}
}

func (s *Static) Name() string { return s.name }

func (s *Static) Tools(context.Context) ([]ai.ToolRef, error) {
	return s.tools, nil
}
