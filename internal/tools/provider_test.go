package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/uplift-ai/uplift/internal/log"
)

type stubProvider struct {
	name  string
	tools []ai.ToolRef
	err   error
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Tools(context.Context) ([]ai.ToolRef, error) {
	return p.tools, p.err
}

func refs(names ...string) []ai.ToolRef {
	out := make([]ai.ToolRef, 0, len(names))
	for _, n := range names {
		out = append(out, ai.ToolName(n))
	}
	return out
}

func TestBuilder_AggregatesInOrder(t *testing.T) {
	b := NewBuilder(log.NewNop(),
		&stubProvider{name: "local", tools: refs("search_knowledge", "crawl_page")},
		&stubProvider{name: "memory", tools: refs("search_memory")},
	)

	got := b.Build(context.Background())
	want := []string{"search_knowledge", "crawl_page", "search_memory"}
	if len(got) != len(want) {
		t.Fatalf("Build() returned %d tools, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name() != name {
			t.Errorf("tool[%d] = %q, want %q", i, got[i].Name(), name)
		}
	}
}

func TestBuilder_SkipsFailingProvider(t *testing.T) {
	b := NewBuilder(log.NewNop(),
		&stubProvider{name: "local", tools: refs("search_knowledge")},
		&stubProvider{name: "mcp", err: errors.New("server unreachable")},
		&stubProvider{name: "memory", tools: refs("search_memory")},
	)

	got := b.Build(context.Background())
	if len(got) != 2 {
		t.Fatalf("Build() returned %d tools, want 2", len(got))
	}
	if got[0].Name() != "search_knowledge" || got[1].Name() != "search_memory" {
		t.Errorf("unexpected tools: %v, %v", got[0].Name(), got[1].Name())
	}
}

func TestBuilder_AllProvidersFail(t *testing.T) {
	b := NewBuilder(log.NewNop(),
		&stubProvider{name: "a", err: errors.New("down")},
		&stubProvider{name: "b", err: errors.New("also down")},
	)

	if got := b.Build(context.Background()); len(got) != 0 {
		t.Errorf("Build() returned %d tools, want 0", len(got))
	}
}

func TestBuilder_EmptyProviderIsValid(t *testing.T) {
	b := NewBuilder(log.NewNop(), &stubProvider{name: "mcp"})

	if got := b.Build(context.Background()); len(got) != 0 {
		t.Errorf("Build() returned %d tools, want 0", len(got))
	}
}

func TestBuilder_Add(t *testing.T) {
	b := NewBuilder(log.NewNop())
	b.Add(&stubProvider{name: "local", tools: refs("crawl_page")})

	got := b.Build(context.Background())
	if len(got) != 1 || got[0].Name() != "crawl_page" {
		t.Errorf("Build() = %v", got)
	}
}

func TestStatic(t *testing.T) {
	s := NewStatic("local", nil)
	if s.Name() != "local" {
		t.Errorf("Name() = %q", s.Name())
	}
	tools, err := s.Tools(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != 0 {
		t.Errorf("Tools() returned %d, want 0", len(tools))
	}
}
