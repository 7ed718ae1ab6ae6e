package agent

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/uplift-ai/uplift/internal/log"
	"github.com/uplift-ai/uplift/internal/stream"
	"github.com/uplift-ai/uplift/internal/tools"
)

func TestManagerConfig_Validate(t *testing.T) {
	sessions := newTestStore(t)
	builder := tools.NewBuilder(log.NewNop())

	tests := []struct {
		name string
		cfg  ManagerConfig
	}{
		{"missing genkit", ManagerConfig{Sessions: sessions, Builder: builder, PreferredModel: "m", Logger: log.NewNop()}},
		{"missing sessions", ManagerConfig{Builder: builder, PreferredModel: "m", Logger: log.NewNop()}},
		{"missing model", ManagerConfig{Sessions: sessions, Builder: builder, Logger: log.NewNop()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewManager(tt.cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestChain_Degradation(t *testing.T) {
	m := &Manager{preferred: "googleai/gemini-2.5-pro", fallback: "googleai/gemini-2.5-flash"}

	specs := m.chain(true)
	labels := make([]string, len(specs))
	for i, s := range specs {
		labels[i] = s.label
	}
	want := []string{"preferred", "preferred-no-history", "fallback", "minimal"}
	if len(labels) != len(want) {
		t.Fatalf("chain = %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("chain[%d] = %q, want %q", i, labels[i], want[i])
		}
	}

	last := specs[len(specs)-1]
	if last.withTools || last.withHistory {
		t.Errorf("minimal spec still carries tools or history: %+v", last)
	}
	if last.model != m.fallback {
		t.Errorf("minimal spec model = %q, want fallback", last.model)
	}
}

func TestChain_NoHistoryNoFallbackModel(t *testing.T) {
	m := &Manager{preferred: "googleai/gemini-2.5-pro", fallback: "googleai/gemini-2.5-pro"}

	specs := m.chain(false)
	if len(specs) != 2 {
		t.Fatalf("chain has %d rungs, want 2: %+v", len(specs), specs)
	}
	if specs[0].label != "preferred" || specs[1].label != "minimal" {
		t.Errorf("chain = %q, %q", specs[0].label, specs[1].label)
	}
}

func TestRunSource_PushAndNext(t *testing.T) {
	src := newRunSource()

	if !src.push(stream.RawEvent{Kind: stream.RawContent, Text: "hello"}) {
		t.Fatal("push on open source returned false")
	}
	src.finish(io.EOF)

	ev, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Kind != stream.RawContent || ev.Text != "hello" {
		t.Errorf("event = %+v", ev)
	}

	if _, err := src.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("terminal error = %v, want io.EOF", err)
	}
}

func TestRunSource_NextHonorsContext(t *testing.T) {
	src := newRunSource()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := src.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next error = %v, want deadline exceeded", err)
	}
}

func TestRunSource_PushAfterClose(t *testing.T) {
	src := newRunSource()
	src.close()

	if src.push(stream.RawEvent{Kind: stream.RawContent, Text: "late"}) {
		t.Error("push on closed source returned true")
	}
	// finish must not block either.
	done := make(chan struct{})
	go func() {
		src.finish(io.EOF)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("finish blocked on closed source")
	}
}

func TestRunSource_ToolEvents(t *testing.T) {
	src := newRunSource()

	src.OnToolStart("search_knowledge")
	src.OnToolError("crawl_page")

	ev, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Kind != stream.RawToolUse || ev.Tool != "search_knowledge" {
		t.Errorf("first event = %+v", ev)
	}

	ev, err = src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ev.Kind != stream.RawToolResult || !ev.Failed {
		t.Errorf("second event = %+v", ev)
	}
}
