// Package agent turns a composed prompt into a live stream of model output.
// The Manager owns tool assembly and the fallback chain; a launch that fails
// before any content has streamed degrades to the next weaker configuration
// instead of failing the request.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/uplift-ai/uplift/internal/log"
	"github.com/uplift-ai/uplift/internal/stream"
	"github.com/uplift-ai/uplift/internal/tools"
)

// defaultMaxTurns bounds the agentic tool loop per request.
const defaultMaxTurns = 5

// ManagerConfig carries everything a Manager needs.
type ManagerConfig struct {
	Genkit   *genkit.Genkit
	Sessions *SessionStore
	Builder  *tools.Builder

	// PreferredModel and FallbackModel are provider-qualified names,
	// e.g. "googleai/gemini-2.5-pro".
	PreferredModel string
	FallbackModel  string

	MaxTurns int
	Logger   log.Logger
}

func (cfg ManagerConfig) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Builder == nil {
		return errors.New("tool builder is required")
	}
	if cfg.PreferredModel == "" {
		return errors.New("preferred model is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Manager launches one model run per query. It implements the stream layer's
// Opener. Manager itself is stateless across queries; all per-query state
// lives in the returned source.
type Manager struct {
	g        *genkit.Genkit
	sessions *SessionStore
	builder  *tools.Builder

	preferred string
	fallback  string
	maxTurns  int
	logger    log.Logger
}

// NewManager validates the configuration and builds a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	fallback := cfg.FallbackModel
	if fallback == "" {
		fallback = cfg.PreferredModel
	}
	return &Manager{
		g:         cfg.Genkit,
		sessions:  cfg.Sessions,
		builder:   cfg.Builder,
		preferred: cfg.PreferredModel,
		fallback:  fallback,
		maxTurns:  maxTurns,
		logger:    cfg.Logger,
	}, nil
}

// launchSpec is one rung of the fallback chain.
type launchSpec struct {
	label       string
	model       string
	withHistory bool
	withTools   bool
}

// chain builds the degradation order: full configuration first, then without
// history, then the fallback model, then a minimal run with no tools at all.
func (m *Manager) chain(haveHistory bool) []launchSpec {
	specs := []launchSpec{
		{label: "preferred", model: m.preferred, withHistory: haveHistory, withTools: true},
	}
	if haveHistory {
		specs = append(specs,
			launchSpec{label: "preferred-no-history", model: m.preferred, withTools: true})
	}
	if m.fallback != m.preferred {
		specs = append(specs,
			launchSpec{label: "fallback", model: m.fallback, withTools: true})
	}
	specs = append(specs, launchSpec{label: "minimal", model: m.fallback})
	return specs
}

// Open starts a model run for the query and returns its event source. The
// release function stops the run and must be called on every exit path.
func (m *Manager) Open(ctx context.Context, q stream.Query, prompt string) (stream.Source, func(), error) {
	history, err := m.sessions.History(q.UserID)
	if err != nil {
		m.logger.Warn("session history unavailable, continuing without it",
			"user_id", q.UserID, "error", err)
		history = nil
	}

	toolRefs := m.builder.Build(ctx)

	src := newRunSource()
	runCtx, cancel := context.WithCancel(ctx)
	runCtx = tools.ContextWithUserID(runCtx, q.UserID)
	runCtx = tools.ContextWithEmitter(runCtx, src)

	go m.run(runCtx, src, q, prompt, history, toolRefs)

	release := func() {
		cancel()
		src.close()
	}
	return src, release, nil
}

// run walks the fallback chain until one launch streams to completion. A
// launch that fails after content has already streamed is not retried; the
// partial answer is already on its way to the user.
func (m *Manager) run(ctx context.Context, src *runSource, q stream.Query,
	prompt string, history []*ai.Message, toolRefs []ai.ToolRef) {

	specs := m.chain(len(history) > 0)

	var lastErr error
	for _, spec := range specs {
		if ctx.Err() != nil {
			src.finish(ctx.Err())
			return
		}

		answer, streamed, err := m.launch(ctx, src, spec, prompt, history, toolRefs)
		if err == nil {
			if err := m.sessions.Append(q.UserID, q.Text, answer); err != nil {
				m.logger.Warn("session append failed", "user_id", q.UserID, "error", err)
			}
			src.finish(io.EOF)
			return
		}

		lastErr = err
		if streamed || ctx.Err() != nil {
			break
		}
		m.logger.Warn("model launch failed, degrading",
			"user_id", q.UserID, "config", spec.label, "error", err)
	}

	src.finish(fmt.Errorf("all model configurations failed: %w", lastErr))
}

// launch runs one configuration to completion, pushing chunks as they arrive.
func (m *Manager) launch(ctx context.Context, src *runSource, spec launchSpec,
	prompt string, history []*ai.Message, toolRefs []ai.ToolRef) (answer string, streamed bool, err error) {

	messages := make([]*ai.Message, 0, len(history)+1)
	if spec.withHistory {
		messages = append(messages, history...)
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(prompt)))

	opts := []ai.GenerateOption{
		ai.WithModelName(spec.model),
		ai.WithMessages(messages...),
		ai.WithMaxTurns(m.maxTurns),
		ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
			text := chunk.Text()
			if text == "" {
				return nil
			}
			streamed = true
			if !src.push(stream.RawEvent{Kind: stream.RawContent, Text: text}) {
				return context.Canceled
			}
			return nil
		}),
	}
	if spec.withTools && len(toolRefs) > 0 {
		opts = append(opts, ai.WithTools(toolRefs...))
	}

	resp, err := genkit.Generate(ctx, m.g, opts...)
	if err != nil {
		return "", streamed, err
	}

	answer = strings.TrimSpace(resp.Text())
	if !streamed && answer != "" {
		// Some providers return everything in the final response with no
		// intermediate chunks. Surface it as one content event.
		src.push(stream.RawEvent{Kind: stream.RawContent, Text: answer})
	}
	return answer, streamed, nil
}

// item is one queued upstream event, terminal when err is set.
type item struct {
	ev  stream.RawEvent
	err error
}

// runSource adapts the model run to the stream layer's pull contract. The run
// goroutine pushes, the stream loop pulls; closing tears down both sides
// without either blocking forever.
type runSource struct {
	items chan item
	done  chan struct{}
	once  sync.Once
}

func newRunSource() *runSource {
	return &runSource{
		items: make(chan item, 16),
		done:  make(chan struct{}),
	}
}

// Next blocks until an event arrives or ctx expires.
func (s *runSource) Next(ctx context.Context) (stream.RawEvent, error) {
	select {
	case it := <-s.items:
		if it.err != nil {
			return stream.RawEvent{}, it.err
		}
		return it.ev, nil
	case <-ctx.Done():
		return stream.RawEvent{}, ctx.Err()
	}
}

// push queues an event, reporting false once the source is closed.
func (s *runSource) push(ev stream.RawEvent) bool {
	select {
	case s.items <- item{ev: ev}:
		return true
	case <-s.done:
		return false
	}
}

// finish queues the terminal error, io.EOF for a natural end.
func (s *runSource) finish(err error) {
	select {
	case s.items <- item{err: err}:
	case <-s.done:
	}
}

func (s *runSource) close() {
	s.once.Do(func() { close(s.done) })
}

// OnToolStart implements the tool event emitter, forwarding tool activity
// into the event stream.
func (s *runSource) OnToolStart(name string) {
	s.push(stream.RawEvent{Kind: stream.RawToolUse, Tool: name})
}

func (s *runSource) OnToolComplete(name string) {
	s.push(stream.RawEvent{Kind: stream.RawToolResult, Tool: name})
}

func (s *runSource) OnToolError(name string) {
	s.push(stream.RawEvent{Kind: stream.RawToolResult, Tool: name, Failed: true})
}
