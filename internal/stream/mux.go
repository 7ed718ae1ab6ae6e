package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/uplift-ai/uplift/internal/log"
)

// Query is a single user utterance plus the caller-supplied identity.
// Immutable once received; lifetime is one request.
type Query struct {
	UserID string
	Text   string
}

// Gateway is the narrow slice of the memory layer the orchestration core
// touches. Implementations never raise: context fetch degrades to "" and
// RecordExchange reports failure through its return value only.
type Gateway interface {
	// ContextForQuery returns a formatted block of relevant prior exchanges,
	// or "" when none exist or memory is unavailable.
	ContextForQuery(ctx context.Context, userID, query string) string

	// RecordExchange persists one completed exchange, best-effort. Called only
	// with a non-empty answer.
	RecordExchange(ctx context.Context, userID, query, answer string) bool
}

// Opener turns a composed prompt into a live event source. It owns tool
// assembly and agent construction, including the fallback chain; the release
// function frees the agent and tool resources and runs on every exit path.
type Opener interface {
	Open(ctx context.Context, q Query, prompt string) (src Source, release func(), err error)
}

// Policy tunes the liveness behavior of the streaming loop.
type Policy struct {
	// HeartbeatInterval is the wall-clock gap between keep-alive events.
	HeartbeatInterval time.Duration
	// PullTimeout bounds each wait for the next upstream event. Elapsing is
	// never an error; the loop ticks and pulls again.
	PullTimeout time.Duration
	// SoftCeiling triggers a one-time long-running notice. The stream
	// continues past it.
	SoftCeiling time.Duration
	// HardCeiling force-fails a stream that outlives it. Zero disables it.
	HardCeiling time.Duration
}

// DefaultPolicy matches the service defaults.
func DefaultPolicy() Policy {
	return Policy{
		HeartbeatInterval: 5 * time.Second,
		PullTimeout:       10 * time.Second,
		SoftCeiling:       240 * time.Second,
		HardCeiling:       12 * time.Minute,
	}
}

const (
	softCeilingNotice = "This is taking longer than usual. Still working on it, thanks for your patience..."
	stillWorkingMsg   = "Still working on your request..."
	hardCeilingMsg    = "The request exceeded the processing time limit. Please try again."
)

// errIdle marks a pull whose own deadline elapsed with no upstream event. It
// never escapes Run; the loop ticks and pulls again.
var errIdle = errors.New("idle pull")

// Mux is the stream multiplexer. One Mux serves all queries; each Run call
// owns its own accumulated answer and agent instance, so no cross-query state
// exists beyond the injected collaborators.
type Mux struct {
	gateway      Gateway
	opener       Opener
	policy       Policy
	systemPrompt string
	logger       log.Logger
}

// NewMux wires a multiplexer. systemPrompt is prepended to every composed
// prompt; policy zero-values fall back to DefaultPolicy.
func NewMux(gateway Gateway, opener Opener, policy Policy, systemPrompt string, logger log.Logger) *Mux {
	def := DefaultPolicy()
	if policy.HeartbeatInterval <= 0 {
		policy.HeartbeatInterval = def.HeartbeatInterval
	}
	if policy.PullTimeout <= 0 {
		policy.PullTimeout = def.PullTimeout
	}
	if policy.SoftCeiling <= 0 {
		policy.SoftCeiling = def.SoftCeiling
	}
	return &Mux{
		gateway:      gateway,
		opener:       opener,
		policy:       policy,
		systemPrompt: systemPrompt,
		logger:       logger,
	}
}

// Run executes one query and yields its normalized event sequence in emission
// order. The sequence contains exactly one terminal event, except when ctx is
// cancelled mid-stream: then the loop stops pulling, releases its resources
// and yields nothing further, and no memory write occurs.
func (m *Mux) Run(ctx context.Context, q Query) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		start := time.Now()

		historical := m.gateway.ContextForQuery(ctx, q.UserID, q.Text)
		prompt := composePrompt(m.systemPrompt, historical, q.Text)

		src, release, err := m.opener.Open(ctx, q, prompt)
		if err != nil {
			m.logger.Error("agent source unavailable", "user_id", q.UserID, "error", err)
			yield(errorEvent(fmt.Sprintf("Failed to start processing: %v", err)))
			return
		}
		defer release()

		var acc strings.Builder
		lastBeat := start
		warned := false

		for {
			if ctx.Err() != nil {
				return
			}

			now := time.Now()
			if now.Sub(lastBeat) >= m.policy.HeartbeatInterval {
				lastBeat = now
				if !yield(heartbeatEvent()) {
					return
				}
			}
			if m.policy.HardCeiling > 0 && now.Sub(start) >= m.policy.HardCeiling {
				m.logger.Error("stream exceeded hard ceiling",
					"user_id", q.UserID, "elapsed", now.Sub(start))
				yield(errorEvent(hardCeilingMsg))
				return
			}
			if !warned && now.Sub(start) >= m.policy.SoftCeiling {
				warned = true
				if !yield(statusEvent(softCeilingNotice)) {
					return
				}
			}

			raw, err := m.pull(ctx, src, lastBeat)
			if err != nil {
				switch {
				case errors.Is(err, io.EOF):
					m.complete(ctx, q, acc.String(), yield)
					return
				case ctx.Err() != nil:
					// Client is gone: no terminal event, no memory write.
					return
				case errors.Is(err, errIdle):
					// Idle tick, not an error. Heartbeat and ceiling checks
					// run at the top of the loop.
					continue
				default:
					m.logger.Error("stream pull failed", "user_id", q.UserID, "error", err)
					yield(errorEvent(fmt.Sprintf("Processing failed: %v", err)))
					return
				}
			}

			switch raw.Kind {
			case RawContent:
				if raw.Text == "" {
					continue
				}
				acc.WriteString(raw.Text)
				if !yield(contentEvent(raw.Text, acc.String())) {
					return
				}
			case RawToolUse:
				if !yield(toolStatusEvent(toolStartMessage(raw.Tool), raw.Tool)) {
					return
				}
			case RawToolResult:
				if !yield(toolStatusEvent(toolDoneMessage(raw.Tool, raw.Failed), raw.Tool)) {
					return
				}
			default:
				m.logger.Warn("unrecognized upstream event, continuing", "user_id", q.UserID)
				if !yield(statusEvent(stillWorkingMsg)) {
					return
				}
			}
		}
	}
}

// pull waits for the next upstream event, bounded by the per-pull timeout and
// by the time remaining until the next heartbeat is due, whichever is sooner.
// Bounding by the heartbeat keeps the loop ticking often enough that a slow
// upstream never starves keep-alives.
func (m *Mux) pull(ctx context.Context, src Source, lastBeat time.Time) (RawEvent, error) {
	wait := m.policy.PullTimeout
	if untilBeat := m.policy.HeartbeatInterval - time.Since(lastBeat); untilBeat < wait {
		wait = untilBeat
	}
	if wait <= 0 {
		wait = time.Millisecond
	}
	pullCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	raw, err := src.Next(pullCtx)
	if err != nil && pullCtx.Err() != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		// Only the pull's own expiry counts as idle. An upstream failure that
		// merely wraps DeadlineExceeded, a model API timeout for example,
		// arrives while pullCtx is still live and stays stream-fatal.
		return RawEvent{}, errIdle
	}
	return raw, err
}

// complete runs the COMPLETING state: best-effort memory write for non-empty
// answers, then the terminal end event.
func (m *Mux) complete(ctx context.Context, q Query, answer string, yield func(Event) bool) {
	if answer != "" {
		if ok := m.gateway.RecordExchange(ctx, q.UserID, q.Text, answer); !ok {
			m.logger.Warn("memory write failed, answer already delivered", "user_id", q.UserID)
		}
	}
	yield(endEvent())
}

// composePrompt assembles {system instructions} + {optional historical
// context} + {user query}.
func composePrompt(system, historical, query string) string {
	var b strings.Builder
	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}
	if historical != "" {
		b.WriteString(historical)
		b.WriteString("\n\n")
	}
	b.WriteString(query)
	return b.String()
}

// toolStartMessage phrases a tool invocation for the end user, with
// topic-specific wording for search and crawl style tools.
func toolStartMessage(name string) string {
	switch {
	case strings.Contains(name, "search"):
		return "Searching for relevant material, this may take a moment..."
	case strings.Contains(name, "crawl"):
		return "Fetching documentation pages for more detail..."
	default:
		return fmt.Sprintf("Running %s...", name)
	}
}

func toolDoneMessage(name string, failed bool) string {
	if failed {
		return fmt.Sprintf("%s did not complete, continuing without it...", name)
	}
	switch {
	case strings.Contains(name, "search"):
		return "Search finished, analyzing the results..."
	case strings.Contains(name, "crawl"):
		return "Finished reading the pages, putting the answer together..."
	default:
		return fmt.Sprintf("%s finished.", name)
	}
}
