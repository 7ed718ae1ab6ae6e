package stream

import "context"

// RawKind discriminates the upstream event variants. The agent runtime's
// loosely shaped events are decoded into this closed set exactly once, at the
// source boundary; anything unrecognized becomes RawUnknown and is handled by
// the swallow-and-continue policy.
type RawKind int

const (
	// RawUnknown is any event shape the decoder does not recognize.
	RawUnknown RawKind = iota
	// RawContent is a generated text fragment.
	RawContent
	// RawToolUse announces a tool invocation.
	RawToolUse
	// RawToolResult announces a tool completion or failure.
	RawToolResult
)

// RawEvent is one decoded upstream event.
type RawEvent struct {
	Kind RawKind
	// Text is the fragment for RawContent.
	Text string
	// Tool is the tool name for RawToolUse and RawToolResult.
	Tool string
	// Failed marks a RawToolResult that reported an error.
	Failed bool
}

// Source yields the agent's events for one query.
//
// Next blocks until an event is available, the context ends, or the stream is
// exhausted. Natural end-of-stream is signaled with io.EOF. Any other error is
// stream-fatal.
type Source interface {
	Next(ctx context.Context) (RawEvent, error)
}
