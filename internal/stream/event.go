// Package stream implements the streaming orchestration core: it drives an
// agent's raw event source, classifies each event, enforces the heartbeat and
// timeout policy, accumulates the answer text, and yields one normalized,
// totally ordered event sequence per query.
package stream

import "time"

// Kind discriminates the normalized event variants.
type Kind string

const (
	// KindContent carries a text delta plus the accumulated answer so far.
	KindContent Kind = "content"
	// KindStatus carries a human-readable progress notice.
	KindStatus Kind = "status"
	// KindHeartbeat is a contentless keep-alive.
	KindHeartbeat Kind = "heartbeat"
	// KindError is terminal and carries a user-facing message.
	KindError Kind = "error"
	// KindEnd is terminal and marks successful completion.
	KindEnd Kind = "end"
)

// Event is the normalized unit of output from the orchestration core.
// Exactly one terminal event (KindError or KindEnd) occurs per query and it is
// always the last one emitted.
type Event struct {
	Kind Kind

	// Delta and Accumulated are set for KindContent only. Accumulated is the
	// concatenation of every delta emitted so far in this query.
	Delta       string
	Accumulated string

	// Message is set for KindStatus and KindError.
	Message string

	// Tool names the tool behind a KindStatus produced by tool activity.
	// Empty for every other status.
	Tool string

	// Timestamp records when the event was produced.
	Timestamp time.Time
}

// Terminal reports whether no further events may follow e.
func (e Event) Terminal() bool {
	return e.Kind == KindError || e.Kind == KindEnd
}

func contentEvent(delta, accumulated string) Event {
	return Event{Kind: KindContent, Delta: delta, Accumulated: accumulated, Timestamp: time.Now()}
}

func statusEvent(message string) Event {
	return Event{Kind: KindStatus, Message: message, Timestamp: time.Now()}
}

func toolStatusEvent(message, tool string) Event {
	return Event{Kind: KindStatus, Message: message, Tool: tool, Timestamp: time.Now()}
}

func heartbeatEvent() Event {
	return Event{Kind: KindHeartbeat, Timestamp: time.Now()}
}

func errorEvent(message string) Event {
	return Event{Kind: KindError, Message: message, Timestamp: time.Now()}
}

func endEvent() Event {
	return Event{Kind: KindEnd, Timestamp: time.Now()}
}
