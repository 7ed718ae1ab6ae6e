// Package tools provides tool providers and registration for the agent.
package tools

import (
	"context"
)

// emitterKey uses an empty struct for zero-allocation context keys.
type emitterKey struct{}

// ToolEventEmitter receives tool lifecycle events. The interface is minimal,
// only the tool name; presentation is the stream layer's concern.
//
// Usage:
//  1. The orchestrator creates an emitter bound to its event channel
//  2. The orchestrator stores it in context via ContextWithEmitter
//  3. Wrapped tools retrieve it via EmitterFromContext
//  4. Tools call OnToolStart/Complete/Error around execution
type ToolEventEmitter interface {
	// OnToolStart signals that the named tool has started execution.
	OnToolStart(name string)

	// OnToolComplete signals that the named tool completed successfully.
	OnToolComplete(name string)

	// OnToolError signals that the named tool's execution failed.
	OnToolError(name string)
}

// EmitterFromContext retrieves the ToolEventEmitter from context. Returns nil
// if not set, allowing non-streaming call paths to degrade gracefully.
func EmitterFromContext(ctx context.Context) ToolEventEmitter {
	emitter, _ := ctx.Value(emitterKey{}).(ToolEventEmitter)
	return emitter
}

// ContextWithEmitter stores the ToolEventEmitter in context for one request.
func ContextWithEmitter(ctx context.Context, emitter ToolEventEmitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, emitter)
}

// userIDKey is an unexported context key for the authenticated user identity.
type userIDKey struct{}

// UserIDFromContext retrieves the user identity from context. Returns empty
// string if not set. Memory tools require it to scope every store operation;
// they refuse to run without one rather than fall back to any shared scope.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// ContextWithUserID stores the user identity in context. The API layer injects
// the authenticated user ID at ingress; tools read it for per-user isolation.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}
