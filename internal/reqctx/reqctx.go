// Package reqctx carries request-scoped identity through context: the actor
// injected by the upstream gateway and the request ID assigned by middleware.
package reqctx

import (
	"context"

	"github.com/gridops/netops-engine/internal/database"
)

type contextKey int

const (
	actorIDKey contextKey = iota
	actorRoleKey
	requestIDKey
)

// WithActor attaches the authenticated actor to the context.
func WithActor(ctx context.Context, actorID int64, role database.Role) context.Context {
	ctx = context.WithValue(ctx, actorIDKey, actorID)
	return context.WithValue(ctx, actorRoleKey, role)
}

// ActorID returns the actor attached to the context, or 0 for system calls.
func ActorID(ctx context.Context) int64 {
	if id, ok := ctx.Value(actorIDKey).(int64); ok {
		return id
	}
	return 0
}

// ActorRole returns the actor's role, or the empty role when absent.
func ActorRole(ctx context.Context) database.Role {
	if role, ok := ctx.Value(actorRoleKey).(database.Role); ok {
		return role
	}
	return ""
}

// WithRequestID attaches the request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID attached to the context, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
