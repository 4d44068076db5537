package core

import (
	"context"
	"slices"
)

type contextKey string

const (
	ctxKeyActor   contextKey = "roster_actor"
	ctxKeyAddress contextKey = "roster_ip"
)

// Actor is the authenticated caller of a reconciliation or commit.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// ContextWithActor attaches the caller to the context.
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

// ActorFromContext extracts the caller from the context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKeyActor).(Actor)
	return a, ok
}

// ContextWithIPAddress adds the client address to context for logging.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyAddress, ip)
}

// GetIPAddressFromContext extracts the client address from context.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyAddress).(string); ok {
		return v
	}
	return ""
}

// Authorize checks that the context carries an actor whose role is in allowed.
func Authorize(ctx context.Context, allowed []string) (Actor, error) {
	a, ok := ActorFromContext(ctx)
	if !ok || a.Role == "" {
		return Actor{}, &AuthorizationError{}
	}
	if !slices.Contains(allowed, a.Role) {
		return a, &AuthorizationError{Role: a.Role}
	}
	return a, nil
}
