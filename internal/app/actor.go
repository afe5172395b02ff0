package app

import (
	"context"
	"strings"
)

// WithActor attaches the acting user id to context.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, strings.TrimSpace(userID))
}

// ActorFromContext returns the acting user id when present.
func ActorFromContext(ctx context.Context) (string, bool) {
	raw := ctx.Value(actorContextKey{})
	userID, ok := raw.(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

// actorContextKey stores context keys for acting user ids.
type actorContextKey struct{}
