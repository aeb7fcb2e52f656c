// Package requestctx carries per-request caller identity through context.Context.
package requestctx

import "context"

// HeaderUserID is set by the gateway for authenticated callers.
const HeaderUserID = "X-User-Id"

type userIDKey struct{}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the caller's id, or "" when the request carried none.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
