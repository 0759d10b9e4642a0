package gateway

import "context"

type sessionKey struct{}

// WithSessionID tags ctx with the studio session a call belongs to.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the session tag set by WithSessionID, if any.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
