package auth

import "context"

type contextKey string

const identityContextKey contextKey = "mentor_identity"

// Identity is the authenticated caller, produced once per request and owned by
// the request lifetime. It is never persisted by the gateway.
type Identity struct {
	Subject string `json:"subject"`
	Email   string `json:"email,omitempty"`
}

func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok
}
