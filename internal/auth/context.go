package auth

import "context"

type identityCtxKey struct{}

// Identity is the authenticated operator a session token was issued to.
type Identity struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(Identity)
	return identity, ok
}
