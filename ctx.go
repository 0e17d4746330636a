package identity

import (
	"context"
)

var accountCtxKey = &contextKey{"account"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithAccountContext sets the authenticated AccountContext in the given context
func WithAccountContext(ctx context.Context, actx *AccountContext) context.Context {
	return context.WithValue(ctx, accountCtxKey, actx)
}

// AccountContextFromContext finds the AccountContext from the context.
func AccountContextFromContext(ctx context.Context) (*AccountContext, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*AccountContext)
	return raw, ok
}

// WithClaimsContext sets the SessionClaims in the given context
func WithClaimsContext(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// ClaimsFromContext extracts the SessionClaims from the context
func ClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*SessionClaims)
	return raw, ok
}
