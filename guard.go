package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// AccountContext is the authenticated subject attached to a request after the
// guard admits it.
type AccountContext struct {
	AccountID uuid.UUID
	Email     string
	Role      Role
	Claims    *SessionClaims
}

// Guard authenticates raw access tokens and enforces role requirements. The
// liveness check against the repository means a deactivated account is locked
// out immediately, even while its tokens are cryptographically valid.
type Guard struct {
	tokens   *TokenIssuer
	accounts Accounts
	logger   Logger
}

// GuardOption customizes guard construction.
type GuardOption func(*Guard)

// WithGuardLogger overrides the default logger.
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGuard creates a guard over the given issuer and repository.
func NewGuard(tokens *TokenIssuer, accounts Accounts, opts ...GuardOption) *Guard {
	g := &Guard{
		tokens:   tokens,
		accounts: accounts,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Authenticate validates a raw access token and confirms the subject account
// is still active. Refresh tokens are rejected here; they never authenticate
// requests.
func (g *Guard) Authenticate(ctx context.Context, rawToken string) (*AccountContext, error) {
	claims, err := g.tokens.Validate(rawToken, TokenClassAccess)
	if err != nil {
		return nil, err
	}

	accountID, err := claims.AccountID()
	if err != nil {
		return nil, ErrTokenMalformed
	}

	account, err := g.accounts.FindByID(ctx, accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if !account.IsActive() {
		return nil, ErrAccountInactive
	}

	return &AccountContext{
		AccountID: account.ID,
		Email:     account.Email,
		// The live record wins over the role baked into the token, so a role
		// change takes effect without waiting for token expiry.
		Role:   account.Role,
		Claims: claims,
	}, nil
}

// RequireRole admits the subject only when its role meets the minimum.
func (g *Guard) RequireRole(actx *AccountContext, minRole Role) error {
	if actx == nil {
		return ErrForbidden
	}

	if !RoleIsAtLeast(actx.Role, minRole) {
		return ErrForbidden.WithMetadata(map[string]any{
			"required": minRole,
			"actual":   actx.Role,
		})
	}

	return nil
}

// RequireAnyRole admits the subject when its role is one of the allowed set.
// Use this for surfaces where the hierarchy does not apply, e.g. endpoints
// meant for teachers but not admins.
func (g *Guard) RequireAnyRole(actx *AccountContext, allowed ...Role) error {
	if actx == nil {
		return ErrForbidden
	}

	if !RoleIn(actx.Role, allowed...) {
		return ErrForbidden.WithMetadata(map[string]any{
			"allowed": allowed,
			"actual":  actx.Role,
		})
	}

	return nil
}
