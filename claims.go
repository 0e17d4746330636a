package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClass tags a session token so one class can never be replayed as the
// other. Access tokens authenticate requests; refresh tokens only mint pairs.
type TokenClass string

const (
	TokenClassAccess  TokenClass = "access"
	TokenClassRefresh TokenClass = "refresh"
)

// SessionClaims is the signed payload of a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Class TokenClass `json:"cls,omitempty"`
	Role  Role       `json:"role,omitempty"`
}

// AccountID parses the subject claim as the account id.
func (c *SessionClaims) AccountID() (uuid.UUID, error) {
	return uuid.Parse(c.RegisteredClaims.Subject)
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued at time
func (c *SessionClaims) Issued() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// IsAtLeast checks if the token's role is at least the minimum required role
func (c *SessionClaims) IsAtLeast(minRole Role) bool {
	return RoleIsAtLeast(c.Role, minRole)
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
