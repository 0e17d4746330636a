package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

const (
	// DefaultAccessTokenTTL mirrors the platform's historical 7 day access
	// token lifetime. Deployments running refresh rotation should shorten it.
	DefaultAccessTokenTTL = 7 * 24 * time.Hour
	// DefaultRefreshTokenTTL is the 30 day refresh window.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// TokenPair is the access+refresh pair handed out by login, register, and
// refresh flows.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenIssuerConfig holds the signing parameters for session tokens.
type TokenIssuerConfig struct {
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenIssuer creates and validates signed, class-tagged session tokens. The
// signing key is injected at construction so key resolution can change without
// touching call sites.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     Logger
	now        func() time.Time
}

// NewTokenIssuer creates a new TokenIssuer instance
func NewTokenIssuer(signingKey []byte, cfg TokenIssuerConfig, logger Logger) *TokenIssuer {
	if logger == nil {
		logger = defLogger{}
	}

	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTokenTTL
	}

	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTokenTTL
	}

	return &TokenIssuer{
		signingKey: signingKey,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the time source, useful for expiry tests.
func (ti *TokenIssuer) WithClock(clock func() time.Time) *TokenIssuer {
	if clock != nil {
		ti.now = clock
	}
	return ti
}

// IssueAccess creates a signed access-class token for the account.
func (ti *TokenIssuer) IssueAccess(account *Account) (string, error) {
	return ti.issue(account, TokenClassAccess, ti.accessTTL)
}

// IssueRefresh creates a signed refresh-class token for the account.
func (ti *TokenIssuer) IssueRefresh(account *Account) (string, error) {
	return ti.issue(account, TokenClassRefresh, ti.refreshTTL)
}

// IssuePair mints a fresh access+refresh pair.
func (ti *TokenIssuer) IssuePair(account *Account) (TokenPair, error) {
	access, err := ti.IssueAccess(account)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := ti.IssueRefresh(account)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (ti *TokenIssuer) issue(account *Account, class TokenClass, ttl time.Duration) (string, error) {
	if account == nil {
		return "", errors.New("account must not be nil", errors.CategoryInternal)
	}

	now := ti.now()

	var aud jwt.ClaimStrings
	if len(ti.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ti.audience))
		copy(aud, ti.audience)
	}

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ti.issuer,
			Subject:   account.ID.String(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Class: class,
		Role:  account.Role,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ti.SignClaims(claims)
}

// SignClaims signs arbitrary session claims using the configured signing key.
func (ti *TokenIssuer) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ti.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session token")
	}

	return signedString, nil
}

// Validate parses a raw token, verifies the signature before inspecting any
// claim, and enforces the expected token class.
func (ti *TokenIssuer) Validate(tokenString string, expected TokenClass) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 3)
	parserOptions = append(parserOptions, jwt.WithTimeFunc(ti.now))
	if ti.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ti.issuer))
	}
	if len(ti.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ti.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ti.logger.Error("TokenIssuer validate encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ti.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		ti.logger.Error("TokenIssuer validate could not decode or validate claims")
		return nil, ErrTokenMalformed
	}

	if claims.Class != expected {
		return nil, ErrWrongTokenClass
	}

	return claims, nil
}
