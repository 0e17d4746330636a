package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// DefaultResetTokenTTL matches the platform's 10 minute reset window.
const DefaultResetTokenTTL = 10 * time.Minute

// ephemeralTokenBytes yields 256 bits of entropy per token.
const ephemeralTokenBytes = 32

// EphemeralTokens issues and consumes the single-use opaque tokens backing
// email verification and password reset. Tokens are persisted on the account
// record and handed back for out-of-band delivery; they are never logged.
//
// Verification tokens carry no expiry, mirroring the platform's historical
// behavior; they remain single-use because consumption clears them.
type EphemeralTokens struct {
	accounts Accounts
	resetTTL time.Duration
	now      func() time.Time
}

// NewEphemeralTokens will create a token store over the accounts repository.
func NewEphemeralTokens(accounts Accounts, resetTTL time.Duration) *EphemeralTokens {
	if resetTTL <= 0 {
		resetTTL = DefaultResetTokenTTL
	}
	return &EphemeralTokens{
		accounts: accounts,
		resetTTL: resetTTL,
		now:      time.Now,
	}
}

// WithClock overrides the time source, useful for expiry tests.
func (e *EphemeralTokens) WithClock(clock func() time.Time) *EphemeralTokens {
	if clock != nil {
		e.now = clock
	}
	return e
}

// IssueVerification generates a fresh verification token and persists it on
// the account.
func (e *EphemeralTokens) IssueVerification(ctx context.Context, accountID uuid.UUID) (string, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return "", err
	}

	if err := e.accounts.StoreVerificationToken(ctx, accountID, token); err != nil {
		return "", err
	}

	return token, nil
}

// IssueReset generates a fresh reset token with expiry and persists both on
// the account.
func (e *EphemeralTokens) IssueReset(ctx context.Context, accountID uuid.UUID) (string, time.Time, error) {
	token, err := newOpaqueToken()
	if err != nil {
		return "", time.Time{}, err
	}

	expiry := e.now().Add(e.resetTTL)
	if err := e.accounts.StoreResetToken(ctx, accountID, token, expiry); err != nil {
		return "", time.Time{}, err
	}

	return token, expiry, nil
}

// ConsumeVerification redeems a verification token, marking the account
// verified and clearing the token in one atomic update. Unknown and
// already-consumed tokens fail identically.
func (e *EphemeralTokens) ConsumeVerification(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, ErrInvalidVerificationToken
	}

	account, err := e.accounts.ConsumeVerificationToken(ctx, token)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidVerificationToken
		}
		return nil, err
	}

	return account, nil
}

// ConsumeReset redeems a reset token: the expiry check, status check, hash
// replacement, and token clearing ride on the repository's single atomic
// statement. Unknown, consumed, and expired tokens fail identically.
func (e *EphemeralTokens) ConsumeReset(ctx context.Context, token, newSecretHash string) (*Account, error) {
	if token == "" {
		return nil, ErrInvalidOrExpiredResetToken
	}

	account, err := e.accounts.ConsumeResetToken(ctx, token, newSecretHash, e.now())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidOrExpiredResetToken
		}
		return nil, err
	}

	return account, nil
}

// Rollback clears a pending reset pair after a failed notification dispatch.
func (e *EphemeralTokens) Rollback(ctx context.Context, accountID uuid.UUID) error {
	return e.accounts.ClearResetToken(ctx, accountID)
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, ephemeralTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to generate token entropy")
	}
	return hex.EncodeToString(buf), nil
}
