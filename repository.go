package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Accounts is the credential repository contract the core depends on. The
// consume-and-clear operations are single atomic statements in any conforming
// implementation; a read-then-write sequence would let two callers redeem the
// same token.
type Accounts interface {
	// Create persists a new account. A collision on the (normalized) email
	// unique index surfaces as ErrDuplicateEmail.
	Create(ctx context.Context, record *Account) (*Account, error)

	// Update persists the given non-zero columns of the record.
	Update(ctx context.Context, record *Account, columns ...string) (*Account, error)

	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// FindByEmail looks up by normalized email. The secret hash is included;
	// callers that serialize outward rely on the model's json tags instead of
	// field stripping at query time.
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByVerificationToken(ctx context.Context, token string) (*Account, error)
	// FindByValidResetToken matches token, unexpired expiry, and active status
	// in one predicate.
	FindByValidResetToken(ctx context.Context, token string, now time.Time) (*Account, error)

	StoreVerificationToken(ctx context.Context, id uuid.UUID, token string) error
	StoreResetToken(ctx context.Context, id uuid.UUID, token string, expiry time.Time) error
	// ClearResetToken drops a pending reset pair, used to roll back issuance
	// when the notification cannot be delivered.
	ClearResetToken(ctx context.Context, id uuid.UUID) error

	// ConsumeVerificationToken atomically flips email_verified and clears the
	// token; a second call with the same token finds nothing.
	ConsumeVerificationToken(ctx context.Context, token string) (*Account, error)
	// ConsumeResetToken atomically checks token+expiry+status, replaces the
	// secret hash, and clears the reset pair in the same statement.
	ConsumeResetToken(ctx context.Context, token, newSecretHash string, now time.Time) (*Account, error)

	// RecordLogin bumps login_count and stamps last_login_at in one update.
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) (*Account, error)

	// Stats aggregates counts for the admin dashboard.
	Stats(ctx context.Context) (*AccountStats, error)
}

// StatusUpdateOption allows callers to mutate the account record before
// persisting status changes.
type StatusUpdateOption func(*Account)

// WithDeactivatedAt sets the DeactivatedAt timestamp during a status transition.
func WithDeactivatedAt(at *time.Time) StatusUpdateOption {
	return func(a *Account) {
		a.DeactivatedAt = at
	}
}
