package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountStatus is the persisted lifecycle state of an account.
type AccountStatus = string

const (
	// AccountStatusActive is the default state; only active accounts can
	// authenticate or consume tokens.
	AccountStatusActive AccountStatus = "active"
	// AccountStatusDeactivated is the terminal soft-delete state. Records are
	// never hard-deleted.
	AccountStatusDeactivated AccountStatus = "deactivated"
)

// Account is the identity record. Secret-bearing fields carry json:"-" so an
// account can be serialized outward without a sanitizing pass.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID         uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email      string    `bun:"email,notnull,unique" json:"email,omitempty"`
	SecretHash string    `bun:"secret_hash,notnull" json:"-"`
	FirstName  string    `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName   string    `bun:"last_name,notnull" json:"last_name,omitempty"`
	Phone      string    `bun:"phone_number" json:"phone_number,omitempty"`

	Role   Role          `bun:"role,notnull" json:"role,omitempty"`
	Status AccountStatus `bun:"status,notnull" json:"status,omitempty"`

	EmailVerified          bool       `bun:"email_verified" json:"email_verified"`
	EmailVerificationToken string     `bun:"email_verification_token,nullzero" json:"-"`
	PasswordResetToken     string     `bun:"password_reset_token,nullzero" json:"-"`
	PasswordResetExpiry    *time.Time `bun:"password_reset_expiry,nullzero" json:"-"`

	LoginCount  int        `bun:"login_count" json:"login_count,omitempty"`
	LastLoginAt *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`

	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeactivatedAt *time.Time `bun:"deactivated_at,nullzero" json:"deactivated_at,omitempty"`
}

// EnsureStatus defaults the status for records created before the column
// existed or built by hand in tests.
func (a *Account) EnsureStatus() {
	if a.Status == "" {
		a.Status = AccountStatusActive
	}
}

// IsActive reports whether the account may authenticate.
func (a *Account) IsActive() bool {
	if a == nil {
		return false
	}
	a.EnsureStatus()
	return a.Status == AccountStatusActive
}

// FullName joins the name fields the way the profile surface displays them.
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// HasPendingReset reports whether a reset token pair is present. The token and
// expiry are set and cleared together; one without the other is a bug.
func (a *Account) HasPendingReset() bool {
	return a.PasswordResetToken != "" && a.PasswordResetExpiry != nil
}

// NormalizeEmail lowercases and trims an email so uniqueness is
// case-insensitive everywhere the record is touched.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountStats is the aggregate shape behind admin dashboards.
type AccountStats struct {
	Total       int `json:"total"`
	Active      int `json:"active"`
	Verified    int `json:"verified"`
	Students    int `json:"students"`
	Teachers    int `json:"teachers"`
	Admins      int `json:"admins"`
	Deactivated int `json:"deactivated"`
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.Email = NormalizeEmail(record.Email)

	if record.Role == "" {
		record.Role = RoleStudent
	}

	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
