package identity

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeValidation        = "VALIDATION_FAILED"
	TextCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeAccountInactive   = "ACCOUNT_INACTIVE"
	TextCodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	TextCodeInvalidVerify     = "INVALID_VERIFICATION_TOKEN"
	TextCodeInvalidReset      = "INVALID_OR_EXPIRED_RESET_TOKEN"
	TextCodeInvalidRefresh    = "INVALID_REFRESH_TOKEN"
	TextCodeForbidden         = "FORBIDDEN"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeInvalidSignature  = "INVALID_TOKEN_SIGNATURE"
	TextCodeWrongTokenClass   = "WRONG_TOKEN_CLASS"
	TextCodeTokenMalformed    = "MALFORMED_TOKEN"
	TextCodeEmptySecret       = "EMPTY_SECRET"
	TextCodeSecretTooLong     = "SECRET_TOO_LONG"
	TextCodeTransientStore    = "TRANSIENT_STORE_ERROR"
	TextCodeNotificationFail  = "NOTIFICATION_FAILURE"
	TextCodeInvalidTransition = "INVALID_ACCOUNT_STATE_TRANSITION"
	TextCodeTerminalState     = "TERMINAL_ACCOUNT_STATE"
)

// ErrDuplicateEmail is returned when registration hits the email unique index.
var ErrDuplicateEmail = errors.New("an account with this email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeConflict)

// ErrInvalidCredentials is the single error for a missing account, an inactive
// account, or a wrong secret. Keeping these indistinguishable prevents email
// enumeration through the login flow.
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrAccountInactive is returned when a deactivated account presents an
// otherwise valid session token.
var ErrAccountInactive = errors.New("account is deactivated", errors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(errors.CodeForbidden)

// ErrAccountNotFound is returned for lookups by id that match no account.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidVerificationToken covers unknown and already-consumed verification
// tokens alike; the two cases are not distinguishable to callers.
var ErrInvalidVerificationToken = errors.New("invalid or expired verification token", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidVerify).
	WithCode(errors.CodeBadRequest)

// ErrInvalidOrExpiredResetToken covers unknown, consumed, and expired reset
// tokens; the caller cannot tell which condition failed.
var ErrInvalidOrExpiredResetToken = errors.New("invalid or expired reset token", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidReset).
	WithCode(errors.CodeBadRequest)

// ErrInvalidRefreshToken is returned when a refresh attempt fails for any
// reason: bad token, wrong class, or the subject account gone or inactive.
var ErrInvalidRefreshToken = errors.New("invalid refresh token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidRefresh).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned when an authenticated account lacks a required role.
var ErrForbidden = errors.New("insufficient role for this operation", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrTokenExpired is returned by Validate for session tokens past their expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidSignature is returned when the token signature check fails.
var ErrInvalidSignature = errors.New("token signature is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(errors.CodeUnauthorized)

// ErrWrongTokenClass is returned when a token of one class is presented where
// the other is expected.
var ErrWrongTokenClass = errors.New("token class mismatch", errors.CategoryAuth).
	WithTextCode(TextCodeWrongTokenClass).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token cannot be parsed at all.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryBadInput).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeBadRequest)

// ErrEmptySecret is returned by Hasher.Hash for an empty secret.
var ErrEmptySecret = errors.New("secret must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptySecret).
	WithCode(errors.CodeBadRequest)

// ErrSecretTooLong is returned by Hasher.Hash for secrets beyond bcrypt's
// 72-byte input limit. Rejecting beats silent truncation.
var ErrSecretTooLong = errors.New("secret exceeds the 72 byte limit", errors.CategoryValidation).
	WithTextCode(TextCodeSecretTooLong).
	WithCode(errors.CodeBadRequest)

// ErrTransientStore wraps repository timeouts and connection failures; callers
// may retry, the core never does.
var ErrTransientStore = errors.New("credential store temporarily unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeTransientStore).
	WithCode(errors.CodeInternal)

// ErrNotificationFailure is returned when a notification dispatch fails in a
// flow where delivery is mandatory (forgot-password).
var ErrNotificationFailure = errors.New("failed to dispatch notification", errors.CategoryInternal).
	WithTextCode(TextCodeNotificationFail).
	WithCode(errors.CodeInternal)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsTransientStoreError reports whether the failure came from the credential
// store and is worth retrying upstream.
func IsTransientStoreError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientStore) {
		return true
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == TextCodeTransientStore
	}
	return false
}

// wrapStoreError converts an unexpected repository failure into the transient
// store error, keeping the source chained for logs.
func wrapStoreError(err error, msg string) error {
	return errors.Wrap(err, ErrTransientStore.Category, msg).
		WithTextCode(TextCodeTransientStore)
}
