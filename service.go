package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

// defaultPhoneRegion is the region hint used when parsing numbers entered
// without a country prefix.
const defaultPhoneRegion = "US"

// AuthResult bundles the account with the freshly minted session pair.
type AuthResult struct {
	Account *Account  `json:"account"`
	Tokens  TokenPair `json:"tokens"`
}

// RegisterInput carries the fields accepted at sign up. Role defaults to
// student when empty; admin accounts are created through SetRole, not here.
type RegisterInput struct {
	Email     string `json:"email"`
	Secret    string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone_number"`
	Role      Role   `json:"role"`
}

// Validate checks the input shape before any hashing or storage happens.
func (in RegisterInput) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Secret, validation.Required, validation.Length(6, 72)),
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.Role, validation.In(RoleStudent, RoleTeacher)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration input").
			WithTextCode(TextCodeValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if in.Phone != "" {
		parsed, err := phonenumbers.Parse(in.Phone, defaultPhoneRegion)
		if err != nil || !phonenumbers.IsValidNumber(parsed) {
			return goerrors.New("invalid phone number", goerrors.CategoryValidation).
				WithTextCode(TextCodeValidation).
				WithCode(goerrors.CodeBadRequest)
		}
	}

	return nil
}

// validateSecret applies the registration length policy to secrets arriving
// through the reset and change flows.
func validateSecret(secret string) error {
	if err := validation.Validate(secret, validation.Required, validation.Length(6, 72)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid secret").
			WithTextCode(TextCodeValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

func validateEmail(email string) error {
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid email").
			WithTextCode(TextCodeValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

// Service is the authentication core: it owns registration, login, session
// refresh, the verification and reset token flows, and the small set of admin
// operations. It never formats transport responses; callers map the returned
// errors to their protocol.
type Service struct {
	accounts     Accounts
	hasher       SecretHasher
	tokens       *TokenIssuer
	ephemeral    *EphemeralTokens
	stateMachine AccountStateMachine
	notifier     Notifier
	activity     ActivitySink
	logger       Logger
	now          func() time.Time

	// deterministicIDs derives account IDs from the normalized email, which
	// keeps IDs stable across environment rebuilds.
	deterministicIDs bool
}

// ServiceOption customizes Service construction.
type ServiceOption func(*Service)

// WithLogger overrides the default stderr logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier sets the outbound notification channel. Without one,
// notifications are dropped silently, which is only acceptable in tests.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		s.notifier = normalizeNotifier(n)
	}
}

// WithActivitySink sets the audit event consumer.
func WithActivitySink(sink ActivitySink) ServiceOption {
	return func(s *Service) {
		s.activity = normalizeActivitySink(sink)
	}
}

// WithClock overrides the time source, useful for expiry tests.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithDeterministicIDs derives new account IDs from the email address.
func WithDeterministicIDs(enabled bool) ServiceOption {
	return func(s *Service) {
		s.deterministicIDs = enabled
	}
}

// WithStateMachine overrides the lifecycle state machine.
func WithStateMachine(sm AccountStateMachine) ServiceOption {
	return func(s *Service) {
		if sm != nil {
			s.stateMachine = sm
		}
	}
}

// NewService wires the authentication core together.
func NewService(accounts Accounts, hasher SecretHasher, tokens *TokenIssuer, ephemeral *EphemeralTokens, opts ...ServiceOption) *Service {
	s := &Service{
		accounts:  accounts,
		hasher:    hasher,
		tokens:    tokens,
		ephemeral: ephemeral,
		notifier:  noopNotifier{},
		activity:  noopActivitySink{},
		logger:    defLogger{},
		now:       time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.stateMachine == nil {
		s.stateMachine = NewAccountStateMachine(accounts,
			WithStateMachineActivitySink(s.activity),
			WithStateMachineLogger(s.logger),
			WithStateMachineClock(s.now),
		)
	}

	return s
}

// Register creates an account, issues its verification token, and logs the
// new account in. The verification email is best effort; a failed dispatch is
// logged but never unwinds the registration.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Secret)
	if err != nil {
		return nil, err
	}

	account := &Account{
		Email:      NormalizeEmail(input.Email),
		SecretHash: hash,
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		Phone:      input.Phone,
		Role:       input.Role,
	}

	if s.deterministicIDs {
		if id, err := hashid.NewUUID(account.Email); err == nil {
			account.ID = id
		}
	}

	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		return nil, err
	}

	token, err := s.ephemeral.IssueVerification(ctx, created.ID)
	if err != nil {
		return nil, err
	}
	created.EmailVerificationToken = token

	if err := s.notifier.Send(ctx, created.Email, NotificationEmailVerification, map[string]any{
		"first_name": created.FirstName,
		"token":      token,
	}); err != nil {
		s.logger.Warn("verification email dispatch failed for account %s: %v", created.ID, err)
	}

	pair, err := s.tokens.IssuePair(created)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRegistered,
		Actor:     ActorRef{ID: created.ID.String(), Type: "account"},
		AccountID: created.ID.String(),
		Metadata:  map[string]any{"role": created.Role},
	})

	return &AuthResult{Account: created, Tokens: pair}, nil
}

// Login authenticates by email and secret. A missing account, a deactivated
// account, and a wrong secret all return the same ErrInvalidCredentials so
// the flow cannot be used to probe which emails exist.
func (s *Service) Login(ctx context.Context, email, secret string) (*AuthResult, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.recordLoginFailure(ctx, email)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !account.IsActive() {
		s.recordLoginFailure(ctx, email)
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(secret, account.SecretHash) {
		s.recordLoginFailure(ctx, email)
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.accounts.RecordLogin(ctx, account.ID, now); err != nil {
		s.logger.Warn("failed to record login for account %s: %v", account.ID, err)
	} else {
		account.LoginCount++
		account.LastLoginAt = &now
	}

	pair, err := s.tokens.IssuePair(account)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
	})

	return &AuthResult{Account: account, Tokens: pair}, nil
}

// Refresh exchanges a valid refresh token for a fresh access+refresh pair.
// All failure modes collapse into ErrInvalidRefreshToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Validate(refreshToken, TokenClassRefresh)
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	accountID, err := claims.AccountID()
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, err
	}

	if !account.IsActive() {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	pair, err := s.tokens.IssuePair(account)
	if err != nil {
		return TokenPair{}, err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSessionRefreshed,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
	})

	return pair, nil
}

// VerifyEmail redeems a single-use verification token.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*Account, error) {
	account, err := s.ephemeral.ConsumeVerification(ctx, token)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventEmailVerified,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
	})

	return account, nil
}

// ForgotPassword issues a reset token and emails it to the account. Unknown
// and deactivated emails return nil without side effects, so the response
// never reveals whether an address is registered. Delivery is mandatory here:
// a token nobody received is a locked door, so a failed dispatch rolls the
// token back and surfaces ErrNotificationFailure.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil
		}
		return err
	}

	if !account.IsActive() {
		return nil
	}

	token, expiry, err := s.ephemeral.IssueReset(ctx, account.ID)
	if err != nil {
		return err
	}

	if err := s.notifier.Send(ctx, account.Email, NotificationPasswordReset, map[string]any{
		"first_name": account.FirstName,
		"token":      token,
		"expires_at": expiry,
	}); err != nil {
		s.logger.Error("reset email dispatch failed for account %s: %v", account.ID, err)
		if rbErr := s.ephemeral.Rollback(ctx, account.ID); rbErr != nil {
			s.logger.Error("failed to roll back reset token for account %s: %v", account.ID, rbErr)
		}
		return ErrNotificationFailure
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPasswordForgot,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
	})

	return nil
}

// ResetPassword redeems a single-use reset token and installs the new secret.
// The secret is validated before the token is touched, so a rejected secret
// leaves the token redeemable.
func (s *Service) ResetPassword(ctx context.Context, token, newSecret string) (*Account, error) {
	if err := validateSecret(newSecret); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(newSecret)
	if err != nil {
		return nil, err
	}

	account, err := s.ephemeral.ConsumeReset(ctx, token, hash)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
	})

	return account, nil
}

// ChangePassword replaces the secret for an authenticated account after
// re-checking the current one. A wrong current secret leaves the stored hash
// untouched.
func (s *Service) ChangePassword(ctx context.Context, accountID uuid.UUID, current, newSecret string) error {
	if err := validateSecret(newSecret); err != nil {
		return err
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrAccountNotFound
		}
		return err
	}

	if !account.IsActive() {
		return ErrAccountInactive
	}

	if !s.hasher.Verify(current, account.SecretHash) {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newSecret)
	if err != nil {
		return err
	}

	account.SecretHash = hash
	if _, err := s.accounts.Update(ctx, account, "secret_hash"); err != nil {
		return err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     ActorRef{ID: account.ID.String(), Type: "account"},
		AccountID: account.ID.String(),
	})

	return nil
}

// Deactivate moves an account into the terminal deactivated state.
func (s *Service) Deactivate(ctx context.Context, actor ActorRef, accountID uuid.UUID, opts ...TransitionOption) (*Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	return s.stateMachine.Transition(ctx, actor, account, AccountStatusDeactivated, opts...)
}

// SetRole changes an account's role. The role enum is closed; anything
// outside it is rejected before touching storage.
func (s *Service) SetRole(ctx context.Context, actor ActorRef, accountID uuid.UUID, role Role) (*Account, error) {
	if !IsValidRole(role) {
		return nil, goerrors.New("unknown role", goerrors.CategoryValidation).
			WithTextCode(TextCodeValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"role": role})
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	previous := account.Role
	updated, err := s.accounts.UpdateRole(ctx, accountID, role)
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventRoleChanged,
		Actor:     actor,
		AccountID: accountID.String(),
		Metadata: map[string]any{
			"from": previous,
			"to":   role,
		},
	})

	if updated == nil {
		account.Role = role
		return account, nil
	}

	return updated, nil
}

// Account fetches the account record for an authenticated subject.
func (s *Service) Account(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// Stats returns aggregate account counts.
func (s *Service) Stats(ctx context.Context) (*AccountStats, error) {
	return s.accounts.Stats(ctx)
}

func (s *Service) recordLoginFailure(ctx context.Context, email string) {
	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "anonymous"},
		Metadata:  map[string]any{"email": NormalizeEmail(email)},
	})
}

func (s *Service) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink error: %v", err)
	}
}
