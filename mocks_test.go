package identity

import (
	"context"
	"sync"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// memoryAccounts is an in-process Accounts used by the service and guard
// tests. The consume operations mirror the single-statement semantics of the
// bun implementation: match, mutate, and clear under one lock acquisition.
type memoryAccounts struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Account

	failNext error
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{
		records: map[uuid.UUID]*Account{},
	}
}

func (m *memoryAccounts) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func cloneAccount(a *Account) *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func notFound() error {
	return repository.NewRecordNotFound()
}

func (m *memoryAccounts) Create(_ context.Context, record *Account) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	prepareAccountDefaults(record)
	for _, existing := range m.records {
		if existing.Email == record.Email {
			return nil, ErrDuplicateEmail
		}
	}

	m.records[record.ID] = cloneAccount(record)
	return cloneAccount(record), nil
}

func (m *memoryAccounts) Update(_ context.Context, record *Account, columns ...string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	existing, ok := m.records[record.ID]
	if !ok {
		return nil, notFound()
	}

	if len(columns) == 0 {
		m.records[record.ID] = cloneAccount(record)
		return cloneAccount(record), nil
	}

	for _, col := range columns {
		switch col {
		case "secret_hash":
			existing.SecretHash = record.SecretHash
		case "email":
			existing.Email = record.Email
		case "first_name":
			existing.FirstName = record.FirstName
		case "last_name":
			existing.LastName = record.LastName
		case "phone_number":
			existing.Phone = record.Phone
		}
	}

	return cloneAccount(existing), nil
}

func (m *memoryAccounts) FindByID(_ context.Context, id uuid.UUID) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	if record, ok := m.records[id]; ok {
		return cloneAccount(record), nil
	}
	return nil, notFound()
}

func (m *memoryAccounts) FindByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	normalized := NormalizeEmail(email)
	for _, record := range m.records {
		if record.Email == normalized {
			return cloneAccount(record), nil
		}
	}
	return nil, notFound()
}

func (m *memoryAccounts) FindByVerificationToken(_ context.Context, token string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, record := range m.records {
		if token != "" && record.EmailVerificationToken == token {
			return cloneAccount(record), nil
		}
	}
	return nil, notFound()
}

func (m *memoryAccounts) FindByValidResetToken(_ context.Context, token string, now time.Time) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, record := range m.records {
		if m.resetTokenValid(record, token, now) {
			return cloneAccount(record), nil
		}
	}
	return nil, notFound()
}

func (m *memoryAccounts) resetTokenValid(record *Account, token string, now time.Time) bool {
	return token != "" &&
		record.PasswordResetToken == token &&
		record.PasswordResetExpiry != nil &&
		record.PasswordResetExpiry.After(now) &&
		record.Status == AccountStatusActive
}

func (m *memoryAccounts) StoreVerificationToken(_ context.Context, id uuid.UUID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}

	record, ok := m.records[id]
	if !ok {
		return notFound()
	}
	record.EmailVerificationToken = token
	return nil
}

func (m *memoryAccounts) StoreResetToken(_ context.Context, id uuid.UUID, token string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}

	record, ok := m.records[id]
	if !ok {
		return notFound()
	}
	record.PasswordResetToken = token
	record.PasswordResetExpiry = &expiry
	return nil
}

func (m *memoryAccounts) ClearResetToken(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return notFound()
	}
	record.PasswordResetToken = ""
	record.PasswordResetExpiry = nil
	return nil
}

func (m *memoryAccounts) ConsumeVerificationToken(_ context.Context, token string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, record := range m.records {
		if token != "" && record.EmailVerificationToken == token {
			record.EmailVerified = true
			record.EmailVerificationToken = ""
			return cloneAccount(record), nil
		}
	}
	return nil, notFound()
}

func (m *memoryAccounts) ConsumeResetToken(_ context.Context, token, newSecretHash string, now time.Time) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, record := range m.records {
		if m.resetTokenValid(record, token, now) {
			record.SecretHash = newSecretHash
			record.PasswordResetToken = ""
			record.PasswordResetExpiry = nil
			return cloneAccount(record), nil
		}
	}
	return nil, notFound()
}

func (m *memoryAccounts) RecordLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return notFound()
	}
	record.LoginCount++
	record.LastLoginAt = &at
	return nil
}

func (m *memoryAccounts) UpdateStatus(_ context.Context, id uuid.UUID, status AccountStatus, opts ...StatusUpdateOption) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return nil, notFound()
	}

	record.Status = status
	for _, opt := range opts {
		if opt != nil {
			opt(record)
		}
	}
	return cloneAccount(record), nil
}

func (m *memoryAccounts) UpdateRole(_ context.Context, id uuid.UUID, role Role) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return nil, notFound()
	}
	record.Role = role
	return cloneAccount(record), nil
}

func (m *memoryAccounts) Stats(_ context.Context) (*AccountStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &AccountStats{}
	for _, record := range m.records {
		stats.Total++
		if record.Status == AccountStatusActive {
			stats.Active++
		} else {
			stats.Deactivated++
		}
		if record.EmailVerified {
			stats.Verified++
		}
		switch record.Role {
		case RoleStudent:
			stats.Students++
		case RoleTeacher:
			stats.Teachers++
		case RoleAdmin:
			stats.Admins++
		}
	}
	return stats, nil
}

var _ Accounts = (*memoryAccounts)(nil)

type sentNotification struct {
	To   string
	Kind NotificationKind
	Data map[string]any
}

// recordingNotifier captures dispatched notifications; set fail to simulate a
// provider outage.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	fail error
}

func (n *recordingNotifier) Send(_ context.Context, to string, kind NotificationKind, data map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, sentNotification{To: to, Kind: kind, Data: data})
	return nil
}

func (n *recordingNotifier) last() (sentNotification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.sent) == 0 {
		return sentNotification{}, false
	}
	return n.sent[len(n.sent)-1], true
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// recordingSink captures activity events.
type recordingSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// plainHasher marks secrets with a prefix instead of hashing them, standing in
// for an alternative SecretHasher scheme.
type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) {
	return "plain:" + secret, nil
}

func (plainHasher) Verify(secret, hash string) bool {
	return hash == "plain:"+secret
}

var _ SecretHasher = plainHasher{}

// fakeClock is a mutable time source shared across the service, the issuer,
// and the token store in a test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
