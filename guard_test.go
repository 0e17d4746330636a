package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type guardFixture struct {
	guard    *Guard
	accounts *memoryAccounts
	issuer   *TokenIssuer
	clock    *fakeClock
}

func newGuardFixture(t *testing.T) (*guardFixture, *Account) {
	t.Helper()

	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	accounts := newMemoryAccounts()
	issuer := newTestIssuer(clock)

	account := testAccount()
	account.SecretHash = "irrelevant"
	_, err := accounts.Create(context.Background(), account)
	require.NoError(t, err)

	return &guardFixture{
		guard:    NewGuard(issuer, accounts),
		accounts: accounts,
		issuer:   issuer,
		clock:    clock,
	}, account
}

func TestGuardAuthenticate(t *testing.T) {
	t.Parallel()

	f, account := newGuardFixture(t)

	access, err := f.issuer.IssueAccess(account)
	require.NoError(t, err)

	actx, err := f.guard.Authenticate(context.Background(), access)
	require.NoError(t, err)
	assert.Equal(t, account.ID, actx.AccountID)
	assert.Equal(t, account.Email, actx.Email)
	assert.Equal(t, account.Role, actx.Role)
	require.NotNil(t, actx.Claims)
	assert.Equal(t, TokenClassAccess, actx.Claims.Class)
}

func TestGuardRejectsRefreshTokens(t *testing.T) {
	t.Parallel()

	f, account := newGuardFixture(t)

	refresh, err := f.issuer.IssueRefresh(account)
	require.NoError(t, err)

	_, err = f.guard.Authenticate(context.Background(), refresh)
	assert.ErrorIs(t, err, ErrWrongTokenClass)
}

func TestGuardRejectsExpiredTokens(t *testing.T) {
	t.Parallel()

	f, account := newGuardFixture(t)

	access, err := f.issuer.IssueAccess(account)
	require.NoError(t, err)

	f.clock.Advance(DefaultAccessTokenTTL + time.Minute)

	_, err = f.guard.Authenticate(context.Background(), access)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestGuardLocksOutDeactivatedAccounts(t *testing.T) {
	t.Parallel()

	f, account := newGuardFixture(t)
	ctx := context.Background()

	access, err := f.issuer.IssueAccess(account)
	require.NoError(t, err)

	_, err = f.accounts.UpdateStatus(ctx, account.ID, AccountStatusDeactivated)
	require.NoError(t, err)

	// the token is still cryptographically valid, the liveness check rejects it
	_, err = f.guard.Authenticate(ctx, access)
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestGuardUnknownSubject(t *testing.T) {
	t.Parallel()

	f, _ := newGuardFixture(t)

	ghost := testAccount()
	access, err := f.issuer.IssueAccess(ghost)
	require.NoError(t, err)

	_, err = f.guard.Authenticate(context.Background(), access)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestGuardUsesLiveRole(t *testing.T) {
	t.Parallel()

	f, account := newGuardFixture(t)
	ctx := context.Background()

	access, err := f.issuer.IssueAccess(account)
	require.NoError(t, err)

	_, err = f.accounts.UpdateRole(ctx, account.ID, RoleAdmin)
	require.NoError(t, err)

	actx, err := f.guard.Authenticate(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, actx.Role)
	assert.Equal(t, RoleStudent, actx.Claims.Role)
}

func TestGuardRequireRole(t *testing.T) {
	t.Parallel()

	f, _ := newGuardFixture(t)

	cases := []struct {
		role    Role
		minRole Role
		allowed bool
	}{
		{RoleStudent, RoleStudent, true},
		{RoleStudent, RoleTeacher, false},
		{RoleStudent, RoleAdmin, false},
		{RoleTeacher, RoleStudent, true},
		{RoleTeacher, RoleTeacher, true},
		{RoleTeacher, RoleAdmin, false},
		{RoleAdmin, RoleStudent, true},
		{RoleAdmin, RoleAdmin, true},
	}

	for _, tc := range cases {
		err := f.guard.RequireRole(&AccountContext{Role: tc.role}, tc.minRole)
		if tc.allowed {
			assert.NoError(t, err, "%s >= %s", tc.role, tc.minRole)
		} else {
			assert.ErrorIs(t, err, ErrForbidden, "%s >= %s", tc.role, tc.minRole)
		}
	}

	assert.ErrorIs(t, f.guard.RequireRole(nil, RoleStudent), ErrForbidden)
}

func TestGuardRequireAnyRole(t *testing.T) {
	t.Parallel()

	f, _ := newGuardFixture(t)

	assert.NoError(t, f.guard.RequireAnyRole(&AccountContext{Role: RoleTeacher}, RoleTeacher))
	assert.ErrorIs(t, f.guard.RequireAnyRole(&AccountContext{Role: RoleAdmin}, RoleTeacher), ErrForbidden)
	assert.ErrorIs(t, f.guard.RequireAnyRole(nil, RoleTeacher), ErrForbidden)
}

func TestAccountContextRoundTrip(t *testing.T) {
	t.Parallel()

	actx := &AccountContext{Role: RoleStudent}
	ctx := WithAccountContext(context.Background(), actx)

	got, ok := AccountContextFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, actx, got)

	_, ok = AccountContextFromContext(context.Background())
	assert.False(t, ok)
}

func TestClaimsContextRoundTrip(t *testing.T) {
	t.Parallel()

	claims := &SessionClaims{Role: RoleTeacher}
	ctx := WithClaimsContext(context.Background(), claims)

	got, ok := ClaimsFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, claims, got)
}
