package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachineDeactivate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	accounts := newMemoryAccounts()
	sink := &recordingSink{}

	account := testAccount()
	_, err := accounts.Create(ctx, account)
	require.NoError(t, err)

	sm := NewAccountStateMachine(accounts,
		WithStateMachineClock(clock.Now),
		WithStateMachineActivitySink(sink),
	)

	actor := ActorRef{ID: "ops", Type: "admin"}
	updated, err := sm.Transition(ctx, actor, account, AccountStatusDeactivated,
		WithTransitionReason("tos violation"),
	)
	require.NoError(t, err)
	assert.Equal(t, AccountStatusDeactivated, updated.Status)
	require.NotNil(t, updated.DeactivatedAt)
	assert.Equal(t, clock.Now(), *updated.DeactivatedAt)

	require.Len(t, sink.events, 1)
	event := sink.events[0]
	assert.Equal(t, ActivityEventStatusChanged, event.EventType)
	assert.Equal(t, AccountStatusActive, event.FromStatus)
	assert.Equal(t, AccountStatusDeactivated, event.ToStatus)
	assert.Equal(t, "tos violation", event.Metadata["reason"])
	assert.Equal(t, actor, event.Actor)
}

func TestStateMachineTerminalState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	accounts := newMemoryAccounts()

	account := testAccount()
	account.Status = AccountStatusDeactivated
	_, err := accounts.Create(ctx, account)
	require.NoError(t, err)

	sm := NewAccountStateMachine(accounts)

	_, err = sm.Transition(ctx, ActorRef{Type: "system"}, account, AccountStatusActive)
	assert.ErrorIs(t, err, ErrTerminalState)
}

func TestStateMachineSameStatusNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	accounts := newMemoryAccounts()
	sink := &recordingSink{}

	account := testAccount()
	_, err := accounts.Create(ctx, account)
	require.NoError(t, err)

	sm := NewAccountStateMachine(accounts, WithStateMachineActivitySink(sink))

	updated, err := sm.Transition(ctx, ActorRef{Type: "system"}, account, AccountStatusActive)
	require.NoError(t, err)
	assert.Equal(t, AccountStatusActive, updated.Status)
	assert.Empty(t, sink.events)
}

func TestStateMachineInvalidInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sm := NewAccountStateMachine(newMemoryAccounts())

	_, err := sm.Transition(ctx, ActorRef{}, nil, AccountStatusDeactivated)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	account := testAccount()
	_, err = sm.Transition(ctx, ActorRef{}, account, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = sm.Transition(ctx, ActorRef{}, account, "archived")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStateMachineExplicitDeactivationTime(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	accounts := newMemoryAccounts()

	account := testAccount()
	_, err := accounts.Create(ctx, account)
	require.NoError(t, err)

	sm := NewAccountStateMachine(accounts)

	at := time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)
	updated, err := sm.Transition(ctx, ActorRef{Type: "system"}, account, AccountStatusDeactivated,
		WithDeactivationTime(at),
	)
	require.NoError(t, err)
	require.NotNil(t, updated.DeactivatedAt)
	assert.Equal(t, at, *updated.DeactivatedAt)
}

func TestStateMachineCurrentStatus(t *testing.T) {
	t.Parallel()

	sm := NewAccountStateMachine(newMemoryAccounts())

	assert.Equal(t, AccountStatus(""), sm.CurrentStatus(nil))
	assert.Equal(t, AccountStatusActive, sm.CurrentStatus(&Account{}))
	assert.Equal(t, AccountStatusDeactivated, sm.CurrentStatus(&Account{Status: AccountStatusDeactivated}))
}
