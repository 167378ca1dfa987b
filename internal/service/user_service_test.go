package service

import (
	"context"
	"testing"

	"github.com/options-simulator/internal/repository"
	"github.com/options-simulator/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUserService(t *testing.T) (*UserService, *repository.Repositories) {
	t.Helper()
	repos := repository.New(testutil.NewDB(t))
	svc := NewUserService(repos, NewLedger(nil), decimal.NewFromInt(1000), decimal.NewFromInt(5000), zap.NewNop())
	return svc, repos
}

func TestRegisterFundsStartingBalance(t *testing.T) {
	svc, repos := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, &RegisterRequest{Username: " trader ", Email: "Trader@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "trader", user.Username)
	assert.Equal(t, "trader@example.com", user.Email)
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(1000)))

	records, err := repos.Balances.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Initial balance", records[0].Description)

	_, err = svc.Register(ctx, &RegisterRequest{Username: "trader", Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = svc.Register(ctx, &RegisterRequest{Username: "other", Email: "trader@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestDeposit(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, &RegisterRequest{Username: "saver", Email: "saver@example.com"})
	require.NoError(t, err)

	record, err := svc.Deposit(ctx, user.ID, decimal.NewFromInt(250))
	require.NoError(t, err)
	assert.True(t, record.BalanceAfter.Equal(decimal.NewFromInt(1250)))
	assert.Equal(t, "Deposit", record.Description)

	_, err = svc.Deposit(ctx, user.ID, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Deposit(ctx, user.ID, decimal.NewFromInt(5001))
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Deposit(ctx, 999, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrUserNotFound)

	history, total, err := svc.GetBalanceHistory(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, history, 2)
	assert.Equal(t, "Deposit", history[0].Description, "newest first")
}
