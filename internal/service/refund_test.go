package service

import (
	"context"
	"testing"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestRefundUnawardedOrderIsNoop(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	customer := legacyIdentity(t, 1)

	res, err := env.refunds.RefundOrder(context.Background(), customer, 4242)
	require.NoError(t, err)
	require.True(t, res.NothingToRevert)
	require.Zero(t, res.PointsReversed)
	require.Empty(t, env.store.Ledger())
	require.Empty(t, env.store.Balances())
}

func TestRefundReversesExactlyOnce(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()
	customer := legacyIdentity(t, 1)
	env.award(t, customer, 12, 1200)

	res, err := env.refunds.RefundOrder(ctx, customer, 12)
	require.NoError(t, err)
	require.Equal(t, int64(12), res.PointsReversed)
	require.NotNil(t, res.Entry)
	require.Equal(t, domain.EntryTypeRefund, res.Entry.Type)
	require.Equal(t, int64(-12), res.Entry.Points)
	require.False(t, res.NegativeBalance)

	res, err = env.refunds.RefundOrder(ctx, customer, 12)
	require.NoError(t, err)
	require.True(t, res.AlreadyReversed)
	require.Equal(t, int64(12), res.PointsReversed)

	var refunds int
	for _, e := range env.store.Ledger() {
		if e.EntryType == domain.EntryTypeRefund {
			refunds++
		}
	}
	require.Equal(t, 1, refunds)

	balance, err := env.ledger.Balance(ctx, customer)
	require.NoError(t, err)
	require.Zero(t, balance.Points)
	require.Zero(t, balance.TotalEarned)
	env.requireConsistent(t, customer)
}

func TestRefundAfterRedemptionGoesNegative(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()
	customer := legacyIdentity(t, 1)
	reward := env.createReward(t, repository.UpsertRewardParams{ID: 1, Name: "Free meal", PointsRequired: 100, DiscountValue: 1500})

	env.award(t, customer, 99, 12000)
	_, err := env.redemptions.Redeem(ctx, customer, reward.ID)
	require.NoError(t, err)

	res, err := env.refunds.RefundOrder(ctx, customer, 99)
	require.NoError(t, err)
	require.Equal(t, int64(120), res.PointsReversed)
	require.True(t, res.NegativeBalance)

	balance, err := env.ledger.Balance(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, int64(-100), balance.Points)
	require.Equal(t, int64(100), balance.TotalRedeemed)
	env.requireConsistent(t, customer)

	// A negative balance cannot redeem.
	env.award(t, customer, 100, 5000)
	_, err = env.redemptions.Redeem(ctx, customer, reward.ID)
	require.ErrorIs(t, err, models.ErrInsufficientPoints)
}

func TestRefundStoredOrder(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()
	customer := legacyIdentity(t, 3)

	env.createOrder(t, repository.CreateOrderParams{ID: 31, LegacyCustomerID: int64Ptr(3), TotalCents: 3100})
	_, err := env.awards.AwardPaidOrder(ctx, 31)
	require.NoError(t, err)

	res, err := env.refunds.RefundStoredOrder(ctx, 31)
	require.NoError(t, err)
	require.Equal(t, int64(31), res.PointsReversed)
	env.requireConsistent(t, customer)

	_, err = env.refunds.RefundStoredOrder(ctx, 404)
	require.ErrorIs(t, err, models.ErrOrderNotFound)

	env.createOrder(t, repository.CreateOrderParams{ID: 32, Phone: strPtr("555-0100"), TotalCents: 1000})
	res, err = env.refunds.RefundStoredOrder(ctx, 32)
	require.NoError(t, err)
	require.True(t, res.NothingToRevert)
}
