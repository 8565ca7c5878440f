package service

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/stretchr/testify/require"
)

func redeemVoucher(t *testing.T, env *testEnv, customer domain.Identity) models.Voucher {
	t.Helper()
	reward := env.createReward(t, repository.UpsertRewardParams{
		ID:             1,
		Name:           "$5 off",
		PointsRequired: 50,
		DiscountValue:  500,
		MinOrderCents:  1500,
	})
	env.award(t, customer, 1, 6000)
	res, err := env.redemptions.Redeem(context.Background(), customer, reward.ID)
	require.NoError(t, err)
	return res.Voucher
}

func TestListEligibleFiltersByMinimumOrder(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()
	customer := legacyIdentity(t, 1)
	voucher := redeemVoucher(t, env, customer)

	eligible, err := env.vouchers.ListEligible(ctx, customer, domain.NewMoney(1000))
	require.NoError(t, err)
	require.Empty(t, eligible)

	eligible, err = env.vouchers.ListEligible(ctx, customer, domain.NewMoney(1500))
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	require.Equal(t, voucher.Code, eligible[0].Code)

	_, err = env.vouchers.ListEligible(ctx, customer, domain.NewMoney(-1))
	require.True(t, models.IsValidation(err))
}

func TestUseVoucher(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()
	customer := legacyIdentity(t, 1)
	voucher := redeemVoucher(t, env, customer)

	_, err := env.vouchers.Use(ctx, customer, UseVoucherRequest{Code: voucher.Code, Subtotal: domain.NewMoney(1000)})
	require.ErrorIs(t, err, models.ErrBelowMinimumOrder)

	_, err = env.vouchers.Use(ctx, legacyIdentity(t, 2), UseVoucherRequest{Code: voucher.Code, Subtotal: domain.NewMoney(2000)})
	require.ErrorIs(t, err, models.ErrVoucherNotFound)

	orderID := int64(555)
	used, err := env.vouchers.Use(ctx, customer, UseVoucherRequest{Code: voucher.Code, OrderID: &orderID, Subtotal: domain.NewMoney(2000)})
	require.NoError(t, err)
	require.Equal(t, domain.VoucherStatusRedeemed, used.Status)
	require.Equal(t, &orderID, used.OrderID)
	require.NotNil(t, used.RedeemedAt)

	_, err = env.vouchers.Use(ctx, customer, UseVoucherRequest{Code: voucher.Code, Subtotal: domain.NewMoney(2000)})
	require.ErrorIs(t, err, models.ErrVoucherNotUsable)

	_, err = env.vouchers.Use(ctx, customer, UseVoucherRequest{Code: " ", Subtotal: domain.NewMoney(2000)})
	require.True(t, models.IsValidation(err))

	_, err = env.vouchers.Use(ctx, customer, UseVoucherRequest{Code: "LOY-NOPE", Subtotal: domain.NewMoney(2000)})
	require.ErrorIs(t, err, models.ErrVoucherNotFound)
}

func TestExpireDueVouchers(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()
	customer := legacyIdentity(t, 1)
	voucher := redeemVoucher(t, env, customer)

	n, err := env.vouchers.ExpireDue(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	later := testNow.Add(31 * 24 * time.Hour)
	env.vouchers.now = func() time.Time { return later }

	eligible, err := env.vouchers.ListEligible(ctx, customer, domain.NewMoney(5000))
	require.NoError(t, err)
	require.Empty(t, eligible)

	_, err = env.vouchers.Use(ctx, customer, UseVoucherRequest{Code: voucher.Code, Subtotal: domain.NewMoney(5000)})
	require.ErrorIs(t, err, models.ErrVoucherNotUsable)

	n, err = env.vouchers.ExpireDue(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	all, err := env.vouchers.ListForCustomer(ctx, customer)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, domain.VoucherStatusExpired, all[0].Status)

	// Expiry never gives points back.
	balance, err := env.ledger.Balance(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, int64(10), balance.Points)
}
