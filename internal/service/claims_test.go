package service

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// setupPromoDay assigns a shared-code reward to day 3, the day open at testNow.
func setupPromoDay(t *testing.T, env *testEnv) repository.Reward {
	t.Helper()
	reward := env.createReward(t, repository.UpsertRewardParams{
		ID:            30,
		Name:          "Free cookie",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: 250,
		Code:          strPtr("XMAS3"),
	})
	_, err := env.store.Queries().UpsertPromoSlot(context.Background(), repository.UpsertPromoSlotParams{
		Year:     2026,
		Day:      3,
		RewardID: reward.ID,
	})
	require.NoError(t, err)
	return reward
}

func TestClaimIssuesVoucherExpiringEndOfDay(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()
	customer := legacyIdentity(t, 1)
	reward := setupPromoDay(t, env)

	res, err := env.claims.Claim(ctx, customer, 3)
	require.NoError(t, err)
	require.Equal(t, int32(3), res.Claim.Day)
	require.Equal(t, int32(2026), res.Claim.Year)
	require.Equal(t, reward.ID, res.Claim.RewardID)
	require.Equal(t, res.Voucher.ID, res.Claim.VoucherID)
	require.Equal(t, "XMAS3", res.Voucher.Code)
	require.Zero(t, res.Voucher.PointsUsed)

	endOfDay := time.Date(2026, 12, 4, 4, 59, 59, 0, time.UTC)
	require.True(t, endOfDay.Equal(res.Voucher.ExpiresAt), "expires at %s", res.Voucher.ExpiresAt)

	// Claims never touch points.
	require.Empty(t, env.store.Ledger())
	require.Empty(t, env.store.Balances())
}

func TestClaimTwiceFails(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()
	customer := legacyIdentity(t, 1)
	setupPromoDay(t, env)

	_, err := env.claims.Claim(ctx, customer, 3)
	require.NoError(t, err)

	_, err = env.claims.Claim(ctx, customer, 3)
	require.ErrorIs(t, err, models.ErrSlotAlreadyClaimed)

	require.Len(t, env.store.Vouchers(), 1)
	require.Len(t, env.store.Claims(), 1)
}

func TestClaimLosingInsertRaceRollsBackVoucher(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()
	customer := legacyIdentity(t, 1)
	setupPromoDay(t, env)

	_, err := env.claims.Claim(ctx, customer, 3)
	require.NoError(t, err)

	// The existing-claim check misses, as it would for a request racing the
	// first one on another key.
	env.store.FailNext("GetPromoClaim", pgx.ErrNoRows)
	_, err = env.claims.Claim(ctx, customer, 3)
	require.ErrorIs(t, err, models.ErrSlotAlreadyClaimed)

	require.Len(t, env.store.Vouchers(), 1)
	require.Len(t, env.store.Claims(), 1)
}

func TestClaimAfterLinkingKeysStillOncePerDay(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()
	setupPromoDay(t, env)

	before, err := env.resolver.Resolve(ctx, Caller{ExternalUserID: strPtr("abc")})
	require.NoError(t, err)
	_, err = env.claims.Claim(ctx, before, 3)
	require.NoError(t, err)

	_, err = env.store.Queries().UpsertCustomerProfile(ctx, repository.UpsertCustomerProfileParams{
		ExternalUserID:   "abc",
		LegacyCustomerID: int64Ptr(7),
	})
	require.NoError(t, err)

	for _, caller := range []Caller{
		{ExternalUserID: strPtr("abc")},
		{LegacyCustomerID: int64Ptr(7)},
	} {
		linked, err := env.resolver.Resolve(ctx, caller)
		require.NoError(t, err)
		require.Equal(t, "legacy:7", linked.Canonical.String())

		claims, err := env.claims.ListClaims(ctx, linked, 0)
		require.NoError(t, err)
		require.Len(t, claims, 1)

		_, err = env.claims.Claim(ctx, linked, 3)
		require.ErrorIs(t, err, models.ErrSlotAlreadyClaimed)
	}
	require.Len(t, env.store.Vouchers(), 1)
	require.Len(t, env.store.Claims(), 1)

	linked, err := env.resolver.Resolve(ctx, Caller{LegacyCustomerID: int64Ptr(7)})
	require.NoError(t, err)
	require.NoError(t, env.claims.ResetClaim(ctx, linked, 3, 0))
	require.Empty(t, env.store.Claims())
}

func TestClaimSharedCodeAcrossCustomers(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()
	first := legacyIdentity(t, 1)
	second := externalIdentity(t, "user_2")
	setupPromoDay(t, env)

	_, err := env.claims.Claim(ctx, first, 3)
	require.NoError(t, err)
	_, err = env.claims.Claim(ctx, second, 3)
	require.NoError(t, err)
	require.Len(t, env.store.Vouchers(), 2)

	used, err := env.vouchers.Use(ctx, second, UseVoucherRequest{Code: "XMAS3", Subtotal: domain.NewMoney(1000)})
	require.NoError(t, err)
	require.Equal(t, domain.VoucherStatusRedeemed, used.Status)

	firstVouchers, err := env.vouchers.ListForCustomer(ctx, first)
	require.NoError(t, err)
	require.Len(t, firstVouchers, 1)
	require.Equal(t, domain.VoucherStatusActive, firstVouchers[0].Status)
}

func TestClaimRejectsClosedOrUnconfiguredDays(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()
	customer := legacyIdentity(t, 1)

	_, err := env.claims.Claim(ctx, customer, 0)
	require.ErrorIs(t, err, models.ErrInvalidClaimDay)
	_, err = env.claims.Claim(ctx, customer, 26)
	require.ErrorIs(t, err, models.ErrInvalidClaimDay)

	_, err = env.claims.Claim(ctx, customer, 4)
	require.ErrorIs(t, err, models.ErrClaimNotOpen)

	_, err = env.claims.Claim(ctx, customer, 3)
	require.ErrorIs(t, err, models.ErrSlotNotConfigured)

	// Just before midnight in New York it is still day 3.
	setupPromoDay(t, env)
	env.claims.now = func() time.Time { return time.Date(2026, 12, 4, 4, 30, 0, 0, time.UTC) }
	_, err = env.claims.Claim(ctx, customer, 3)
	require.NoError(t, err)
}

func TestListAndResetClaims(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()
	customer := legacyIdentity(t, 1)
	setupPromoDay(t, env)

	_, err := env.claims.Claim(ctx, customer, 3)
	require.NoError(t, err)

	claims, err := env.claims.ListClaims(ctx, customer, 0)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	require.Equal(t, int32(3), claims[0].Day)

	none, err := env.claims.ListClaims(ctx, customer, 2025)
	require.NoError(t, err)
	require.Empty(t, none)

	require.NoError(t, env.claims.ResetClaim(ctx, customer, 3, 0))
	require.Empty(t, env.store.Claims())
	require.Empty(t, env.store.Vouchers())

	require.ErrorIs(t, env.claims.ResetClaim(ctx, customer, 3, 0), models.ErrClaimNotFound)

	_, err = env.claims.Claim(ctx, customer, 3)
	require.NoError(t, err)
}
