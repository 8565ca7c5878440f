package service

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/ayo6706/restaurant-loyalty/internal/testutil/memstore"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 12, 3, 15, 0, 0, 0, time.UTC)

type testEnv struct {
	store          *memstore.Store
	resolver       *IdentityResolver
	ledger         *LedgerService
	awards         *AwardService
	redemptions    *RedemptionService
	vouchers       *VoucherService
	claims         *ClaimService
	refunds        *RefundService
	recovery       *RecoveryService
	reconciliation *ReconciliationService
}

func newTestEnv(t *testing.T, bonuses BonusConfig) *testEnv {
	t.Helper()

	store := memstore.New()
	store.Now = func() time.Time { return testNow }
	clock := func() time.Time { return testNow }

	campaign, err := domain.NewCampaign("2026-12-01", 25, "America/New_York")
	require.NoError(t, err)

	resolver := NewIdentityResolver(store)
	env := &testEnv{
		store:          store,
		resolver:       resolver,
		ledger:         NewLedgerService(store),
		awards:         NewAwardService(store, resolver, bonuses),
		redemptions:    NewRedemptionService(store),
		vouchers:       NewVoucherService(store),
		claims:         NewClaimService(store, campaign),
		refunds:        NewRefundService(store, resolver),
		reconciliation: NewReconciliationService(store, resolver),
	}
	env.recovery = NewRecoveryService(store, env.awards, DefaultRecoveryWindow)

	env.ledger.now = clock
	env.awards.now = clock
	env.redemptions.now = clock
	env.vouchers.now = clock
	env.claims.now = clock
	env.refunds.now = clock
	env.recovery.now = clock
	env.reconciliation.now = clock
	return env
}

func legacyIdentity(t *testing.T, id int64) domain.Identity {
	t.Helper()
	identity, err := domain.IdentityFromKey(domain.LegacyKey(id))
	require.NoError(t, err)
	return identity
}

func externalIdentity(t *testing.T, id string) domain.Identity {
	t.Helper()
	identity, err := domain.IdentityFromKey(domain.ExternalKey(id))
	require.NoError(t, err)
	return identity
}

func strPtr(v string) *string {
	return &v
}

func (e *testEnv) createOrder(t *testing.T, params repository.CreateOrderParams) repository.Order {
	t.Helper()
	if params.PaymentStatus == "" {
		params.PaymentStatus = domain.PaymentStatusPaid
	}
	order, err := e.store.Queries().CreateOrder(context.Background(), params)
	require.NoError(t, err)
	return order
}

func (e *testEnv) createReward(t *testing.T, params repository.UpsertRewardParams) repository.Reward {
	t.Helper()
	if params.DiscountType == "" {
		params.DiscountType = domain.DiscountTypeFixed
	}
	params.Active = true
	reward, err := e.store.Queries().UpsertReward(context.Background(), params)
	require.NoError(t, err)
	return reward
}

func (e *testEnv) award(t *testing.T, id domain.Identity, orderID, cents int64) {
	t.Helper()
	_, err := e.awards.AwardOrder(context.Background(), id, OrderPaid{
		OrderID:          orderID,
		Total:            domain.NewMoney(cents),
		PaymentSucceeded: true,
	})
	require.NoError(t, err)
}

// requireConsistent checks the materialized balance against the ledger:
// points == total_earned - total_redeemed == signed sum of entries.
func (e *testEnv) requireConsistent(t *testing.T, id domain.Identity) {
	t.Helper()
	ctx := context.Background()

	balance, err := e.ledger.Balance(ctx, id)
	require.NoError(t, err)
	require.Equal(t, balance.TotalEarned-balance.TotalRedeemed, balance.Points)

	earned, err := e.ledger.SumByType(ctx, id, domain.EarningEntryTypes...)
	require.NoError(t, err)
	redeemed, err := e.ledger.SumByType(ctx, id, domain.RedeemingEntryTypes...)
	require.NoError(t, err)
	require.Equal(t, earned, balance.TotalEarned)
	require.Equal(t, -redeemed, balance.TotalRedeemed)
	require.Equal(t, earned+redeemed, balance.Points)

	rows, err := e.store.Queries().ListBalancesForCustomer(ctx, customerKeys(id))
	require.NoError(t, err)
	require.LessOrEqual(t, len(rows), 1)
}
