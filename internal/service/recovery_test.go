package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"555-0100":        "5550100",
		"(555) 0100":      "5550100",
		"+1 555.010.0000": "15550100000",
		"":                "",
		"n/a":             "",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestRecoverAwardsOrphanOrdersOnce(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()

	_, err := env.store.Queries().CreateLegacyCustomer(ctx, repository.CreateLegacyCustomerParams{
		ID:    42,
		Phone: strPtr("555-0100"),
	})
	require.NoError(t, err)
	customer := legacyIdentity(t, 42)

	daysAgo := func(d int) pgtype.Timestamptz {
		return repository.ToTimestamptz(testNow.Add(-time.Duration(d) * 24 * time.Hour))
	}
	env.createOrder(t, repository.CreateOrderParams{ID: 501, Phone: strPtr("555-0100"), TotalCents: 2000, CreatedAt: daysAgo(2)})
	env.createOrder(t, repository.CreateOrderParams{ID: 502, Phone: strPtr("(555) 0100"), TotalCents: 3550, CreatedAt: daysAgo(5)})
	env.createOrder(t, repository.CreateOrderParams{ID: 503, Phone: strPtr("555-0100"), TotalCents: 9900, CreatedAt: daysAgo(45)})
	env.createOrder(t, repository.CreateOrderParams{ID: 504, Phone: strPtr("555-0199"), TotalCents: 1000, CreatedAt: daysAgo(1)})

	res, err := env.recovery.Recover(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, "555-0100", res.Phone)
	require.Len(t, res.Orders, 2)
	require.Equal(t, int64(502), res.Orders[0].OrderID)
	require.Equal(t, int64(501), res.Orders[1].OrderID)
	for _, o := range res.Orders {
		require.Equal(t, domain.SourceOrphanRecovery, o.Award.Entry.Source)
	}

	linked, err := env.store.Queries().GetOrder(ctx, 501)
	require.NoError(t, err)
	require.Equal(t, int64(42), *linked.LegacyCustomerID)

	outside, err := env.store.Queries().GetOrder(ctx, 503)
	require.NoError(t, err)
	require.Nil(t, outside.LegacyCustomerID)

	again, err := env.recovery.Recover(ctx, customer)
	require.NoError(t, err)
	require.Empty(t, again.Orders)

	balance, err := env.ledger.Balance(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, int64(20+35), balance.Points)
	require.Len(t, env.store.Ledger(), 2)
	env.requireConsistent(t, customer)
}

func TestRecoverRetriesAfterFailedAward(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()

	_, err := env.store.Queries().CreateLegacyCustomer(ctx, repository.CreateLegacyCustomerParams{
		ID:    42,
		Phone: strPtr("555-0100"),
	})
	require.NoError(t, err)
	customer := legacyIdentity(t, 42)
	env.createOrder(t, repository.CreateOrderParams{
		ID:         500,
		Phone:      strPtr("555-0100"),
		TotalCents: 1850,
		CreatedAt:  repository.ToTimestamptz(testNow.Add(-time.Hour)),
	})

	env.store.FailNext("InsertLedgerEntry", errors.New("connection reset"))
	_, err = env.recovery.Recover(ctx, customer)
	require.Error(t, err)

	// The attach rolled back with the award, so the order is still an orphan.
	order, err := env.store.Queries().GetOrder(ctx, 500)
	require.NoError(t, err)
	require.Nil(t, order.LegacyCustomerID)
	require.Empty(t, env.store.Ledger())

	res, err := env.recovery.Recover(ctx, customer)
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	require.Equal(t, int64(18), res.Orders[0].Award.Points)

	balance, err := env.ledger.Balance(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, int64(18), balance.Points)
	require.Len(t, env.store.Ledger(), 1)
	env.requireConsistent(t, customer)
}

func TestRecoverPrefersProfilePhone(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	ctx := context.Background()

	_, err := env.store.Queries().UpsertCustomerProfile(ctx, repository.UpsertCustomerProfileParams{
		ExternalUserID: "abc",
		Phone:          strPtr("555 777 1234"),
	})
	require.NoError(t, err)
	env.createOrder(t, repository.CreateOrderParams{ID: 601, Phone: strPtr("555-777-1234"), TotalCents: 1250})

	customer, err := env.resolver.Resolve(ctx, Caller{ExternalUserID: strPtr("abc")})
	require.NoError(t, err)

	res, err := env.recovery.Recover(ctx, customer)
	require.NoError(t, err)
	require.Len(t, res.Orders, 1)
	require.Equal(t, int64(12), res.Orders[0].Award.Points)

	order, err := env.store.Queries().GetOrder(ctx, 601)
	require.NoError(t, err)
	require.Equal(t, "abc", *order.ExternalUserID)
}

func TestRecoverWithoutPhoneFindsNothing(t *testing.T) {
	env := newTestEnv(t, BonusConfig{})
	env.createOrder(t, repository.CreateOrderParams{ID: 701, Phone: strPtr("555-0100"), TotalCents: 1000})

	res, err := env.recovery.Recover(context.Background(), legacyIdentity(t, 77))
	require.NoError(t, err)
	require.Empty(t, res.Orders)
	require.Empty(t, env.store.Ledger())
}
