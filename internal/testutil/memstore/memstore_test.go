package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func legacy(v int64) *int64 { return &v }

func TestRunInTxRestoresStateOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(q repository.Querier) error {
		_, err := q.InsertBalance(ctx, repository.InsertBalanceParams{LegacyCustomerID: legacy(1), Points: 5})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Empty(t, s.Balances())
}

func TestFailNextFiresOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.FailNext("GetOrder", errors.New("down"))

	_, err := s.Queries().GetOrder(ctx, 1)
	require.EqualError(t, err, "down")

	_, err = s.Queries().GetOrder(ctx, 1)
	require.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestLedgerOrderUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	q := s.Queries()
	params := repository.InsertLedgerEntryParams{
		LegacyCustomerID: legacy(1),
		OrderID:          legacy(10),
		EntryType:        "earned",
		Points:           10,
	}

	_, err := q.InsertLedgerEntry(ctx, params)
	require.NoError(t, err)
	_, err = q.InsertLedgerEntry(ctx, params)
	require.ErrorIs(t, err, pgx.ErrNoRows)

	params.EntryType = "first_order"
	_, err = q.InsertLedgerEntry(ctx, params)
	require.NoError(t, err)
	require.Len(t, s.Ledger(), 2)
}

func TestBalanceIndexesToggle(t *testing.T) {
	s := New()
	ctx := context.Background()
	q := s.Queries()

	_, err := q.InsertBalance(ctx, repository.InsertBalanceParams{LegacyCustomerID: legacy(1)})
	require.NoError(t, err)
	_, err = q.InsertBalance(ctx, repository.InsertBalanceParams{LegacyCustomerID: legacy(1)})
	require.ErrorIs(t, err, pgx.ErrNoRows)

	s.DropBalanceIndexes()
	_, err = q.InsertBalance(ctx, repository.InsertBalanceParams{LegacyCustomerID: legacy(1)})
	require.NoError(t, err)
	require.Error(t, q.EnsureBalanceUniqueIndexes(ctx))

	rows := s.Balances()
	n, err := q.DeleteBalance(ctx, rows[1].ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.NoError(t, q.EnsureBalanceUniqueIndexes(ctx))
}
