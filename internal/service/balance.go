package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// upsertIncrement moves the identity's balance by delta. kind selects the
// lifetime counter: earn adds delta to total_earned, redeem adds -delta to
// total_redeemed. The first write creates the row; losing the creation race
// falls back to an increment of the winner's row. Must run inside the
// transaction that appended the matching ledger entry.
func upsertIncrement(ctx context.Context, q repository.Querier, id domain.Identity, delta int64, kind string, at time.Time) error {
	var earned, redeemed int64
	switch kind {
	case domain.BalanceKindEarn:
		earned = delta
	case domain.BalanceKindRedeem:
		redeemed = -delta
	default:
		return fmt.Errorf("unknown balance kind %q", kind)
	}
	var lastEarned pgtype.Timestamptz
	if kind == domain.BalanceKindEarn && delta > 0 {
		lastEarned = repository.ToTimestamptz(at)
	}
	keys := customerKeys(id)

	increment := func(row repository.LoyaltyBalance) error {
		rows, err := q.IncrementBalance(ctx, repository.IncrementBalanceParams{
			ID:            row.ID,
			Points:        delta,
			TotalEarned:   earned,
			TotalRedeemed: redeemed,
			LastEarnedAt:  lastEarned,
		})
		if err != nil {
			return fmt.Errorf("failed to increment balance: %w", err)
		}
		return requireExactlyOne(rows, "increment balance")
	}

	row, err := q.GetBalanceForUpdate(ctx, keys)
	if err == nil {
		return increment(row)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to load balance: %w", err)
	}

	_, err = q.InsertBalance(ctx, repository.InsertBalanceParams{
		LegacyCustomerID: id.LegacyID,
		ExternalUserID:   id.ExternalID,
		Points:           delta,
		TotalEarned:      earned,
		TotalRedeemed:    redeemed,
		LastEarnedAt:     lastEarned,
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) && !repository.IsUniqueViolation(err) {
		return fmt.Errorf("failed to create balance: %w", err)
	}

	row, err = q.GetBalanceForUpdate(ctx, keys)
	if err != nil {
		return fmt.Errorf("failed to load balance after concurrent create: %w", err)
	}
	return increment(row)
}

// debitBalance subtracts points for a redemption. The guard lives in the
// UPDATE, so a balance that cannot cover the debit is never written.
func debitBalance(ctx context.Context, q repository.Querier, id domain.Identity, points int64) error {
	row, err := q.GetBalanceForUpdate(ctx, customerKeys(id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrInsufficientPoints
		}
		return fmt.Errorf("failed to load balance: %w", err)
	}
	rows, err := q.DebitBalance(ctx, repository.DebitBalanceParams{ID: row.ID, Points: points})
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	if rows == 0 {
		return models.ErrInsufficientPoints
	}
	return requireExactlyOne(rows, "debit balance")
}

func readBalance(ctx context.Context, q repository.Querier, id domain.Identity) (models.Balance, error) {
	rows, err := q.ListBalancesForCustomer(ctx, customerKeys(id))
	if err != nil {
		return models.Balance{}, fmt.Errorf("failed to load balance: %w", err)
	}
	if len(rows) == 0 {
		return toBalanceModel(id, nil), nil
	}
	return toBalanceModel(id, &rows[0]), nil
}
