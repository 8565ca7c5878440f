package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

const balanceColumns = `id, legacy_customer_id, external_user_id, points, total_earned, total_redeemed, last_earned_at, created_at, updated_at`

func scanBalance(row interface{ Scan(...any) error }) (LoyaltyBalance, error) {
	var i LoyaltyBalance
	err := row.Scan(
		&i.ID,
		&i.LegacyCustomerID,
		&i.ExternalUserID,
		&i.Points,
		&i.TotalEarned,
		&i.TotalRedeemed,
		&i.LastEarnedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listBalancesForCustomer = `-- name: ListBalancesForCustomer :many
SELECT ` + balanceColumns + `
FROM loyalty_balances
WHERE legacy_customer_id = $1::bigint OR external_user_id = $2::text
ORDER BY created_at, id
`

func (q *Queries) ListBalancesForCustomer(ctx context.Context, arg CustomerKeys) ([]LoyaltyBalance, error) {
	rows, err := q.db.Query(ctx, listBalancesForCustomer, arg.LegacyCustomerID, arg.ExternalUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LoyaltyBalance
	for rows.Next() {
		i, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getBalanceForUpdate = `-- name: GetBalanceForUpdate :one
SELECT ` + balanceColumns + `
FROM loyalty_balances
WHERE legacy_customer_id = $1::bigint OR external_user_id = $2::text
ORDER BY created_at, id
LIMIT 1
FOR UPDATE
`

// GetBalanceForUpdate locks the earliest balance row for the customer.
func (q *Queries) GetBalanceForUpdate(ctx context.Context, arg CustomerKeys) (LoyaltyBalance, error) {
	return scanBalance(q.db.QueryRow(ctx, getBalanceForUpdate, arg.LegacyCustomerID, arg.ExternalUserID))
}

const insertBalance = `-- name: InsertBalance :one
INSERT INTO loyalty_balances (legacy_customer_id, external_user_id, points, total_earned, total_redeemed, last_earned_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT DO NOTHING
RETURNING ` + balanceColumns

type InsertBalanceParams struct {
	LegacyCustomerID *int64
	ExternalUserID   *string
	Points           int64
	TotalEarned      int64
	TotalRedeemed    int64
	LastEarnedAt     pgtype.Timestamptz
}

// InsertBalance returns pgx.ErrNoRows when a concurrent writer created the
// row first.
func (q *Queries) InsertBalance(ctx context.Context, arg InsertBalanceParams) (LoyaltyBalance, error) {
	row := q.db.QueryRow(ctx, insertBalance,
		arg.LegacyCustomerID,
		arg.ExternalUserID,
		arg.Points,
		arg.TotalEarned,
		arg.TotalRedeemed,
		arg.LastEarnedAt,
	)
	return scanBalance(row)
}

const incrementBalance = `-- name: IncrementBalance :execrows
UPDATE loyalty_balances
SET points = points + $2,
    total_earned = total_earned + $3,
    total_redeemed = total_redeemed + $4,
    last_earned_at = COALESCE($5::timestamptz, last_earned_at),
    updated_at = NOW()
WHERE id = $1
`

type IncrementBalanceParams struct {
	ID            int64
	Points        int64
	TotalEarned   int64
	TotalRedeemed int64
	LastEarnedAt  pgtype.Timestamptz
}

func (q *Queries) IncrementBalance(ctx context.Context, arg IncrementBalanceParams) (int64, error) {
	result, err := q.db.Exec(ctx, incrementBalance,
		arg.ID,
		arg.Points,
		arg.TotalEarned,
		arg.TotalRedeemed,
		arg.LastEarnedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const debitBalance = `-- name: DebitBalance :execrows
UPDATE loyalty_balances
SET points = points - $2,
    total_redeemed = total_redeemed + $2,
    updated_at = NOW()
WHERE id = $1 AND points >= $2
`

type DebitBalanceParams struct {
	ID     int64
	Points int64
}

// DebitBalance affects zero rows when the balance cannot cover Points.
func (q *Queries) DebitBalance(ctx context.Context, arg DebitBalanceParams) (int64, error) {
	result, err := q.db.Exec(ctx, debitBalance, arg.ID, arg.Points)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const overwriteBalance = `-- name: OverwriteBalance :execrows
UPDATE loyalty_balances
SET legacy_customer_id = COALESCE($2::bigint, legacy_customer_id),
    external_user_id = COALESCE($3::text, external_user_id),
    points = $4,
    total_earned = $5,
    total_redeemed = $6,
    last_earned_at = $7,
    updated_at = NOW()
WHERE id = $1
`

type OverwriteBalanceParams struct {
	ID               int64
	LegacyCustomerID *int64
	ExternalUserID   *string
	Points           int64
	TotalEarned      int64
	TotalRedeemed    int64
	LastEarnedAt     pgtype.Timestamptz
}

func (q *Queries) OverwriteBalance(ctx context.Context, arg OverwriteBalanceParams) (int64, error) {
	result, err := q.db.Exec(ctx, overwriteBalance,
		arg.ID,
		arg.LegacyCustomerID,
		arg.ExternalUserID,
		arg.Points,
		arg.TotalEarned,
		arg.TotalRedeemed,
		arg.LastEarnedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteBalance = `-- name: DeleteBalance :execrows
DELETE FROM loyalty_balances WHERE id = $1
`

func (q *Queries) DeleteBalance(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.Exec(ctx, deleteBalance, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

var ensureBalanceUniqueIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_loyalty_balances_legacy
    ON loyalty_balances (legacy_customer_id) WHERE legacy_customer_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_loyalty_balances_external
    ON loyalty_balances (external_user_id) WHERE external_user_id IS NOT NULL`,
}

// EnsureBalanceUniqueIndexes recreates the one-row-per-key indexes. It fails
// while duplicate rows remain.
func (q *Queries) EnsureBalanceUniqueIndexes(ctx context.Context) error {
	for _, stmt := range ensureBalanceUniqueIndexes {
		if _, err := q.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure balance index: %w", err)
		}
	}
	return nil
}
