package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const claimColumns = `id, customer_key, legacy_customer_id, external_user_id, day, year, reward_id, voucher_id, created_at`

func scanPromoClaim(row interface{ Scan(...any) error }) (PromoClaim, error) {
	var i PromoClaim
	err := row.Scan(
		&i.ID,
		&i.CustomerKey,
		&i.LegacyCustomerID,
		&i.ExternalUserID,
		&i.Day,
		&i.Year,
		&i.RewardID,
		&i.VoucherID,
		&i.CreatedAt,
	)
	return i, err
}

const insertPromoClaim = `-- name: InsertPromoClaim :one
INSERT INTO promo_claims (id, customer_key, legacy_customer_id, external_user_id, day, year, reward_id, voucher_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (customer_key, day, year) DO NOTHING
RETURNING ` + claimColumns

type InsertPromoClaimParams struct {
	ID               pgtype.UUID
	CustomerKey      string
	LegacyCustomerID *int64
	ExternalUserID   *string
	Day              int32
	Year             int32
	RewardID         int64
	VoucherID        pgtype.UUID
}

// InsertPromoClaim returns pgx.ErrNoRows when the slot is already claimed
// under the same customer key. Claims made under a linked key are caught by
// GetPromoClaim inside the claiming transaction.
func (q *Queries) InsertPromoClaim(ctx context.Context, arg InsertPromoClaimParams) (PromoClaim, error) {
	row := q.db.QueryRow(ctx, insertPromoClaim,
		arg.ID,
		arg.CustomerKey,
		arg.LegacyCustomerID,
		arg.ExternalUserID,
		arg.Day,
		arg.Year,
		arg.RewardID,
		arg.VoucherID,
	)
	return scanPromoClaim(row)
}

const getPromoClaim = `-- name: GetPromoClaim :one
SELECT ` + claimColumns + `
FROM promo_claims
WHERE (legacy_customer_id = $1::bigint OR external_user_id = $2::text)
  AND day = $3 AND year = $4
ORDER BY created_at, id
LIMIT 1
`

// GetPromoClaimParams matches claims stored under either of the customer's
// keys, so a claim made before two keys were linked is still found.
type GetPromoClaimParams struct {
	Customer CustomerKeys
	Day      int32
	Year     int32
}

func (q *Queries) GetPromoClaim(ctx context.Context, arg GetPromoClaimParams) (PromoClaim, error) {
	return scanPromoClaim(q.db.QueryRow(ctx, getPromoClaim,
		arg.Customer.LegacyCustomerID,
		arg.Customer.ExternalUserID,
		arg.Day,
		arg.Year,
	))
}

const listPromoClaims = `-- name: ListPromoClaims :many
SELECT ` + claimColumns + `
FROM promo_claims
WHERE (legacy_customer_id = $1::bigint OR external_user_id = $2::text)
  AND year = $3
ORDER BY day, created_at
`

type ListPromoClaimsParams struct {
	Customer CustomerKeys
	Year     int32
}

func (q *Queries) ListPromoClaims(ctx context.Context, arg ListPromoClaimsParams) ([]PromoClaim, error) {
	rows, err := q.db.Query(ctx, listPromoClaims,
		arg.Customer.LegacyCustomerID,
		arg.Customer.ExternalUserID,
		arg.Year,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PromoClaim
	for rows.Next() {
		i, err := scanPromoClaim(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deletePromoClaim = `-- name: DeletePromoClaim :execrows
DELETE FROM promo_claims WHERE id = $1
`

func (q *Queries) DeletePromoClaim(ctx context.Context, id pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deletePromoClaim, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
