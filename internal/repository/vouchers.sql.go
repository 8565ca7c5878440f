package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const voucherColumns = `id, legacy_customer_id, external_user_id, reward_id, code, discount_type, discount_value, min_order_cents, points_used, status, expires_at, order_id, redeemed_at, created_at`

func scanVoucher(row interface{ Scan(...any) error }) (Voucher, error) {
	var i Voucher
	err := row.Scan(
		&i.ID,
		&i.LegacyCustomerID,
		&i.ExternalUserID,
		&i.RewardID,
		&i.Code,
		&i.DiscountType,
		&i.DiscountValue,
		&i.MinOrderCents,
		&i.PointsUsed,
		&i.Status,
		&i.ExpiresAt,
		&i.OrderID,
		&i.RedeemedAt,
		&i.CreatedAt,
	)
	return i, err
}

func collectVouchers(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]Voucher, error) {
	var items []Voucher
	for rows.Next() {
		i, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertVoucher = `-- name: InsertVoucher :one
INSERT INTO vouchers (id, legacy_customer_id, external_user_id, reward_id, code, discount_type, discount_value, min_order_cents, points_used, status, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + voucherColumns

type InsertVoucherParams struct {
	ID               pgtype.UUID
	LegacyCustomerID *int64
	ExternalUserID   *string
	RewardID         int64
	Code             string
	DiscountType     string
	DiscountValue    int64
	MinOrderCents    int64
	PointsUsed       int64
	Status           string
	ExpiresAt        pgtype.Timestamptz
}

func (q *Queries) InsertVoucher(ctx context.Context, arg InsertVoucherParams) (Voucher, error) {
	row := q.db.QueryRow(ctx, insertVoucher,
		arg.ID,
		arg.LegacyCustomerID,
		arg.ExternalUserID,
		arg.RewardID,
		arg.Code,
		arg.DiscountType,
		arg.DiscountValue,
		arg.MinOrderCents,
		arg.PointsUsed,
		arg.Status,
		arg.ExpiresAt,
	)
	return scanVoucher(row)
}

const getVoucher = `-- name: GetVoucher :one
SELECT ` + voucherColumns + ` FROM vouchers WHERE id = $1`

func (q *Queries) GetVoucher(ctx context.Context, id pgtype.UUID) (Voucher, error) {
	return scanVoucher(q.db.QueryRow(ctx, getVoucher, id))
}

const getVoucherByCodeForUpdate = `-- name: GetVoucherByCodeForUpdate :one
SELECT ` + voucherColumns + `
FROM vouchers
WHERE code = $1
  AND (legacy_customer_id = $2::bigint OR external_user_id = $3::text)
ORDER BY created_at DESC
LIMIT 1
FOR UPDATE
`

type GetVoucherByCodeForUpdateParams struct {
	Code     string
	Customer CustomerKeys
}

func (q *Queries) GetVoucherByCodeForUpdate(ctx context.Context, arg GetVoucherByCodeForUpdateParams) (Voucher, error) {
	row := q.db.QueryRow(ctx, getVoucherByCodeForUpdate,
		arg.Code,
		arg.Customer.LegacyCustomerID,
		arg.Customer.ExternalUserID,
	)
	return scanVoucher(row)
}

const listVouchersForCustomer = `-- name: ListVouchersForCustomer :many
SELECT ` + voucherColumns + `
FROM vouchers
WHERE legacy_customer_id = $1::bigint OR external_user_id = $2::text
ORDER BY created_at DESC, id
`

func (q *Queries) ListVouchersForCustomer(ctx context.Context, arg CustomerKeys) ([]Voucher, error) {
	rows, err := q.db.Query(ctx, listVouchersForCustomer, arg.LegacyCustomerID, arg.ExternalUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVouchers(rows)
}

const listEligibleVouchers = `-- name: ListEligibleVouchers :many
SELECT ` + voucherColumns + `
FROM vouchers
WHERE (legacy_customer_id = $1::bigint OR external_user_id = $2::text)
  AND status = 'active'
  AND expires_at > $3
  AND min_order_cents <= $4
ORDER BY expires_at, id
`

type ListEligibleVouchersParams struct {
	Customer      CustomerKeys
	Now           pgtype.Timestamptz
	SubtotalCents int64
}

func (q *Queries) ListEligibleVouchers(ctx context.Context, arg ListEligibleVouchersParams) ([]Voucher, error) {
	rows, err := q.db.Query(ctx, listEligibleVouchers,
		arg.Customer.LegacyCustomerID,
		arg.Customer.ExternalUserID,
		arg.Now,
		arg.SubtotalCents,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVouchers(rows)
}

const markVoucherRedeemed = `-- name: MarkVoucherRedeemed :execrows
UPDATE vouchers
SET status = 'redeemed', order_id = $2, redeemed_at = $3
WHERE id = $1 AND status = 'active'
`

type MarkVoucherRedeemedParams struct {
	ID         pgtype.UUID
	OrderID    *int64
	RedeemedAt pgtype.Timestamptz
}

func (q *Queries) MarkVoucherRedeemed(ctx context.Context, arg MarkVoucherRedeemedParams) (int64, error) {
	result, err := q.db.Exec(ctx, markVoucherRedeemed, arg.ID, arg.OrderID, arg.RedeemedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const expireVouchers = `-- name: ExpireVouchers :execrows
UPDATE vouchers SET status = 'expired'
WHERE status = 'active' AND expires_at <= $1
`

func (q *Queries) ExpireVouchers(ctx context.Context, now pgtype.Timestamptz) (int64, error) {
	result, err := q.db.Exec(ctx, expireVouchers, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteVoucher = `-- name: DeleteVoucher :execrows
DELETE FROM vouchers WHERE id = $1
`

func (q *Queries) DeleteVoucher(ctx context.Context, id pgtype.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, deleteVoucher, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
