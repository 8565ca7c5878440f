package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, legacy_customer_id, external_user_id, phone, total_cents, payment_status, created_at, paid_at, refunded_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.LegacyCustomerID,
		&i.ExternalUserID,
		&i.Phone,
		&i.TotalCents,
		&i.PaymentStatus,
		&i.CreatedAt,
		&i.PaidAt,
		&i.RefundedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (id, legacy_customer_id, external_user_id, phone, total_cents, payment_status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::timestamptz, NOW()))
RETURNING ` + orderColumns

type CreateOrderParams struct {
	ID               int64
	LegacyCustomerID *int64
	ExternalUserID   *string
	Phone            *string
	TotalCents       int64
	PaymentStatus    string
	CreatedAt        pgtype.Timestamptz
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.ID,
		arg.LegacyCustomerID,
		arg.ExternalUserID,
		arg.Phone,
		arg.TotalCents,
		arg.PaymentStatus,
		arg.CreatedAt,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id int64) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const updateOrderPaymentStatus = `-- name: UpdateOrderPaymentStatus :execrows
UPDATE orders
SET payment_status = $2::text,
    paid_at = CASE WHEN $2::text = 'paid' THEN COALESCE(paid_at, NOW()) ELSE paid_at END,
    refunded_at = CASE WHEN $2::text = 'refunded' THEN COALESCE(refunded_at, NOW()) ELSE refunded_at END
WHERE id = $1
  AND NOT ($2::text = 'paid' AND payment_status = 'refunded')
`

type UpdateOrderPaymentStatusParams struct {
	ID            int64
	PaymentStatus string
}

// UpdateOrderPaymentStatus affects no row when the order is missing or when a
// paid transition would overwrite a refund.
func (q *Queries) UpdateOrderPaymentStatus(ctx context.Context, arg UpdateOrderPaymentStatusParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateOrderPaymentStatus, arg.ID, arg.PaymentStatus)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listPaidOrdersForCustomer = `-- name: ListPaidOrdersForCustomer :many
SELECT ` + orderColumns + `
FROM orders
WHERE payment_status = 'paid'
  AND (legacy_customer_id = $1::bigint OR external_user_id = $2::text)
ORDER BY created_at, id
`

func (q *Queries) ListPaidOrdersForCustomer(ctx context.Context, arg CustomerKeys) ([]Order, error) {
	rows, err := q.db.Query(ctx, listPaidOrdersForCustomer, arg.LegacyCustomerID, arg.ExternalUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listOrphanOrdersByPhone = `-- name: ListOrphanOrdersByPhone :many
SELECT ` + orderColumns + `
FROM orders
WHERE legacy_customer_id IS NULL
  AND external_user_id IS NULL
  AND phone IS NOT NULL
  AND regexp_replace(phone, '\D', '', 'g') = $1
  AND created_at >= $2
ORDER BY created_at, id
`

// ListOrphanOrdersByPhoneParams matches on digits only; Phone must already
// be normalized.
type ListOrphanOrdersByPhoneParams struct {
	Phone        string
	CreatedAfter pgtype.Timestamptz
}

func (q *Queries) ListOrphanOrdersByPhone(ctx context.Context, arg ListOrphanOrdersByPhoneParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrphanOrdersByPhone, arg.Phone, arg.CreatedAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const attachOrderCustomer = `-- name: AttachOrderCustomer :execrows
UPDATE orders
SET legacy_customer_id = $2, external_user_id = $3
WHERE id = $1
  AND legacy_customer_id IS NULL
  AND external_user_id IS NULL
`

type AttachOrderCustomerParams struct {
	ID               int64
	LegacyCustomerID *int64
	ExternalUserID   *string
}

func (q *Queries) AttachOrderCustomer(ctx context.Context, arg AttachOrderCustomerParams) (int64, error) {
	result, err := q.db.Exec(ctx, attachOrderCustomer, arg.ID, arg.LegacyCustomerID, arg.ExternalUserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
