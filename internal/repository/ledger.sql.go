package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const ledgerColumns = `id, legacy_customer_id, external_user_id, order_id, entry_type, points, description, order_total_cents, source, created_at`

func scanLedgerEntry(row interface{ Scan(...any) error }) (LedgerEntry, error) {
	var i LedgerEntry
	err := row.Scan(
		&i.ID,
		&i.LegacyCustomerID,
		&i.ExternalUserID,
		&i.OrderID,
		&i.EntryType,
		&i.Points,
		&i.Description,
		&i.OrderTotalCents,
		&i.Source,
		&i.CreatedAt,
	)
	return i, err
}

const insertLedgerEntry = `-- name: InsertLedgerEntry :one
INSERT INTO ledger_entries (id, legacy_customer_id, external_user_id, order_id, entry_type, points, description, order_total_cents, source, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10::timestamptz, NOW()))
ON CONFLICT DO NOTHING
RETURNING ` + ledgerColumns

type InsertLedgerEntryParams struct {
	ID               pgtype.UUID
	LegacyCustomerID *int64
	ExternalUserID   *string
	OrderID          *int64
	EntryType        string
	Points           int64
	Description      string
	OrderTotalCents  *int64
	Source           string
	CreatedAt        pgtype.Timestamptz
}

// InsertLedgerEntry returns pgx.ErrNoRows when a per-order unique index
// already holds an entry of the same type.
func (q *Queries) InsertLedgerEntry(ctx context.Context, arg InsertLedgerEntryParams) (LedgerEntry, error) {
	row := q.db.QueryRow(ctx, insertLedgerEntry,
		arg.ID,
		arg.LegacyCustomerID,
		arg.ExternalUserID,
		arg.OrderID,
		arg.EntryType,
		arg.Points,
		arg.Description,
		arg.OrderTotalCents,
		arg.Source,
		arg.CreatedAt,
	)
	return scanLedgerEntry(row)
}

const getLedgerEntryByOrder = `-- name: GetLedgerEntryByOrder :one
SELECT ` + ledgerColumns + `
FROM ledger_entries
WHERE order_id = $1
  AND entry_type = $2
  AND (legacy_customer_id = $3::bigint OR external_user_id = $4::text)
ORDER BY created_at, id
LIMIT 1
`

type GetLedgerEntryByOrderParams struct {
	OrderID   int64
	EntryType string
	Customer  CustomerKeys
}

func (q *Queries) GetLedgerEntryByOrder(ctx context.Context, arg GetLedgerEntryByOrderParams) (LedgerEntry, error) {
	row := q.db.QueryRow(ctx, getLedgerEntryByOrder,
		arg.OrderID,
		arg.EntryType,
		arg.Customer.LegacyCustomerID,
		arg.Customer.ExternalUserID,
	)
	return scanLedgerEntry(row)
}

const sumLedgerPointsByType = `-- name: SumLedgerPointsByType :one
SELECT COALESCE(SUM(points), 0)::bigint
FROM ledger_entries
WHERE (legacy_customer_id = $1::bigint OR external_user_id = $2::text)
  AND entry_type = ANY($3::text[])
`

type SumLedgerPointsByTypeParams struct {
	Customer   CustomerKeys
	EntryTypes []string
}

func (q *Queries) SumLedgerPointsByType(ctx context.Context, arg SumLedgerPointsByTypeParams) (int64, error) {
	row := q.db.QueryRow(ctx, sumLedgerPointsByType,
		arg.Customer.LegacyCustomerID,
		arg.Customer.ExternalUserID,
		arg.EntryTypes,
	)
	var total int64
	err := row.Scan(&total)
	return total, err
}

const sumLedgerPointsForOrder = `-- name: SumLedgerPointsForOrder :one
SELECT COALESCE(SUM(points), 0)::bigint
FROM ledger_entries
WHERE order_id = $1
  AND entry_type = ANY($2::text[])
`

type SumLedgerPointsForOrderParams struct {
	OrderID    int64
	EntryTypes []string
}

func (q *Queries) SumLedgerPointsForOrder(ctx context.Context, arg SumLedgerPointsForOrderParams) (int64, error) {
	row := q.db.QueryRow(ctx, sumLedgerPointsForOrder, arg.OrderID, arg.EntryTypes)
	var total int64
	err := row.Scan(&total)
	return total, err
}

const countLedgerEntriesByType = `-- name: CountLedgerEntriesByType :one
SELECT COUNT(*)
FROM ledger_entries
WHERE (legacy_customer_id = $1::bigint OR external_user_id = $2::text)
  AND entry_type = $3
`

type CountLedgerEntriesByTypeParams struct {
	Customer  CustomerKeys
	EntryType string
}

func (q *Queries) CountLedgerEntriesByType(ctx context.Context, arg CountLedgerEntriesByTypeParams) (int64, error) {
	row := q.db.QueryRow(ctx, countLedgerEntriesByType,
		arg.Customer.LegacyCustomerID,
		arg.Customer.ExternalUserID,
		arg.EntryType,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listLedgerEntries = `-- name: ListLedgerEntries :many
SELECT ` + ledgerColumns + `
FROM ledger_entries
WHERE (legacy_customer_id = $1::bigint OR external_user_id = $2::text)
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4
`

type ListLedgerEntriesParams struct {
	Customer CustomerKeys
	Limit    int32
	Offset   int32
}

func (q *Queries) ListLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) ([]LedgerEntry, error) {
	rows, err := q.db.Query(ctx, listLedgerEntries,
		arg.Customer.LegacyCustomerID,
		arg.Customer.ExternalUserID,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LedgerEntry
	for rows.Next() {
		i, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listAwardedOrderIDs = `-- name: ListAwardedOrderIDs :many
SELECT DISTINCT order_id
FROM ledger_entries
WHERE entry_type = 'earned'
  AND order_id IS NOT NULL
  AND (legacy_customer_id = $1::bigint OR external_user_id = $2::text)
ORDER BY order_id
`

func (q *Queries) ListAwardedOrderIDs(ctx context.Context, arg CustomerKeys) ([]int64, error) {
	rows, err := q.db.Query(ctx, listAwardedOrderIDs, arg.LegacyCustomerID, arg.ExternalUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	return items, rows.Err()
}

const listLoyaltyCustomers = `-- name: ListLoyaltyCustomers :many
SELECT legacy_customer_id, external_user_id FROM ledger_entries
UNION
SELECT legacy_customer_id, external_user_id FROM loyalty_balances
UNION
SELECT legacy_customer_id, external_user_id FROM orders
WHERE payment_status = 'paid'
  AND (legacy_customer_id IS NOT NULL OR external_user_id IS NOT NULL)
`

// ListLoyaltyCustomers returns every distinct key pair that has ledger
// activity, a balance row or a paid linked order. Callers resolve and
// dedupe identities.
func (q *Queries) ListLoyaltyCustomers(ctx context.Context) ([]CustomerKeys, error) {
	rows, err := q.db.Query(ctx, listLoyaltyCustomers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CustomerKeys
	for rows.Next() {
		var i CustomerKeys
		if err := rows.Scan(&i.LegacyCustomerID, &i.ExternalUserID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
