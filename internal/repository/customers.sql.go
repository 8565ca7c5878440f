package repository

import (
	"context"
)

const createLegacyCustomer = `-- name: CreateLegacyCustomer :one
INSERT INTO legacy_customers (id, phone)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET phone = EXCLUDED.phone
RETURNING id, phone, created_at
`

type CreateLegacyCustomerParams struct {
	ID    int64
	Phone *string
}

func (q *Queries) CreateLegacyCustomer(ctx context.Context, arg CreateLegacyCustomerParams) (LegacyCustomer, error) {
	row := q.db.QueryRow(ctx, createLegacyCustomer, arg.ID, arg.Phone)
	var i LegacyCustomer
	err := row.Scan(&i.ID, &i.Phone, &i.CreatedAt)
	return i, err
}

const getLegacyCustomer = `-- name: GetLegacyCustomer :one
SELECT id, phone, created_at FROM legacy_customers WHERE id = $1
`

func (q *Queries) GetLegacyCustomer(ctx context.Context, id int64) (LegacyCustomer, error) {
	row := q.db.QueryRow(ctx, getLegacyCustomer, id)
	var i LegacyCustomer
	err := row.Scan(&i.ID, &i.Phone, &i.CreatedAt)
	return i, err
}

const upsertCustomerProfile = `-- name: UpsertCustomerProfile :one
INSERT INTO customer_profiles (external_user_id, legacy_customer_id, phone)
VALUES ($1, $2, $3)
ON CONFLICT (external_user_id) DO UPDATE SET
    legacy_customer_id = COALESCE(EXCLUDED.legacy_customer_id, customer_profiles.legacy_customer_id),
    phone = COALESCE(EXCLUDED.phone, customer_profiles.phone)
RETURNING external_user_id, legacy_customer_id, phone, created_at
`

type UpsertCustomerProfileParams struct {
	ExternalUserID   string
	LegacyCustomerID *int64
	Phone            *string
}

func (q *Queries) UpsertCustomerProfile(ctx context.Context, arg UpsertCustomerProfileParams) (CustomerProfile, error) {
	row := q.db.QueryRow(ctx, upsertCustomerProfile, arg.ExternalUserID, arg.LegacyCustomerID, arg.Phone)
	var i CustomerProfile
	err := row.Scan(&i.ExternalUserID, &i.LegacyCustomerID, &i.Phone, &i.CreatedAt)
	return i, err
}

const getCustomerProfile = `-- name: GetCustomerProfile :one
SELECT external_user_id, legacy_customer_id, phone, created_at
FROM customer_profiles
WHERE external_user_id = $1
`

func (q *Queries) GetCustomerProfile(ctx context.Context, externalUserID string) (CustomerProfile, error) {
	row := q.db.QueryRow(ctx, getCustomerProfile, externalUserID)
	var i CustomerProfile
	err := row.Scan(&i.ExternalUserID, &i.LegacyCustomerID, &i.Phone, &i.CreatedAt)
	return i, err
}

const getCustomerProfileByLegacyID = `-- name: GetCustomerProfileByLegacyID :one
SELECT external_user_id, legacy_customer_id, phone, created_at
FROM customer_profiles
WHERE legacy_customer_id = $1
`

func (q *Queries) GetCustomerProfileByLegacyID(ctx context.Context, legacyCustomerID int64) (CustomerProfile, error) {
	row := q.db.QueryRow(ctx, getCustomerProfileByLegacyID, legacyCustomerID)
	var i CustomerProfile
	err := row.Scan(&i.ExternalUserID, &i.LegacyCustomerID, &i.Phone, &i.CreatedAt)
	return i, err
}
