package repository

import (
	"context"
)

const rewardColumns = `id, name, points_required, discount_type, discount_value, min_order_cents, validity_days, code, active`

func scanReward(row interface{ Scan(...any) error }) (Reward, error) {
	var i Reward
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.PointsRequired,
		&i.DiscountType,
		&i.DiscountValue,
		&i.MinOrderCents,
		&i.ValidityDays,
		&i.Code,
		&i.Active,
	)
	return i, err
}

const upsertReward = `-- name: UpsertReward :one
INSERT INTO rewards (id, name, points_required, discount_type, discount_value, min_order_cents, validity_days, code, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    points_required = EXCLUDED.points_required,
    discount_type = EXCLUDED.discount_type,
    discount_value = EXCLUDED.discount_value,
    min_order_cents = EXCLUDED.min_order_cents,
    validity_days = EXCLUDED.validity_days,
    code = EXCLUDED.code,
    active = EXCLUDED.active
RETURNING ` + rewardColumns

type UpsertRewardParams struct {
	ID             int64
	Name           string
	PointsRequired int64
	DiscountType   string
	DiscountValue  int64
	MinOrderCents  int64
	ValidityDays   int32
	Code           *string
	Active         bool
}

func (q *Queries) UpsertReward(ctx context.Context, arg UpsertRewardParams) (Reward, error) {
	row := q.db.QueryRow(ctx, upsertReward,
		arg.ID,
		arg.Name,
		arg.PointsRequired,
		arg.DiscountType,
		arg.DiscountValue,
		arg.MinOrderCents,
		arg.ValidityDays,
		arg.Code,
		arg.Active,
	)
	return scanReward(row)
}

const getReward = `-- name: GetReward :one
SELECT ` + rewardColumns + ` FROM rewards WHERE id = $1`

func (q *Queries) GetReward(ctx context.Context, id int64) (Reward, error) {
	return scanReward(q.db.QueryRow(ctx, getReward, id))
}

const upsertPromoSlot = `-- name: UpsertPromoSlot :one
INSERT INTO promo_slots (year, day, reward_id)
VALUES ($1, $2, $3)
ON CONFLICT (year, day) DO UPDATE SET reward_id = EXCLUDED.reward_id
RETURNING year, day, reward_id
`

type UpsertPromoSlotParams struct {
	Year     int32
	Day      int32
	RewardID int64
}

func (q *Queries) UpsertPromoSlot(ctx context.Context, arg UpsertPromoSlotParams) (PromoSlot, error) {
	row := q.db.QueryRow(ctx, upsertPromoSlot, arg.Year, arg.Day, arg.RewardID)
	var i PromoSlot
	err := row.Scan(&i.Year, &i.Day, &i.RewardID)
	return i, err
}

const getPromoSlot = `-- name: GetPromoSlot :one
SELECT year, day, reward_id FROM promo_slots WHERE year = $1 AND day = $2
`

type GetPromoSlotParams struct {
	Year int32
	Day  int32
}

func (q *Queries) GetPromoSlot(ctx context.Context, arg GetPromoSlotParams) (PromoSlot, error) {
	row := q.db.QueryRow(ctx, getPromoSlot, arg.Year, arg.Day)
	var i PromoSlot
	err := row.Scan(&i.Year, &i.Day, &i.RewardID)
	return i, err
}
