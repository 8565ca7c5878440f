package models

import (
	"time"

	"github.com/google/uuid"
)

type LedgerEntry struct {
	ID               uuid.UUID `json:"id"`
	LegacyCustomerID *int64    `json:"legacy_customer_id,omitempty"`
	ExternalUserID   *string   `json:"external_user_id,omitempty"`
	OrderID          *int64    `json:"order_id,omitempty"`
	Type             string    `json:"type"`
	Points           int64     `json:"points"`
	Description      string    `json:"description"`
	OrderAmount      *string   `json:"order_amount,omitempty"` // e.g. "23.50"
	Source           string    `json:"source"`
	CreatedAt        time.Time `json:"created_at"`
}

type Balance struct {
	CustomerKey   string     `json:"customer_key"`
	Points        int64      `json:"points"`
	TotalEarned   int64      `json:"total_earned"`
	TotalRedeemed int64      `json:"total_redeemed"`
	LastEarnedAt  *time.Time `json:"last_earned_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

type Voucher struct {
	ID             uuid.UUID  `json:"id"`
	RewardID       int64      `json:"reward_id"`
	Code           string     `json:"code"`
	DiscountType   string     `json:"discount_type"`
	DiscountValue  int64      `json:"discount_value"` // cents for fixed, whole percent for percentage
	MinOrderAmount string     `json:"min_order_amount"`
	PointsUsed     int64      `json:"points_used"`
	Status         string     `json:"status"`
	ExpiresAt      time.Time  `json:"expires_at"`
	OrderID        *int64     `json:"order_id,omitempty"`
	RedeemedAt     *time.Time `json:"redeemed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type ClaimRecord struct {
	ID        uuid.UUID `json:"id"`
	Day       int32     `json:"day"`
	Year      int32     `json:"year"`
	RewardID  int64     `json:"reward_id"`
	VoucherID uuid.UUID `json:"voucher_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AwardResult describes the outcome of crediting points for an order.
type AwardResult struct {
	OrderID        int64        `json:"order_id"`
	Points         int64        `json:"points"`
	AlreadyAwarded bool         `json:"already_awarded"`
	Skipped        bool         `json:"skipped"`
	Entry          *LedgerEntry `json:"entry,omitempty"`
	Bonus          *LedgerEntry `json:"bonus,omitempty"`
}

// RefundResult describes the outcome of reversing an order's points.
type RefundResult struct {
	OrderID         int64        `json:"order_id"`
	PointsReversed  int64        `json:"points_reversed"`
	AlreadyReversed bool         `json:"already_reversed"`
	NothingToRevert bool         `json:"nothing_to_revert"`
	NegativeBalance bool         `json:"negative_balance"`
	Entry           *LedgerEntry `json:"entry,omitempty"`
}

type RedemptionResult struct {
	Voucher Voucher     `json:"voucher"`
	Entry   LedgerEntry `json:"entry"`
	Balance Balance     `json:"balance"`
}

type ClaimResult struct {
	Claim   ClaimRecord `json:"claim"`
	Voucher Voucher     `json:"voucher"`
}

type RecoveredOrder struct {
	OrderID int64       `json:"order_id"`
	Award   AwardResult `json:"award"`
}

type RecoveryResult struct {
	Phone  string           `json:"phone,omitempty"`
	Orders []RecoveredOrder `json:"orders"`
}
