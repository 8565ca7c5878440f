package repository

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type LegacyCustomer struct {
	ID        int64
	Phone     *string
	CreatedAt pgtype.Timestamptz
}

type CustomerProfile struct {
	ExternalUserID   string
	LegacyCustomerID *int64
	Phone            *string
	CreatedAt        pgtype.Timestamptz
}

type Order struct {
	ID               int64
	LegacyCustomerID *int64
	ExternalUserID   *string
	Phone            *string
	TotalCents       int64
	PaymentStatus    string
	CreatedAt        pgtype.Timestamptz
	PaidAt           pgtype.Timestamptz
	RefundedAt       pgtype.Timestamptz
}

type LedgerEntry struct {
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

type LoyaltyBalance struct {
	ID               int64
	LegacyCustomerID *int64
	ExternalUserID   *string
	Points           int64
	TotalEarned      int64
	TotalRedeemed    int64
	LastEarnedAt     pgtype.Timestamptz
	CreatedAt        pgtype.Timestamptz
	UpdatedAt        pgtype.Timestamptz
}

type Reward struct {
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

type Voucher struct {
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
	OrderID          *int64
	RedeemedAt       pgtype.Timestamptz
	CreatedAt        pgtype.Timestamptz
}

type PromoSlot struct {
	Year     int32
	Day      int32
	RewardID int64
}

type PromoClaim struct {
	ID               pgtype.UUID
	CustomerKey      string
	LegacyCustomerID *int64
	ExternalUserID   *string
	Day              int32
	Year             int32
	RewardID         int64
	VoucherID        pgtype.UUID
	CreatedAt        pgtype.Timestamptz
}

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
	CreatedAt      pgtype.Timestamptz
	UpdatedAt      pgtype.Timestamptz
}

// CustomerKeys selects rows stored under either identity scheme. A nil key
// never matches.
type CustomerKeys struct {
	LegacyCustomerID *int64
	ExternalUserID   *string
}
