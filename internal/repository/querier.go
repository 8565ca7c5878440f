package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Querier is the full statement set. *Queries implements it against
// Postgres; tests substitute an in-memory implementation.
type Querier interface {
	AcquireCustomerLock(ctx context.Context, customerKey string) error

	CreateLegacyCustomer(ctx context.Context, arg CreateLegacyCustomerParams) (LegacyCustomer, error)
	GetLegacyCustomer(ctx context.Context, id int64) (LegacyCustomer, error)
	UpsertCustomerProfile(ctx context.Context, arg UpsertCustomerProfileParams) (CustomerProfile, error)
	GetCustomerProfile(ctx context.Context, externalUserID string) (CustomerProfile, error)
	GetCustomerProfileByLegacyID(ctx context.Context, legacyCustomerID int64) (CustomerProfile, error)

	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	UpdateOrderPaymentStatus(ctx context.Context, arg UpdateOrderPaymentStatusParams) (int64, error)
	ListPaidOrdersForCustomer(ctx context.Context, arg CustomerKeys) ([]Order, error)
	ListOrphanOrdersByPhone(ctx context.Context, arg ListOrphanOrdersByPhoneParams) ([]Order, error)
	AttachOrderCustomer(ctx context.Context, arg AttachOrderCustomerParams) (int64, error)

	InsertLedgerEntry(ctx context.Context, arg InsertLedgerEntryParams) (LedgerEntry, error)
	GetLedgerEntryByOrder(ctx context.Context, arg GetLedgerEntryByOrderParams) (LedgerEntry, error)
	SumLedgerPointsByType(ctx context.Context, arg SumLedgerPointsByTypeParams) (int64, error)
	SumLedgerPointsForOrder(ctx context.Context, arg SumLedgerPointsForOrderParams) (int64, error)
	CountLedgerEntriesByType(ctx context.Context, arg CountLedgerEntriesByTypeParams) (int64, error)
	ListLedgerEntries(ctx context.Context, arg ListLedgerEntriesParams) ([]LedgerEntry, error)
	ListAwardedOrderIDs(ctx context.Context, arg CustomerKeys) ([]int64, error)
	ListLoyaltyCustomers(ctx context.Context) ([]CustomerKeys, error)

	ListBalancesForCustomer(ctx context.Context, arg CustomerKeys) ([]LoyaltyBalance, error)
	GetBalanceForUpdate(ctx context.Context, arg CustomerKeys) (LoyaltyBalance, error)
	InsertBalance(ctx context.Context, arg InsertBalanceParams) (LoyaltyBalance, error)
	IncrementBalance(ctx context.Context, arg IncrementBalanceParams) (int64, error)
	DebitBalance(ctx context.Context, arg DebitBalanceParams) (int64, error)
	OverwriteBalance(ctx context.Context, arg OverwriteBalanceParams) (int64, error)
	DeleteBalance(ctx context.Context, id int64) (int64, error)
	EnsureBalanceUniqueIndexes(ctx context.Context) error

	UpsertReward(ctx context.Context, arg UpsertRewardParams) (Reward, error)
	GetReward(ctx context.Context, id int64) (Reward, error)
	UpsertPromoSlot(ctx context.Context, arg UpsertPromoSlotParams) (PromoSlot, error)
	GetPromoSlot(ctx context.Context, arg GetPromoSlotParams) (PromoSlot, error)

	InsertVoucher(ctx context.Context, arg InsertVoucherParams) (Voucher, error)
	GetVoucher(ctx context.Context, id pgtype.UUID) (Voucher, error)
	GetVoucherByCodeForUpdate(ctx context.Context, arg GetVoucherByCodeForUpdateParams) (Voucher, error)
	ListVouchersForCustomer(ctx context.Context, arg CustomerKeys) ([]Voucher, error)
	ListEligibleVouchers(ctx context.Context, arg ListEligibleVouchersParams) ([]Voucher, error)
	MarkVoucherRedeemed(ctx context.Context, arg MarkVoucherRedeemedParams) (int64, error)
	ExpireVouchers(ctx context.Context, now pgtype.Timestamptz) (int64, error)
	DeleteVoucher(ctx context.Context, id pgtype.UUID) (int64, error)

	InsertPromoClaim(ctx context.Context, arg InsertPromoClaimParams) (PromoClaim, error)
	GetPromoClaim(ctx context.Context, arg GetPromoClaimParams) (PromoClaim, error)
	ListPromoClaims(ctx context.Context, arg ListPromoClaimsParams) ([]PromoClaim, error)
	DeletePromoClaim(ctx context.Context, id pgtype.UUID) (int64, error)

	GetIdempotencyKey(ctx context.Context, idempotencyKey string) (IdempotencyKey, error)
	ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (IdempotencyKey, error)
	FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (IdempotencyKey, error)
}
