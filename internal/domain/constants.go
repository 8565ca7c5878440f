package domain

const (
	EntryTypeEarned     = "earned"
	EntryTypeSignup     = "signup"
	EntryTypeFirstOrder = "first_order"
	EntryTypeRedeemed   = "redeemed"
	EntryTypeAdminAward = "admin_award"
	EntryTypeRefund     = "refund"

	// Entry sources distinguish how an entry came to exist. Retroactive
	// entries are written by the reconciliation auditor.
	SourceOrderPaid      = "order_paid"
	SourceOrphanRecovery = "orphan_recovery"
	SourceRetroactive    = "retroactive"
	SourceRedemption     = "redemption"
	SourceRefund         = "refund"
	SourceAdmin          = "admin"
	SourceBonus          = "bonus"

	BalanceKindEarn   = "earn"
	BalanceKindRedeem = "redeem"

	VoucherStatusActive   = "active"
	VoucherStatusRedeemed = "redeemed"
	VoucherStatusExpired  = "expired"

	DiscountTypePercentage  = "percentage"
	DiscountTypeFixed       = "fixed"
	DiscountTypeDeliveryFee = "delivery_fee_waiver"

	PaymentStatusPaid     = "paid"
	PaymentStatusPending  = "pending"
	PaymentStatusRefunded = "refunded"
)

// EarningEntryTypes count toward total_earned; refunds are negative earnings.
var EarningEntryTypes = []string{
	EntryTypeEarned,
	EntryTypeSignup,
	EntryTypeFirstOrder,
	EntryTypeAdminAward,
	EntryTypeRefund,
}

// RedeemingEntryTypes count toward total_redeemed.
var RedeemingEntryTypes = []string{
	EntryTypeRedeemed,
}

// IsValidEntryType reports whether t is a known ledger entry type.
func IsValidEntryType(t string) bool {
	switch t {
	case EntryTypeEarned, EntryTypeSignup, EntryTypeFirstOrder, EntryTypeRedeemed, EntryTypeAdminAward, EntryTypeRefund:
		return true
	default:
		return false
	}
}

// IsValidDiscountType reports whether t is a supported voucher discount type.
func IsValidDiscountType(t string) bool {
	switch t {
	case DiscountTypePercentage, DiscountTypeFixed, DiscountTypeDeliveryFee:
		return true
	default:
		return false
	}
}

// BalanceKindFor maps an entry type to the lifetime counter it moves.
func BalanceKindFor(entryType string) string {
	if entryType == EntryTypeRedeemed {
		return BalanceKindRedeem
	}
	return BalanceKindEarn
}
