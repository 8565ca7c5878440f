package service

import (
	"fmt"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
)

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

// customerKeys selects rows stored under any key known for id.
func customerKeys(id domain.Identity) repository.CustomerKeys {
	return repository.CustomerKeys{
		LegacyCustomerID: id.LegacyID,
		ExternalUserID:   id.ExternalID,
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

func toLedgerEntryModel(row repository.LedgerEntry) models.LedgerEntry {
	entry := models.LedgerEntry{
		ID:               repository.FromPgUUID(row.ID),
		LegacyCustomerID: row.LegacyCustomerID,
		ExternalUserID:   row.ExternalUserID,
		OrderID:          row.OrderID,
		Type:             row.EntryType,
		Points:           row.Points,
		Description:      row.Description,
		Source:           row.Source,
		CreatedAt:        row.CreatedAt.Time,
	}
	if row.OrderTotalCents != nil {
		amount := domain.NewMoney(*row.OrderTotalCents).String()
		entry.OrderAmount = &amount
	}
	return entry
}

func toBalanceModel(id domain.Identity, row *repository.LoyaltyBalance) models.Balance {
	balance := models.Balance{CustomerKey: id.String()}
	if row == nil {
		return balance
	}
	balance.Points = row.Points
	balance.TotalEarned = row.TotalEarned
	balance.TotalRedeemed = row.TotalRedeemed
	balance.LastEarnedAt = repository.TimePtr(row.LastEarnedAt)
	balance.UpdatedAt = repository.TimePtr(row.UpdatedAt)
	return balance
}

func toVoucherModel(row repository.Voucher) models.Voucher {
	return models.Voucher{
		ID:             repository.FromPgUUID(row.ID),
		RewardID:       row.RewardID,
		Code:           row.Code,
		DiscountType:   row.DiscountType,
		DiscountValue:  row.DiscountValue,
		MinOrderAmount: domain.NewMoney(row.MinOrderCents).String(),
		PointsUsed:     row.PointsUsed,
		Status:         row.Status,
		ExpiresAt:      row.ExpiresAt.Time,
		OrderID:        row.OrderID,
		RedeemedAt:     repository.TimePtr(row.RedeemedAt),
		CreatedAt:      row.CreatedAt.Time,
	}
}

func toClaimModel(row repository.PromoClaim) models.ClaimRecord {
	return models.ClaimRecord{
		ID:        repository.FromPgUUID(row.ID),
		Day:       row.Day,
		Year:      row.Year,
		RewardID:  row.RewardID,
		VoucherID: repository.FromPgUUID(row.VoucherID),
		CreatedAt: row.CreatedAt.Time,
	}
}

func systemNow() time.Time {
	return time.Now().UTC()
}
