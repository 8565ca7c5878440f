package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ClaimService grants one free voucher per campaign day per customer.
// Claims never touch the point balance.
type ClaimService struct {
	store    QueryStore
	campaign domain.Campaign
	now      func() time.Time
}

func NewClaimService(store QueryStore, campaign domain.Campaign) *ClaimService {
	return &ClaimService{store: store, campaign: campaign, now: systemNow}
}

// Campaign returns the configured calendar.
func (s *ClaimService) Campaign() domain.Campaign {
	return s.campaign
}

// Claim issues the voucher for day. The day must be open today in the
// campaign time zone and have a reward assigned. The voucher expires at the
// end of the current campaign day. A claim made under either of the
// customer's linked keys counts.
func (s *ClaimService) Claim(ctx context.Context, id domain.Identity, day int) (*models.ClaimResult, error) {
	if !s.campaign.ValidDay(day) {
		return nil, fmt.Errorf("%w: day must be between 1 and %d", models.ErrInvalidClaimDay, s.campaign.Days)
	}
	now := s.now()
	if today, ok := s.campaign.DayOn(now); !ok || today != day {
		return nil, models.ErrClaimNotOpen
	}
	year := s.campaign.Year()
	customerKey := id.Canonical.String()

	queries := s.store.Queries()
	slot, err := queries.GetPromoSlot(ctx, repository.GetPromoSlotParams{Year: year, Day: int32(day)})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSlotNotConfigured
		}
		return nil, fmt.Errorf("failed to load promo slot: %w", err)
	}
	reward, err := loadReward(ctx, queries, slot.RewardID)
	if err != nil {
		return nil, err
	}

	code := newVoucherCode()
	if reward.Code != nil && *reward.Code != "" {
		code = *reward.Code
	}
	expiresAt := s.campaign.EndOfDay(now)

	var result models.ClaimResult
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := lockCustomer(ctx, qtx, id); err != nil {
			return err
		}
		_, err := qtx.GetPromoClaim(ctx, repository.GetPromoClaimParams{
			Customer: customerKeys(id),
			Day:      int32(day),
			Year:     year,
		})
		if err == nil {
			return models.ErrSlotAlreadyClaimed
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to check existing claim: %w", err)
		}
		voucher, err := qtx.InsertVoucher(ctx, repository.InsertVoucherParams{
			ID:               repository.ToPgUUID(uuid.New()),
			LegacyCustomerID: id.LegacyID,
			ExternalUserID:   id.ExternalID,
			RewardID:         reward.ID,
			Code:             code,
			DiscountType:     reward.DiscountType,
			DiscountValue:    reward.DiscountValue,
			MinOrderCents:    reward.MinOrderCents,
			Status:           domain.VoucherStatusActive,
			ExpiresAt:        repository.ToTimestamptz(expiresAt),
		})
		if err != nil {
			return fmt.Errorf("failed to create voucher: %w", err)
		}
		claim, err := qtx.InsertPromoClaim(ctx, repository.InsertPromoClaimParams{
			ID:               repository.ToPgUUID(uuid.New()),
			CustomerKey:      customerKey,
			LegacyCustomerID: id.LegacyID,
			ExternalUserID:   id.ExternalID,
			Day:              int32(day),
			Year:             year,
			RewardID:         reward.ID,
			VoucherID:        voucher.ID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrSlotAlreadyClaimed
			}
			return fmt.Errorf("failed to record claim: %w", err)
		}
		result = models.ClaimResult{
			Claim:   toClaimModel(claim),
			Voucher: toVoucherModel(voucher),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListClaims returns the identity's claims for year, by day.
func (s *ClaimService) ListClaims(ctx context.Context, id domain.Identity, year int32) ([]models.ClaimRecord, error) {
	if year == 0 {
		year = s.campaign.Year()
	}
	rows, err := s.store.Queries().ListPromoClaims(ctx, repository.ListPromoClaimsParams{
		Customer: customerKeys(id),
		Year:     year,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	claims := make([]models.ClaimRecord, 0, len(rows))
	for _, row := range rows {
		claims = append(claims, toClaimModel(row))
	}
	return claims, nil
}

// ResetClaim deletes a claim and the voucher it issued so the slot can be
// claimed again. Operator use only.
func (s *ClaimService) ResetClaim(ctx context.Context, id domain.Identity, day int, year int32) error {
	if !s.campaign.ValidDay(day) {
		return fmt.Errorf("%w: day must be between 1 and %d", models.ErrInvalidClaimDay, s.campaign.Days)
	}
	if year == 0 {
		year = s.campaign.Year()
	}
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		claim, err := qtx.GetPromoClaim(ctx, repository.GetPromoClaimParams{
			Customer: customerKeys(id),
			Day:      int32(day),
			Year:     year,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrClaimNotFound
			}
			return fmt.Errorf("failed to load claim: %w", err)
		}
		rows, err := qtx.DeletePromoClaim(ctx, claim.ID)
		if err != nil {
			return fmt.Errorf("failed to delete claim: %w", err)
		}
		if err := requireExactlyOne(rows, "delete claim"); err != nil {
			return err
		}
		if _, err := qtx.DeleteVoucher(ctx, claim.VoucherID); err != nil {
			return fmt.Errorf("failed to delete claim voucher: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	zap.L().Info("promo claim reset",
		zap.String("customer_key", id.String()),
		zap.Int("day", day),
		zap.Int32("year", year))
	return nil
}
