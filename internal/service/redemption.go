package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"
	"go.uber.org/zap"
)

const (
	voucherCodePrefix   = "LOY"
	defaultValidityDays = 30
)

func newVoucherCode() string {
	return voucherCodePrefix + "-" + strings.ToUpper(xid.New().String())
}

// RedemptionService exchanges points for vouchers.
type RedemptionService struct {
	store QueryStore
	now   func() time.Time
}

func NewRedemptionService(store QueryStore) *RedemptionService {
	return &RedemptionService{store: store, now: systemNow}
}

func loadReward(ctx context.Context, q repository.Querier, rewardID int64) (repository.Reward, error) {
	reward, err := q.GetReward(ctx, rewardID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Reward{}, models.ErrRewardNotFound
		}
		return repository.Reward{}, fmt.Errorf("failed to load reward: %w", err)
	}
	if !reward.Active {
		return repository.Reward{}, models.ErrRewardInactive
	}
	return reward, nil
}

// Redeem debits reward.points_required and issues an active voucher. The
// ledger entry, the debit and the voucher commit together; a balance that
// cannot cover the reward leaves all three untouched.
func (s *RedemptionService) Redeem(ctx context.Context, id domain.Identity, rewardID int64) (*models.RedemptionResult, error) {
	if rewardID <= 0 {
		return nil, models.Invalid("reward_id", "must be positive")
	}
	reward, err := loadReward(ctx, s.store.Queries(), rewardID)
	if err != nil {
		return nil, err
	}
	if reward.PointsRequired <= 0 {
		return nil, models.Invalid("reward_id", "reward cannot be redeemed with points")
	}

	now := s.now()
	validity := reward.ValidityDays
	if validity <= 0 {
		validity = defaultValidityDays
	}
	expiresAt := now.Add(time.Duration(validity) * 24 * time.Hour)

	var result models.RedemptionResult
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := lockCustomer(ctx, qtx, id); err != nil {
			return err
		}
		balance, err := readBalance(ctx, qtx, id)
		if err != nil {
			return err
		}
		if balance.Points < reward.PointsRequired {
			return models.ErrInsufficientPoints
		}

		row, _, err := appendEntry(ctx, qtx, id, NewEntry{
			Type:        domain.EntryTypeRedeemed,
			Points:      -reward.PointsRequired,
			Description: fmt.Sprintf("Redeemed %s", reward.Name),
			Source:      domain.SourceRedemption,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		if err := debitBalance(ctx, qtx, id, reward.PointsRequired); err != nil {
			return err
		}

		voucher, err := qtx.InsertVoucher(ctx, repository.InsertVoucherParams{
			ID:               repository.ToPgUUID(uuid.New()),
			LegacyCustomerID: id.LegacyID,
			ExternalUserID:   id.ExternalID,
			RewardID:         reward.ID,
			Code:             newVoucherCode(),
			DiscountType:     reward.DiscountType,
			DiscountValue:    reward.DiscountValue,
			MinOrderCents:    reward.MinOrderCents,
			PointsUsed:       reward.PointsRequired,
			Status:           domain.VoucherStatusActive,
			ExpiresAt:        repository.ToTimestamptz(expiresAt),
		})
		if err != nil {
			return fmt.Errorf("failed to create voucher: %w", err)
		}

		after, err := readBalance(ctx, qtx, id)
		if err != nil {
			return err
		}
		result = models.RedemptionResult{
			Voucher: toVoucherModel(voucher),
			Entry:   toLedgerEntryModel(row),
			Balance: after,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrInsufficientPoints) {
			zap.L().Debug("redemption rejected",
				zap.String("customer_key", id.String()),
				zap.Int64("reward_id", rewardID))
		}
		return nil, err
	}
	return &result, nil
}
