package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/observability"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// RefundService claws back points granted for refunded orders.
type RefundService struct {
	store    QueryStore
	resolver *IdentityResolver
	now      func() time.Time
}

func NewRefundService(store QueryStore, resolver *IdentityResolver) *RefundService {
	return &RefundService{store: store, resolver: resolver, now: systemNow}
}

// RefundOrder appends a refund entry reversing what the order earned, less
// any earlier reversal. An order that never earned points is a no-op. The
// balance is not clamped: a customer who already spent the points ends up
// negative, which is logged for operator review.
func (s *RefundService) RefundOrder(ctx context.Context, id domain.Identity, orderID int64) (*models.RefundResult, error) {
	if orderID <= 0 {
		return nil, models.Invalid("order_id", "must be positive")
	}
	now := s.now()
	result := &models.RefundResult{OrderID: orderID}
	var balanceAfter int64

	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := lockCustomer(ctx, qtx, id); err != nil {
			return err
		}
		earned, err := findByOrder(ctx, qtx, id, orderID, domain.EntryTypeEarned)
		if err != nil {
			return err
		}
		if earned == nil {
			result.NothingToRevert = true
			return nil
		}
		reversed, err := qtx.SumLedgerPointsForOrder(ctx, repository.SumLedgerPointsForOrderParams{
			OrderID:    orderID,
			EntryTypes: []string{domain.EntryTypeRefund},
		})
		if err != nil {
			return fmt.Errorf("failed to sum prior reversals: %w", err)
		}
		remaining := earned.Points + reversed
		if remaining <= 0 {
			result.AlreadyReversed = true
			result.PointsReversed = -reversed
			return nil
		}

		row, inserted, err := appendEntry(ctx, qtx, id, NewEntry{
			OrderID:     &orderID,
			Type:        domain.EntryTypeRefund,
			Points:      -remaining,
			Description: fmt.Sprintf("Reversed %d points for refunded order #%d", remaining, orderID),
			Source:      domain.SourceRefund,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			result.AlreadyReversed = true
			return nil
		}
		if err := upsertIncrement(ctx, qtx, id, -remaining, domain.BalanceKindEarn, now); err != nil {
			return err
		}
		balance, err := readBalance(ctx, qtx, id)
		if err != nil {
			return err
		}
		entry := toLedgerEntryModel(row)
		result.Entry = &entry
		result.PointsReversed = remaining
		result.NegativeBalance = balance.Points < 0
		balanceAfter = balance.Points
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.NegativeBalance {
		observability.IncrementNegativeBalanceRefund()
		zap.L().Warn("negative balance after refund",
			zap.String("customer_key", id.String()),
			zap.Int64("order_id", orderID),
			zap.Int64("points_reversed", result.PointsReversed),
			zap.Int64("balance", balanceAfter))
	}
	return result, nil
}

// RefundStoredOrder reverses a stored order for the identity it is linked to.
func (s *RefundService) RefundStoredOrder(ctx context.Context, orderID int64) (*models.RefundResult, error) {
	order, err := s.store.Queries().GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.LegacyCustomerID == nil && order.ExternalUserID == nil {
		return &models.RefundResult{OrderID: orderID, NothingToRevert: true}, nil
	}
	id, err := s.resolver.ResolveKeys(ctx, repository.CustomerKeys{
		LegacyCustomerID: order.LegacyCustomerID,
		ExternalUserID:   order.ExternalUserID,
	})
	if err != nil {
		return nil, err
	}
	return s.RefundOrder(ctx, id, orderID)
}
