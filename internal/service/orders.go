package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// recordPaymentStatus moves the stored order to status and returns it as
// stored afterwards. A refunded order stays refunded when a late or repeated
// paid notification arrives.
func recordPaymentStatus(ctx context.Context, q repository.Querier, orderID int64, status string) (repository.Order, error) {
	rows, err := q.UpdateOrderPaymentStatus(ctx, repository.UpdateOrderPaymentStatusParams{
		ID:            orderID,
		PaymentStatus: status,
	})
	if err != nil {
		return repository.Order{}, fmt.Errorf("failed to update order payment status: %w", err)
	}
	order, err := q.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Order{}, models.ErrOrderNotFound
		}
		return repository.Order{}, fmt.Errorf("failed to load order: %w", err)
	}
	if rows == 0 && order.PaymentStatus != status {
		zap.L().Info("payment status change ignored",
			zap.Int64("order_id", orderID),
			zap.String("requested", status),
			zap.String("current", order.PaymentStatus))
	}
	return order, nil
}

// MarkOrderPaid records the order as paid and awards it to the identity it
// is linked to.
func (s *AwardService) MarkOrderPaid(ctx context.Context, orderID int64) (*models.AwardResult, error) {
	if orderID <= 0 {
		return nil, models.Invalid("order_id", "must be positive")
	}
	if _, err := recordPaymentStatus(ctx, s.store.Queries(), orderID, domain.PaymentStatusPaid); err != nil {
		return nil, err
	}
	return s.AwardPaidOrder(ctx, orderID)
}

// MarkOrderRefunded records the order as refunded and reverses its award.
func (s *RefundService) MarkOrderRefunded(ctx context.Context, orderID int64) (*models.RefundResult, error) {
	if orderID <= 0 {
		return nil, models.Invalid("order_id", "must be positive")
	}
	if _, err := recordPaymentStatus(ctx, s.store.Queries(), orderID, domain.PaymentStatusRefunded); err != nil {
		return nil, err
	}
	return s.RefundStoredOrder(ctx, orderID)
}
