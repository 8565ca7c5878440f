package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/observability"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// VoucherService reads and spends issued vouchers.
type VoucherService struct {
	store QueryStore
	now   func() time.Time
}

func NewVoucherService(store QueryStore) *VoucherService {
	return &VoucherService{store: store, now: systemNow}
}

// ListForCustomer returns every voucher issued to the identity, newest first.
func (s *VoucherService) ListForCustomer(ctx context.Context, id domain.Identity) ([]models.Voucher, error) {
	rows, err := s.store.Queries().ListVouchersForCustomer(ctx, customerKeys(id))
	if err != nil {
		return nil, fmt.Errorf("failed to list vouchers: %w", err)
	}
	vouchers := make([]models.Voucher, 0, len(rows))
	for _, row := range rows {
		vouchers = append(vouchers, toVoucherModel(row))
	}
	return vouchers, nil
}

// ListEligible returns active, unexpired vouchers whose minimum order amount
// the subtotal meets.
func (s *VoucherService) ListEligible(ctx context.Context, id domain.Identity, subtotal domain.Money) ([]models.Voucher, error) {
	if subtotal.Cents < 0 {
		return nil, models.Invalid("subtotal", "must not be negative")
	}
	rows, err := s.store.Queries().ListEligibleVouchers(ctx, repository.ListEligibleVouchersParams{
		Customer:      customerKeys(id),
		Now:           repository.ToTimestamptz(s.now()),
		SubtotalCents: subtotal.Cents,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible vouchers: %w", err)
	}
	vouchers := make([]models.Voucher, 0, len(rows))
	for _, row := range rows {
		vouchers = append(vouchers, toVoucherModel(row))
	}
	return vouchers, nil
}

// UseVoucherRequest spends a voucher at checkout.
type UseVoucherRequest struct {
	Code     string
	OrderID  *int64
	Subtotal domain.Money
}

// Use moves an active voucher to redeemed. Expired or already used vouchers
// are rejected, as is a subtotal below the voucher minimum.
func (s *VoucherService) Use(ctx context.Context, id domain.Identity, req UseVoucherRequest) (*models.Voucher, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, models.Invalid("code", "is required")
	}
	now := s.now()
	var used models.Voucher
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		voucher, err := qtx.GetVoucherByCodeForUpdate(ctx, repository.GetVoucherByCodeForUpdateParams{
			Code:     code,
			Customer: customerKeys(id),
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrVoucherNotFound
			}
			return fmt.Errorf("failed to load voucher: %w", err)
		}
		if voucher.Status != domain.VoucherStatusActive || !voucher.ExpiresAt.Time.After(now) {
			return models.ErrVoucherNotUsable
		}
		if req.Subtotal.Cents < voucher.MinOrderCents {
			return fmt.Errorf("%w: minimum is %s", models.ErrBelowMinimumOrder, domain.NewMoney(voucher.MinOrderCents))
		}
		rows, err := qtx.MarkVoucherRedeemed(ctx, repository.MarkVoucherRedeemedParams{
			ID:         voucher.ID,
			OrderID:    req.OrderID,
			RedeemedAt: repository.ToTimestamptz(now),
		})
		if err != nil {
			return fmt.Errorf("failed to mark voucher redeemed: %w", err)
		}
		if err := requireExactlyOne(rows, "mark voucher redeemed"); err != nil {
			return err
		}
		voucher.Status = domain.VoucherStatusRedeemed
		voucher.OrderID = req.OrderID
		voucher.RedeemedAt = repository.ToTimestamptz(now)
		used = toVoucherModel(voucher)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &used, nil
}

// ExpireDue moves every active voucher past its expiry to expired.
func (s *VoucherService) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.store.Queries().ExpireVouchers(ctx, repository.ToTimestamptz(s.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to expire vouchers: %w", err)
	}
	if n > 0 {
		observability.AddExpiredVouchers(n)
		zap.L().Info("vouchers expired", zap.Int64("count", n))
	}
	return n, nil
}
