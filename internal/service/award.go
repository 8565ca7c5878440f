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

// OrderPaid is the "payment succeeded" fact for one order.
type OrderPaid struct {
	OrderID          int64
	Total            domain.Money
	PaymentSucceeded bool
	PaidAt           time.Time
	// Source tags the entry; defaults to order_paid.
	Source string
}

// BonusConfig holds the optional one-off grants. Zero disables a bonus.
type BonusConfig struct {
	SignupPoints     int64
	FirstOrderPoints int64
}

// AwardService credits points for paid orders exactly once per order.
type AwardService struct {
	store    QueryStore
	resolver *IdentityResolver
	bonuses  BonusConfig
	now      func() time.Time
}

func NewAwardService(store QueryStore, resolver *IdentityResolver, bonuses BonusConfig) *AwardService {
	return &AwardService{
		store:    store,
		resolver: resolver,
		bonuses:  bonuses,
		now:      systemNow,
	}
}

// AwardOrder appends one earned entry of floor(total) points for the order
// and increments the balance. Repeated calls for an awarded order return the
// original entry with AlreadyAwarded set.
func (s *AwardService) AwardOrder(ctx context.Context, id domain.Identity, in OrderPaid) (*models.AwardResult, error) {
	if in.OrderID <= 0 {
		return nil, models.Invalid("order_id", "must be positive")
	}
	result := &models.AwardResult{OrderID: in.OrderID}
	if !in.PaymentSucceeded {
		result.Skipped = true
		return result, nil
	}

	existing, err := findByOrder(ctx, s.store.Queries(), id, in.OrderID, domain.EntryTypeEarned)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.alreadyAwarded(id, result, *existing), nil
	}

	points := in.Total.Points()
	if points <= 0 {
		result.Skipped = true
		return result, nil
	}
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := lockCustomer(ctx, qtx, id); err != nil {
			return err
		}
		return s.awardInTx(ctx, qtx, id, in, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// awardInTx writes the award for one order inside the caller's transaction.
// The caller must hold the customer lock. It re-checks payment, the existing
// earned entry and the point value, so callers may skip their own checks.
func (s *AwardService) awardInTx(ctx context.Context, qtx repository.Querier, id domain.Identity, in OrderPaid, result *models.AwardResult) error {
	if !in.PaymentSucceeded {
		result.Skipped = true
		return nil
	}
	existing, err := findByOrder(ctx, qtx, id, in.OrderID, domain.EntryTypeEarned)
	if err != nil {
		return err
	}
	if existing != nil {
		s.alreadyAwarded(id, result, *existing)
		return nil
	}
	points := in.Total.Points()
	if points <= 0 {
		result.Skipped = true
		return nil
	}
	if in.PaidAt.IsZero() {
		in.PaidAt = s.now()
	}
	source := in.Source
	if source == "" {
		source = domain.SourceOrderPaid
	}
	total := in.Total

	row, inserted, err := appendEntry(ctx, qtx, id, NewEntry{
		OrderID:     &in.OrderID,
		Type:        domain.EntryTypeEarned,
		Points:      points,
		Description: fmt.Sprintf("Earned %d points for order #%d", points, in.OrderID),
		OrderTotal:  &total,
		Source:      source,
		CreatedAt:   in.PaidAt,
	})
	if err != nil {
		return err
	}
	if !inserted {
		// The order was awarded under a key this identity does not carry.
		observability.IncrementAwardDuplicate()
		zap.L().Warn("order already awarded to another identity",
			zap.String("customer_key", id.String()),
			zap.Int64("order_id", in.OrderID))
		result.AlreadyAwarded = true
		return nil
	}
	if err := upsertIncrement(ctx, qtx, id, points, domain.BalanceKindEarn, in.PaidAt); err != nil {
		return err
	}
	entry := toLedgerEntryModel(row)
	result.Entry = &entry
	result.Points = points

	bonus, err := s.grantFirstOrderBonus(ctx, qtx, id, in.OrderID, in.PaidAt)
	if err != nil {
		return err
	}
	result.Bonus = bonus
	return nil
}

func (s *AwardService) alreadyAwarded(id domain.Identity, result *models.AwardResult, row repository.LedgerEntry) *models.AwardResult {
	observability.IncrementAwardDuplicate()
	zap.L().Debug("order already awarded",
		zap.String("customer_key", id.String()),
		zap.Int64("order_id", result.OrderID))
	entry := toLedgerEntryModel(row)
	result.AlreadyAwarded = true
	result.Points = row.Points
	result.Entry = &entry
	return result
}

// grantFirstOrderBonus credits the configured bonus when the identity's only
// earned entry is the one just written.
func (s *AwardService) grantFirstOrderBonus(ctx context.Context, qtx repository.Querier, id domain.Identity, orderID int64, at time.Time) (*models.LedgerEntry, error) {
	if s.bonuses.FirstOrderPoints <= 0 {
		return nil, nil
	}
	keys := customerKeys(id)
	earnedCount, err := qtx.CountLedgerEntriesByType(ctx, repository.CountLedgerEntriesByTypeParams{
		Customer:  keys,
		EntryType: domain.EntryTypeEarned,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count earned entries: %w", err)
	}
	if earnedCount != 1 {
		return nil, nil
	}
	bonusCount, err := qtx.CountLedgerEntriesByType(ctx, repository.CountLedgerEntriesByTypeParams{
		Customer:  keys,
		EntryType: domain.EntryTypeFirstOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count first order bonuses: %w", err)
	}
	if bonusCount > 0 {
		return nil, nil
	}
	points := s.bonuses.FirstOrderPoints
	row, _, err := appendEntry(ctx, qtx, id, NewEntry{
		OrderID:     &orderID,
		Type:        domain.EntryTypeFirstOrder,
		Points:      points,
		Description: fmt.Sprintf("First order bonus for order #%d", orderID),
		Source:      domain.SourceBonus,
		CreatedAt:   at,
	})
	if err != nil {
		return nil, err
	}
	if err := upsertIncrement(ctx, qtx, id, points, domain.BalanceKindEarn, at); err != nil {
		return nil, err
	}
	entry := toLedgerEntryModel(row)
	return &entry, nil
}

// AwardPaidOrder loads a stored order and awards it to the identity it is
// linked to. Orders without an identity are left for orphan recovery.
func (s *AwardService) AwardPaidOrder(ctx context.Context, orderID int64) (*models.AwardResult, error) {
	order, err := s.store.Queries().GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order.LegacyCustomerID == nil && order.ExternalUserID == nil {
		return &models.AwardResult{OrderID: orderID, Skipped: true}, nil
	}
	id, err := s.resolver.ResolveKeys(ctx, repository.CustomerKeys{
		LegacyCustomerID: order.LegacyCustomerID,
		ExternalUserID:   order.ExternalUserID,
	})
	if err != nil {
		return nil, err
	}
	return s.AwardOrder(ctx, id, orderPaidFrom(order, domain.SourceOrderPaid))
}

func orderPaidFrom(order repository.Order, source string) OrderPaid {
	return OrderPaid{
		OrderID:          order.ID,
		Total:            domain.NewMoney(order.TotalCents),
		PaymentSucceeded: order.PaymentStatus == domain.PaymentStatusPaid,
		PaidAt:           order.PaidAt.Time,
		Source:           source,
	}
}

// GrantSignupBonus credits the configured signup bonus once per identity.
// It returns nil when the bonus is disabled or was already granted.
func (s *AwardService) GrantSignupBonus(ctx context.Context, id domain.Identity) (*models.LedgerEntry, error) {
	points := s.bonuses.SignupPoints
	if points <= 0 {
		return nil, nil
	}
	now := s.now()
	var granted *models.LedgerEntry
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := lockCustomer(ctx, qtx, id); err != nil {
			return err
		}
		count, err := qtx.CountLedgerEntriesByType(ctx, repository.CountLedgerEntriesByTypeParams{
			Customer:  customerKeys(id),
			EntryType: domain.EntryTypeSignup,
		})
		if err != nil {
			return fmt.Errorf("failed to count signup bonuses: %w", err)
		}
		if count > 0 {
			return nil
		}
		row, _, err := appendEntry(ctx, qtx, id, NewEntry{
			Type:        domain.EntryTypeSignup,
			Points:      points,
			Description: "Signup bonus",
			Source:      domain.SourceBonus,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		if err := upsertIncrement(ctx, qtx, id, points, domain.BalanceKindEarn, now); err != nil {
			return err
		}
		entry := toLedgerEntryModel(row)
		granted = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return granted, nil
}

// AdminAward credits an operator-chosen positive amount.
func (s *AwardService) AdminAward(ctx context.Context, id domain.Identity, points int64, reason string) (*models.LedgerEntry, error) {
	if points <= 0 {
		return nil, models.ErrInvalidPoints
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.Invalid("reason", "is required")
	}
	now := s.now()
	var entry models.LedgerEntry
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := lockCustomer(ctx, qtx, id); err != nil {
			return err
		}
		row, _, err := appendEntry(ctx, qtx, id, NewEntry{
			Type:        domain.EntryTypeAdminAward,
			Points:      points,
			Description: reason,
			Source:      domain.SourceAdmin,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		if err := upsertIncrement(ctx, qtx, id, points, domain.BalanceKindEarn, now); err != nil {
			return err
		}
		entry = toLedgerEntryModel(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("admin award applied",
		zap.String("customer_key", id.String()),
		zap.Int64("points", points))
	return &entry, nil
}
