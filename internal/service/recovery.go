package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const DefaultRecoveryWindow = 30 * 24 * time.Hour

// RecoveryService links orders placed before the customer had an identity,
// matched by phone number, and awards them.
type RecoveryService struct {
	store  QueryStore
	awards *AwardService
	window time.Duration
	now    func() time.Time
}

func NewRecoveryService(store QueryStore, awards *AwardService, window time.Duration) *RecoveryService {
	if window <= 0 {
		window = DefaultRecoveryWindow
	}
	return &RecoveryService{store: store, awards: awards, window: window, now: systemNow}
}

// NormalizePhone keeps only the digits of a phone number.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Recover attaches every unlinked order within the recovery window whose
// phone matches the identity's profile phone and awards it. Attach and award
// commit together per order, so a failed award leaves the order an orphan
// for the next run. Running it again finds nothing new once it succeeds.
func (s *RecoveryService) Recover(ctx context.Context, id domain.Identity) (*models.RecoveryResult, error) {
	phone, err := s.profilePhone(ctx, id)
	if err != nil {
		return nil, err
	}
	result := &models.RecoveryResult{Orders: []models.RecoveredOrder{}}
	digits := NormalizePhone(phone)
	if digits == "" {
		return result, nil
	}
	result.Phone = phone

	queries := s.store.Queries()
	orders, err := queries.ListOrphanOrdersByPhone(ctx, repository.ListOrphanOrdersByPhoneParams{
		Phone:        digits,
		CreatedAfter: repository.ToTimestamptz(s.now().Add(-s.window)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan orders: %w", err)
	}

	for _, order := range orders {
		award := &models.AwardResult{OrderID: order.ID}
		attached := false
		err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
			if err := lockCustomer(ctx, qtx, id); err != nil {
				return err
			}
			rows, err := qtx.AttachOrderCustomer(ctx, repository.AttachOrderCustomerParams{
				ID:               order.ID,
				LegacyCustomerID: id.LegacyID,
				ExternalUserID:   id.ExternalID,
			})
			if err != nil {
				return fmt.Errorf("failed to attach order %d: %w", order.ID, err)
			}
			if rows == 0 {
				// Linked by a concurrent recovery.
				return nil
			}
			attached = true
			return s.awards.awardInTx(ctx, qtx, id, orderPaidFrom(order, domain.SourceOrphanRecovery), award)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to recover order %d: %w", order.ID, err)
		}
		if !attached {
			continue
		}
		result.Orders = append(result.Orders, models.RecoveredOrder{OrderID: order.ID, Award: *award})
	}

	if len(result.Orders) > 0 {
		zap.L().Info("orphan orders recovered",
			zap.String("customer_key", id.String()),
			zap.Int("orders", len(result.Orders)))
	}
	return result, nil
}

// profilePhone prefers the identity-provider profile, falling back to the
// legacy customer record.
func (s *RecoveryService) profilePhone(ctx context.Context, id domain.Identity) (string, error) {
	queries := s.store.Queries()
	if id.ExternalID != nil {
		profile, err := queries.GetCustomerProfile(ctx, *id.ExternalID)
		switch {
		case err == nil:
			if profile.Phone != nil && *profile.Phone != "" {
				return *profile.Phone, nil
			}
		case !errors.Is(err, pgx.ErrNoRows):
			return "", fmt.Errorf("failed to load customer profile: %w", err)
		}
	}
	if id.LegacyID != nil {
		customer, err := queries.GetLegacyCustomer(ctx, *id.LegacyID)
		switch {
		case err == nil:
			if customer.Phone != nil {
				return *customer.Phone, nil
			}
		case !errors.Is(err, pgx.ErrNoRows):
			return "", fmt.Errorf("failed to load legacy customer: %w", err)
		}
	}
	return "", nil
}
