package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/observability"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// ReconciliationService recomputes balances from the ledger, finds paid
// orders that never earned points and duplicate balance rows, and repairs
// them when not in dry-run mode. Each identity is repaired in its own
// transaction.
type ReconciliationService struct {
	store    QueryStore
	resolver *IdentityResolver
	now      func() time.Time
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(store QueryStore, resolver *IdentityResolver) *ReconciliationService {
	return &ReconciliationService{store: store, resolver: resolver, now: systemNow}
}

// Reconcile audits one identity. In apply mode the one-row-per-key balance
// indexes are recreated afterwards; failure to do so is logged, not
// returned, since the identity itself was repaired.
func (s *ReconciliationService) Reconcile(ctx context.Context, id domain.Identity, dryRun bool) (*models.ReconciliationReport, error) {
	report, err := s.reconcileOne(ctx, id, dryRun)
	if err != nil {
		return nil, err
	}
	if !dryRun {
		s.ensureIndexes(ctx)
	}
	return report, nil
}

// ReconcileAll audits every identity with ledger activity, a balance row or
// a paid linked order. Keys belonging to one person are audited once.
func (s *ReconciliationService) ReconcileAll(ctx context.Context, dryRun bool) (*models.ReconciliationSummary, error) {
	keys, err := s.store.Queries().ListLoyaltyCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list loyalty customers: %w", err)
	}

	identities := map[string]domain.Identity{}
	for _, k := range keys {
		id, err := s.resolver.ResolveKeys(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve customer keys: %w", err)
		}
		identities[id.Canonical.String()] = id
	}
	order := make([]string, 0, len(identities))
	for key := range identities {
		order = append(order, key)
	}
	sort.Strings(order)

	summary := &models.ReconciliationSummary{DryRun: dryRun, Reports: []models.ReconciliationReport{}}
	for _, key := range order {
		report, err := s.reconcileOne(ctx, identities[key], dryRun)
		summary.Customers++
		if err != nil {
			summary.Failed++
			zap.L().Error("reconciliation failed", zap.String("customer_key", key), zap.Error(err))
			continue
		}
		if !report.HasDiscrepancies() {
			continue
		}
		summary.WithDiscrepancies++
		summary.MissingAwards += len(report.MissingAwards)
		summary.MissingPoints += report.MissingPoints
		if n := len(report.StoredRows); n > 1 {
			summary.DuplicateRows += n - 1
		}
		if report.Applied {
			summary.Repaired++
		}
		summary.Reports = append(summary.Reports, *report)
	}

	if !dryRun {
		summary.IndexesEnsured = s.ensureIndexes(ctx)
	}
	zap.L().Info("reconciliation finished",
		zap.Bool("dry_run", dryRun),
		zap.Int("customers", summary.Customers),
		zap.Int("with_discrepancies", summary.WithDiscrepancies),
		zap.Int("repaired", summary.Repaired),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (s *ReconciliationService) ensureIndexes(ctx context.Context) bool {
	if err := s.store.Queries().EnsureBalanceUniqueIndexes(ctx); err != nil {
		zap.L().Warn("balance unique indexes not ensured", zap.Error(err))
		return false
	}
	return true
}

func (s *ReconciliationService) reconcileOne(ctx context.Context, id domain.Identity, dryRun bool) (*models.ReconciliationReport, error) {
	now := s.now()
	report := &models.ReconciliationReport{
		CustomerKey:   id.String(),
		DryRun:        dryRun,
		StoredRows:    []models.BalanceTotals{},
		MissingAwards: []models.MissingAward{},
		Discrepancies: []string{},
	}
	keys := customerKeys(id)

	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if !dryRun {
			if err := lockCustomer(ctx, qtx, id); err != nil {
				return err
			}
		}

		earned, err := qtx.SumLedgerPointsByType(ctx, repository.SumLedgerPointsByTypeParams{
			Customer:   keys,
			EntryTypes: domain.EarningEntryTypes,
		})
		if err != nil {
			return fmt.Errorf("failed to sum earned points: %w", err)
		}
		redeemed, err := qtx.SumLedgerPointsByType(ctx, repository.SumLedgerPointsByTypeParams{
			Customer:   keys,
			EntryTypes: domain.RedeemingEntryTypes,
		})
		if err != nil {
			return fmt.Errorf("failed to sum redeemed points: %w", err)
		}
		report.Ledger = models.BalanceTotals{
			Points:        earned + redeemed,
			TotalEarned:   earned,
			TotalRedeemed: -redeemed,
		}

		missing, err := s.findMissingAwards(ctx, qtx, keys)
		if err != nil {
			return err
		}
		for _, order := range missing {
			total := domain.NewMoney(order.TotalCents)
			report.MissingAwards = append(report.MissingAwards, models.MissingAward{
				OrderID:     order.ID,
				OrderAmount: total.String(),
				Points:      total.Points(),
			})
			report.MissingPoints += total.Points()
		}

		rows, err := qtx.ListBalancesForCustomer(ctx, keys)
		if err != nil {
			return fmt.Errorf("failed to list balances: %w", err)
		}
		for _, row := range rows {
			report.StoredRows = append(report.StoredRows, models.BalanceTotals{
				Points:        row.Points,
				TotalEarned:   row.TotalEarned,
				TotalRedeemed: row.TotalRedeemed,
			})
		}

		report.Expected = report.Ledger
		report.Expected.TotalEarned += report.MissingPoints
		report.Expected.Points += report.MissingPoints
		report.Discrepancies = classify(report)
		if dryRun || !report.HasDiscrepancies() {
			return nil
		}
		return s.repair(ctx, qtx, id, missing, rows, report, now)
	})
	if err != nil {
		return nil, err
	}

	for _, kind := range report.Discrepancies {
		observability.IncrementReconciliationDiscrepancy(kind)
	}
	if report.HasDiscrepancies() {
		zap.L().Warn("reconciliation discrepancy",
			zap.String("customer_key", report.CustomerKey),
			zap.Strings("kinds", report.Discrepancies),
			zap.Int64("ledger_points", report.Ledger.Points),
			zap.Int64("expected_points", report.Expected.Points),
			zap.Int("balance_rows", len(report.StoredRows)),
			zap.Int("missing_awards", len(report.MissingAwards)),
			zap.Bool("dry_run", dryRun))
	}
	if report.Applied {
		zap.L().Info("reconciliation repair applied",
			zap.String("customer_key", report.CustomerKey),
			zap.Int64("points", report.Expected.Points))
	}
	return report, nil
}

func (s *ReconciliationService) findMissingAwards(ctx context.Context, qtx repository.Querier, keys repository.CustomerKeys) ([]repository.Order, error) {
	paid, err := qtx.ListPaidOrdersForCustomer(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to list paid orders: %w", err)
	}
	awardedIDs, err := qtx.ListAwardedOrderIDs(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to list awarded orders: %w", err)
	}
	awarded := make(map[int64]struct{}, len(awardedIDs))
	for _, orderID := range awardedIDs {
		awarded[orderID] = struct{}{}
	}
	var missing []repository.Order
	for _, order := range paid {
		if _, ok := awarded[order.ID]; ok {
			continue
		}
		if domain.NewMoney(order.TotalCents).Points() <= 0 {
			continue
		}
		missing = append(missing, order)
	}
	return missing, nil
}

func classify(report *models.ReconciliationReport) []string {
	kinds := []string{}
	if len(report.MissingAwards) > 0 {
		kinds = append(kinds, models.DiscrepancyMissingAward)
	}
	switch {
	case len(report.StoredRows) == 0:
		if report.Expected != (models.BalanceTotals{}) {
			kinds = append(kinds, models.DiscrepancyMissingBalance)
		}
	case len(report.StoredRows) > 1:
		kinds = append(kinds, models.DiscrepancyDuplicateBalance)
		if report.StoredRows[0] != report.Ledger {
			kinds = append(kinds, models.DiscrepancyBalanceMismatch)
		}
	default:
		if report.StoredRows[0] != report.Ledger {
			kinds = append(kinds, models.DiscrepancyBalanceMismatch)
		}
	}
	return kinds
}

// repair writes retroactive entries for missing awards, drops every balance
// row but the earliest and overwrites it with the recomputed totals.
func (s *ReconciliationService) repair(ctx context.Context, qtx repository.Querier, id domain.Identity, missing []repository.Order, rows []repository.LoyaltyBalance, report *models.ReconciliationReport, now time.Time) error {
	var lastEarned pgtype.Timestamptz
	for _, row := range rows {
		if row.LastEarnedAt.Valid && (!lastEarned.Valid || row.LastEarnedAt.Time.After(lastEarned.Time)) {
			lastEarned = row.LastEarnedAt
		}
	}

	for _, order := range missing {
		total := domain.NewMoney(order.TotalCents)
		orderID := order.ID
		_, inserted, err := appendEntry(ctx, qtx, id, NewEntry{
			OrderID:     &orderID,
			Type:        domain.EntryTypeEarned,
			Points:      total.Points(),
			Description: fmt.Sprintf("Retroactive award for order #%d", order.ID),
			OrderTotal:  &total,
			Source:      domain.SourceRetroactive,
			CreatedAt:   now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			// Earned under a key outside this identity; the ledger already
			// holds the award, so it is not owed here.
			report.Expected.TotalEarned -= total.Points()
			report.Expected.Points -= total.Points()
			continue
		}
		lastEarned = repository.ToTimestamptz(now)
	}

	for _, dup := range rowsAfterFirst(rows) {
		n, err := qtx.DeleteBalance(ctx, dup.ID)
		if err != nil {
			return fmt.Errorf("failed to delete duplicate balance: %w", err)
		}
		if err := requireExactlyOne(n, "delete duplicate balance"); err != nil {
			return err
		}
	}

	expected := report.Expected
	if len(rows) == 0 {
		if _, err := qtx.InsertBalance(ctx, repository.InsertBalanceParams{
			LegacyCustomerID: id.LegacyID,
			ExternalUserID:   id.ExternalID,
			Points:           expected.Points,
			TotalEarned:      expected.TotalEarned,
			TotalRedeemed:    expected.TotalRedeemed,
			LastEarnedAt:     lastEarned,
		}); err != nil {
			return fmt.Errorf("failed to create balance: %w", err)
		}
	} else {
		n, err := qtx.OverwriteBalance(ctx, repository.OverwriteBalanceParams{
			ID:               rows[0].ID,
			LegacyCustomerID: id.LegacyID,
			ExternalUserID:   id.ExternalID,
			Points:           expected.Points,
			TotalEarned:      expected.TotalEarned,
			TotalRedeemed:    expected.TotalRedeemed,
			LastEarnedAt:     lastEarned,
		})
		if err != nil {
			return fmt.Errorf("failed to overwrite balance: %w", err)
		}
		if err := requireExactlyOne(n, "overwrite balance"); err != nil {
			return err
		}
	}
	report.Applied = true
	return nil
}

func rowsAfterFirst(rows []repository.LoyaltyBalance) []repository.LoyaltyBalance {
	if len(rows) < 2 {
		return nil
	}
	return rows[1:]
}
