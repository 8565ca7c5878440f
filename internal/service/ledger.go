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
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// NewEntry describes one ledger append. Points carry the sign of the entry
// type.
type NewEntry struct {
	OrderID     *int64
	Type        string
	Points      int64
	Description string
	OrderTotal  *domain.Money
	Source      string
	CreatedAt   time.Time
}

func (in NewEntry) validate() error {
	if !domain.IsValidEntryType(in.Type) {
		return models.Invalid("type", fmt.Sprintf("unknown entry type %q", in.Type))
	}
	switch in.Type {
	case domain.EntryTypeRedeemed, domain.EntryTypeRefund:
		if in.Points >= 0 {
			return fmt.Errorf("%s entry must be negative: %w", in.Type, models.ErrInvalidPoints)
		}
	default:
		if in.Points <= 0 {
			return fmt.Errorf("%s entry must be positive: %w", in.Type, models.ErrInvalidPoints)
		}
	}
	return nil
}

// appendEntry inserts an immutable ledger row under every key known for id.
// inserted is false when a per-order unique index already holds an entry of
// the same type; the ledger is then unchanged.
func appendEntry(ctx context.Context, q repository.Querier, id domain.Identity, in NewEntry) (row repository.LedgerEntry, inserted bool, err error) {
	if err := in.validate(); err != nil {
		return repository.LedgerEntry{}, false, err
	}
	var totalCents *int64
	if in.OrderTotal != nil {
		totalCents = int64Ptr(in.OrderTotal.Cents)
	}
	row, err = q.InsertLedgerEntry(ctx, repository.InsertLedgerEntryParams{
		ID:               repository.ToPgUUID(uuid.New()),
		LegacyCustomerID: id.LegacyID,
		ExternalUserID:   id.ExternalID,
		OrderID:          in.OrderID,
		EntryType:        in.Type,
		Points:           in.Points,
		Description:      in.Description,
		OrderTotalCents:  totalCents,
		Source:           in.Source,
		CreatedAt:        repository.ToTimestamptz(in.CreatedAt),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.LedgerEntry{}, false, nil
		}
		return repository.LedgerEntry{}, false, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	observability.AddPoints(row.EntryType, row.Points)
	return row, true, nil
}

// findByOrder returns the entry of entryType recorded for orderID, or nil.
func findByOrder(ctx context.Context, q repository.Querier, id domain.Identity, orderID int64, entryType string) (*repository.LedgerEntry, error) {
	row, err := q.GetLedgerEntryByOrder(ctx, repository.GetLedgerEntryByOrderParams{
		OrderID:   orderID,
		EntryType: entryType,
		Customer:  customerKeys(id),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find ledger entry for order: %w", err)
	}
	return &row, nil
}

// lockCustomer serializes ledger writers for id until the transaction ends.
func lockCustomer(ctx context.Context, q repository.Querier, id domain.Identity) error {
	if err := q.AcquireCustomerLock(ctx, id.Canonical.String()); err != nil {
		return fmt.Errorf("failed to lock customer %s: %w", id, err)
	}
	return nil
}

// LedgerService exposes ledger reads and the generic append used by the
// other writers.
type LedgerService struct {
	store QueryStore
	now   func() time.Time
}

func NewLedgerService(store QueryStore) *LedgerService {
	return &LedgerService{store: store, now: systemNow}
}

// Append records an entry and moves the balance in one transaction. It
// reports false when the entry duplicates an existing per-order entry.
func (s *LedgerService) Append(ctx context.Context, id domain.Identity, in NewEntry) (*models.LedgerEntry, bool, error) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now()
	}
	var (
		entry    models.LedgerEntry
		inserted bool
	)
	err := s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if err := lockCustomer(ctx, qtx, id); err != nil {
			return err
		}
		row, ok, err := appendEntry(ctx, qtx, id, in)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		inserted = true
		entry = toLedgerEntryModel(row)
		return upsertIncrement(ctx, qtx, id, in.Points, domain.BalanceKindFor(in.Type), in.CreatedAt)
	})
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		return nil, false, nil
	}
	return &entry, true, nil
}

// FindByOrder returns the entry of entryType recorded for the order, or nil.
func (s *LedgerService) FindByOrder(ctx context.Context, id domain.Identity, orderID int64, entryType string) (*models.LedgerEntry, error) {
	row, err := findByOrder(ctx, s.store.Queries(), id, orderID, entryType)
	if err != nil || row == nil {
		return nil, err
	}
	entry := toLedgerEntryModel(*row)
	return &entry, nil
}

// SumByType returns the signed sum of the identity's entries of the given
// types.
func (s *LedgerService) SumByType(ctx context.Context, id domain.Identity, types ...string) (int64, error) {
	total, err := s.store.Queries().SumLedgerPointsByType(ctx, repository.SumLedgerPointsByTypeParams{
		Customer:   customerKeys(id),
		EntryTypes: types,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return total, nil
}

// History returns the identity's entries, newest first.
func (s *LedgerService) History(ctx context.Context, id domain.Identity, limit, offset int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.store.Queries().ListLedgerEntries(ctx, repository.ListLedgerEntriesParams{
		Customer: customerKeys(id),
		Limit:    int32(limit),
		Offset:   int32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	entries := make([]models.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toLedgerEntryModel(row))
	}
	return entries, nil
}

// Balance returns the materialized balance. An identity with no ledger
// activity has an all-zero balance.
func (s *LedgerService) Balance(ctx context.Context, id domain.Identity) (models.Balance, error) {
	return readBalance(ctx, s.store.Queries(), id)
}
