// Package memstore is an in-memory repository.Querier for service and API
// tests. Transactions are serialized and roll back on error; the unique
// constraints the services rely on are enforced.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/jackc/pgx/v5/pgconn"
)

type slotKey struct {
	year int32
	day  int32
}

type state struct {
	legacyCustomers map[int64]repository.LegacyCustomer
	profiles        map[string]repository.CustomerProfile
	orders          map[int64]repository.Order
	ledger          []repository.LedgerEntry
	balances        []repository.LoyaltyBalance
	balanceSeq      int64
	balanceIndexes  bool
	rewards         map[int64]repository.Reward
	slots           map[slotKey]repository.PromoSlot
	vouchers        []repository.Voucher
	claims          []repository.PromoClaim
	idempotency     map[string]repository.IdempotencyKey
}

func newState() *state {
	return &state{
		legacyCustomers: map[int64]repository.LegacyCustomer{},
		profiles:        map[string]repository.CustomerProfile{},
		orders:          map[int64]repository.Order{},
		balanceIndexes:  true,
		rewards:         map[int64]repository.Reward{},
		slots:           map[slotKey]repository.PromoSlot{},
		idempotency:     map[string]repository.IdempotencyKey{},
	}
}

func (st *state) clone() *state {
	c := &state{
		legacyCustomers: make(map[int64]repository.LegacyCustomer, len(st.legacyCustomers)),
		profiles:        make(map[string]repository.CustomerProfile, len(st.profiles)),
		orders:          make(map[int64]repository.Order, len(st.orders)),
		ledger:          append([]repository.LedgerEntry(nil), st.ledger...),
		balances:        append([]repository.LoyaltyBalance(nil), st.balances...),
		balanceSeq:      st.balanceSeq,
		balanceIndexes:  st.balanceIndexes,
		rewards:         make(map[int64]repository.Reward, len(st.rewards)),
		slots:           make(map[slotKey]repository.PromoSlot, len(st.slots)),
		vouchers:        append([]repository.Voucher(nil), st.vouchers...),
		claims:          append([]repository.PromoClaim(nil), st.claims...),
		idempotency:     make(map[string]repository.IdempotencyKey, len(st.idempotency)),
	}
	for k, v := range st.legacyCustomers {
		c.legacyCustomers[k] = v
	}
	for k, v := range st.profiles {
		c.profiles[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	for k, v := range st.rewards {
		c.rewards[k] = v
	}
	for k, v := range st.slots {
		c.slots[k] = v
	}
	for k, v := range st.idempotency {
		c.idempotency[k] = v
	}
	return c
}

// Store mirrors repository.Store over process memory.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   *state

	faults map[string]error

	// Now stamps rows whose timestamps the caller leaves unset.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		st:     newState(),
		faults: map[string]error{},
		Now:    time.Now,
	}
}

func (s *Store) Queries() repository.Querier {
	return &queries{s: s}
}

// RunInTx runs fn with exclusive access and restores the prior state when fn
// fails.
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(&queries{s: s}); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// FailNext makes the next call of the named Querier method return err.
func (s *Store) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] = err
}

// DropBalanceIndexes disables the one-balance-row-per-key constraint, as a
// database that predates it would be.
func (s *Store) DropBalanceIndexes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.balanceIndexes = false
}

// SeedBalance inserts a balance row without constraint checks.
func (s *Store) SeedBalance(row repository.LoyaltyBalance) repository.LoyaltyBalance {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.balanceSeq++
	row.ID = s.st.balanceSeq
	if !row.CreatedAt.Valid {
		row.CreatedAt = stamp(s.Now())
	}
	row.UpdatedAt = row.CreatedAt
	s.st.balances = append(s.st.balances, row)
	return row
}

// Balances returns a copy of every balance row.
func (s *Store) Balances() []repository.LoyaltyBalance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.LoyaltyBalance(nil), s.st.balances...)
}

// Ledger returns a copy of every ledger entry in insertion order.
func (s *Store) Ledger() []repository.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.LedgerEntry(nil), s.st.ledger...)
}

// Vouchers returns a copy of every voucher in insertion order.
func (s *Store) Vouchers() []repository.Voucher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.Voucher(nil), s.st.vouchers...)
}

// Claims returns a copy of every promo claim.
func (s *Store) Claims() []repository.PromoClaim {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.PromoClaim(nil), s.st.claims...)
}

// lock acquires the data mutex and consumes any injected fault for method.
func (s *Store) lock(method string) (*state, func(), error) {
	s.mu.Lock()
	if err, ok := s.faults[method]; ok {
		delete(s.faults, method)
		s.mu.Unlock()
		return nil, func() {}, err
	}
	return s.st, s.mu.Unlock, nil
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}
