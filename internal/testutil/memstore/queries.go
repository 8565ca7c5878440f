package memstore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var nonDigits = regexp.MustCompile(`\D`)

type queries struct {
	s *Store
}

var _ repository.Querier = (*queries)(nil)

func stamp(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func orNow(ts pgtype.Timestamptz, now time.Time) pgtype.Timestamptz {
	if ts.Valid {
		return ts
	}
	return stamp(now)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (q *queries) AcquireCustomerLock(ctx context.Context, customerKey string) error {
	_, unlock, err := q.s.lock("AcquireCustomerLock")
	if err != nil {
		return err
	}
	unlock()
	return nil
}

func (q *queries) CreateLegacyCustomer(ctx context.Context, arg repository.CreateLegacyCustomerParams) (repository.LegacyCustomer, error) {
	st, unlock, err := q.s.lock("CreateLegacyCustomer")
	if err != nil {
		return repository.LegacyCustomer{}, err
	}
	defer unlock()
	row, ok := st.legacyCustomers[arg.ID]
	if !ok {
		row = repository.LegacyCustomer{ID: arg.ID, CreatedAt: stamp(q.s.Now())}
	}
	row.Phone = arg.Phone
	st.legacyCustomers[arg.ID] = row
	return row, nil
}

func (q *queries) GetLegacyCustomer(ctx context.Context, id int64) (repository.LegacyCustomer, error) {
	st, unlock, err := q.s.lock("GetLegacyCustomer")
	if err != nil {
		return repository.LegacyCustomer{}, err
	}
	defer unlock()
	row, ok := st.legacyCustomers[id]
	if !ok {
		return repository.LegacyCustomer{}, pgx.ErrNoRows
	}
	return row, nil
}

func (q *queries) UpsertCustomerProfile(ctx context.Context, arg repository.UpsertCustomerProfileParams) (repository.CustomerProfile, error) {
	st, unlock, err := q.s.lock("UpsertCustomerProfile")
	if err != nil {
		return repository.CustomerProfile{}, err
	}
	defer unlock()
	if arg.LegacyCustomerID != nil {
		for ext, p := range st.profiles {
			if ext != arg.ExternalUserID && p.LegacyCustomerID != nil && *p.LegacyCustomerID == *arg.LegacyCustomerID {
				return repository.CustomerProfile{}, uniqueViolation("customer_profiles_legacy_customer_id_key")
			}
		}
	}
	row, ok := st.profiles[arg.ExternalUserID]
	if !ok {
		row = repository.CustomerProfile{ExternalUserID: arg.ExternalUserID, CreatedAt: stamp(q.s.Now())}
	}
	if arg.LegacyCustomerID != nil {
		row.LegacyCustomerID = arg.LegacyCustomerID
	}
	if arg.Phone != nil {
		row.Phone = arg.Phone
	}
	st.profiles[arg.ExternalUserID] = row
	return row, nil
}

func (q *queries) GetCustomerProfile(ctx context.Context, externalUserID string) (repository.CustomerProfile, error) {
	st, unlock, err := q.s.lock("GetCustomerProfile")
	if err != nil {
		return repository.CustomerProfile{}, err
	}
	defer unlock()
	row, ok := st.profiles[externalUserID]
	if !ok {
		return repository.CustomerProfile{}, pgx.ErrNoRows
	}
	return row, nil
}

func (q *queries) GetCustomerProfileByLegacyID(ctx context.Context, legacyCustomerID int64) (repository.CustomerProfile, error) {
	st, unlock, err := q.s.lock("GetCustomerProfileByLegacyID")
	if err != nil {
		return repository.CustomerProfile{}, err
	}
	defer unlock()
	for _, p := range st.profiles {
		if p.LegacyCustomerID != nil && *p.LegacyCustomerID == legacyCustomerID {
			return p, nil
		}
	}
	return repository.CustomerProfile{}, pgx.ErrNoRows
}

func (q *queries) CreateOrder(ctx context.Context, arg repository.CreateOrderParams) (repository.Order, error) {
	st, unlock, err := q.s.lock("CreateOrder")
	if err != nil {
		return repository.Order{}, err
	}
	defer unlock()
	if _, ok := st.orders[arg.ID]; ok {
		return repository.Order{}, uniqueViolation("orders_pkey")
	}
	row := repository.Order{
		ID:               arg.ID,
		LegacyCustomerID: arg.LegacyCustomerID,
		ExternalUserID:   arg.ExternalUserID,
		Phone:            arg.Phone,
		TotalCents:       arg.TotalCents,
		PaymentStatus:    arg.PaymentStatus,
		CreatedAt:        orNow(arg.CreatedAt, q.s.Now()),
	}
	if row.PaymentStatus == "" {
		row.PaymentStatus = "pending"
	}
	st.orders[arg.ID] = row
	return row, nil
}

func (q *queries) GetOrder(ctx context.Context, id int64) (repository.Order, error) {
	st, unlock, err := q.s.lock("GetOrder")
	if err != nil {
		return repository.Order{}, err
	}
	defer unlock()
	row, ok := st.orders[id]
	if !ok {
		return repository.Order{}, pgx.ErrNoRows
	}
	return row, nil
}

func (q *queries) UpdateOrderPaymentStatus(ctx context.Context, arg repository.UpdateOrderPaymentStatusParams) (int64, error) {
	st, unlock, err := q.s.lock("UpdateOrderPaymentStatus")
	if err != nil {
		return 0, err
	}
	defer unlock()
	row, ok := st.orders[arg.ID]
	if !ok {
		return 0, nil
	}
	if arg.PaymentStatus == "paid" && row.PaymentStatus == "refunded" {
		return 0, nil
	}
	row.PaymentStatus = arg.PaymentStatus
	switch arg.PaymentStatus {
	case "paid":
		if !row.PaidAt.Valid {
			row.PaidAt = stamp(q.s.Now())
		}
	case "refunded":
		if !row.RefundedAt.Valid {
			row.RefundedAt = stamp(q.s.Now())
		}
	}
	st.orders[arg.ID] = row
	return 1, nil
}

func sortOrders(items []repository.Order) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Time.Equal(items[j].CreatedAt.Time) {
			return items[i].CreatedAt.Time.Before(items[j].CreatedAt.Time)
		}
		return items[i].ID < items[j].ID
	})
}

func (q *queries) ListPaidOrdersForCustomer(ctx context.Context, arg repository.CustomerKeys) ([]repository.Order, error) {
	st, unlock, err := q.s.lock("ListPaidOrdersForCustomer")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var items []repository.Order
	for _, o := range st.orders {
		if o.PaymentStatus == "paid" && arg.Matches(o.LegacyCustomerID, o.ExternalUserID) {
			items = append(items, o)
		}
	}
	sortOrders(items)
	return items, nil
}

func (q *queries) ListOrphanOrdersByPhone(ctx context.Context, arg repository.ListOrphanOrdersByPhoneParams) ([]repository.Order, error) {
	st, unlock, err := q.s.lock("ListOrphanOrdersByPhone")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var items []repository.Order
	for _, o := range st.orders {
		if o.LegacyCustomerID != nil || o.ExternalUserID != nil || o.Phone == nil {
			continue
		}
		if nonDigits.ReplaceAllString(*o.Phone, "") != arg.Phone {
			continue
		}
		if arg.CreatedAfter.Valid && o.CreatedAt.Time.Before(arg.CreatedAfter.Time) {
			continue
		}
		items = append(items, o)
	}
	sortOrders(items)
	return items, nil
}

func (q *queries) AttachOrderCustomer(ctx context.Context, arg repository.AttachOrderCustomerParams) (int64, error) {
	st, unlock, err := q.s.lock("AttachOrderCustomer")
	if err != nil {
		return 0, err
	}
	defer unlock()
	row, ok := st.orders[arg.ID]
	if !ok || row.LegacyCustomerID != nil || row.ExternalUserID != nil {
		return 0, nil
	}
	row.LegacyCustomerID = arg.LegacyCustomerID
	row.ExternalUserID = arg.ExternalUserID
	st.orders[arg.ID] = row
	return 1, nil
}

func (q *queries) InsertLedgerEntry(ctx context.Context, arg repository.InsertLedgerEntryParams) (repository.LedgerEntry, error) {
	st, unlock, err := q.s.lock("InsertLedgerEntry")
	if err != nil {
		return repository.LedgerEntry{}, err
	}
	defer unlock()
	if arg.LegacyCustomerID == nil && arg.ExternalUserID == nil {
		return repository.LedgerEntry{}, fmt.Errorf("ledger_entries_identity_present violated")
	}
	if arg.OrderID != nil && (arg.EntryType == "earned" || arg.EntryType == "refund") {
		for _, e := range st.ledger {
			if e.OrderID != nil && *e.OrderID == *arg.OrderID && e.EntryType == arg.EntryType {
				return repository.LedgerEntry{}, pgx.ErrNoRows
			}
		}
	}
	id := arg.ID
	if !id.Valid {
		id = repository.ToPgUUID(uuid.New())
	}
	row := repository.LedgerEntry{
		ID:               id,
		LegacyCustomerID: arg.LegacyCustomerID,
		ExternalUserID:   arg.ExternalUserID,
		OrderID:          arg.OrderID,
		EntryType:        arg.EntryType,
		Points:           arg.Points,
		Description:      arg.Description,
		OrderTotalCents:  arg.OrderTotalCents,
		Source:           arg.Source,
		CreatedAt:        orNow(arg.CreatedAt, q.s.Now()),
	}
	st.ledger = append(st.ledger, row)
	return row, nil
}

func (q *queries) GetLedgerEntryByOrder(ctx context.Context, arg repository.GetLedgerEntryByOrderParams) (repository.LedgerEntry, error) {
	st, unlock, err := q.s.lock("GetLedgerEntryByOrder")
	if err != nil {
		return repository.LedgerEntry{}, err
	}
	defer unlock()
	for _, e := range st.ledger {
		if e.OrderID != nil && *e.OrderID == arg.OrderID && e.EntryType == arg.EntryType &&
			arg.Customer.Matches(e.LegacyCustomerID, e.ExternalUserID) {
			return e, nil
		}
	}
	return repository.LedgerEntry{}, pgx.ErrNoRows
}

func (q *queries) SumLedgerPointsByType(ctx context.Context, arg repository.SumLedgerPointsByTypeParams) (int64, error) {
	st, unlock, err := q.s.lock("SumLedgerPointsByType")
	if err != nil {
		return 0, err
	}
	defer unlock()
	var total int64
	for _, e := range st.ledger {
		if contains(arg.EntryTypes, e.EntryType) && arg.Customer.Matches(e.LegacyCustomerID, e.ExternalUserID) {
			total += e.Points
		}
	}
	return total, nil
}

func (q *queries) SumLedgerPointsForOrder(ctx context.Context, arg repository.SumLedgerPointsForOrderParams) (int64, error) {
	st, unlock, err := q.s.lock("SumLedgerPointsForOrder")
	if err != nil {
		return 0, err
	}
	defer unlock()
	var total int64
	for _, e := range st.ledger {
		if e.OrderID != nil && *e.OrderID == arg.OrderID && contains(arg.EntryTypes, e.EntryType) {
			total += e.Points
		}
	}
	return total, nil
}

func (q *queries) CountLedgerEntriesByType(ctx context.Context, arg repository.CountLedgerEntriesByTypeParams) (int64, error) {
	st, unlock, err := q.s.lock("CountLedgerEntriesByType")
	if err != nil {
		return 0, err
	}
	defer unlock()
	var count int64
	for _, e := range st.ledger {
		if e.EntryType == arg.EntryType && arg.Customer.Matches(e.LegacyCustomerID, e.ExternalUserID) {
			count++
		}
	}
	return count, nil
}

func (q *queries) ListLedgerEntries(ctx context.Context, arg repository.ListLedgerEntriesParams) ([]repository.LedgerEntry, error) {
	st, unlock, err := q.s.lock("ListLedgerEntries")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var items []repository.LedgerEntry
	for i := len(st.ledger) - 1; i >= 0; i-- {
		e := st.ledger[i]
		if arg.Customer.Matches(e.LegacyCustomerID, e.ExternalUserID) {
			items = append(items, e)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Time.After(items[j].CreatedAt.Time)
	})
	start := int(arg.Offset)
	if start > len(items) {
		start = len(items)
	}
	end := len(items)
	if arg.Limit > 0 && start+int(arg.Limit) < end {
		end = start + int(arg.Limit)
	}
	return items[start:end], nil
}

func (q *queries) ListAwardedOrderIDs(ctx context.Context, arg repository.CustomerKeys) ([]int64, error) {
	st, unlock, err := q.s.lock("ListAwardedOrderIDs")
	if err != nil {
		return nil, err
	}
	defer unlock()
	seen := map[int64]struct{}{}
	var items []int64
	for _, e := range st.ledger {
		if e.EntryType != "earned" || e.OrderID == nil || !arg.Matches(e.LegacyCustomerID, e.ExternalUserID) {
			continue
		}
		if _, ok := seen[*e.OrderID]; ok {
			continue
		}
		seen[*e.OrderID] = struct{}{}
		items = append(items, *e.OrderID)
	}
	sort.Slice(items, func(i, j int) bool { return items[i] < items[j] })
	return items, nil
}

func (q *queries) ListLoyaltyCustomers(ctx context.Context) ([]repository.CustomerKeys, error) {
	st, unlock, err := q.s.lock("ListLoyaltyCustomers")
	if err != nil {
		return nil, err
	}
	defer unlock()
	seen := map[string]struct{}{}
	var items []repository.CustomerKeys
	add := func(legacy *int64, external *string) {
		if legacy == nil && external == nil {
			return
		}
		key := fmt.Sprintf("%v|%v", derefInt(legacy), derefString(external))
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		items = append(items, repository.CustomerKeys{LegacyCustomerID: legacy, ExternalUserID: external})
	}
	for _, e := range st.ledger {
		add(e.LegacyCustomerID, e.ExternalUserID)
	}
	for _, b := range st.balances {
		add(b.LegacyCustomerID, b.ExternalUserID)
	}
	for _, o := range st.orders {
		if o.PaymentStatus == "paid" {
			add(o.LegacyCustomerID, o.ExternalUserID)
		}
	}
	return items, nil
}

func derefInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func derefString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func (q *queries) ListBalancesForCustomer(ctx context.Context, arg repository.CustomerKeys) ([]repository.LoyaltyBalance, error) {
	st, unlock, err := q.s.lock("ListBalancesForCustomer")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var items []repository.LoyaltyBalance
	for _, b := range st.balances {
		if arg.Matches(b.LegacyCustomerID, b.ExternalUserID) {
			items = append(items, b)
		}
	}
	return items, nil
}

func (q *queries) GetBalanceForUpdate(ctx context.Context, arg repository.CustomerKeys) (repository.LoyaltyBalance, error) {
	st, unlock, err := q.s.lock("GetBalanceForUpdate")
	if err != nil {
		return repository.LoyaltyBalance{}, err
	}
	defer unlock()
	for _, b := range st.balances {
		if arg.Matches(b.LegacyCustomerID, b.ExternalUserID) {
			return b, nil
		}
	}
	return repository.LoyaltyBalance{}, pgx.ErrNoRows
}

func (st *state) balanceConflict(skipID int64, legacy *int64, external *string) bool {
	if !st.balanceIndexes {
		return false
	}
	keys := repository.CustomerKeys{LegacyCustomerID: legacy, ExternalUserID: external}
	for _, b := range st.balances {
		if b.ID == skipID {
			continue
		}
		if keys.Matches(b.LegacyCustomerID, b.ExternalUserID) {
			return true
		}
	}
	return false
}

func (q *queries) InsertBalance(ctx context.Context, arg repository.InsertBalanceParams) (repository.LoyaltyBalance, error) {
	st, unlock, err := q.s.lock("InsertBalance")
	if err != nil {
		return repository.LoyaltyBalance{}, err
	}
	defer unlock()
	if arg.LegacyCustomerID == nil && arg.ExternalUserID == nil {
		return repository.LoyaltyBalance{}, fmt.Errorf("loyalty_balances_identity_present violated")
	}
	if st.balanceConflict(0, arg.LegacyCustomerID, arg.ExternalUserID) {
		return repository.LoyaltyBalance{}, pgx.ErrNoRows
	}
	st.balanceSeq++
	now := stamp(q.s.Now())
	row := repository.LoyaltyBalance{
		ID:               st.balanceSeq,
		LegacyCustomerID: arg.LegacyCustomerID,
		ExternalUserID:   arg.ExternalUserID,
		Points:           arg.Points,
		TotalEarned:      arg.TotalEarned,
		TotalRedeemed:    arg.TotalRedeemed,
		LastEarnedAt:     arg.LastEarnedAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	st.balances = append(st.balances, row)
	return row, nil
}

func (st *state) balanceIndex(id int64) int {
	for i, b := range st.balances {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (q *queries) IncrementBalance(ctx context.Context, arg repository.IncrementBalanceParams) (int64, error) {
	st, unlock, err := q.s.lock("IncrementBalance")
	if err != nil {
		return 0, err
	}
	defer unlock()
	i := st.balanceIndex(arg.ID)
	if i < 0 {
		return 0, nil
	}
	b := &st.balances[i]
	b.Points += arg.Points
	b.TotalEarned += arg.TotalEarned
	b.TotalRedeemed += arg.TotalRedeemed
	if arg.LastEarnedAt.Valid {
		b.LastEarnedAt = arg.LastEarnedAt
	}
	b.UpdatedAt = stamp(q.s.Now())
	return 1, nil
}

func (q *queries) DebitBalance(ctx context.Context, arg repository.DebitBalanceParams) (int64, error) {
	st, unlock, err := q.s.lock("DebitBalance")
	if err != nil {
		return 0, err
	}
	defer unlock()
	i := st.balanceIndex(arg.ID)
	if i < 0 || st.balances[i].Points < arg.Points {
		return 0, nil
	}
	b := &st.balances[i]
	b.Points -= arg.Points
	b.TotalRedeemed += arg.Points
	b.UpdatedAt = stamp(q.s.Now())
	return 1, nil
}

func (q *queries) OverwriteBalance(ctx context.Context, arg repository.OverwriteBalanceParams) (int64, error) {
	st, unlock, err := q.s.lock("OverwriteBalance")
	if err != nil {
		return 0, err
	}
	defer unlock()
	i := st.balanceIndex(arg.ID)
	if i < 0 {
		return 0, nil
	}
	b := st.balances[i]
	if arg.LegacyCustomerID != nil {
		b.LegacyCustomerID = arg.LegacyCustomerID
	}
	if arg.ExternalUserID != nil {
		b.ExternalUserID = arg.ExternalUserID
	}
	if st.balanceConflict(b.ID, b.LegacyCustomerID, b.ExternalUserID) {
		return 0, uniqueViolation("uq_loyalty_balances_legacy")
	}
	b.Points = arg.Points
	b.TotalEarned = arg.TotalEarned
	b.TotalRedeemed = arg.TotalRedeemed
	b.LastEarnedAt = arg.LastEarnedAt
	b.UpdatedAt = stamp(q.s.Now())
	st.balances[i] = b
	return 1, nil
}

func (q *queries) DeleteBalance(ctx context.Context, id int64) (int64, error) {
	st, unlock, err := q.s.lock("DeleteBalance")
	if err != nil {
		return 0, err
	}
	defer unlock()
	i := st.balanceIndex(id)
	if i < 0 {
		return 0, nil
	}
	st.balances = append(st.balances[:i:i], st.balances[i+1:]...)
	return 1, nil
}

func (q *queries) EnsureBalanceUniqueIndexes(ctx context.Context) error {
	st, unlock, err := q.s.lock("EnsureBalanceUniqueIndexes")
	if err != nil {
		return err
	}
	defer unlock()
	legacy := map[int64]struct{}{}
	external := map[string]struct{}{}
	for _, b := range st.balances {
		if b.LegacyCustomerID != nil {
			if _, ok := legacy[*b.LegacyCustomerID]; ok {
				return fmt.Errorf("ensure balance index: %w", uniqueViolation("uq_loyalty_balances_legacy"))
			}
			legacy[*b.LegacyCustomerID] = struct{}{}
		}
		if b.ExternalUserID != nil {
			if _, ok := external[*b.ExternalUserID]; ok {
				return fmt.Errorf("ensure balance index: %w", uniqueViolation("uq_loyalty_balances_external"))
			}
			external[*b.ExternalUserID] = struct{}{}
		}
	}
	st.balanceIndexes = true
	return nil
}

func (q *queries) UpsertReward(ctx context.Context, arg repository.UpsertRewardParams) (repository.Reward, error) {
	st, unlock, err := q.s.lock("UpsertReward")
	if err != nil {
		return repository.Reward{}, err
	}
	defer unlock()
	row := repository.Reward(arg)
	st.rewards[arg.ID] = row
	return row, nil
}

func (q *queries) GetReward(ctx context.Context, id int64) (repository.Reward, error) {
	st, unlock, err := q.s.lock("GetReward")
	if err != nil {
		return repository.Reward{}, err
	}
	defer unlock()
	row, ok := st.rewards[id]
	if !ok {
		return repository.Reward{}, pgx.ErrNoRows
	}
	return row, nil
}

func (q *queries) UpsertPromoSlot(ctx context.Context, arg repository.UpsertPromoSlotParams) (repository.PromoSlot, error) {
	st, unlock, err := q.s.lock("UpsertPromoSlot")
	if err != nil {
		return repository.PromoSlot{}, err
	}
	defer unlock()
	if _, ok := st.rewards[arg.RewardID]; !ok {
		return repository.PromoSlot{}, fmt.Errorf("promo_slots_reward_id_fkey violated")
	}
	row := repository.PromoSlot(arg)
	st.slots[slotKey{year: arg.Year, day: arg.Day}] = row
	return row, nil
}

func (q *queries) GetPromoSlot(ctx context.Context, arg repository.GetPromoSlotParams) (repository.PromoSlot, error) {
	st, unlock, err := q.s.lock("GetPromoSlot")
	if err != nil {
		return repository.PromoSlot{}, err
	}
	defer unlock()
	row, ok := st.slots[slotKey{year: arg.Year, day: arg.Day}]
	if !ok {
		return repository.PromoSlot{}, pgx.ErrNoRows
	}
	return row, nil
}

func (q *queries) InsertVoucher(ctx context.Context, arg repository.InsertVoucherParams) (repository.Voucher, error) {
	st, unlock, err := q.s.lock("InsertVoucher")
	if err != nil {
		return repository.Voucher{}, err
	}
	defer unlock()
	row := repository.Voucher{
		ID:               arg.ID,
		LegacyCustomerID: arg.LegacyCustomerID,
		ExternalUserID:   arg.ExternalUserID,
		RewardID:         arg.RewardID,
		Code:             arg.Code,
		DiscountType:     arg.DiscountType,
		DiscountValue:    arg.DiscountValue,
		MinOrderCents:    arg.MinOrderCents,
		PointsUsed:       arg.PointsUsed,
		Status:           arg.Status,
		ExpiresAt:        arg.ExpiresAt,
		CreatedAt:        stamp(q.s.Now()),
	}
	st.vouchers = append(st.vouchers, row)
	return row, nil
}

func (q *queries) GetVoucher(ctx context.Context, id pgtype.UUID) (repository.Voucher, error) {
	st, unlock, err := q.s.lock("GetVoucher")
	if err != nil {
		return repository.Voucher{}, err
	}
	defer unlock()
	for _, v := range st.vouchers {
		if v.ID == id {
			return v, nil
		}
	}
	return repository.Voucher{}, pgx.ErrNoRows
}

func (q *queries) GetVoucherByCodeForUpdate(ctx context.Context, arg repository.GetVoucherByCodeForUpdateParams) (repository.Voucher, error) {
	st, unlock, err := q.s.lock("GetVoucherByCodeForUpdate")
	if err != nil {
		return repository.Voucher{}, err
	}
	defer unlock()
	for i := len(st.vouchers) - 1; i >= 0; i-- {
		v := st.vouchers[i]
		if v.Code == arg.Code && arg.Customer.Matches(v.LegacyCustomerID, v.ExternalUserID) {
			return v, nil
		}
	}
	return repository.Voucher{}, pgx.ErrNoRows
}

func (q *queries) ListVouchersForCustomer(ctx context.Context, arg repository.CustomerKeys) ([]repository.Voucher, error) {
	st, unlock, err := q.s.lock("ListVouchersForCustomer")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var items []repository.Voucher
	for i := len(st.vouchers) - 1; i >= 0; i-- {
		v := st.vouchers[i]
		if arg.Matches(v.LegacyCustomerID, v.ExternalUserID) {
			items = append(items, v)
		}
	}
	return items, nil
}

func (q *queries) ListEligibleVouchers(ctx context.Context, arg repository.ListEligibleVouchersParams) ([]repository.Voucher, error) {
	st, unlock, err := q.s.lock("ListEligibleVouchers")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var items []repository.Voucher
	for _, v := range st.vouchers {
		if !arg.Customer.Matches(v.LegacyCustomerID, v.ExternalUserID) {
			continue
		}
		if v.Status != "active" || !v.ExpiresAt.Time.After(arg.Now.Time) || v.MinOrderCents > arg.SubtotalCents {
			continue
		}
		items = append(items, v)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ExpiresAt.Time.Before(items[j].ExpiresAt.Time)
	})
	return items, nil
}

func (q *queries) MarkVoucherRedeemed(ctx context.Context, arg repository.MarkVoucherRedeemedParams) (int64, error) {
	st, unlock, err := q.s.lock("MarkVoucherRedeemed")
	if err != nil {
		return 0, err
	}
	defer unlock()
	for i := range st.vouchers {
		v := &st.vouchers[i]
		if v.ID == arg.ID && v.Status == "active" {
			v.Status = "redeemed"
			v.OrderID = arg.OrderID
			v.RedeemedAt = arg.RedeemedAt
			return 1, nil
		}
	}
	return 0, nil
}

func (q *queries) ExpireVouchers(ctx context.Context, now pgtype.Timestamptz) (int64, error) {
	st, unlock, err := q.s.lock("ExpireVouchers")
	if err != nil {
		return 0, err
	}
	defer unlock()
	var n int64
	for i := range st.vouchers {
		v := &st.vouchers[i]
		if v.Status == "active" && !v.ExpiresAt.Time.After(now.Time) {
			v.Status = "expired"
			n++
		}
	}
	return n, nil
}

func (q *queries) DeleteVoucher(ctx context.Context, id pgtype.UUID) (int64, error) {
	st, unlock, err := q.s.lock("DeleteVoucher")
	if err != nil {
		return 0, err
	}
	defer unlock()
	for i, v := range st.vouchers {
		if v.ID == id {
			st.vouchers = append(st.vouchers[:i:i], st.vouchers[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (q *queries) InsertPromoClaim(ctx context.Context, arg repository.InsertPromoClaimParams) (repository.PromoClaim, error) {
	st, unlock, err := q.s.lock("InsertPromoClaim")
	if err != nil {
		return repository.PromoClaim{}, err
	}
	defer unlock()
	for _, c := range st.claims {
		if c.CustomerKey == arg.CustomerKey && c.Day == arg.Day && c.Year == arg.Year {
			return repository.PromoClaim{}, pgx.ErrNoRows
		}
	}
	row := repository.PromoClaim{
		ID:               arg.ID,
		CustomerKey:      arg.CustomerKey,
		LegacyCustomerID: arg.LegacyCustomerID,
		ExternalUserID:   arg.ExternalUserID,
		Day:              arg.Day,
		Year:             arg.Year,
		RewardID:         arg.RewardID,
		VoucherID:        arg.VoucherID,
		CreatedAt:        stamp(q.s.Now()),
	}
	st.claims = append(st.claims, row)
	return row, nil
}

func (q *queries) GetPromoClaim(ctx context.Context, arg repository.GetPromoClaimParams) (repository.PromoClaim, error) {
	st, unlock, err := q.s.lock("GetPromoClaim")
	if err != nil {
		return repository.PromoClaim{}, err
	}
	defer unlock()
	for _, c := range st.claims {
		if arg.Customer.Matches(c.LegacyCustomerID, c.ExternalUserID) && c.Day == arg.Day && c.Year == arg.Year {
			return c, nil
		}
	}
	return repository.PromoClaim{}, pgx.ErrNoRows
}

func (q *queries) ListPromoClaims(ctx context.Context, arg repository.ListPromoClaimsParams) ([]repository.PromoClaim, error) {
	st, unlock, err := q.s.lock("ListPromoClaims")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var items []repository.PromoClaim
	for _, c := range st.claims {
		if arg.Customer.Matches(c.LegacyCustomerID, c.ExternalUserID) && c.Year == arg.Year {
			items = append(items, c)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Day < items[j].Day })
	return items, nil
}

func (q *queries) DeletePromoClaim(ctx context.Context, id pgtype.UUID) (int64, error) {
	st, unlock, err := q.s.lock("DeletePromoClaim")
	if err != nil {
		return 0, err
	}
	defer unlock()
	for i, c := range st.claims {
		if c.ID == id {
			st.claims = append(st.claims[:i:i], st.claims[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (q *queries) GetIdempotencyKey(ctx context.Context, idempotencyKey string) (repository.IdempotencyKey, error) {
	st, unlock, err := q.s.lock("GetIdempotencyKey")
	if err != nil {
		return repository.IdempotencyKey{}, err
	}
	defer unlock()
	row, ok := st.idempotency[idempotencyKey]
	if !ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	return row, nil
}

func (q *queries) ReserveIdempotencyKey(ctx context.Context, arg repository.ReserveIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	st, unlock, err := q.s.lock("ReserveIdempotencyKey")
	if err != nil {
		return repository.IdempotencyKey{}, err
	}
	defer unlock()
	if _, ok := st.idempotency[arg.IdempotencyKey]; ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	now := stamp(q.s.Now())
	row := repository.IdempotencyKey{
		IdempotencyKey: arg.IdempotencyKey,
		RequestHash:    arg.RequestHash,
		Method:         arg.Method,
		Path:           arg.Path,
		ContentType:    "application/json",
		InProgress:     true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	st.idempotency[arg.IdempotencyKey] = row
	return row, nil
}

func (q *queries) FinalizeIdempotencyKey(ctx context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	st, unlock, err := q.s.lock("FinalizeIdempotencyKey")
	if err != nil {
		return repository.IdempotencyKey{}, err
	}
	defer unlock()
	row, ok := st.idempotency[arg.IdempotencyKey]
	if !ok || row.RequestHash != arg.RequestHash {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	row.ResponseStatus = arg.ResponseStatus
	row.ResponseBody = arg.ResponseBody
	row.ContentType = arg.ContentType
	row.InProgress = false
	row.UpdatedAt = stamp(q.s.Now())
	st.idempotency[arg.IdempotencyKey] = row
	return row, nil
}
