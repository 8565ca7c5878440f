package models

// BalanceTotals is one set of balance figures, stored or recomputed.
type BalanceTotals struct {
	Points        int64 `json:"points"`
	TotalEarned   int64 `json:"total_earned"`
	TotalRedeemed int64 `json:"total_redeemed"`
}

// MissingAward is a paid order with no earned entry.
type MissingAward struct {
	OrderID     int64  `json:"order_id"`
	OrderAmount string `json:"order_amount"`
	Points      int64  `json:"points"`
}

// Discrepancy kinds reported by the auditor.
const (
	DiscrepancyMissingAward     = "missing_award"
	DiscrepancyDuplicateBalance = "duplicate_balance"
	DiscrepancyBalanceMismatch  = "balance_mismatch"
	DiscrepancyMissingBalance   = "missing_balance"
)

// ReconciliationReport is the auditor's finding for one identity. Ledger is
// what the entries sum to today; Expected adds the missing awards.
type ReconciliationReport struct {
	CustomerKey   string          `json:"customer_key"`
	DryRun        bool            `json:"dry_run"`
	Ledger        BalanceTotals   `json:"ledger"`
	StoredRows    []BalanceTotals `json:"stored_rows"`
	MissingAwards []MissingAward  `json:"missing_awards"`
	MissingPoints int64           `json:"missing_points"`
	Expected      BalanceTotals   `json:"expected"`
	Discrepancies []string        `json:"discrepancies"`
	Applied       bool            `json:"applied"`
}

// HasDiscrepancies reports whether the identity needs repair.
func (r ReconciliationReport) HasDiscrepancies() bool {
	return len(r.Discrepancies) > 0
}

// ReconciliationSummary aggregates a run over many identities. Reports only
// lists identities with discrepancies.
type ReconciliationSummary struct {
	DryRun            bool                   `json:"dry_run"`
	Customers         int                    `json:"customers"`
	WithDiscrepancies int                    `json:"with_discrepancies"`
	MissingAwards     int                    `json:"missing_awards"`
	MissingPoints     int64                  `json:"missing_points"`
	DuplicateRows     int                    `json:"duplicate_rows"`
	Repaired          int                    `json:"repaired"`
	Failed            int                    `json:"failed"`
	IndexesEnsured    bool                   `json:"indexes_ensured"`
	Reports           []ReconciliationReport `json:"reports"`
}
