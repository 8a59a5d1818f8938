package sales

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// REPORT - One sales submission by an agent
// =============================================================================

// Report is a single day's (or batch) sales submission.
//
// INVARIANTS:
//   - TotalAmount == CategoryAmounts.Sum(), always recomputed, never set directly
//   - every amount and DebtAmount is >= 0
//   - AgentID and Date never change after creation
type Report struct {
	ID              ReportID
	AgentID         AgentID
	Date            time.Time
	CategoryAmounts CategoryAmounts
	DebtAmount      decimal.Decimal
	TotalAmount     decimal.Decimal
	Status          Status

	// LastEditedBy is set whenever the amounts change after creation.
	LastEditedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers can compare before/after states.
func (r Report) Clone() Report {
	out := r
	out.CategoryAmounts = r.CategoryAmounts.Clone()
	return out
}

// setAmounts replaces the amounts and recomputes the total.
func (r *Report) setAmounts(amounts CategoryAmounts, debt decimal.Decimal) {
	r.CategoryAmounts = amounts.Clone()
	r.DebtAmount = debt
	r.TotalAmount = r.CategoryAmounts.Sum()
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateAmounts checks a submission or edit against the category set.
//
// Rules:
//   - every category in categories must be present
//   - no unknown categories
//   - no negative amounts (including debt)
//   - at least one category amount must be non-zero
//   - debt can't exceed the total (debt is sales given on credit)
func ValidateAmounts(categories []Category, amounts CategoryAmounts, debt decimal.Decimal) error {
	known := make(map[Category]bool, len(categories))
	for _, c := range categories {
		known[c] = true
		if _, ok := amounts[c]; !ok {
			return &ValidationError{Field: "category_amounts." + string(c), Reason: "missing"}
		}
	}
	for c, v := range amounts {
		if !known[c] {
			return &ValidationError{Field: "category_amounts." + string(c), Reason: "unknown category"}
		}
		if v.IsNegative() {
			return &ValidationError{Field: "category_amounts." + string(c), Reason: "must be >= 0"}
		}
	}
	if debt.IsNegative() {
		return &ValidationError{Field: "debt_amount", Reason: "must be >= 0"}
	}

	total := amounts.Sum()
	if total.IsZero() {
		return &ValidationError{Field: "category_amounts", Reason: "all amounts are zero"}
	}
	if debt.GreaterThan(total) {
		return &ValidationError{
			Field:  "debt_amount",
			Reason: fmt.Sprintf("debt %s exceeds total %s", debt, total),
		}
	}
	return nil
}
