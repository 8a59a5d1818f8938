/*
aggregate.go - Pure aggregation over reports and plans

PURPOSE:
  Stateless functions that derive everything the dashboard shows from a
  set of reports and a plan: approved total, category breakdown, debt
  ratio, progress and quotas. Nothing here touches storage.

THE ONE CACHED AGGREGATE:
  Plan.CurrentTotal is the only derived value that is stored. Contribution
  defines exactly what a single report adds to it, so every mutation can
  apply  Contribution(after) - Contribution(before)  and stay consistent
  with CountedTotal, the from-scratch computation.

PERCENTAGES:
  All ratios are returned as percentages (0-100+), as decimals.
*/
package sales

import (
	"github.com/shopspring/decimal"
)

// ApprovedTotal sums TotalAmount over approved reports.
func ApprovedTotal(reports []Report) decimal.Decimal {
	total := decimal.Zero
	for _, r := range reports {
		if r.Status == StatusApproved {
			total = total.Add(r.TotalAmount)
		}
	}
	return total
}

// CategoryBreakdown sums each category over approved reports.
func CategoryBreakdown(reports []Report) CategoryAmounts {
	out := make(CategoryAmounts)
	for _, r := range reports {
		if r.Status != StatusApproved {
			continue
		}
		for c, v := range r.CategoryAmounts {
			out[c] = out[c].Add(v)
		}
	}
	return out
}

// DebtTotal sums DebtAmount over approved reports.
func DebtTotal(reports []Report) decimal.Decimal {
	total := decimal.Zero
	for _, r := range reports {
		if r.Status == StatusApproved {
			total = total.Add(r.DebtAmount)
		}
	}
	return total
}

// DebtRatio is sum(debt) / sum(total) over approved reports, as a percentage.
// Returns zero when nothing has been approved.
func DebtRatio(reports []Report) decimal.Decimal {
	sales := ApprovedTotal(reports)
	if sales.IsZero() {
		return decimal.Zero
	}
	return DebtTotal(reports).Mul(hundred).Div(sales)
}

// ProgressPercent is approvedTotal / plan.TotalTarget * 100, zero without a plan.
func ProgressPercent(plan *Plan, approvedTotal decimal.Decimal) decimal.Decimal {
	if plan == nil || !plan.TotalTarget.IsPositive() {
		return decimal.Zero
	}
	return approvedTotal.Mul(hundred).Div(plan.TotalTarget)
}

// CategoryTarget is the category's share of the plan target.
func CategoryTarget(plan Plan, c Category) decimal.Decimal {
	return plan.TotalTarget.Mul(plan.CategoryDistribution[c]).Div(hundred)
}

// IsDebtOverLimit reports whether the ratio is strictly above the plan's limit.
// A ratio exactly at the limit is not over. Without a plan nothing is over.
func IsDebtOverLimit(plan *Plan, debtRatio decimal.Decimal) bool {
	if plan == nil {
		return false
	}
	return debtRatio.GreaterThan(plan.DebtLimitPercent)
}

// =============================================================================
// PLAN CONTRIBUTION
// =============================================================================

// Contribution is what a report adds to plan.CurrentTotal: its total if it is
// approved and dated inside the plan window, zero otherwise (including when
// there is no plan or no report).
func Contribution(plan *Plan, r *Report) decimal.Decimal {
	if plan == nil || r == nil {
		return decimal.Zero
	}
	if r.AgentID != plan.AgentID || r.Status != StatusApproved {
		return decimal.Zero
	}
	if !plan.Window.Contains(r.Date) {
		return decimal.Zero
	}
	return r.TotalAmount
}

// CountedTotal recomputes plan.CurrentTotal from scratch.
func CountedTotal(plan Plan, reports []Report) decimal.Decimal {
	total := decimal.Zero
	for i := range reports {
		total = total.Add(Contribution(&plan, &reports[i]))
	}
	return total
}

// InWindow returns the agent's reports dated inside the plan window.
func InWindow(plan Plan, reports []Report) []Report {
	var out []Report
	for _, r := range reports {
		if r.AgentID == plan.AgentID && plan.Window.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// PROGRESS BANDS
// =============================================================================

type Band string

const (
	BandBehind  Band = "behind"
	BandAtRisk  Band = "at_risk"
	BandOnTrack Band = "on_track"
)

var (
	atRiskFrom  = decimal.NewFromInt(51)
	onTrackFrom = decimal.NewFromInt(86)
)

// ProgressBand buckets a progress percentage for display.
func ProgressBand(percent decimal.Decimal) Band {
	switch {
	case percent.GreaterThanOrEqual(onTrackFrom):
		return BandOnTrack
	case percent.GreaterThanOrEqual(atRiskFrom):
		return BandAtRisk
	default:
		return BandBehind
	}
}
