package sales

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WINDOW - Inclusive date range a plan covers
// =============================================================================

// Window is an inclusive [Start, End] range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if the date is within [Start, End].
func (w Window) Contains(t time.Time) bool {
	d := Date(t)
	return !d.Before(Date(w.Start)) && !d.After(Date(w.End))
}

// Days returns the number of calendar days in the window, both ends included.
func (w Window) Days() int {
	return int(Date(w.End).Sub(Date(w.Start)).Hours()/24) + 1
}

// Months counts calendar months in the window, a partial trailing month
// counting as one. Never less than 1.
func (w Window) Months() int {
	start := Date(w.Start)
	end := Date(w.End).AddDate(0, 0, 1)
	m := (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	if end.Day() > start.Day() {
		m++
	}
	if m < 1 {
		return 1
	}
	return m
}

func (w Window) String() string {
	return "[" + w.Start.Format(DateLayout) + ", " + w.End.Format(DateLayout) + "]"
}

// =============================================================================
// PLAN - Rolling target per agent
// =============================================================================

// Plan is an agent's sales target for a window.
//
// INVARIANT:
//
//	CurrentTotal == sum(TotalAmount) over the agent's APPROVED reports dated
//	inside Window. It is a cache maintained by the approval service; see
//	CountedTotal for the authoritative computation.
type Plan struct {
	AgentID      AgentID
	TotalTarget  decimal.Decimal
	CurrentTotal decimal.Decimal
	Window       Window

	// DebtLimitPercent is the tolerated debt/sales ratio, 0-100.
	DebtLimitPercent decimal.Decimal

	// CategoryDistribution maps category -> percentage of TotalTarget, summing to 100.
	CategoryDistribution map[Category]decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy.
func (p Plan) Clone() Plan {
	out := p
	out.CategoryDistribution = make(map[Category]decimal.Decimal, len(p.CategoryDistribution))
	for k, v := range p.CategoryDistribution {
		out.CategoryDistribution[k] = v
	}
	return out
}

// DefaultDistribution is the product split used when a plan doesn't specify one.
func DefaultDistribution() map[Category]decimal.Decimal {
	return map[Category]decimal.Decimal{
		CategoryQurt:      decimal.NewFromInt(15),
		CategoryToys:      decimal.NewFromInt(40),
		CategoryMilchofka: decimal.NewFromInt(45),
	}
}

// DefaultDebtLimitPercent is the debt ceiling used when a plan doesn't specify one.
var DefaultDebtLimitPercent = decimal.NewFromInt(7)

// =============================================================================
// VALIDATION
// =============================================================================

// ValidatePlan checks the plan's static fields against the category set.
// CurrentTotal is not checked here: it is always recomputed by the service.
func ValidatePlan(categories []Category, p Plan) error {
	if p.AgentID == "" {
		return &ValidationError{Field: "agent_id", Reason: "required"}
	}
	if !p.TotalTarget.IsPositive() {
		return &ValidationError{Field: "total_target", Reason: "must be > 0"}
	}
	if p.Window.Start.IsZero() || p.Window.End.IsZero() {
		return &ValidationError{Field: "window", Reason: "start and end dates are required"}
	}
	if !Date(p.Window.End).After(Date(p.Window.Start)) {
		return &ValidationError{Field: "end_date", Reason: "must be after start_date"}
	}
	if p.DebtLimitPercent.IsNegative() || p.DebtLimitPercent.GreaterThan(hundred) {
		return &ValidationError{Field: "debt_limit_percent", Reason: "must be between 0 and 100"}
	}
	return ValidateDistribution(categories, p.CategoryDistribution)
}

// ValidateDistribution checks that every category has a non-negative share and the shares sum to 100.
func ValidateDistribution(categories []Category, dist map[Category]decimal.Decimal) error {
	known := make(map[Category]bool, len(categories))
	for _, c := range categories {
		known[c] = true
		if _, ok := dist[c]; !ok {
			return &ValidationError{Field: "category_distribution." + string(c), Reason: "missing"}
		}
	}
	sum := decimal.Zero
	for c, v := range dist {
		if !known[c] {
			return &ValidationError{Field: "category_distribution." + string(c), Reason: "unknown category"}
		}
		if v.IsNegative() {
			return &ValidationError{Field: "category_distribution." + string(c), Reason: "must be >= 0"}
		}
		sum = sum.Add(v)
	}
	if !sum.Equal(hundred) {
		return &ValidationError{
			Field:  "category_distribution",
			Reason: fmt.Sprintf("percentages sum to %s, want 100", sum),
		}
	}
	return nil
}

// =============================================================================
// PACING
// =============================================================================

// DailyTarget is the target spread evenly over the window's days.
func (p Plan) DailyTarget() decimal.Decimal {
	days := p.Window.Days()
	if days <= 0 {
		return decimal.Zero
	}
	return p.TotalTarget.Div(decimal.NewFromInt(int64(days)))
}

// MonthlyTarget is the target spread evenly over the window's months.
func (p Plan) MonthlyTarget() decimal.Decimal {
	return p.TotalTarget.Div(decimal.NewFromInt(int64(p.Window.Months())))
}

// DaysRemaining counts the days left in the window with asOf included, so
// the last day of the window still has one day to go. Zero once it ends.
func (p Plan) DaysRemaining(asOf time.Time) int {
	end := Date(p.Window.End)
	now := Date(asOf)
	if now.After(end) {
		return 0
	}
	if now.Before(Date(p.Window.Start)) {
		return p.Window.Days()
	}
	return int(end.Sub(now).Hours()/24) + 1
}
