/*
Package factory provides JSON to Go plan conversion.

PURPOSE:
  Converts JSON plan definitions into sales.Plan values. Directors set
  targets through the API or a file without touching code; the factory
  fills in the window and defaults so the engine only ever sees complete
  plans.

JSON SCHEMA:
  {
    "agent_id": "muxlisa",
    "total_target": "500000000",
    "start_date": "2025-01-01",
    "months": 3,
    "debt_limit_percent": "7",
    "category_distribution": {"qurt": "15", "toys": "40", "milchofka": "45"}
  }

  end_date may be given instead of months. When both are absent the plan
  covers one quarter (3 months). Amounts may be JSON numbers or strings.

KEY FEATURES:
  - Derives the window from start_date + months (inclusive end)
  - Fills debt limit and distribution from the factory defaults
  - Round-trips back to JSON with ToJSON

USAGE:
  f := factory.NewPlanFactory()
  plan, err := f.ParsePlan(`{"agent_id": "aziza", "total_target": 500000000, "start_date": "2025-01-01"}`)

  // Preset
  plan := f.QuarterlyPlan("aziza", sales.NewAmount(500_000_000), sales.NewDate(2025, 1, 1))

SEE ALSO:
  - sales/plan.go: Plan type and validation
  - api/scenarios.go: Demo plans built from presets
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gigo/sales-engine/sales"
)

// QuarterMonths is the default plan length.
const QuarterMonths = 3

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a plan.
type PlanJSON struct {
	AgentID              string                     `json:"agent_id"`
	TotalTarget          decimal.Decimal            `json:"total_target"`
	StartDate            string                     `json:"start_date"`
	EndDate              string                     `json:"end_date,omitempty"`
	Months               int                        `json:"months,omitempty"`
	DebtLimitPercent     *decimal.Decimal           `json:"debt_limit_percent,omitempty"`
	CategoryDistribution map[string]decimal.Decimal `json:"category_distribution,omitempty"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plans to sales.Plan.
type PlanFactory struct {
	Distribution     map[sales.Category]decimal.Decimal
	DebtLimitPercent decimal.Decimal
}

// NewPlanFactory creates a factory with the built-in defaults.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{
		Distribution:     sales.DefaultDistribution(),
		DebtLimitPercent: sales.DefaultDebtLimitPercent,
	}
}

// ParsePlan parses a JSON string into a Plan.
func (f *PlanFactory) ParsePlan(jsonStr string) (*sales.Plan, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PlanJSON to a Plan. The result is not validated against
// a category set; the service does that when the plan is stored.
func (f *PlanFactory) FromJSON(pj PlanJSON) (*sales.Plan, error) {
	if pj.StartDate == "" {
		return nil, &sales.ValidationError{Field: "start_date", Reason: "required"}
	}
	start, err := sales.ParseDate(pj.StartDate)
	if err != nil {
		return nil, &sales.ValidationError{Field: "start_date", Reason: err.Error()}
	}

	var end time.Time
	switch {
	case pj.EndDate != "":
		if end, err = sales.ParseDate(pj.EndDate); err != nil {
			return nil, &sales.ValidationError{Field: "end_date", Reason: err.Error()}
		}
	case pj.Months < 0:
		return nil, &sales.ValidationError{Field: "months", Reason: "must be > 0"}
	default:
		months := pj.Months
		if months == 0 {
			months = QuarterMonths
		}
		end = WindowEnd(start, months)
	}

	plan := &sales.Plan{
		AgentID:          sales.AgentID(pj.AgentID),
		TotalTarget:      pj.TotalTarget,
		CurrentTotal:     decimal.Zero,
		Window:           sales.Window{Start: start, End: end},
		DebtLimitPercent: f.DebtLimitPercent,
	}
	if pj.DebtLimitPercent != nil {
		plan.DebtLimitPercent = *pj.DebtLimitPercent
	}

	plan.CategoryDistribution = make(map[sales.Category]decimal.Decimal)
	if len(pj.CategoryDistribution) > 0 {
		for c, v := range pj.CategoryDistribution {
			plan.CategoryDistribution[sales.Category(c)] = v
		}
	} else {
		for c, v := range f.Distribution {
			plan.CategoryDistribution[c] = v
		}
	}
	return plan, nil
}

// ToJSON converts a Plan to PlanJSON, always with an explicit end date.
func (f *PlanFactory) ToJSON(p sales.Plan) PlanJSON {
	debt := p.DebtLimitPercent
	pj := PlanJSON{
		AgentID:              string(p.AgentID),
		TotalTarget:          p.TotalTarget,
		StartDate:            p.Window.Start.Format(sales.DateLayout),
		EndDate:              p.Window.End.Format(sales.DateLayout),
		DebtLimitPercent:     &debt,
		CategoryDistribution: make(map[string]decimal.Decimal, len(p.CategoryDistribution)),
	}
	for c, v := range p.CategoryDistribution {
		pj.CategoryDistribution[string(c)] = v
	}
	return pj
}

// =============================================================================
// PRESETS
// =============================================================================

// QuarterlyPlan builds a three-month plan starting at start with the factory defaults.
func (f *PlanFactory) QuarterlyPlan(agentID sales.AgentID, target decimal.Decimal, start time.Time) sales.Plan {
	start = sales.Date(start)
	dist := make(map[sales.Category]decimal.Decimal, len(f.Distribution))
	for c, v := range f.Distribution {
		dist[c] = v
	}
	return sales.Plan{
		AgentID:              agentID,
		TotalTarget:          target,
		CurrentTotal:         decimal.Zero,
		Window:               sales.Window{Start: start, End: WindowEnd(start, QuarterMonths)},
		DebtLimitPercent:     f.DebtLimitPercent,
		CategoryDistribution: dist,
	}
}

// WindowEnd is the last day of a window of months starting at start
// (e.g. 2025-01-01 + 3 months -> 2025-03-31).
func WindowEnd(start time.Time, months int) time.Time {
	return sales.Date(start).AddDate(0, months, -1)
}
