/*
Package rewards provides the bonus ladder: milestone prizes unlocked as an
agent's plan progress crosses percentage thresholds.

PURPOSE:
  A ladder is an ordered list of tiers. Each tier has a threshold
  (percentage of plan completion) and an opaque prize label. Evaluating a
  ladder against a progress percentage tells the dashboard which prizes are
  reached, which one is current, and how far the next one is.

PURELY A READ TRANSFORM:
  The ladder never changes plan or report state. It consumes the output of
  the aggregation engine (progress percent, approved total, target).

DEFAULT LADDER:
  85%  -> Washing machine
  90%  -> Refrigerator
  100% -> Air conditioner + mystery box

LOADING:
  Tiers can be supplied in YAML:

    tiers:
      - threshold: 85
        prize: Washing machine
      - threshold: 90
        prize: Refrigerator

SEE ALSO:
  - ladder.go: Ladder construction and evaluation
  - sales/progress.go: Attaches a Standing to every progress summary
*/
package rewards

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// TIER
// =============================================================================

// Tier maps a progress threshold to a prize.
type Tier struct {
	Threshold decimal.Decimal `yaml:"threshold" json:"threshold"`
	Prize     string          `yaml:"prize" json:"prize"`
}

// DefaultTiers is the quarterly milestone ladder.
func DefaultTiers() []Tier {
	return []Tier{
		{Threshold: decimal.NewFromInt(85), Prize: "Washing machine"},
		{Threshold: decimal.NewFromInt(90), Prize: "Refrigerator"},
		{Threshold: decimal.NewFromInt(100), Prize: "Air conditioner + mystery box"},
	}
}

// =============================================================================
// STANDING - Result of evaluating a ladder
// =============================================================================

// Standing is where an agent sits on the ladder.
type Standing struct {
	// Reached holds every tier with Threshold <= progress, ascending.
	Reached []Tier

	// Current is the highest reached tier, nil if none.
	Current *Tier

	// Next is the lowest unreached tier, nil if all are reached.
	Next *Tier

	// Remaining is Next.Threshold - progress in percentage points (zero without Next).
	Remaining decimal.Decimal

	// RemainingAmount is the money still needed to reach Next, clamped to zero.
	RemainingAmount decimal.Decimal
}

// ReachedPrizes lists the prize labels of every reached tier.
func (s Standing) ReachedPrizes() []string {
	out := make([]string, 0, len(s.Reached))
	for _, t := range s.Reached {
		out = append(out, t.Prize)
	}
	return out
}
