/*
Package sales provides the report-approval and plan-aggregation engine.

PURPOSE:
  Agents submit sales reports, a director approves or rejects them, and
  approved totals roll up into the agent's plan. This package holds the
  rules that decide how each report affects the plan's running total and
  how that total maps to category quotas, the debt ceiling and bonus tiers.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount helpers: money is always decimal.Decimal, never float64
  - Category: the fixed product lines a report is broken down by
  - Status: the closed set of report states
  - Actor / Role: who is performing an operation
  - Identifiers: type-safe report and agent IDs

DESIGN PRINCIPLES:
  1. Precision: decimal arithmetic for every amount and ratio
  2. Closed enums: exactly three report states, two roles
  3. Explicit state: callers pass collections in, nothing is global
  4. Atomicity: every mutation runs inside one TxStore transaction

SEE ALSO:
  - report.go: Report record and validation
  - plan.go: Plan record and validation
  - aggregate.go: Pure aggregation functions
  - approval.go: The approval state machine
*/
package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNTS
// =============================================================================

// hundred is used for every percentage conversion.
var hundred = decimal.NewFromInt(100)

// NewAmount builds a money amount from an integer number of so'm.
func NewAmount(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// MustParseAmount parses a decimal string and panics on malformed input.
// For literals; stored or user input goes through decimal.NewFromString.
func MustParseAmount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// clampZero returns d, or zero when d is negative.
func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ReportID string
type AgentID string

// =============================================================================
// CATEGORIES
// =============================================================================

// Category is a product line reported on every sales report.
type Category string

const (
	CategoryQurt      Category = "qurt"
	CategoryToys      Category = "toys"
	CategoryMilchofka Category = "milchofka"
)

// DefaultCategories is the fixed key set a report must carry.
var DefaultCategories = []Category{CategoryQurt, CategoryToys, CategoryMilchofka}

// CategoryAmounts maps each category to the amount sold.
type CategoryAmounts map[Category]decimal.Decimal

// Sum returns the total over all categories.
func (c CategoryAmounts) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, v := range c {
		total = total.Add(v)
	}
	return total
}

// Clone returns an independent copy.
func (c CategoryAmounts) Clone() CategoryAmounts {
	out := make(CategoryAmounts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// =============================================================================
// STATUS
// =============================================================================

// Status is the approval state of a report.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// ParseStatus accepts the canonical upper-case names and their lower-case forms.
func ParseStatus(s string) (Status, bool) {
	switch s {
	case "PENDING", "pending":
		return StatusPending, true
	case "APPROVED", "approved":
		return StatusApproved, true
	case "REJECTED", "rejected":
		return StatusRejected, true
	}
	return "", false
}

// =============================================================================
// ACTORS
// =============================================================================

type Role string

const (
	RoleDirector Role = "director"
	RoleAgent    Role = "agent"
)

// Actor is whoever performs an operation, as supplied by the identity layer.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// System is used for operations not triggered by a person (scenario loading).
var System = Actor{ID: "system", Name: "system", Role: RoleDirector}

// =============================================================================
// DATES
// =============================================================================

const DateLayout = "2006-01-02"

// Date truncates t to a calendar day in UTC.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewDate builds a UTC calendar date.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Date(t), nil
}
