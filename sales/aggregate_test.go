package sales

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func amounts(qurt, toys, milch int64) CategoryAmounts {
	return CategoryAmounts{
		CategoryQurt:      NewAmount(qurt),
		CategoryToys:      NewAmount(toys),
		CategoryMilchofka: NewAmount(milch),
	}
}

func report(id string, agent AgentID, date time.Time, status Status, a CategoryAmounts, debt int64) Report {
	r := Report{ID: ReportID(id), AgentID: agent, Date: date, Status: status}
	r.setAmounts(a, NewAmount(debt))
	return r
}

func quarterPlan(agent AgentID, target int64) Plan {
	return Plan{
		AgentID:              agent,
		TotalTarget:          NewAmount(target),
		Window:               Window{Start: NewDate(2025, time.January, 1), End: NewDate(2025, time.March, 31)},
		DebtLimitPercent:     NewAmount(7),
		CategoryDistribution: DefaultDistribution(),
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, MustParseAmount(want).String(), got.String(), msgAndArgs...)
}

// =============================================================================
// AGGREGATION
// =============================================================================

func TestApprovedTotal_OnlyCountsApproved(t *testing.T) {
	d := NewDate(2025, time.January, 10)
	reports := []Report{
		report("r1", "a", d, StatusApproved, amounts(10, 20, 0), 0),
		report("r2", "a", d, StatusPending, amounts(100, 0, 0), 0),
		report("r3", "a", d, StatusRejected, amounts(0, 0, 50), 0),
		report("r4", "a", d, StatusApproved, amounts(1, 1, 1), 0),
	}

	assertDecimal(t, "33", ApprovedTotal(reports))
}

func TestCategoryBreakdown_SumsApprovedPerCategory(t *testing.T) {
	d := NewDate(2025, time.January, 10)
	reports := []Report{
		report("r1", "a", d, StatusApproved, amounts(10, 20, 0), 0),
		report("r2", "a", d, StatusApproved, amounts(5, 0, 7), 0),
		report("r3", "a", d, StatusPending, amounts(1000, 1000, 1000), 0),
	}

	b := CategoryBreakdown(reports)
	assertDecimal(t, "15", b[CategoryQurt])
	assertDecimal(t, "20", b[CategoryToys])
	assertDecimal(t, "7", b[CategoryMilchofka])
}

func TestDebtRatio_ZeroWithoutApprovedSales(t *testing.T) {
	d := NewDate(2025, time.January, 10)
	reports := []Report{report("r1", "a", d, StatusPending, amounts(100, 0, 0), 50)}

	assert.True(t, DebtRatio(reports).IsZero())
	assert.True(t, DebtRatio(nil).IsZero())
}

func TestIsDebtOverLimit_Boundary(t *testing.T) {
	// GIVEN: total 1000 and a 7% limit
	// WHEN: debt is exactly 70, then 71
	// THEN: 70 is at the limit (not over), 71 is over

	plan := quarterPlan("a", 1_000_000)
	d := NewDate(2025, time.January, 10)

	atLimit := []Report{report("r1", "a", d, StatusApproved, amounts(1000, 0, 0), 70)}
	assertDecimal(t, "7", DebtRatio(atLimit))
	assert.False(t, IsDebtOverLimit(&plan, DebtRatio(atLimit)))

	over := []Report{report("r1", "a", d, StatusApproved, amounts(1000, 0, 0), 71)}
	assert.True(t, IsDebtOverLimit(&plan, DebtRatio(over)))

	assert.False(t, IsDebtOverLimit(nil, DebtRatio(over)), "no plan means no limit")
}

func TestProgressPercent(t *testing.T) {
	plan := quarterPlan("a", 500_000_000)

	assertDecimal(t, "86", ProgressPercent(&plan, NewAmount(430_000_000)))
	assert.True(t, ProgressPercent(nil, NewAmount(100)).IsZero(), "absent plan -> 0")
}

func TestCategoryTarget_UsesDistribution(t *testing.T) {
	plan := quarterPlan("a", 500_000_000)

	assertDecimal(t, "75000000", CategoryTarget(plan, CategoryQurt))
	assertDecimal(t, "200000000", CategoryTarget(plan, CategoryToys))
	assertDecimal(t, "225000000", CategoryTarget(plan, CategoryMilchofka))
}

func TestContribution(t *testing.T) {
	plan := quarterPlan("a", 1000)
	in := NewDate(2025, time.February, 1)

	approved := report("r1", "a", in, StatusApproved, amounts(10, 20, 0), 0)
	pending := report("r2", "a", in, StatusPending, amounts(10, 20, 0), 0)
	outside := report("r3", "a", NewDate(2025, time.April, 1), StatusApproved, amounts(10, 20, 0), 0)
	otherAgent := report("r4", "b", in, StatusApproved, amounts(10, 20, 0), 0)
	lastDay := report("r5", "a", NewDate(2025, time.March, 31), StatusApproved, amounts(1, 0, 0), 0)

	assertDecimal(t, "30", Contribution(&plan, &approved))
	assert.True(t, Contribution(&plan, &pending).IsZero())
	assert.True(t, Contribution(&plan, &outside).IsZero())
	assert.True(t, Contribution(&plan, &otherAgent).IsZero())
	assertDecimal(t, "1", Contribution(&plan, &lastDay), "window end is inclusive")
	assert.True(t, Contribution(nil, &approved).IsZero())
	assert.True(t, Contribution(&plan, nil).IsZero())

	all := []Report{approved, pending, outside, otherAgent, lastDay}
	assertDecimal(t, "31", CountedTotal(plan, all))
	assert.Len(t, InWindow(plan, all), 3)
}

func TestProgressBand(t *testing.T) {
	tests := []struct {
		percent string
		want    Band
	}{
		{"0", BandBehind},
		{"50.99", BandBehind},
		{"51", BandAtRisk},
		{"85.9", BandAtRisk},
		{"86", BandOnTrack},
		{"120", BandOnTrack},
	}
	for _, tt := range tests {
		t.Run(tt.percent, func(t *testing.T) {
			assert.Equal(t, tt.want, ProgressBand(MustParseAmount(tt.percent)))
		})
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidateAmounts(t *testing.T) {
	tests := []struct {
		name    string
		amounts CategoryAmounts
		debt    int64
		field   string
	}{
		{"valid", amounts(10, 20, 0), 5, ""},
		{"all zero", amounts(0, 0, 0), 0, "category_amounts"},
		{"negative amount", amounts(10, -1, 0), 0, "category_amounts.toys"},
		{"negative debt", amounts(10, 0, 0), -1, "debt_amount"},
		{"debt above total", amounts(10, 0, 0), 11, "debt_amount"},
		{"missing category", CategoryAmounts{CategoryQurt: NewAmount(10), CategoryToys: NewAmount(1)}, 0, "category_amounts.milchofka"},
		{"unknown category", CategoryAmounts{
			CategoryQurt: NewAmount(1), CategoryToys: NewAmount(1), CategoryMilchofka: NewAmount(1), "candy": NewAmount(1),
		}, 0, "category_amounts.candy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAmounts(DefaultCategories, tt.amounts, NewAmount(tt.debt))
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestValidatePlan(t *testing.T) {
	valid := quarterPlan("a", 1000)
	require.NoError(t, ValidatePlan(DefaultCategories, valid))

	zeroTarget := valid.Clone()
	zeroTarget.TotalTarget = decimal.Zero
	assert.ErrorIs(t, ValidatePlan(DefaultCategories, zeroTarget), ErrValidation)

	reversed := valid.Clone()
	reversed.Window = Window{Start: valid.Window.End, End: valid.Window.Start}
	assert.ErrorIs(t, ValidatePlan(DefaultCategories, reversed), ErrValidation)

	badDebt := valid.Clone()
	badDebt.DebtLimitPercent = NewAmount(101)
	assert.ErrorIs(t, ValidatePlan(DefaultCategories, badDebt), ErrValidation)

	badDist := valid.Clone()
	badDist.CategoryDistribution[CategoryQurt] = NewAmount(16)
	err := ValidatePlan(DefaultCategories, badDist)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "category_distribution", verr.Field)
}

// =============================================================================
// PACING & WINDOWS
// =============================================================================

func TestPlanPacing_Quarter(t *testing.T) {
	plan := quarterPlan("a", 900_000_000) // Jan 1 - Mar 31 2025, 90 days

	assert.Equal(t, 90, plan.Window.Days())
	assert.Equal(t, 3, plan.Window.Months())
	assertDecimal(t, "10000000", plan.DailyTarget())
	assertDecimal(t, "300000000", plan.MonthlyTarget())

	assert.Equal(t, 90, plan.DaysRemaining(NewDate(2024, time.December, 1)), "before start: whole window")
	assert.Equal(t, 90, plan.DaysRemaining(NewDate(2025, time.January, 1)), "first day: whole window")
	assert.Equal(t, 31, plan.DaysRemaining(NewDate(2025, time.March, 1)), "today counts")
	assert.Equal(t, 1, plan.DaysRemaining(NewDate(2025, time.March, 31)), "last day still counts")
	assert.Equal(t, 0, plan.DaysRemaining(NewDate(2025, time.April, 1)))
	assert.Equal(t, 0, plan.DaysRemaining(NewDate(2025, time.May, 1)))
}

func TestWindowMonths_PartialMonthCounts(t *testing.T) {
	w := Window{Start: NewDate(2025, time.January, 15), End: NewDate(2025, time.February, 20)}
	assert.Equal(t, 2, w.Months())

	short := Window{Start: NewDate(2025, time.January, 1), End: NewDate(2025, time.January, 10)}
	assert.Equal(t, 1, short.Months())
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func TestNextStatus(t *testing.T) {
	tests := []struct {
		from   Status
		action Action
		want   Status
		ok     bool
	}{
		{StatusPending, ActionApprove, StatusApproved, true},
		{StatusPending, ActionReject, StatusRejected, true},
		{StatusApproved, ActionApprove, "", false},
		{StatusApproved, ActionReject, "", false},
		{StatusRejected, ActionApprove, "", false},
		{StatusRejected, ActionReject, "", false},
		{StatusPending, ActionEdit, StatusPending, true},
		{StatusApproved, ActionEdit, StatusPending, true},
		{StatusRejected, ActionEdit, StatusPending, true},
		{StatusApproved, ActionDelete, StatusApproved, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, err := NextStatus(Report{ID: "r1", Status: tt.from}, tt.action)
			if !tt.ok {
				var terr *InvalidTransitionError
				require.ErrorAs(t, err, &terr)
				assert.Equal(t, tt.from, terr.From)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
