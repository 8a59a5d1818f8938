package sales

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/gigo/sales-engine/rewards"
)

// dashboardConcurrency bounds how many agent summaries are built at once.
const dashboardConcurrency = 8

// =============================================================================
// PROGRESS SUMMARY
// =============================================================================

// CategoryProgress is one product line's actual sales against its quota.
type CategoryProgress struct {
	Category Category
	Actual   decimal.Decimal
	Target   decimal.Decimal
	Percent  decimal.Decimal
}

// Progress is everything the dashboard shows for one agent.
type Progress struct {
	AgentID AgentID
	AsOf    time.Time
	Plan    *Plan // nil when the agent has no plan

	ApprovedTotal   decimal.Decimal
	ProgressPercent decimal.Decimal
	Band            Band
	Categories      []CategoryProgress

	DebtTotal     decimal.Decimal
	DebtRatio     decimal.Decimal
	DebtOverLimit bool

	PendingCount  int
	DaysRemaining int
	DailyTarget   decimal.Decimal
	MonthlyTarget decimal.Decimal

	Bonus rewards.Standing
}

// Summarize builds a Progress from a plan and the agent's reports.
// When a plan exists only reports dated in its window are considered.
func Summarize(categories []Category, ladder *rewards.Ladder, agentID AgentID, plan *Plan, reports []Report, asOf time.Time) Progress {
	considered := reports
	if plan != nil {
		considered = InWindow(*plan, reports)
	}

	p := Progress{
		AgentID:       agentID,
		AsOf:          Date(asOf),
		Plan:          plan,
		ApprovedTotal: ApprovedTotal(considered),
		DebtTotal:     DebtTotal(considered),
		DebtRatio:     DebtRatio(considered),
		DailyTarget:   decimal.Zero,
		MonthlyTarget: decimal.Zero,
	}
	p.ProgressPercent = ProgressPercent(plan, p.ApprovedTotal)
	p.Band = ProgressBand(p.ProgressPercent)
	p.DebtOverLimit = IsDebtOverLimit(plan, p.DebtRatio)

	for _, r := range considered {
		if r.Status == StatusPending {
			p.PendingCount++
		}
	}

	breakdown := CategoryBreakdown(considered)
	for _, c := range categories {
		cp := CategoryProgress{Category: c, Actual: breakdown[c], Target: decimal.Zero, Percent: decimal.Zero}
		if plan != nil {
			cp.Target = CategoryTarget(*plan, c)
			if cp.Target.IsPositive() {
				cp.Percent = cp.Actual.Mul(hundred).Div(cp.Target)
			}
		}
		p.Categories = append(p.Categories, cp)
	}

	target := decimal.Zero
	if plan != nil {
		target = plan.TotalTarget
		p.DaysRemaining = plan.DaysRemaining(asOf)
		p.DailyTarget = plan.DailyTarget()
		p.MonthlyTarget = plan.MonthlyTarget()
	}
	if ladder != nil {
		p.Bonus = ladder.Evaluate(p.ProgressPercent, target, p.ApprovedTotal)
	}
	return p
}

// Progress loads the agent's plan and reports and summarizes them.
func (s *Service) Progress(ctx context.Context, agentID AgentID, asOf time.Time) (*Progress, error) {
	plan, err := s.Store.GetPlan(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	reports, err := s.Store.ListReports(ctx, ReportFilter{AgentID: agentID})
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	if plan == nil && len(reports) == 0 {
		return nil, &NotFoundError{Kind: "agent", ID: string(agentID)}
	}

	p := Summarize(s.Categories, s.Ladder, agentID, plan, reports, asOf)
	return &p, nil
}

// =============================================================================
// DASHBOARD - Director overview across every planned agent
// =============================================================================

type Dashboard struct {
	AsOf         time.Time
	Agents       []Progress
	TeamTarget   decimal.Decimal
	TeamApproved decimal.Decimal
	TeamPercent  decimal.Decimal
	PendingCount int
}

// Dashboard summarizes every agent with a plan. Summaries are built
// concurrently; the result is ordered by agent ID.
func (s *Service) Dashboard(ctx context.Context, actor Actor, asOf time.Time) (*Dashboard, error) {
	if actor.Role != RoleDirector {
		return nil, &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: ActionDashboard}
	}

	plans, err := s.Store.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	summaries := make([]Progress, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardConcurrency)
	for i := range plans {
		plan := plans[i]
		g.Go(func() error {
			reports, err := s.Store.ListReports(gctx, ReportFilter{AgentID: plan.AgentID})
			if err != nil {
				return fmt.Errorf("agent %s: %w", plan.AgentID, err)
			}
			summaries[i] = Summarize(s.Categories, s.Ladder, plan.AgentID, &plan, reports, asOf)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].AgentID < summaries[j].AgentID })

	d := &Dashboard{
		AsOf:         Date(asOf),
		Agents:       summaries,
		TeamTarget:   decimal.Zero,
		TeamApproved: decimal.Zero,
		TeamPercent:  decimal.Zero,
	}
	for _, p := range summaries {
		d.TeamTarget = d.TeamTarget.Add(p.Plan.TotalTarget)
		d.TeamApproved = d.TeamApproved.Add(p.ApprovedTotal)
		d.PendingCount += p.PendingCount
	}
	if d.TeamTarget.IsPositive() {
		d.TeamPercent = d.TeamApproved.Mul(hundred).Div(d.TeamTarget)
	}
	return d, nil
}
