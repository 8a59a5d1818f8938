/*
approval.go - Report approval state machine

PURPOSE:
  Governs every report status change and the plan update each one
  requires. Each operation reads the current (report, plan) pair, checks
  the transition, computes the new state, and writes report, plan and an
  audit entry in a single transaction.

STATE MACHINE:

	          approve
	PENDING ──────────▶ APPROVED
	   │  ▲                 │
	   │  └──── edit ───────┘   (reverses the plan contribution)
	   │ reject
	   ▼
	REJECTED ── edit ──▶ PENDING  (edited report re-enters the queue)

  approve/reject require PENDING. Edit is allowed from any state and
  always lands in PENDING. Delete is allowed from any state.

PLAN RECONCILIATION:
  A report contributes its total to Plan.CurrentTotal only while it is
  APPROVED and dated inside the plan window (see Contribution). Every
  mutation captures the report before and after and applies:

	delta     strategy: CurrentTotal += Contribution(after) - Contribution(before), clamped at 0
	recompute strategy: CurrentTotal  = CountedTotal(plan, all agent reports)

  Approvals made while the agent has no plan are not lost: SetPlan always
  recomputes from the report set, so they are counted once a plan exists.

PERMISSIONS:
  submit           agent (the report belongs to the actor)
  edit             director (any report) or agent (own reports)
  approve, reject  director
  delete           director
  set plan         director
  reconcile        director

SEE ALSO:
  - aggregate.go: Contribution and CountedTotal
  - store.go: TxStore transaction boundary
*/
package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gigo/sales-engine/rewards"
)

// =============================================================================
// ACTIONS & TRANSITIONS
// =============================================================================

type Action string

const (
	ActionSubmit    Action = "submit"
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionEdit      Action = "edit"
	ActionDelete    Action = "delete"
	ActionSetPlan   Action = "set plan"
	ActionReconcile Action = "reconcile"
	ActionDashboard Action = "view dashboard"
)

// transitions lists, per action, the states it may start from and where it lands.
// Actions missing from the table (delete) don't change status.
var transitions = map[Action]struct {
	from map[Status]bool
	to   Status
}{
	ActionApprove: {from: map[Status]bool{StatusPending: true}, to: StatusApproved},
	ActionReject:  {from: map[Status]bool{StatusPending: true}, to: StatusRejected},
	ActionEdit: {
		from: map[Status]bool{StatusPending: true, StatusApproved: true, StatusRejected: true},
		to:   StatusPending,
	},
}

// NextStatus returns the status a report moves to under action, or an error
// if the action isn't allowed from the current status.
func NextStatus(r Report, action Action) (Status, error) {
	t, ok := transitions[action]
	if !ok {
		return r.Status, nil
	}
	if !t.from[r.Status] {
		return "", &InvalidTransitionError{ReportID: r.ID, From: r.Status, Action: action}
	}
	return t.to, nil
}

// Strategy selects how Plan.CurrentTotal is maintained.
type Strategy string

const (
	StrategyDelta     Strategy = "delta"
	StrategyRecompute Strategy = "recompute"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service runs the approval state machine against a TxStore.
type Service struct {
	Store      TxStore
	Categories []Category
	Strategy   Strategy
	Ladder     *rewards.Ladder

	// Distribution applied by SetPlan when the plan leaves it empty.
	DefaultDistribution map[Category]decimal.Decimal

	// Now and NewID are swappable for tests.
	Now   func() time.Time
	NewID func() string
}

// NewService creates a service with the default categories, delta strategy and default ladder.
func NewService(store TxStore) *Service {
	return &Service{
		Store:               store,
		Categories:          DefaultCategories,
		Strategy:            StrategyDelta,
		Ladder:              rewards.DefaultLadder(),
		DefaultDistribution: DefaultDistribution(),
		Now:                 func() time.Time { return time.Now().UTC() },
		NewID:               func() string { return uuid.NewString() },
	}
}

// Outcome is the persisted result of a mutating operation.
type Outcome struct {
	Report *Report // nil after delete
	Plan   *Plan   // nil when the agent has no plan

	// Delta is the signed change applied to Plan.CurrentTotal.
	Delta decimal.Decimal
}

// SubmitInput carries a new report's figures.
type SubmitInput struct {
	Date            time.Time
	CategoryAmounts CategoryAmounts
	DebtAmount      decimal.Decimal
}

// Submit creates a PENDING report owned by the acting agent.
func (s *Service) Submit(ctx context.Context, actor Actor, in SubmitInput) (*Report, error) {
	if actor.Role != RoleAgent {
		return nil, &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: ActionSubmit}
	}
	if in.Date.IsZero() {
		return nil, &ValidationError{Field: "date", Reason: "required"}
	}
	if err := ValidateAmounts(s.Categories, in.CategoryAmounts, in.DebtAmount); err != nil {
		return nil, err
	}

	now := s.Now()
	report := Report{
		ID:        ReportID(s.NewID()),
		AgentID:   AgentID(actor.ID),
		Date:      Date(in.Date),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	report.setAmounts(in.CategoryAmounts, in.DebtAmount)

	err := s.Store.WithTx(ctx, func(st Store) error {
		if err := st.PutReport(ctx, report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		return s.audit(ctx, st, actor, AuditReportSubmitted, report.AgentID, report.ID, map[string]string{
			"date":  report.Date.Format(DateLayout),
			"total": report.TotalAmount.String(),
			"debt":  report.DebtAmount.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("report_id", string(report.ID)).
		Str("agent_id", string(report.AgentID)).
		Str("total", report.TotalAmount.String()).
		Msg("report submitted")
	return &report, nil
}

// Approve moves a PENDING report to APPROVED and credits the plan.
func (s *Service) Approve(ctx context.Context, actor Actor, id ReportID) (*Outcome, error) {
	if actor.Role != RoleDirector {
		return nil, &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: ActionApprove}
	}
	return s.transition(ctx, actor, id, ActionApprove, func(r *Report) error {
		next, err := NextStatus(*r, ActionApprove)
		if err != nil {
			return err
		}
		r.Status = next
		return nil
	})
}

// Reject moves a PENDING report to REJECTED. Nothing was counted, so the plan is untouched.
func (s *Service) Reject(ctx context.Context, actor Actor, id ReportID) (*Outcome, error) {
	if actor.Role != RoleDirector {
		return nil, &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: ActionReject}
	}
	return s.transition(ctx, actor, id, ActionReject, func(r *Report) error {
		next, err := NextStatus(*r, ActionReject)
		if err != nil {
			return err
		}
		r.Status = next
		return nil
	})
}

// EditInput carries replacement figures for an existing report.
type EditInput struct {
	CategoryAmounts CategoryAmounts
	DebtAmount      decimal.Decimal
}

// EditAmounts replaces a report's figures. The report always returns to
// PENDING; if it was APPROVED its old total is first reversed from the plan.
func (s *Service) EditAmounts(ctx context.Context, actor Actor, id ReportID, in EditInput) (*Outcome, error) {
	if actor.Role != RoleDirector && actor.Role != RoleAgent {
		return nil, &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: ActionEdit}
	}
	if err := ValidateAmounts(s.Categories, in.CategoryAmounts, in.DebtAmount); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, id, ActionEdit, func(r *Report) error {
		if actor.Role == RoleAgent && r.AgentID != AgentID(actor.ID) {
			return &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: ActionEdit}
		}
		next, err := NextStatus(*r, ActionEdit)
		if err != nil {
			return err
		}
		r.setAmounts(in.CategoryAmounts, in.DebtAmount)
		r.Status = next
		r.LastEditedBy = actor.Name
		return nil
	})
}

// Delete removes a report, reversing its contribution if it was counted.
func (s *Service) Delete(ctx context.Context, actor Actor, id ReportID) (*Outcome, error) {
	if actor.Role != RoleDirector {
		return nil, &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: ActionDelete}
	}
	return s.transition(ctx, actor, id, ActionDelete, nil)
}

// transition is the shared read-modify-write for every report mutation.
// A nil mutate means delete.
func (s *Service) transition(
	ctx context.Context,
	actor Actor,
	id ReportID,
	action Action,
	mutate func(*Report) error,
) (*Outcome, error) {
	var out Outcome

	err := s.Store.WithTx(ctx, func(st Store) error {
		current, err := st.GetReport(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load report: %w", err)
		}
		if current == nil {
			return &NotFoundError{Kind: "report", ID: string(id)}
		}
		before := current.Clone()

		var after *Report
		if mutate != nil {
			next := current.Clone()
			if err := mutate(&next); err != nil {
				return err
			}
			next.UpdatedAt = s.Now()
			after = &next
		}

		plan, err := st.GetPlan(ctx, before.AgentID)
		if err != nil {
			return fmt.Errorf("failed to load plan: %w", err)
		}

		if after != nil {
			if err := st.PutReport(ctx, *after); err != nil {
				return fmt.Errorf("failed to save report: %w", err)
			}
		} else {
			if err := st.DeleteReport(ctx, id); err != nil {
				return fmt.Errorf("failed to delete report: %w", err)
			}
		}

		if plan != nil {
			delta, err := s.reconcilePlan(ctx, st, plan, &before, after)
			if err != nil {
				return err
			}
			out.Plan = plan
			out.Delta = delta
		}
		out.Report = after

		return s.audit(ctx, st, actor, auditActionFor(action), before.AgentID, id, transitionPayload(before, after, out.Delta))
	})
	if err != nil {
		return nil, err
	}

	ev := zerolog.Ctx(ctx).Debug().
		Str("report_id", string(id)).
		Str("action", string(action)).
		Str("delta", out.Delta.String())
	if out.Plan != nil {
		ev = ev.Str("current_total", out.Plan.CurrentTotal.String())
	}
	ev.Msg("report transition")

	return &out, nil
}

// reconcilePlan brings plan.CurrentTotal in line with the report change and
// persists the plan. Returns the signed change applied.
func (s *Service) reconcilePlan(ctx context.Context, st Store, plan *Plan, before, after *Report) (decimal.Decimal, error) {
	previous := plan.CurrentTotal

	switch s.Strategy {
	case StrategyRecompute:
		reports, err := st.ListReports(ctx, ReportFilter{AgentID: plan.AgentID})
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to list reports: %w", err)
		}
		plan.CurrentTotal = CountedTotal(*plan, reports)
	default:
		delta := Contribution(plan, after).Sub(Contribution(plan, before))
		if delta.IsZero() {
			return decimal.Zero, nil
		}
		plan.CurrentTotal = clampZero(plan.CurrentTotal.Add(delta))
	}

	applied := plan.CurrentTotal.Sub(previous)
	if applied.IsZero() {
		return applied, nil
	}
	plan.UpdatedAt = s.Now()
	if err := st.PutPlan(ctx, *plan); err != nil {
		return decimal.Zero, fmt.Errorf("failed to save plan: %w", err)
	}
	return applied, nil
}

// =============================================================================
// PLANS
// =============================================================================

// SetPlan creates or replaces an agent's plan. CurrentTotal is always
// recomputed from the report set, which also credits approvals made while
// the agent had no plan.
//
// DebtLimitPercent is stored as given: zero means no debt is tolerated.
// Partial input goes through factory.PlanFactory, which fills the default.
func (s *Service) SetPlan(ctx context.Context, actor Actor, plan Plan) (*Plan, error) {
	if actor.Role != RoleDirector {
		return nil, &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: ActionSetPlan}
	}

	p := plan.Clone()
	p.Window = Window{Start: Date(p.Window.Start), End: Date(p.Window.End)}
	if len(p.CategoryDistribution) == 0 {
		p.CategoryDistribution = make(map[Category]decimal.Decimal, len(s.DefaultDistribution))
		for k, v := range s.DefaultDistribution {
			p.CategoryDistribution[k] = v
		}
	}
	if err := ValidatePlan(s.Categories, p); err != nil {
		return nil, err
	}

	err := s.Store.WithTx(ctx, func(st Store) error {
		existing, err := st.GetPlan(ctx, p.AgentID)
		if err != nil {
			return fmt.Errorf("failed to load plan: %w", err)
		}
		now := s.Now()
		p.CreatedAt = now
		if existing != nil {
			p.CreatedAt = existing.CreatedAt
		}
		p.UpdatedAt = now

		reports, err := st.ListReports(ctx, ReportFilter{AgentID: p.AgentID})
		if err != nil {
			return fmt.Errorf("failed to list reports: %w", err)
		}
		p.CurrentTotal = CountedTotal(p, reports)

		if err := st.PutPlan(ctx, p); err != nil {
			return fmt.Errorf("failed to save plan: %w", err)
		}
		return s.audit(ctx, st, actor, AuditPlanUpdated, p.AgentID, "", map[string]string{
			"total_target":  p.TotalTarget.String(),
			"window":        p.Window.String(),
			"current_total": p.CurrentTotal.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlan returns the agent's plan or a NotFoundError.
func (s *Service) GetPlan(ctx context.Context, agentID AgentID) (*Plan, error) {
	p, err := s.Store.GetPlan(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &NotFoundError{Kind: "plan", ID: string(agentID)}
	}
	return p, nil
}

// GetReport returns a report or a NotFoundError.
func (s *Service) GetReport(ctx context.Context, id ReportID) (*Report, error) {
	r, err := s.Store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, &NotFoundError{Kind: "report", ID: string(id)}
	}
	return r, nil
}

// Reconciliation reports a from-scratch recomputation of CurrentTotal.
type Reconciliation struct {
	AgentID AgentID
	Before  decimal.Decimal
	After   decimal.Decimal
	Drift   decimal.Decimal // After - Before
	Plan    Plan
}

// Reconcile recomputes the agent's CurrentTotal from the report set. With
// apply=false nothing is written.
func (s *Service) Reconcile(ctx context.Context, actor Actor, agentID AgentID, apply bool) (*Reconciliation, error) {
	if actor.Role != RoleDirector {
		return nil, &PermissionError{ActorID: actor.ID, Role: actor.Role, Action: ActionReconcile}
	}

	var rec Reconciliation
	err := s.Store.WithTx(ctx, func(st Store) error {
		plan, err := st.GetPlan(ctx, agentID)
		if err != nil {
			return fmt.Errorf("failed to load plan: %w", err)
		}
		if plan == nil {
			return &NotFoundError{Kind: "plan", ID: string(agentID)}
		}
		reports, err := st.ListReports(ctx, ReportFilter{AgentID: agentID})
		if err != nil {
			return fmt.Errorf("failed to list reports: %w", err)
		}

		rec.AgentID = agentID
		rec.Before = plan.CurrentTotal
		rec.After = CountedTotal(*plan, reports)
		rec.Drift = rec.After.Sub(rec.Before)
		plan.CurrentTotal = rec.After
		rec.Plan = *plan

		if !apply || rec.Drift.IsZero() {
			return nil
		}
		plan.UpdatedAt = s.Now()
		rec.Plan = *plan
		if err := st.PutPlan(ctx, *plan); err != nil {
			return fmt.Errorf("failed to save plan: %w", err)
		}
		return s.audit(ctx, st, actor, AuditPlanReconciled, agentID, "", map[string]string{
			"before": rec.Before.String(),
			"after":  rec.After.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	if !rec.Drift.IsZero() {
		zerolog.Ctx(ctx).Warn().
			Str("agent_id", string(agentID)).
			Str("before", rec.Before.String()).
			Str("after", rec.After.String()).
			Bool("applied", apply).
			Msg("plan total drift")
	}
	return &rec, nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (s *Service) audit(ctx context.Context, st Store, actor Actor, action AuditAction, agentID AgentID, reportID ReportID, payload map[string]string) error {
	entry := AuditEntry{
		ID:        s.NewID(),
		Timestamp: s.Now(),
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Action:    action,
		AgentID:   agentID,
		ReportID:  reportID,
		Payload:   payload,
	}
	if err := st.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func auditActionFor(a Action) AuditAction {
	switch a {
	case ActionApprove:
		return AuditReportApproved
	case ActionReject:
		return AuditReportRejected
	case ActionEdit:
		return AuditReportEdited
	case ActionDelete:
		return AuditReportDeleted
	}
	return AuditAction(a)
}

func transitionPayload(before Report, after *Report, delta decimal.Decimal) map[string]string {
	p := map[string]string{
		"from_status": string(before.Status),
		"old_total":   before.TotalAmount.String(),
		"plan_delta":  delta.String(),
	}
	if after != nil {
		p["to_status"] = string(after.Status)
		p["new_total"] = after.TotalAmount.String()
	}
	return p
}
