/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  Every amount is a decimal.Decimal. Requests accept JSON numbers or
  strings; responses always emit strings so no precision is lost in
  JavaScript clients.

VALIDATION:
  Validation is done by the sales service, not in DTOs. DTOs are pure data
  carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON (request body for PUT /api/plans/{agentID})
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gigo/sales-engine/rewards"
	"github.com/gigo/sales-engine/sales"
)

// =============================================================================
// REPORTS
// =============================================================================

// ReportDTO represents a report in API responses.
type ReportDTO struct {
	ID              string                     `json:"id"`
	AgentID         string                     `json:"agent_id"`
	Date            string                     `json:"date"`
	CategoryAmounts map[string]decimal.Decimal `json:"category_amounts"`
	DebtAmount      decimal.Decimal            `json:"debt_amount"`
	TotalAmount     decimal.Decimal            `json:"total_amount"`
	Status          string                     `json:"status"`
	LastEditedBy    string                     `json:"last_edited_by,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// SubmitReportRequest is the body of POST /api/reports. Date defaults to today.
type SubmitReportRequest struct {
	Date            string                     `json:"date,omitempty"`
	CategoryAmounts map[string]decimal.Decimal `json:"category_amounts"`
	DebtAmount      decimal.Decimal            `json:"debt_amount"`
}

// EditReportRequest is the body of PUT /api/reports/{id}.
type EditReportRequest struct {
	CategoryAmounts map[string]decimal.Decimal `json:"category_amounts"`
	DebtAmount      decimal.Decimal            `json:"debt_amount"`
}

// TransitionResponse is returned by approve, reject, edit and delete.
type TransitionResponse struct {
	Report    *ReportDTO      `json:"report,omitempty"`
	Plan      *PlanDTO        `json:"plan,omitempty"`
	PlanDelta decimal.Decimal `json:"plan_delta"`
}

// =============================================================================
// PLANS
// =============================================================================

// PlanDTO represents a plan with its pacing figures.
type PlanDTO struct {
	AgentID              string                     `json:"agent_id"`
	TotalTarget          decimal.Decimal            `json:"total_target"`
	CurrentTotal         decimal.Decimal            `json:"current_total"`
	StartDate            string                     `json:"start_date"`
	EndDate              string                     `json:"end_date"`
	DebtLimitPercent     decimal.Decimal            `json:"debt_limit_percent"`
	CategoryDistribution map[string]decimal.Decimal `json:"category_distribution"`
	DailyTarget          decimal.Decimal            `json:"daily_target"`
	MonthlyTarget        decimal.Decimal            `json:"monthly_target"`
	CreatedAt            time.Time                  `json:"created_at"`
	UpdatedAt            time.Time                  `json:"updated_at"`
}

// ReconcileResponse reports a recomputation of the plan total.
type ReconcileResponse struct {
	AgentID string          `json:"agent_id"`
	Before  decimal.Decimal `json:"before"`
	After   decimal.Decimal `json:"after"`
	Drift   decimal.Decimal `json:"drift"`
	Applied bool            `json:"applied"`
}

// =============================================================================
// PROGRESS
// =============================================================================

type CategoryProgressDTO struct {
	Category string          `json:"category"`
	Actual   decimal.Decimal `json:"actual"`
	Target   decimal.Decimal `json:"target"`
	Percent  decimal.Decimal `json:"percent"`
}

type TierDTO struct {
	Threshold decimal.Decimal `json:"threshold"`
	Prize     string          `json:"prize"`
}

type BonusDTO struct {
	Reached         []TierDTO       `json:"reached"`
	Current         *TierDTO        `json:"current,omitempty"`
	Next            *TierDTO        `json:"next,omitempty"`
	Remaining       decimal.Decimal `json:"remaining"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}

// ProgressDTO is one agent's dashboard card.
type ProgressDTO struct {
	AgentID         string                `json:"agent_id"`
	AsOf            string                `json:"as_of"`
	Plan            *PlanDTO              `json:"plan,omitempty"`
	ApprovedTotal   decimal.Decimal       `json:"approved_total"`
	ProgressPercent decimal.Decimal       `json:"progress_percent"`
	Band            string                `json:"band"`
	Categories      []CategoryProgressDTO `json:"categories"`
	DebtTotal       decimal.Decimal       `json:"debt_total"`
	DebtRatio       decimal.Decimal       `json:"debt_ratio"`
	DebtOverLimit   bool                  `json:"debt_over_limit"`
	PendingCount    int                   `json:"pending_count"`
	DaysRemaining   int                   `json:"days_remaining"`
	DailyTarget     decimal.Decimal       `json:"daily_target"`
	MonthlyTarget   decimal.Decimal       `json:"monthly_target"`
	Bonus           BonusDTO              `json:"bonus"`
}

type DashboardDTO struct {
	AsOf         string          `json:"as_of"`
	Agents       []ProgressDTO   `json:"agents"`
	TeamTarget   decimal.Decimal `json:"team_target"`
	TeamApproved decimal.Decimal `json:"team_approved"`
	TeamPercent  decimal.Decimal `json:"team_percent"`
	PendingCount int             `json:"pending_count"`
}

// =============================================================================
// AUDIT & SCENARIOS
// =============================================================================

type AuditEntryDTO struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	ActorID   string            `json:"actor_id"`
	ActorName string            `json:"actor_name,omitempty"`
	Action    string            `json:"action"`
	AgentID   string            `json:"agent_id,omitempty"`
	ReportID  string            `json:"report_id,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toReportDTO(r sales.Report) ReportDTO {
	amounts := make(map[string]decimal.Decimal, len(r.CategoryAmounts))
	for c, v := range r.CategoryAmounts {
		amounts[string(c)] = v
	}
	return ReportDTO{
		ID:              string(r.ID),
		AgentID:         string(r.AgentID),
		Date:            r.Date.Format(sales.DateLayout),
		CategoryAmounts: amounts,
		DebtAmount:      r.DebtAmount,
		TotalAmount:     r.TotalAmount,
		Status:          string(r.Status),
		LastEditedBy:    r.LastEditedBy,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func toReportDTOs(reports []sales.Report) []ReportDTO {
	out := make([]ReportDTO, 0, len(reports))
	for _, r := range reports {
		out = append(out, toReportDTO(r))
	}
	return out
}

func toCategoryAmounts(m map[string]decimal.Decimal) sales.CategoryAmounts {
	out := make(sales.CategoryAmounts, len(m))
	for c, v := range m {
		out[sales.Category(c)] = v
	}
	return out
}

func toPlanDTO(p sales.Plan) PlanDTO {
	dist := make(map[string]decimal.Decimal, len(p.CategoryDistribution))
	for c, v := range p.CategoryDistribution {
		dist[string(c)] = v
	}
	return PlanDTO{
		AgentID:              string(p.AgentID),
		TotalTarget:          p.TotalTarget,
		CurrentTotal:         p.CurrentTotal,
		StartDate:            p.Window.Start.Format(sales.DateLayout),
		EndDate:              p.Window.End.Format(sales.DateLayout),
		DebtLimitPercent:     p.DebtLimitPercent,
		CategoryDistribution: dist,
		DailyTarget:          p.DailyTarget().Round(2),
		MonthlyTarget:        p.MonthlyTarget().Round(2),
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func toTransitionResponse(o *sales.Outcome) TransitionResponse {
	resp := TransitionResponse{PlanDelta: o.Delta}
	if o.Report != nil {
		dto := toReportDTO(*o.Report)
		resp.Report = &dto
	}
	if o.Plan != nil {
		dto := toPlanDTO(*o.Plan)
		resp.Plan = &dto
	}
	return resp
}

func toTierDTO(t rewards.Tier) TierDTO {
	return TierDTO{Threshold: t.Threshold, Prize: t.Prize}
}

func toTierDTOs(tiers []rewards.Tier) []TierDTO {
	out := make([]TierDTO, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, toTierDTO(t))
	}
	return out
}

func toBonusDTO(s rewards.Standing) BonusDTO {
	b := BonusDTO{
		Reached:         toTierDTOs(s.Reached),
		Remaining:       s.Remaining.Round(2),
		RemainingAmount: s.RemainingAmount.Round(2),
	}
	if s.Current != nil {
		t := toTierDTO(*s.Current)
		b.Current = &t
	}
	if s.Next != nil {
		t := toTierDTO(*s.Next)
		b.Next = &t
	}
	return b
}

func toProgressDTO(p sales.Progress) ProgressDTO {
	dto := ProgressDTO{
		AgentID:         string(p.AgentID),
		AsOf:            p.AsOf.Format(sales.DateLayout),
		ApprovedTotal:   p.ApprovedTotal,
		ProgressPercent: p.ProgressPercent.Round(2),
		Band:            string(p.Band),
		DebtTotal:       p.DebtTotal,
		DebtRatio:       p.DebtRatio.Round(2),
		DebtOverLimit:   p.DebtOverLimit,
		PendingCount:    p.PendingCount,
		DaysRemaining:   p.DaysRemaining,
		DailyTarget:     p.DailyTarget.Round(2),
		MonthlyTarget:   p.MonthlyTarget.Round(2),
		Bonus:           toBonusDTO(p.Bonus),
	}
	if p.Plan != nil {
		plan := toPlanDTO(*p.Plan)
		dto.Plan = &plan
	}
	for _, c := range p.Categories {
		dto.Categories = append(dto.Categories, CategoryProgressDTO{
			Category: string(c.Category),
			Actual:   c.Actual,
			Target:   c.Target.Round(2),
			Percent:  c.Percent.Round(2),
		})
	}
	return dto
}

func toDashboardDTO(d sales.Dashboard) DashboardDTO {
	dto := DashboardDTO{
		AsOf:         d.AsOf.Format(sales.DateLayout),
		Agents:       make([]ProgressDTO, 0, len(d.Agents)),
		TeamTarget:   d.TeamTarget,
		TeamApproved: d.TeamApproved,
		TeamPercent:  d.TeamPercent.Round(2),
		PendingCount: d.PendingCount,
	}
	for _, p := range d.Agents {
		dto.Agents = append(dto.Agents, toProgressDTO(p))
	}
	return dto
}

func toAuditDTOs(entries []sales.AuditEntry) []AuditEntryDTO {
	out := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryDTO{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			ActorID:   e.ActorID,
			ActorName: e.ActorName,
			Action:    string(e.Action),
			AgentID:   string(e.AgentID),
			ReportID:  string(e.ReportID),
			Payload:   e.Payload,
		})
	}
	return out
}
