/*
handlers.go - HTTP API handlers for the sales engine

PURPOSE:
  Exposes the approval service and aggregation engine via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  sales.Service.

ENDPOINTS:
  Reports:
    POST   /api/reports                     Submit report (agent)
    GET    /api/reports?agent_id=&status=   List reports
    GET    /api/reports/{id}                Get report
    PUT    /api/reports/{id}                Edit amounts (director, or owning agent)
    POST   /api/reports/{id}/approve        Approve (director)
    POST   /api/reports/{id}/reject         Reject (director)
    DELETE /api/reports/{id}                Delete (director)

  Plans:
    GET    /api/plans                       List plans
    GET    /api/plans/{agentID}             Get plan
    PUT    /api/plans/{agentID}             Create/replace plan (director)
    POST   /api/plans/{agentID}/reconcile   Recompute current total (director)

  Progress:
    GET    /api/agents/{agentID}/progress   Agent summary (?as_of=YYYY-MM-DD)
    GET    /api/dashboard                   Every agent (director)
    GET    /api/rewards                     Bonus ladder
    GET    /api/audit                       Audit log
    GET    /api/drift                       Last plan drift check, ?run=true to check now (director)

REQUEST FLOW:
  1. Parse HTTP request
  2. Read the actor from context (Identity middleware)
  3. Call sales.Service
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Actor's role may not perform the operation
  - 404: Report or plan not found
  - 409: Status transition not allowed
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/gigo/sales-engine/factory"
	"github.com/gigo/sales-engine/sales"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Backend is the storage the handlers need: the service's TxStore plus a
// way to wipe it for scenarios.
type Backend interface {
	sales.TxStore
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *sales.Service
	Store   Backend
	Plans   *factory.PlanFactory
	Drift   *DriftMonitor // optional

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler around an existing service.
func NewHandler(svc *sales.Service, store Backend, plans *factory.PlanFactory) *Handler {
	if plans == nil {
		plans = factory.NewPlanFactory()
	}
	return &Handler{Service: svc, Store: store, Plans: plans}
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// SubmitReport creates a pending report for the acting agent.
// POST /api/reports
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	var req SubmitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date := h.Service.Now()
	if req.Date != "" {
		d, err := sales.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		date = d
	}

	report, err := h.Service.Submit(r.Context(), ActorFrom(r.Context()), sales.SubmitInput{
		Date:            date,
		CategoryAmounts: toCategoryAmounts(req.CategoryAmounts),
		DebtAmount:      req.DebtAmount,
	})
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to submit report", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReportDTO(*report))
}

// ListReports returns reports filtered by agent, status and date range.
// GET /api/reports?agent_id=&status=&from=&to=
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := sales.ReportFilter{AgentID: sales.AgentID(q.Get("agent_id"))}

	if s := q.Get("status"); s != "" {
		status, ok := sales.ParseStatus(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid status", nil)
			return
		}
		filter.Status = status
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		if s := q.Get(p.name); s != "" {
			d, err := sales.ParseDate(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid "+p.name+" date (use YYYY-MM-DD)", err)
				return
			}
			*p.dst = d
		}
	}

	reports, err := h.Store.ListReports(r.Context(), filter)
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to list reports", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTOs(reports))
}

// GetReport returns a single report.
// GET /api/reports/{id}
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.GetReport(r.Context(), sales.ReportID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to get report", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(*report))
}

// EditReport replaces a report's amounts; the report returns to PENDING.
// PUT /api/reports/{id}
func (h *Handler) EditReport(w http.ResponseWriter, r *http.Request) {
	var req EditReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	out, err := h.Service.EditAmounts(r.Context(), ActorFrom(r.Context()), sales.ReportID(chi.URLParam(r, "id")), sales.EditInput{
		CategoryAmounts: toCategoryAmounts(req.CategoryAmounts),
		DebtAmount:      req.DebtAmount,
	})
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to edit report", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransitionResponse(out))
}

// ApproveReport approves a pending report.
// POST /api/reports/{id}/approve
func (h *Handler) ApproveReport(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Approve(r.Context(), ActorFrom(r.Context()), sales.ReportID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to approve report", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransitionResponse(out))
}

// RejectReport rejects a pending report.
// POST /api/reports/{id}/reject
func (h *Handler) RejectReport(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Reject(r.Context(), ActorFrom(r.Context()), sales.ReportID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to reject report", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransitionResponse(out))
}

// DeleteReport removes a report and reverses its plan contribution.
// DELETE /api/reports/{id}
func (h *Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Delete(r.Context(), ActorFrom(r.Context()), sales.ReportID(chi.URLParam(r, "id")))
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to delete report", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransitionResponse(out))
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns every plan.
// GET /api/plans
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to list plans", err)
		return
	}
	dtos := make([]PlanDTO, 0, len(plans))
	for _, p := range plans {
		dtos = append(dtos, toPlanDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPlan returns one agent's plan.
// GET /api/plans/{agentID}
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Service.GetPlan(r.Context(), sales.AgentID(chi.URLParam(r, "agentID")))
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(*plan))
}

// PutPlan creates or replaces an agent's plan from a factory.PlanJSON body.
// PUT /api/plans/{agentID}
func (h *Handler) PutPlan(w http.ResponseWriter, r *http.Request) {
	var pj factory.PlanJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	pj.AgentID = chi.URLParam(r, "agentID")

	plan, err := h.Plans.FromJSON(pj)
	if err != nil {
		writeServiceError(r.Context(), w, "Invalid plan", err)
		return
	}

	saved, err := h.Service.SetPlan(r.Context(), ActorFrom(r.Context()), *plan)
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to save plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(*saved))
}

// ReconcilePlan recomputes the plan's current total from the report set.
// With ?apply=true the corrected total is saved.
// POST /api/plans/{agentID}/reconcile
func (h *Handler) ReconcilePlan(w http.ResponseWriter, r *http.Request) {
	apply := false
	if s := r.URL.Query().Get("apply"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid apply flag", err)
			return
		}
		apply = v
	}

	rec, err := h.Service.Reconcile(r.Context(), ActorFrom(r.Context()), sales.AgentID(chi.URLParam(r, "agentID")), apply)
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to reconcile plan", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{
		AgentID: string(rec.AgentID),
		Before:  rec.Before,
		After:   rec.After,
		Drift:   rec.Drift,
		Applied: apply && !rec.Drift.IsZero(),
	})
}

// =============================================================================
// PROGRESS HANDLERS
// =============================================================================

// GetProgress returns an agent's progress summary.
// GET /api/agents/{agentID}/progress?as_of=YYYY-MM-DD
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.parseAsOf(w, r)
	if !ok {
		return
	}
	p, err := h.Service.Progress(r.Context(), sales.AgentID(chi.URLParam(r, "agentID")), asOf)
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to compute progress", err)
		return
	}
	writeJSON(w, http.StatusOK, toProgressDTO(*p))
}

// GetDashboard returns every planned agent's summary and the team total.
// GET /api/dashboard?as_of=YYYY-MM-DD
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.parseAsOf(w, r)
	if !ok {
		return
	}
	d, err := h.Service.Dashboard(r.Context(), ActorFrom(r.Context()), asOf)
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(*d))
}

// ListRewards returns the bonus ladder.
// GET /api/rewards
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	if h.Service.Ladder == nil {
		writeJSON(w, http.StatusOK, []TierDTO{})
		return
	}
	writeJSON(w, http.StatusOK, toTierDTOs(h.Service.Ladder.Tiers()))
}

// ListAudit returns audit entries, oldest first.
// GET /api/audit?agent_id=&actor_id=&action=&limit=
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := sales.AuditFilter{
		AgentID: sales.AgentID(q.Get("agent_id")),
		ActorID: q.Get("actor_id"),
	}
	for _, a := range q["action"] {
		filter.Actions = append(filter.Actions, sales.AuditAction(a))
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	entries, err := h.Store.QueryAudit(r.Context(), filter)
	if err != nil {
		writeServiceError(r.Context(), w, "Failed to query audit log", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTOs(entries))
}

func (h *Handler) parseAsOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	s := r.URL.Query().Get("as_of")
	if s == "" {
		return h.Service.Now(), true
	}
	d, err := sales.ParseDate(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid as_of date (use YYYY-MM-DD)", err)
		return time.Time{}, false
	}
	return d, true
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps sales errors to status codes. Anything unrecognised
// is a 500 and gets logged.
func writeServiceError(ctx context.Context, w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sales.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, sales.ErrPermission):
		status = http.StatusForbidden
	case errors.Is(err, sales.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sales.ErrInvalidTransition):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		zerolog.Ctx(ctx).Error().Err(err).Msg(message)
	}
	writeError(w, status, message, err)
}
