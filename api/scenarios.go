/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	data for demos. Everything goes through sales.Service, so scenario
	data obeys the same rules and leaves the same audit trail as real use.

AVAILABLE SCENARIOS:

	initial-plans: Three agents with 500,000,000 quarterly plans, no reports
	mid-quarter:   Same agents 45 days in: one on track with a prize
	               reached, one at risk with a pending queue, one over the
	               debt limit, plus an edited and a rejected report

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "mid-quarter"}

NOTE:

	Scenarios reset the store. Load and reset are director-only; only use
	them in development/demo environments.

SEE ALSO:
  - handlers.go: Report and plan handlers
  - factory/plan.go: QuarterlyPlan preset
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gigo/sales-engine/sales"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "initial-plans",
		Name:        "Initial Plans",
		Description: "Three agents with 500,000,000 quarterly plans starting today",
	},
	{
		ID:          "mid-quarter",
		Name:        "Mid-Quarter",
		Description: "45 days in: on-track, at-risk and over-debt-limit agents with a pending queue",
	},
}

// DemoAgents are the agents every scenario creates plans for.
var DemoAgents = []sales.Actor{
	{ID: "muxlisa", Name: "Muxlisa", Role: sales.RoleAgent},
	{ID: "aziza", Name: "Aziza", Role: sales.RoleAgent},
	{ID: "ruxshona", Name: "Ruxshona", Role: sales.RoleAgent},
}

// DemoTarget is the quarterly target of every demo agent.
var DemoTarget = decimal.NewFromInt(500_000_000)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
			return
		}
		writeServiceError(r.Context(), w, fmt.Sprintf("Failed to load scenario %s", req.ScenarioID), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var errUnknownScenario = errors.New("unknown scenario")

// LoadScenarioByID resets the store and loads the scenario.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	var load func(context.Context) error
	switch id {
	case "initial-plans":
		load = h.loadInitialPlansScenario
	case "mid-quarter":
		load = h.loadMidQuarterScenario
	default:
		return errUnknownScenario
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	h.currentScenario = ""
	if err := load(ctx); err != nil {
		return err
	}
	h.currentScenario = id
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) seedPlans(ctx context.Context, start time.Time) error {
	for _, a := range DemoAgents {
		plan := h.Plans.QuarterlyPlan(sales.AgentID(a.ID), DemoTarget, start)
		if _, err := h.Service.SetPlan(ctx, sales.System, plan); err != nil {
			return fmt.Errorf("plan for %s: %w", a.ID, err)
		}
	}
	return nil
}

func (h *Handler) loadInitialPlansScenario(ctx context.Context) error {
	return h.seedPlans(ctx, h.Service.Now())
}

type demoReport struct {
	agent    sales.Actor
	day      int // days after plan start
	qurt     int64
	toys     int64
	milch    int64
	debt     int64
	decision sales.Action // approve, reject or "" to leave pending
}

func (h *Handler) loadMidQuarterScenario(ctx context.Context) error {
	start := sales.Date(h.Service.Now()).AddDate(0, 0, -45)
	if err := h.seedPlans(ctx, start); err != nil {
		return err
	}

	muxlisa, aziza, ruxshona := DemoAgents[0], DemoAgents[1], DemoAgents[2]
	reports := []demoReport{
		// muxlisa: 430M approved -> 86%, washing machine reached
		{muxlisa, 3, 60_000_000, 90_000_000, 100_000_000, 5_000_000, sales.ActionApprove},
		{muxlisa, 20, 10_000_000, 80_000_000, 90_000_000, 4_000_000, sales.ActionApprove},
		{muxlisa, 40, 5_000_000, 10_000_000, 15_000_000, 0, ""},

		// aziza: 300M approved -> 60%, two pending
		{aziza, 5, 30_000_000, 120_000_000, 150_000_000, 10_000_000, sales.ActionApprove},
		{aziza, 30, 10_000_000, 40_000_000, 50_000_000, 0, ""},
		{aziza, 41, 8_000_000, 20_000_000, 22_000_000, 0, ""},

		// ruxshona: 150M approved with 15M debt -> 10% debt ratio, over the 7% limit
		{ruxshona, 7, 20_000_000, 60_000_000, 70_000_000, 15_000_000, sales.ActionApprove},
		{ruxshona, 12, 1_000_000, 2_000_000, 3_000_000, 0, sales.ActionReject},
	}

	for _, dr := range reports {
		report, err := h.Service.Submit(ctx, dr.agent, sales.SubmitInput{
			Date: start.AddDate(0, 0, dr.day),
			CategoryAmounts: sales.CategoryAmounts{
				sales.CategoryQurt:      sales.NewAmount(dr.qurt),
				sales.CategoryToys:      sales.NewAmount(dr.toys),
				sales.CategoryMilchofka: sales.NewAmount(dr.milch),
			},
			DebtAmount: sales.NewAmount(dr.debt),
		})
		if err != nil {
			return fmt.Errorf("report for %s: %w", dr.agent.ID, err)
		}

		switch dr.decision {
		case sales.ActionApprove:
			_, err = h.Service.Approve(ctx, sales.System, report.ID)
		case sales.ActionReject:
			_, err = h.Service.Reject(ctx, sales.System, report.ID)
		}
		if err != nil {
			return fmt.Errorf("%s report %s: %w", dr.decision, report.ID, err)
		}
	}

	// An approved report corrected by the director goes back to the queue.
	corrected, err := h.Service.Submit(ctx, aziza, sales.SubmitInput{
		Date: start.AddDate(0, 0, 15),
		CategoryAmounts: sales.CategoryAmounts{
			sales.CategoryQurt:      sales.NewAmount(4_000_000),
			sales.CategoryToys:      sales.NewAmount(10_000_000),
			sales.CategoryMilchofka: sales.NewAmount(6_000_000),
		},
		DebtAmount: decimal.Zero,
	})
	if err != nil {
		return err
	}
	if _, err := h.Service.Approve(ctx, sales.System, corrected.ID); err != nil {
		return err
	}
	_, err = h.Service.EditAmounts(ctx, sales.System, corrected.ID, sales.EditInput{
		CategoryAmounts: sales.CategoryAmounts{
			sales.CategoryQurt:      sales.NewAmount(4_000_000),
			sales.CategoryToys:      sales.NewAmount(9_000_000),
			sales.CategoryMilchofka: sales.NewAmount(6_000_000),
		},
		DebtAmount: decimal.Zero,
	})
	return err
}
