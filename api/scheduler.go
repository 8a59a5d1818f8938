/*
scheduler.go - Periodic plan drift check

PURPOSE:
  Every plan caches CurrentTotal, which the approval service keeps in step
  with the report set. The drift monitor periodically recomputes each
  plan's total from its reports and reports any mismatch, so a bad manual
  database edit or a bug shows up in the logs instead of on a bonus payout.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Checks every plan with Service.Reconcile (dry run unless AutoFix)
  - Keeps the last run for GET /api/drift

CONFIGURATION:
  - engine.drift_check_interval: How often to check (0 disables the monitor)
  - engine.drift_auto_fix:       Save recomputed totals instead of only logging

USAGE:
  monitor := NewDriftMonitor(svc, logger)
  monitor.Start()
  // ... later
  monitor.Stop()

SEE ALSO:
  - sales/approval.go: Reconcile
  - cmd/server/reconcile.go: One-off reconciliation with a diff
*/
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gigo/sales-engine/sales"
)

// DriftResult is one plan's outcome in a drift run.
type DriftResult struct {
	AgentID string          `json:"agent_id"`
	Before  decimal.Decimal `json:"before"`
	After   decimal.Decimal `json:"after"`
	Drift   decimal.Decimal `json:"drift"`
	Fixed   bool            `json:"fixed"`
}

// DriftRun summarizes one pass over every plan.
type DriftRun struct {
	StartedAt time.Time     `json:"started_at"`
	Checked   int           `json:"checked"`
	Drifted   []DriftResult `json:"drifted"`
	Errors    []string      `json:"errors,omitempty"`
}

// DriftMonitor periodically reconciles every plan.
type DriftMonitor struct {
	Service       *sales.Service
	Logger        zerolog.Logger
	CheckInterval time.Duration
	AutoFix       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu  sync.RWMutex
	lastRun *DriftRun
}

// NewDriftMonitor creates a monitor checking once an hour.
func NewDriftMonitor(svc *sales.Service, logger zerolog.Logger) *DriftMonitor {
	return &DriftMonitor{
		Service:       svc,
		Logger:        logger,
		CheckInterval: time.Hour,
	}
}

// Start begins the periodic check. A non-positive interval leaves the monitor idle.
func (dm *DriftMonitor) Start() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.CheckInterval <= 0 {
		dm.Logger.Info().Msg("drift monitor disabled")
		return
	}
	if dm.ticker != nil {
		return
	}

	dm.ticker = time.NewTicker(dm.CheckInterval)
	dm.stop = make(chan struct{})
	dm.wg.Add(1)

	go dm.run()

	dm.Logger.Info().Dur("interval", dm.CheckInterval).Bool("auto_fix", dm.AutoFix).Msg("drift monitor started")
}

// Stop stops the monitor and waits for an in-flight check to finish.
func (dm *DriftMonitor) Stop() {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.ticker == nil {
		return
	}
	dm.ticker.Stop()
	close(dm.stop)
	dm.wg.Wait()
	dm.ticker = nil
	dm.Logger.Info().Msg("drift monitor stopped")
}

func (dm *DriftMonitor) run() {
	defer dm.wg.Done()

	ctx, cancel := context.WithCancel(dm.Logger.WithContext(context.Background()))
	defer cancel()
	go func() {
		select {
		case <-dm.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Run immediately on start
	dm.RunNow(ctx)

	for {
		select {
		case <-dm.ticker.C:
			dm.RunNow(ctx)
		case <-dm.stop:
			return
		}
	}
}

// RunNow checks every plan once and records the result.
func (dm *DriftMonitor) RunNow(ctx context.Context) DriftRun {
	run := DriftRun{StartedAt: dm.Service.Now(), Drifted: []DriftResult{}}

	plans, err := dm.Service.Store.ListPlans(ctx)
	if err != nil {
		dm.Logger.Error().Err(err).Msg("drift check: failed to list plans")
		run.Errors = append(run.Errors, err.Error())
		dm.setLast(run)
		return run
	}

	for _, p := range plans {
		rec, err := dm.Service.Reconcile(ctx, sales.System, p.AgentID, dm.AutoFix)
		if err != nil {
			dm.Logger.Error().Err(err).Str("agent_id", string(p.AgentID)).Msg("drift check failed")
			run.Errors = append(run.Errors, string(p.AgentID)+": "+err.Error())
			continue
		}
		run.Checked++
		if rec.Drift.IsZero() {
			continue
		}
		run.Drifted = append(run.Drifted, DriftResult{
			AgentID: string(rec.AgentID),
			Before:  rec.Before,
			After:   rec.After,
			Drift:   rec.Drift,
			Fixed:   dm.AutoFix,
		})
	}

	dm.Logger.Debug().
		Int("checked", run.Checked).
		Int("drifted", len(run.Drifted)).
		Int("errors", len(run.Errors)).
		Msg("drift check completed")

	dm.setLast(run)
	return run
}

// LastRun returns the most recent run, or nil before the first one.
func (dm *DriftMonitor) LastRun() *DriftRun {
	dm.lastMu.RLock()
	defer dm.lastMu.RUnlock()
	return dm.lastRun
}

func (dm *DriftMonitor) setLast(run DriftRun) {
	dm.lastMu.Lock()
	dm.lastRun = &run
	dm.lastMu.Unlock()
}

// GetDrift returns the last drift run. With ?run=true a fresh check runs first.
// GET /api/drift
func (h *Handler) GetDrift(w http.ResponseWriter, r *http.Request) {
	if h.Drift == nil {
		writeError(w, http.StatusNotFound, "Drift monitor not configured", nil)
		return
	}
	if r.URL.Query().Get("run") == "true" {
		run := h.Drift.RunNow(r.Context())
		writeJSON(w, http.StatusOK, run)
		return
	}
	writeJSON(w, http.StatusOK, h.Drift.LastRun())
}
