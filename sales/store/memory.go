// Package store provides in-memory sales.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/gigo/sales-engine/sales"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps reports, plans and the audit log in maps. Records are copied
// on the way in and out so callers never share state with the store.
type Memory struct {
	mu      sync.RWMutex
	reports map[sales.ReportID]sales.Report
	plans   map[sales.AgentID]sales.Plan
	audit   []sales.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		reports: make(map[sales.ReportID]sales.Report),
		plans:   make(map[sales.AgentID]sales.Plan),
	}
}

func (m *Memory) GetReport(_ context.Context, id sales.ReportID) (*sales.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getReportLocked(id), nil
}

func (m *Memory) PutReport(_ context.Context, r sales.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ID] = r.Clone()
	return nil
}

func (m *Memory) DeleteReport(_ context.Context, id sales.ReportID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reports, id)
	return nil
}

func (m *Memory) ListReports(_ context.Context, filter sales.ReportFilter) ([]sales.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listReportsLocked(filter), nil
}

func (m *Memory) GetPlan(_ context.Context, agentID sales.AgentID) (*sales.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPlanLocked(agentID), nil
}

func (m *Memory) PutPlan(_ context.Context, p sales.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.AgentID] = p.Clone()
	return nil
}

func (m *Memory) ListPlans(_ context.Context) ([]sales.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listPlansLocked(), nil
}

// AppendAudit records an entry. Append-only.
func (m *Memory) AppendAudit(_ context.Context, e sales.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, cloneEntry(e))
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, filter sales.AuditFilter) ([]sales.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryAuditLocked(filter), nil
}

// Reset drops every record (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = make(map[sales.ReportID]sales.Report)
	m.plans = make(map[sales.AgentID]sales.Plan)
	m.audit = nil
	return nil
}

func (m *Memory) getReportLocked(id sales.ReportID) *sales.Report {
	r, ok := m.reports[id]
	if !ok {
		return nil
	}
	out := r.Clone()
	return &out
}

func (m *Memory) listReportsLocked(filter sales.ReportFilter) []sales.Report {
	var result []sales.Report
	for _, r := range m.reports {
		if filter.Matches(r) {
			result = append(result, r.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func (m *Memory) getPlanLocked(agentID sales.AgentID) *sales.Plan {
	p, ok := m.plans[agentID]
	if !ok {
		return nil
	}
	out := p.Clone()
	return &out
}

func (m *Memory) listPlansLocked() []sales.Plan {
	result := make([]sales.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		result = append(result, p.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AgentID < result[j].AgentID })
	return result
}

func (m *Memory) queryAuditLocked(filter sales.AuditFilter) []sales.AuditEntry {
	var result []sales.AuditEntry
	for _, e := range m.audit {
		if !filter.Matches(e) {
			continue
		}
		result = append(result, cloneEntry(e))
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result
}

func cloneEntry(e sales.AuditEntry) sales.AuditEntry {
	out := e
	if e.Payload != nil {
		out.Payload = make(map[string]string, len(e.Payload))
		for k, v := range e.Payload {
			out.Payload[k] = v
		}
	}
	return out
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, so transactions are serialized.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(sales.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	reports map[sales.ReportID]sales.Report
	plans   map[sales.AgentID]sales.Plan
	audit   int
}

// snapshot copies the maps; records are stored by value and cloned on every
// write, so a shallow copy of each map is enough. The audit log is
// append-only, so its length is the whole snapshot.
func (tm *TxMemory) snapshot() memorySnapshot {
	reports := make(map[sales.ReportID]sales.Report, len(tm.reports))
	for k, v := range tm.reports {
		reports[k] = v
	}
	plans := make(map[sales.AgentID]sales.Plan, len(tm.plans))
	for k, v := range tm.plans {
		plans[k] = v
	}
	return memorySnapshot{reports: reports, plans: plans, audit: len(tm.audit)}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.reports = s.reports
	tm.plans = s.plans
	tm.audit = tm.audit[:s.audit]
}

// txMemoryView is the Store handed to WithTx callbacks. The parent lock is
// already held, so it calls the unlocked helpers directly.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) GetReport(_ context.Context, id sales.ReportID) (*sales.Report, error) {
	return tv.parent.getReportLocked(id), nil
}

func (tv *txMemoryView) PutReport(_ context.Context, r sales.Report) error {
	tv.parent.reports[r.ID] = r.Clone()
	return nil
}

func (tv *txMemoryView) DeleteReport(_ context.Context, id sales.ReportID) error {
	delete(tv.parent.reports, id)
	return nil
}

func (tv *txMemoryView) ListReports(_ context.Context, filter sales.ReportFilter) ([]sales.Report, error) {
	return tv.parent.listReportsLocked(filter), nil
}

func (tv *txMemoryView) GetPlan(_ context.Context, agentID sales.AgentID) (*sales.Plan, error) {
	return tv.parent.getPlanLocked(agentID), nil
}

func (tv *txMemoryView) PutPlan(_ context.Context, p sales.Plan) error {
	tv.parent.plans[p.AgentID] = p.Clone()
	return nil
}

func (tv *txMemoryView) ListPlans(_ context.Context) ([]sales.Plan, error) {
	return tv.parent.listPlansLocked(), nil
}

func (tv *txMemoryView) AppendAudit(_ context.Context, e sales.AuditEntry) error {
	tv.parent.audit = append(tv.parent.audit, cloneEntry(e))
	return nil
}

func (tv *txMemoryView) QueryAudit(_ context.Context, filter sales.AuditFilter) ([]sales.AuditEntry, error) {
	return tv.parent.queryAuditLocked(filter), nil
}
