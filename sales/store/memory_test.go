package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigo/sales-engine/sales"
)

func testReport(id string, agent sales.AgentID, status sales.Status) sales.Report {
	return sales.Report{
		ID:      sales.ReportID(id),
		AgentID: agent,
		Date:    sales.NewDate(2025, time.February, 1),
		Status:  status,
		CategoryAmounts: sales.CategoryAmounts{
			sales.CategoryQurt:      sales.NewAmount(10),
			sales.CategoryToys:      sales.NewAmount(0),
			sales.CategoryMilchofka: sales.NewAmount(0),
		},
		TotalAmount: sales.NewAmount(10),
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.PutReport(ctx, testReport("r1", "a", sales.StatusPending)))

	got, err := m.GetReport(ctx, "r1")
	require.NoError(t, err)
	got.CategoryAmounts[sales.CategoryQurt] = sales.NewAmount(999)
	got.Status = sales.StatusApproved

	again, err := m.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, sales.StatusPending, again.Status)
	assert.Equal(t, "10", again.CategoryAmounts[sales.CategoryQurt].String())
}

func TestMemory_MissingRecordsAreNil(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	r, err := m.GetReport(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, r)

	p, err := m.GetPlan(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMemory_ListReports_Filters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.PutReport(ctx, testReport("r1", "a", sales.StatusPending)))
	require.NoError(t, m.PutReport(ctx, testReport("r2", "a", sales.StatusApproved)))
	require.NoError(t, m.PutReport(ctx, testReport("r3", "b", sales.StatusApproved)))

	byAgent, err := m.ListReports(ctx, sales.ReportFilter{AgentID: "a"})
	require.NoError(t, err)
	assert.Len(t, byAgent, 2)

	approved, err := m.ListReports(ctx, sales.ReportFilter{Status: sales.StatusApproved})
	require.NoError(t, err)
	assert.Len(t, approved, 2)

	all, err := m.ListReports(ctx, sales.ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTxMemory_RollsBackOnError(t *testing.T) {
	// GIVEN: A store with one report and one audit entry
	// WHEN: A transaction writes, deletes and appends, then fails
	// THEN: Every change is undone

	ctx := context.Background()
	tm := NewTxMemory()
	require.NoError(t, tm.PutReport(ctx, testReport("r1", "a", sales.StatusPending)))
	require.NoError(t, tm.AppendAudit(ctx, sales.AuditEntry{ID: "e1", Action: sales.AuditReportSubmitted}))

	boom := errors.New("boom")
	err := tm.WithTx(ctx, func(st sales.Store) error {
		require.NoError(t, st.PutReport(ctx, testReport("r2", "a", sales.StatusPending)))
		require.NoError(t, st.DeleteReport(ctx, "r1"))
		require.NoError(t, st.PutPlan(ctx, sales.Plan{AgentID: "a", TotalTarget: sales.NewAmount(1)}))
		require.NoError(t, st.AppendAudit(ctx, sales.AuditEntry{ID: "e2", Action: sales.AuditReportDeleted}))

		// Reads inside the transaction see its own writes.
		r, err := st.GetReport(ctx, "r2")
		require.NoError(t, err)
		require.NotNil(t, r)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	r1, _ := tm.GetReport(ctx, "r1")
	assert.NotNil(t, r1)
	r2, _ := tm.GetReport(ctx, "r2")
	assert.Nil(t, r2)
	p, _ := tm.GetPlan(ctx, "a")
	assert.Nil(t, p)
	entries, _ := tm.QueryAudit(ctx, sales.AuditFilter{})
	assert.Len(t, entries, 1)
}

func TestTxMemory_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	tm := NewTxMemory()

	err := tm.WithTx(ctx, func(st sales.Store) error {
		return st.PutPlan(ctx, sales.Plan{AgentID: "a", TotalTarget: sales.NewAmount(5)})
	})
	require.NoError(t, err)

	plans, err := tm.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, sales.AgentID("a"), plans[0].AgentID)
}

func TestMemory_QueryAudit_FilterAndLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, e := range []sales.AuditEntry{
		{ID: "1", ActorID: "boss", AgentID: "a", Action: sales.AuditReportApproved},
		{ID: "2", ActorID: "a", AgentID: "a", Action: sales.AuditReportSubmitted},
		{ID: "3", ActorID: "boss", AgentID: "b", Action: sales.AuditReportApproved},
		{ID: "4", ActorID: "boss", AgentID: "b", Action: sales.AuditReportRejected},
	} {
		require.NoError(t, m.AppendAudit(ctx, e))
	}

	approved, err := m.QueryAudit(ctx, sales.AuditFilter{Actions: []sales.AuditAction{sales.AuditReportApproved}})
	require.NoError(t, err)
	require.Len(t, approved, 2)
	assert.Equal(t, "1", approved[0].ID)

	limited, err := m.QueryAudit(ctx, sales.AuditFilter{ActorID: "boss", Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "3", limited[1].ID)

	require.NoError(t, m.Reset(ctx))
	none, err := m.QueryAudit(ctx, sales.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}
