package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigo/sales-engine/sales"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var drivers = []string{DriverMattn, DriverModernc}

func openTestStore(t *testing.T, driver string) *Store {
	t.Helper()
	s, err := Open(driver, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testReport(id string, status sales.Status) sales.Report {
	created := time.Date(2025, time.February, 1, 8, 30, 0, 0, time.UTC)
	return sales.Report{
		ID:      sales.ReportID(id),
		AgentID: "muxlisa",
		Date:    sales.NewDate(2025, time.February, 1),
		CategoryAmounts: sales.CategoryAmounts{
			sales.CategoryQurt:      sales.MustParseAmount("1500000.50"),
			sales.CategoryToys:      sales.NewAmount(200),
			sales.CategoryMilchofka: decimal.Zero,
		},
		DebtAmount:  sales.NewAmount(10),
		TotalAmount: sales.MustParseAmount("1500200.50"),
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func testPlan() sales.Plan {
	return sales.Plan{
		AgentID:      "muxlisa",
		TotalTarget:  sales.NewAmount(500_000_000),
		CurrentTotal: sales.NewAmount(30),
		Window: sales.Window{
			Start: sales.NewDate(2025, time.January, 1),
			End:   sales.NewDate(2025, time.March, 31),
		},
		DebtLimitPercent:     sales.NewAmount(7),
		CategoryDistribution: sales.DefaultDistribution(),
		CreatedAt:            time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:            time.Date(2025, time.January, 2, 0, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// ROUND TRIPS (both drivers)
// =============================================================================

func TestStore_ReportLifecycle(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := openTestStore(t, driver)

			missing, err := s.GetReport(ctx, "r1")
			require.NoError(t, err)
			assert.Nil(t, missing)

			require.NoError(t, s.PutReport(ctx, testReport("r1", sales.StatusPending)))

			got, err := s.GetReport(ctx, "r1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, sales.AgentID("muxlisa"), got.AgentID)
			assert.Equal(t, "2025-02-01", got.Date.Format(sales.DateLayout))
			assert.Equal(t, "1500000.5", got.CategoryAmounts[sales.CategoryQurt].String())
			assert.Equal(t, "1500200.5", got.TotalAmount.String())
			assert.Equal(t, sales.StatusPending, got.Status)
			assert.Empty(t, got.LastEditedBy)

			// Upsert keeps the row and updates mutable columns.
			edited := testReport("r1", sales.StatusApproved)
			edited.LastEditedBy = "Director"
			require.NoError(t, s.PutReport(ctx, edited))

			got, err = s.GetReport(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, sales.StatusApproved, got.Status)
			assert.Equal(t, "Director", got.LastEditedBy)

			require.NoError(t, s.DeleteReport(ctx, "r1"))
			got, err = s.GetReport(ctx, "r1")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestStore_ListReports_Filters(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := openTestStore(t, driver)

			early := testReport("r1", sales.StatusApproved)
			early.Date = sales.NewDate(2025, time.January, 5)
			late := testReport("r2", sales.StatusPending)
			late.Date = sales.NewDate(2025, time.March, 5)
			other := testReport("r3", sales.StatusApproved)
			other.AgentID = "aziza"
			for _, r := range []sales.Report{late, early, other} {
				require.NoError(t, s.PutReport(ctx, r))
			}

			mine, err := s.ListReports(ctx, sales.ReportFilter{AgentID: "muxlisa"})
			require.NoError(t, err)
			require.Len(t, mine, 2)
			assert.Equal(t, sales.ReportID("r1"), mine[0].ID, "ordered by date")

			approved, err := s.ListReports(ctx, sales.ReportFilter{Status: sales.StatusApproved})
			require.NoError(t, err)
			assert.Len(t, approved, 2)

			ranged, err := s.ListReports(ctx, sales.ReportFilter{
				From: sales.NewDate(2025, time.February, 1),
				To:   sales.NewDate(2025, time.March, 31),
			})
			require.NoError(t, err)
			assert.Len(t, ranged, 2)
		})
	}
}

func TestStore_PlanRoundTrip(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := openTestStore(t, driver)

			none, err := s.GetPlan(ctx, "muxlisa")
			require.NoError(t, err)
			assert.Nil(t, none)

			require.NoError(t, s.PutPlan(ctx, testPlan()))
			p, err := s.GetPlan(ctx, "muxlisa")
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, "500000000", p.TotalTarget.String())
			assert.Equal(t, "30", p.CurrentTotal.String())
			assert.Equal(t, "[2025-01-01, 2025-03-31]", p.Window.String())
			assert.Equal(t, "45", p.CategoryDistribution[sales.CategoryMilchofka].String())
			assert.True(t, p.UpdatedAt.Equal(testPlan().UpdatedAt))

			updated := testPlan()
			updated.CurrentTotal = sales.NewAmount(90)
			require.NoError(t, s.PutPlan(ctx, updated))

			plans, err := s.ListPlans(ctx)
			require.NoError(t, err)
			require.Len(t, plans, 1)
			assert.Equal(t, "90", plans[0].CurrentTotal.String())
		})
	}
}

func TestStore_MalformedAmountsAreErrors(t *testing.T) {
	// GIVEN: Rows whose amount columns were edited to garbage
	// WHEN: Reading them back
	// THEN: The read fails naming the column instead of returning zero

	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			s := openTestStore(t, driver)
			require.NoError(t, s.PutReport(ctx, testReport("r1", sales.StatusApproved)))
			require.NoError(t, s.PutPlan(ctx, testPlan()))

			_, err := s.db.ExecContext(ctx, `UPDATE reports SET total_amount = 'lots' WHERE id = 'r1'`)
			require.NoError(t, err)
			_, err = s.db.ExecContext(ctx, `UPDATE plans SET debt_limit_percent = '7%' WHERE agent_id = 'muxlisa'`)
			require.NoError(t, err)

			_, err = s.GetReport(ctx, "r1")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "bad total amount")

			_, err = s.ListReports(ctx, sales.ReportFilter{})
			assert.Error(t, err)

			_, err = s.GetPlan(ctx, "muxlisa")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "bad debt limit")

			_, err = s.ListPlans(ctx)
			assert.Error(t, err)
		})
	}
}

func TestStore_AuditAndReset(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, DriverMattn)

	entries := []sales.AuditEntry{
		{ID: "a1", ActorID: "boss", ActorName: "Boss", Action: sales.AuditPlanUpdated, AgentID: "muxlisa"},
		{ID: "a2", ActorID: "muxlisa", Action: sales.AuditReportSubmitted, AgentID: "muxlisa", ReportID: "r1",
			Payload: map[string]string{"total": "30"}},
		{ID: "a3", ActorID: "boss", Action: sales.AuditReportApproved, AgentID: "muxlisa", ReportID: "r1"},
	}
	for _, e := range entries {
		require.NoError(t, s.AppendAudit(ctx, e))
	}

	all, err := s.QueryAudit(ctx, sales.AuditFilter{AgentID: "muxlisa"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a1", all[0].ID)
	assert.Equal(t, "30", all[1].Payload["total"])
	assert.Equal(t, sales.ReportID("r1"), all[2].ReportID)

	boss, err := s.QueryAudit(ctx, sales.AuditFilter{
		ActorID: "boss",
		Actions: []sales.AuditAction{sales.AuditReportApproved, sales.AuditReportRejected},
	})
	require.NoError(t, err)
	require.Len(t, boss, 1)
	assert.Equal(t, "a3", boss[0].ID)

	limited, err := s.QueryAudit(ctx, sales.AuditFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	require.NoError(t, s.PutPlan(ctx, testPlan()))
	require.NoError(t, s.Reset(ctx))
	plans, err := s.ListPlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, plans)
	after, err := s.QueryAudit(ctx, sales.AuditFilter{})
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestStore_WithTx_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, DriverModernc)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(st sales.Store) error {
		require.NoError(t, st.PutReport(ctx, testReport("r1", sales.StatusPending)))
		got, err := st.GetReport(ctx, "r1")
		require.NoError(t, err)
		require.NotNil(t, got, "tx reads its own writes")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOpen_FileDatabaseAndUnknownDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.db")

	s, err := Open(DriverMattn, path)
	require.NoError(t, err)
	require.NoError(t, s.PutPlan(context.Background(), testPlan()))
	require.NoError(t, s.Close())

	// Reopen: data persisted and migration is idempotent.
	s, err = Open(DriverMattn, path)
	require.NoError(t, err)
	defer s.Close()
	p, err := s.GetPlan(context.Background(), "muxlisa")
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = Open("postgres", path)
	assert.Error(t, err)
}

// =============================================================================
// TRANSACTION BOUNDARY (sqlmock)
// =============================================================================

func TestWithTx_FailedAuditRollsBack(t *testing.T) {
	// GIVEN: A transaction that saves a report then fails appending the audit entry
	// WHEN: WithTx runs
	// THEN: The transaction is rolled back, never committed

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reports").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO audit_log").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	s := Wrap(db)
	err = s.WithTx(context.Background(), func(st sales.Store) error {
		if err := st.PutReport(context.Background(), testReport("r1", sales.StatusApproved)); err != nil {
			return err
		}
		return st.AppendAudit(context.Background(), sales.AuditEntry{ID: "a1", ActorID: "boss", Action: sales.AuditReportApproved})
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_Commits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO plans").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	s := Wrap(db)
	err = s.WithTx(context.Background(), func(st sales.Store) error {
		return st.PutPlan(context.Background(), testPlan())
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM reports").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("locked"))

	s := Wrap(db)
	err = s.WithTx(context.Background(), func(st sales.Store) error {
		return st.DeleteReport(context.Background(), "r1")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}
