package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gigo/sales-engine/sales"
)

// corruptPlan overwrites a plan's cached total behind the service's back.
func corruptPlan(t *testing.T, ts *testServer, agent sales.AgentID, total int64) {
	t.Helper()
	ctx := context.Background()
	p, err := ts.handler.Store.GetPlan(ctx, agent)
	require.NoError(t, err)
	p.CurrentTotal = sales.NewAmount(total)
	require.NoError(t, ts.handler.Store.PutPlan(ctx, *p))
}

func TestDriftMonitor_RunNow(t *testing.T) {
	// GIVEN: Two plans, one with a corrupted cached total
	// WHEN: A dry-run drift check runs
	// THEN: Only the corrupted plan is reported and nothing is written

	ts := newTestServer(t)
	ts.putPlan(t, "muxlisa", "1000")
	ts.putPlan(t, "aziza", "1000")
	corruptPlan(t, ts, "aziza", 55)

	dm := NewDriftMonitor(ts.handler.Service, zerolog.Nop())
	run := dm.RunNow(context.Background())

	assert.Equal(t, 2, run.Checked)
	require.Len(t, run.Drifted, 1)
	assert.Equal(t, "aziza", run.Drifted[0].AgentID)
	assert.Equal(t, "-55", run.Drifted[0].Drift.String())
	assert.False(t, run.Drifted[0].Fixed)
	require.NotNil(t, dm.LastRun())
	assert.Equal(t, 2, dm.LastRun().Checked)

	p, err := ts.handler.Service.GetPlan(context.Background(), "aziza")
	require.NoError(t, err)
	assert.Equal(t, "55", p.CurrentTotal.String())
}

func TestDriftMonitor_AutoFix(t *testing.T) {
	ts := newTestServer(t)
	ts.putPlan(t, "aziza", "1000")
	corruptPlan(t, ts, "aziza", 55)

	dm := NewDriftMonitor(ts.handler.Service, zerolog.Nop())
	dm.AutoFix = true
	run := dm.RunNow(context.Background())
	require.Len(t, run.Drifted, 1)
	assert.True(t, run.Drifted[0].Fixed)

	again := dm.RunNow(context.Background())
	assert.Empty(t, again.Drifted)
}

func TestDriftMonitor_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	ts := newTestServer(t)
	ts.putPlan(t, "muxlisa", "1000")

	dm := NewDriftMonitor(ts.handler.Service, zerolog.Nop())
	dm.CheckInterval = time.Hour
	dm.Start()
	require.Eventually(t, func() bool { return dm.LastRun() != nil }, time.Second, 5*time.Millisecond)
	dm.Stop()
	dm.Stop()

	disabled := NewDriftMonitor(ts.handler.Service, zerolog.Nop())
	disabled.CheckInterval = 0
	disabled.Start()
	disabled.Stop()
	assert.Nil(t, disabled.LastRun())
}

func TestGetDrift_Endpoint(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/drift", directorHeaders, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.handler.Drift = NewDriftMonitor(ts.handler.Service, zerolog.Nop())
	ts.putPlan(t, "muxlisa", "1000")
	corruptPlan(t, ts, "muxlisa", 1)

	rec = ts.do(t, http.MethodGet, "/api/drift", directorHeaders, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/drift?run=true", directorHeaders, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[DriftRun](t, rec)
	assert.Equal(t, 1, run.Checked)
	require.Len(t, run.Drifted, 1)
	assert.Equal(t, "muxlisa", run.Drifted[0].AgentID)
}

func TestGetDrift_AgentCannotFixPlans(t *testing.T) {
	// GIVEN: An auto-fixing drift monitor and a plan with a corrupted total
	// WHEN: An agent asks for a fresh drift run
	// THEN: The request is refused and the stored total is untouched

	ts := newTestServer(t)
	ts.putPlan(t, "aziza", "1000")
	corruptPlan(t, ts, "aziza", 55)
	dm := NewDriftMonitor(ts.handler.Service, zerolog.Nop())
	dm.AutoFix = true
	ts.handler.Drift = dm

	rec := ts.do(t, http.MethodGet, "/api/drift?run=true", muxlisaHeaders, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, dm.LastRun())

	p, err := ts.handler.Service.GetPlan(context.Background(), "aziza")
	require.NoError(t, err)
	assert.Equal(t, "55", p.CurrentTotal.String())
}
