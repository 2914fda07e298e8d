package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakefit-analytics/gmb-pipeline/internal/model"
	"github.com/wakefit-analytics/gmb-pipeline/internal/pipeline"
	"github.com/wakefit-analytics/gmb-pipeline/internal/store"
)

type stubRunner struct {
	outcome *model.RunOutcome
	err     error
	calls   int
}

func (s *stubRunner) Run(context.Context) (*model.RunOutcome, error) {
	s.calls++
	return s.outcome, s.err
}

func newHistory(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func serve(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestBuildRouter_Health(t *testing.T) {
	rr := serve(t, buildRouter(nil, nil), http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildRouter_RunSuccess(t *testing.T) {
	runner := &stubRunner{outcome: &model.RunOutcome{
		RunID:    "run-1",
		Snapshot: model.Snapshot{Timestamp: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
	}}

	rr := serve(t, buildRouter(runner, nil), http.MethodPost, "/run")

	assert.Equal(t, http.StatusOK, rr.Code)
	var body runResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Pipeline executed successfully.", body.Message)
	assert.Equal(t, http.StatusOK, body.Status)
	assert.Equal(t, 1, runner.calls)
}

func TestBuildRouter_RunFailure(t *testing.T) {
	runner := &stubRunner{err: &pipeline.Failure{
		Kind:    pipeline.KindInput,
		Phase:   pipeline.PhaseInput,
		Message: `missing column "Region"`,
		Err:     eris.New("missing column"),
	}}

	rr := serve(t, buildRouter(runner, nil), http.MethodPost, "/run")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var body runResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, `Pipeline failed: missing column "Region"`, body.Message)
	assert.Equal(t, http.StatusInternalServerError, body.Status)
}

func TestBuildRouter_RunWrongMethod(t *testing.T) {
	runner := &stubRunner{}
	rr := serve(t, buildRouter(runner, nil), http.MethodGet, "/run")

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Zero(t, runner.calls)
}

func TestTriggerRun_NilPipeline(t *testing.T) {
	status, resp := triggerRun(context.Background(), nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, resp.Message, "Pipeline failed: ")
}

func TestBuildRouter_RunsDisabled(t *testing.T) {
	rr := serve(t, buildRouter(nil, nil), http.MethodGet, "/runs")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBuildRouter_RunsList(t *testing.T) {
	st := newHistory(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "2025-01-14")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, a.ID, &model.RunResult{Stores: 3}))
	b, err := st.CreateRun(ctx, "2025-01-15")
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, b.ID, "boom"))

	h := buildRouter(nil, st)

	rr := serve(t, h, http.MethodGet, "/runs")
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)

	rr = serve(t, h, http.MethodGet, "/runs?status=failed")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "boom", runs[0].Error)

	rr = serve(t, h, http.MethodGet, "/runs?date=2025-02-01")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = serve(t, h, http.MethodGet, "/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBuildRouter_RunDetail(t *testing.T) {
	st := newHistory(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "2025-01-15")
	require.NoError(t, err)
	_, err = st.CreatePhase(ctx, run.ID, pipeline.PhaseInput)
	require.NoError(t, err)
	require.NoError(t, st.SaveKPIs(ctx, run.ID, []model.KPIRow{{Segment: "North", StoreCount: 4}}))

	h := buildRouter(nil, st)

	rr := serve(t, h, http.MethodGet, "/runs/"+run.ID)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Run    model.Run        `json:"run"`
		Phases []model.RunPhase `json:"phases"`
		KPIs   []model.KPIRow   `json:"kpis"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, run.ID, body.Run.ID)
	require.Len(t, body.Phases, 1)
	assert.Equal(t, pipeline.PhaseInput, body.Phases[0].Name)
	require.Len(t, body.KPIs, 1)
	assert.Equal(t, 4, body.KPIs[0].StoreCount)

	rr = serve(t, h, http.MethodGet, "/runs/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
