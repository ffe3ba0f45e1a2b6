package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstkey-holdings/loanproc/internal/loanfs"
	"github.com/firstkey-holdings/loanproc/internal/model"
	"github.com/firstkey-holdings/loanproc/internal/store"
)

// stubStore serves canned ledger entries to the router tests.
type stubStore struct {
	runs []model.PipelineRun
}

func (s *stubStore) StartStep(context.Context, string, string) (*model.PipelineRun, error) {
	return nil, nil
}
func (s *stubStore) FinishStep(context.Context, string, *model.StepResult) error { return nil }
func (s *stubStore) GetRun(context.Context, string) (*model.PipelineRun, error)  { return nil, nil }
func (s *stubStore) ListRuns(_ context.Context, filter store.RunFilter) ([]model.PipelineRun, error) {
	var out []model.PipelineRun
	for _, r := range s.runs {
		if filter.LoanID != "" && r.LoanID != filter.LoanID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
func (s *stubStore) LatestStep(context.Context, string, string) (*model.PipelineRun, error) {
	return nil, nil
}
func (s *stubStore) UpsertComparisons(context.Context, []model.ComparisonRecord) (int64, error) {
	return 0, nil
}
func (s *stubStore) Migrate(context.Context) error { return nil }
func (s *stubStore) Close() error                  { return nil }

func newTestRouter(t *testing.T) (http.Handler, loanfs.Layout) {
	t.Helper()
	fs := loanfs.New(t.TempDir())

	require.NoError(t, loanfs.WriteJSON(fs.SummaryFile("1000178625"), model.ConsistencySummary{
		LoanID:    "1000178625",
		TotalRuns: 3,
	}))

	st := &stubStore{runs: []model.PipelineRun{
		{ID: "run-1", LoanID: "1000178625", Step: "analyze", Status: model.StepStatusSucceeded, StartedAt: time.Now()},
		{ID: "run-2", LoanID: "1000178635", Step: "fetch", Status: model.StepStatusFailed, StartedAt: time.Now()},
	}}
	return newRouter(fs, st), fs
}

func TestServeHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeListLoans(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/loans", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var loans []struct {
		LoanID      string `json:"loan_id"`
		HasSummary  bool   `json:"has_summary"`
		HasTimeline bool   `json:"has_timeline"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loans))
	require.Len(t, loans, 1)
	assert.Equal(t, "1000178625", loans[0].LoanID)
	assert.True(t, loans[0].HasSummary)
	assert.False(t, loans[0].HasTimeline)
}

func TestServeLoanSummary(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/loans/1000178625/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary model.ConsistencySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.TotalRuns)
}

func TestServeLoanSummaryNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/loans/9999/summary", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeLoanRuns(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/loans/1000178635/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []model.PipelineRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-2", runs[0].ID)
}

func TestServeRunsFilter(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs?loan=1000178625", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []model.PipelineRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}
