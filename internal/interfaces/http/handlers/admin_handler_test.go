package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icon-forge/iconforge/internal/metrics"
)

type fakeStatsStore struct {
	summary       metrics.Summary
	summaryErr    error
	failures      []metrics.FailureRecord
	failuresErr   error
	deletedCount  int64
	deleteErr     error
}

func (f *fakeStatsStore) Summarize(context.Context) (metrics.Summary, error) {
	return f.summary, f.summaryErr
}

func (f *fakeStatsStore) ListFailures(context.Context, int) ([]metrics.FailureRecord, error) {
	return f.failures, f.failuresErr
}

func (f *fakeStatsStore) DeleteFailures(context.Context) (int64, error) {
	return f.deletedCount, f.deleteErr
}

func TestAdminHandler_Summary_ReturnsSummary(t *testing.T) {
	store := &fakeStatsStore{summary: metrics.Summary{TotalJobs: 10, SuccessfulJobs: 8, FailedJobs: 2}}
	h := NewAdminHandler(store, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats/summary", nil)
	rec := httptest.NewRecorder()

	h.Summary(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got metrics.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(10), got.TotalJobs)
}

func TestAdminHandler_Failures_ReturnsList(t *testing.T) {
	store := &fakeStatsStore{failures: []metrics.FailureRecord{{ID: "a", FailureReason: "boom"}}}
	h := NewAdminHandler(store, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats/failures", nil)
	rec := httptest.NewRecorder()

	h.Failures(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}

func TestAdminHandler_DeleteFailures_ReturnsCount(t *testing.T) {
	store := &fakeStatsStore{deletedCount: 3}
	h := NewAdminHandler(store, zerolog.Nop())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/stats/failures", nil)
	rec := httptest.NewRecorder()

	h.DeleteFailures(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(3), got["deleted"])
}

func TestAdminAuth_RejectsWrongSecret(t *testing.T) {
	mw := AdminAuth("correct-secret", zerolog.Nop())
	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats/summary", nil)
	req.Header.Set("X-Admin-Password", "wrong-secret")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestAdminAuth_AcceptsCorrectSecret(t *testing.T) {
	mw := AdminAuth("correct-secret", zerolog.Nop())
	called := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats/summary", nil)
	req.Header.Set("X-Admin-Password", "correct-secret")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}
