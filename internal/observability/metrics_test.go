package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/ledgerpos/ledgerpos/internal/jobs"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesJobMetrics(t *testing.T) {
	metrics := NewMetrics()
	jobs := jobmetrics.NewMetrics(metrics.Registerer())
	require.NoError(t, jobs.Track("ledger:integrity").End(nil))

	require.Contains(t, scrape(t, metrics), "ledgerpos_jobs_total")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `ledgerpos_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `ledgerpos_http_request_duration_seconds_bucket{route="/test"`)
}

func TestRecordLedgerOperation(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordLedgerOperation("pay_customer", "ok")
	metrics.RecordLedgerOperation("pay_customer", "ok")
	metrics.RecordLedgerOperation("commit_sale", "conflict")

	body := scrape(t, metrics)
	require.True(t, strings.Contains(body, `ledgerpos_ledger_operations_total{op="pay_customer",outcome="ok"} 2`), body)
	require.Contains(t, body, `ledgerpos_ledger_operations_total{op="commit_sale",outcome="conflict"} 1`)

	var nilMetrics *Metrics
	nilMetrics.RecordLedgerOperation("x", "y")
}
