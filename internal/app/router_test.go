package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
	"github.com/ledgerpos/ledgerpos/internal/ledger"
	"github.com/ledgerpos/ledgerpos/internal/masterdata"
	"github.com/ledgerpos/ledgerpos/internal/observability"
	"github.com/ledgerpos/ledgerpos/jobs"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := discardLogger()
	store := entitystore.NewMemoryStore()
	metrics := observability.NewMetrics()
	sessions := ledger.NewSessions(store, logger, ledger.SessionsConfig{Service: ledger.ServiceConfig{Metrics: metrics}})
	t.Cleanup(sessions.Close)

	router := NewRouter(RouterParams{
		Logger:            logger,
		Config:            &Config{RateLimitPerMinute: 1000},
		LedgerHandler:     ledger.NewHandler(logger, sessions, nil, nil),
		MasterDataHandler: masterdata.NewHandler(logger, masterdata.NewService(store, sessions)),
		JobHandler:        jobs.NewHandler(nil, logger),
		Metrics:           metrics,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func get(t *testing.T, srv *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRouterHealthAndSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	resp := get(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	resp = get(t, srv, "/jobs/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouterSaleAndPaymentFlow(t *testing.T) {
	srv := newTestServer(t)

	product := decode[ledger.Product](t, post(t, srv, "/stores/s1/products", `{"name":"Soap","unit_price":25,"stock":10}`))
	customer := decode[ledger.Customer](t, post(t, srv, "/stores/s1/customers", `{"name":"Ana"}`))
	method := decode[ledger.PaymentMethod](t, post(t, srv, "/stores/s1/payment-methods", `{"name":"Cash"}`))

	resp := post(t, srv, "/stores/s1/sales", `{"customer_id":"`+customer.ID+`","items":[{"product_id":"`+product.ID+`","quantity":4}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sale := decode[ledger.Sale](t, resp)
	require.EqualValues(t, 100, sale.Balance)

	resp = post(t, srv, "/stores/s1/customers/"+customer.ID+"/payments", `{"amount":60,"payment_method_id":"`+method.ID+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	group := decode[ledger.PaymentGroup](t, resp)
	require.EqualValues(t, 60, group.TotalAmount)
	require.Equal(t, "Cash", group.PaymentMethodName)

	resp = get(t, srv, "/stores/s1/customers/"+customer.ID+"/outstanding")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	debt := decode[ledger.OutstandingDebt](t, resp)
	require.EqualValues(t, 40, debt.Total)

	resp = get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
