package ordersapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/aRFialho/AvanTracking/internal/models"
	"github.com/aRFialho/AvanTracking/internal/ratelimit"
	"github.com/aRFialho/AvanTracking/internal/services/ingest"
	"github.com/aRFialho/AvanTracking/internal/services/orders"
	"github.com/aRFialho/AvanTracking/internal/services/reconcile"
	"github.com/aRFialho/AvanTracking/internal/services/stats"
)

type svcStub struct {
	order   *models.Order
	outcome reconcile.Outcome
}

func (s *svcStub) GetOrder(ctx context.Context, orderNumber string) (*models.Order, error) {
	if s.order != nil && s.order.OrderNumber == orderNumber {
		return s.order, nil
	}
	return nil, orders.ErrNotFound
}

func (s *svcStub) ListOrders(ctx context.Context) ([]*models.Order, error) {
	if s.order == nil {
		return nil, nil
	}
	return []*models.Order{s.order}, nil
}

func (s *svcStub) ListOrderEvents(ctx context.Context, orderNumber string, limit, offset int) ([]*models.TrackingEvent, error) {
	if s.order == nil || s.order.OrderNumber != orderNumber {
		return nil, orders.ErrNotFound
	}
	return s.order.History, nil
}

func (s *svcStub) Dashboard(ctx context.Context) (stats.Dashboard, error) {
	return stats.Dashboard{Total: 1}, nil
}

func (s *svcStub) Alerts(ctx context.Context) ([]stats.RiskOrder, error) {
	return nil, nil
}

func (s *svcStub) CarrierRanking(ctx context.Context) ([]stats.CarrierStats, error) {
	return []stats.CarrierStats{{Name: "Jadlog", Volume: 3}}, nil
}

func (s *svcStub) SyncOne(ctx context.Context, orderNumber string) (reconcile.Outcome, error) {
	if s.order == nil || s.order.OrderNumber != orderNumber {
		return reconcile.Outcome{}, orders.ErrNotFound
	}
	return s.outcome, nil
}

type importerStub struct {
	records []ingest.Record
}

func (i *importerStub) ImportRecords(ctx context.Context, records []ingest.Record) (ingest.Summary, error) {
	i.records = append(i.records, records...)
	return ingest.Summary{Received: len(records), Created: len(records)}, nil
}

func (i *importerStub) ImportFromStorefront(ctx context.Context, src ingest.StorefrontSource, maxPages int) (ingest.Summary, error) {
	return ingest.Summary{Received: 2, Created: 2}, nil
}

func newTestServer(t *testing.T, svc *svcStub, imp *importerStub, lim LimiterStats) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	api := New(svc, imp, nil, lim)
	api.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func limiterAt(calls int) *ratelimit.Limiter {
	l := ratelimit.New(100, time.Minute)
	for i := 0; i < calls; i++ {
		l.RecordCall()
	}
	return l
}

func TestGetOrder(t *testing.T) {
	svc := &svcStub{order: &models.Order{OrderNumber: "PED-1", Status: models.StatusShipped}}
	srv := newTestServer(t, svc, &importerStub{}, limiterAt(0))

	resp, err := http.Get(srv.URL + "/api/orders/PED-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "PED-1", got.OrderNumber)
}

func TestGetOrder_NotFound(t *testing.T) {
	srv := newTestServer(t, &svcStub{}, &importerStub{}, limiterAt(0))

	resp, err := http.Get(srv.URL + "/api/orders/PED-404")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "Pedido não encontrado", body["error"])
}

func TestImportOrders(t *testing.T) {
	imp := &importerStub{}
	srv := newTestServer(t, &svcStub{}, imp, limiterAt(0))

	body := `{"orders":[{"orderNumber":"PED-1","status":"Enviado","shippingDate":"2026-08-01T00:00:00Z"}]}`
	resp, err := http.Post(srv.URL+"/api/orders/import", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sum ingest.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sum))
	require.Equal(t, 1, sum.Created)
	require.Len(t, imp.records, 1)
	require.Equal(t, "PED-1", imp.records[0].OrderNumber)
}

func TestImportOrders_EmptyBody(t *testing.T) {
	srv := newTestServer(t, &svcStub{}, &importerStub{}, limiterAt(0))

	resp, err := http.Post(srv.URL+"/api/orders/import", "application/json", strings.NewReader(`{"orders":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSyncOrder_FailedOutcomeStaysHTTP200(t *testing.T) {
	svc := &svcStub{
		order:   &models.Order{OrderNumber: "PED-1", Status: models.StatusShipped},
		outcome: reconcile.Outcome{OrderNumber: "PED-1", Kind: reconcile.KindFailed, Reason: "intelipost http 500"},
	}
	srv := newTestServer(t, svc, &importerStub{}, limiterAt(0))

	resp, err := http.Post(srv.URL+"/api/orders/PED-1/sync", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got syncResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, reconcile.KindFailed, got.Kind)
	require.Contains(t, got.Message, "Falha temporária")
}

func TestDashboardAndRanking(t *testing.T) {
	svc := &svcStub{order: &models.Order{OrderNumber: "PED-1"}}
	srv := newTestServer(t, svc, &importerStub{}, limiterAt(0))

	resp, err := http.Get(srv.URL + "/api/dashboard")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/api/carriers/ranking")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var ranking []stats.CarrierStats
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&ranking))
	require.Equal(t, "Jadlog", ranking[0].Name)
}

func TestAlerts_EmptyIsJSONArray(t *testing.T) {
	srv := newTestServer(t, &svcStub{}, &importerStub{}, limiterAt(0))

	resp, err := http.Get(srv.URL + "/api/alerts")
	require.NoError(t, err)
	defer resp.Body.Close()

	b := make([]byte, 64)
	n, _ := resp.Body.Read(b)
	require.Equal(t, "[]", strings.TrimSpace(string(b[:n])))
}

func TestRateLimitLabels(t *testing.T) {
	cases := []struct {
		calls int
		want  string
	}{
		{10, "OK"},
		{75, "WARNING"},
		{95, "CRITICAL"},
	}
	for _, c := range cases {
		srv := newTestServer(t, &svcStub{}, &importerStub{}, limiterAt(c.calls))

		resp, err := http.Get(srv.URL + "/api/ratelimit")
		require.NoError(t, err)
		var got rateLimitResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		resp.Body.Close()
		require.Equal(t, c.want, got.Status, "calls=%d", c.calls)
		require.Equal(t, c.calls, got.RequestsInWindow)
	}
}
