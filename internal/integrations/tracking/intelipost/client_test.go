package intelipost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aRFialho/AvanTracking/internal/integrations/tracking"
	"github.com/aRFialho/AvanTracking/internal/models"
)

func TestClient_FetchTracking_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "40115", req.Variables["clientId"])
		require.Equal(t, "VD-1021", req.Variables["orderNumber"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "data": {
    "trackingStatus": {
      "order": {"order_number": "VD-1021"},
      "tracking": {
        "status": "Pedido Entregue ao destinatário",
        "status_label": "Entregue",
        "estimated_delivery_date_lp": "2025-06-10T00:00:00",
        "history": [
          {"event_date": "2025-06-02T09:00:00", "status_label": "Criado", "provider_message": "Pedido criado", "macro_state": {"code": "CREATED"}},
          {"event_date": "2025-06-08T14:30:00", "status_label": "Entregue", "provider_message": "", "macro_state": {"code": "DELIVERED"}}
        ]
      },
      "logistic_provider": {"name": "Jamef"},
      "end_customer": {"address": {"city": "Campinas", "state": "SP"}}
    }
  }
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "40115", "https://example.test")
	res, err := c.FetchTracking(context.Background(), " VD-1021 ")
	require.NoError(t, err)
	require.Equal(t, "VD-1021", res.OrderNumber)
	require.Equal(t, models.StatusDelivered, res.Status)
	require.Equal(t, "Jamef", res.CarrierName)
	require.NotNil(t, res.EstimatedDeliveryDate)
	require.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), *res.EstimatedDeliveryDate)

	require.Len(t, res.Events, 2)
	require.Equal(t, "CREATED", res.Events[0].Status)
	require.Equal(t, "Pedido criado", res.Events[0].Description)
	// Empty provider_message falls back to the status label.
	require.Equal(t, "Entregue", res.Events[1].Description)
	require.NotNil(t, res.Events[0].City)
	require.Equal(t, "Campinas", *res.Events[0].City)
	require.Equal(t, time.Date(2025, 6, 8, 14, 30, 0, 0, time.UTC), res.LastEventDate())
}

func TestClient_FetchTracking_NoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"trackingStatus": null}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "40115", "")
	_, err := c.FetchTracking(context.Background(), "VD-404")
	require.ErrorIs(t, err, tracking.ErrNoData)
}

func TestClient_FetchTracking_GraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors": [{"message": "invalid client"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "40115", "")
	_, err := c.FetchTracking(context.Background(), "VD-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, tracking.ErrNoData)
	require.Contains(t, err.Error(), "invalid client")
}

func TestClient_FetchTracking_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "40115", "")
	_, err := c.FetchTracking(context.Background(), "VD-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, tracking.ErrNoData)
}

func TestClient_FetchTracking_PartialPayload(t *testing.T) {
	// Missing estimate, missing address, history row without a date.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
  "data": {
    "trackingStatus": {
      "order": {"order_number": "VD-7"},
      "tracking": {
        "status": "Em trânsito",
        "history": [
          {"event_date": "", "status_label": "???", "macro_state": {}},
          {"event_date": "2025-06-02", "status_label": "Coletado", "macro_state": {}}
        ]
      }
    }
  }
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "40115", "")
	res, err := c.FetchTracking(context.Background(), "VD-7")
	require.NoError(t, err)
	require.Equal(t, models.StatusShipped, res.Status)
	require.Nil(t, res.EstimatedDeliveryDate)
	require.Empty(t, res.CarrierName)
	require.Len(t, res.Events, 1)
	require.Equal(t, "UNKNOWN", res.Events[0].Status)
	require.Nil(t, res.Events[0].City)
}
