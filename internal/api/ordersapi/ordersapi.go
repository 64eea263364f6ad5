// Package ordersapi is the JSON surface of the dashboard backend.
package ordersapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/aRFialho/AvanTracking/internal/models"
	"github.com/aRFialho/AvanTracking/internal/ratelimit"
	"github.com/aRFialho/AvanTracking/internal/services/ingest"
	"github.com/aRFialho/AvanTracking/internal/services/orders"
	"github.com/aRFialho/AvanTracking/internal/services/reconcile"
	"github.com/aRFialho/AvanTracking/internal/services/stats"
)

type OrdersService interface {
	GetOrder(ctx context.Context, orderNumber string) (*models.Order, error)
	ListOrders(ctx context.Context) ([]*models.Order, error)
	ListOrderEvents(ctx context.Context, orderNumber string, limit, offset int) ([]*models.TrackingEvent, error)
	Dashboard(ctx context.Context) (stats.Dashboard, error)
	Alerts(ctx context.Context) ([]stats.RiskOrder, error)
	CarrierRanking(ctx context.Context) ([]stats.CarrierStats, error)
	SyncOne(ctx context.Context, orderNumber string) (reconcile.Outcome, error)
}

type Importer interface {
	ImportRecords(ctx context.Context, records []ingest.Record) (ingest.Summary, error)
	ImportFromStorefront(ctx context.Context, src ingest.StorefrontSource, maxPages int) (ingest.Summary, error)
}

type LimiterStats interface {
	Stats() ratelimit.Stats
}

type API struct {
	svc        OrdersService
	importer   Importer
	storefront ingest.StorefrontSource
	limiter    LimiterStats
}

func New(svc OrdersService, importer Importer, storefront ingest.StorefrontSource, limiter LimiterStats) *API {
	return &API{svc: svc, importer: importer, storefront: storefront, limiter: limiter}
}

func (a *API) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/orders/import", a.importOrders)
		r.Post("/storefront/import", a.importFromStorefront)
		r.Get("/orders", a.listOrders)
		r.Get("/orders/{orderNumber}", a.getOrder)
		r.Get("/orders/{orderNumber}/events", a.listOrderEvents)
		r.Post("/orders/{orderNumber}/sync", a.syncOrder)
		r.Get("/dashboard", a.dashboard)
		r.Get("/alerts", a.alerts)
		r.Get("/carriers/ranking", a.carrierRanking)
		r.Get("/ratelimit", a.rateLimit)
	})
}

type importRequest struct {
	Orders []importOrder `json:"orders"`
}

type importOrder struct {
	OrderNumber           string        `json:"orderNumber"`
	CustomerName          string        `json:"customerName"`
	SalesChannel          string        `json:"salesChannel"`
	FreightType           string        `json:"freightType"`
	City                  string        `json:"city"`
	State                 string        `json:"state"`
	ShippingDate          *time.Time    `json:"shippingDate"`
	MaxShippingDeadline   *time.Time    `json:"maxShippingDeadline"`
	EstimatedDeliveryDate *time.Time    `json:"estimatedDeliveryDate"`
	Status                string        `json:"status"`
	TrackingHistory       []importEvent `json:"trackingHistory"`
}

type importEvent struct {
	Status      string     `json:"status"`
	Description string     `json:"description"`
	Date        *time.Time `json:"date"`
	City        *string    `json:"city"`
	State       *string    `json:"state"`
}

func (a *API) importOrders(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if len(req.Orders) == 0 {
		writeError(w, http.StatusBadRequest, "orders is empty")
		return
	}

	records := make([]ingest.Record, 0, len(req.Orders))
	for _, o := range req.Orders {
		rec := ingest.Record{
			OrderNumber:           o.OrderNumber,
			CustomerName:          o.CustomerName,
			SalesChannel:          o.SalesChannel,
			FreightType:           o.FreightType,
			City:                  o.City,
			State:                 o.State,
			ShippingDate:          o.ShippingDate,
			MaxShippingDeadline:   o.MaxShippingDeadline,
			EstimatedDeliveryDate: o.EstimatedDeliveryDate,
			Status:                o.Status,
		}
		for _, e := range o.TrackingHistory {
			rec.History = append(rec.History, ingest.EventRecord{
				Status:      e.Status,
				Description: e.Description,
				EventDate:   e.Date,
				City:        e.City,
				State:       e.State,
			})
		}
		records = append(records, rec)
	}

	sum, err := a.importer.ImportRecords(r.Context(), records)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) importFromStorefront(w http.ResponseWriter, r *http.Request) {
	if a.storefront == nil {
		writeError(w, http.StatusServiceUnavailable, "storefront integration is not configured")
		return
	}
	maxPages, _ := strconv.Atoi(r.URL.Query().Get("pages"))

	sum, err := a.importer.ImportFromStorefront(r.Context(), a.storefront, maxPages)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := a.svc.ListOrders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []*models.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.svc.GetOrder(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Pedido não encontrado")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) listOrderEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	evs, err := a.svc.ListOrderEvents(r.Context(), chi.URLParam(r, "orderNumber"), limit, offset)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Pedido não encontrado")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if evs == nil {
		evs = []*models.TrackingEvent{}
	}
	writeJSON(w, http.StatusOK, evs)
}

type syncResponse struct {
	reconcile.Outcome
	Message string `json:"message,omitempty"`
}

func (a *API) syncOrder(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.SyncOne(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Pedido não encontrado")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := syncResponse{Outcome: out}
	if out.Kind == reconcile.KindFailed {
		resp.Message = "Falha temporária ao consultar o provedor de rastreamento. Tente novamente mais tarde."
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := a.svc.Dashboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) alerts(w http.ResponseWriter, r *http.Request) {
	risks, err := a.svc.Alerts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if risks == nil {
		risks = []stats.RiskOrder{}
	}
	writeJSON(w, http.StatusOK, risks)
}

func (a *API) carrierRanking(w http.ResponseWriter, r *http.Request) {
	ranking, err := a.svc.CarrierRanking(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ranking == nil {
		ranking = []stats.CarrierStats{}
	}
	writeJSON(w, http.StatusOK, ranking)
}

type rateLimitResponse struct {
	ratelimit.Stats
	Status string `json:"status"`
}

// rateLimit reports limiter utilization with a traffic-light label. The
// thresholds live here, not in the limiter, so other consumers get raw
// numbers.
func (a *API) rateLimit(w http.ResponseWriter, r *http.Request) {
	st := a.limiter.Stats()
	writeJSON(w, http.StatusOK, rateLimitResponse{Stats: st, Status: rateLimitLabel(st.UtilizationPercent)})
}

func rateLimitLabel(pct float64) string {
	switch {
	case pct > 90:
		return "CRITICAL"
	case pct > 70:
		return "WARNING"
	default:
		return "OK"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
