// Package ingest is the write boundary for order candidates coming from
// spreadsheets, manual imports and the storefront API. Records are mapped to
// canonical statuses, keyless and canceled records are dropped, and what
// survives lands in storage as orders with an initial tracking history.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aRFialho/AvanTracking/internal/logistics"
	"github.com/aRFialho/AvanTracking/internal/models"
	"github.com/aRFialho/AvanTracking/internal/storage/pgorders"
)

type Repository interface {
	UpsertOrders(ctx context.Context, orders []*models.Order) (pgorders.UpsertResult, error)
}

// Record is one unvalidated order candidate.
type Record struct {
	OrderNumber           string
	CustomerName          string
	SalesChannel          string
	FreightType           string
	City                  string
	State                 string
	ShippingDate          *time.Time
	MaxShippingDeadline   *time.Time
	EstimatedDeliveryDate *time.Time
	Status                string

	History []EventRecord
}

type EventRecord struct {
	Status      string
	Description string
	EventDate   *time.Time
	City        *string
	State       *string
}

type Summary struct {
	Received        int `json:"received"`
	Created         int `json:"created"`
	Updated         int `json:"updated"`
	Skipped         int `json:"skipped"`
	DroppedNoKey    int `json:"droppedNoKey"`
	DroppedCanceled int `json:"droppedCanceled"`
}

// MapIngestStatus translates the messy source vocabulary into a canonical
// status. The canonical names themselves pass through unchanged.
func MapIngestStatus(raw string) string {
	up := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case up == "":
		return models.StatusPending
	case containsAny(up, "ENTREGUE", "CONCLUÍDO", "CONCLUIDO", "DELIVERED", "FINALIZADO"):
		return models.StatusDelivered
	case containsAny(up, "CANCELADO", "CANCELED"):
		return models.StatusCanceled
	case containsAny(up, "DEVOLVIDO", "RETURNED"):
		return models.StatusReturned
	case containsAny(up, "FALHA", "ROUBO", "EXTRAVIO", "FAILURE"):
		return models.StatusFailure
	case containsAny(up, "TRANSITO", "TRÂNSITO", "ENVIADO", "SHIPPED"):
		return models.StatusShipped
	case containsAny(up, "TENTATIVA", "DELIVERY_ATTEMPT"):
		return models.StatusDeliveryAttempt
	case containsAny(up, "CRIADO", "CREATED"):
		return models.StatusCreated
	case up == models.StatusChannelLogistics:
		return models.StatusChannelLogistics
	default:
		return models.StatusPending
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var statusDescriptions = map[string]string{
	models.StatusPending:          "Pedido pendente de processamento",
	models.StatusCreated:          "Pedido criado",
	models.StatusShipped:          "Pedido enviado",
	models.StatusDeliveryAttempt:  "Tentativa de entrega",
	models.StatusDelivered:        "Pedido entregue",
	models.StatusFailure:          "Falha na entrega",
	models.StatusReturned:         "Pedido devolvido",
	models.StatusCanceled:         "Pedido cancelado",
	models.StatusChannelLogistics: "Logística gerenciada pelo canal de venda",
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func New(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// ImportRecords validates and persists a batch. Records without an order
// number are dropped silently; canceled records never reach storage.
func (s *Service) ImportRecords(ctx context.Context, records []Record) (Summary, error) {
	sum := Summary{Received: len(records)}
	now := s.now()

	orders := make([]*models.Order, 0, len(records))
	for _, r := range records {
		key := strings.TrimSpace(r.OrderNumber)
		if key == "" {
			sum.DroppedNoKey++
			continue
		}

		status := MapIngestStatus(r.Status)
		if status == models.StatusCanceled {
			sum.DroppedCanceled++
			continue
		}

		shipping := now
		if r.ShippingDate != nil {
			shipping = r.ShippingDate.UTC()
		}

		customer := strings.TrimSpace(r.CustomerName)
		if customer == "" {
			customer = "Desconhecido"
		}
		channel := strings.TrimSpace(r.SalesChannel)
		if channel == "" {
			channel = "Não identificado"
		}

		o := &models.Order{
			OrderNumber:           key,
			CustomerName:          customer,
			SalesChannel:          channel,
			FreightType:           logistics.NormalizeFreightLabel(r.FreightType),
			City:                  strings.TrimSpace(r.City),
			State:                 strings.TrimSpace(r.State),
			ShippingDate:          shipping,
			MaxShippingDeadline:   r.MaxShippingDeadline,
			EstimatedDeliveryDate: r.EstimatedDeliveryDate,
			Status:                status,
			IsDelayed:             models.ComputeDelayed(status, r.EstimatedDeliveryDate, now),
			LastUpdate:            now,
		}
		o.History = buildHistory(r, o, status, shipping)
		orders = append(orders, o)
	}

	res, err := s.repo.UpsertOrders(ctx, orders)
	if err != nil {
		return sum, err
	}
	sum.Created = res.Created
	sum.Updated = res.Updated
	sum.Skipped += res.Skipped

	slog.Info("import finished",
		"received", sum.Received,
		"created", sum.Created,
		"updated", sum.Updated,
		"skipped", sum.Skipped,
		"dropped_no_key", sum.DroppedNoKey,
		"dropped_canceled", sum.DroppedCanceled,
	)
	return sum, nil
}

func buildHistory(r Record, o *models.Order, status string, shipping time.Time) []*models.TrackingEvent {
	if len(r.History) > 0 {
		evs := make([]*models.TrackingEvent, 0, len(r.History))
		for _, h := range r.History {
			evStatus := h.Status
			if evStatus == "" {
				evStatus = status
			}
			desc := h.Description
			if desc == "" {
				desc = "Evento de rastreamento"
			}
			at := shipping
			if h.EventDate != nil {
				at = h.EventDate.UTC()
			}
			evs = append(evs, &models.TrackingEvent{
				Status:      evStatus,
				Description: desc,
				EventDate:   at,
				City:        h.City,
				State:       h.State,
			})
		}
		return evs
	}

	desc, ok := statusDescriptions[status]
	if !ok {
		desc = "Status atualizado"
	}
	var city, state *string
	if o.City != "" {
		city = &o.City
	}
	if o.State != "" {
		state = &o.State
	}
	return []*models.TrackingEvent{{
		Status:      status,
		Description: desc,
		EventDate:   shipping,
		City:        city,
		State:       state,
	}}
}
