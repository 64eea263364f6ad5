package fake

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/aRFialho/AvanTracking/internal/integrations/tracking"
	"github.com/aRFialho/AvanTracking/internal/models"
)

// Client is a deterministic stand-in for the tracking provider, used in demo
// mode and in tests. The outcome depends only on the order number: a slice of
// orders is "unknown" (ErrNoData), a slice is delivered, the rest in transit.
type Client struct{}

func New() *Client { return &Client{} }

func (c *Client) FetchTracking(ctx context.Context, orderNumber string) (tracking.Result, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderNumber))
	v := h.Sum32()

	if v%7 == 0 {
		return tracking.Result{}, tracking.ErrNoData
	}

	now := time.Now().UTC()
	raw := "Em trânsito"
	if v%5 == 0 {
		raw = "Pedido Entregue ao destinatário"
	}
	status := tracking.MapProviderStatus(raw)

	est := now.Add(72 * time.Hour)
	events := []*models.TrackingEvent{
		{
			Status:      "CREATED",
			Description: "Pedido criado na transportadora",
			EventDate:   now.Add(-48 * time.Hour),
		},
		{
			Status:      status,
			Description: raw,
			EventDate:   now,
		},
	}

	return tracking.Result{
		OrderNumber:           orderNumber,
		Status:                status,
		StatusRaw:             raw,
		CarrierName:           "Transportadora Demo",
		EstimatedDeliveryDate: &est,
		Events:                events,
	}, nil
}
