package tracking

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/aRFialho/AvanTracking/internal/models"
)

// ErrNoData means the provider answered but knows nothing about the order
// yet. This is an expected outcome, not a fetch failure: freshly imported
// orders often have no tracking record for days.
var ErrNoData = errors.New("no tracking data for order")

// Result is one provider snapshot for a single order. Optional sub-fields
// the provider omitted stay at their zero value; the caller retains its own
// data for those.
type Result struct {
	OrderNumber string

	// Status is already mapped to the canonical enumeration; StatusRaw keeps
	// the provider's human-readable label.
	Status    string
	StatusRaw string

	// CarrierName is the logistic provider's display name, empty when the
	// provider did not report one.
	CarrierName string

	EstimatedDeliveryDate *time.Time

	Events []*models.TrackingEvent
}

// LastEventDate returns the most recent event date, or zero when the history
// is empty.
func (r Result) LastEventDate() time.Time {
	var last time.Time
	for _, e := range r.Events {
		if e.EventDate.After(last) {
			last = e.EventDate
		}
	}
	return last
}

type Client interface {
	FetchTracking(ctx context.Context, orderNumber string) (Result, error)
}
