// Package reconcile merges the tracking provider's view of an order into the
// stored one. Terminal orders are never touched, channel-managed orders are
// classified without a provider call, everything else goes through the rate
// limited fetch-and-merge path.
package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/aRFialho/AvanTracking/internal/integrations/tracking"
	"github.com/aRFialho/AvanTracking/internal/logistics"
	"github.com/aRFialho/AvanTracking/internal/models"
	"github.com/aRFialho/AvanTracking/internal/storage/pgorders"
)

type Repository interface {
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	MarkSyncFailure(ctx context.Context, orderID uint64, reason string, syncedAt time.Time) error
	MarkChannelLogistics(ctx context.Context, orderID uint64, lastUpdate time.Time, ev *models.TrackingEvent) error
	ApplyOrderUpdate(ctx context.Context, upd pgorders.OrderUpdate) error
}

// Gate is the admission contract of internal/ratelimit.Limiter.
type Gate interface {
	RunGated(ctx context.Context, fn func(ctx context.Context) error) error
}

type Kind string

const (
	KindUpdated           Kind = "updated"
	KindChannelClassified Kind = "channel_classified"
	KindSkipped           Kind = "skipped"
	KindFailed            Kind = "failed"
)

type Outcome struct {
	OrderID     uint64 `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Kind        Kind   `json:"kind"`
	Reason      string `json:"reason,omitempty"`
	Status      string `json:"status,omitempty"`
}

var ErrOrderNotFound = errors.New("order not found")

// ReasonNoData is the recorded reason when the provider answers but knows
// nothing about the order. Batch summaries count these as failures.
const ReasonNoData = "sem dados de rastreamento no provedor"

type Reconciler struct {
	repo     Repository
	provider tracking.Client
	gate     Gate
	now      func() time.Time

	keys sync.Map // orderNumber -> *sync.Mutex
}

func New(repo Repository, provider tracking.Client, gate Gate) *Reconciler {
	return &Reconciler{
		repo:     repo,
		provider: provider,
		gate:     gate,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SyncOrder reconciles one order by its business key. Concurrent calls for
// the same key are serialized; different keys run independently.
func (r *Reconciler) SyncOrder(ctx context.Context, orderNumber string) (Outcome, error) {
	muAny, _ := r.keys.LoadOrStore(orderNumber, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	o, err := r.repo.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return Outcome{}, err
	}
	if o == nil {
		return Outcome{}, ErrOrderNotFound
	}
	return r.syncLoaded(ctx, o)
}

func (r *Reconciler) syncLoaded(ctx context.Context, o *models.Order) (Outcome, error) {
	now := r.now()
	out := Outcome{OrderID: o.ID, OrderNumber: o.OrderNumber, Status: o.Status}

	if models.IsTerminal(o.Status) {
		out.Kind = KindSkipped
		out.Reason = "status terminal"
		return out, nil
	}

	if logistics.ChannelManaged(o.FreightType) {
		// The synthetic event marks when the channel took over, which is the
		// shipping date, not the moment classification happened to run.
		ev := &models.TrackingEvent{
			Status:      models.StatusChannelLogistics,
			Description: "Logística gerenciada pelo canal de venda",
			EventDate:   o.ShippingDate,
		}
		if err := r.repo.MarkChannelLogistics(ctx, o.ID, o.ShippingDate, ev); err != nil {
			return out, err
		}
		out.Kind = KindChannelClassified
		out.Status = models.StatusChannelLogistics
		return out, nil
	}

	var res tracking.Result
	fetchErr := r.gate.RunGated(ctx, func(ctx context.Context) error {
		var err error
		res, err = r.provider.FetchTracking(ctx, o.OrderNumber)
		return err
	})

	if fetchErr != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		reason := fetchErr.Error()
		if errors.Is(fetchErr, tracking.ErrNoData) {
			reason = ReasonNoData
		}
		if err := r.repo.MarkSyncFailure(ctx, o.ID, reason, now); err != nil {
			return out, err
		}
		if errors.Is(fetchErr, tracking.ErrNoData) {
			out.Kind = KindSkipped
		} else {
			out.Kind = KindFailed
		}
		out.Reason = reason
		return out, nil
	}

	upd := merge(o, res, now)
	if err := r.repo.ApplyOrderUpdate(ctx, upd); err != nil {
		return out, err
	}
	out.Kind = KindUpdated
	out.Status = upd.Status
	return out, nil
}

// merge computes the post-sync state of an order from the provider result.
// Fields the provider did not report keep their stored values.
func merge(o *models.Order, res tracking.Result, now time.Time) pgorders.OrderUpdate {
	freight := o.FreightType
	if res.CarrierName != "" {
		freight = models.NormalizeCarrierName(res.CarrierName)
	}

	est := o.EstimatedDeliveryDate
	if res.EstimatedDeliveryDate != nil {
		est = res.EstimatedDeliveryDate
	}

	lastUpdate := res.LastEventDate()
	if lastUpdate.IsZero() {
		lastUpdate = now
	}

	events := normalizeEvents(res.Events)

	return pgorders.OrderUpdate{
		OrderID:               o.ID,
		SyncedAt:              now,
		Status:                res.Status,
		FreightType:           freight,
		EstimatedDeliveryDate: est,
		IsDelayed:             models.ComputeDelayed(res.Status, est, now),
		LastUpdate:            lastUpdate,
		Events:                events,
	}
}

// normalizeEvents sorts the provider history by event date and collapses
// consecutive identical entries. Providers repeat rows across polls and the
// stored history must not accumulate them.
func normalizeEvents(in []*models.TrackingEvent) []*models.TrackingEvent {
	out := make([]*models.TrackingEvent, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EventDate.Before(out[j].EventDate)
	})

	dedup := out[:0]
	for _, e := range out {
		if n := len(dedup); n > 0 {
			prev := dedup[n-1]
			if prev.Status == e.Status && prev.Description == e.Description && prev.EventDate.Equal(e.EventDate) {
				continue
			}
		}
		dedup = append(dedup, e)
	}
	return dedup
}
