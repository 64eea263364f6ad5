// Package syncer drives batch reconciliation. One pass walks every active
// order strictly in sequence, paced so the tracking provider never sees a
// burst, and publishes one broker message per reconciled order.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aRFialho/AvanTracking/internal/broker/messages"
	"github.com/aRFialho/AvanTracking/internal/models"
	"github.com/aRFialho/AvanTracking/internal/services/reconcile"
)

type Repository interface {
	ListActive(ctx context.Context) ([]*models.Order, error)
}

type Reconciler interface {
	SyncOrder(ctx context.Context, orderNumber string) (reconcile.Outcome, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Summary struct {
	Total   int      `json:"total"`
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

type Driver struct {
	repo       Repository
	reconciler Reconciler
	producer   Producer
	topic      string

	interval time.Duration
	pacing   time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalCycles         atomic.Int64
	totalOrders         atomic.Int64
	totalFailed         atomic.Int64
	inFlight            atomic.Bool
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, r Reconciler, producer Producer, topic string) *Driver {
	return &Driver{
		repo:       repo,
		reconciler: r,
		producer:   producer,
		topic:      topic,
		interval:   30 * time.Minute,
		pacing:     500 * time.Millisecond,
		triggerCh:  make(chan struct{}, 1),

		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (d *Driver) WithSettings(interval, pacing time.Duration) *Driver {
	if interval > 0 {
		d.interval = interval
	}
	if pacing >= 0 {
		d.pacing = pacing
	}
	return d
}

// Trigger forces an immediate sync pass (best-effort, non-blocking).
func (d *Driver) Trigger() {
	d.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case d.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalCycles   int64      `json:"totalCycles"`
	TotalOrders   int64      `json:"totalOrders"`
	TotalFailed   int64      `json:"totalFailed"`
	InFlight      bool       `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
}

func (d *Driver) Stats() Stats {
	st := Stats{
		StartedAt:   time.Unix(0, d.startedAtUnixNano).UTC(),
		TotalCycles: d.totalCycles.Load(),
		TotalOrders: d.totalOrders.Load(),
		TotalFailed: d.totalFailed.Load(),
		InFlight:    d.inFlight.Load(),
	}
	if n := d.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := d.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	d.lastErrorMu.Lock()
	st.LastError = d.lastError
	d.lastErrorMu.Unlock()
	return st
}

func (d *Driver) Run(ctx context.Context) error {
	t := time.NewTicker(d.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		case <-d.triggerCh:
		}
		if _, err := d.SyncAllActive(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("sync pass", "error", err.Error())
			d.setLastError(err.Error())
		}
	}
}

// SyncAllActive reconciles every non-terminal order, one at a time. A failing
// order is recorded in the summary and the pass moves on; only a listing
// error or context cancellation aborts the pass.
func (d *Driver) SyncAllActive(ctx context.Context) (Summary, error) {
	d.inFlight.Store(true)
	defer d.inFlight.Store(false)

	now := time.Now().UTC()
	d.lastCycleUnixNano.Store(now.UnixNano())
	d.totalCycles.Add(1)

	orders, err := d.repo.ListActive(ctx)
	if err != nil {
		d.setLastError(err.Error())
		return Summary{}, err
	}

	sum := Summary{Total: len(orders)}
	for i, o := range orders {
		if i > 0 && d.pacing > 0 {
			timer := time.NewTimer(d.pacing)
			select {
			case <-ctx.Done():
				timer.Stop()
				return sum, ctx.Err()
			case <-timer.C:
			}
		}

		out, err := d.reconciler.SyncOrder(ctx, o.OrderNumber)
		d.totalOrders.Add(1)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %s", o.OrderNumber, err.Error()))
			d.totalFailed.Add(1)
			d.setLastError(err.Error())
			slog.Error("sync order", "order_number", o.OrderNumber, "error", err.Error())
		// A no-data skip is a failed sync from the batch's point of view:
		// the pass attempted the order and nothing was reconciled.
		case out.Kind == reconcile.KindFailed,
			out.Kind == reconcile.KindSkipped && out.Reason == reconcile.ReasonNoData:
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %s", o.OrderNumber, out.Reason))
			d.totalFailed.Add(1)
			d.setLastError(out.Reason)
		default:
			sum.Success++
		}

		if err == nil {
			d.publish(ctx, out, now)
		}
	}

	slog.Info("sync pass finished", "total", sum.Total, "success", sum.Success, "failed", sum.Failed)
	return sum, nil
}

// publish is best-effort: a broker hiccup must not fail the order itself.
func (d *Driver) publish(ctx context.Context, out reconcile.Outcome, syncedAt time.Time) {
	if d.producer == nil {
		return
	}
	msg := messages.OrderSynced{
		OrderID:     out.OrderID,
		OrderNumber: out.OrderNumber,
		SyncedAt:    syncedAt,
		Outcome:     outcomeFor(out.Kind),
		Status:      out.Status,
	}
	if out.Kind == reconcile.KindFailed || (out.Kind == reconcile.KindSkipped && out.Reason != "") {
		r := out.Reason
		msg.Error = &r
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal broker msg", "error", err.Error())
		return
	}
	if err := d.producer.Publish(ctx, d.topic, []byte(out.OrderNumber), b); err != nil {
		slog.Warn("publish order.synced", "order_number", out.OrderNumber, "error", err.Error())
	}
}

func outcomeFor(k reconcile.Kind) string {
	switch k {
	case reconcile.KindUpdated:
		return messages.OutcomeUpdated
	case reconcile.KindChannelClassified:
		return messages.OutcomeChannelClassified
	case reconcile.KindFailed:
		return messages.OutcomeFailed
	default:
		return messages.OutcomeSkipped
	}
}

func (d *Driver) setLastError(s string) {
	d.lastErrorMu.Lock()
	d.lastError = s
	d.lastErrorMu.Unlock()
}
