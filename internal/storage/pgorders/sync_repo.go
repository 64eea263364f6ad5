package pgorders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/aRFialho/AvanTracking/internal/models"
)

// OrderUpdate carries the merged result of a successful provider fetch.
// Events replace the stored history wholesale.
type OrderUpdate struct {
	OrderID               uint64
	SyncedAt              time.Time
	Status                string
	FreightType           string
	EstimatedDeliveryDate *time.Time
	IsDelayed             bool
	LastUpdate            time.Time
	Events                []*models.TrackingEvent
}

// MarkSyncFailure records a failed provider fetch. The sync timestamp still
// advances so the order is not retried in a tight loop.
func (s *Storage) MarkSyncFailure(ctx context.Context, orderID uint64, reason string, syncedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE orders SET last_api_sync = $2, last_api_error = $3, updated_at = $2 WHERE id = $1
`, orderID, syncedAt.UTC(), reason)
	return errors.Wrap(err, "mark sync failure")
}

// MarkChannelLogistics moves an order to channel-managed status. Orders that
// already carry the status are left untouched, and a synthetic event is
// inserted only when the order has no history at all, so repeated passes over
// a channel order change nothing.
func (s *Storage) MarkChannelLogistics(ctx context.Context, orderID uint64, lastUpdate time.Time, ev *models.TrackingEvent) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
UPDATE orders SET status = $2, last_update = $3, updated_at = $4
WHERE id = $1 AND status <> $2
`, orderID, models.StatusChannelLogistics, lastUpdate.UTC(), now); err != nil {
		return errors.Wrap(err, "update order")
	}

	if ev != nil {
		var count int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM order_events WHERE order_id = $1`, orderID,
		).Scan(&count); err != nil {
			return errors.Wrap(err, "count events")
		}
		if count == 0 {
			if _, err := tx.Exec(ctx, `
INSERT INTO order_events (order_id, status, description, event_date, city, state, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, orderID, ev.Status, ev.Description, ev.EventDate.UTC(), ev.City, ev.State, now); err != nil {
				return errors.Wrap(err, "insert event")
			}
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}

// ApplyOrderUpdate writes the merge result atomically. Field updates, the
// error reset and the history replacement land in one transaction.
func (s *Storage) ApplyOrderUpdate(ctx context.Context, upd OrderUpdate) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
UPDATE orders SET
  status = $2,
  freight_type = $3,
  estimated_delivery_date = $4,
  is_delayed = $5,
  last_update = $6,
  last_api_sync = $7,
  last_api_error = NULL,
  updated_at = $8
WHERE id = $1
`, upd.OrderID, upd.Status, upd.FreightType, upd.EstimatedDeliveryDate,
		upd.IsDelayed, upd.LastUpdate.UTC(), upd.SyncedAt.UTC(), now); err != nil {
		return errors.Wrap(err, "update order")
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM order_events WHERE order_id = $1`, upd.OrderID); err != nil {
		return errors.Wrap(err, "delete events")
	}
	for _, e := range upd.Events {
		if _, err := tx.Exec(ctx, `
INSERT INTO order_events (order_id, status, description, event_date, city, state, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, upd.OrderID, e.Status, e.Description, e.EventDate.UTC(), e.City, e.State, now); err != nil {
			return errors.Wrap(err, "insert event")
		}
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}
