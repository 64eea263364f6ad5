package pgorders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/aRFialho/AvanTracking/internal/models"
)

const orderColumns = `
  id, order_number, customer_name, sales_channel, freight_type, city, state,
  shipping_date, max_shipping_deadline, estimated_delivery_date,
  status, is_delayed, last_update, last_api_sync, last_api_error,
  created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	if err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerName, &o.SalesChannel, &o.FreightType, &o.City, &o.State,
		&o.ShippingDate, &o.MaxShippingDeadline, &o.EstimatedDeliveryDate,
		&o.Status, &o.IsDelayed, &o.LastUpdate, &o.LastAPISync, &o.LastAPIError,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &o, nil
}

type UpsertResult struct {
	Created int
	Updated int
	Skipped int
}

// UpsertOrders is the ingestion write path. New orders are inserted together
// with their initial tracking events; known orders (same business key) only
// get their status and last_update refreshed, and only when the incoming
// status actually differs.
func (s *Storage) UpsertOrders(ctx context.Context, orders []*models.Order) (UpsertResult, error) {
	var res UpsertResult
	if len(orders) == 0 {
		return res, nil
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return res, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, o := range orders {
		var existingID uint64
		var existingStatus string
		err := tx.QueryRow(ctx,
			`SELECT id, status FROM orders WHERE order_number = $1`, o.OrderNumber,
		).Scan(&existingID, &existingStatus)

		switch {
		case err == pgx.ErrNoRows:
			var id uint64
			err := tx.QueryRow(ctx, `
INSERT INTO orders (
  order_number, customer_name, sales_channel, freight_type, city, state,
  shipping_date, max_shipping_deadline, estimated_delivery_date,
  status, is_delayed, last_update, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
RETURNING id
`, o.OrderNumber, o.CustomerName, o.SalesChannel, o.FreightType, o.City, o.State,
				o.ShippingDate, o.MaxShippingDeadline, o.EstimatedDeliveryDate,
				o.Status, o.IsDelayed, o.LastUpdate, now).Scan(&id)
			if err != nil {
				return res, errors.Wrap(err, "insert order")
			}
			for _, e := range o.History {
				if _, err := tx.Exec(ctx, `
INSERT INTO order_events (order_id, status, description, event_date, city, state, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, id, e.Status, e.Description, e.EventDate.UTC(), e.City, e.State, now); err != nil {
					return res, errors.Wrap(err, "insert order event")
				}
			}
			res.Created++

		case err != nil:
			return res, errors.Wrap(err, "select order")

		case existingStatus != o.Status:
			if _, err := tx.Exec(ctx, `
UPDATE orders SET status = $2, last_update = $3, updated_at = $3 WHERE id = $1
`, existingID, o.Status, now); err != nil {
				return res, errors.Wrap(err, "update order status")
			}
			res.Updated++

		default:
			res.Skipped++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return res, errors.Wrap(err, "commit tx")
	}
	return res, nil
}

// FindByOrderNumber returns nil when the order is unknown.
func (s *Storage) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx,
		`SELECT`+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return o, nil
}

// ListOrders returns every stored order with its tracking history attached,
// oldest event first.
func (s *Storage) ListOrders(ctx context.Context) ([]*models.Order, error) {
	rows, err := s.db.Query(ctx, `SELECT`+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "select orders")
	}
	defer rows.Close()

	var out []*models.Order
	byID := map[uint64]*models.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
		byID[o.ID] = o
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	evRows, err := s.db.Query(ctx, `
SELECT id, order_id, status, description, event_date, city, state, created_at
FROM order_events
ORDER BY event_date ASC
`)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer evRows.Close()

	for evRows.Next() {
		var e models.TrackingEvent
		if err := evRows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Description, &e.EventDate, &e.City, &e.State, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		if o, ok := byID[e.OrderID]; ok {
			o.History = append(o.History, &e)
		}
	}
	if evRows.Err() != nil {
		return nil, errors.Wrap(evRows.Err(), "rows")
	}

	return out, nil
}

// ListActive returns every order whose status is not terminal, in creation
// order. Histories are not attached; reconciliation does not need them.
func (s *Storage) ListActive(ctx context.Context) ([]*models.Order, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+orderColumns+`
FROM orders
WHERE status <> ALL($1)
ORDER BY created_at ASC
`, models.TerminalStatuses)
	if err != nil {
		return nil, errors.Wrap(err, "select active orders")
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
