package pgorders

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id BIGSERIAL PRIMARY KEY,
  order_number TEXT NOT NULL,
  customer_name TEXT NOT NULL DEFAULT '',
  sales_channel TEXT NOT NULL DEFAULT '',
  freight_type TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL DEFAULT '',
  shipping_date TIMESTAMPTZ NOT NULL,
  max_shipping_deadline TIMESTAMPTZ NULL,
  estimated_delivery_date TIMESTAMPTZ NULL,
  status TEXT NOT NULL,
  is_delayed BOOLEAN NOT NULL DEFAULT FALSE,
  last_update TIMESTAMPTZ NOT NULL,
  last_api_sync TIMESTAMPTZ NULL,
  last_api_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (order_number)
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_estimated_delivery_date ON orders(estimated_delivery_date)`,
		`
CREATE TABLE IF NOT EXISTS order_events (
  id BIGSERIAL PRIMARY KEY,
  order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  event_date TIMESTAMPTZ NOT NULL,
  city TEXT NULL,
  state TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_order_events_order_id_event_date ON order_events(order_id, event_date DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
