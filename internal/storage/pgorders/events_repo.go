package pgorders

import (
	"context"

	"github.com/pkg/errors"

	"github.com/aRFialho/AvanTracking/internal/models"
)

// ListOrderEvents returns the tracking history for one order, newest first.
func (s *Storage) ListOrderEvents(ctx context.Context, orderID uint64, limit, offset int) ([]*models.TrackingEvent, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, order_id, status, description, event_date, city, state, created_at
FROM order_events
WHERE order_id = $1
ORDER BY event_date DESC
LIMIT $2 OFFSET $3
`, orderID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	var out []*models.TrackingEvent
	for rows.Next() {
		var e models.TrackingEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Description, &e.EventDate, &e.City, &e.State, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
