package messages

import "time"

// TopicOrderSynced carries one message per reconciled order. The API process
// consumes it to drop stale cache entries.
const TopicOrderSynced = "order.synced"

type OrderSynced struct {
	OrderID     uint64    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	SyncedAt    time.Time `json:"synced_at"`

	Outcome string `json:"outcome"`
	Status  string `json:"status,omitempty"`

	Error *string `json:"error,omitempty"`
}

// Outcome values.
const (
	OutcomeUpdated           = "updated"
	OutcomeChannelClassified = "channel_classified"
	OutcomeSkipped           = "skipped"
	OutcomeFailed            = "failed"
)
