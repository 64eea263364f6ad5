package models

import (
	"strings"
	"time"
	"unicode"
)

// Canonical order statuses. The set is closed: reconciliation never writes
// anything outside of it.
const (
	StatusPending          = "PENDING"
	StatusCreated          = "CREATED"
	StatusShipped          = "SHIPPED"
	StatusDeliveryAttempt  = "DELIVERY_ATTEMPT"
	StatusDelivered        = "DELIVERED"
	StatusFailure          = "FAILURE"
	StatusReturned         = "RETURNED"
	StatusCanceled         = "CANCELED"
	StatusChannelLogistics = "CHANNEL_LOGISTICS"
)

// TerminalStatuses are never re-synced and never altered by reconciliation.
var TerminalStatuses = []string{StatusDelivered, StatusFailure, StatusReturned, StatusCanceled}

func IsTerminal(status string) bool {
	switch status {
	case StatusDelivered, StatusFailure, StatusReturned, StatusCanceled:
		return true
	}
	return false
}

type Order struct {
	ID          uint64 `json:"id"`
	OrderNumber string `json:"orderNumber"`

	CustomerName string `json:"customerName"`
	SalesChannel string `json:"salesChannel"`
	FreightType  string `json:"freightType"`
	City         string `json:"city"`
	State        string `json:"state"`

	ShippingDate          time.Time  `json:"shippingDate"`
	MaxShippingDeadline   *time.Time `json:"maxShippingDeadline,omitempty"`
	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate,omitempty"`

	Status    string `json:"status"`
	IsDelayed bool   `json:"isDelayed"`

	LastUpdate   time.Time  `json:"lastUpdate"`
	LastAPISync  *time.Time `json:"lastApiSync,omitempty"`
	LastAPIError *string    `json:"lastApiError,omitempty"`

	History []*TrackingEvent `json:"trackingHistory,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type TrackingEvent struct {
	ID          uint64    `json:"id"`
	OrderID     uint64    `json:"orderId"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	EventDate   time.Time `json:"eventDate"`
	City        *string   `json:"city,omitempty"`
	State       *string   `json:"state,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ComputeDelayed is the single definition of the isDelayed flag:
// past the estimated delivery date and not delivered yet.
// An order without a forecast is never considered delayed.
func ComputeDelayed(status string, estimatedDeliveryDate *time.Time, now time.Time) bool {
	if estimatedDeliveryDate == nil {
		return false
	}
	return now.After(*estimatedDeliveryDate) && status != StatusDelivered
}

// UnknownCarrierName is the grouping bucket for orders without a carrier label.
const UnknownCarrierName = "Desconhecida"

// NormalizeCarrierName strips boilerplate suffixes from a freight label so
// that "LMS Logistica (Frete Fixo)" and "Jamef Jamef Standard" group as
// "Lms Logistica" and "Jamef" in the ranking.
func NormalizeCarrierName(name string) string {
	if name == "" {
		return UnknownCarrierName
	}

	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "(frete fixo)", "")
	s = strings.ReplaceAll(s, "- standard", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Join(strings.Fields(s), " ")

	words := strings.Fields(s)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "standard" {
			continue
		}
		// Drop consecutive duplicate tokens ("jamef jamef" -> "jamef").
		if len(out) > 0 && out[len(out)-1] == titleWord(w) {
			continue
		}
		out = append(out, titleWord(w))
	}
	if len(out) == 0 {
		return UnknownCarrierName
	}
	return strings.Join(out, " ")
}

func titleWord(w string) string {
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
