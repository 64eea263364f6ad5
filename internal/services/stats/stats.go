// Package stats computes the read-side metrics: delay figures, the at-risk
// order set, dashboard KPIs and the carrier ranking. Everything here is pure
// and derived from the stored orders at call time.
package stats

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aRFialho/AvanTracking/internal/logistics"
	"github.com/aRFialho/AvanTracking/internal/models"
)

const day = 24 * time.Hour

// DelayDays is the whole number of days an order is overdue, rounded up.
// Orders that are not delayed report zero.
func DelayDays(o *models.Order, now time.Time) int {
	if o.EstimatedDeliveryDate == nil {
		return 0
	}
	if !models.ComputeDelayed(o.Status, o.EstimatedDeliveryDate, now) {
		return 0
	}
	diff := now.Sub(*o.EstimatedDeliveryDate)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24))
}

type RiskOrder struct {
	Order     *models.Order `json:"order"`
	DelayDays int           `json:"delayDays"`
}

// RiskOrders selects the orders that need attention, most overdue first.
// Canceled and channel-managed orders are out of scope: the channel moves
// those parcels and the delay data means nothing for them.
func RiskOrders(orders []*models.Order, now time.Time) []RiskOrder {
	var out []RiskOrder
	for _, o := range orders {
		if o.Status == models.StatusCanceled {
			continue
		}
		if o.Status == models.StatusChannelLogistics || logistics.ChannelManaged(o.FreightType) {
			continue
		}

		delayed := models.ComputeDelayed(o.Status, o.EstimatedDeliveryDate, now)
		hasDelay := delayed && o.Status != models.StatusDelivered
		hasFailure := o.Status == models.StatusFailure || o.Status == models.StatusReturned
		if !hasDelay && !hasFailure {
			continue
		}

		out = append(out, RiskOrder{Order: o, DelayDays: DelayDays(o, now)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DelayDays > out[j].DelayDays
	})
	return out
}

type DeliveryClass string

const (
	DeliveryEarly  DeliveryClass = "early"
	DeliveryOnTime DeliveryClass = "on_time"
	DeliveryLate   DeliveryClass = "late"
)

// endOfEstimateDay pushes the estimate to 23:59:59.999 of its own day. A
// delivery any time on the promised day still counts as on time.
func endOfEstimateDay(est time.Time) time.Time {
	return time.Date(est.Year(), est.Month(), est.Day(), 23, 59, 59, int(999*time.Millisecond), est.Location())
}

// ClassifyDelivery grades a delivered order against its estimate. Early means
// more than two full days ahead of the promised day; early deliveries also
// count as on time. The second return is false when the order is not
// delivered or has no estimate to grade against.
func ClassifyDelivery(o *models.Order) (DeliveryClass, bool) {
	if o.Status != models.StatusDelivered || o.EstimatedDeliveryDate == nil {
		return "", false
	}
	promised := endOfEstimateDay(*o.EstimatedDeliveryDate)
	if o.LastUpdate.After(promised) {
		return DeliveryLate, true
	}
	if promised.Sub(o.LastUpdate) > 2*day {
		return DeliveryEarly, true
	}
	return DeliveryOnTime, true
}

// transitDays measures the earliest tracking event to the last update. The
// shipping date is the fallback for orders that never synced a history.
// Histories can carry garbage dates, so negative spans are discarded by the
// callers.
func transitDays(o *models.Order) float64 {
	start := o.ShippingDate
	if len(o.History) > 0 {
		start = o.History[0].EventDate
		for _, e := range o.History[1:] {
			if e.EventDate.Before(start) {
				start = e.EventDate
			}
		}
	}
	return o.LastUpdate.Sub(start).Hours() / 24
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

type Dashboard struct {
	Total      int `json:"total"`
	Delivered  int `json:"delivered"`
	InProgress int `json:"inProgress"`
	Waiting    int `json:"waiting"`
	InTransit  int `json:"inTransit"`
	OnRoute    int `json:"onRoute"`
	Delayed    int `json:"delayed"`
	DueToday   int `json:"dueToday"`
	NoForecast int `json:"noForecast"`
	NoSync     int `json:"noSync"`
	Alerts     int `json:"alerts"`

	AvgTransitDays float64 `json:"avgTransitDays"`
	OnTimePct      float64 `json:"onTimePct"`
}

// BuildDashboard aggregates the KPI block. The on-time rate is delivered on
// time over delivered plus actively delayed; a delayed order that was never
// delivered still counts against the rate.
func BuildDashboard(orders []*models.Order, now time.Time) Dashboard {
	var d Dashboard
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var transitTotal float64
	var transitCount int
	var deliveredOnTime int

	for _, o := range orders {
		if o.Status == models.StatusCanceled {
			continue
		}
		d.Total++

		delayed := models.ComputeDelayed(o.Status, o.EstimatedDeliveryDate, now)
		if delayed {
			d.Alerts++
		}

		switch o.Status {
		case models.StatusDelivered:
			d.Delivered++
		case models.StatusPending, models.StatusCreated:
			d.Waiting++
			d.InProgress++
		case models.StatusShipped:
			d.InTransit++
			d.InProgress++
		case models.StatusDeliveryAttempt:
			d.OnRoute++
			d.InProgress++
		case models.StatusFailure, models.StatusReturned:
			// resolved badly, neither delivered nor in progress
		default:
			d.InProgress++
		}

		if delayed && o.Status != models.StatusDelivered {
			d.Delayed++
		}
		if o.EstimatedDeliveryDate == nil {
			d.NoForecast++
		} else if o.Status != models.StatusDelivered {
			est := *o.EstimatedDeliveryDate
			estDay := time.Date(est.Year(), est.Month(), est.Day(), 0, 0, 0, 0, now.Location())
			if estDay.Equal(today) {
				d.DueToday++
			}
		}
		if len(o.History) == 0 {
			d.NoSync++
		}

		if o.Status == models.StatusDelivered {
			if span := transitDays(o); span >= 0 {
				transitTotal += span
				transitCount++
			}
			if cls, ok := ClassifyDelivery(o); ok && cls != DeliveryLate {
				deliveredOnTime++
			}
		}
	}

	if transitCount > 0 {
		d.AvgTransitDays = round1(transitTotal / float64(transitCount))
	}
	if measurable := d.Delivered + d.Delayed; measurable > 0 {
		d.OnTimePct = round1(float64(deliveredOnTime) / float64(measurable) * 100)
	}
	return d
}

type CarrierStats struct {
	Name           string  `json:"name"`
	Volume         int     `json:"volume"`
	Delivered      int     `json:"delivered"`
	OnTime         int     `json:"onTime"`
	Late           int     `json:"late"`
	Early          int     `json:"early"`
	AvgTransitDays float64 `json:"avgTransitDays"`
}

// CarrierRanking groups non-canceled orders by freight label and sorts by
// volume. Ties keep first-seen order, so the ranking is stable across calls
// with the same input order.
func CarrierRanking(orders []*models.Order) []CarrierStats {
	idx := map[string]int{}
	var ranking []CarrierStats
	transit := map[string]float64{}

	for _, o := range orders {
		if o.Status == models.StatusCanceled {
			continue
		}
		name := strings.TrimSpace(o.FreightType)
		if name == "" {
			name = models.UnknownCarrierName
		}

		i, ok := idx[name]
		if !ok {
			i = len(ranking)
			idx[name] = i
			ranking = append(ranking, CarrierStats{Name: name})
		}
		cs := &ranking[i]
		cs.Volume++

		if o.Status != models.StatusDelivered {
			continue
		}
		cs.Delivered++
		if span := transitDays(o); span >= 0 {
			transit[name] += span
		}
		if cls, ok := ClassifyDelivery(o); ok {
			switch cls {
			case DeliveryLate:
				cs.Late++
			case DeliveryEarly:
				cs.OnTime++
				cs.Early++
			default:
				cs.OnTime++
			}
		}
	}

	for i := range ranking {
		if ranking[i].Delivered > 0 {
			ranking[i].AvgTransitDays = round1(transit[ranking[i].Name] / float64(ranking[i].Delivered))
		}
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Volume > ranking[j].Volume
	})
	return ranking
}
