package ingest

import (
	"context"
	"time"

	"github.com/aRFialho/AvanTracking/internal/integrations/storefront"
)

type StorefrontSource interface {
	ListOrders(ctx context.Context, page, limit int) ([]storefront.Order, storefront.Paging, error)
}

const storefrontPageSize = 50

// ImportFromStorefront walks the storefront order pages and feeds them
// through the regular import path. maxPages <= 0 means all pages.
func (s *Service) ImportFromStorefront(ctx context.Context, src StorefrontSource, maxPages int) (Summary, error) {
	var total Summary
	for page := 1; ; page++ {
		if maxPages > 0 && page > maxPages {
			break
		}
		orders, paging, err := src.ListOrders(ctx, page, storefrontPageSize)
		if err != nil {
			return total, err
		}
		if len(orders) == 0 {
			break
		}

		records := make([]Record, 0, len(orders))
		for _, o := range orders {
			records = append(records, Record{
				OrderNumber:           o.ID,
				CustomerName:          o.Customer.Name,
				SalesChannel:          o.PointOfSale,
				FreightType:           o.Shipment,
				City:                  o.Customer.City,
				State:                 o.Customer.State,
				ShippingDate:          parseStorefrontDate(o.Date),
				EstimatedDeliveryDate: parseStorefrontDate(o.DeliveryDate),
				Status:                o.Status,
			})
		}

		sum, err := s.ImportRecords(ctx, records)
		if err != nil {
			return total, err
		}
		total.Received += sum.Received
		total.Created += sum.Created
		total.Updated += sum.Updated
		total.Skipped += sum.Skipped
		total.DroppedNoKey += sum.DroppedNoKey
		total.DroppedCanceled += sum.DroppedCanceled

		if paging.Limit > 0 && page*paging.Limit >= paging.Total {
			break
		}
	}
	return total, nil
}

func parseStorefrontDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
