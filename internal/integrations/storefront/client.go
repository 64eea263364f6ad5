// Package storefront pulls order candidates from the marketplace storefront
// API. The storefront caps callers at a fixed number of requests per minute,
// so every call goes through the shared rate limiter.
package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Gate is the admission contract of internal/ratelimit.Limiter.
type Gate interface {
	RunGated(ctx context.Context, fn func(ctx context.Context) error) error
}

type Client struct {
	baseURL     string
	accessToken string
	gate        Gate
	httpc       *http.Client
}

func New(baseURL, accessToken string, gate Gate) *Client {
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		gate:        gate,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Order is the storefront's own order shape, unvalidated. The ingestion
// boundary decides what survives.
type Order struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Date         string `json:"date"`
	Shipment     string `json:"shipment"`
	DeliveryDate string `json:"estimated_delivery_date"`
	PointOfSale  string `json:"point_of_sale"`
	Customer     struct {
		Name  string `json:"name"`
		City  string `json:"city"`
		State string `json:"state"`
	} `json:"customer"`
}

type Paging struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type listResponse struct {
	Paging Paging `json:"paging"`
	Orders []struct {
		Order Order `json:"Order"`
	} `json:"Orders"`
}

// ListOrders fetches one page of storefront orders through the rate limiter.
func (c *Client) ListOrders(ctx context.Context, page, limit int) ([]Order, Paging, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var out []Order
	var paging Paging
	err := c.gate.RunGated(ctx, func(ctx context.Context) error {
		u, err := url.Parse(c.baseURL)
		if err != nil {
			return errors.Wrap(err, "parse base url")
		}
		u.Path = "/orders"
		q := u.Query()
		q.Set("access_token", c.accessToken)
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(limit))
		u.RawQuery = q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return errors.Wrap(err, "new request")
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return errors.Wrap(err, "do request")
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("storefront http %d", resp.StatusCode)
		}

		var r listResponse
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return errors.Wrap(err, "decode")
		}
		paging = r.Paging
		for _, o := range r.Orders {
			out = append(out, o.Order)
		}
		return nil
	})
	if err != nil {
		return nil, Paging{}, err
	}
	return out, paging, nil
}
