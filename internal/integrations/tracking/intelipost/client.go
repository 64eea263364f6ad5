package intelipost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/aRFialho/AvanTracking/internal/integrations/tracking"
	"github.com/aRFialho/AvanTracking/internal/models"
)

const trackingQuery = `
query ($clientId: ID, $orderNumber: String, $orderHash: String) {
  trackingStatus(clientId: $clientId, orderNumber: $orderNumber, orderHash: $orderHash) {
    order { order_number }
    tracking {
      status
      status_label
      estimated_delivery_date_lp
      history {
        event_date
        status_label
        provider_message
        macro_state { code }
      }
    }
    logistic_provider { name }
    end_customer { address { city state } }
  }
}
`

type Client struct {
	baseURL  string
	clientID string
	origin   string
	httpc    *http.Client
}

func New(baseURL, clientID, origin string) *Client {
	if baseURL == "" {
		baseURL = "https://tracking-graphql.intelipost.com.br/"
	}
	return &Client{
		baseURL:  baseURL,
		clientID: clientID,
		origin:   origin,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type gqlRequest struct {
	OperationName *string        `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type gqlResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Data struct {
		TrackingStatus *trackingStatus `json:"trackingStatus"`
	} `json:"data"`
}

type trackingStatus struct {
	Order struct {
		OrderNumber string `json:"order_number"`
	} `json:"order"`
	Tracking struct {
		Status                  string `json:"status"`
		StatusLabel             string `json:"status_label"`
		EstimatedDeliveryDateLP string `json:"estimated_delivery_date_lp"`
		History                 []struct {
			EventDate       string `json:"event_date"`
			StatusLabel     string `json:"status_label"`
			ProviderMessage string `json:"provider_message"`
			MacroState      struct {
				Code string `json:"code"`
			} `json:"macro_state"`
		} `json:"history"`
	} `json:"tracking"`
	LogisticProvider struct {
		Name string `json:"name"`
	} `json:"logistic_provider"`
	EndCustomer struct {
		Address struct {
			City  string `json:"city"`
			State string `json:"state"`
		} `json:"address"`
	} `json:"end_customer"`
}

func (c *Client) FetchTracking(ctx context.Context, orderNumber string) (tracking.Result, error) {
	body, err := json.Marshal(gqlRequest{
		Query: trackingQuery,
		Variables: map[string]any{
			"clientId":    c.clientID,
			"orderHash":   c.clientID,
			"orderNumber": strings.TrimSpace(orderNumber),
		},
	})
	if err != nil {
		return tracking.Result{}, errors.Wrap(err, "marshal query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return tracking.Result{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return tracking.Result{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return tracking.Result{}, fmt.Errorf("intelipost http %d", resp.StatusCode)
	}

	var r gqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return tracking.Result{}, errors.Wrap(err, "decode")
	}
	if len(r.Errors) > 0 {
		return tracking.Result{}, fmt.Errorf("intelipost graphql: %s", r.Errors[0].Message)
	}
	if r.Data.TrackingStatus == nil {
		// Valid response shape, order just not known to the provider yet.
		return tracking.Result{}, tracking.ErrNoData
	}

	return mapResult(r.Data.TrackingStatus), nil
}

func mapResult(ts *trackingStatus) tracking.Result {
	res := tracking.Result{
		OrderNumber: ts.Order.OrderNumber,
		Status:      tracking.MapProviderStatus(ts.Tracking.Status),
		StatusRaw:   ts.Tracking.Status,
		CarrierName: ts.LogisticProvider.Name,
	}

	if est, ok := parseTime(ts.Tracking.EstimatedDeliveryDateLP); ok {
		res.EstimatedDeliveryDate = &est
	}

	city := strPtr(ts.EndCustomer.Address.City)
	state := strPtr(ts.EndCustomer.Address.State)

	for _, h := range ts.Tracking.History {
		code := h.MacroState.Code
		if code == "" {
			code = "UNKNOWN"
		}
		desc := h.ProviderMessage
		if desc == "" {
			desc = h.StatusLabel
		}
		evTime, ok := parseTime(h.EventDate)
		if !ok {
			// A history row without a usable date is dropped, not fatal.
			continue
		}
		res.Events = append(res.Events, &models.TrackingEvent{
			Status:      code,
			Description: desc,
			EventDate:   evTime,
			City:        city,
			State:       state,
		})
	}

	return res
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
