package asaas

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.asaas.com/v3"

// Client talks to the Asaas billing API.
type Client struct {
	httpClient *resty.Client
}

// PaymentLinkRequest is the POST /paymentLinks body.
type PaymentLinkRequest struct {
	Name              string  `json:"name"`
	BillingType       string  `json:"billingType"`
	ChargeType        string  `json:"chargeType"`
	Value             float64 `json:"value"`
	DueDateLimitDays  int     `json:"dueDateLimitDays"`
	ExternalReference string  `json:"externalReference"`
	Description       string  `json:"description,omitempty"`
}

// PaymentLink is the created link.
type PaymentLink struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("access_token", apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{httpClient: httpClient}
}

// CreatePaymentLink creates a standalone payment link. Billing type
// UNDEFINED lets the customer pick the method; charge type DETACHED
// keeps the link independent of a registered customer.
func (c *Client) CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error) {
	var result PaymentLink
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/paymentLinks")

	if err != nil {
		return nil, fmt.Errorf("asaas payment link request failed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("asaas payment link error: status %s, body: %s", resp.Status(), resp.String())
	}

	return &result, nil
}
