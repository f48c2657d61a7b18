package dpk

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to the remote DPK agent proxy.
type Client struct {
	httpClient *resty.Client
}

// ChatRequest is the payload sent to POST /chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
	Context   string `json:"context"`
}

// ChatResponse carries the agent answer. An empty Reply means the agent
// chose not to respond.
type ChatResponse struct {
	Reply string `json:"reply"`
}

func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("x-dpk-secret", secret).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{httpClient: httpClient}
}

// Chat forwards one user turn. Transport failures and non-2xx statuses
// are both surfaced as errors; the caller decides what a failed turn
// means for the user.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var result ChatResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/chat")

	if err != nil {
		return nil, fmt.Errorf("dpk chat request failed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("dpk chat error: status %s, body: %s", resp.Status(), resp.String())
	}

	return &result, nil
}
