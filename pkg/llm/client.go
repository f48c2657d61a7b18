package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	httpClient *resty.Client
	model      string
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{httpClient: httpClient, model: model}
}

// ChatCompletion runs one model call and returns the first choice.
func (c *Client) ChatCompletion(ctx context.Context, messages []ChatMessage, tools []Tool) (*ChatMessage, error) {
	var result ChatCompletionResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(ChatCompletionRequest{
			Model:    c.model,
			Messages: messages,
			Tools:    tools,
		}).
		SetResult(&result).
		Post("/chat/completions")

	if err != nil {
		return nil, fmt.Errorf("chat completion request failed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("chat completion error: status %s, body: %s", resp.Status(), resp.String())
	}

	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &result.Choices[0].Message, nil
}
