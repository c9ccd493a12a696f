// Package sentiment wraps the external sentiment collaborator behind a
// small scoring interface.
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUnavailable is returned when the collaborator cannot be reached
// after the bounded retry budget.
var ErrUnavailable = errors.New("sentiment service unavailable")

// Sentiment is the collaborator's verdict for one token.
type Sentiment struct {
	Score    float64 `json:"score"` // 0-100
	Mentions int     `json:"mentions"`
}

// Scorer produces a sentiment verdict for a mint.
type Scorer interface {
	Score(ctx context.Context, mint string) (*Sentiment, error)
}

// ClientOptions configures the HTTP sentiment client.
type ClientOptions struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// Client queries the sentiment collaborator over HTTP with bounded
// exponential-backoff retries.
type Client struct {
	http *resty.Client
}

// NewClient creates a sentiment client.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryCount == 0 {
		opts.RetryCount = 3
	}

	http := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == 429 || r.StatusCode() >= 500
		})
	if opts.APIKey != "" {
		http.SetHeader("Authorization", "Bearer "+opts.APIKey)
	}

	return &Client{http: http}
}

var _ Scorer = (*Client)(nil)

// Score fetches the sentiment verdict for mint. Retries are exhausted
// before an error is surfaced; 4xx responses do not retry.
func (c *Client) Score(ctx context.Context, mint string) (*Sentiment, error) {
	var out Sentiment
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("mint", mint).
		SetResult(&out).
		Get("/v1/sentiment/{mint}")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}
	if out.Score < 0 || out.Score > 100 {
		return nil, fmt.Errorf("sentiment score %v out of range for %s", out.Score, mint)
	}
	return &out, nil
}
