package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

var ErrNotConfigured = errors.New("endpoint not configured")

type ClientConfig struct {
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

func newClient(cfg ClientConfig) *resty.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	return c
}

func statusError(resp *resty.Response) error {
	body := resp.String()
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), body)
}
