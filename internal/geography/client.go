package geography

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ontario-health/healthmap/internal/shared/config"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

// maxBoundaryBytes bounds the boundary document read into memory.
const maxBoundaryBytes = 64 << 20

// BoundarySource produces the raw boundary GeoJSON document.
type BoundarySource interface {
	FetchBoundaries(ctx context.Context) ([]byte, error)
}

// Client downloads the boundary layer over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
	retry      config.RetryConfig
	logger     zerolog.Logger
}

// NewClient creates a boundary client for cfg.URL
func NewClient(cfg config.BoundaryConfig, retryCfg config.RetryConfig, logger zerolog.Logger) *Client {
	return &Client{
		url:   cfg.URL,
		retry: retryCfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("boundary service returned status %d: %s", e.status, e.body)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// FetchBoundaries GETs the boundary document. Network errors, 429 and 5xx
// responses are retried with backoff; other statuses fail immediately.
func (c *Client) FetchBoundaries(ctx context.Context) ([]byte, error) {
	base := c.retry.BaseDelay
	if base <= 0 {
		base = 1
	}
	b := retry.NewExponential(base)
	if c.retry.MaxDelay > 0 {
		b = retry.WithCappedDuration(c.retry.MaxDelay, b)
	}
	b = retry.WithMaxRetries(uint64(c.retry.MaxRetries), b)

	var body []byte
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		data, err := c.get(ctx)
		if err == nil {
			body = data
			return nil
		}
		if se, ok := err.(*statusError); ok && !retryableStatus(se.status) {
			return err
		}
		c.logger.Debug().Err(err).Int("attempt", attempt).Msg("boundary fetch failed, retrying")
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{status: resp.StatusCode, body: string(body)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBoundaryBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return data, nil
}
