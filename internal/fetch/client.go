// Package fetch provides the shared resilient HTTP client used by every
// source adapter: bounded concurrency, a global minimum delay between
// requests, rotating user agents, and retries with exponential backoff.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/scottaicode/seoul-sister/internal/config"
	"github.com/scottaicode/seoul-sister/internal/logger"
)

// ErrMaxRetriesExceeded is returned when a request keeps failing after
// all retry attempts. Callers should check with errors.Is().
var ErrMaxRetriesExceeded = errors.New("max retry attempts exceeded")

const (
	baseBackoff  = 1 * time.Second
	maxBodyBytes = 10 << 20 // 10 MiB
	acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLangKR = "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7"

	// maxThrottleWaits bounds how many server-hinted Retry-After waits a
	// single request honors before throttling starts consuming normal
	// retry attempts.
	maxThrottleWaits = 3
)

// RandomUserAgent returns one of a small pool of desktop browser user
// agents. Shared with adapters that manage their own HTTP stack.
func RandomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// userAgents is a small set of desktop browser user agents rotated per request.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// StatusError is returned for non-retryable HTTP status codes.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.StatusCode, e.URL)
}

// Client is the shared fetch client. One instance is shared by all
// adapters so the concurrency cap and minimum delay apply globally.
type Client struct {
	httpClient    *http.Client
	limiter       *rate.Limiter
	sem           chan struct{}
	maxRetries    int
	retryAfterCap time.Duration
	logger        logger.Logger
}

// NewClient creates a fetch client from configuration.
func NewClient(cfg config.FetchConfig, log logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:       rate.NewLimiter(rate.Every(cfg.MinDelay), 1),
		sem:           make(chan struct{}, cfg.Concurrency),
		maxRetries:    cfg.MaxRetries,
		retryAfterCap: cfg.RetryAfterCap,
		logger:        log,
	}
}

// Get fetches a URL and returns the response body. It blocks until a
// concurrency slot and the rate limiter allow the request, and retries
// transient failures with exponential backoff plus jitter. A retry whose
// wait came from a server Retry-After hint does not count against the
// retry budget.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.sem }()

	var lastErr error
	attempt := 0
	throttled := 0
	for {
		if limitErr := c.limiter.Wait(ctx); limitErr != nil {
			return nil, limitErr
		}

		body, retryable, err := c.doRequest(ctx, url)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}

		lastErr = err
		c.logger.Warn("fetch attempt failed",
			logger.String("url", url),
			logger.Int("attempt", attempt+throttled+1),
			logger.Error(err),
		)

		var raErr *retryAfterError
		if errors.As(err, &raErr) && raErr.delay > 0 && throttled < maxThrottleWaits {
			throttled++
			if waitErr := sleepCtx(ctx, raErr.delay); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		attempt++
		if attempt > c.maxRetries {
			break
		}
		if waitErr := c.waitBackoff(ctx, attempt); waitErr != nil {
			return nil, waitErr
		}
	}

	return nil, fmt.Errorf("%w for %s: %w", ErrMaxRetriesExceeded, url, lastErr)
}

// doRequest performs a single HTTP GET. The second return value reports
// whether the failure is worth retrying.
func (c *Client) doRequest(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLangKR)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors and timeouts are transient.
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return nil, true, fmt.Errorf("failed to read response body: %w", readErr)
		}
		return body, false, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		return nil, true, &retryAfterError{
			status: resp.StatusCode,
			url:    url,
			delay:  c.parseRetryAfter(resp.Header.Get("Retry-After")),
		}

	case resp.StatusCode >= 500:
		return nil, true, &StatusError{URL: url, StatusCode: resp.StatusCode}

	default:
		return nil, false, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
}

// retryAfterError carries a server-requested delay from a 429 or 503.
type retryAfterError struct {
	status int
	url    string
	delay  time.Duration
}

func (e *retryAfterError) Error() string {
	return fmt.Sprintf("status %d fetching %s (retry after %s)", e.status, e.url, e.delay)
}

// parseRetryAfter parses a Retry-After header value in seconds, capped at
// the configured maximum. Returns 0 for absent or unparseable values.
func (c *Client) parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	delay := time.Duration(seconds) * time.Second
	if delay > c.retryAfterCap {
		delay = c.retryAfterCap
	}
	return delay
}

// waitBackoff sleeps for the exponential backoff of the given attempt,
// plus jitter.
func (c *Client) waitBackoff(ctx context.Context, attempt int) error {
	delay := baseBackoff << (attempt - 1)
	delay += time.Duration(rand.Int63n(int64(baseBackoff)))
	return sleepCtx(ctx, delay)
}

// sleepCtx sleeps for delay unless the context ends first.
func sleepCtx(ctx context.Context, delay time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
