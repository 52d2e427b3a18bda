/*
This file contains the shared HTTP client used by the position and price fetchers.

Every request goes through a rate limiter and a circuit breaker and is retried
with a linear backoff. Client errors (4xx other than 429) are not retried.
*/

package datafetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elys-network/clmm-monitor/internal/logger"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var (
	ErrUpstream            = errors.New("upstream request failed")
	ErrInvalidPositionData = errors.New("invalid position data received")
	ErrInvalidPriceData    = errors.New("invalid price data received")
)

const (
	MAX_RETRIES     = 3
	TIMEOUT_SECONDS = 30
	RETRY_BACKOFF   = time.Second

	// Keep well below public API quotas.
	DEFAULT_REQUESTS_PER_SECOND = 2
	MAX_BODY_BYTES              = 4 << 20
)

// ClientOptions tunes the shared HTTP client. Zero values select the defaults above.
type ClientOptions struct {
	HTTPClient        *http.Client
	RequestsPerSecond float64
	MaxRetries        int
	RetryBackoff      time.Duration
}

type apiClient struct {
	name       string
	http       *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	maxRetries int
	backoff    time.Duration
	logger     zerolog.Logger
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

func newAPIClient(name string, opts ClientOptions) *apiClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: TIMEOUT_SECONDS * time.Second}
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = DEFAULT_REQUESTS_PER_SECOND
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = MAX_RETRIES
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = RETRY_BACKOFF
	}

	return &apiClient{
		name:       name,
		http:       httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		breaker:    newBreaker(name),
		maxRetries: retries,
		backoff:    backoff,
		logger:     logger.GetForComponent(name),
	}
}

// newBreaker opens after 3 consecutive failures, or after more than 5% failures
// once 20 requests have been seen in the 60s window.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= 3 {
				return true
			}
			if counts.Requests < 20 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
		},
		// A rejected request means the upstream is up.
		IsSuccessful: func(err error) bool {
			var permanent permanentError
			return err == nil || errors.As(err, &permanent)
		},
	}
	breakerLogger := logger.GetForComponent(name)
	settings.OnStateChange = func(name string, from, to gobreaker.State) {
		breakerLogger.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
	}
	return gobreaker.NewCircuitBreaker(settings)
}

// getJSON fetches url and decodes the JSON body into out.
func (c *apiClient) getJSON(ctx context.Context, url string, header http.Header, out any) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		c.logger.Debug().
			Str("url", url).
			Int("attempt", attempt).
			Int("maxRetries", c.maxRetries).
			Msg("Making API request")

		body, err := c.fetch(ctx, url, header)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("%w: failed to parse JSON response from %s: %v", ErrUpstream, c.name, err)
			}
			return nil
		}

		lastErr = err
		var permanent permanentError
		if errors.As(err, &permanent) || errors.Is(err, gobreaker.ErrOpenState) || ctx.Err() != nil {
			break
		}

		c.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Msg("API request failed, will retry if attempts remain")

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
	}

	c.logger.Error().
		Err(lastErr).
		Str("url", url).
		Msg("API request failed")
	return fmt.Errorf("%w: %s: %w", ErrUpstream, c.name, lastErr)
}

func (c *apiClient) fetch(ctx context.Context, url string, header http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, permanentError{err}
		}
		req.Header.Set("Accept", "application/json")
		for key, values := range header {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, MAX_BODY_BYTES))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("API returned status %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, permanentError{statusErr}
			}
			return nil, statusErr
		}
		if len(body) == 0 {
			return nil, errors.New("empty response body")
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
