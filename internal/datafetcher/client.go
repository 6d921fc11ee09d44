package datafetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marinade-finance/psr-dashboard/internal/config"
	"github.com/marinade-finance/psr-dashboard/internal/logger"
	"github.com/marinade-finance/psr-dashboard/internal/metrics"
)

var clientLogger = logger.GetForComponent("feed_client")

var ErrAPIResponseInvalid = errors.New("API response validation failed")

// Feed names used in logs and metrics.
const (
	FeedValidators      = "validators"
	FeedRewards         = "rewards"
	FeedProtectedEvents = "protected_events"
	FeedBonds           = "bonds"
)

// Client fetches the Marinade feeds over HTTP. Retries live here and nowhere else.
type Client struct {
	httpClient    *http.Client
	validatorsAPI string
	bondsAPI      string
	maxRetries    int
	retryDelay    time.Duration
}

// ClientConfig holds the settings of a Client. Zero values fall back to defaults.
type ClientConfig struct {
	ValidatorsAPI string
	BondsAPI      string
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration // Multiplied by the attempt number
}

// NewClient builds a client from the loaded application configuration.
func NewClient() *Client {
	return NewClientWithConfig(ClientConfig{
		ValidatorsAPI: config.ValidatorsAPI,
		BondsAPI:      config.BondsAPI,
		Timeout:       config.HTTPTimeout,
		MaxRetries:    config.FetchMaxRetries,
	})
}

func NewClientWithConfig(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		validatorsAPI: cfg.ValidatorsAPI,
		bondsAPI:      cfg.BondsAPI,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
	}
}

// getJSON performs a GET with bounded retries and decodes the body into out.
// Numbers are kept as json.Number so amounts never pass through float64.
func (c *Client) getJSON(ctx context.Context, feed, url string, out any) error {
	start := time.Now()
	defer func() { metrics.RecordFetch(feed, time.Since(start)) }()

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		clientLogger.Debug().
			Str("feed", feed).
			Str("url", url).
			Int("attempt", attempt).
			Int("maxRetries", c.maxRetries).
			Msg("Making API request")

		err := c.fetchOnce(ctx, url, out)
		metrics.RecordFetchAttempt(feed, err)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		clientLogger.Warn().
			Err(err).
			Str("feed", feed).
			Int("attempt", attempt).
			Msg("API request failed, will retry if attempts remain")

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			}
		}
	}

	clientLogger.Error().
		Err(lastErr).
		Str("feed", feed).
		Int("maxRetries", c.maxRetries).
		Msg("All retry attempts failed")
	return fmt.Errorf("failed to fetch %s after %d attempts: %w", feed, c.maxRetries, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := validateAPIResponse(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: empty response body", ErrAPIResponseInvalid)
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("%w: failed to parse JSON: %w", ErrAPIResponseInvalid, err)
	}
	return nil
}

func validateAPIResponse(resp *http.Response) error {
	if resp == nil {
		return fmt.Errorf("%w: HTTP response is nil", ErrAPIResponseInvalid)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: API returned non-200 status: %d", ErrAPIResponseInvalid, resp.StatusCode)
	}
	if resp.Body == nil {
		return fmt.Errorf("%w: response body is nil", ErrAPIResponseInvalid)
	}
	return nil
}
