package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/stripe-notion-sync/internal/domain/errors"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/provider"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config configures a Notion API client.
type Config struct {
	BaseURL string
	Token   string
	Version string
	// MinInterval is the minimum spacing between two requests.
	MinInterval time.Duration
	MaxRetries  int
	Timeout     time.Duration
	// InitialBackoff is the first retry delay. Defaults to 500ms.
	InitialBackoff time.Duration
}

// Client writes pages into Notion databases.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	version    string
	limiter    *rate.Limiter
	maxRetries int
	initial    time.Duration
	logger     *zap.Logger
}

// NewClient creates a client. Every request of this client shares one limiter.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	initial := cfg.InitialBackoff
	if initial == 0 {
		initial = 500 * time.Millisecond
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		version:    cfg.Version,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		initial:    initial,
		logger:     logger,
	}
}

type apiError struct {
	Object  string `json:"object"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type page struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type queryResponse struct {
	Results []page `json:"results"`
	HasMore bool   `json:"has_more"`
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)
}

// do sends one API call. Rate limit, server and network failures are retried
// with exponential backoff; other client errors fail immediately.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode notion request: %w", err)
		}
	}

	attempt := 0
	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Notion-Version", c.version)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return &domainErrors.TransientError{Op: method + " " + path, Cause: err}
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return &domainErrors.TransientError{Op: method + " " + path, Cause: err}
		}

		if resp.StatusCode >= http.StatusBadRequest {
			destErr := parseError(resp.StatusCode, respBody)
			if !destErr.Retryable() {
				return backoff.Permanent(destErr)
			}
			if wait := retryAfter(resp.Header); wait > 0 {
				c.logger.Debug("Notion asked to retry later", zap.Duration("retry_after", wait))
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return destErr
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode notion response: %w", err))
			}
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Retrying Notion request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(operation, c.newBackOff(ctx), notify)
	if err != nil {
		var destErr *domainErrors.DestinationError
		if !errors.As(err, &destErr) {
			c.logger.Error("Notion request failed",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("attempts", attempt),
				zap.Error(err))
		}
	}
	return err
}

func parseError(status int, body []byte) *domainErrors.DestinationError {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Object != "error" {
		return &domainErrors.DestinationError{StatusCode: status, Message: string(body)}
	}
	return &domainErrors.DestinationError{StatusCode: status, APICode: apiErr.Code, Message: apiErr.Message}
}

func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// FindByNaturalKey queries the database for a page whose title equals value.
func (c *Client) FindByNaturalKey(ctx context.Context, databaseID, key, value string) (*provider.DestinationRecord, error) {
	body := map[string]interface{}{
		"filter": map[string]interface{}{
			"property": key,
			"title":    map[string]interface{}{"equals": value},
		},
		"page_size": 1,
	}

	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, "/databases/"+url.PathEscape(databaseID)+"/query", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return &provider.DestinationRecord{ID: resp.Results[0].ID, URL: resp.Results[0].URL}, nil
}

// Create adds a page to the database. Null properties are omitted.
func (c *Client) Create(ctx context.Context, databaseID string, props entity.Properties) (*provider.DestinationRecord, error) {
	body := map[string]interface{}{
		"parent":     map[string]interface{}{"database_id": databaseID},
		"properties": EncodeProperties(props, provider.WriteMerge),
	}

	var resp page
	if err := c.do(ctx, http.MethodPost, "/pages", body, &resp); err != nil {
		return nil, err
	}
	return &provider.DestinationRecord{ID: resp.ID, URL: resp.URL}, nil
}

// Update patches the properties of an existing page.
func (c *Client) Update(ctx context.Context, recordID string, props entity.Properties, mode provider.WriteMode) (*provider.DestinationRecord, error) {
	body := map[string]interface{}{
		"properties": EncodeProperties(props, mode),
	}

	var resp page
	if err := c.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(recordID), body, &resp); err != nil {
		return nil, err
	}
	return &provider.DestinationRecord{ID: resp.ID, URL: resp.URL}, nil
}
