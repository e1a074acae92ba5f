package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
	"github.com/damon-houk/fx-rates-sync/internal/domain/repository"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/logger"
	"github.com/google/uuid"
)

const (
	// DefaultBaseURL is the public currencylayer endpoint
	DefaultBaseURL = "http://api.currencylayer.com"

	currenciesPath = "/list"
	liveRatesPath  = "/live"
	accessKeyParam = "access_key"
)

var _ repository.RateSource = (*CurrencyLayerClient)(nil)

// ClientOptions configures a CurrencyLayerClient
type ClientOptions struct {
	BaseURL    string
	AccessKey  string
	HTTPClient *http.Client
	MaxRetries int
	RetryDelay time.Duration
	Logger     logger.Logger
}

// CurrencyLayerClient fetches the currency catalog and live rates from a currencylayer-style API
type CurrencyLayerClient struct {
	baseURL    string
	accessKey  string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     logger.Logger
}

// NewCurrencyLayerClient creates a new rate source client
func NewCurrencyLayerClient(opts ClientOptions) *CurrencyLayerClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetDefaultLogger()
	}

	return &CurrencyLayerClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		accessKey:  opts.AccessKey,
		httpClient: opts.HTTPClient,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger.WithField("component", "rate_source"),
	}
}

// apiError is the error object of an unsuccessful response
type apiError struct {
	Code int    `json:"code"`
	Info string `json:"info"`
}

// ListResponse represents the response of the currency list endpoint
type ListResponse struct {
	Success    bool              `json:"success"`
	Currencies map[string]string `json:"currencies"`
	Error      *apiError         `json:"error,omitempty"`
}

// LiveResponse represents the response of the live rates endpoint
type LiveResponse struct {
	Success   bool               `json:"success"`
	Timestamp json.Number        `json:"timestamp"`
	Source    string             `json:"source"`
	Quotes    map[string]float64 `json:"quotes"`
	Error     *apiError          `json:"error,omitempty"`
}

// FetchCurrencies retrieves the currency catalog.
// An unsuccessful response body yields a catalog with Success=false.
func (c *CurrencyLayerClient) FetchCurrencies(ctx context.Context) (*entity.CurrencyCatalog, error) {
	var resp ListResponse
	if err := c.get(ctx, currenciesPath, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		c.logAPIError(currenciesPath, resp.Error)
		return &entity.CurrencyCatalog{Success: false, Currencies: map[string]string{}}, nil
	}

	return &entity.CurrencyCatalog{
		Success:    true,
		Currencies: resp.Currencies,
	}, nil
}

// FetchRateSnapshot retrieves the live rates against the source currency
func (c *CurrencyLayerClient) FetchRateSnapshot(ctx context.Context) (*entity.RateSnapshot, error) {
	var resp LiveResponse
	if err := c.get(ctx, liveRatesPath, &resp); err != nil {
		return nil, err
	}

	if !resp.Success {
		c.logAPIError(liveRatesPath, resp.Error)
		return nil, fmt.Errorf("live rates unavailable: %w", entity.ErrEmptyResult)
	}

	if resp.Source == "" || len(resp.Quotes) == 0 {
		return nil, fmt.Errorf("live rates response has no quotes: %w", entity.ErrEmptyResult)
	}

	for key, rate := range resp.Quotes {
		if rate <= 0 {
			return nil, fmt.Errorf("invalid rate %f for %s", rate, key)
		}
	}

	return &entity.RateSnapshot{
		ID:        uuid.New().String(),
		Timestamp: resp.Timestamp.String(),
		BaseCode:  resp.Source,
		Rates:     resp.Quotes,
	}, nil
}

// get performs a GET with retries and decodes the JSON body into out.
// Transport failures and non-200 statuses are reported as ErrRemoteUnavailable.
func (c *CurrencyLayerClient) get(ctx context.Context, path string, out interface{}) error {
	reqURL, err := c.buildURL(path)
	if err != nil {
		return fmt.Errorf("failed to build request URL: %w", err)
	}

	var resp *http.Response
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		var req *http.Request
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Add("Accept", "application/json")

		resp, err = c.httpClient.Do(req)
		if err == nil {
			break
		}

		if attempt < c.maxRetries {
			backoff := time.Duration(attempt*attempt) * c.retryDelay
			c.logger.Warn("Request failed, retrying", map[string]interface{}{
				"path":    path,
				"attempt": attempt,
				"retries": c.maxRetries,
				"backoff": backoff.String(),
				"error":   err.Error(),
			})

			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", entity.ErrRemoteUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	if err != nil {
		return fmt.Errorf("%w: failed to execute request after %d attempts: %w", entity.ErrRemoteUnavailable, c.maxRetries, err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Error closing response body", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %w", entity.ErrRemoteUnavailable, err)
	}

	c.logger.Debug("Rate source response", map[string]interface{}{
		"path":   path,
		"status": resp.StatusCode,
		"bytes":  len(body),
	})

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: API returned error status: %d", entity.ErrRemoteUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// buildURL appends the access key to the endpoint URL
func (c *CurrencyLayerClient) buildURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", err
	}
	if c.accessKey != "" {
		q := u.Query()
		q.Set(accessKeyParam, c.accessKey)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *CurrencyLayerClient) logAPIError(path string, apiErr *apiError) {
	fields := map[string]interface{}{"path": path}
	if apiErr != nil {
		fields["code"] = apiErr.Code
		fields["info"] = apiErr.Info
	}
	c.logger.Warn("Rate source returned unsuccessful response", fields)
}
