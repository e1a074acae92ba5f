// internal/infrastructure/api/currencylayer_client_test.go
package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *CurrencyLayerClient {
	return NewCurrencyLayerClient(ClientOptions{
		BaseURL:    baseURL,
		AccessKey:  "test-key",
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		Logger:     logger.NewNopLogger(),
	})
}

func TestFetchCurrencies(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/list", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("access_key"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"success": true,
			"terms": "https://currencylayer.com/terms",
			"privacy": "https://currencylayer.com/privacy",
			"currencies": {
				"EUR": "Euro",
				"JPY": "Japanese Yen",
				"USD": "United States Dollar"
			}
		}`))
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)

	catalog, err := client.FetchCurrencies(context.Background())
	require.NoError(t, err)
	require.NotNil(t, catalog)
	assert.True(t, catalog.Success)
	assert.Equal(t, []entity.Currency{
		{Code: "EUR", Name: "Euro"},
		{Code: "JPY", Name: "Japanese Yen"},
		{Code: "USD", Name: "United States Dollar"},
	}, catalog.ToCurrencies())
}

func TestFetchCurrencies_Unsuccessful(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"success": false, "error": {"code": 101, "info": "invalid access key"}}`))
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)

	catalog, err := client.FetchCurrencies(context.Background())
	require.NoError(t, err)
	require.NotNil(t, catalog)
	assert.False(t, catalog.Success)
	assert.Empty(t, catalog.ToCurrencies())
}

func TestFetchRateSnapshot(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/live", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("access_key"))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"success": true,
			"timestamp": 1600000000,
			"source": "JPY",
			"quotes": {
				"JPYEUR": 0.0081,
				"JPYJPY": 1,
				"JPYUSD": 0.0093
			}
		}`))
	}))
	defer mockServer.Close()

	client := newTestClient(mockServer.URL)

	snapshot, err := client.FetchRateSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.NotEmpty(t, snapshot.ID)
	assert.Equal(t, "1600000000", snapshot.Timestamp)
	assert.Equal(t, "JPY", snapshot.BaseCode)
	assert.Len(t, snapshot.Rates, 3)

	rate, ok := snapshot.Rate("USD")
	assert.True(t, ok)
	assert.Equal(t, 0.0093, rate)
}

func TestFetchRateSnapshot_Errors(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		body           string
		expectedErr    error
		expectedSubstr string
	}{
		{
			name:        "unsuccessful response",
			status:      http.StatusOK,
			body:        `{"success": false, "error": {"code": 104, "info": "usage limit reached"}}`,
			expectedErr: entity.ErrEmptyResult,
		},
		{
			name:        "no quotes",
			status:      http.StatusOK,
			body:        `{"success": true, "timestamp": 1600000000, "source": "USD", "quotes": {}}`,
			expectedErr: entity.ErrEmptyResult,
		},
		{
			name:           "invalid rate",
			status:         http.StatusOK,
			body:           `{"success": true, "timestamp": 1600000000, "source": "USD", "quotes": {"USDEUR": -1}}`,
			expectedSubstr: "invalid rate",
		},
		{
			name:        "server error",
			status:      http.StatusInternalServerError,
			body:        `internal error`,
			expectedErr: entity.ErrRemoteUnavailable,
		},
		{
			name:           "malformed body",
			status:         http.StatusOK,
			body:           `{not json`,
			expectedSubstr: "failed to decode response",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer mockServer.Close()

			client := newTestClient(mockServer.URL)

			snapshot, err := client.FetchRateSnapshot(context.Background())
			assert.Nil(t, snapshot)
			require.Error(t, err)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
			}
			if tc.expectedSubstr != "" {
				assert.Contains(t, err.Error(), tc.expectedSubstr)
			}
		})
	}
}

func TestTransportFailureRetries(t *testing.T) {
	var calls int32
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, assert.AnError
	})

	client := NewCurrencyLayerClient(ClientOptions{
		BaseURL:    "http://rates.invalid",
		HTTPClient: &http.Client{Transport: transport},
		MaxRetries: 3,
		RetryDelay: 0,
		Logger:     logger.NewNopLogger(),
	})

	_, err := client.FetchCurrencies(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrRemoteUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int32
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		cancel()
		return nil, assert.AnError
	})

	client := NewCurrencyLayerClient(ClientOptions{
		BaseURL:    "http://rates.invalid",
		HTTPClient: &http.Client{Transport: transport},
		MaxRetries: 5,
		RetryDelay: time.Second,
		Logger:     logger.NewNopLogger(),
	})

	_, err := client.FetchRateSnapshot(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrRemoteUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBuildURL(t *testing.T) {
	client := newTestClient("http://example.com/api/")

	u, err := client.buildURL("/live")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/api/live?access_key=test-key", u)

	anonymous := NewCurrencyLayerClient(ClientOptions{BaseURL: "http://example.com"})
	u, err = anonymous.buildURL("/list")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/list", u)
}

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
