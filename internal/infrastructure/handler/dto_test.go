package handler

import (
	"math"
	"testing"

	"github.com/damon-houk/fx-rates-sync/internal/application/resource"
	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   float64
		expected string
	}{
		{0, "0"},
		{10, "10"},
		{12.5, "12.5"},
		{12.236842, "12.24"},
		{1315.7894736842, "1,315.79"},
		{999.999, "1,000"},
		{1234567.891, "1,234,567.89"},
		{0.125, "0.12"},
		{-1315.79, "-1,315.79"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatAmount(tc.amount))
		})
	}

	t.Run("Non-finite values do not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			assert.Equal(t, "+Inf", FormatAmount(math.Inf(1)))
			assert.Equal(t, "-Inf", FormatAmount(math.Inf(-1)))
			assert.Equal(t, "NaN", FormatAmount(math.NaN()))
		})
	})
}

func TestToResourceResponse(t *testing.T) {
	obs := resource.NewObservable[[]entity.Currency]()

	resp := toResourceResponse(obs, toCurrencyResponses)
	assert.Equal(t, StatusNotStarted, resp.Status)
	assert.Nil(t, resp.Data)

	obs.Set(resource.Success([]entity.Currency{{Code: "USD", Name: "United States Dollar"}}))
	resp = toResourceResponse(obs, toCurrencyResponses)
	assert.Equal(t, "SUCCESS", resp.Status)
	require.NotNil(t, resp.Data)
	assert.Equal(t, []CurrencyResponse{{Code: "USD", Name: "United States Dollar"}}, *resp.Data)

	obs.Set(resource.Error([]entity.Currency{}, true, "Server returned empty data"))
	resp = toResourceResponse(obs, toCurrencyResponses)
	assert.Equal(t, "ERROR", resp.Status)
	assert.Equal(t, "Server returned empty data", resp.Message)
	require.NotNil(t, resp.Data)
	assert.Empty(t, *resp.Data)
}
