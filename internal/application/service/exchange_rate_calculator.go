// Package service internal/application/service/exchange_rate_calculator.go
package service

import (
	"fmt"
	"math"
	"sort"

	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
)

// ExchangeRateCalculator derives cross-rates from a single base-denominated rate table.
// It is immutable once built; a new snapshot means a new calculator.
type ExchangeRateCalculator struct {
	snapshot   entity.RateSnapshot
	currencies []entity.Currency
	byCode     map[string]entity.Currency
	quoteKeys  []string
}

// NewExchangeRateCalculator builds a calculator from a rate snapshot and the currency catalog
func NewExchangeRateCalculator(snapshot *entity.RateSnapshot, currencies []entity.Currency) *ExchangeRateCalculator {
	calc := &ExchangeRateCalculator{
		byCode: make(map[string]entity.Currency, len(currencies)),
	}

	if snapshot != nil {
		calc.snapshot = *snapshot
		calc.snapshot.Rates = make(map[string]float64, len(snapshot.Rates))
		for k, v := range snapshot.Rates {
			calc.snapshot.Rates[k] = v
			calc.quoteKeys = append(calc.quoteKeys, k)
		}
		sort.Strings(calc.quoteKeys)
	}

	calc.currencies = make([]entity.Currency, len(currencies))
	copy(calc.currencies, currencies)

	// first entry wins on duplicate codes
	for _, c := range calc.currencies {
		if _, exists := calc.byCode[c.Code]; !exists {
			calc.byCode[c.Code] = c
		}
	}

	return calc
}

// Calculate converts amount, denominated in source, into every currency the rate table quotes.
// The amount is first expressed in the base currency, then multiplied by each quote.
// Quotes whose currency is missing from the catalog are skipped.
func (c *ExchangeRateCalculator) Calculate(amount float64, source entity.Currency) ([]entity.ConvertedAmount, error) {
	sourceRate, ok := c.snapshot.Rate(source.Code)
	if !ok || sourceRate == 0 {
		return nil, fmt.Errorf("no rate for %s against %s: %w", source.Code, c.snapshot.BaseCode, entity.ErrRateNotFound)
	}

	inBase := amount / sourceRate
	if !isFinite(inBase) {
		return nil, fmt.Errorf("converting %v %s: %w", amount, source.Code, entity.ErrAmountOutOfRange)
	}
	baseLen := len(c.snapshot.BaseCode)

	result := make([]entity.ConvertedAmount, 0, len(c.quoteKeys))
	for _, key := range c.quoteKeys {
		if len(key) <= baseLen {
			continue
		}

		currency, known := c.byCode[key[baseLen:]]
		if !known {
			continue
		}

		converted := inBase * c.snapshot.Rates[key]
		if !isFinite(converted) {
			return nil, fmt.Errorf("converting %v %s to %s: %w", amount, source.Code, currency.Code, entity.ErrAmountOutOfRange)
		}

		result = append(result, entity.ConvertedAmount{
			Amount:   converted,
			Currency: currency,
		})
	}

	return result, nil
}

// Rates returns a copy of the snapshot the calculator was built from
func (c *ExchangeRateCalculator) Rates() *entity.RateSnapshot {
	snapshot := c.snapshot
	snapshot.Rates = make(map[string]float64, len(c.snapshot.Rates))
	for k, v := range c.snapshot.Rates {
		snapshot.Rates[k] = v
	}
	return &snapshot
}

// Currencies returns a copy of the catalog the calculator was built from
func (c *ExchangeRateCalculator) Currencies() []entity.Currency {
	list := make([]entity.Currency, len(c.currencies))
	copy(list, c.currencies)
	return list
}

func isFinite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
