package entity

import (
	"sort"
)

// Currency represents a currency known to the catalog
type Currency struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// CurrencyCatalog represents the currency list returned by the rate source
type CurrencyCatalog struct {
	Success    bool              `json:"success"`
	Currencies map[string]string `json:"currencies"`
}

// ToCurrencies converts the catalog's code to name mapping into a list sorted by code
func (c *CurrencyCatalog) ToCurrencies() []Currency {
	if c == nil || len(c.Currencies) == 0 {
		return []Currency{}
	}

	list := make([]Currency, 0, len(c.Currencies))
	for code, name := range c.Currencies {
		list = append(list, Currency{Code: code, Name: name})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Code < list[j].Code
	})

	return list
}

// RateSnapshot represents the exchange rates of every quoted currency against a base currency.
// A rate of r under key BaseCode+"XYZ" means 1 unit of BaseCode buys r units of XYZ.
type RateSnapshot struct {
	ID        string             `json:"id,omitempty"`
	Timestamp string             `json:"timestamp"`
	BaseCode  string             `json:"base_code"`
	Rates     map[string]float64 `json:"rates"`
}

// QuoteKey builds the rate key for the given target currency code
func (s *RateSnapshot) QuoteKey(targetCode string) string {
	return s.BaseCode + targetCode
}

// Rate returns the rate quoted for the target currency code
func (s *RateSnapshot) Rate(targetCode string) (float64, bool) {
	rate, ok := s.Rates[s.QuoteKey(targetCode)]
	return rate, ok
}

// IsEmpty reports whether the snapshot carries no usable rates
func (s *RateSnapshot) IsEmpty() bool {
	return s == nil || len(s.Rates) == 0
}

// ConvertedAmount is an amount expressed in a given currency
type ConvertedAmount struct {
	Amount   float64  `json:"amount"`
	Currency Currency `json:"currency"`
}
