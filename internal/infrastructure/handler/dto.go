package handler

import (
	"math"
	"strconv"
	"strings"

	"github.com/damon-houk/fx-rates-sync/internal/application/resource"
	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// StatusNotStarted is reported for a resource no operation has touched yet
const StatusNotStarted = "NOT_STARTED"

// CalculateRequest represents the request body for the calculate endpoint
type CalculateRequest struct {
	Amount   *float64 `json:"amount"`
	Currency string   `json:"currency"`
}

// CurrencyResponse represents a catalog entry
type CurrencyResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RatesResponse represents a rate snapshot
type RatesResponse struct {
	ID        string             `json:"id,omitempty"`
	Timestamp string             `json:"timestamp"`
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
}

// AmountResponse represents one converted amount
type AmountResponse struct {
	Currency CurrencyResponse `json:"currency"`
	Amount   float64          `json:"amount"`
	Display  string           `json:"display"`
}

// ResourceResponse wraps resource data with its status
type ResourceResponse[T any] struct {
	Status  string `json:"status"`
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the response of the health endpoint
type HealthResponse struct {
	Status     string `json:"status"`
	Currencies string `json:"currencies"`
	Rates      string `json:"rates"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// toResourceResponse maps an observable's current value through convert
func toResourceResponse[S, T any](obs *resource.Observable[S], convert func(S) T) ResourceResponse[T] {
	current, ok := obs.Get()
	if !ok {
		return ResourceResponse[T]{Status: StatusNotStarted}
	}

	resp := ResourceResponse[T]{
		Status:  string(current.Status),
		Message: current.Message,
	}
	if current.HasData {
		data := convert(current.Data)
		resp.Data = &data
	}
	return resp
}

func toCurrencyResponses(currencies []entity.Currency) []CurrencyResponse {
	list := make([]CurrencyResponse, 0, len(currencies))
	for _, c := range currencies {
		list = append(list, CurrencyResponse{Code: c.Code, Name: c.Name})
	}
	return list
}

func toRatesResponse(snapshot *entity.RateSnapshot) RatesResponse {
	if snapshot == nil {
		return RatesResponse{Rates: map[string]float64{}}
	}
	return RatesResponse{
		ID:        snapshot.ID,
		Timestamp: snapshot.Timestamp,
		Base:      snapshot.BaseCode,
		Rates:     snapshot.Rates,
	}
}

func toAmountResponses(amounts []entity.ConvertedAmount) []AmountResponse {
	list := make([]AmountResponse, 0, len(amounts))
	for _, a := range amounts {
		list = append(list, AmountResponse{
			Currency: CurrencyResponse{Code: a.Currency.Code, Name: a.Currency.Name},
			Amount:   a.Amount,
			Display:  FormatAmount(a.Amount),
		})
	}
	return list
}

// FormatAmount renders an amount with at most two decimals (half-even)
// and comma thousands separators, e.g. 1315.789 -> "1,315.79", 10 -> "10".
// Non-finite values are rendered as strconv formats them.
func FormatAmount(amount float64) string {
	if math.IsInf(amount, 0) || math.IsNaN(amount) {
		return strconv.FormatFloat(amount, 'f', -1, 64)
	}

	rounded := decimal.NewFromFloat(amount).RoundBank(2)

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}

	text := rounded.String()
	intPart, fracPart, hasFrac := strings.Cut(text, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}

	return b.String()
}
