// Package handler internal/infrastructure/handler/rates_handler.go
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/damon-houk/fx-rates-sync/internal/application/resource"
	"github.com/damon-houk/fx-rates-sync/internal/application/service"
	"github.com/damon-houk/fx-rates-sync/internal/domain/entity"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/logger"
	"github.com/damon-houk/fx-rates-sync/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

// DefaultCalculateTimeout bounds how long POST /calculate waits for a result
const DefaultCalculateTimeout = 5 * time.Second

// RatesHandler exposes the coordinator's resources over HTTP
type RatesHandler struct {
	coordinator      *service.RatesCoordinator
	calculateTimeout time.Duration
	logger           logger.Logger
}

// NewRatesHandler creates a new rates handler
func NewRatesHandler(coordinator *service.RatesCoordinator, log logger.Logger) *RatesHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &RatesHandler{
		coordinator:      coordinator,
		calculateTimeout: DefaultCalculateTimeout,
		logger:           log,
	}
}

// SetCalculateTimeout overrides DefaultCalculateTimeout
func (h *RatesHandler) SetCalculateTimeout(timeout time.Duration) {
	if timeout > 0 {
		h.calculateTimeout = timeout
	}
}

// GetCurrencies returns the currency catalog resource
func (h *RatesHandler) GetCurrencies(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, toResourceResponse(h.coordinator.Currencies(), toCurrencyResponses))
}

// GetRates returns the rate snapshot resource
func (h *RatesHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, toResourceResponse(h.coordinator.ExchangeRates(), toRatesResponse))
}

// GetAmounts returns the last computed amounts resource
func (h *RatesHandler) GetAmounts(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, toResourceResponse(h.coordinator.Amounts(), toAmountResponses))
}

// Calculate converts an amount into every quoted currency and waits for the result
func (h *RatesHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req CalculateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		h.logger.Warn("Invalid calculate request body", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Invalid request format",
			"The request body must be valid JSON with 'amount' and 'currency' fields", http.StatusBadRequest, requestID)
		return
	}

	if req.Amount == nil {
		sendErrorResponse(w, h.logger, "Missing amount",
			"The 'amount' field is required", http.StatusBadRequest, requestID)
		return
	}
	if *req.Amount < 0 {
		sendErrorResponse(w, h.logger, "Invalid amount",
			"The 'amount' field must not be negative", http.StatusBadRequest, requestID)
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.Currency))
	if len(code) != 3 {
		h.logger.Warn("Invalid currency code", map[string]interface{}{
			"request_id": requestID,
			"currency":   req.Currency,
		})
		sendErrorResponse(w, h.logger, "Invalid currency code",
			"Currency code should be 3 characters (e.g., USD, JPY, EUR)", http.StatusBadRequest, requestID)
		return
	}

	h.logger.Info("Handling calculate request", map[string]interface{}{
		"request_id": requestID,
		"amount":     *req.Amount,
		"currency":   code,
	})

	amounts := h.coordinator.Amounts()
	version := amounts.Version()
	h.coordinator.Calculate(*req.Amount, h.lookupCurrency(code))

	ctx, cancel := context.WithTimeout(r.Context(), h.calculateTimeout)
	defer cancel()

	result, err := amounts.WaitSettledAfter(ctx, version)
	if err != nil {
		h.logger.Error("Calculation did not settle in time", map[string]interface{}{
			"request_id": requestID,
			"currency":   code,
			"error":      err.Error(),
		})
		status := http.StatusGatewayTimeout
		if errors.Is(err, context.Canceled) {
			status = http.StatusServiceUnavailable
		}
		sendErrorResponse(w, h.logger, "Calculation timed out",
			"The calculation did not complete in time. Please try again later.", status, requestID)
		return
	}

	if result.Status == resource.StatusError {
		sendErrorResponse(w, h.logger, result.Message,
			"No exchange rate is available for the requested currency", http.StatusUnprocessableEntity, requestID)
		return
	}

	h.logger.Info("Calculation completed", map[string]interface{}{
		"request_id": requestID,
		"currency":   code,
		"results":    len(result.Data),
	})

	data := toAmountResponses(result.Data)
	sendJSON(w, http.StatusOK, ResourceResponse[[]AmountResponse]{
		Status: string(result.Status),
		Data:   &data,
	})
}

// RefreshRates forces a remote rate refresh without waiting for it
func (h *RatesHandler) RefreshRates(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	h.logger.Info("Handling rate refresh request", map[string]interface{}{
		"request_id": requestID,
	})

	h.coordinator.Refresh(r.Context())

	sendJSON(w, http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"request_id": requestID,
	})
}

// Health reports readiness: 200 once a calculator is available, 503 before
func (h *RatesHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		Currencies: statusOf(h.coordinator.Currencies()),
		Rates:      statusOf(h.coordinator.ExchangeRates()),
	}

	status := http.StatusOK
	if h.coordinator.Calculator() == nil {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}

	sendJSON(w, status, resp)
}

// RegisterRoutes registers the rates handler routes
func (h *RatesHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/currencies", h.GetCurrencies).Methods(http.MethodGet)
	api.HandleFunc("/rates", h.GetRates).Methods(http.MethodGet)
	api.HandleFunc("/rates/refresh", h.RefreshRates).Methods(http.MethodPost)
	api.HandleFunc("/amounts", h.GetAmounts).Methods(http.MethodGet)
	api.HandleFunc("/calculate", h.Calculate).Methods(http.MethodPost)
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	h.logger.Info("Rates routes registered", map[string]interface{}{
		"routes": []string{
			"GET /api/v1/currencies",
			"GET /api/v1/rates",
			"POST /api/v1/rates/refresh",
			"GET /api/v1/amounts",
			"POST /api/v1/calculate",
			"GET /api/v1/health",
		},
	})
}

// lookupCurrency resolves the catalog name for code when the calculator knows it
func (h *RatesHandler) lookupCurrency(code string) entity.Currency {
	if calc := h.coordinator.Calculator(); calc != nil {
		for _, c := range calc.Currencies() {
			if c.Code == code {
				return c
			}
		}
	}
	return entity.Currency{Code: code}
}

func statusOf[T any](obs *resource.Observable[T]) string {
	current, ok := obs.Get()
	if !ok {
		return StatusNotStarted
	}
	return string(current.Status)
}

// sendJSON encodes body before writing the header so an encoding failure
// becomes a 500 instead of a success status with an empty body
func sendJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		logger.Error("Failed to encode response", map[string]interface{}{
			"status_code": statusCode,
			"error":       err.Error(),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error","status":500}` + "\n"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	sendJSON(w, statusCode, ErrorResponse{
		Error:       message,
		Status:      statusCode,
		Description: description,
		RequestID:   requestID,
	})
}
