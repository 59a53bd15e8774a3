package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"stocksim/src/portfolio"
)

type successResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
}

type errorResponse struct {
	Success        bool             `json:"success"`
	Message        string           `json:"message"`
	Errors         []string         `json:"errors,omitempty"`
	Symbol         string           `json:"symbol,omitempty"`
	Required       *decimal.Decimal `json:"required,omitempty"`
	CurrentBalance *decimal.Decimal `json:"currentBalance,omitempty"`
	Available      *decimal.Decimal `json:"available,omitempty"`
	Requested      *decimal.Decimal `json:"requested,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

func writeOK(w http.ResponseWriter, message string, data interface{}) {
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: message, Data: data})
}

// writeError maps a service error to a status code and a body. Storage
// failures and unknown errors are reported without detail.
func writeError(w http.ResponseWriter, err error) {
	var typed *portfolio.Error
	if !errors.As(err, &typed) {
		logger.WithError(err).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Internal Server Error"})
		return
	}

	resp := errorResponse{Message: typed.Error()}
	status := http.StatusInternalServerError

	switch typed.Kind {
	case portfolio.KindInvalidInput:
		status = http.StatusBadRequest
		resp.Message = "Validation failed"
		resp.Errors = typed.Violations
	case portfolio.KindInsufficientBalance:
		status = http.StatusBadRequest
		resp.Message = "Insufficient balance"
		resp.Required = &typed.Required
		resp.CurrentBalance = &typed.Available
	case portfolio.KindInsufficientQuantity:
		status = http.StatusBadRequest
		resp.Message = "Insufficient quantity to sell"
		resp.Symbol = typed.Symbol
		resp.Available = &typed.Available
		resp.Requested = &typed.Requested
	case portfolio.KindUserNotFound:
		status = http.StatusNotFound
		resp.Message = "User not found"
	case portfolio.KindPortfolioNotFound:
		status = http.StatusNotFound
		resp.Message = "Portfolio not found"
	case portfolio.KindHoldingNotFound:
		status = http.StatusNotFound
		resp.Message = "Stock not found in portfolio"
		resp.Symbol = typed.Symbol
	case portfolio.KindConcurrentModification:
		status = http.StatusConflict
	default:
		resp.Message = "Internal Server Error"
	}

	writeJSON(w, status, resp)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// PortfolioService is everything the HTTP surface needs from the core.
type PortfolioService interface {
	trader
	portfolioReader
	historyReader
	cashier
}
