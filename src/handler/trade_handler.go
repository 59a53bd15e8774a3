package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"stocksim/src/auth"
	"stocksim/src/portfolio"
)

type trader interface {
	Buy(ctx context.Context, userID uint, symbol string, quantity, price decimal.Decimal) (*portfolio.BuyReceipt, error)
	Sell(ctx context.Context, userID uint, symbol string, quantity, price decimal.Decimal) (*portfolio.SellReceipt, error)
}

type tradePayload struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

func decodeTrade(w http.ResponseWriter, r *http.Request) (uint, *tradePayload, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, nil, false
	}

	var payload tradePayload
	if err := decodeJSON(r, &payload); err != nil {
		logger.WithError(err).Warn("invalid trade payload")
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return 0, nil, false
	}
	return userID, &payload, true
}

// BuyHandler executes a purchase for the authenticated user.
func BuyHandler(svc trader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, payload, ok := decodeTrade(w, r)
		if !ok {
			return
		}

		receipt, err := svc.Buy(r.Context(), userID, payload.Symbol, payload.Quantity, payload.Price)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "Stock purchased successfully", receipt)
	}
}

// SellHandler executes a sale for the authenticated user.
func SellHandler(svc trader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, payload, ok := decodeTrade(w, r)
		if !ok {
			return
		}

		receipt, err := svc.Sell(r.Context(), userID, payload.Symbol, payload.Quantity, payload.Price)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "Stock sold successfully", receipt)
	}
}
