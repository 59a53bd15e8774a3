package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"stocksim/src/auth"
	"stocksim/src/model"
	"stocksim/src/portfolio"
)

type portfolioReader interface {
	GetPortfolio(ctx context.Context, userID uint) (*model.Portfolio, error)
	GetHoldingDetails(ctx context.Context, userID uint, symbol string) (*portfolio.HoldingDetails, error)
}

type historyReader interface {
	GetTransactionHistory(ctx context.Context, userID uint, filter portfolio.HistoryFilter, page, limit int) (*portfolio.HistoryPage, error)
}

func GetPortfolioHandler(svc portfolioReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		p, err := svc.GetPortfolio(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "", p)
	}
}

// GetHoldingDetailsHandler serves /portfolio/holdings/{symbol}.
func GetHoldingDetailsHandler(svc portfolioReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		details, err := svc.GetHoldingDetails(r.Context(), userID, chi.URLParam(r, "symbol"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "", details)
	}
}

// GetTransactionHistoryHandler lists trades. Supports type, symbol, page and limit
// query parameters; page and limit default to the service defaults.
func GetTransactionHistoryHandler(svc historyReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		query := r.URL.Query()

		page := 0
		if pageParam := query.Get("page"); pageParam != "" {
			parsedPage, err := strconv.Atoi(pageParam)
			if err != nil || parsedPage <= 0 {
				http.Error(w, "invalid page", http.StatusBadRequest)
				return
			}
			page = parsedPage
		}

		limit := 0
		if limitParam := query.Get("limit"); limitParam != "" {
			parsedLimit, err := strconv.Atoi(limitParam)
			if err != nil || parsedLimit <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsedLimit
		}

		filter := portfolio.HistoryFilter{
			Type:   query.Get("type"),
			Symbol: query.Get("symbol"),
		}

		history, err := svc.GetTransactionHistory(r.Context(), userID, filter, page, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "", history)
	}
}
