package portfolio

import (
	"context"
	"math"
	"strings"

	logger "github.com/sirupsen/logrus"

	"stocksim/src/model"
	"stocksim/src/repository"
)

// HistoryFilter narrows the transaction history. Empty fields match everything.
type HistoryFilter struct {
	Type   string
	Symbol string
}

type Pagination struct {
	CurrentPage       int   `json:"currentPage"`
	TotalPages        int   `json:"totalPages"`
	TotalTransactions int64 `json:"totalTransactions"`
	HasNext           bool  `json:"hasNext"`
	HasPrev           bool  `json:"hasPrev"`
}

type HistoryPage struct {
	Transactions []model.Transaction `json:"transactions"`
	Pagination   Pagination          `json:"pagination"`
}

// GetTransactionHistory returns one page of the user's trades, newest first.
// A zero page or limit selects the default; limit is capped at HistoryMaxLimit.
func (s *Service) GetTransactionHistory(ctx context.Context, userID uint, filter HistoryFilter, page, limit int) (*HistoryPage, error) {
	log := logger.WithFields(logger.Fields{
		"component": "portfolio",
		"op":        "GetTransactionHistory",
		"user_id":   userID,
	})

	var violations []string
	if page < 0 {
		violations = append(violations, "Page must be a positive number")
	}
	if limit < 0 {
		violations = append(violations, "Limit must be a positive number")
	}

	options := repository.TransactionSearchOptions{UserID: userID}
	if filter.Type != "" {
		txType := model.TransactionType(strings.ToUpper(strings.TrimSpace(filter.Type)))
		if !txType.Valid() {
			violations = append(violations, "Type must be BUY or SELL")
		}
		options.Type = &txType
	}
	if symbol := model.NormalizeSymbol(filter.Symbol); symbol != "" {
		options.Symbol = &symbol
	}
	if len(violations) > 0 {
		return nil, invalidInput(violations...)
	}

	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = s.config.HistoryDefaultLimit
	}
	if limit > s.config.HistoryMaxLimit {
		limit = s.config.HistoryMaxLimit
	}
	if page-1 > math.MaxInt/limit {
		return nil, invalidInput("Page is out of range")
	}
	options.Limit = limit
	options.Offset = (page - 1) * limit

	txs, total, err := s.transactions.WithDB(s.readDB).Search(ctx, options)
	if err != nil {
		return nil, s.fail(ctx, log, "GetTransactionHistory", userID, filter.Symbol, err)
	}
	if txs == nil {
		txs = []model.Transaction{}
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &HistoryPage{
		Transactions: txs,
		Pagination: Pagination{
			CurrentPage:       page,
			TotalPages:        totalPages,
			TotalTransactions: total,
			HasNext:           page < totalPages,
			HasPrev:           page > 1,
		},
	}, nil
}
