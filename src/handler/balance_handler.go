package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"stocksim/src/auth"
)

type cashier interface {
	GetBalance(ctx context.Context, userID uint) (decimal.Decimal, error)
	Deposit(ctx context.Context, userID uint, amount decimal.Decimal) (decimal.Decimal, error)
	Withdraw(ctx context.Context, userID uint, amount decimal.Decimal) (decimal.Decimal, error)
}

type amountPayload struct {
	Amount decimal.Decimal `json:"amount"`
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

func GetBalanceHandler(svc cashier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		balance, err := svc.GetBalance(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, "", balanceResponse{Balance: balance})
	}
}

func DepositHandler(svc cashier) http.HandlerFunc {
	return cashHandler(svc.Deposit, "Deposit successful")
}

func WithdrawHandler(svc cashier) http.HandlerFunc {
	return cashHandler(svc.Withdraw, "Withdrawal successful")
}

func cashHandler(
	move func(ctx context.Context, userID uint, amount decimal.Decimal) (decimal.Decimal, error),
	message string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var payload amountPayload
		if err := decodeJSON(r, &payload); err != nil {
			logger.WithError(err).Warn("invalid amount payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		balance, err := move(r.Context(), userID, payload.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w, message, balanceResponse{Balance: balance})
	}
}
