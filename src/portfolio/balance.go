package portfolio

import (
	"context"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stocksim/src/ledger"
)

// GetBalance returns the user's cash balance.
func (s *Service) GetBalance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	log := logger.WithFields(logger.Fields{
		"component": "portfolio",
		"op":        "GetBalance",
		"user_id":   userID,
	})

	user, err := s.users.WithDB(s.readDB).FindByID(ctx, userID)
	if err != nil {
		return decimal.Zero, s.fail(ctx, log, "GetBalance", userID, "", err)
	}
	if user == nil {
		return decimal.Zero, ErrUserNotFound
	}
	return user.Balance, nil
}

// Deposit credits amount to the balance and returns the new balance.
func (s *Service) Deposit(ctx context.Context, userID uint, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := validateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return s.moveCash(ctx, "Deposit", userID, ledger.Round(amount))
}

// Withdraw debits amount from the balance. The balance never goes negative.
func (s *Service) Withdraw(ctx context.Context, userID uint, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := validateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return s.moveCash(ctx, "Withdraw", userID, ledger.Round(amount).Neg())
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalidInput("Valid positive amount is required")
	}
	if ledger.Round(amount).IsZero() {
		return invalidInput("Amount must be at least 0.01")
	}
	return nil
}

// moveCash applies a signed delta to the balance under the user lock.
func (s *Service) moveCash(ctx context.Context, method string, userID uint, delta decimal.Decimal) (decimal.Decimal, error) {
	log := logger.WithFields(logger.Fields{
		"component": "portfolio",
		"op":        method,
		"user_id":   userID,
		"delta":     delta.String(),
	})

	balance, err := s.moveCashLocked(ctx, log, userID, delta)
	if err != nil {
		return decimal.Zero, s.fail(ctx, log, method, userID, "", err)
	}

	log.WithField("new_balance", balance.String()).Info("Balance updated")
	return balance, nil
}

func (s *Service) moveCashLocked(ctx context.Context, log *logger.Entry, userID uint, delta decimal.Decimal) (decimal.Decimal, error) {
	ctx, unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	defer unlock()

	var balance decimal.Decimal
	err = s.commit(ctx, log, func(tx *gorm.DB) error {
		user, err := s.loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		next := ledger.Round(user.Balance.Add(delta))
		if next.IsNegative() {
			return insufficientBalance(delta.Neg(), user.Balance)
		}

		user.Balance = next
		if err := s.users.WithDB(tx).UpdateBalance(ctx, user); err != nil {
			return err
		}
		balance = next
		return nil
	})
	return balance, err
}
