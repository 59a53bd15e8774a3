package portfolio

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stocksim/src/ledger"
	"stocksim/src/model"
)

const maxUsernameLength = 100

// OpenAccount creates a user with an opening cash balance. Usernames are unique.
func (s *Service) OpenAccount(ctx context.Context, username, email string, balance decimal.Decimal) (*model.User, error) {
	username = strings.TrimSpace(username)
	log := logger.WithFields(logger.Fields{
		"component": "portfolio",
		"op":        "OpenAccount",
		"username":  username,
	})

	var violations []string
	if username == "" {
		violations = append(violations, "Username is required")
	} else if len(username) > maxUsernameLength {
		violations = append(violations, "Username must be at most 100 characters")
	}
	if balance.IsNegative() {
		violations = append(violations, "Opening balance must not be negative")
	}
	if len(violations) > 0 {
		return nil, invalidInput(violations...)
	}

	users := s.users.WithDB(s.db)
	existing, err := users.GetUserByUserName(ctx, username)
	if err != nil {
		return nil, s.fail(ctx, log, "OpenAccount", 0, "", err)
	}
	if existing != nil {
		return nil, invalidInput("Username is already taken")
	}

	user := &model.User{
		Username: username,
		Email:    strings.TrimSpace(email),
		Balance:  ledger.Round(balance),
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, invalidInput("Username is already taken")
		}
		return nil, s.fail(ctx, log, "OpenAccount", 0, "", err)
	}

	log.WithField("user_id", user.ID).Info("Account opened")
	return user, nil
}
