package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stocksim/src/model"
)

// UserRepository is the balance store.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepositoryWithDB(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithDB binds the repository to another session, typically an open transaction.
func (r *UserRepository) WithDB(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(
	ctx context.Context,
	user *model.User,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":     "UserRepository",
		"op":       "Create",
		"username": user.Username,
	}).Debug("Creating user")

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "UserRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create user")
		return err
	}
	return nil
}

// FindByID returns (nil, nil) when the user does not exist.
func (r *UserRepository) FindByID(
	ctx context.Context,
	id uint,
) (*model.User, error) {

	var u model.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo": "UserRepository",
				"op":   "FindByID",
				"id":   id,
			}).Info("User not found")
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "UserRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch user by ID")
		return nil, err
	}

	return &u, nil
}

func (r *UserRepository) GetUserByUserName(
	ctx context.Context,
	userName string,
) (*model.User, error) {

	var u model.User
	err := r.db.WithContext(ctx).
		Where("username = ?", userName).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &u, nil
}

// UpdateBalance writes user.Balance if the stored version still equals user.Version.
// On success user.Version is advanced; ErrStaleRecord is returned otherwise.
func (r *UserRepository) UpdateBalance(
	ctx context.Context,
	user *model.User,
) error {

	fields := map[string]interface{}{
		"repo":    "UserRepository",
		"op":      "UpdateBalance",
		"id":      user.ID,
		"version": user.Version,
		"balance": user.Balance.String(),
	}
	logger.WithFields(fields).Debug("Updating user balance")

	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND version = ?", user.ID, user.Version).
		Updates(map[string]interface{}{
			"balance":    user.Balance,
			"version":    user.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		logger.WithFields(fields).WithError(res.Error).Error("Failed to update user balance")
		return res.Error
	}
	if res.RowsAffected == 0 {
		logger.WithFields(fields).Warn("User balance update lost the version race")
		return ErrStaleRecord
	}

	user.Version++
	user.UpdatedAt = now
	return nil
}
