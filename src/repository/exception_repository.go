package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stocksim/src/model"
)

// ExceptionRepository persists aborted operations for auditing.
type ExceptionRepository struct {
	db *gorm.DB
}

func NewExceptionRepositoryWithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create persists a new exception in the database.
func (r *ExceptionRepository) Create(
	ctx context.Context,
	exc *model.Exception,
) error {

	logger.WithFields(map[string]interface{}{
		"module":  exc.Module,
		"method":  exc.Method,
		"user_id": exc.UserID,
		"level":   exc.Level,
	}).Warn("Persisting exception")

	return r.db.WithContext(ctx).Create(exc).Error
}
