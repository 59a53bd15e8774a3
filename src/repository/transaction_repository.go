package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stocksim/src/model"
)

// TransactionSearchOptions filters the transaction log of one user.
type TransactionSearchOptions struct {
	UserID uint
	Type   *model.TransactionType
	Symbol *string
	Limit  int
	Offset int
}

// TransactionRepository is the append-only trade log. It has no update or delete.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepositoryWithDB(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// WithDB binds the repository to another session, typically an open transaction.
func (r *TransactionRepository) WithDB(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Append inserts a new transaction record.
func (r *TransactionRepository) Append(
	ctx context.Context,
	tx *model.Transaction,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":    "TransactionRepository",
		"op":      "Append",
		"user_id": tx.UserID,
		"type":    tx.Type,
		"symbol":  tx.Symbol,
		"qty":     tx.Quantity.String(),
	}).Debug("Appending transaction")

	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TransactionRepository",
			"op":   "Append",
		}).WithError(err).Error("Failed to append transaction")
		return err
	}
	return nil
}

func (r *TransactionRepository) filtered(ctx context.Context, options TransactionSearchOptions) *gorm.DB {
	query := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("user_id = ?", options.UserID)

	if options.Type != nil {
		query = query.Where("type = ?", *options.Type)
	}
	if options.Symbol != nil {
		query = query.Where("symbol = ?", *options.Symbol)
	}
	return query
}

// Search returns one page of matching transactions, newest first, plus the total match count.
func (r *TransactionRepository) Search(
	ctx context.Context,
	options TransactionSearchOptions,
) ([]model.Transaction, int64, error) {

	fields := map[string]interface{}{
		"repo":    "TransactionRepository",
		"op":      "Search",
		"user_id": options.UserID,
		"limit":   options.Limit,
		"offset":  options.Offset,
	}
	logger.WithFields(fields).Debug("Searching transactions")

	var total int64
	if err := r.filtered(ctx, options).Count(&total).Error; err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to count transactions")
		return nil, 0, err
	}

	query := r.filtered(ctx, options).Order("timestamp DESC, id DESC")
	if options.Limit > 0 {
		query = query.Limit(options.Limit)
	}
	if options.Offset > 0 {
		query = query.Offset(options.Offset)
	}

	var transactions []model.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to search transactions")
		return nil, 0, err
	}

	return transactions, total, nil
}
