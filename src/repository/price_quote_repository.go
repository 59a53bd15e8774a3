package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stocksim/src/model"
)

// PriceQuoteRepository stores the latest observed price per symbol.
type PriceQuoteRepository struct {
	db *gorm.DB
}

func NewPriceQuoteRepositoryWithDB(db *gorm.DB) *PriceQuoteRepository {
	return &PriceQuoteRepository{db: db}
}

// WithDB binds the repository to another session, typically an open transaction.
func (r *PriceQuoteRepository) WithDB(db *gorm.DB) *PriceQuoteRepository {
	return &PriceQuoteRepository{db: db}
}

// Upsert inserts or refreshes quotes keyed by symbol.
func (r *PriceQuoteRepository) Upsert(
	ctx context.Context,
	quotes []model.PriceQuote,
) error {
	if len(quotes) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"price", "fetched_at", "updated_at"}),
		}).
		Create(&quotes).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "PriceQuoteRepository",
			"op":    "Upsert",
			"count": len(quotes),
		}).WithError(err).Error("Failed to upsert price quotes")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "PriceQuoteRepository",
		"op":    "Upsert",
		"count": len(quotes),
	}).Debug("Price quotes upserted")

	return nil
}

// FindBySymbol returns (nil, nil) when no quote was ever stored for symbol.
func (r *PriceQuoteRepository) FindBySymbol(
	ctx context.Context,
	symbol string,
) (*model.PriceQuote, error) {

	var q model.PriceQuote
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &q, nil
}
