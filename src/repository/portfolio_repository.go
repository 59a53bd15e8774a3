package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"stocksim/src/model"
)

// PortfolioRepository handles portfolios and their holdings.
type PortfolioRepository struct {
	db *gorm.DB
}

func NewPortfolioRepositoryWithDB(db *gorm.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// WithDB binds the repository to another session, typically an open transaction.
func (r *PortfolioRepository) WithDB(db *gorm.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// FindByUserID loads the user's portfolio with its holdings in insertion order.
// Returns (nil, nil) if the user has no portfolio yet.
func (r *PortfolioRepository) FindByUserID(
	ctx context.Context,
	userID uint,
) (*model.Portfolio, error) {

	var p model.Portfolio
	err := r.db.WithContext(ctx).
		Preload("Holdings", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Where("user_id = ?", userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":    "PortfolioRepository",
				"op":      "FindByUserID",
				"user_id": userID,
			}).Debug("Portfolio not found")
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":    "PortfolioRepository",
			"op":      "FindByUserID",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch portfolio")
		return nil, err
	}

	return &p, nil
}

// Create inserts the portfolio row only; holdings are written with SaveHolding.
// A concurrent create for the same user fails on the unique user_id index.
func (r *PortfolioRepository) Create(
	ctx context.Context,
	p *model.Portfolio,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":    "PortfolioRepository",
		"op":      "Create",
		"user_id": p.UserID,
	}).Debug("Creating portfolio")

	if err := r.db.WithContext(ctx).Omit("Holdings").Create(p).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "PortfolioRepository",
			"op":      "Create",
			"user_id": p.UserID,
		}).WithError(err).Error("Failed to create portfolio")
		return err
	}
	return nil
}

// UpdateAggregates writes the cached totals if the stored version still equals
// p.Version, then advances p.Version. ErrStaleRecord otherwise.
func (r *PortfolioRepository) UpdateAggregates(
	ctx context.Context,
	p *model.Portfolio,
) error {

	fields := map[string]interface{}{
		"repo":    "PortfolioRepository",
		"op":      "UpdateAggregates",
		"id":      p.ID,
		"version": p.Version,
	}
	logger.WithFields(fields).Debug("Updating portfolio aggregates")

	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&model.Portfolio{}).
		Where("id = ? AND version = ?", p.ID, p.Version).
		Updates(map[string]interface{}{
			"total_value":            p.TotalValue,
			"total_invested":         p.TotalInvested,
			"total_profit_loss":      p.TotalProfitLoss,
			"profit_loss_percentage": p.ProfitLossPercentage,
			"last_updated":           p.LastUpdated,
			"version":                p.Version + 1,
			"updated_at":             now,
		})
	if res.Error != nil {
		logger.WithFields(fields).WithError(res.Error).Error("Failed to update portfolio aggregates")
		return res.Error
	}
	if res.RowsAffected == 0 {
		logger.WithFields(fields).Warn("Portfolio update lost the version race")
		return ErrStaleRecord
	}

	p.Version++
	p.UpdatedAt = now
	return nil
}

// SaveHolding inserts a new holding or overwrites an existing one.
func (r *PortfolioRepository) SaveHolding(
	ctx context.Context,
	h *model.Holding,
) error {

	logger.WithFields(map[string]interface{}{
		"repo":         "PortfolioRepository",
		"op":           "SaveHolding",
		"portfolio_id": h.PortfolioID,
		"symbol":       h.Symbol,
		"qty":          h.Quantity.String(),
	}).Debug("Saving holding")

	if err := r.db.WithContext(ctx).Save(h).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PortfolioRepository",
			"op":     "SaveHolding",
			"symbol": h.Symbol,
		}).WithError(err).Error("Failed to save holding")
		return err
	}
	return nil
}

// UpdateValuation writes only the valuation snapshot columns of a holding.
func (r *PortfolioRepository) UpdateValuation(
	ctx context.Context,
	h *model.Holding,
) error {

	err := r.db.WithContext(ctx).
		Model(&model.Holding{}).
		Where("id = ?", h.ID).
		Updates(map[string]interface{}{
			"current_price":          h.CurrentPrice,
			"current_value":          h.CurrentValue,
			"profit_loss":            h.ProfitLoss,
			"profit_loss_percentage": h.ProfitLossPercentage,
			"updated_at":             time.Now().UTC(),
		}).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PortfolioRepository",
			"op":     "UpdateValuation",
			"id":     h.ID,
			"symbol": h.Symbol,
		}).WithError(err).Error("Failed to update holding valuation")
		return err
	}
	return nil
}

// DeleteHolding removes a holding whose quantity reached zero.
func (r *PortfolioRepository) DeleteHolding(
	ctx context.Context,
	id uint,
) error {

	logger.WithFields(map[string]interface{}{
		"repo": "PortfolioRepository",
		"op":   "DeleteHolding",
		"id":   id,
	}).Debug("Deleting holding")

	if err := r.db.WithContext(ctx).Delete(&model.Holding{}, id).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PortfolioRepository",
			"op":   "DeleteHolding",
			"id":   id,
		}).WithError(err).Error("Failed to delete holding")
		return err
	}
	return nil
}

// HeldSymbols lists the distinct symbols currently held by any portfolio.
func (r *PortfolioRepository) HeldSymbols(ctx context.Context) ([]string, error) {
	var symbols []string
	err := r.db.WithContext(ctx).
		Model(&model.Holding{}).
		Distinct().
		Order("symbol").
		Pluck("symbol", &symbols).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PortfolioRepository",
			"op":   "HeldSymbols",
		}).WithError(err).Error("Failed to list held symbols")
		return nil, err
	}
	return symbols, nil
}
