package migrations

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// normalizeSymbols upper-cases and trims symbols written before normalization
// happened at the service boundary.
func normalizeSymbols(db *gorm.DB) error {
	for _, table := range []string{"holdings", "transactions", "price_quotes"} {
		if !db.Migrator().HasTable(table) {
			continue
		}
		if err := db.Exec(fmt.Sprintf("UPDATE %s SET symbol = UPPER(TRIM(symbol)) WHERE symbol <> UPPER(TRIM(symbol))", table)).Error; err != nil {
			return fmt.Errorf("normalize %s.symbol: %w", table, err)
		}
	}
	return nil
}

// backfillTransactionReferences assigns a public reference to rows created
// before the column existed.
func backfillTransactionReferences(db *gorm.DB) error {
	if !db.Migrator().HasTable("transactions") {
		return nil
	}

	var ids []uint
	if err := db.Table("transactions").
		Where("reference IS NULL OR reference = ''").
		Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("collect transactions without reference: %w", err)
	}

	for _, id := range ids {
		if err := db.Table("transactions").
			Where("id = ?", id).
			Update("reference", uuid.NewString()).Error; err != nil {
			return fmt.Errorf("backfill reference for transaction %d: %w", id, err)
		}
	}
	return nil
}
