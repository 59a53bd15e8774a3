package migrations

import (
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Migration is a one-off data fix that schema auto-migration cannot express.
type Migration struct {
	ID    string
	Apply func(tx *gorm.DB) error
}

// registry is append-only. IDs are persisted and must never be renamed.
var registry = []Migration{
	{ID: "00001_normalize_symbols", Apply: normalizeSymbols},
	{ID: "00002_backfill_transaction_references", Apply: backfillTransactionReferences},
}

// DataMigration is one row of the applied-migrations ledger.
type DataMigration struct {
	ID        string    `gorm:"primaryKey;size:200"`
	AppliedAt time.Time `gorm:"not null"`
}

func (DataMigration) TableName() string { return "data_migrations" }

// RunOnce applies fn under migrationID unless the ledger already has it.
// fn and the ledger row share one transaction, so a failed fn leaves no trace.
func RunOnce(db *gorm.DB, migrationID string, fn func(*gorm.DB) error) error {
	if db == nil {
		return nil
	}
	switch {
	case migrationID == "":
		return errors.New("migration id is empty")
	case fn == nil:
		return fmt.Errorf("migration %q has no apply func", migrationID)
	}

	if err := db.AutoMigrate(&DataMigration{}); err != nil {
		return fmt.Errorf("create data_migrations: %w", err)
	}

	log := logger.WithField("migration", migrationID)
	return db.Transaction(func(tx *gorm.DB) error {
		var seen int64
		if err := tx.Model(&DataMigration{}).Where("id = ?", migrationID).Count(&seen).Error; err != nil {
			return fmt.Errorf("lookup %q: %w", migrationID, err)
		}
		if seen > 0 {
			log.Debug("Data migration already applied")
			return nil
		}

		started := time.Now()
		if err := fn(tx); err != nil {
			log.WithError(err).Error("Data migration failed")
			return fmt.Errorf("apply %q: %w", migrationID, err)
		}
		if err := tx.Create(&DataMigration{ID: migrationID, AppliedAt: time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("record %q: %w", migrationID, err)
		}

		log.WithField("took", time.Since(started)).Info("Data migration applied")
		return nil
	})
}

// Run applies every registered migration in order and stops at the first error.
func Run(db *gorm.DB) error {
	for _, m := range registry {
		if err := RunOnce(db, m.ID, m.Apply); err != nil {
			return err
		}
	}
	return nil
}
