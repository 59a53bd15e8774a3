package migrations

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type legacyTransaction struct {
	ID        uint `gorm:"primaryKey"`
	Reference string
	Symbol    string
	Timestamp time.Time
}

func (legacyTransaction) TableName() string { return "transactions" }

type legacyHolding struct {
	ID     uint `gorm:"primaryKey"`
	Symbol string
}

func (legacyHolding) TableName() string { return "holdings" }

func TestRunOnce_RecordsAndSkips(t *testing.T) {
	db := openTestDB(t)

	calls := 0
	fn := func(*gorm.DB) error {
		calls++
		return nil
	}

	require.NoError(t, RunOnce(db, "0001_test", fn))
	require.NoError(t, RunOnce(db, "0001_test", fn))
	assert.Equal(t, 1, calls)

	var m DataMigration
	require.NoError(t, db.First(&m, "id = ?", "0001_test").Error)
	assert.False(t, m.AppliedAt.IsZero())
}

func TestRunOnce_FailureIsNotRecorded(t *testing.T) {
	db := openTestDB(t)

	err := RunOnce(db, "0002_broken", func(*gorm.DB) error { return errors.New("boom") })
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&DataMigration{}).Where("id = ?", "0002_broken").Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunOnce_RejectsBadArguments(t *testing.T) {
	db := openTestDB(t)

	assert.Error(t, RunOnce(db, "", func(*gorm.DB) error { return nil }))
	assert.Error(t, RunOnce(db, "x", nil))
	assert.NoError(t, RunOnce(nil, "x", nil))
}

func TestRun_NormalizesSymbolsAndBackfillsReferences(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.AutoMigrate(&legacyTransaction{}, &legacyHolding{}))

	require.NoError(t, db.Create(&[]legacyTransaction{
		{Symbol: " aapl", Timestamp: time.Now()},
		{Symbol: "MSFT", Reference: "keep-me", Timestamp: time.Now()},
	}).Error)
	require.NoError(t, db.Create(&legacyHolding{Symbol: "tsla "}).Error)

	require.NoError(t, Run(db))

	var txs []legacyTransaction
	require.NoError(t, db.Order("id").Find(&txs).Error)
	require.Len(t, txs, 2)
	assert.Equal(t, "AAPL", txs[0].Symbol)
	assert.Len(t, txs[0].Reference, 36)
	assert.Equal(t, "keep-me", txs[1].Reference)

	var h legacyHolding
	require.NoError(t, db.First(&h).Error)
	assert.Equal(t, "TSLA", h.Symbol)

	// second run is a no-op
	require.NoError(t, Run(db))
}

func TestRun_MissingTablesAreSkipped(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, Run(db))
}

func TestRun_RecordsEveryRegisteredMigration(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Run(db))

	var ids []string
	require.NoError(t, db.Model(&DataMigration{}).Order("id").Pluck("id", &ids).Error)
	want := make([]string, 0, len(registry))
	for _, m := range registry {
		want = append(want, m.ID)
	}
	assert.Equal(t, want, ids)
}
