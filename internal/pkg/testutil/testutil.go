// Package testutil provides an in-memory database with the engine schema and
// small fixture helpers for package tests.
package testutil

import (
	"testing"

	"spsc-cashround/internal/adapters/persistence/models"
	"spsc-cashround/internal/pkg/logger"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with every table migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	logger.Silence()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	require.NoError(t, models.AutoMigrateExternal(db))
	return db
}

// SeedMembers inserts directory members
func SeedMembers(t *testing.T, db *gorm.DB, membNos ...string) {
	t.Helper()
	for _, m := range membNos {
		require.NoError(t, db.Create(&models.Member{MembNo: m, FullName: "Member " + m}).Error)
	}
}

// SeedSection inserts an active ledger section and returns its id
func SeedSection(t *testing.T, db *gorm.DB, code string, amount string) uint {
	t.Helper()
	sec := models.LedgerSection{
		Code:     code,
		Name:     "Section " + code,
		Amount:   decimal.RequireFromString(amount),
		IsActive: true,
	}
	require.NoError(t, db.Create(&sec).Error)
	return sec.ID
}
