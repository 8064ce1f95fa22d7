package database

import (
	"fmt"
	"os"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ksred/fundta-api/internal/auth"
	"github.com/ksred/fundta-api/internal/authz"
	"github.com/ksred/fundta-api/internal/database/migrations"
	"github.com/ksred/fundta-api/internal/ledger"
	"github.com/ksred/fundta-api/internal/pending"
	"github.com/ksred/fundta-api/internal/recovery"
	"github.com/ksred/fundta-api/internal/settlement"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase() (*gorm.DB, error) {
	path := os.Getenv("DB_PATH")
	if path == "" {
		path = "fundta.db"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate applies the schema and seed migrations. Split out from
// NewDatabase so tests can run it against an in-memory database.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&ledger.Holding{},
		&ledger.FundState{},
		&pending.PendingTransaction{},
		&pending.PendingAccount{},
		&pending.IdempotencyRecord{},
		&auth.APICredential{},
		&authz.AuthorizedAccount{},
		&authz.AdminKey{},
		&settlement.SettlementEvent{},
		&settlement.TransferEvent{},
		&settlement.DividendEvent{},
		&recovery.AdjustmentEvent{},
		&recovery.RecoveryEvent{},
	)
	if err != nil {
		return err
	}

	if err := migrations.EnsureFundState(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
