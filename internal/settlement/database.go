package settlement

import (
	"fmt"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

// NewDatabase wraps db for event persistence. Bind it to the enclosing
// batch transaction so events commit with the balance changes they
// describe.
func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) RecordSettlement(event *SettlementEvent) error {
	if err := d.db.Create(event).Error; err != nil {
		return fmt.Errorf("failed to record settlement event: %w", err)
	}
	return nil
}

func (d *Database) RecordTransfer(event *TransferEvent) error {
	if err := d.db.Create(event).Error; err != nil {
		return fmt.Errorf("failed to record transfer event: %w", err)
	}
	return nil
}

func (d *Database) RecordDividend(event *DividendEvent) error {
	if err := d.db.Create(event).Error; err != nil {
		return fmt.Errorf("failed to record dividend event: %w", err)
	}
	return nil
}

// GetAccountSettlements retrieves settlement events for an account,
// newest first.
func (d *Database) GetAccountSettlements(account string) ([]SettlementEvent, error) {
	var events []SettlementEvent
	if err := d.db.Where("account = ?", account).
		Order("created_at DESC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch settlement events: %w", err)
	}
	return events, nil
}

// GetAccountDividends retrieves dividend events for an account, newest
// first.
func (d *Database) GetAccountDividends(account string) ([]DividendEvent, error) {
	var events []DividendEvent
	if err := d.db.Where("account = ?", account).
		Order("created_at DESC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch dividend events: %w", err)
	}
	return events, nil
}

// GetAccountTransfers retrieves transfer events touching an account as
// either endpoint, newest first.
func (d *Database) GetAccountTransfers(account string) ([]TransferEvent, error) {
	var events []TransferEvent
	if err := d.db.Where("from_account = ? OR to_account = ?", account, account).
		Order("created_at DESC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch transfer events: %w", err)
	}
	return events, nil
}

// GetSettlementByTxID retrieves the settlement event for a transaction id.
func (d *Database) GetSettlementByTxID(txID string) (*SettlementEvent, error) {
	var event SettlementEvent
	if err := d.db.Where("tx_id = ?", txID).First(&event).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch settlement event: %w", err)
	}
	return &event, nil
}
