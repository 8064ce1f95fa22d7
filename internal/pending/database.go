package pending

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ksred/fundta-api/internal/types"
)

// Store is the pending-transaction surface the settlement engine runs
// against. A transaction id belongs to exactly one account's pending set
// at a time.
type Store interface {
	HasTransactions(account string) (bool, error)
	// GetAccountTransactions returns the account's pending transaction
	// ids in intake order.
	GetAccountTransactions(account string) ([]string, error)
	GetTransactionDetail(txID string) (*types.PendingTransaction, error)
	// ClearTransaction removes a settled transaction from the account's
	// pending set.
	ClearTransaction(account, txID string) error
	// UnlistIfEmpty drops the account from the has-pending index once
	// its pending set is empty.
	UnlistIfEmpty(account string) error
}

var _ Store = (*Database)(nil)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) HasTransactions(account string) (bool, error) {
	var count int64
	if err := d.db.Model(&PendingTransaction{}).
		Where("account = ?", account).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count pending transactions: %w", err)
	}
	return count > 0, nil
}

func (d *Database) GetAccountTransactions(account string) ([]string, error) {
	var txIDs []string
	if err := d.db.Model(&PendingTransaction{}).
		Where("account = ?", account).
		Order("id ASC").
		Pluck("tx_id", &txIDs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch pending transactions: %w", err)
	}
	return txIDs, nil
}

func (d *Database) GetTransactionDetail(txID string) (*types.PendingTransaction, error) {
	var record PendingTransaction
	if err := d.db.Where("tx_id = ?", txID).First(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch transaction detail: %w", err)
	}

	return &types.PendingTransaction{
		TxID:        record.TxID,
		Account:     record.Account,
		Type:        types.TransactionType(record.Type),
		Source:      record.Source,
		Destination: record.Destination,
		RequestDate: record.RequestDate,
		Amount:      record.Amount,
	}, nil
}

func (d *Database) ClearTransaction(account, txID string) error {
	result := d.db.Where("account = ? AND tx_id = ?", account, txID).
		Delete(&PendingTransaction{})
	if result.Error != nil {
		return fmt.Errorf("failed to clear transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("transaction %s not pending for account %s", txID, account)
	}
	return nil
}

func (d *Database) UnlistIfEmpty(account string) error {
	remaining, err := d.HasTransactions(account)
	if err != nil {
		return err
	}
	if remaining {
		return nil
	}

	if err := d.db.Where("account = ?", account).
		Delete(&PendingAccount{}).Error; err != nil {
		return fmt.Errorf("failed to unlist account: %w", err)
	}
	return nil
}

// ListPendingAccounts returns every account currently carrying pending
// transactions, in listing order.
func (d *Database) ListPendingAccounts() ([]string, error) {
	var accounts []string
	if err := d.db.Model(&PendingAccount{}).
		Order("id ASC").
		Pluck("account", &accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending accounts: %w", err)
	}
	return accounts, nil
}

// CreateTransactionWithIdempotency stores a new pending transaction, the
// has-pending index entry, and the idempotency record in one transaction.
func (d *Database) CreateTransactionWithIdempotency(txn *PendingTransaction, idempotencyKey string) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := tx.Create(txn).Error; err != nil {
		tx.Rollback()
		return err
	}

	listing := PendingAccount{Account: txn.Account, CreatedAt: time.Now()}
	if err := tx.Where("account = ?", txn.Account).FirstOrCreate(&listing).Error; err != nil {
		tx.Rollback()
		return err
	}

	record := IdempotencyRecord{
		IdempotencyKey: idempotencyKey,
		ResourceID:     txn.TxID,
		ResourceType:   "pending_transaction",
		ExpiresAt:      time.Now().Add(24 * time.Hour),
	}
	if err := tx.Create(&record).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// GetIdempotencyRecord retrieves an idempotency record by key
func (d *Database) GetIdempotencyRecord(key string) (*IdempotencyRecord, error) {
	var record IdempotencyRecord
	if err := d.db.Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &record, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetTransaction retrieves a pending transaction row by id
func (d *Database) GetTransaction(txID string) (*PendingTransaction, error) {
	var record PendingTransaction
	if err := d.db.Where("tx_id = ?", txID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetAccountTransactionRecords returns the full pending rows for an
// account, newest first, for the investor-facing listing endpoint.
func (d *Database) GetAccountTransactionRecords(account string) ([]PendingTransaction, error) {
	var records []PendingTransaction
	if err := d.db.Where("account = ?", account).
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch pending transactions: %w", err)
	}
	return records, nil
}
