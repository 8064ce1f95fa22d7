package pending_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ksred/fundta-api/internal/authz"
	"github.com/ksred/fundta-api/internal/database"
	"github.com/ksred/fundta-api/internal/pending"
	"github.com/ksred/fundta-api/internal/types"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func seedPending(t *testing.T, db *gorm.DB, account, txID string, txType types.TransactionType, amount uint64) {
	t.Helper()

	store := pending.NewDatabase(db)
	require.NoError(t, store.CreateTransactionWithIdempotency(&pending.PendingTransaction{
		TxID:        txID,
		Account:     account,
		Type:        string(txType),
		Source:      account,
		RequestDate: time.Now(),
		Amount:      amount,
		CreatedAt:   time.Now(),
	}, "idem-"+txID))
}

func TestGetAccountTransactionsIntakeOrder(t *testing.T) {
	db := setupTestDB(t)
	store := pending.NewDatabase(db)

	seedPending(t, db, "ACC_1", "TXN_a", types.CashPurchase, 100)
	seedPending(t, db, "ACC_1", "TXN_b", types.CashLiquidation, 50)
	seedPending(t, db, "ACC_1", "TXN_c", types.CashPurchase, 25)
	seedPending(t, db, "ACC_2", "TXN_other", types.CashPurchase, 10)

	txIDs, err := store.GetAccountTransactions("ACC_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"TXN_a", "TXN_b", "TXN_c"}, txIDs)
}

func TestClearTransaction(t *testing.T) {
	db := setupTestDB(t)
	store := pending.NewDatabase(db)

	seedPending(t, db, "ACC_1", "TXN_a", types.CashPurchase, 100)

	require.NoError(t, store.ClearTransaction("ACC_1", "TXN_a"))

	has, err := store.HasTransactions("ACC_1")
	require.NoError(t, err)
	assert.False(t, has)

	// already cleared
	err = store.ClearTransaction("ACC_1", "TXN_a")
	assert.Error(t, err)
}

func TestClearTransactionWrongAccount(t *testing.T) {
	db := setupTestDB(t)
	store := pending.NewDatabase(db)

	seedPending(t, db, "ACC_1", "TXN_a", types.CashPurchase, 100)

	err := store.ClearTransaction("ACC_2", "TXN_a")
	assert.Error(t, err)

	has, err := store.HasTransactions("ACC_1")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestUnlistIfEmpty(t *testing.T) {
	db := setupTestDB(t)
	store := pending.NewDatabase(db)

	seedPending(t, db, "ACC_1", "TXN_a", types.CashPurchase, 100)
	seedPending(t, db, "ACC_1", "TXN_b", types.CashPurchase, 200)

	// still has TXN_b pending, listing must survive
	require.NoError(t, store.ClearTransaction("ACC_1", "TXN_a"))
	require.NoError(t, store.UnlistIfEmpty("ACC_1"))

	accounts, err := store.ListPendingAccounts()
	require.NoError(t, err)
	assert.Equal(t, []string{"ACC_1"}, accounts)

	require.NoError(t, store.ClearTransaction("ACC_1", "TXN_b"))
	require.NoError(t, store.UnlistIfEmpty("ACC_1"))

	accounts, err = store.ListPendingAccounts()
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestGetTransactionDetail(t *testing.T) {
	db := setupTestDB(t)
	store := pending.NewDatabase(db)

	seedPending(t, db, "ACC_1", "TXN_a", types.CashLiquidation, 750)

	detail, err := store.GetTransactionDetail("TXN_a")
	require.NoError(t, err)
	assert.Equal(t, "TXN_a", detail.TxID)
	assert.Equal(t, "ACC_1", detail.Account)
	assert.Equal(t, types.CashLiquidation, detail.Type)
	assert.Equal(t, uint64(750), detail.Amount)
}

func TestCreateTransactionService(t *testing.T) {
	db := setupTestDB(t)
	svc := pending.NewService(db)

	require.NoError(t, authz.NewDatabase(db).AuthorizeAccount("ACC_1"))

	txn, err := svc.CreateTransaction(&pending.TransactionRequest{
		Account: "ACC_1",
		Type:    types.CashPurchase,
		Amount:  5_000,
	}, "key-1")
	require.NoError(t, err)
	assert.Contains(t, txn.TxID, "TXN_")
	assert.Equal(t, "ACC_1", txn.Source)

	// replay with the same idempotency key returns the original
	replay, err := svc.CreateTransaction(&pending.TransactionRequest{
		Account: "ACC_1",
		Type:    types.CashPurchase,
		Amount:  5_000,
	}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, txn.TxID, replay.TxID)

	accounts, err := pending.NewDatabase(db).ListPendingAccounts()
	require.NoError(t, err)
	assert.Equal(t, []string{"ACC_1"}, accounts)
}

func TestCreateTransactionValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := pending.NewService(db)

	require.NoError(t, authz.NewDatabase(db).AuthorizeAccount("ACC_1"))

	_, err := svc.CreateTransaction(&pending.TransactionRequest{
		Account: "ACC_1",
		Type:    types.TransactionType("WIRE"),
		Amount:  100,
	}, "key-a")
	assert.ErrorIs(t, err, types.ErrUnsupportedTransactionType)

	_, err = svc.CreateTransaction(&pending.TransactionRequest{
		Account: "ACC_1",
		Type:    types.ShareTransfer,
		Amount:  100,
	}, "key-b")
	assert.Error(t, err)

	_, err = svc.CreateTransaction(&pending.TransactionRequest{
		Account: "ACC_1",
		Type:    types.CashPurchase,
		Amount:  0,
	}, "key-c")
	assert.Error(t, err)

	// full liquidation carries no amount
	_, err = svc.CreateTransaction(&pending.TransactionRequest{
		Account: "ACC_1",
		Type:    types.FullLiquidation,
	}, "key-d")
	assert.NoError(t, err)
}

func TestCreateTransactionUnauthorizedAccount(t *testing.T) {
	db := setupTestDB(t)
	svc := pending.NewService(db)

	_, err := svc.CreateTransaction(&pending.TransactionRequest{
		Account: "ACC_stranger",
		Type:    types.CashPurchase,
		Amount:  100,
	}, "key-1")
	assert.ErrorIs(t, err, types.ErrAccountNotAuthorized)
}
