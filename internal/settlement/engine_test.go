package settlement_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ksred/fundta-api/internal/ledger"
	"github.com/ksred/fundta-api/internal/pending"
	"github.com/ksred/fundta-api/internal/settlement"
	"github.com/ksred/fundta-api/internal/types"
)

func newEngine(db *gorm.DB) *settlement.Engine {
	return settlement.NewEngine(
		ledger.NewDatabase(db),
		pending.NewDatabase(db),
		settlement.NewDatabase(db),
	)
}

func seedPendingAt(t *testing.T, db *gorm.DB, account, txID string, txType types.TransactionType, amount uint64, requestDate time.Time, destination string) {
	t.Helper()

	store := pending.NewDatabase(db)
	require.NoError(t, store.CreateTransactionWithIdempotency(&pending.PendingTransaction{
		TxID:        txID,
		Account:     account,
		Type:        string(txType),
		Source:      account,
		Destination: destination,
		RequestDate: requestDate,
		Amount:      amount,
		CreatedAt:   time.Now(),
	}, "idem-"+txID))
}

func seedPending(t *testing.T, db *gorm.DB, account, txID string, txType types.TransactionType, amount uint64) {
	t.Helper()
	seedPendingAt(t, db, account, txID, txType, amount, time.Now().Add(-time.Hour), "")
}

func TestSettleAccountPurchase(t *testing.T) {
	db := setupTestDB(t)
	setScaleFactor(t, db, 1)
	engine := newEngine(db)

	seedPending(t, db, "ACC_1", "TXN_buy", types.CashPurchase, 500)

	settled, err := engine.SettleAccount("ACC_1", time.Now(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	// 500 cash at price 100 buys 5 shares
	balance, err := ledger.NewDatabase(db).BalanceOf("ACC_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), balance)

	event, err := settlement.NewDatabase(db).GetSettlementByTxID("TXN_buy")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), event.Shares)
	assert.Equal(t, "500", event.CashAmount)
	assert.Equal(t, string(types.CashPurchase), event.TransactionType)

	has, err := pending.NewDatabase(db).HasTransactions("ACC_1")
	require.NoError(t, err)
	assert.False(t, has)

	accounts, err := pending.NewDatabase(db).ListPendingAccounts()
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSettleAccountCashLiquidation(t *testing.T) {
	db := setupTestDB(t)
	setScaleFactor(t, db, 1)
	engine := newEngine(db)

	gw := ledger.NewDatabase(db)
	require.NoError(t, gw.MintShares("ACC_1", 10))
	seedPending(t, db, "ACC_1", "TXN_liq", types.CashLiquidation, 500)

	settled, err := engine.SettleAccount("ACC_1", time.Now(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	balance, err := gw.BalanceOf("ACC_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), balance)
}

func TestSettleAccountFullLiquidationBurnsCurrentBalance(t *testing.T) {
	db := setupTestDB(t)
	setScaleFactor(t, db, 1)
	engine := newEngine(db)

	gw := ledger.NewDatabase(db)
	require.NoError(t, gw.MintShares("ACC_1", 1000))

	// the recorded amount is irrelevant for a full liquidation
	seedPending(t, db, "ACC_1", "TXN_close", types.FullLiquidation, 1)

	settled, err := engine.SettleAccount("ACC_1", time.Now(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	balance, err := gw.BalanceOf("ACC_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)

	event, err := settlement.NewDatabase(db).GetSettlementByTxID("TXN_close")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), event.Shares)
}

func TestSettleAccountFullLiquidationIgnoresStoredAmount(t *testing.T) {
	db := setupTestDB(t)
	setScaleFactor(t, db, 4)
	engine := newEngine(db)

	gw := ledger.NewDatabase(db)
	require.NoError(t, gw.MintShares("ACC_1", 100))

	// an amount this large would overflow the cash conversion, but a
	// close-out never converts it
	seedPending(t, db, "ACC_1", "TXN_close", types.FullLiquidation, math.MaxInt64)

	settled, err := engine.SettleAccount("ACC_1", time.Now(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	balance, err := gw.BalanceOf("ACC_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)
}

func TestSettleAccountIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	setScaleFactor(t, db, 1)
	engine := newEngine(db)

	seedPending(t, db, "ACC_1", "TXN_buy", types.CashPurchase, 500)

	settled, err := engine.SettleAccount("ACC_1", time.Now(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	settled, err = engine.SettleAccount("ACC_1", time.Now(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)

	balance, err := ledger.NewDatabase(db).BalanceOf("ACC_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), balance)
}

func TestSettleAccountCutoffLeavesFutureDated(t *testing.T) {
	db := setupTestDB(t)
	setScaleFactor(t, db, 1)
	engine := newEngine(db)

	seedPendingAt(t, db, "ACC_1", "TXN_future", types.CashPurchase, 500,
		time.Now().Add(24*time.Hour), "")

	settled, err := engine.SettleAccount("ACC_1", time.Now(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, settled)

	has, err := pending.NewDatabase(db).HasTransactions("ACC_1")
	require.NoError(t, err)
	assert.True(t, has)

	// account stays listed while anything is still pending
	accounts, err := pending.NewDatabase(db).ListPendingAccounts()
	require.NoError(t, err)
	assert.Equal(t, []string{"ACC_1"}, accounts)
}

func TestSettleAccountExcludeSuppressesPurchasesOnly(t *testing.T) {
	db := setupTestDB(t)
	setScaleFactor(t, db, 1)
	engine := newEngine(db)

	gw := ledger.NewDatabase(db)
	require.NoError(t, gw.MintShares("ACC_1", 100))

	seedPending(t, db, "ACC_1", "TXN_buy", types.CashPurchase, 500)
	seedPending(t, db, "ACC_1", "TXN_liq", types.CashLiquidation, 500)

	exclude := map[string]struct{}{
		"TXN_buy": {},
		"TXN_liq": {},
	}
	settled, err := engine.SettleAccount("ACC_1", time.Now(), 100, exclude)
	require.NoError(t, err)

	// liquidations are not filterable: only the purchase is held back
	assert.Equal(t, 1, settled)

	balance, err := gw.BalanceOf("ACC_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(95), balance)

	ids, err := pending.NewDatabase(db).GetAccountTransactions("ACC_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"TXN_buy"}, ids)
}

func TestSettleAccountShareTransfer(t *testing.T) {
	db := setupTestDB(t)
	setScaleFactor(t, db, 1)
	engine := newEngine(db)

	gw := ledger.NewDatabase(db)
	require.NoError(t, gw.MintShares("ACC_from", 500))

	seedPendingAt(t, db, "ACC_from", "TXN_xfer", types.ShareTransfer, 300,
		time.Now().Add(-time.Hour), "ACC_to")

	settled, err := engine.SettleAccount("ACC_from", time.Now(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	from, err := gw.BalanceOf("ACC_from")
	require.NoError(t, err)
	assert.Equal(t, uint64(200), from)

	to, err := gw.BalanceOf("ACC_to")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), to)

	transfers, err := settlement.NewDatabase(db).GetAccountTransfers("ACC_to")
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "ACC_from", transfers[0].FromAccount)
	assert.Equal(t, uint64(300), transfers[0].Shares)
}

func TestSettleAccountSkipsCrossChain(t *testing.T) {
	db := setupTestDB(t)
	setScaleFactor(t, db, 1)
	engine := newEngine(db)

	seedPending(t, db, "ACC_1", "TXN_in", types.CrossChainIn, 500)
	seedPending(t, db, "ACC_1", "TXN_buy", types.CashPurchase, 500)

	settled, err := engine.SettleAccount("ACC_1", time.Now(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	ids, err := pending.NewDatabase(db).GetAccountTransactions("ACC_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"TXN_in"}, ids)
}

func TestSettleCrossChainSkipsStandardTypes(t *testing.T) {
	db := setupTestDB(t)
	setScaleFactor(t, db, 1)
	engine := newEngine(db)

	gw := ledger.NewDatabase(db)
	require.NoError(t, gw.MintShares("ACC_1", 10))

	seedPending(t, db, "ACC_1", "TXN_buy", types.CashPurchase, 500)
	seedPending(t, db, "ACC_1", "TXN_out", types.CrossChainOut, 500)

	settled, err := engine.SettleCrossChain("ACC_1", time.Now(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	// CXFER_OUT burns 5 shares; the purchase stays pending
	balance, err := gw.BalanceOf("ACC_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), balance)

	ids, err := pending.NewDatabase(db).GetAccountTransactions("ACC_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"TXN_buy"}, ids)
}

func TestSettleCrossChainInMintsShares(t *testing.T) {
	db := setupTestDB(t)
	setScaleFactor(t, db, 1)
	engine := newEngine(db)

	seedPending(t, db, "ACC_1", "TXN_in", types.CrossChainIn, 500)

	settled, err := engine.SettleCrossChain("ACC_1", time.Now(), 100, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	balance, err := ledger.NewDatabase(db).BalanceOf("ACC_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), balance)
}

func TestSettleSingle(t *testing.T) {
	db := setupTestDB(t)
	setScaleFactor(t, db, 1)
	engine := newEngine(db)

	seedPending(t, db, "ACC_1", "TXN_in", types.CrossChainIn, 500)

	require.NoError(t, engine.SettleSingle("ACC_1", "TXN_in", 100))

	balance, err := ledger.NewDatabase(db).BalanceOf("ACC_1")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), balance)

	accounts, err := pending.NewDatabase(db).ListPendingAccounts()
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSettleSingleWrongAccount(t *testing.T) {
	db := setupTestDB(t)
	engine := newEngine(db)

	seedPending(t, db, "ACC_1", "TXN_in", types.CrossChainIn, 500)

	err := engine.SettleSingle("ACC_2", "TXN_in", 100)
	assert.Error(t, err)
}

func TestSettleSingleRejectsStandardType(t *testing.T) {
	db := setupTestDB(t)
	engine := newEngine(db)

	seedPending(t, db, "ACC_1", "TXN_buy", types.CashPurchase, 500)

	err := engine.SettleSingle("ACC_1", "TXN_buy", 100)
	assert.ErrorIs(t, err, types.ErrUnsupportedTransactionType)
}

func TestSettleAccountUnknownTypeFails(t *testing.T) {
	db := setupTestDB(t)
	engine := newEngine(db)

	seedPending(t, db, "ACC_1", "TXN_odd", types.TransactionType("WIRE"), 500)

	_, err := engine.SettleAccount("ACC_1", time.Now(), 100, nil)
	assert.ErrorIs(t, err, types.ErrUnsupportedTransactionType)
}
