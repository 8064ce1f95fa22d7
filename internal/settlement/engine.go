package settlement

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ksred/fundta-api/internal/fixedpoint"
	"github.com/ksred/fundta-api/internal/ledger"
	"github.com/ksred/fundta-api/internal/pending"
	"github.com/ksred/fundta-api/internal/types"
)

// settleMode selects which transaction classes an engine pass may touch.
// The generic batch path leaves cross-chain transactions pending; the
// cross-chain entry points leave everything else pending. Sweep mode is
// the unattended background pass: it additionally leaves purchases
// pending, since only an operator batch carries the exclusion list that
// can suppress them.
type settleMode int

const (
	modeStandard settleMode = iota
	modeCrossChain
	modeSweep
)

// Engine resolves an account's pending transactions into balance changes
// at a single NAV price. It must run inside the batch's enclosing gorm
// transaction: every settle step clears the pending row and records its
// event in the same unit of work.
type Engine struct {
	ledger ledger.Gateway
	store  pending.Store
	events *Database
}

func NewEngine(gateway ledger.Gateway, store pending.Store, events *Database) *Engine {
	return &Engine{
		ledger: gateway,
		store:  store,
		events: events,
	}
}

// SettleAccount settles the account's eligible purchase, liquidation and
// transfer transactions. Transactions dated after cutoff stay pending, as
// do cross-chain transfers. Purchase transactions listed in exclude are
// suppressed; an empty exclude set suppresses nothing. Returns the number
// of transactions settled.
func (e *Engine) SettleAccount(account string, cutoff time.Time, price uint64, exclude map[string]struct{}) (int, error) {
	return e.settle(account, cutoff, price, exclude, modeStandard)
}

// SettleCrossChain settles only the account's pending cross-chain
// transactions, leaving every other type untouched.
func (e *Engine) SettleCrossChain(account string, cutoff time.Time, price uint64, exclude map[string]struct{}) (int, error) {
	return e.settle(account, cutoff, price, exclude, modeCrossChain)
}

func (e *Engine) settle(account string, cutoff time.Time, price uint64, exclude map[string]struct{}, mode settleMode) (int, error) {
	logger := log.With().
		Str("account", account).
		Uint64("price", price).
		Str("service", "settlement").
		Logger()

	hasPending, err := e.store.HasTransactions(account)
	if err != nil {
		return 0, err
	}
	if !hasPending {
		return 0, nil
	}

	txIDs, err := e.store.GetAccountTransactions(account)
	if err != nil {
		return 0, err
	}

	scaleFactor, err := e.ledger.ScaleFactor()
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, txID := range txIDs {
		txn, err := e.store.GetTransactionDetail(txID)
		if err != nil {
			return settled, err
		}

		if !txn.Type.Supported() {
			return settled, fmt.Errorf("transaction %s has type %q: %w",
				txID, txn.Type, types.ErrUnsupportedTransactionType)
		}

		if mode != modeCrossChain && txn.Type.CrossChain() {
			continue
		}
		if mode == modeCrossChain && !txn.Type.CrossChain() {
			continue
		}
		if mode == modeSweep && txn.Type.Purchase() {
			continue
		}

		if txn.RequestDate.After(cutoff) {
			continue
		}

		done, err := e.settleOne(txn, price, scaleFactor, exclude)
		if err != nil {
			logger.Error().Err(err).Str("tx_id", txID).Msg("failed to settle transaction")
			return settled, err
		}
		if done {
			settled++
		}
	}

	if err := e.store.UnlistIfEmpty(account); err != nil {
		return settled, err
	}

	if settled > 0 {
		logger.Info().Int("settled", settled).Msg("settled pending transactions")
	}
	return settled, nil
}

// SettleSingle settles exactly one pending cross-chain transaction by id.
func (e *Engine) SettleSingle(account, txID string, price uint64) error {
	txn, err := e.store.GetTransactionDetail(txID)
	if err != nil {
		return err
	}
	if txn.Account != account {
		return fmt.Errorf("transaction %s is not pending for account %s", txID, account)
	}
	if !txn.Type.Supported() {
		return fmt.Errorf("transaction %s has type %q: %w",
			txID, txn.Type, types.ErrUnsupportedTransactionType)
	}
	if !txn.Type.CrossChain() {
		return fmt.Errorf("transaction %s is not a cross-chain transfer: %w",
			txID, types.ErrUnsupportedTransactionType)
	}

	scaleFactor, err := e.ledger.ScaleFactor()
	if err != nil {
		return err
	}
	if _, err := e.settleOne(txn, price, scaleFactor, nil); err != nil {
		return err
	}
	return e.store.UnlistIfEmpty(account)
}

// settleOne applies a single transaction's balance effect, clears it from
// the pending store and records the event. Reports false when the
// transaction was suppressed by the exclude filter.
func (e *Engine) settleOne(txn *types.PendingTransaction, price, scaleFactor uint64, exclude map[string]struct{}) (bool, error) {
	switch {
	case txn.Type.Liquidation():
		// A full liquidation closes the account out at settlement time:
		// it burns the current balance, not the amount recorded when the
		// request was taken in.
		var (
			shares uint64
			err    error
		)
		if txn.Type == types.FullLiquidation {
			shares, err = e.ledger.BalanceOf(txn.Account)
		} else {
			shares, err = fixedpoint.SharesFor(txn.Amount, price, scaleFactor)
		}
		if err != nil {
			return false, err
		}
		return true, e.applyAndRecord(txn, price, scaleFactor, shares, e.ledger.BurnShares)

	case txn.Type.Purchase():
		if _, suppressed := exclude[txn.TxID]; suppressed {
			return false, nil
		}
		shares, err := fixedpoint.SharesFor(txn.Amount, price, scaleFactor)
		if err != nil {
			return false, err
		}
		return true, e.applyAndRecord(txn, price, scaleFactor, shares, e.ledger.MintShares)

	case txn.Type == types.ShareTransfer:
		if err := e.ledger.TransferShares(txn.Source, txn.Destination, txn.Amount); err != nil {
			return false, err
		}
		if err := e.store.ClearTransaction(txn.Account, txn.TxID); err != nil {
			return false, err
		}
		return true, e.events.RecordTransfer(&TransferEvent{
			EventID:     "EVT_" + uuid.New().String(),
			TxID:        txn.TxID,
			FromAccount: txn.Source,
			ToAccount:   txn.Destination,
			Shares:      txn.Amount,
			Price:       price,
			SettledAt:   time.Now(),
			CreatedAt:   time.Now(),
		})

	case txn.Type == types.CrossChainOut:
		shares, err := fixedpoint.SharesFor(txn.Amount, price, scaleFactor)
		if err != nil {
			return false, err
		}
		return true, e.applyAndRecord(txn, price, scaleFactor, shares, e.ledger.BurnShares)

	case txn.Type == types.CrossChainIn:
		shares, err := fixedpoint.SharesFor(txn.Amount, price, scaleFactor)
		if err != nil {
			return false, err
		}
		return true, e.applyAndRecord(txn, price, scaleFactor, shares, e.ledger.MintShares)
	}

	return false, fmt.Errorf("transaction %s has type %q: %w",
		txn.TxID, txn.Type, types.ErrUnsupportedTransactionType)
}

// applyAndRecord runs the mint or burn, clears the pending row and
// records the settlement event as one logical step.
func (e *Engine) applyAndRecord(txn *types.PendingTransaction, price, scaleFactor, shares uint64, apply func(string, uint64) error) error {
	if err := apply(txn.Account, shares); err != nil {
		return err
	}
	if err := e.store.ClearTransaction(txn.Account, txn.TxID); err != nil {
		return err
	}

	return e.events.RecordSettlement(&SettlementEvent{
		EventID:         "EVT_" + uuid.New().String(),
		TxID:            txn.TxID,
		Account:         txn.Account,
		TransactionType: string(txn.Type),
		Shares:          shares,
		CashAmount:      fixedpoint.Descale(txn.Amount, scaleFactor).String(),
		Price:           price,
		SettledAt:       time.Now(),
		CreatedAt:       time.Now(),
	})
}
