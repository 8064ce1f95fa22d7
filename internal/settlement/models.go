package settlement

import (
	"time"

	"gorm.io/gorm"
)

// SettlementEvent records the settlement of a single purchase,
// liquidation or cross-chain transaction.
type SettlementEvent struct {
	gorm.Model      `json:"-"`
	EventID         string    `gorm:"uniqueIndex" json:"event_id"`
	TxID            string    `gorm:"index" json:"tx_id"`
	Account         string    `gorm:"index" json:"account"`
	TransactionType string    `json:"transaction_type"`
	Shares          uint64    `json:"shares"`
	CashAmount      string    `json:"cash_amount"`
	Price           uint64    `json:"price"`
	SettledAt       time.Time `json:"settled_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// TransferEvent records the settlement of a share transfer. It carries
// both endpoints instead of a single account.
type TransferEvent struct {
	gorm.Model  `json:"-"`
	EventID     string    `gorm:"uniqueIndex" json:"event_id"`
	TxID        string    `gorm:"index" json:"tx_id"`
	FromAccount string    `gorm:"index" json:"from_account"`
	ToAccount   string    `gorm:"index" json:"to_account"`
	Shares      uint64    `json:"shares"`
	Price       uint64    `json:"price"`
	SettledAt   time.Time `json:"settled_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// DividendEvent records one dividend distribution applied to an account.
type DividendEvent struct {
	gorm.Model    `json:"-"`
	EventID       string    `gorm:"uniqueIndex" json:"event_id"`
	Account       string    `gorm:"index" json:"account"`
	RecordDate    time.Time `json:"record_date"`
	Rate          int64     `json:"rate"`
	Price         uint64    `json:"price"`
	ShareDelta    uint64    `json:"share_delta"`
	CashAmount    string    `json:"cash_amount"`
	BalanceBasis  uint64    `json:"balance_basis"`
	NegativeYield bool      `json:"is_negative_yield"`
	CreatedAt     time.Time `json:"created_at"`
}

// DividendBatchRequest is the payload for a dividend distribution batch.
// AdjustedShares, when present, overrides the ledger balance as the
// per-account distribution basis and must align with Accounts.
type DividendBatchRequest struct {
	Accounts       []string  `json:"accounts" binding:"required"`
	AdjustedShares []uint64  `json:"adjusted_shares,omitempty"`
	RecordDate     time.Time `json:"record_date"`
	Rate           int64     `json:"rate"`
	Price          uint64    `json:"price"`
}

// SettlementBatchRequest is the payload for a settlement batch.
// ExcludeTxIDs suppresses settlement of the listed purchase
// transactions; other types are never filterable.
type SettlementBatchRequest struct {
	Accounts     []string  `json:"accounts" binding:"required"`
	ExcludeTxIDs []string  `json:"exclude_tx_ids,omitempty"`
	CutoffDate   time.Time `json:"cutoff_date"`
	Price        uint64    `json:"price"`
}

// EndOfDayRequest combines dividend distribution and settlement for the
// same account page at a single NAV price.
type EndOfDayRequest struct {
	Accounts     []string  `json:"accounts" binding:"required"`
	ExcludeTxIDs []string  `json:"exclude_tx_ids,omitempty"`
	CutoffDate   time.Time `json:"cutoff_date"`
	Rate         int64     `json:"rate"`
	Price        uint64    `json:"price"`
}

// CrossChainBatchRequest settles pending cross-chain transfers for a
// (smaller) page of accounts.
type CrossChainBatchRequest struct {
	Accounts     []string  `json:"accounts" binding:"required"`
	ExcludeTxIDs []string  `json:"exclude_tx_ids,omitempty"`
	CutoffDate   time.Time `json:"cutoff_date"`
	Price        uint64    `json:"price"`
}

// CrossChainSingleRequest settles one pending cross-chain transaction.
type CrossChainSingleRequest struct {
	Account string `json:"account" binding:"required"`
	TxID    string `json:"tx_id" binding:"required"`
	Price   uint64 `json:"price"`
}

// BatchResult summarizes a completed batch call.
type BatchResult struct {
	AccountsProcessed   int       `json:"accounts_processed"`
	TransactionsSettled int       `json:"transactions_settled"`
	DividendsApplied    int       `json:"dividends_applied"`
	Price               uint64    `json:"price"`
	Timestamp           time.Time `json:"timestamp"`
}
