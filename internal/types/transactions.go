package types

import "time"

// TransactionType identifies the behavioral category of a pending
// shareholder transaction.
type TransactionType string

const (
	// AIP is an automatic investment plan purchase.
	AIP TransactionType = "AIP"
	// CashPurchase is a one-off cash purchase of shares.
	CashPurchase TransactionType = "CASH_PURCHASE"
	// CashLiquidation redeems a fixed cash amount of shares.
	CashLiquidation TransactionType = "CASH_LIQUIDATION"
	// FullLiquidation closes the account out, burning its entire balance.
	FullLiquidation TransactionType = "FULL_LIQUIDATION"
	// ShareTransfer moves shares between two accounts on the same ledger.
	ShareTransfer TransactionType = "SHARE_TRANSFER"
	// CrossChainOut burns shares leaving for an external chain.
	CrossChainOut TransactionType = "CXFER_OUT"
	// CrossChainIn mints shares arriving from an external chain.
	CrossChainIn TransactionType = "CXFER_IN"
)

// Supported reports whether t is a transaction type the settlement
// engine knows how to process. Anything else is rejected outright.
func (t TransactionType) Supported() bool {
	switch t {
	case AIP, CashPurchase, CashLiquidation, FullLiquidation,
		ShareTransfer, CrossChainOut, CrossChainIn:
		return true
	}
	return false
}

// Purchase reports whether t mints shares against a cash amount.
func (t TransactionType) Purchase() bool {
	return t == AIP || t == CashPurchase
}

// Liquidation reports whether t burns shares in exchange for cash.
func (t TransactionType) Liquidation() bool {
	return t == CashLiquidation || t == FullLiquidation
}

// CrossChain reports whether t is only settleable through the dedicated
// cross-chain entry points.
func (t TransactionType) CrossChain() bool {
	return t == CrossChainOut || t == CrossChainIn
}

// PendingTransaction is the engine's read model of a not-yet-settled
// shareholder request held by the pending transaction store.
type PendingTransaction struct {
	TxID        string          `json:"tx_id"`
	Account     string          `json:"account"`
	Type        TransactionType `json:"type"`
	Source      string          `json:"source"`
	Destination string          `json:"destination,omitempty"`
	RequestDate time.Time       `json:"request_date"`
	Amount      uint64          `json:"amount"`
}
