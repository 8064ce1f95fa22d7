package recovery

import (
	"time"

	"gorm.io/gorm"
)

// AdjustmentEvent records an administrative balance correction.
type AdjustmentEvent struct {
	gorm.Model     `json:"-"`
	EventID        string    `gorm:"uniqueIndex" json:"event_id"`
	Account        string    `gorm:"index" json:"account"`
	PreviousShares uint64    `json:"previous_shares"`
	NewShares      uint64    `json:"new_shares"`
	Memo           string    `json:"memo"`
	AdjustedAt     time.Time `json:"adjusted_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// RecoveryEvent records the administrative reassignment of shares from a
// compromised account to a replacement. Partial marks asset recovery;
// a full account recovery also retires the source account.
type RecoveryEvent struct {
	gorm.Model  `json:"-"`
	EventID     string    `gorm:"uniqueIndex" json:"event_id"`
	FromAccount string    `gorm:"index" json:"from_account"`
	ToAccount   string    `gorm:"index" json:"to_account"`
	Shares      uint64    `json:"shares"`
	Partial     bool      `json:"partial"`
	RecoveredAt time.Time `json:"recovered_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// AdjustBalanceRequest corrects an account's balance after an operational
// error. CurrentShares is the caller's view of the balance and must match
// the ledger before any change is applied.
type AdjustBalanceRequest struct {
	Account       string `json:"account" binding:"required"`
	CurrentShares uint64 `json:"current_shares"`
	NewShares     uint64 `json:"new_shares"`
	Memo          string `json:"memo" binding:"required"`
}

// RecoverAccountRequest moves a compromised account's entire balance to
// an authorized replacement account.
type RecoverAccountRequest struct {
	FromAccount string `json:"from_account" binding:"required"`
	ToAccount   string `json:"to_account" binding:"required"`
}

// RecoverAssetRequest moves part of a compromised account's balance.
type RecoverAssetRequest struct {
	FromAccount string `json:"from_account" binding:"required"`
	ToAccount   string `json:"to_account" binding:"required"`
	Shares      uint64 `json:"shares"`
}
