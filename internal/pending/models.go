package pending

import (
	"time"

	"gorm.io/gorm"
)

// PendingTransaction is a shareholder request awaiting settlement. Rows
// are created by the intake service and deleted by the settlement engine;
// they are never updated in place.
type PendingTransaction struct {
	gorm.Model  `json:"-"`
	TxID        string    `gorm:"uniqueIndex" json:"tx_id"`
	Account     string    `gorm:"index" json:"account"`
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	Destination string    `json:"destination,omitempty"`
	RequestDate time.Time `json:"request_date"`
	Amount      uint64    `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// PendingAccount indexes accounts that currently have at least one
// pending transaction, so batch callers can enumerate them cheaply.
type PendingAccount struct {
	gorm.Model `json:"-"`
	Account    string    `gorm:"uniqueIndex" json:"account"`
	CreatedAt  time.Time `json:"created_at"`
}

// IdempotencyRecord prevents duplicate intake of the same shareholder
// request when a client retries.
type IdempotencyRecord struct {
	gorm.Model
	IdempotencyKey string    `gorm:"uniqueIndex" json:"idempotency_key"`
	ResourceID     string    `json:"resource_id"`
	ResourceType   string    `json:"resource_type"`
	ExpiresAt      time.Time `json:"expires_at"`
}
