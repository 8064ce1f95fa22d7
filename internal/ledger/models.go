package ledger

import (
	"time"

	"gorm.io/gorm"
)

// Holding is an account's settled share position.
type Holding struct {
	gorm.Model `json:"-"`
	Account    string    `gorm:"uniqueIndex" json:"account"`
	Shares     uint64    `json:"shares"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FundState is the singleton row holding the fund's last known NAV price
// and the cash scale factor. Exactly one row exists, keyed by StateKey.
type FundState struct {
	gorm.Model     `json:"-"`
	StateKey       string    `gorm:"uniqueIndex" json:"-"`
	LastPrice      uint64    `json:"last_price"`
	ScaleFactor    uint64    `json:"scale_factor"`
	PriceUpdatedAt time.Time `json:"price_updated_at"`
}

const fundStateKey = "fund"
