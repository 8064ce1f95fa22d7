// Package ledger exposes the fund's share-balance primitives. The
// settlement and dividend engines consume the Gateway interface; the
// gorm-backed Database is the service's own implementation of it.
package ledger

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ksred/fundta-api/pkg/response"
)

// Gateway is the balance-ledger surface the engines settle against.
// Implementations must serialize conflicting balance mutations when
// multiple callers run batches concurrently.
type Gateway interface {
	// BalanceOf returns the account's current settled share balance.
	BalanceOf(account string) (uint64, error)
	// GetShareHoldings returns the balance basis used for dividend
	// distribution. For this ledger it is the settled balance.
	GetShareHoldings(account string) (uint64, error)
	// UpdateLastKnownPrice records the NAV price for the current batch.
	UpdateLastKnownPrice(price uint64) error
	MintShares(account string, shares uint64) error
	BurnShares(account string, shares uint64) error
	TransferShares(from, to string, shares uint64) error
	ScaleFactor() (uint64, error)
}

// DefaultScaleFactor is used when the fund state row is created without
// an explicit configuration.
const DefaultScaleFactor = 10000

var _ Gateway = (*Database)(nil)

// GinHandlers contains HTTP handlers for ledger query endpoints
type GinHandlers struct {
	db *gorm.DB
}

// NewGinHandlers creates a new set of HTTP handlers for ledger queries
func NewGinHandlers(db *gorm.DB) *GinHandlers {
	return &GinHandlers{db: db}
}

// GetBalanceHandler handles GET requests for an account's share balance
// URL parameter: account
func (h *GinHandlers) GetBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := c.Param("account")
		if account == "" {
			response.BadRequest(c, "account is required")
			return
		}

		ledger := NewDatabase(h.db)
		shares, err := ledger.BalanceOf(account)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		state, err := ledger.fundState()
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{
			"account":      account,
			"shares":       shares,
			"last_price":   state.LastPrice,
			"scale_factor": state.ScaleFactor,
		})
	}
}

// GetFundStateHandler handles GET requests for the fund's price state
func (h *GinHandlers) GetFundStateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := NewDatabase(h.db).fundState()
		if err != nil {
			response.Handle(c, nil, fmt.Errorf("failed to fetch fund state: %w", err))
			return
		}
		response.Success(c, state)
	}
}
