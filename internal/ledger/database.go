package ledger

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/ksred/fundta-api/internal/types"
)

type Database struct {
	db *gorm.DB
}

// NewDatabase wraps db as a ledger gateway. Bind it to an open gorm
// transaction to scope all balance mutations to that unit of work.
func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) BalanceOf(account string) (uint64, error) {
	var holding Holding
	if err := d.db.Where("account = ?", account).First(&holding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to fetch holding: %w", err)
	}
	return holding.Shares, nil
}

// GetShareHoldings is the dividend balance basis. This ledger has no
// unsettled share class, so it coincides with the settled balance.
func (d *Database) GetShareHoldings(account string) (uint64, error) {
	return d.BalanceOf(account)
}

func (d *Database) UpdateLastKnownPrice(price uint64) error {
	if price == 0 {
		return types.ErrInvalidPrice
	}

	state, err := d.fundState()
	if err != nil {
		return err
	}

	state.LastPrice = price
	state.PriceUpdatedAt = time.Now()
	if err := d.db.Save(state).Error; err != nil {
		return fmt.Errorf("failed to update last known price: %w", err)
	}
	return nil
}

func (d *Database) MintShares(account string, shares uint64) error {
	holding, err := d.holdingForUpdate(account)
	if err != nil {
		return err
	}

	holding.Shares += shares
	holding.UpdatedAt = time.Now()
	if err := d.db.Save(holding).Error; err != nil {
		return fmt.Errorf("failed to mint shares: %w", err)
	}
	return nil
}

func (d *Database) BurnShares(account string, shares uint64) error {
	holding, err := d.holdingForUpdate(account)
	if err != nil {
		return err
	}

	if holding.Shares < shares {
		return fmt.Errorf("burn of %d from %s: %w", shares, account, types.ErrInsufficientBalance)
	}

	holding.Shares -= shares
	holding.UpdatedAt = time.Now()
	if err := d.db.Save(holding).Error; err != nil {
		return fmt.Errorf("failed to burn shares: %w", err)
	}
	return nil
}

func (d *Database) TransferShares(from, to string, shares uint64) error {
	if err := d.BurnShares(from, shares); err != nil {
		return err
	}
	return d.MintShares(to, shares)
}

// LastKnownPrice returns the NAV price recorded by the most recent
// batch call, zero when no batch has run yet.
func (d *Database) LastKnownPrice() (uint64, error) {
	state, err := d.fundState()
	if err != nil {
		return 0, err
	}
	return state.LastPrice, nil
}

func (d *Database) ScaleFactor() (uint64, error) {
	state, err := d.fundState()
	if err != nil {
		return 0, err
	}
	return state.ScaleFactor, nil
}

// holdingForUpdate loads the account's holding row, creating a zero
// position on first touch.
func (d *Database) holdingForUpdate(account string) (*Holding, error) {
	var holding Holding
	err := d.db.Where("account = ?", account).First(&holding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		holding = Holding{Account: account, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		if err := d.db.Create(&holding).Error; err != nil {
			return nil, fmt.Errorf("failed to create holding: %w", err)
		}
		return &holding, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holding: %w", err)
	}
	return &holding, nil
}

func (d *Database) fundState() (*FundState, error) {
	var state FundState
	err := d.db.Where("state_key = ?", fundStateKey).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = FundState{
			StateKey:    fundStateKey,
			ScaleFactor: DefaultScaleFactor,
		}
		if err := d.db.Create(&state).Error; err != nil {
			return nil, fmt.Errorf("failed to create fund state: %w", err)
		}
		return &state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fund state: %w", err)
	}
	return &state, nil
}
