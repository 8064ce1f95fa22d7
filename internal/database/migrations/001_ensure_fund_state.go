package migrations

import (
	"errors"
	"os"
	"strconv"

	"gorm.io/gorm"

	"github.com/ksred/fundta-api/internal/ledger"
)

// EnsureFundState seeds the singleton fund state row with the configured
// cash scale factor. The scale factor is fixed for the life of the fund;
// an existing row is never rewritten.
func EnsureFundState(db *gorm.DB) error {
	var state ledger.FundState
	err := db.Where("state_key = ?", "fund").First(&state).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	scaleFactor := uint64(ledger.DefaultScaleFactor)
	if raw := os.Getenv("FUND_SCALE_FACTOR"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || parsed == 0 {
			return errors.New("FUND_SCALE_FACTOR must be a positive integer")
		}
		scaleFactor = parsed
	}

	state = ledger.FundState{
		StateKey:    "fund",
		ScaleFactor: scaleFactor,
	}
	return db.Create(&state).Error
}
