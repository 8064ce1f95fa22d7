package settlement

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ksred/fundta-api/internal/fixedpoint"
	"github.com/ksred/fundta-api/internal/ledger"
	"github.com/ksred/fundta-api/internal/types"
)

// Distributor applies dividend and negative-yield adjustments. Like the
// settlement engine it runs inside the batch's gorm transaction.
type Distributor struct {
	ledger ledger.Gateway
	events *Database
}

func NewDistributor(gateway ledger.Gateway, events *Database) *Distributor {
	return &Distributor{
		ledger: gateway,
		events: events,
	}
}

// ProcessAccount applies one dividend distribution to an account.
// effectiveBalance is the distribution basis: either the live ledger
// balance or a caller-supplied override (for example a time-weighted
// average); the distributor does not care which. A zero basis is a no-op.
// Reports whether a distribution was applied.
func (d *Distributor) ProcessAccount(account string, effectiveBalance uint64, date time.Time, rate int64, price uint64) (bool, error) {
	if price == 0 {
		return false, types.ErrInvalidPrice
	}
	if effectiveBalance == 0 {
		return false, nil
	}

	magnitude, err := fixedpoint.Abs(rate)
	if err != nil {
		return false, err
	}

	scaleFactor, err := d.ledger.ScaleFactor()
	if err != nil {
		return false, err
	}

	shares, err := fixedpoint.DividendShares(effectiveBalance, magnitude, price, scaleFactor)
	if err != nil {
		return false, err
	}

	negativeYield := rate < 0
	if negativeYield {
		// A negative dividend can never burn more than the account
		// holds, even when the arithmetic says otherwise.
		if shares > effectiveBalance {
			shares = effectiveBalance
		}
		if err := d.ledger.BurnShares(account, shares); err != nil {
			return false, err
		}
	} else {
		if err := d.ledger.MintShares(account, shares); err != nil {
			return false, err
		}
	}

	event := &DividendEvent{
		EventID:       "DIV_" + uuid.New().String(),
		Account:       account,
		RecordDate:    date,
		Rate:          rate,
		Price:         price,
		ShareDelta:    shares,
		CashAmount:    fixedpoint.CashValue(effectiveBalance, magnitude, scaleFactor).String(),
		BalanceBasis:  effectiveBalance,
		NegativeYield: negativeYield,
		CreatedAt:     time.Now(),
	}
	if err := d.events.RecordDividend(event); err != nil {
		return false, fmt.Errorf("failed to record dividend: %w", err)
	}

	log.Debug().
		Str("account", account).
		Int64("rate", rate).
		Uint64("share_delta", shares).
		Bool("negative_yield", negativeYield).
		Str("service", "dividend").
		Msg("applied dividend distribution")

	return true, nil
}
