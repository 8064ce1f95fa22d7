package settlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/fundta-api/internal/ledger"
	"github.com/ksred/fundta-api/internal/pending"
)

// Processor sweeps accounts with due pending transactions on an interval
// and settles them at the last known NAV price, so liquidations and
// transfers taken in between batch calls do not sit past their request
// date indefinitely. The sweep never settles purchases: minting waits
// for an operator batch, which is the only caller that can carry the
// purchase exclusion list. Operators opt in to the sweep at startup.
type Processor struct {
	service      *Service
	processDelay time.Duration
}

func NewProcessor(service *Service) *Processor {
	return &Processor{
		service:      service,
		processDelay: 5 * time.Minute,
	}
}

// Start begins the settlement sweep loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "settlement_processor").Logger()
	logger.Info().Msg("starting settlement processor")

	ticker := time.NewTicker(p.processDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down settlement processor")
			return
		case <-ticker.C:
			if err := p.SweepOnce(); err != nil {
				logger.Error().Err(err).Msg("failed to process due pending transactions")
			}
		}
	}
}

// SweepOnce runs a single sweep pass over all listed pending accounts.
func (p *Processor) SweepOnce() error {
	logger := log.With().Str("component", "settlement_processor").Logger()

	db := p.service.GetDB()
	accounts, err := pending.NewDatabase(db).ListPendingAccounts()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return nil
	}

	price, err := ledger.NewDatabase(db).LastKnownPrice()
	if err != nil {
		return err
	}
	if price == 0 {
		// No batch has pushed a NAV price yet; nothing to settle against.
		logger.Warn().Msg("no known NAV price, skipping sweep")
		return nil
	}

	logger.Info().
		Int("pending_accounts", len(accounts)).
		Uint64("price", price).
		Msg("sweeping due pending transactions")

	cutoff := time.Now()
	for start := 0; start < len(accounts); start += MaxBatchAccounts {
		end := start + MaxBatchAccounts
		if end > len(accounts) {
			end = len(accounts)
		}
		page := accounts[start:end]

		err := p.service.runAtomic(func(tx *gorm.DB) error {
			_, err := p.service.settleBatch(tx, page, nil, cutoff, price, modeSweep)
			return err
		})
		if err != nil {
			logger.Error().
				Err(err).
				Int("page_start", start).
				Msg("settlement sweep page failed")
			continue
		}
	}

	return nil
}
