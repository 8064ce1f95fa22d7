// Package recovery implements the administrative balance operations:
// corrections, full account recovery and partial asset recovery.
package recovery

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/fundta-api/internal/authz"
	"github.com/ksred/fundta-api/internal/ledger"
	"github.com/ksred/fundta-api/internal/pending"
	"github.com/ksred/fundta-api/internal/types"
	"github.com/ksred/fundta-api/pkg/response"
)

// Service handles administrative balance recovery operations. Each
// operation requires an admin caller and commits as one gorm transaction.
type Service struct {
	db    *gorm.DB
	authz *authz.Database
}

// NewService creates a new recovery service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:    gormDB,
		authz: authz.NewDatabase(gormDB),
	}
}

// AdjustBalance corrects an account's share balance. The caller's view of
// the current balance must match the ledger, and the new balance must
// differ from it.
func (s *Service) AdjustBalance(caller string, req *AdjustBalanceRequest) (*AdjustmentEvent, error) {
	logger := log.With().
		Str("caller", caller).
		Str("account", req.Account).
		Str("service", "recovery").
		Logger()

	if err := s.authz.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if req.NewShares == req.CurrentShares {
		return nil, types.ErrNoAdjustmentRequired
	}

	var event *AdjustmentEvent
	err := s.runAtomic(func(tx *gorm.DB) error {
		led := ledger.NewDatabase(tx)

		balance, err := led.BalanceOf(req.Account)
		if err != nil {
			return err
		}
		if balance != req.CurrentShares {
			return fmt.Errorf("ledger holds %d, caller reported %d: %w",
				balance, req.CurrentShares, types.ErrBalanceMismatch)
		}

		if req.NewShares > balance {
			if err := led.MintShares(req.Account, req.NewShares-balance); err != nil {
				return err
			}
		} else {
			if err := led.BurnShares(req.Account, balance-req.NewShares); err != nil {
				return err
			}
		}

		event = &AdjustmentEvent{
			EventID:        "ADJ_" + uuid.New().String(),
			Account:        req.Account,
			PreviousShares: balance,
			NewShares:      req.NewShares,
			Memo:           req.Memo,
			AdjustedAt:     time.Now(),
			CreatedAt:      time.Now(),
		}
		return tx.Create(event).Error
	})
	if err != nil {
		logger.Error().Err(err).Msg("balance adjustment failed")
		return nil, err
	}

	logger.Info().
		Uint64("previous_shares", event.PreviousShares).
		Uint64("new_shares", event.NewShares).
		Msg("balance adjusted")
	return event, nil
}

// RecoverAccount moves the full balance of a compromised account to an
// authorized replacement and retires the source from the whitelist. An
// account with pending transactions cannot be recovered until those
// settle or are cleared.
func (s *Service) RecoverAccount(caller string, req *RecoverAccountRequest) (*RecoveryEvent, error) {
	logger := log.With().
		Str("caller", caller).
		Str("from", req.FromAccount).
		Str("to", req.ToAccount).
		Str("service", "recovery").
		Logger()

	if err := s.authz.RequireAdmin(caller); err != nil {
		return nil, err
	}

	var event *RecoveryEvent
	err := s.runAtomic(func(tx *gorm.DB) error {
		auth := authz.NewDatabase(tx)
		authorized, err := auth.IsAccountAuthorized(req.ToAccount)
		if err != nil {
			return err
		}
		if !authorized {
			return fmt.Errorf("destination %s: %w", req.ToAccount, types.ErrAccountNotAuthorized)
		}

		hasPending, err := pending.NewDatabase(tx).HasTransactions(req.FromAccount)
		if err != nil {
			return err
		}
		if hasPending {
			return fmt.Errorf("account %s: %w", req.FromAccount, types.ErrAccountHasPendingTransactions)
		}

		led := ledger.NewDatabase(tx)
		balance, err := led.BalanceOf(req.FromAccount)
		if err != nil {
			return err
		}
		if balance > 0 {
			if err := led.TransferShares(req.FromAccount, req.ToAccount, balance); err != nil {
				return err
			}
		}

		if err := auth.RemoveAccountPostRecovery(req.FromAccount, req.ToAccount); err != nil {
			return err
		}

		event = &RecoveryEvent{
			EventID:     "REC_" + uuid.New().String(),
			FromAccount: req.FromAccount,
			ToAccount:   req.ToAccount,
			Shares:      balance,
			RecoveredAt: time.Now(),
			CreatedAt:   time.Now(),
		}
		return tx.Create(event).Error
	})
	if err != nil {
		logger.Error().Err(err).Msg("account recovery failed")
		return nil, err
	}

	logger.Info().Uint64("shares", event.Shares).Msg("account recovered")
	return event, nil
}

// RecoverAsset moves part of a compromised account's balance to a
// replacement account.
func (s *Service) RecoverAsset(caller string, req *RecoverAssetRequest) (*RecoveryEvent, error) {
	logger := log.With().
		Str("caller", caller).
		Str("from", req.FromAccount).
		Str("to", req.ToAccount).
		Str("service", "recovery").
		Logger()

	if err := s.authz.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if req.Shares == 0 {
		return nil, types.ErrNoAdjustmentRequired
	}

	var event *RecoveryEvent
	err := s.runAtomic(func(tx *gorm.DB) error {
		auth := authz.NewDatabase(tx)
		authorized, err := auth.IsAccountAuthorized(req.ToAccount)
		if err != nil {
			return err
		}
		if !authorized {
			return fmt.Errorf("destination %s: %w", req.ToAccount, types.ErrAccountNotAuthorized)
		}

		led := ledger.NewDatabase(tx)
		balance, err := led.BalanceOf(req.FromAccount)
		if err != nil {
			return err
		}
		if balance < req.Shares {
			return fmt.Errorf("account %s holds %d of %d requested: %w",
				req.FromAccount, balance, req.Shares, types.ErrInsufficientBalance)
		}

		if err := led.TransferShares(req.FromAccount, req.ToAccount, req.Shares); err != nil {
			return err
		}

		event = &RecoveryEvent{
			EventID:     "REC_" + uuid.New().String(),
			FromAccount: req.FromAccount,
			ToAccount:   req.ToAccount,
			Shares:      req.Shares,
			Partial:     true,
			RecoveredAt: time.Now(),
			CreatedAt:   time.Now(),
		}
		return tx.Create(event).Error
	})
	if err != nil {
		logger.Error().Err(err).Msg("asset recovery failed")
		return nil, err
	}

	logger.Info().Uint64("shares", event.Shares).Msg("asset recovered")
	return event, nil
}

func (s *Service) runAtomic(fn func(tx *gorm.DB) error) error {
	tx := s.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// GinHandlers contains HTTP handlers for recovery endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for recovery endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// AdjustBalanceHandler handles POST requests to correct an account's
// balance. Requires internal authentication.
func (h *GinHandlers) AdjustBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdjustBalanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		event, err := h.service.AdjustBalance(c.GetString("clientID"), &req)
		response.Handle(c, event, err)
	}
}

// RecoverAccountHandler handles POST requests to recover a compromised
// account. Requires internal authentication.
func (h *GinHandlers) RecoverAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RecoverAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		event, err := h.service.RecoverAccount(c.GetString("clientID"), &req)
		response.Handle(c, event, err)
	}
}

// RecoverAssetHandler handles POST requests to recover part of a
// compromised account's balance. Requires internal authentication.
func (h *GinHandlers) RecoverAssetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RecoverAssetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		event, err := h.service.RecoverAsset(c.GetString("clientID"), &req)
		response.Handle(c, event, err)
	}
}
