package settlement

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/fundta-api/internal/authz"
	"github.com/ksred/fundta-api/internal/ledger"
	"github.com/ksred/fundta-api/internal/pending"
	"github.com/ksred/fundta-api/internal/types"
	"github.com/ksred/fundta-api/pkg/response"
)

// Pagination bounds for the public batch operations.
const (
	MaxBatchAccounts       = 50
	MaxFilterIDs           = 50
	MaxCrossChainAccounts  = 10
	MaxCrossChainFilterIDs = 10
)

// Service coordinates the public batch operations. Every operation
// validates the batch shape before touching any state, then runs the
// whole batch inside one gorm transaction: the first per-account failure
// rolls the entire call back.
type Service struct {
	db    *gorm.DB
	authz *authz.Database
}

// NewService creates a new settlement service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:    gormDB,
		authz: authz.NewDatabase(gormDB),
	}
}

// DistributeDividends applies one dividend distribution to each account
// in the batch at a single NAV price.
func (s *Service) DistributeDividends(caller string, req *DividendBatchRequest) (*BatchResult, error) {
	logger := log.With().
		Str("caller", caller).
		Int("accounts", len(req.Accounts)).
		Int64("rate", req.Rate).
		Str("service", "settlement").
		Logger()

	if err := s.authz.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if err := validateAccounts(req.Accounts, MaxBatchAccounts); err != nil {
		return nil, err
	}
	if len(req.AdjustedShares) > 0 && len(req.AdjustedShares) != len(req.Accounts) {
		return nil, types.ErrArrayLengthMismatch
	}
	if req.Rate == 0 {
		return nil, types.ErrInvalidRate
	}
	if req.Price == 0 {
		return nil, types.ErrInvalidPrice
	}

	result := &BatchResult{Price: req.Price}
	err := s.runAtomic(func(tx *gorm.DB) error {
		led := ledger.NewDatabase(tx)
		if err := led.UpdateLastKnownPrice(req.Price); err != nil {
			return err
		}

		dist := NewDistributor(led, NewDatabase(tx))
		for i, account := range req.Accounts {
			basis, err := dividendBasis(led, req.AdjustedShares, i, account)
			if err != nil {
				return err
			}
			applied, err := dist.ProcessAccount(account, basis, req.RecordDate, req.Rate, req.Price)
			if err != nil {
				return fmt.Errorf("dividend for account %s: %w", account, err)
			}
			if applied {
				result.DividendsApplied++
			}
		}
		result.AccountsProcessed = len(req.Accounts)
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("dividend distribution failed")
		return nil, err
	}

	result.Timestamp = time.Now()
	logger.Info().
		Int("dividends_applied", result.DividendsApplied).
		Msg("dividend distribution completed")
	return result, nil
}

// SettleTransactions settles each account's eligible pending
// transactions at a single NAV price.
func (s *Service) SettleTransactions(caller string, req *SettlementBatchRequest) (*BatchResult, error) {
	if err := s.authz.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if err := validateAccounts(req.Accounts, MaxBatchAccounts); err != nil {
		return nil, err
	}
	if len(req.ExcludeTxIDs) > MaxFilterIDs {
		return nil, types.ErrPaginationLimitExceeded
	}
	if req.Price == 0 {
		return nil, types.ErrInvalidPrice
	}

	result := &BatchResult{Price: req.Price}
	err := s.runAtomic(func(tx *gorm.DB) error {
		settled, err := s.settleBatch(tx, req.Accounts, req.ExcludeTxIDs, req.CutoffDate, req.Price, modeStandard)
		if err != nil {
			return err
		}
		result.TransactionsSettled = settled
		result.AccountsProcessed = len(req.Accounts)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Timestamp = time.Now()
	return result, nil
}

// EndOfDay runs dividend distribution and settlement for the same
// account page at one NAV price, dividends first.
func (s *Service) EndOfDay(caller string, req *EndOfDayRequest) (*BatchResult, error) {
	logger := log.With().
		Str("caller", caller).
		Int("accounts", len(req.Accounts)).
		Str("service", "settlement").
		Logger()

	if err := s.authz.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if err := validateAccounts(req.Accounts, MaxBatchAccounts); err != nil {
		return nil, err
	}
	if len(req.ExcludeTxIDs) > MaxFilterIDs {
		return nil, types.ErrPaginationLimitExceeded
	}
	if req.Rate == 0 {
		return nil, types.ErrInvalidRate
	}
	if req.Price == 0 {
		return nil, types.ErrInvalidPrice
	}

	result := &BatchResult{Price: req.Price}
	err := s.runAtomic(func(tx *gorm.DB) error {
		led := ledger.NewDatabase(tx)
		if err := led.UpdateLastKnownPrice(req.Price); err != nil {
			return err
		}

		events := NewDatabase(tx)
		dist := NewDistributor(led, events)
		engine := NewEngine(led, pending.NewDatabase(tx), events)
		exclude := idSet(req.ExcludeTxIDs)

		for _, account := range req.Accounts {
			basis, err := led.GetShareHoldings(account)
			if err != nil {
				return err
			}
			applied, err := dist.ProcessAccount(account, basis, req.CutoffDate, req.Rate, req.Price)
			if err != nil {
				return fmt.Errorf("dividend for account %s: %w", account, err)
			}
			if applied {
				result.DividendsApplied++
			}

			settled, err := engine.SettleAccount(account, req.CutoffDate, req.Price, exclude)
			if err != nil {
				return fmt.Errorf("settlement for account %s: %w", account, err)
			}
			result.TransactionsSettled += settled
		}
		result.AccountsProcessed = len(req.Accounts)
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("end of day processing failed")
		return nil, err
	}

	result.Timestamp = time.Now()
	logger.Info().
		Int("dividends_applied", result.DividendsApplied).
		Int("transactions_settled", result.TransactionsSettled).
		Msg("end of day processing completed")
	return result, nil
}

// SettleCrossChainBatch settles pending cross-chain transfers for a page
// of accounts. Cross-chain pages are capped lower than the generic path.
func (s *Service) SettleCrossChainBatch(caller string, req *CrossChainBatchRequest) (*BatchResult, error) {
	if err := s.authz.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if err := validateAccounts(req.Accounts, MaxCrossChainAccounts); err != nil {
		return nil, err
	}
	if len(req.ExcludeTxIDs) > MaxCrossChainFilterIDs {
		return nil, types.ErrPaginationLimitExceeded
	}
	if req.Price == 0 {
		return nil, types.ErrInvalidPrice
	}

	result := &BatchResult{Price: req.Price}
	err := s.runAtomic(func(tx *gorm.DB) error {
		settled, err := s.settleBatch(tx, req.Accounts, req.ExcludeTxIDs, req.CutoffDate, req.Price, modeCrossChain)
		if err != nil {
			return err
		}
		result.TransactionsSettled = settled
		result.AccountsProcessed = len(req.Accounts)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Timestamp = time.Now()
	return result, nil
}

// SettleCrossChainSingle settles one pending cross-chain transaction.
func (s *Service) SettleCrossChainSingle(caller string, req *CrossChainSingleRequest) (*BatchResult, error) {
	if err := s.authz.RequireAdmin(caller); err != nil {
		return nil, err
	}
	if req.Price == 0 {
		return nil, types.ErrInvalidPrice
	}

	result := &BatchResult{Price: req.Price}
	err := s.runAtomic(func(tx *gorm.DB) error {
		led := ledger.NewDatabase(tx)
		if err := led.UpdateLastKnownPrice(req.Price); err != nil {
			return err
		}

		engine := NewEngine(led, pending.NewDatabase(tx), NewDatabase(tx))
		if err := engine.SettleSingle(req.Account, req.TxID, req.Price); err != nil {
			return err
		}
		result.TransactionsSettled = 1
		result.AccountsProcessed = 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Timestamp = time.Now()
	return result, nil
}

// settleBatch pushes the batch price then settles each account in caller
// order within the supplied transaction.
func (s *Service) settleBatch(tx *gorm.DB, accounts, excludeTxIDs []string, cutoff time.Time, price uint64, mode settleMode) (int, error) {
	led := ledger.NewDatabase(tx)
	if err := led.UpdateLastKnownPrice(price); err != nil {
		return 0, err
	}

	engine := NewEngine(led, pending.NewDatabase(tx), NewDatabase(tx))
	exclude := idSet(excludeTxIDs)

	settled := 0
	for _, account := range accounts {
		n, err := engine.settle(account, cutoff, price, exclude, mode)
		if err != nil {
			return settled, fmt.Errorf("settlement for account %s: %w", account, err)
		}
		settled += n
	}
	return settled, nil
}

// runAtomic executes fn inside a single gorm transaction. The batch
// operations rely on this as their all-or-nothing commit boundary.
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

func validateAccounts(accounts []string, max int) error {
	if len(accounts) > max {
		return types.ErrPaginationLimitExceeded
	}
	return nil
}

func dividendBasis(led ledger.Gateway, adjusted []uint64, i int, account string) (uint64, error) {
	if len(adjusted) > 0 {
		return adjusted[i], nil
	}
	return led.GetShareHoldings(account)
}

func idSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// GinHandlers contains HTTP handlers for batch settlement endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for settlement endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// DistributeDividendsHandler handles POST requests to run a dividend
// distribution batch. Requires internal authentication.
func (h *GinHandlers) DistributeDividendsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DividendBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.DistributeDividends(c.GetString("clientID"), &req)
		response.Handle(c, result, err)
	}
}

// SettleTransactionsHandler handles POST requests to run a settlement
// batch. Requires internal authentication.
func (h *GinHandlers) SettleTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SettlementBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.SettleTransactions(c.GetString("clientID"), &req)
		response.Handle(c, result, err)
	}
}

// EndOfDayHandler handles POST requests to run combined dividend and
// settlement processing. Requires internal authentication.
func (h *GinHandlers) EndOfDayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EndOfDayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.EndOfDay(c.GetString("clientID"), &req)
		response.Handle(c, result, err)
	}
}

// SettleCrossChainBatchHandler handles POST requests to settle
// cross-chain transfers for a page of accounts.
func (h *GinHandlers) SettleCrossChainBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CrossChainBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.SettleCrossChainBatch(c.GetString("clientID"), &req)
		response.Handle(c, result, err)
	}
}

// SettleCrossChainSingleHandler handles POST requests to settle a single
// cross-chain transaction.
func (h *GinHandlers) SettleCrossChainSingleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CrossChainSingleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		result, err := h.service.SettleCrossChainSingle(c.GetString("clientID"), &req)
		response.Handle(c, result, err)
	}
}

// GetAccountDividendsHandler handles GET requests for an account's
// dividend history
// URL parameter: account
func (h *GinHandlers) GetAccountDividendsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := c.Param("account")
		events, err := NewDatabase(h.service.db).GetAccountDividends(account)
		response.Handle(c, events, err)
	}
}

// GetAccountSettlementsHandler handles GET requests for an account's
// settlement history
// URL parameter: account
func (h *GinHandlers) GetAccountSettlementsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := c.Param("account")
		events, err := NewDatabase(h.service.db).GetAccountSettlements(account)
		response.Handle(c, events, err)
	}
}

// GetDB exposes the underlying database handle for the background
// settlement processor.
func (s *Service) GetDB() *gorm.DB {
	return s.db
}
