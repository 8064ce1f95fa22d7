package pending

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/fundta-api/internal/authz"
	"github.com/ksred/fundta-api/internal/types"
	"github.com/ksred/fundta-api/pkg/response"
)

// Service handles intake of shareholder purchase, liquidation and
// transfer requests into the pending store.
type Service struct {
	db    *Database
	authz authz.Provider
}

// NewService creates a new intake service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db:    NewDatabase(gormDB),
		authz: authz.NewDatabase(gormDB),
	}
}

// TransactionRequest is the intake payload for a new shareholder request.
type TransactionRequest struct {
	Account     string                `json:"account" binding:"required"`
	Type        types.TransactionType `json:"type" binding:"required"`
	Destination string                `json:"destination,omitempty"`
	Amount      uint64                `json:"amount"`
}

// CreateTransaction records a new pending transaction with idempotency
// support. Retries carrying the same idempotency key return the
// originally created transaction.
func (s *Service) CreateTransaction(req *TransactionRequest, idempotencyKey string) (*PendingTransaction, error) {
	logger := log.With().
		Str("account", req.Account).
		Str("type", string(req.Type)).
		Str("service", "pending").
		Logger()

	record, err := s.db.GetIdempotencyRecord(idempotencyKey)
	if err == nil && record != nil && record.ExpiresAt.After(time.Now()) {
		existing, err := s.db.GetTransaction(record.ResourceID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	if !req.Type.Supported() {
		return nil, fmt.Errorf("type %s: %w", req.Type, types.ErrUnsupportedTransactionType)
	}
	if req.Type == types.ShareTransfer && req.Destination == "" {
		return nil, fmt.Errorf("share transfer requires a destination account")
	}
	if req.Amount == 0 && req.Type != types.FullLiquidation {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	authorized, err := s.authz.IsAccountAuthorized(req.Account)
	if err != nil {
		return nil, err
	}
	if !authorized {
		return nil, fmt.Errorf("account %s: %w", req.Account, types.ErrAccountNotAuthorized)
	}

	txn := &PendingTransaction{
		TxID:        "TXN_" + uuid.New().String(),
		Account:     req.Account,
		Type:        string(req.Type),
		Source:      req.Account,
		Destination: req.Destination,
		RequestDate: time.Now(),
		Amount:      req.Amount,
		CreatedAt:   time.Now(),
	}

	if err := s.db.CreateTransactionWithIdempotency(txn, idempotencyKey); err != nil {
		logger.Error().Err(err).Msg("failed to create pending transaction")
		return nil, fmt.Errorf("failed to create pending transaction: %w", err)
	}

	logger.Info().
		Str("tx_id", txn.TxID).
		Uint64("amount", txn.Amount).
		Msg("recorded pending transaction")

	return txn, nil
}

// GetAccountTransactions returns the full pending rows for an account.
func (s *Service) GetAccountTransactions(account string) ([]PendingTransaction, error) {
	return s.db.GetAccountTransactionRecords(account)
}

// GinHandlers contains HTTP handlers for request intake endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for request intake
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateTransactionHandler handles POST requests to submit shareholder
// requests. Requires a valid JWT token and idempotency key in headers.
func (h *GinHandlers) CreateTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")
		if idempotencyKey == "" {
			response.BadRequest(c, "Idempotency-Key header is required")
			return
		}

		var req TransactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		txn, err := h.service.CreateTransaction(&req, idempotencyKey)
		response.Handle(c, txn, err)
	}
}

// GetAccountTransactionsHandler handles GET requests for an account's
// pending transactions
// URL parameter: account
func (h *GinHandlers) GetAccountTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := c.Param("account")
		if account == "" {
			response.BadRequest(c, "account is required")
			return
		}

		txns, err := h.service.GetAccountTransactions(account)
		response.Handle(c, txns, err)
	}
}
