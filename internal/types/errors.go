package types

import "errors"

// Domain errors shared across the settlement, dividend and recovery
// paths. Handlers map these onto HTTP status codes in pkg/response.
var (
	ErrInvalidPrice                  = errors.New("price must be greater than zero")
	ErrInvalidRate                   = errors.New("dividend rate must be nonzero")
	ErrPaginationLimitExceeded       = errors.New("batch exceeds pagination limit")
	ErrArrayLengthMismatch           = errors.New("parallel array lengths do not match")
	ErrUnsupportedTransactionType    = errors.New("unsupported transaction type")
	ErrArithmeticOverflow            = errors.New("arithmetic overflow")
	ErrDivisionByZero                = errors.New("division by zero")
	ErrAccountNotAuthorized          = errors.New("account is not authorized")
	ErrAccountHasPendingTransactions = errors.New("account has pending transactions")
	ErrInsufficientBalance           = errors.New("insufficient share balance")
	ErrNoAdjustmentRequired          = errors.New("no balance adjustment required")
	ErrBalanceMismatch               = errors.New("reported balance does not match ledger")
)
