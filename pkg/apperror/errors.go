package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Wallet Directory (WAL) ----

func ErrWalletNotFound() *AppError {
	return New("WAL_001", "Wallet not found", http.StatusNotFound)
}

// ---- Ledger Business Logic (LED) ----

func ErrInsufficientFunds() *AppError {
	return New("LED_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("LED_002", "Amount must be a positive number of tokens", http.StatusBadRequest)
}

func ErrSameWallet() *AppError {
	return New("LED_003", "Source and destination wallets must differ", http.StatusBadRequest)
}

// ErrConcurrencyConflict is returned once the engine's retry budget for
// serialization/deadlock failures is exhausted. Callers may retry the whole
// operation, ideally with the same idempotency key.
func ErrConcurrencyConflict(err error) *AppError {
	return Wrap("LED_004", "Operation aborted under contention, please retry", http.StatusConflict, err)
}

func ErrInvalidReversal() *AppError {
	return New("LED_005", "Transaction is not eligible for reversal", http.StatusBadRequest)
}

func ErrTransactionNotFound() *AppError {
	return New("LED_006", "Transaction not found", http.StatusNotFound)
}

// ---- System & Infrastructure (SYS) ----

func ErrStorageFailure(err error) *AppError {
	return Wrap("SYS_001", "Internal storage error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_002-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("LED_002", message, http.StatusBadRequest)
}
