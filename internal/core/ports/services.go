package ports

import (
	"context"
	"time"

	"token-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// IdempotencyCache is the Redis-layer idempotency check (fast path).
// The database record remains authoritative when the cache is unavailable.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- Service Ports (Business Logic) ---

// WalletService is the wallet directory: it resolves account identifiers to
// wallets, creating them lazily on first use.
type WalletService interface {
	// GetOrCreate returns the wallet for the account, creating a
	// zero-balance one if none exists. Safe under concurrent first use:
	// exactly one wallet ever exists per account.
	GetOrCreate(ctx context.Context, accountID string) (*domain.Wallet, error)
	// Get is a pure lookup; a missing wallet is a WAL_001 error.
	Get(ctx context.Context, accountID string) (*domain.Wallet, error)
}

// LedgerService is the transaction engine. Every operation executes as one
// atomic unit: either the balance change and its ledger entry are both
// committed, or nothing is visible.
type LedgerService interface {
	Credit(ctx context.Context, req CreditRequest) (*LedgerResult, error)
	Debit(ctx context.Context, req DebitRequest) (*LedgerResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	// Reverse appends a compensating entry for a completed transaction and
	// marks the original reversed. History is never edited.
	Reverse(ctx context.Context, req ReverseRequest) (*LedgerResult, error)
}

// CreditRequest holds validated input for a balance increase.
type CreditRequest struct {
	WalletID       uuid.UUID
	Amount         int64 // tokens, smallest unit, must be > 0
	Kind           domain.TransactionKind
	Description    string
	Metadata       domain.Metadata
	IdempotencyKey string // optional; empty disables deduplication
}

// DebitRequest holds validated input for a balance decrease.
type DebitRequest struct {
	WalletID       uuid.UUID
	Amount         int64 // tokens, smallest unit, must be > 0
	Kind           domain.TransactionKind
	Description    string
	Metadata       domain.Metadata
	IdempotencyKey string
}

// TransferRequest moves tokens between two wallets atomically.
type TransferRequest struct {
	FromWalletID   uuid.UUID
	ToWalletID     uuid.UUID
	Amount         int64
	Description    string
	Metadata       domain.Metadata
	IdempotencyKey string
}

// ReverseRequest appends a compensating entry for an earlier transaction.
type ReverseRequest struct {
	TransactionID  uuid.UUID
	Description    string
	IdempotencyKey string
}

// LedgerResult is the outcome of a single-wallet mutation.
type LedgerResult struct {
	Transaction *domain.Transaction `json:"transaction"`
	Balance     int64               `json:"balance"` // wallet balance after commit
}

// TransferResult is the outcome of a two-legged transfer.
type TransferResult struct {
	CorrelationID uuid.UUID           `json:"correlation_id"`
	FromBalance   int64               `json:"from_balance"`
	ToBalance     int64               `json:"to_balance"`
	OutLeg        *domain.Transaction `json:"out_leg"`
	InLeg         *domain.Transaction `json:"in_leg"`
}

// ReportingService is the read side: balances, history, aggregates and the
// reconciliation check. Never blocks on writer locks.
type ReportingService interface {
	GetBalance(ctx context.Context, walletID uuid.UUID) (int64, error)
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	GetAggregate(ctx context.Context, params AggregateParams) (*AggregateReport, error)
	Reconcile(ctx context.Context, walletID uuid.UUID) (*Reconciliation, error)
}

// AggregateReport is the Aggregate enriched with derived figures.
type AggregateReport struct {
	Aggregate
	SuccessRate float64 // share of entries still standing (completed or reversed)
}

// Reconciliation is the canonical auditability check: the stored balance
// must equal the replayed sum of completed entries.
type Reconciliation struct {
	WalletID   uuid.UUID `json:"wallet_id"`
	Balance    int64     `json:"balance"`
	LedgerSum  int64     `json:"ledger_sum"`
	Consistent bool      `json:"consistent"`
}
