package ports

import (
	"context"

	"token-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	// CreateIfAbsent inserts the wallet unless one already exists for the
	// account. Losing a concurrent creation race is not an error.
	CreateIfAbsent(ctx context.Context, wallet *domain.Wallet) error
	GetByAccountID(ctx context.Context, accountID string) (*domain.Wallet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error
}

// TransactionRepository defines persistence operations for ledger entries.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// MarkReversed flips a completed entry to reversed when its compensating
	// entry is appended. The only status transition the ledger permits.
	MarkReversed(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	// HasReversal runs inside the same transaction as the compensating
	// append so the check and the write cannot race.
	HasReversal(ctx context.Context, tx pgx.Tx, originalID uuid.UUID) (bool, error)
	// Read-side queries
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	GetAggregate(ctx context.Context, params AggregateParams) (*Aggregate, error)
	// SumCompleted replays the signed amounts of all completed entries for
	// a wallet. Reconciliation compares it with the stored balance.
	SumCompleted(ctx context.Context, walletID uuid.UUID) (int64, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	WalletID uuid.UUID
	Kind     *domain.TransactionKind
	Status   *domain.TransactionStatus
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}

// AggregateParams scopes an aggregate report. A nil WalletID spans all wallets.
type AggregateParams struct {
	WalletID *uuid.UUID
	Kind     *domain.TransactionKind
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
}

// Aggregate holds reporting figures computed from committed ledger entries.
type Aggregate struct {
	TotalCount     int64
	CompletedCount int64
	ReversedCount  int64
	TotalCredited  int64 // sum of positive completed amounts
	TotalDebited   int64 // absolute sum of negative completed amounts
	NetVolume      int64 // TotalCredited - TotalDebited
}

// IdempotencyRepository persists operation results keyed by idempotency key
// (authoritative layer, written in the same DB transaction as the effect).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord) error
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
