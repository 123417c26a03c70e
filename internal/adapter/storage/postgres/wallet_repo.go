package postgres

import (
	"context"
	"errors"
	"fmt"

	"token-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// CreateIfAbsent inserts a zero-balance wallet for the account unless one
// already exists. The unique constraint on account_id makes concurrent
// first-use safe: the loser of the race simply inserts nothing.
func (r *WalletRepo) CreateIfAbsent(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, account_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query, w.ID, w.AccountID, w.Balance, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByAccountID fetches a wallet by its owning account (non-locking read).
func (r *WalletRepo) GetByAccountID(ctx context.Context, accountID string) (*domain.Wallet, error) {
	query := `SELECT id, account_id, balance, created_at, updated_at
		FROM wallets WHERE account_id = $1`

	return scanWallet(r.pool.QueryRow(ctx, query, accountID))
}

// GetByID fetches a wallet by its UUID (non-locking read).
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT id, account_id, balance, created_at, updated_at
		FROM wallets WHERE id = $1`

	return scanWallet(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a wallet by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT id, account_id, balance, created_at, updated_at
		FROM wallets WHERE id = $1 FOR UPDATE`

	return scanWallet(tx.QueryRow(ctx, query, id))
}

// UpdateBalance writes a wallet's new balance within a transaction. The
// check constraint on the balance column backstops the engine's own
// non-negativity check.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error {
	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance, walletID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.AccountID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
