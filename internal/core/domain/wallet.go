package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is the balance-bearing record owned by one account. Balances are
// kept in the smallest token unit and are never negative; the only writer
// is the ledger engine.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	AccountID string    `json:"account_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWallet returns a zero-balance wallet for the given account.
func NewWallet(accountID string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.New(),
		AccountID: accountID,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
