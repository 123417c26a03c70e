package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind classifies a balance change. The vocabulary is open:
// callers may introduce new kinds without a schema change, these are the
// ones the platform uses today.
type TransactionKind string

const (
	KindPurchase       TransactionKind = "purchase"
	KindRefund         TransactionKind = "refund"
	KindAdjustment     TransactionKind = "adjustment"
	KindSessionPayment TransactionKind = "session_payment"
	KindTransferIn     TransactionKind = "transfer_in"
	KindTransferOut    TransactionKind = "transfer_out"
	KindBonus          TransactionKind = "bonus"
	KindContent        TransactionKind = "content"
)

// TransactionStatus is the lifecycle state of a ledger entry.
type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusReversed  TransactionStatus = "reversed"
)

// Metadata is an opaque structured payload attached to a transaction.
// The engine writes only the transfer linkage keys below; everything else
// belongs to the caller and is never validated here.
type Metadata map[string]any

// Metadata keys written by the engine.
const (
	MetaCorrelationID      = "correlation_id"
	MetaCounterpartyWallet = "counterparty_wallet_id"
	MetaReverses           = "reverses"
)

// Transaction is an immutable, append-only entry describing one signed
// balance change. Positive amounts credit the wallet, negative amounts
// debit it. Once completed, amount and wallet id never change; the only
// permitted follow-up is a separate compensating entry.
type Transaction struct {
	ID             uuid.UUID         `json:"id"`
	WalletID       uuid.UUID         `json:"wallet_id"`
	Amount         int64             `json:"amount"`
	Kind           TransactionKind   `json:"kind"`
	Description    string            `json:"description,omitempty"`
	Metadata       Metadata          `json:"metadata,omitempty"`
	Status         TransactionStatus `json:"status"`
	IdempotencyKey *string           `json:"idempotency_key,omitempty"`
	CorrelationID  *uuid.UUID        `json:"correlation_id,omitempty"`
	ReversesID     *uuid.UUID        `json:"reverses_id,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// IsCredit reports whether the entry increased the wallet balance.
func (t *Transaction) IsCredit() bool {
	return t.Amount > 0
}

// IsReversible reports whether a compensating entry may be appended for
// this transaction. Only completed entries that are not themselves
// compensations qualify.
func (t *Transaction) IsReversible() bool {
	return t.Status == StatusCompleted && t.ReversesID == nil
}
