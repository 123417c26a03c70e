package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord stores the serialized result of a completed mutating
// operation so client retries return the original outcome instead of
// producing a second effect. The row is written in the same database
// transaction as the effect it guards.
type IdempotencyRecord struct {
	Key           string    `json:"key"` // Format: "wallet_id:caller_key"
	TransactionID uuid.UUID `json:"transaction_id"`
	ResponseJSON  []byte    `json:"response_json"`
	CreatedAt     time.Time `json:"created_at"`
}

// BuildIdempotencyKey scopes a caller-supplied key to a wallet. The same
// caller key against two wallets is two distinct operations.
func BuildIdempotencyKey(walletID uuid.UUID, callerKey string) string {
	return walletID.String() + ":" + callerKey
}
