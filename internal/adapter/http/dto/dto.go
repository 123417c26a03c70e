package dto

// CreateWalletRequest is the request body for wallet creation/lookup.
type CreateWalletRequest struct {
	AccountID string `json:"account_id" binding:"required,min=1,max=100"`
}

// CreditRequest is the request body for crediting a wallet.
type CreditRequest struct {
	WalletID       string         `json:"wallet_id" binding:"required,uuid"`
	Amount         int64          `json:"amount" binding:"required,gt=0"`
	Kind           string         `json:"kind" binding:"required,max=50"`
	Description    string         `json:"description" binding:"max=500"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty" binding:"max=100"`
}

// DebitRequest is the request body for debiting a wallet.
type DebitRequest struct {
	WalletID       string         `json:"wallet_id" binding:"required,uuid"`
	Amount         int64          `json:"amount" binding:"required,gt=0"`
	Kind           string         `json:"kind" binding:"required,max=50"`
	Description    string         `json:"description" binding:"max=500"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty" binding:"max=100"`
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
type TransferRequest struct {
	FromWalletID   string         `json:"from_wallet_id" binding:"required,uuid"`
	ToWalletID     string         `json:"to_wallet_id" binding:"required,uuid"`
	Amount         int64          `json:"amount" binding:"required,gt=0"`
	Description    string         `json:"description" binding:"max=500"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty" binding:"max=100"`
}

// ReverseRequest is the request body for reversing a transaction.
type ReverseRequest struct {
	TransactionID  string `json:"transaction_id" binding:"required,uuid"`
	Description    string `json:"description" binding:"max=500"`
	IdempotencyKey string `json:"idempotency_key,omitempty" binding:"max=100"`
}

// WalletResponse is the response body for wallet lookups.
type WalletResponse struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	CreatedAt string `json:"created_at"`
}

// TransactionResponse is the response body for a ledger entry.
type TransactionResponse struct {
	ID            string         `json:"id"`
	WalletID      string         `json:"wallet_id"`
	Amount        int64          `json:"amount"`
	Kind          string         `json:"kind"`
	Description   string         `json:"description,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Status        string         `json:"status"`
	CorrelationID *string        `json:"correlation_id,omitempty"`
	ReversesID    *string        `json:"reverses_id,omitempty"`
	CreatedAt     string         `json:"created_at"`
}

// LedgerResultResponse is the response body for credit/debit/reverse.
type LedgerResultResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Balance     int64               `json:"balance"`
}

// TransferResponse is the response body for transfers.
type TransferResponse struct {
	CorrelationID string              `json:"correlation_id"`
	FromBalance   int64               `json:"from_balance"`
	ToBalance     int64               `json:"to_balance"`
	OutLeg        TransactionResponse `json:"out_leg"`
	InLeg         TransactionResponse `json:"in_leg"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	WalletID string `json:"wallet_id"`
	Balance  int64  `json:"balance"`
}

// TransactionListResponse wraps a paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// AggregateResponse is the response for the reporting aggregate.
type AggregateResponse struct {
	TotalCount     int64   `json:"total_count"`
	CompletedCount int64   `json:"completed_count"`
	ReversedCount  int64   `json:"reversed_count"`
	TotalCredited  int64   `json:"total_credited"`
	TotalDebited   int64   `json:"total_debited"`
	NetVolume      int64   `json:"net_volume"`
	SuccessRate    float64 `json:"success_rate"`
}

// ReconciliationResponse is the response for the reconciliation check.
type ReconciliationResponse struct {
	WalletID   string `json:"wallet_id"`
	Balance    int64  `json:"balance"`
	LedgerSum  int64  `json:"ledger_sum"`
	Consistent bool   `json:"consistent"`
}
