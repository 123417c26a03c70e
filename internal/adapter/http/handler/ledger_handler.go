package handler

import (
	"token-ledger/internal/adapter/http/dto"
	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/pkg/apperror"
	"token-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey lets clients pass the deduplication key out of band.
// A key in the body wins over the header.
const HeaderIdempotencyKey = "X-Idempotency-Key"

// LedgerHandler handles the transaction engine endpoints.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// Credit handles POST /api/v1/ledger/credit.
func (h *LedgerHandler) Credit(c *gin.Context) {
	var req dto.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		response.Error(c, apperror.Validation("wallet_id must be a valid UUID"))
		return
	}

	result, err := h.ledgerSvc.Credit(c.Request.Context(), ports.CreditRequest{
		WalletID:       walletID,
		Amount:         req.Amount,
		Kind:           domain.TransactionKind(req.Kind),
		Description:    req.Description,
		Metadata:       req.Metadata,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toLedgerResultResponse(result))
}

// Debit handles POST /api/v1/ledger/debit.
func (h *LedgerHandler) Debit(c *gin.Context) {
	var req dto.DebitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		response.Error(c, apperror.Validation("wallet_id must be a valid UUID"))
		return
	}

	result, err := h.ledgerSvc.Debit(c.Request.Context(), ports.DebitRequest{
		WalletID:       walletID,
		Amount:         req.Amount,
		Kind:           domain.TransactionKind(req.Kind),
		Description:    req.Description,
		Metadata:       req.Metadata,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toLedgerResultResponse(result))
}

// Transfer handles POST /api/v1/ledger/transfer.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	fromID, err := uuid.Parse(req.FromWalletID)
	if err != nil {
		response.Error(c, apperror.Validation("from_wallet_id must be a valid UUID"))
		return
	}
	toID, err := uuid.Parse(req.ToWalletID)
	if err != nil {
		response.Error(c, apperror.Validation("to_wallet_id must be a valid UUID"))
		return
	}

	result, err := h.ledgerSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		FromWalletID:   fromID,
		ToWalletID:     toID,
		Amount:         req.Amount,
		Description:    req.Description,
		Metadata:       req.Metadata,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.TransferResponse{
		CorrelationID: result.CorrelationID.String(),
		FromBalance:   result.FromBalance,
		ToBalance:     result.ToBalance,
		OutLeg:        toTransactionResponse(result.OutLeg),
		InLeg:         toTransactionResponse(result.InLeg),
	})
}

// Reverse handles POST /api/v1/ledger/reverse.
func (h *LedgerHandler) Reverse(c *gin.Context) {
	var req dto.ReverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	txID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		response.Error(c, apperror.Validation("transaction_id must be a valid UUID"))
		return
	}

	result, err := h.ledgerSvc.Reverse(c.Request.Context(), ports.ReverseRequest{
		TransactionID:  txID,
		Description:    req.Description,
		IdempotencyKey: idempotencyKey(c, req.IdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toLedgerResultResponse(result))
}

func idempotencyKey(c *gin.Context, bodyKey string) string {
	if bodyKey != "" {
		return bodyKey
	}
	return c.GetHeader(HeaderIdempotencyKey)
}

func toLedgerResultResponse(r *ports.LedgerResult) dto.LedgerResultResponse {
	return dto.LedgerResultResponse{
		Transaction: toTransactionResponse(r.Transaction),
		Balance:     r.Balance,
	}
}

// toTransactionResponse converts domain.Transaction to DTO.
func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:          tx.ID.String(),
		WalletID:    tx.WalletID.String(),
		Amount:      tx.Amount,
		Kind:        string(tx.Kind),
		Description: tx.Description,
		Metadata:    tx.Metadata,
		Status:      string(tx.Status),
		CreatedAt:   tx.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if tx.CorrelationID != nil {
		s := tx.CorrelationID.String()
		resp.CorrelationID = &s
	}
	if tx.ReversesID != nil {
		s := tx.ReversesID.String()
		resp.ReversesID = &s
	}
	return resp
}
