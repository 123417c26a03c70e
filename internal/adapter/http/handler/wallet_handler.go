package handler

import (
	"token-ledger/internal/adapter/http/dto"
	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/pkg/apperror"
	"token-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet directory endpoints.
type WalletHandler struct {
	walletSvc    ports.WalletService
	reportingSvc ports.ReportingService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, reportingSvc ports.ReportingService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, reportingSvc: reportingSvc}
}

// Create handles POST /api/v1/wallets. Get-or-create: posting the same
// account twice returns the same wallet.
func (h *WalletHandler) Create(c *gin.Context) {
	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	wallet, err := h.walletSvc.GetOrCreate(c.Request.Context(), req.AccountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWalletResponse(wallet))
}

// Get handles GET /api/v1/wallets/:account_id.
func (h *WalletHandler) Get(c *gin.Context) {
	wallet, err := h.walletSvc.Get(c.Request.Context(), c.Param("account_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWalletResponse(wallet))
}

// GetBalance handles GET /api/v1/wallets/:account_id/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	wallet, err := h.walletSvc.Get(c.Request.Context(), c.Param("account_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	balance, err := h.reportingSvc.GetBalance(c.Request.Context(), wallet.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{
		WalletID: wallet.ID.String(),
		Balance:  balance,
	})
}

// Reconcile handles GET /api/v1/wallets/:account_id/reconcile.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	wallet, err := h.walletSvc.Get(c.Request.Context(), c.Param("account_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	rec, err := h.reportingSvc.Reconcile(c.Request.Context(), wallet.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.ReconciliationResponse{
		WalletID:   rec.WalletID.String(),
		Balance:    rec.Balance,
		LedgerSum:  rec.LedgerSum,
		Consistent: rec.Consistent,
	})
}

// toWalletResponse converts domain.Wallet to DTO.
func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		ID:        w.ID.String(),
		AccountID: w.AccountID,
		Balance:   w.Balance,
		CreatedAt: w.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
