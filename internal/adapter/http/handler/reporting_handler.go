package handler

import (
	"math"
	"strconv"

	"token-ledger/internal/adapter/http/dto"
	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/pkg/apperror"
	"token-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReportingHandler handles transaction history and aggregate endpoints.
type ReportingHandler struct {
	reportingSvc ports.ReportingService
}

// NewReportingHandler creates a new ReportingHandler.
func NewReportingHandler(reportingSvc ports.ReportingService) *ReportingHandler {
	return &ReportingHandler{reportingSvc: reportingSvc}
}

// ListTransactions handles GET /api/v1/transactions.
func (h *ReportingHandler) ListTransactions(c *gin.Context) {
	walletID, err := uuid.Parse(c.Query("wallet_id"))
	if err != nil {
		response.Error(c, apperror.Validation("wallet_id query parameter must be a valid UUID"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.TransactionListParams{
		WalletID: walletID,
		Page:     page,
		PageSize: pageSize,
	}

	if s := c.Query("status"); s != "" {
		status := domain.TransactionStatus(s)
		params.Status = &status
	}
	if k := c.Query("kind"); k != "" {
		kind := domain.TransactionKind(k)
		params.Kind = &kind
	}
	if f := c.Query("from"); f != "" {
		if v, err := strconv.ParseInt(f, 10, 64); err == nil {
			params.From = &v
		}
	}
	if t := c.Query("to"); t != "" {
		if v, err := strconv.ParseInt(t, 10, 64); err == nil {
			params.To = &v
		}
	}

	txns, total, err := h.reportingSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// GetAggregate handles GET /api/v1/reports/aggregate.
func (h *ReportingHandler) GetAggregate(c *gin.Context) {
	params := ports.AggregateParams{}

	if w := c.Query("wallet_id"); w != "" {
		walletID, err := uuid.Parse(w)
		if err != nil {
			response.Error(c, apperror.Validation("wallet_id query parameter must be a valid UUID"))
			return
		}
		params.WalletID = &walletID
	}
	if k := c.Query("kind"); k != "" {
		kind := domain.TransactionKind(k)
		params.Kind = &kind
	}
	if f := c.Query("from"); f != "" {
		if v, err := strconv.ParseInt(f, 10, 64); err == nil {
			params.From = &v
		}
	}
	if t := c.Query("to"); t != "" {
		if v, err := strconv.ParseInt(t, 10, 64); err == nil {
			params.To = &v
		}
	}

	report, err := h.reportingSvc.GetAggregate(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.AggregateResponse{
		TotalCount:     report.TotalCount,
		CompletedCount: report.CompletedCount,
		ReversedCount:  report.ReversedCount,
		TotalCredited:  report.TotalCredited,
		TotalDebited:   report.TotalDebited,
		NetVolume:      report.NetVolume,
		SuccessRate:    report.SuccessRate,
	})
}
