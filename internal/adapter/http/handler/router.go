package handler

import (
	"token-ledger/internal/adapter/http/middleware"
	"token-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	LedgerSvc      ports.LedgerService
	ReportingSvc   ports.ReportingService
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Deep health check: verifies PostgreSQL + Redis
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	v1 := r.Group("/api/v1")

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.ReportingSvc)
	wallets := v1.Group("/wallets")
	{
		wallets.POST("", walletHandler.Create)
		wallets.GET("/:account_id", walletHandler.Get)
		wallets.GET("/:account_id/balance", walletHandler.GetBalance)
		wallets.GET("/:account_id/reconcile", walletHandler.Reconcile)
	}

	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	ledger := v1.Group("/ledger")
	{
		ledger.POST("/credit", ledgerHandler.Credit)
		ledger.POST("/debit", ledgerHandler.Debit)
		ledger.POST("/transfer", ledgerHandler.Transfer)
		ledger.POST("/reverse", ledgerHandler.Reverse)
	}

	reportingHandler := NewReportingHandler(deps.ReportingSvc)
	v1.GET("/transactions", reportingHandler.ListTransactions)
	v1.GET("/reports/aggregate", reportingHandler.GetAggregate)

	return r
}
