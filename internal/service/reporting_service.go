package service

import (
	"context"
	"fmt"

	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ReportingServiceImpl implements ports.ReportingService. All queries are
// plain reads against committed state; none of them take wallet row locks.
type ReportingServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	log        zerolog.Logger
}

// NewReportingService creates a new ReportingServiceImpl.
func NewReportingService(walletRepo ports.WalletRepository, txRepo ports.TransactionRepository, log zerolog.Logger) *ReportingServiceImpl {
	return &ReportingServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		log:        log,
	}
}

// GetBalance returns the committed balance of a wallet.
func (s *ReportingServiceImpl) GetBalance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return 0, apperror.ErrStorageFailure(fmt.Errorf("lookup wallet: %w", err))
	}
	if wallet == nil {
		return 0, apperror.ErrWalletNotFound()
	}
	return wallet.Balance, nil
}

// ListTransactions returns a page of a wallet's history, newest first,
// along with the total count across all pages.
func (s *ReportingServiceImpl) ListTransactions(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	wallet, err := s.walletRepo.GetByID(ctx, params.WalletID)
	if err != nil {
		return nil, 0, apperror.ErrStorageFailure(fmt.Errorf("lookup wallet: %w", err))
	}
	if wallet == nil {
		return nil, 0, apperror.ErrWalletNotFound()
	}

	txs, total, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrStorageFailure(fmt.Errorf("list transactions: %w", err))
	}
	return txs, total, nil
}

// GetAggregate returns volume and count figures over an optional wallet,
// kind and time window.
func (s *ReportingServiceImpl) GetAggregate(ctx context.Context, params ports.AggregateParams) (*ports.AggregateReport, error) {
	agg, err := s.txRepo.GetAggregate(ctx, params)
	if err != nil {
		return nil, apperror.ErrStorageFailure(fmt.Errorf("aggregate transactions: %w", err))
	}

	report := &ports.AggregateReport{Aggregate: *agg, SuccessRate: 1.0}
	if agg.TotalCount > 0 {
		report.SuccessRate = float64(agg.CompletedCount+agg.ReversedCount) / float64(agg.TotalCount)
	}
	return report, nil
}

// Reconcile replays the wallet's ledger and compares the sum against the
// stored balance. A mismatch means the append-only history and the balance
// have diverged, which should never happen.
func (s *ReportingServiceImpl) Reconcile(ctx context.Context, walletID uuid.UUID) (*ports.Reconciliation, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.ErrStorageFailure(fmt.Errorf("lookup wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}

	sum, err := s.txRepo.SumCompleted(ctx, walletID)
	if err != nil {
		return nil, apperror.ErrStorageFailure(fmt.Errorf("sum ledger: %w", err))
	}

	rec := &ports.Reconciliation{
		WalletID:   walletID,
		Balance:    wallet.Balance,
		LedgerSum:  sum,
		Consistent: wallet.Balance == sum,
	}
	if !rec.Consistent {
		s.log.Error().
			Str("wallet_id", walletID.String()).
			Int64("balance", rec.Balance).
			Int64("ledger_sum", rec.LedgerSum).
			Msg("reconciliation mismatch between balance and ledger")
	}
	return rec, nil
}
