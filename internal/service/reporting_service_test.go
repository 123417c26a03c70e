package service

import (
	"context"
	"testing"

	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type reportingTestDeps struct {
	svc        *ReportingServiceImpl
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	ctrl       *gomock.Controller
}

func setupReportingService(t *testing.T) *reportingTestDeps {
	ctrl := gomock.NewController(t)
	d := &reportingTestDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		ctrl:       ctrl,
	}
	d.svc = NewReportingService(d.walletRepo, d.txRepo, zerolog.Nop())
	return d
}

func TestReportingService_GetBalance(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(&domain.Wallet{
		ID: walletID, Balance: 420,
	}, nil)

	balance, err := d.svc.GetBalance(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(420), balance)
}

func TestReportingService_GetBalance_NotFound(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(nil, nil)

	_, err := d.svc.GetBalance(ctx, walletID)
	assertAppError(t, err, "WAL_001")
}

func TestReportingService_ListTransactions_NormalizesPaging(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(&domain.Wallet{ID: walletID}, nil)
	d.txRepo.EXPECT().List(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
			assert.Equal(t, 1, params.Page)
			assert.Equal(t, defaultPageSize, params.PageSize)
			return []domain.Transaction{{ID: uuid.New(), WalletID: walletID}}, 1, nil
		})

	txs, total, err := d.svc.ListTransactions(ctx, ports.TransactionListParams{
		WalletID: walletID,
		Page:     0,
		PageSize: 0,
	})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, int64(1), total)
}

func TestReportingService_ListTransactions_CapsPageSize(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(&domain.Wallet{ID: walletID}, nil)
	d.txRepo.EXPECT().List(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
			assert.Equal(t, maxPageSize, params.PageSize)
			return nil, 0, nil
		})

	_, _, err := d.svc.ListTransactions(ctx, ports.TransactionListParams{
		WalletID: walletID,
		Page:     1,
		PageSize: 5000,
	})
	require.NoError(t, err)
}

func TestReportingService_ListTransactions_WalletNotFound(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(nil, nil)

	_, _, err := d.svc.ListTransactions(ctx, ports.TransactionListParams{WalletID: walletID})
	assertAppError(t, err, "WAL_001")
}

func TestReportingService_GetAggregate(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.txRepo.EXPECT().GetAggregate(ctx, gomock.Any()).Return(&ports.Aggregate{
		TotalCount:     10,
		CompletedCount: 7,
		ReversedCount:  2,
		TotalCredited:  1000,
		TotalDebited:   400,
		NetVolume:      600,
	}, nil)

	report, err := d.svc.GetAggregate(ctx, ports.AggregateParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(10), report.TotalCount)
	assert.InDelta(t, 0.9, report.SuccessRate, 1e-9)
}

func TestReportingService_GetAggregate_Empty(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()

	d.txRepo.EXPECT().GetAggregate(ctx, gomock.Any()).Return(&ports.Aggregate{}, nil)

	report, err := d.svc.GetAggregate(ctx, ports.AggregateParams{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.SuccessRate)
}

func TestReportingService_Reconcile_Consistent(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(&domain.Wallet{
		ID: walletID, Balance: 600,
	}, nil)
	d.txRepo.EXPECT().SumCompleted(ctx, walletID).Return(int64(600), nil)

	rec, err := d.svc.Reconcile(ctx, walletID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, int64(600), rec.Balance)
	assert.Equal(t, int64(600), rec.LedgerSum)
}

func TestReportingService_Reconcile_Mismatch(t *testing.T) {
	d := setupReportingService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(&domain.Wallet{
		ID: walletID, Balance: 600,
	}, nil)
	d.txRepo.EXPECT().SumCompleted(ctx, walletID).Return(int64(550), nil)

	rec, err := d.svc.Reconcile(ctx, walletID)
	require.NoError(t, err)
	assert.False(t, rec.Consistent)
}
