package service

import (
	"context"
	"errors"
	"testing"

	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports/mocks"

	"github.com/rs/zerolog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestWalletService_GetOrCreate_Existing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	walletRepo := mocks.NewMockWalletRepository(ctrl)
	svc := NewWalletService(walletRepo, zerolog.Nop())

	ctx := context.Background()
	existing := domain.NewWallet("acct-1")
	existing.Balance = 250

	walletRepo.EXPECT().GetByAccountID(ctx, "acct-1").Return(existing, nil)

	wallet, err := svc.GetOrCreate(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, wallet.ID)
	assert.Equal(t, int64(250), wallet.Balance)
}

func TestWalletService_GetOrCreate_FirstUse(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	walletRepo := mocks.NewMockWalletRepository(ctrl)
	svc := NewWalletService(walletRepo, zerolog.Nop())

	ctx := context.Background()
	var created *domain.Wallet

	walletRepo.EXPECT().GetByAccountID(ctx, "acct-new").Return(nil, nil)
	walletRepo.EXPECT().CreateIfAbsent(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, w *domain.Wallet) error {
			created = w
			return nil
		})
	walletRepo.EXPECT().GetByAccountID(ctx, "acct-new").DoAndReturn(
		func(_ context.Context, _ string) (*domain.Wallet, error) {
			return created, nil
		})

	wallet, err := svc.GetOrCreate(ctx, "acct-new")
	require.NoError(t, err)
	assert.Equal(t, "acct-new", wallet.AccountID)
	assert.Equal(t, int64(0), wallet.Balance)
}

func TestWalletService_GetOrCreate_LostRace(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	walletRepo := mocks.NewMockWalletRepository(ctrl)
	svc := NewWalletService(walletRepo, zerolog.Nop())

	ctx := context.Background()
	winner := domain.NewWallet("acct-race")

	// Our insert is a no-op because another caller created the wallet
	// between our lookup and our insert; we must return the winner's row.
	walletRepo.EXPECT().GetByAccountID(ctx, "acct-race").Return(nil, nil)
	walletRepo.EXPECT().CreateIfAbsent(ctx, gomock.Any()).Return(nil)
	walletRepo.EXPECT().GetByAccountID(ctx, "acct-race").Return(winner, nil)

	wallet, err := svc.GetOrCreate(ctx, "acct-race")
	require.NoError(t, err)
	assert.Equal(t, winner.ID, wallet.ID)
}

func TestWalletService_GetOrCreate_EmptyAccountID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := NewWalletService(mocks.NewMockWalletRepository(ctrl), zerolog.Nop())

	wallet, err := svc.GetOrCreate(context.Background(), "")
	assert.Nil(t, wallet)
	assertAppError(t, err, "LED_002")
}

func TestWalletService_Get_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	walletRepo := mocks.NewMockWalletRepository(ctrl)
	svc := NewWalletService(walletRepo, zerolog.Nop())

	ctx := context.Background()
	walletRepo.EXPECT().GetByAccountID(ctx, "missing").Return(nil, nil)

	wallet, err := svc.Get(ctx, "missing")
	assert.Nil(t, wallet)
	assertAppError(t, err, "WAL_001")
}

func TestWalletService_Get_StorageError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	walletRepo := mocks.NewMockWalletRepository(ctrl)
	svc := NewWalletService(walletRepo, zerolog.Nop())

	ctx := context.Background()
	walletRepo.EXPECT().GetByAccountID(ctx, "acct-1").Return(nil, errors.New("connection refused"))

	wallet, err := svc.Get(ctx, "acct-1")
	assert.Nil(t, wallet)
	assertAppError(t, err, "SYS_001")
}
