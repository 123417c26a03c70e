package service

import (
	"context"
	"fmt"

	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService (the wallet directory).
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(walletRepo ports.WalletRepository, log zerolog.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		log:        log,
	}
}

// GetOrCreate resolves the wallet for an account, creating a zero-balance
// wallet on first use. Concurrent first use is safe: the insert is
// create-if-absent, so the loser of the race falls through to the lookup
// and both callers observe the same wallet.
func (s *WalletServiceImpl) GetOrCreate(ctx context.Context, accountID string) (*domain.Wallet, error) {
	if accountID == "" {
		return nil, apperror.Validation("account id is required")
	}

	wallet, err := s.walletRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrStorageFailure(fmt.Errorf("lookup wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	candidate := domain.NewWallet(accountID)
	if err := s.walletRepo.CreateIfAbsent(ctx, candidate); err != nil {
		return nil, apperror.ErrStorageFailure(fmt.Errorf("create wallet: %w", err))
	}

	wallet, err = s.walletRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrStorageFailure(fmt.Errorf("lookup wallet after create: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrStorageFailure(fmt.Errorf("wallet vanished after create: %s", accountID))
	}

	if wallet.ID == candidate.ID {
		s.log.Info().
			Str("wallet_id", wallet.ID.String()).
			Str("account_id", accountID).
			Msg("wallet created on first use")
	}
	return wallet, nil
}

// Get is a pure lookup with no side effects.
func (s *WalletServiceImpl) Get(ctx context.Context, accountID string) (*domain.Wallet, error) {
	if accountID == "" {
		return nil, apperror.Validation("account id is required")
	}

	wallet, err := s.walletRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, apperror.ErrStorageFailure(fmt.Errorf("lookup wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}
