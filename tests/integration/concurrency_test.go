package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/internal/service"
	"token-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stack struct {
	walletRepo *inMemoryWalletRepo
	txRepo     *inMemoryTransactionRepo
	walletSvc  ports.WalletService
	ledgerSvc  ports.LedgerService
	reportSvc  ports.ReportingService
}

func newStack() *stack {
	walletRepo := newInMemoryWalletRepo()
	txRepo := newInMemoryTransactionRepo()
	idempRepo := newInMemoryIdempotencyRepo()
	idempCache := newInMemoryIdempotencyCache()
	transactor := newSerializingTransactor()
	log := zerolog.Nop()

	return &stack{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		walletSvc:  service.NewWalletService(walletRepo, log),
		ledgerSvc: service.NewLedgerService(
			walletRepo, txRepo, idempRepo, idempCache, transactor,
			service.LedgerOptions{}, log,
		),
		reportSvc: service.NewReportingService(walletRepo, txRepo, log),
	}
}

func (s *stack) fundedWallet(t *testing.T, accountID string, balance int64) *domain.Wallet {
	t.Helper()
	ctx := context.Background()
	w, err := s.walletSvc.GetOrCreate(ctx, accountID)
	require.NoError(t, err)
	if balance > 0 {
		_, err = s.ledgerSvc.Credit(ctx, ports.CreditRequest{
			WalletID: w.ID,
			Amount:   balance,
			Kind:     domain.KindAdjustment,
		})
		require.NoError(t, err)
	}
	return w
}

func (s *stack) balance(t *testing.T, walletID uuid.UUID) int64 {
	t.Helper()
	b, err := s.reportSvc.GetBalance(context.Background(), walletID)
	require.NoError(t, err)
	return b
}

func (s *stack) assertConsistent(t *testing.T, walletID uuid.UUID) {
	t.Helper()
	rec, err := s.reportSvc.Reconcile(context.Background(), walletID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent,
		"balance %d diverged from ledger sum %d", rec.Balance, rec.LedgerSum)
}

// Two concurrent 80-token debits against a 100-token wallet: exactly one
// may win, and the balance must never go negative.
func TestConcurrentDebits_OnlyOneWins(t *testing.T) {
	s := newStack()
	ctx := context.Background()
	w := s.fundedWallet(t, "acct-contended", 100)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledgerSvc.Debit(ctx, ports.DebitRequest{
				WalletID: w.ID,
				Amount:   80,
				Kind:     domain.KindPurchase,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, rejections int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		var appErr *apperror.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "LED_001", appErr.Code)
		rejections++
	}

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, rejections)
	assert.Equal(t, int64(20), s.balance(t, w.ID))
	s.assertConsistent(t, w.ID)
}

// Concurrent transfers around a ring of wallets must conserve total supply.
func TestConcurrentTransfers_ConserveSupply(t *testing.T) {
	s := newStack()
	ctx := context.Background()

	wallets := []*domain.Wallet{
		s.fundedWallet(t, "ring-0", 1000),
		s.fundedWallet(t, "ring-1", 1000),
		s.fundedWallet(t, "ring-2", 1000),
	}

	const rounds = 20
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		for j := range wallets {
			wg.Add(1)
			go func(from, to uuid.UUID) {
				defer wg.Done()
				// Insufficient-funds rejections are fine; partial
				// application is not.
				_, _ = s.ledgerSvc.Transfer(ctx, ports.TransferRequest{
					FromWalletID: from,
					ToWalletID:   to,
					Amount:       70,
				})
			}(wallets[j].ID, wallets[(j+1)%len(wallets)].ID)
		}
	}
	wg.Wait()

	var total int64
	for _, w := range wallets {
		b := s.balance(t, w.ID)
		assert.GreaterOrEqual(t, b, int64(0))
		total += b
		s.assertConsistent(t, w.ID)
	}
	assert.Equal(t, int64(3000), total)
}

// Concurrent retries with one idempotency key must apply the debit once.
func TestConcurrentIdempotentDebits_AppliedOnce(t *testing.T) {
	s := newStack()
	ctx := context.Background()
	w := s.fundedWallet(t, "acct-idem", 500)

	const workers = 6
	var wg sync.WaitGroup
	results := make(chan *ports.LedgerResult, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.ledgerSvc.Debit(ctx, ports.DebitRequest{
				WalletID:       w.ID,
				Amount:         100,
				Kind:           domain.KindPurchase,
				IdempotencyKey: "order-42",
			})
			if err == nil {
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	var ids []uuid.UUID
	for res := range results {
		ids = append(ids, res.Transaction.ID)
	}
	require.Len(t, ids, workers, "every retry should observe the original outcome")
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}

	assert.Equal(t, int64(400), s.balance(t, w.ID))
	s.assertConsistent(t, w.ID)
}

// Concurrent first use of one account must end with exactly one wallet.
func TestConcurrentWalletCreation_SingleWallet(t *testing.T) {
	s := newStack()
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan uuid.UUID, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := s.walletSvc.GetOrCreate(ctx, "acct-fresh")
			if err == nil {
				results <- w.ID
			}
		}()
	}
	wg.Wait()
	close(results)

	var ids []uuid.UUID
	for id := range results {
		ids = append(ids, id)
	}
	require.Len(t, ids, workers)
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
}

// Two concurrent reversals of one transaction: only one compensating entry.
func TestConcurrentReversals_SingleCompensation(t *testing.T) {
	s := newStack()
	ctx := context.Background()
	w := s.fundedWallet(t, "acct-reverse", 100)

	debit, err := s.ledgerSvc.Debit(ctx, ports.DebitRequest{
		WalletID: w.ID,
		Amount:   80,
		Kind:     domain.KindPurchase,
	})
	require.NoError(t, err)

	const workers = 4
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledgerSvc.Reverse(ctx, ports.ReverseRequest{
				TransactionID: debit.Transaction.ID,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var wins int
	for err := range errs {
		if err == nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, int64(100), s.balance(t, w.ID))
	s.assertConsistent(t, w.ID)
}
