package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const (
	defaultTxRetries      = 3
	defaultIdempotencyTTL = 24 * time.Hour
)

// LedgerOptions tunes the transaction engine.
type LedgerOptions struct {
	// TxRetries is the in-engine retry budget for serialization/deadlock
	// aborts before surfacing a concurrency conflict to the caller.
	TxRetries int
	// IdempotencyTTL bounds the Redis fast-path cache. The database record
	// is authoritative and never expires.
	IdempotencyTTL time.Duration
}

// LedgerServiceImpl implements ports.LedgerService: the transaction engine.
//
// Every mutation runs as one database transaction with the wallet row(s)
// locked FOR UPDATE, so the balance check and the write cannot be split by
// a concurrent caller. Two concurrent debits against the same wallet
// serialize on the row lock; the second sees the committed balance of the
// first.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	transactor ports.DBTransactor
	opts       LedgerOptions
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	opts LedgerOptions,
	log zerolog.Logger,
) *LedgerServiceImpl {
	if opts.TxRetries < 1 {
		opts.TxRetries = defaultTxRetries
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = defaultIdempotencyTTL
	}
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		idempRepo:  idempRepo,
		idempCache: idempCache,
		transactor: transactor,
		opts:       opts,
		log:        log,
	}
}

// Credit increases a wallet balance and appends a completed entry with a
// positive amount. Credits never fail for balance reasons.
func (s *LedgerServiceImpl) Credit(ctx context.Context, req ports.CreditRequest) (*ports.LedgerResult, error) {
	if err := validateAmountAndKind(req.Amount, req.Kind); err != nil {
		return nil, err
	}

	idempKey := scopedKey(req.WalletID, req.IdempotencyKey)
	if prior, err := s.replayLedgerResult(ctx, idempKey); err != nil || prior != nil {
		return prior, err
	}

	var result *ports.LedgerResult
	runErr := s.runInTx(ctx, func(tx pgx.Tx) error {
		wallet, err := s.lockWallet(ctx, tx, req.WalletID)
		if err != nil {
			return err
		}

		entry := newEntry(req.WalletID, req.Amount, req.Kind, req.Description, req.Metadata, req.IdempotencyKey)
		result = &ports.LedgerResult{Transaction: entry, Balance: wallet.Balance + req.Amount}
		return s.persistMutation(ctx, tx, entry, result.Balance, idempKey, result)
	})
	if runErr != nil {
		return s.resolveDuplicate(ctx, idempKey, runErr)
	}

	s.cacheResult(ctx, idempKey, result)
	s.logEntry(result.Transaction, result.Balance, "credit applied")
	return result, nil
}

// Debit decreases a wallet balance and appends a completed entry with a
// negative amount. If the locked balance cannot cover the amount the
// operation aborts with InsufficientFunds and writes nothing: a failed
// debit leaves no trace in the ledger.
func (s *LedgerServiceImpl) Debit(ctx context.Context, req ports.DebitRequest) (*ports.LedgerResult, error) {
	if err := validateAmountAndKind(req.Amount, req.Kind); err != nil {
		return nil, err
	}

	idempKey := scopedKey(req.WalletID, req.IdempotencyKey)
	if prior, err := s.replayLedgerResult(ctx, idempKey); err != nil || prior != nil {
		return prior, err
	}

	var result *ports.LedgerResult
	runErr := s.runInTx(ctx, func(tx pgx.Tx) error {
		wallet, err := s.lockWallet(ctx, tx, req.WalletID)
		if err != nil {
			return err
		}
		if wallet.Balance < req.Amount {
			return apperror.ErrInsufficientFunds()
		}

		entry := newEntry(req.WalletID, -req.Amount, req.Kind, req.Description, req.Metadata, req.IdempotencyKey)
		result = &ports.LedgerResult{Transaction: entry, Balance: wallet.Balance - req.Amount}
		return s.persistMutation(ctx, tx, entry, result.Balance, idempKey, result)
	})
	if runErr != nil {
		return s.resolveDuplicate(ctx, idempKey, runErr)
	}

	s.cacheResult(ctx, idempKey, result)
	s.logEntry(result.Transaction, result.Balance, "debit applied")
	return result, nil
}

// Transfer moves tokens between two wallets as one atomic unit: a debit leg
// on the source and a credit leg on the destination, sharing a correlation
// id. Both legs commit together or neither does.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.FromWalletID == req.ToWalletID {
		return nil, apperror.ErrSameWallet()
	}

	idempKey := scopedKey(req.FromWalletID, req.IdempotencyKey)
	if prior, err := s.replayTransferResult(ctx, idempKey); err != nil || prior != nil {
		return prior, err
	}

	var result *ports.TransferResult
	runErr := s.runInTx(ctx, func(tx pgx.Tx) error {
		from, to, err := s.lockWalletPair(ctx, tx, req.FromWalletID, req.ToWalletID)
		if err != nil {
			return err
		}
		if from.Balance < req.Amount {
			return apperror.ErrInsufficientFunds()
		}

		correlationID := uuid.New()

		outLeg := newEntry(from.ID, -req.Amount, domain.KindTransferOut, req.Description,
			transferMetadata(req.Metadata, correlationID, to.ID), req.IdempotencyKey)
		outLeg.CorrelationID = &correlationID

		inLeg := newEntry(to.ID, req.Amount, domain.KindTransferIn, req.Description,
			transferMetadata(req.Metadata, correlationID, from.ID), "")
		inLeg.CorrelationID = &correlationID

		result = &ports.TransferResult{
			CorrelationID: correlationID,
			FromBalance:   from.Balance - req.Amount,
			ToBalance:     to.Balance + req.Amount,
			OutLeg:        outLeg,
			InLeg:         inLeg,
		}

		if err := s.saveIdempotencyRecord(ctx, tx, idempKey, outLeg.ID, result); err != nil {
			return err
		}
		if err := s.walletRepo.UpdateBalance(ctx, tx, from.ID, result.FromBalance); err != nil {
			return apperror.ErrStorageFailure(fmt.Errorf("update source balance: %w", err))
		}
		if err := s.walletRepo.UpdateBalance(ctx, tx, to.ID, result.ToBalance); err != nil {
			return apperror.ErrStorageFailure(fmt.Errorf("update destination balance: %w", err))
		}
		if err := s.txRepo.Create(ctx, tx, outLeg); err != nil {
			return apperror.ErrStorageFailure(fmt.Errorf("create out leg: %w", err))
		}
		if err := s.txRepo.Create(ctx, tx, inLeg); err != nil {
			return apperror.ErrStorageFailure(fmt.Errorf("create in leg: %w", err))
		}
		return nil
	})
	if runErr != nil {
		if prior, resolved := s.resolveDuplicateTransfer(ctx, idempKey, runErr); resolved {
			return prior, nil
		}
		return nil, runErr
	}

	s.cacheResult(ctx, idempKey, result)
	s.log.Info().
		Str("correlation_id", result.CorrelationID.String()).
		Str("from_wallet", req.FromWalletID.String()).
		Str("to_wallet", req.ToWalletID.String()).
		Int64("amount", req.Amount).
		Msg("transfer applied")
	return result, nil
}

// Reverse appends a compensating entry for a completed transaction and
// marks the original reversed. The original record is never edited beyond
// the status flip; reversing a credit is itself balance-checked.
func (s *LedgerServiceImpl) Reverse(ctx context.Context, req ports.ReverseRequest) (*ports.LedgerResult, error) {
	orig, err := s.txRepo.GetByID(ctx, req.TransactionID)
	if err != nil {
		return nil, apperror.ErrStorageFailure(fmt.Errorf("load original transaction: %w", err))
	}
	if orig == nil {
		return nil, apperror.ErrTransactionNotFound()
	}
	if !orig.IsReversible() {
		return nil, apperror.ErrInvalidReversal()
	}

	idempKey := scopedKey(orig.WalletID, req.IdempotencyKey)
	if prior, err := s.replayLedgerResult(ctx, idempKey); err != nil || prior != nil {
		return prior, err
	}

	var result *ports.LedgerResult
	runErr := s.runInTx(ctx, func(tx pgx.Tx) error {
		wallet, err := s.lockWallet(ctx, tx, orig.WalletID)
		if err != nil {
			return err
		}

		// Re-checked under the row lock: the lookup above was unlocked.
		exists, err := s.txRepo.HasReversal(ctx, tx, orig.ID)
		if err != nil {
			return apperror.ErrStorageFailure(fmt.Errorf("check reversal: %w", err))
		}
		if exists {
			return apperror.ErrInvalidReversal()
		}

		amount := -orig.Amount
		newBalance := wallet.Balance + amount
		if newBalance < 0 {
			return apperror.ErrInsufficientFunds()
		}

		meta := domain.Metadata{domain.MetaReverses: orig.ID.String()}
		entry := newEntry(orig.WalletID, amount, domain.KindRefund, req.Description, meta, req.IdempotencyKey)
		entry.ReversesID = &orig.ID

		if err := s.txRepo.MarkReversed(ctx, tx, orig.ID); err != nil {
			return apperror.ErrInvalidReversal()
		}

		result = &ports.LedgerResult{Transaction: entry, Balance: newBalance}
		return s.persistMutation(ctx, tx, entry, newBalance, idempKey, result)
	})
	if runErr != nil {
		return s.resolveDuplicate(ctx, idempKey, runErr)
	}

	s.cacheResult(ctx, idempKey, result)
	s.log.Info().
		Str("tx_id", result.Transaction.ID.String()).
		Str("reverses", orig.ID.String()).
		Int64("amount", result.Transaction.Amount).
		Msg("reversal applied")
	return result, nil
}

// --- internals ---

func validateAmountAndKind(amount int64, kind domain.TransactionKind) error {
	if amount <= 0 {
		return apperror.ErrInvalidAmount()
	}
	if kind == "" {
		return apperror.Validation("kind is required")
	}
	return nil
}

func scopedKey(walletID uuid.UUID, callerKey string) string {
	if callerKey == "" {
		return ""
	}
	return domain.BuildIdempotencyKey(walletID, callerKey)
}

func newEntry(walletID uuid.UUID, amount int64, kind domain.TransactionKind, description string, meta domain.Metadata, callerKey string) *domain.Transaction {
	t := &domain.Transaction{
		ID:          uuid.New(),
		WalletID:    walletID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		Metadata:    meta,
		Status:      domain.StatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	if callerKey != "" {
		t.IdempotencyKey = &callerKey
	}
	return t
}

func transferMetadata(caller domain.Metadata, correlationID uuid.UUID, counterparty uuid.UUID) domain.Metadata {
	meta := domain.Metadata{}
	for k, v := range caller {
		meta[k] = v
	}
	meta[domain.MetaCorrelationID] = correlationID.String()
	meta[domain.MetaCounterpartyWallet] = counterparty.String()
	return meta
}

// lockWallet fetches the wallet FOR UPDATE inside the transaction.
func (s *LedgerServiceImpl) lockWallet(ctx context.Context, tx pgx.Tx, walletID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByIDForUpdate(ctx, tx, walletID)
	if err != nil {
		return nil, apperror.ErrStorageFailure(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrWalletNotFound()
	}
	return wallet, nil
}

// lockWalletPair locks two wallets in ascending id order so that two
// transfers crossing the same pair in opposite directions cannot deadlock.
func (s *LedgerServiceImpl) lockWalletPair(ctx context.Context, tx pgx.Tx, fromID, toID uuid.UUID) (from, to *domain.Wallet, err error) {
	first, second := fromID, toID
	if bytes.Compare(second[:], first[:]) < 0 {
		first, second = second, first
	}

	w1, err := s.lockWallet(ctx, tx, first)
	if err != nil {
		return nil, nil, err
	}
	w2, err := s.lockWallet(ctx, tx, second)
	if err != nil {
		return nil, nil, err
	}

	if w1.ID == fromID {
		return w1, w2, nil
	}
	return w2, w1, nil
}

// persistMutation writes the idempotency claim, the balance and the ledger
// entry inside the caller's transaction. The claim goes first so a
// concurrent duplicate key aborts before any balance math.
func (s *LedgerServiceImpl) persistMutation(ctx context.Context, tx pgx.Tx, entry *domain.Transaction, balance int64, idempKey string, result any) error {
	if err := s.saveIdempotencyRecord(ctx, tx, idempKey, entry.ID, result); err != nil {
		return err
	}
	if err := s.walletRepo.UpdateBalance(ctx, tx, entry.WalletID, balance); err != nil {
		return apperror.ErrStorageFailure(fmt.Errorf("update balance: %w", err))
	}
	if err := s.txRepo.Create(ctx, tx, entry); err != nil {
		return apperror.ErrStorageFailure(fmt.Errorf("create transaction: %w", err))
	}
	return nil
}

func (s *LedgerServiceImpl) saveIdempotencyRecord(ctx context.Context, tx pgx.Tx, idempKey string, txID uuid.UUID, result any) error {
	if idempKey == "" {
		return nil
	}
	respJSON, err := json.Marshal(result)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}
	rec := &domain.IdempotencyRecord{
		Key:           idempKey,
		TransactionID: txID,
		ResponseJSON:  respJSON,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.idempRepo.Create(ctx, tx, rec); err != nil {
		return apperror.ErrStorageFailure(fmt.Errorf("save idempotency record: %w", err))
	}
	return nil
}

// runInTx executes fn inside a database transaction, retrying on
// serialization/deadlock aborts up to the configured budget.
func (s *LedgerServiceImpl) runInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < s.opts.TxRetries; attempt++ {
		tx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.ErrStorageFailure(fmt.Errorf("begin tx: %w", err))
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback(ctx)
			if isRetryableTxError(err) {
				lastErr = err
				s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("transaction aborted under contention, retrying")
				continue
			}
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			_ = tx.Rollback(ctx)
			if isRetryableTxError(err) {
				lastErr = err
				s.log.Warn().Err(err).Int("attempt", attempt+1).Msg("commit aborted under contention, retrying")
				continue
			}
			return apperror.ErrStorageFailure(fmt.Errorf("commit tx: %w", err))
		}
		return nil
	}
	return apperror.ErrConcurrencyConflict(lastErr)
}

// Postgres class 40 aborts: serialization_failure and deadlock_detected.
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// replayLedgerResult returns the prior result for an idempotency key, or
// nil when the key is unseen. Redis first, database as the authority.
func (s *LedgerServiceImpl) replayLedgerResult(ctx context.Context, idempKey string) (*ports.LedgerResult, error) {
	data, err := s.fetchPriorResponse(ctx, idempKey)
	if err != nil || data == nil {
		return nil, err
	}
	result := &ports.LedgerResult{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached result: %w", err))
	}
	return result, nil
}

func (s *LedgerServiceImpl) replayTransferResult(ctx context.Context, idempKey string) (*ports.TransferResult, error) {
	data, err := s.fetchPriorResponse(ctx, idempKey)
	if err != nil || data == nil {
		return nil, err
	}
	result := &ports.TransferResult{}
	if err := json.Unmarshal(data, result); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached result: %w", err))
	}
	return result, nil
}

func (s *LedgerServiceImpl) fetchPriorResponse(ctx context.Context, idempKey string) ([]byte, error) {
	if idempKey == "" {
		return nil, nil
	}

	cached, err := s.idempCache.Get(ctx, idempKey)
	if err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return cached, nil
	}

	rec, err := s.idempRepo.Get(ctx, idempKey)
	if err != nil {
		return nil, apperror.ErrStorageFailure(fmt.Errorf("db idempotency check: %w", err))
	}
	if rec != nil {
		return rec.ResponseJSON, nil
	}
	return nil, nil
}

// resolveDuplicate maps a unique violation on the idempotency key (two
// racing requests with the same key) to the winner's stored result.
func (s *LedgerServiceImpl) resolveDuplicate(ctx context.Context, idempKey string, runErr error) (*ports.LedgerResult, error) {
	if idempKey != "" && isUniqueViolation(runErr) {
		if prior, err := s.replayLedgerResult(ctx, idempKey); err == nil && prior != nil {
			return prior, nil
		}
	}
	return nil, runErr
}

func (s *LedgerServiceImpl) resolveDuplicateTransfer(ctx context.Context, idempKey string, runErr error) (*ports.TransferResult, bool) {
	if idempKey != "" && isUniqueViolation(runErr) {
		if prior, err := s.replayTransferResult(ctx, idempKey); err == nil && prior != nil {
			return prior, true
		}
	}
	return nil, false
}

// cacheResult stores the response in Redis, best effort.
func (s *LedgerServiceImpl) cacheResult(ctx context.Context, idempKey string, result any) {
	if idempKey == "" {
		return
	}
	respJSON, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := s.idempCache.Set(ctx, idempKey, respJSON, s.opts.IdempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency result in redis")
	}
}

func (s *LedgerServiceImpl) logEntry(t *domain.Transaction, balance int64, msg string) {
	s.log.Info().
		Str("tx_id", t.ID.String()).
		Str("wallet_id", t.WalletID.String()).
		Str("kind", string(t.Kind)).
		Int64("amount", t.Amount).
		Int64("balance", balance).
		Msg(msg)
}
