package postgres

import (
	"context"
	"testing"
	"time"

	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(walletID uuid.UUID, amount int64) *domain.Transaction {
	return &domain.Transaction{
		ID:        uuid.New(),
		WalletID:  walletID,
		Amount:    amount,
		Kind:      domain.KindPurchase,
		Status:    domain.StatusCompleted,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func transactionTestColumns() []string {
	return []string{
		"id", "wallet_id", "amount", "kind", "description", "metadata",
		"status", "idempotency_key", "correlation_id", "reverses_id", "created_at",
	}
}

func transactionRow(tx *domain.Transaction) *pgxmock.Rows {
	return pgxmock.NewRows(transactionTestColumns()).AddRow(
		tx.ID, tx.WalletID, tx.Amount, tx.Kind, tx.Description, []byte(nil),
		tx.Status, tx.IdempotencyKey, tx.CorrelationID, tx.ReversesID, tx.CreatedAt,
	)
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	txn := newTestTransaction(walletID, -80)
	txn.Description = "item purchase"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.WalletID, txn.Amount, txn.Kind, txn.Description, pgxmock.AnyArg(),
			txn.Status, txn.IdempotencyKey, txn.CorrelationID, txn.ReversesID, txn.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), 500)

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(transactionRow(txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.Equal(t, int64(500), result.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(transactionTestColumns()))

	result, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_MarkReversed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET status").
		WithArgs(domain.StatusReversed, id, domain.StatusCompleted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.MarkReversed(context.Background(), tx, id)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_MarkReversed_NotCompleted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	// The conditional update matches nothing when the entry is not completed.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET status").
		WithArgs(domain.StatusReversed, id, domain.StatusCompleted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.MarkReversed(context.Background(), tx, id)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not reversible")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_HasReversal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	origID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(origID, domain.StatusCompleted).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	exists, err := repo.HasReversal(context.Background(), tx, origID)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	txn1 := newTestTransaction(walletID, 500)
	txn2 := newTestTransaction(walletID, -80)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery("SELECT .+ FROM transactions .+ ORDER BY created_at DESC").
		WithArgs(walletID, 20, 0).
		WillReturnRows(pgxmock.NewRows(transactionTestColumns()).
			AddRow(txn1.ID, txn1.WalletID, txn1.Amount, txn1.Kind, txn1.Description, []byte(nil),
				txn1.Status, txn1.IdempotencyKey, txn1.CorrelationID, txn1.ReversesID, txn1.CreatedAt).
			AddRow(txn2.ID, txn2.WalletID, txn2.Amount, txn2.Kind, txn2.Description, []byte(nil),
				txn2.Status, txn2.IdempotencyKey, txn2.CorrelationID, txn2.ReversesID, txn2.CreatedAt))

	txs, total, err := repo.List(context.Background(), ports.TransactionListParams{
		WalletID: walletID,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, txs, 2)
	assert.Equal(t, txn1.ID, txs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List_WithFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	kind := domain.KindPurchase
	status := domain.StatusCompleted
	from := int64(1700000000)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(walletID, kind, status, from).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT .+ FROM transactions").
		WithArgs(walletID, kind, status, from, 20, 0).
		WillReturnRows(pgxmock.NewRows(transactionTestColumns()))

	txs, total, err := repo.List(context.Background(), ports.TransactionListParams{
		WalletID: walletID,
		Kind:     &kind,
		Status:   &status,
		From:     &from,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, txs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetAggregate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM transactions").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows(
			[]string{"total", "completed", "reversed", "credited", "debited"},
		).AddRow(int64(10), int64(7), int64(2), int64(1000), int64(400)))

	agg, err := repo.GetAggregate(context.Background(), ports.AggregateParams{WalletID: &walletID})
	require.NoError(t, err)
	assert.Equal(t, int64(10), agg.TotalCount)
	assert.Equal(t, int64(7), agg.CompletedCount)
	assert.Equal(t, int64(2), agg.ReversedCount)
	assert.Equal(t, int64(1000), agg.TotalCredited)
	assert.Equal(t, int64(400), agg.TotalDebited)
	assert.Equal(t, int64(600), agg.NetVolume)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumCompleted(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(walletID, domain.StatusCompleted, domain.StatusReversed).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(int64(420)))

	sum, err := repo.SumCompleted(context.Background(), walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(420), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}
