package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository. Ledger entries are
// append-only: there is no update path except the completed->reversed status
// flip, and no delete path at all.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, wallet_id, amount, kind, description, metadata,
		status, idempotency_key, correlation_id, reverses_id, created_at`

// Create appends a ledger entry within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	metaJSON, err := marshalMetadata(t.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = tx.Exec(ctx, query,
		t.ID, t.WalletID, t.Amount, t.Kind, t.Description, metaJSON,
		t.Status, t.IdempotencyKey, t.CorrelationID, t.ReversesID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// MarkReversed flips a completed entry to reversed. All other fields stay
// untouched; compensation lives in the new entry referencing this one.
func (r *TransactionRepo) MarkReversed(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE transactions SET status = $1 WHERE id = $2 AND status = $3`

	tag, err := tx.Exec(ctx, query, domain.StatusReversed, id, domain.StatusCompleted)
	if err != nil {
		return fmt.Errorf("mark transaction reversed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not reversible: %s", id)
	}
	return nil
}

// HasReversal checks, inside the caller's transaction, whether a
// compensating entry already exists for the original transaction.
func (r *TransactionRepo) HasReversal(ctx context.Context, tx pgx.Tx, originalID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions WHERE reverses_id = $1 AND status = $2)`

	var exists bool
	if err := tx.QueryRow(ctx, query, originalID, domain.StatusCompleted).Scan(&exists); err != nil {
		return false, fmt.Errorf("check reversal exists: %w", err)
	}
	return exists, nil
}

// List fetches ledger entries with filtering and pagination, newest first.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
	args = append(args, params.WalletID)
	argIdx++

	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= to_timestamp($%d)", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= to_timestamp($%d)", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT `+transactionColumns+`
		FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransactionRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// GetAggregate computes reporting figures directly from committed entries.
// There is deliberately no cached counter to drift away from the ledger.
func (r *TransactionRepo) GetAggregate(ctx context.Context, params ports.AggregateParams) (*ports.Aggregate, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.WalletID != nil {
		conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
		args = append(args, *params.WalletID)
		argIdx++
	}
	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= to_timestamp($%d)", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= to_timestamp($%d)", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'completed') AS completed,
		COUNT(*) FILTER (WHERE status = 'reversed') AS reversed,
		COALESCE(SUM(amount) FILTER (WHERE amount > 0 AND status = 'completed'), 0) AS credited,
		COALESCE(SUM(-amount) FILTER (WHERE amount < 0 AND status = 'completed'), 0) AS debited
		FROM transactions %s`, where)

	agg := &ports.Aggregate{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&agg.TotalCount, &agg.CompletedCount, &agg.ReversedCount,
		&agg.TotalCredited, &agg.TotalDebited,
	)
	if err != nil {
		return nil, fmt.Errorf("get transaction aggregate: %w", err)
	}
	agg.NetVolume = agg.TotalCredited - agg.TotalDebited
	return agg, nil
}

// SumCompleted replays all completed signed amounts for a wallet.
func (r *TransactionRepo) SumCompleted(ctx context.Context, walletID uuid.UUID) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE wallet_id = $1 AND status IN ($2, $3)`

	// Reversed entries stay in the sum: their economic effect was real and
	// is undone by the compensating entry, not by excluding them.
	var sum int64
	err := r.pool.QueryRow(ctx, query, walletID, domain.StatusCompleted, domain.StatusReversed).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum completed transactions: %w", err)
	}
	return sum, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var metaJSON []byte
	err := row.Scan(
		&t.ID, &t.WalletID, &t.Amount, &t.Kind, &t.Description, &metaJSON,
		&t.Status, &t.IdempotencyKey, &t.CorrelationID, &t.ReversesID, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	if err := unmarshalMetadata(metaJSON, t); err != nil {
		return nil, err
	}
	return t, nil
}

func scanTransactionRow(rows pgx.Rows) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var metaJSON []byte
	err := rows.Scan(
		&t.ID, &t.WalletID, &t.Amount, &t.Kind, &t.Description, &metaJSON,
		&t.Status, &t.IdempotencyKey, &t.CorrelationID, &t.ReversesID, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalMetadata(metaJSON, t); err != nil {
		return nil, err
	}
	return t, nil
}

func marshalMetadata(m domain.Metadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalMetadata(data []byte, t *domain.Transaction) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &t.Metadata); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	return nil
}
