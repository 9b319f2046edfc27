package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ludo-arena-backend/internal/model"
)

// LedgerRepository handles the append-only transaction log. Entries
// are created alongside every wallet mutation and never updated.
type LedgerRepository struct {
	db Querier
}

// NewLedgerRepository creates a new LedgerRepository instance.
func NewLedgerRepository(db Querier) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *LedgerRepository) WithTx(tx pgx.Tx) *LedgerRepository {
	return &LedgerRepository{db: tx}
}

// Create appends a ledger entry.
func (r *LedgerRepository) Create(ctx context.Context, userID, amount int64, bucket, txType string, notes *string) (*model.Transaction, error) {
	const query = `
		INSERT INTO transactions (user_id, amount, bucket, type, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, user_id, amount, bucket, type, notes, created_at
	`

	var tx model.Transaction
	err := r.db.QueryRow(ctx, query, userID, amount, bucket, txType, notes).Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Amount,
		&tx.Bucket,
		&tx.Type,
		&tx.Notes,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return &tx, nil
}

// ListByUser retrieves a user's ledger entries, newest first.
func (r *LedgerRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	const query = `
		SELECT id, user_id, amount, bucket, type, notes, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	return r.list(ctx, query, userID, limit)
}

// ListByUserAndType retrieves a user's ledger entries of one type.
func (r *LedgerRepository) ListByUserAndType(ctx context.Context, userID int64, txType string, limit int) ([]*model.Transaction, error) {
	const query = `
		SELECT id, user_id, amount, bucket, type, notes, created_at
		FROM transactions
		WHERE user_id = $1 AND type = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`
	return r.list(ctx, query, userID, txType, limit)
}

// SumByUser returns the signed sum of all ledger amounts for a user.
// Invariant: equals the net change of balance + winnings since signup.
func (r *LedgerRepository) SumByUser(ctx context.Context, userID int64) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`

	var sum int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return sum, nil
}

// SumByUserAndBucket returns the signed ledger sum for one wallet bucket.
func (r *LedgerRepository) SumByUserAndBucket(ctx context.Context, userID int64, bucket string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1 AND bucket = $2`

	var sum int64
	if err := r.db.QueryRow(ctx, query, userID, bucket).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger bucket: %w", err)
	}
	return sum, nil
}

func (r *LedgerRepository) list(ctx context.Context, query string, args ...any) ([]*model.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.Transaction
	for rows.Next() {
		var tx model.Transaction
		err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.Amount,
			&tx.Bucket,
			&tx.Type,
			&tx.Notes,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}
