package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ludo-arena-backend/internal/model"
)

const depositColumns = `id, user_id, amount, channel_id, utr, status, reviewed_by, reviewed_at, created_at`

// DepositRepository handles manual UPI deposit requests.
type DepositRepository struct {
	db Querier
}

// NewDepositRepository creates a new DepositRepository instance.
func NewDepositRepository(db Querier) *DepositRepository {
	return &DepositRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *DepositRepository) WithTx(tx pgx.Tx) *DepositRepository {
	return &DepositRepository{db: tx}
}

func scanDeposit(row pgx.Row) (*model.Deposit, error) {
	var d model.Deposit
	err := row.Scan(
		&d.ID, &d.UserID, &d.Amount, &d.ChannelID, &d.UTR,
		&d.Status, &d.ReviewedBy, &d.ReviewedAt, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("failed to scan deposit: %w", err)
	}
	return &d, nil
}

// Create inserts a pending deposit request.
func (r *DepositRepository) Create(ctx context.Context, userID, amount, channelID int64, utr string) (*model.Deposit, error) {
	query := `
		INSERT INTO deposits (user_id, amount, channel_id, utr, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + depositColumns

	deposit, err := scanDeposit(r.db.QueryRow(ctx, query, userID, amount, channelID, utr, model.ReviewPending))
	if err != nil {
		return nil, fmt.Errorf("failed to create deposit: %w", err)
	}
	return deposit, nil
}

// GetByIDForUpdate retrieves a deposit with a row lock. Must be
// called inside a transaction.
func (r *DepositRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1 FOR UPDATE`
	return scanDeposit(r.db.QueryRow(ctx, query, id))
}

// GetByID retrieves a deposit. Returns ErrDepositNotFound if absent.
func (r *DepositRepository) GetByID(ctx context.Context, id int64) (*model.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE id = $1`
	return scanDeposit(r.db.QueryRow(ctx, query, id))
}

// Review flips a pending deposit to its final status and records the
// reviewing admin. Status transitions are one-way.
func (r *DepositRepository) Review(ctx context.Context, id, reviewerID int64, status string) (*model.Deposit, error) {
	query := `
		UPDATE deposits
		SET status = $3, reviewed_by = $2, reviewed_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + depositColumns

	return scanDeposit(r.db.QueryRow(ctx, query, id, reviewerID, status))
}

// ListByStatus returns deposits in one status, oldest first.
func (r *DepositRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*model.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE status = $1 ORDER BY created_at ASC LIMIT $2`

	rows, err := r.db.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*model.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposits: %w", err)
	}
	return deposits, nil
}

// ListByUser returns a user's deposit requests, newest first.
func (r *DepositRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Deposit, error) {
	query := `SELECT ` + depositColumns + ` FROM deposits WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*model.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deposits: %w", err)
	}
	return deposits, nil
}

const withdrawalColumns = `id, user_id, amount, upi_id, status, utr, reviewed_by, reviewed_at, created_at`

// WithdrawalRepository handles payout requests.
type WithdrawalRepository struct {
	db Querier
}

// NewWithdrawalRepository creates a new WithdrawalRepository instance.
func NewWithdrawalRepository(db Querier) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *WithdrawalRepository) WithTx(tx pgx.Tx) *WithdrawalRepository {
	return &WithdrawalRepository{db: tx}
}

func scanWithdrawal(row pgx.Row) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := row.Scan(
		&w.ID, &w.UserID, &w.Amount, &w.UpiID, &w.Status,
		&w.UTR, &w.ReviewedBy, &w.ReviewedAt, &w.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to scan withdrawal: %w", err)
	}
	return &w, nil
}

// Create inserts a pending withdrawal request.
func (r *WithdrawalRepository) Create(ctx context.Context, userID, amount int64, upiID string) (*model.Withdrawal, error) {
	query := `
		INSERT INTO withdrawals (user_id, amount, upi_id, status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING ` + withdrawalColumns

	withdrawal, err := scanWithdrawal(r.db.QueryRow(ctx, query, userID, amount, upiID, model.ReviewPending))
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}
	return withdrawal, nil
}

// GetByIDForUpdate retrieves a withdrawal with a row lock. Must be
// called inside a transaction.
func (r *WithdrawalRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`
	return scanWithdrawal(r.db.QueryRow(ctx, query, id))
}

// GetByID retrieves a withdrawal. Returns ErrWithdrawalNotFound if absent.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id int64) (*model.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`
	return scanWithdrawal(r.db.QueryRow(ctx, query, id))
}

// Review flips a pending withdrawal to its final status. On approval
// utr carries the payout reference; on rejection it is nil.
func (r *WithdrawalRepository) Review(ctx context.Context, id, reviewerID int64, status string, utr *string) (*model.Withdrawal, error) {
	query := `
		UPDATE withdrawals
		SET status = $3, utr = $4, reviewed_by = $2, reviewed_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + withdrawalColumns

	return scanWithdrawal(r.db.QueryRow(ctx, query, id, reviewerID, status, utr))
}

// ListByStatus returns withdrawals in one status, oldest first.
func (r *WithdrawalRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*model.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE status = $1 ORDER BY created_at ASC LIMIT $2`

	rows, err := r.db.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []*model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawals: %w", err)
	}
	return withdrawals, nil
}

// ListByUser returns a user's withdrawal requests, newest first.
func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []*model.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating withdrawals: %w", err)
	}
	return withdrawals, nil
}
