package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ludo-arena-backend/internal/model"
)

const userColumns = `id, phone, username, password_hash, balance, winnings,
	kyc_status, status, role, referral_code, referred_by,
	games_played, games_won, total_deposited, total_withdrawn,
	created_at, updated_at`

// UserRepository handles user account persistence.
type UserRepository struct {
	db Querier
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Phone, &u.Username, &u.PasswordHash, &u.Balance, &u.Winnings,
		&u.KYCStatus, &u.Status, &u.Role, &u.ReferralCode, &u.ReferredBy,
		&u.GamesPlayed, &u.GamesWon, &u.TotalDeposited, &u.TotalWithdrawn,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// Create inserts a new user account. Wallet buckets start at zero;
// the signup bonus is a separate ledger-backed credit.
func (r *UserRepository) Create(ctx context.Context, phone, username, passwordHash, referralCode string, referredBy *int64) (*model.User, error) {
	query := `
		INSERT INTO users (phone, username, password_hash, referral_code, referred_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, phone, username, passwordHash, referralCode, referredBy))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID. Returns ErrUserNotFound if absent.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// GetByIDForUpdate retrieves a user by ID with a row lock. Must be
// called inside a transaction.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return scanUser(r.db.QueryRow(ctx, query, id))
}

// GetByPhone retrieves a user by phone number.
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	return scanUser(r.db.QueryRow(ctx, query, phone))
}

// GetByReferralCode retrieves a user by their referral code.
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referral_code = $1`
	return scanUser(r.db.QueryRow(ctx, query, code))
}

// ApplyToBucket adds amount (negative to debit) to the selected wallet
// bucket. The conditional WHERE refuses any debit that would take the
// bucket negative, so sufficiency is enforced by the database rather
// than by a read-then-write at the call site.
func (r *UserRepository) ApplyToBucket(ctx context.Context, userID int64, bucket string, amount int64) (*model.User, error) {
	if bucket != model.BucketBalance && bucket != model.BucketWinnings {
		return nil, fmt.Errorf("unknown wallet bucket %q", bucket)
	}

	// bucket is one of two fixed identifiers, never caller input.
	query := fmt.Sprintf(`
		UPDATE users
		SET %[1]s = %[1]s + $2, updated_at = NOW()
		WHERE id = $1 AND %[1]s + $2 >= 0
		RETURNING `+userColumns, bucket)

	user, err := scanUser(r.db.QueryRow(ctx, query, userID, amount))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Row missing: either no such user or the debit would
			// overdraw. Re-check to report the right error.
			if _, getErr := r.GetByID(ctx, userID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("failed to update %s: %w", bucket, err)
	}
	return user, nil
}

// SetKYCStatus updates the KYC verification state.
func (r *UserRepository) SetKYCStatus(ctx context.Context, userID int64, status string) error {
	result, err := r.db.Exec(ctx, `UPDATE users SET kyc_status = $2, updated_at = NOW() WHERE id = $1`, userID, status)
	if err != nil {
		return fmt.Errorf("failed to set kyc status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetStatus updates the account state (active/suspended).
func (r *UserRepository) SetStatus(ctx context.Context, userID int64, status string) error {
	result, err := r.db.Exec(ctx, `UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1`, userID, status)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetRole updates the admin role of a user.
func (r *UserRepository) SetRole(ctx context.Context, userID int64, role string) error {
	result, err := r.db.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, userID, role)
	if err != nil {
		return fmt.Errorf("failed to set role: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RecordGameResult bumps the lifetime game counters for one player.
func (r *UserRepository) RecordGameResult(ctx context.Context, userID int64, won bool) error {
	wonInc := 0
	if won {
		wonInc = 1
	}
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET games_played = games_played + 1, games_won = games_won + $2, updated_at = NOW()
		WHERE id = $1
	`, userID, wonInc)
	if err != nil {
		return fmt.Errorf("failed to record game result: %w", err)
	}
	return nil
}

// AddTotalDeposited bumps the lifetime deposit counter.
func (r *UserRepository) AddTotalDeposited(ctx context.Context, userID int64, amount int64) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET total_deposited = total_deposited + $2, updated_at = NOW() WHERE id = $1`, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to add total deposited: %w", err)
	}
	return nil
}

// AddTotalWithdrawn bumps the lifetime withdrawal counter.
func (r *UserRepository) AddTotalWithdrawn(ctx context.Context, userID int64, amount int64) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET total_withdrawn = total_withdrawn + $2, updated_at = NOW() WHERE id = $1`, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to add total withdrawn: %w", err)
	}
	return nil
}

// List returns users ordered by creation time, newest first.
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
