package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ludo-arena-backend/internal/model"
)

const battleColumns = `id, amount, status, creator_id, opponent_id, winner_id,
	claimant_id, room_code, commission_bps, screenshot_url, created_at, updated_at`

// BattleRepository handles wagered match persistence.
type BattleRepository struct {
	db Querier
}

// NewBattleRepository creates a new BattleRepository instance.
func NewBattleRepository(db Querier) *BattleRepository {
	return &BattleRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *BattleRepository) WithTx(tx pgx.Tx) *BattleRepository {
	return &BattleRepository{db: tx}
}

func scanBattle(row pgx.Row) (*model.Battle, error) {
	var b model.Battle
	err := row.Scan(
		&b.ID, &b.Amount, &b.Status, &b.CreatorID, &b.OpponentID, &b.WinnerID,
		&b.ClaimantID, &b.RoomCode, &b.CommissionBps, &b.ScreenshotURL,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBattleNotFound
		}
		return nil, fmt.Errorf("failed to scan battle: %w", err)
	}
	return &b, nil
}

// Create inserts a new open challenge with the commission rate pinned
// at creation time.
func (r *BattleRepository) Create(ctx context.Context, creatorID, amount int64, commissionBps int32) (*model.Battle, error) {
	query := `
		INSERT INTO battles (amount, status, creator_id, commission_bps, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + battleColumns

	battle, err := scanBattle(r.db.QueryRow(ctx, query, amount, model.BattleChallenge, creatorID, commissionBps))
	if err != nil {
		return nil, fmt.Errorf("failed to create battle: %w", err)
	}
	return battle, nil
}

// GetByID retrieves a battle. Returns ErrBattleNotFound if absent.
func (r *BattleRepository) GetByID(ctx context.Context, id int64) (*model.Battle, error) {
	query := `SELECT ` + battleColumns + ` FROM battles WHERE id = $1`
	return scanBattle(r.db.QueryRow(ctx, query, id))
}

// GetByIDForUpdate retrieves a battle with a row lock. Must be called
// inside a transaction; every lifecycle transition goes through this
// so concurrent accept/cancel/settle attempts serialize.
func (r *BattleRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Battle, error) {
	query := `SELECT ` + battleColumns + ` FROM battles WHERE id = $1 FOR UPDATE`
	return scanBattle(r.db.QueryRow(ctx, query, id))
}

// Accept records the opponent and room code and moves the battle to ongoing.
func (r *BattleRepository) Accept(ctx context.Context, id, opponentID int64, roomCode string) (*model.Battle, error) {
	query := `
		UPDATE battles
		SET opponent_id = $2, room_code = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + battleColumns

	return scanBattle(r.db.QueryRow(ctx, query, id, opponentID, roomCode, model.BattleOngoing))
}

// ClaimResult records a participant's win claim and screenshot proof
// and moves the battle to under_review.
func (r *BattleRepository) ClaimResult(ctx context.Context, id, claimantID int64, screenshotURL string) (*model.Battle, error) {
	query := `
		UPDATE battles
		SET claimant_id = $2, screenshot_url = $3, status = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + battleColumns

	return scanBattle(r.db.QueryRow(ctx, query, id, claimantID, screenshotURL, model.BattleUnderReview))
}

// SetWinner records the settled winner and final status.
func (r *BattleRepository) SetWinner(ctx context.Context, id, winnerID int64, status string) (*model.Battle, error) {
	query := `
		UPDATE battles
		SET winner_id = $2, status = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + battleColumns

	return scanBattle(r.db.QueryRow(ctx, query, id, winnerID, status))
}

// SetStatus moves a battle to the given status.
func (r *BattleRepository) SetStatus(ctx context.Context, id int64, status string) (*model.Battle, error) {
	query := `
		UPDATE battles
		SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + battleColumns

	return scanBattle(r.db.QueryRow(ctx, query, id, status))
}

// ListOpen returns joinable challenges, newest first, excluding the
// viewer's own.
func (r *BattleRepository) ListOpen(ctx context.Context, viewerID int64, limit int) ([]*model.Battle, error) {
	query := `
		SELECT ` + battleColumns + `
		FROM battles
		WHERE status = $1 AND creator_id <> $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	return r.list(ctx, query, model.BattleChallenge, viewerID, limit)
}

// ListByUser returns battles the user created or accepted, newest first.
func (r *BattleRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Battle, error) {
	query := `
		SELECT ` + battleColumns + `
		FROM battles
		WHERE creator_id = $1 OR opponent_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, userID, limit)
}

// ListByStatus returns battles in the given status, oldest first, for
// admin review queues.
func (r *BattleRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*model.Battle, error) {
	query := `
		SELECT ` + battleColumns + `
		FROM battles
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return r.list(ctx, query, status, limit)
}

func (r *BattleRepository) list(ctx context.Context, query string, args ...any) ([]*model.Battle, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list battles: %w", err)
	}
	defer rows.Close()

	var battles []*model.Battle
	for rows.Next() {
		battle, err := scanBattle(rows)
		if err != nil {
			return nil, err
		}
		battles = append(battles, battle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating battles: %w", err)
	}
	return battles, nil
}
