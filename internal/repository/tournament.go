package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"ludo-arena-backend/internal/model"
)

const tournamentColumns = `id, title, entry_fee, player_cap, prize_pool,
	commission_bps, prize_split, status, starts_at, created_at`

// TournamentRepository handles tournament persistence.
type TournamentRepository struct {
	db Querier
}

// NewTournamentRepository creates a new TournamentRepository instance.
func NewTournamentRepository(db Querier) *TournamentRepository {
	return &TournamentRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *TournamentRepository) WithTx(tx pgx.Tx) *TournamentRepository {
	return &TournamentRepository{db: tx}
}

func scanTournament(row pgx.Row) (*model.Tournament, error) {
	var t model.Tournament
	err := row.Scan(
		&t.ID, &t.Title, &t.EntryFee, &t.PlayerCap, &t.PrizePool,
		&t.CommissionBps, &t.PrizeSplit, &t.Status, &t.StartsAt, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament: %w", err)
	}
	return &t, nil
}

// Create inserts a new upcoming tournament.
func (r *TournamentRepository) Create(ctx context.Context, t *model.Tournament) (*model.Tournament, error) {
	query := `
		INSERT INTO tournaments (title, entry_fee, player_cap, commission_bps, prize_split, status, starts_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING ` + tournamentColumns

	created, err := scanTournament(r.db.QueryRow(ctx, query,
		t.Title, t.EntryFee, t.PlayerCap, t.CommissionBps, t.PrizeSplit, model.TournamentUpcoming, t.StartsAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	return created, nil
}

// GetByID retrieves a tournament. Returns ErrTournamentNotFound if absent.
func (r *TournamentRepository) GetByID(ctx context.Context, id int64) (*model.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	return scanTournament(r.db.QueryRow(ctx, query, id))
}

// GetByIDForUpdate retrieves a tournament with a row lock. The join
// flow re-reads through this inside its transaction so concurrent
// joiners serialize on the tournament row and the player cap cannot
// be overshot.
func (r *TournamentRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1 FOR UPDATE`
	return scanTournament(r.db.QueryRow(ctx, query, id))
}

// List returns tournaments, optionally filtered by status, newest first.
func (r *TournamentRepository) List(ctx context.Context, status string, limit int) ([]*model.Tournament, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		rows, err = r.db.Query(ctx,
			`SELECT `+tournamentColumns+` FROM tournaments ORDER BY starts_at DESC LIMIT $1`, limit)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+tournamentColumns+` FROM tournaments WHERE status = $1 ORDER BY starts_at DESC LIMIT $2`, status, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	var tournaments []*model.Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, err
		}
		tournaments = append(tournaments, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournaments: %w", err)
	}
	return tournaments, nil
}

// CountPlayers returns the number of entrants.
func (r *TournamentRepository) CountPlayers(ctx context.Context, tournamentID int64) (int32, error) {
	var count int32
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM tournament_players WHERE tournament_id = $1`, tournamentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count players: %w", err)
	}
	return count, nil
}

// IsPlayer reports whether the user already joined the tournament.
func (r *TournamentRepository) IsPlayer(ctx context.Context, tournamentID, userID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM tournament_players WHERE tournament_id = $1 AND user_id = $2)`,
		tournamentID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// AddPlayer inserts an entrant. The composite primary key turns a
// double join into ErrAlreadyJoined.
func (r *TournamentRepository) AddPlayer(ctx context.Context, tournamentID, userID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tournament_players (tournament_id, user_id, joined_at) VALUES ($1, $2, NOW())`,
		tournamentID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrAlreadyJoined
		}
		return fmt.Errorf("failed to add player: %w", err)
	}
	return nil
}

// AddToPrizePool increments the running prize pool.
func (r *TournamentRepository) AddToPrizePool(ctx context.Context, tournamentID, amount int64) error {
	result, err := r.db.Exec(ctx,
		`UPDATE tournaments SET prize_pool = prize_pool + $2 WHERE id = $1`, tournamentID, amount)
	if err != nil {
		return fmt.Errorf("failed to add to prize pool: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTournamentNotFound
	}
	return nil
}

// SetStatus moves a tournament to the given status.
func (r *TournamentRepository) SetStatus(ctx context.Context, tournamentID int64, status string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE tournaments SET status = $2 WHERE id = $1`, tournamentID, status)
	if err != nil {
		return fmt.Errorf("failed to set tournament status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrTournamentNotFound
	}
	return nil
}

// ListPlayers returns entrants in join order.
func (r *TournamentRepository) ListPlayers(ctx context.Context, tournamentID int64) ([]*model.TournamentPlayer, error) {
	const query = `
		SELECT tournament_id, user_id, final_rank, joined_at
		FROM tournament_players
		WHERE tournament_id = $1
		ORDER BY joined_at ASC
	`

	rows, err := r.db.Query(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	var players []*model.TournamentPlayer
	for rows.Next() {
		var p model.TournamentPlayer
		if err := rows.Scan(&p.TournamentID, &p.UserID, &p.FinalRank, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating players: %w", err)
	}
	return players, nil
}

// SetFinalRank records a player's final placement.
func (r *TournamentRepository) SetFinalRank(ctx context.Context, tournamentID, userID int64, rank int32) error {
	result, err := r.db.Exec(ctx,
		`UPDATE tournament_players SET final_rank = $3 WHERE tournament_id = $1 AND user_id = $2`,
		tournamentID, userID, rank)
	if err != nil {
		return fmt.Errorf("failed to set final rank: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
