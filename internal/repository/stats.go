package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// StatsRepository tracks platform-level aggregates. The single
// platform_stats row accumulates commission revenue from battle
// settlements and tournament completions.
type StatsRepository struct {
	db Querier
}

// NewStatsRepository creates a new StatsRepository instance.
func NewStatsRepository(db Querier) *StatsRepository {
	return &StatsRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *StatsRepository) WithTx(tx pgx.Tx) *StatsRepository {
	return &StatsRepository{db: tx}
}

// AddRevenue credits commission to the platform revenue counter.
func (r *StatsRepository) AddRevenue(ctx context.Context, amount int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE platform_stats SET revenue = revenue + $1, updated_at = NOW() WHERE id = 1`, amount)
	if err != nil {
		return fmt.Errorf("failed to add revenue: %w", err)
	}
	return nil
}

// Revenue returns total commission earned.
func (r *StatsRepository) Revenue(ctx context.Context) (int64, error) {
	var revenue int64
	err := r.db.QueryRow(ctx, `SELECT revenue FROM platform_stats WHERE id = 1`).Scan(&revenue)
	if err != nil {
		return 0, fmt.Errorf("failed to read revenue: %w", err)
	}
	return revenue, nil
}
