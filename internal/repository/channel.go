package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ludo-arena-backend/internal/model"
)

const channelColumns = `id, upi_id, daily_limit, current_amount, active, created_at`

// UpiChannelRepository handles collection channel persistence.
type UpiChannelRepository struct {
	db Querier
}

// NewUpiChannelRepository creates a new UpiChannelRepository instance.
func NewUpiChannelRepository(db Querier) *UpiChannelRepository {
	return &UpiChannelRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *UpiChannelRepository) WithTx(tx pgx.Tx) *UpiChannelRepository {
	return &UpiChannelRepository{db: tx}
}

func scanChannel(row pgx.Row) (*model.UpiChannel, error) {
	var c model.UpiChannel
	err := row.Scan(&c.ID, &c.UpiID, &c.DailyLimit, &c.CurrentAmount, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChannelNotFound
		}
		return nil, fmt.Errorf("failed to scan upi channel: %w", err)
	}
	return &c, nil
}

// Create inserts a new active channel.
func (r *UpiChannelRepository) Create(ctx context.Context, upiID string, dailyLimit int64) (*model.UpiChannel, error) {
	query := `
		INSERT INTO upi_channels (upi_id, daily_limit, current_amount, active, created_at)
		VALUES ($1, $2, 0, TRUE, NOW())
		RETURNING ` + channelColumns

	channel, err := scanChannel(r.db.QueryRow(ctx, query, upiID, dailyLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to create upi channel: %w", err)
	}
	return channel, nil
}

// GetByID retrieves a channel. Returns ErrChannelNotFound if absent.
func (r *UpiChannelRepository) GetByID(ctx context.Context, id int64) (*model.UpiChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM upi_channels WHERE id = $1`
	return scanChannel(r.db.QueryRow(ctx, query, id))
}

// PickForAmount returns the lowest-id active channel that still has
// headroom for the given amount. This is the rotation rule: once a
// channel's counter reaches its daily limit, the next channel takes
// over until an admin resets the counter.
func (r *UpiChannelRepository) PickForAmount(ctx context.Context, amount int64) (*model.UpiChannel, error) {
	query := `
		SELECT ` + channelColumns + `
		FROM upi_channels
		WHERE active AND current_amount + $1 <= daily_limit
		ORDER BY id ASC
		LIMIT 1
	`
	return scanChannel(r.db.QueryRow(ctx, query, amount))
}

// AddToCurrent increments a channel's intake counter. Called from the
// deposit approval transaction.
func (r *UpiChannelRepository) AddToCurrent(ctx context.Context, id, amount int64) error {
	result, err := r.db.Exec(ctx,
		`UPDATE upi_channels SET current_amount = current_amount + $2 WHERE id = $1`, id, amount)
	if err != nil {
		return fmt.Errorf("failed to update channel counter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrChannelNotFound
	}
	return nil
}

// ResetCurrent zeroes a channel's intake counter (admin daily reset).
func (r *UpiChannelRepository) ResetCurrent(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `UPDATE upi_channels SET current_amount = 0 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to reset channel counter: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrChannelNotFound
	}
	return nil
}

// SetActive enables or disables a channel.
func (r *UpiChannelRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.Exec(ctx, `UPDATE upi_channels SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to set channel active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrChannelNotFound
	}
	return nil
}

// List returns all channels in rotation order.
func (r *UpiChannelRepository) List(ctx context.Context) ([]*model.UpiChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM upi_channels ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list upi channels: %w", err)
	}
	defer rows.Close()

	var channels []*model.UpiChannel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upi channels: %w", err)
	}
	return channels, nil
}
