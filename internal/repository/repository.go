// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Common errors for repository operations.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrBattleNotFound     = errors.New("battle not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrDepositNotFound    = errors.New("deposit not found")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrChannelNotFound    = errors.New("upi channel not found")
	ErrOrderNotFound      = errors.New("payment order not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrAlreadyJoined      = errors.New("already joined")
)

// Querier is the subset of pgx operations repositories execute.
// Both *pgxpool.Pool and pgx.Tx satisfy it, so the same repository
// code runs standalone or inside a database transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
