// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ludo-arena-backend/internal/model"
	"ludo-arena-backend/internal/pkg/db"
	"ludo-arena-backend/internal/repository"
)

// Wallet-related errors.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount: must be positive")
	ErrUserNotFound        = errors.New("user not found")
)

// WalletService applies signed deltas to a user's wallet buckets and
// appends the matching ledger entry. The two writes always happen in
// one database transaction: either both land or neither does.
type WalletService struct {
	pool       *pgxpool.Pool
	userRepo   *repository.UserRepository
	ledgerRepo *repository.LedgerRepository
}

// NewWalletService creates a new WalletService instance.
func NewWalletService(pool *pgxpool.Pool, userRepo *repository.UserRepository, ledgerRepo *repository.LedgerRepository) *WalletService {
	return &WalletService{
		pool:       pool,
		userRepo:   userRepo,
		ledgerRepo: ledgerRepo,
	}
}

// Apply mutates one wallet bucket and records the ledger entry in its
// own transaction. amount is signed; a debit that would overdraw the
// bucket aborts with ErrInsufficientBalance and writes nothing.
func (s *WalletService) Apply(ctx context.Context, userID, amount int64, bucket, txType string, notes *string) (*model.User, error) {
	var user *model.User
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		user, err = s.ApplyTx(ctx, tx, userID, amount, bucket, txType, notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ApplyTx is Apply composed into a caller-owned transaction. Larger
// money flows (settlement, approvals, joins) build on this so the
// whole flow commits or rolls back as a unit.
func (s *WalletService) ApplyTx(ctx context.Context, tx pgx.Tx, userID, amount int64, bucket, txType string, notes *string) (*model.User, error) {
	user, err := s.userRepo.WithTx(tx).ApplyToBucket(ctx, userID, bucket, amount)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		if errors.Is(err, repository.ErrInsufficientFunds) {
			return nil, ErrInsufficientBalance
		}
		return nil, fmt.Errorf("failed to apply wallet delta: %w", err)
	}

	if _, err := s.ledgerRepo.WithTx(tx).Create(ctx, userID, amount, bucket, txType, notes); err != nil {
		return nil, err
	}
	return user, nil
}

// DebitStakeTx removes amount from a user's wallet, draining the
// deposit balance first and taking any remainder from winnings. The
// user row is locked so the split is computed against a stable
// snapshot. Fails with ErrInsufficientBalance when the combined
// buckets cannot cover the amount.
func (s *WalletService) DebitStakeTx(ctx context.Context, tx pgx.Tx, userID, amount int64, txType string, notes *string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	user, err := s.userRepo.WithTx(tx).GetByIDForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if user.Balance+user.Winnings < amount {
		return ErrInsufficientBalance
	}

	fromBalance := amount
	if fromBalance > user.Balance {
		fromBalance = user.Balance
	}
	fromWinnings := amount - fromBalance

	if fromBalance > 0 {
		if _, err := s.ApplyTx(ctx, tx, userID, -fromBalance, model.BucketBalance, txType, notes); err != nil {
			return err
		}
	}
	if fromWinnings > 0 {
		if _, err := s.ApplyTx(ctx, tx, userID, -fromWinnings, model.BucketWinnings, txType, notes); err != nil {
			return err
		}
	}
	return nil
}

// Balances returns the current wallet snapshot for a user.
func (s *WalletService) Balances(ctx context.Context, userID int64) (balance, winnings int64, err error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, 0, ErrUserNotFound
		}
		return 0, 0, err
	}
	return user.Balance, user.Winnings, nil
}

// Ledger returns a user's transaction history, newest first.
func (s *WalletService) Ledger(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	return s.ledgerRepo.ListByUser(ctx, userID, limit)
}
