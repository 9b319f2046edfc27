package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"ludo-arena-backend/internal/config"
	"ludo-arena-backend/internal/model"
	"ludo-arena-backend/internal/pkg/db"
	"ludo-arena-backend/internal/repository"
)

// Payment-related errors.
var (
	ErrDepositNotFound    = errors.New("deposit not found")
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	ErrNotPending         = errors.New("request is not pending")
	ErrNoChannelAvailable = errors.New("no upi channel can take this amount today")
	ErrBelowMinimum       = errors.New("amount below minimum")
	ErrKYCRequired        = errors.New("kyc verification required for withdrawals")
	ErrOrderNotFound      = errors.New("payment order not found")
	ErrOrderAmountMismatch = errors.New("callback amount does not match order")
)

// PaymentService handles manual UPI deposits, withdrawals, channel
// rotation and gateway order confirmation. Each approval or rejection
// is one database transaction covering the status flip, the wallet
// movement and the ledger entry, so a crashed step can never leave
// money half-moved.
type PaymentService struct {
	pool           *pgxpool.Pool
	depositRepo    *repository.DepositRepository
	withdrawalRepo *repository.WithdrawalRepository
	channelRepo    *repository.UpiChannelRepository
	orderRepo      *repository.PaymentOrderRepository
	userRepo       *repository.UserRepository
	wallet         *WalletService
	cfg            config.WalletConfig
}

// NewPaymentService creates a new PaymentService instance.
func NewPaymentService(
	pool *pgxpool.Pool,
	depositRepo *repository.DepositRepository,
	withdrawalRepo *repository.WithdrawalRepository,
	channelRepo *repository.UpiChannelRepository,
	orderRepo *repository.PaymentOrderRepository,
	userRepo *repository.UserRepository,
	wallet *WalletService,
	cfg config.WalletConfig,
) *PaymentService {
	return &PaymentService{
		pool:           pool,
		depositRepo:    depositRepo,
		withdrawalRepo: withdrawalRepo,
		channelRepo:    channelRepo,
		orderRepo:      orderRepo,
		userRepo:       userRepo,
		wallet:         wallet,
		cfg:            cfg,
	}
}

// ActiveChannel returns the channel a deposit of the given amount
// should be paid into.
func (s *PaymentService) ActiveChannel(ctx context.Context, amount int64) (*model.UpiChannel, error) {
	channel, err := s.channelRepo.PickForAmount(ctx, amount)
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return nil, ErrNoChannelAvailable
		}
		return nil, err
	}
	return channel, nil
}

// RequestDeposit files a manual deposit claim with its UTR proof. The
// request is assigned to a channel with headroom; money only moves on
// admin approval.
func (s *PaymentService) RequestDeposit(ctx context.Context, userID, amount int64, utr string) (*model.Deposit, error) {
	if amount < s.cfg.MinDeposit {
		return nil, ErrBelowMinimum
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	channel, err := s.ActiveChannel(ctx, amount)
	if err != nil {
		return nil, err
	}
	return s.depositRepo.Create(ctx, userID, amount, channel.ID, utr)
}

// ApproveDeposit credits the wallet, bumps the channel's intake
// counter and flips the request to approved in one transaction.
func (s *PaymentService) ApproveDeposit(ctx context.Context, depositID, adminID int64) (*model.Deposit, error) {
	var deposit *model.Deposit
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := s.depositRepo.WithTx(tx).GetByIDForUpdate(ctx, depositID)
		if err != nil {
			if errors.Is(err, repository.ErrDepositNotFound) {
				return ErrDepositNotFound
			}
			return err
		}
		if current.Status != model.ReviewPending {
			return ErrNotPending
		}

		notes := fmt.Sprintf("deposit %d via UTR %s", depositID, current.UTR)
		if _, err := s.wallet.ApplyTx(ctx, tx, current.UserID, current.Amount, model.BucketBalance, model.TxTypeDeposit, &notes); err != nil {
			return err
		}
		if err := s.channelRepo.WithTx(tx).AddToCurrent(ctx, current.ChannelID, current.Amount); err != nil {
			return err
		}
		if err := s.userRepo.WithTx(tx).AddTotalDeposited(ctx, current.UserID, current.Amount); err != nil {
			return err
		}

		deposit, err = s.depositRepo.WithTx(tx).Review(ctx, depositID, adminID, model.ReviewApproved)
		if errors.Is(err, repository.ErrDepositNotFound) {
			return ErrNotPending
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("deposit_id", deposit.ID).
		Int64("admin_id", adminID).
		Int64("user_id", deposit.UserID).
		Int64("amount", deposit.Amount).
		Msg("Deposit approved")
	return deposit, nil
}

// RejectDeposit flips a pending deposit to rejected. No funds were
// moved at request time, so nothing needs compensating.
func (s *PaymentService) RejectDeposit(ctx context.Context, depositID, adminID int64) (*model.Deposit, error) {
	deposit, err := s.depositRepo.Review(ctx, depositID, adminID, model.ReviewRejected)
	if err != nil {
		if errors.Is(err, repository.ErrDepositNotFound) {
			return nil, ErrNotPending
		}
		return nil, err
	}
	return deposit, nil
}

// RequestWithdrawal debits winnings and files the payout request in
// one transaction. Holding the money up front means an approved
// request never discovers an empty wallet, and a rejection refunds
// exactly what was held.
func (s *PaymentService) RequestWithdrawal(ctx context.Context, userID, amount int64, upiID string) (*model.Withdrawal, error) {
	if amount < s.cfg.MinWithdrawal {
		return nil, ErrBelowMinimum
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.KYCStatus != model.KYCVerified {
		return nil, ErrKYCRequired
	}

	var withdrawal *model.Withdrawal
	err = db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		notes := "withdrawal hold"
		if _, err := s.wallet.ApplyTx(ctx, tx, userID, -amount, model.BucketWinnings, model.TxTypeWithdrawal, &notes); err != nil {
			return err
		}

		var err error
		withdrawal, err = s.withdrawalRepo.WithTx(tx).Create(ctx, userID, amount, upiID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return withdrawal, nil
}

// ApproveWithdrawal marks the payout done and records the UTR. The
// money was already held at request time.
func (s *PaymentService) ApproveWithdrawal(ctx context.Context, withdrawalID, adminID int64, utr string) (*model.Withdrawal, error) {
	var withdrawal *model.Withdrawal
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := s.withdrawalRepo.WithTx(tx).GetByIDForUpdate(ctx, withdrawalID)
		if err != nil {
			if errors.Is(err, repository.ErrWithdrawalNotFound) {
				return ErrWithdrawalNotFound
			}
			return err
		}
		if current.Status != model.ReviewPending {
			return ErrNotPending
		}

		if err := s.userRepo.WithTx(tx).AddTotalWithdrawn(ctx, current.UserID, current.Amount); err != nil {
			return err
		}

		withdrawal, err = s.withdrawalRepo.WithTx(tx).Review(ctx, withdrawalID, adminID, model.ReviewApproved, &utr)
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			return ErrNotPending
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("withdrawal_id", withdrawal.ID).
		Int64("admin_id", adminID).
		Int64("amount", withdrawal.Amount).
		Str("utr", utr).
		Msg("Withdrawal approved")
	return withdrawal, nil
}

// RejectWithdrawal refunds the held winnings and flips the request to
// rejected in one transaction.
func (s *PaymentService) RejectWithdrawal(ctx context.Context, withdrawalID, adminID int64) (*model.Withdrawal, error) {
	var withdrawal *model.Withdrawal
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := s.withdrawalRepo.WithTx(tx).GetByIDForUpdate(ctx, withdrawalID)
		if err != nil {
			if errors.Is(err, repository.ErrWithdrawalNotFound) {
				return ErrWithdrawalNotFound
			}
			return err
		}
		if current.Status != model.ReviewPending {
			return ErrNotPending
		}

		notes := fmt.Sprintf("withdrawal %d rejected", withdrawalID)
		if _, err := s.wallet.ApplyTx(ctx, tx, current.UserID, current.Amount, model.BucketWinnings, model.TxTypeWithdrawalRefund, &notes); err != nil {
			return err
		}

		withdrawal, err = s.withdrawalRepo.WithTx(tx).Review(ctx, withdrawalID, adminID, model.ReviewRejected, nil)
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			return ErrNotPending
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return withdrawal, nil
}

// CreateOrder opens a gateway payment order for a user.
func (s *PaymentService) CreateOrder(ctx context.Context, userID, amount int64) (*model.PaymentOrder, error) {
	if amount < s.cfg.MinDeposit {
		return nil, ErrBelowMinimum
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.orderRepo.Create(ctx, uuid.NewString(), userID, amount)
}

// ConfirmOrder processes a verified gateway callback. The order row
// is locked first; terminal orders are returned as-is, which makes a
// replayed callback a no-op. A successful callback credits the wallet
// in the same transaction that finishes the order.
func (s *PaymentService) ConfirmOrder(ctx context.Context, orderID string, success bool, gatewayTxnID string, amount int64) (*model.PaymentOrder, error) {
	var order *model.PaymentOrder
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := s.orderRepo.WithTx(tx).GetByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if current.Status != model.OrderCreated {
			order = current
			return nil
		}

		txnID := &gatewayTxnID
		if gatewayTxnID == "" {
			txnID = nil
		}

		if !success {
			order, err = s.orderRepo.WithTx(tx).Finish(ctx, orderID, model.OrderFailed, txnID)
			return err
		}

		if amount != current.Amount {
			return ErrOrderAmountMismatch
		}

		notes := fmt.Sprintf("gateway order %s", orderID)
		if _, err := s.wallet.ApplyTx(ctx, tx, current.UserID, current.Amount, model.BucketBalance, model.TxTypeGatewayDeposit, &notes); err != nil {
			return err
		}
		if err := s.userRepo.WithTx(tx).AddTotalDeposited(ctx, current.UserID, current.Amount); err != nil {
			return err
		}

		order, err = s.orderRepo.WithTx(tx).Finish(ctx, orderID, model.OrderSuccess, txnID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", order.OrderID).
		Str("status", order.Status).
		Int64("amount", order.Amount).
		Msg("Gateway order confirmed")
	return order, nil
}

// GetOrder retrieves a payment order.
func (s *PaymentService) GetOrder(ctx context.Context, orderID string) (*model.PaymentOrder, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// ListDeposits returns deposits in one status for the admin queue.
func (s *PaymentService) ListDeposits(ctx context.Context, status string, limit int) ([]*model.Deposit, error) {
	return s.depositRepo.ListByStatus(ctx, status, limit)
}

// ListWithdrawals returns withdrawals in one status for the admin queue.
func (s *PaymentService) ListWithdrawals(ctx context.Context, status string, limit int) ([]*model.Withdrawal, error) {
	return s.withdrawalRepo.ListByStatus(ctx, status, limit)
}

// UserDeposits returns a user's deposit history.
func (s *PaymentService) UserDeposits(ctx context.Context, userID int64, limit int) ([]*model.Deposit, error) {
	return s.depositRepo.ListByUser(ctx, userID, limit)
}

// UserWithdrawals returns a user's withdrawal history.
func (s *PaymentService) UserWithdrawals(ctx context.Context, userID int64, limit int) ([]*model.Withdrawal, error) {
	return s.withdrawalRepo.ListByUser(ctx, userID, limit)
}

// CreateChannel registers a new UPI collection channel.
func (s *PaymentService) CreateChannel(ctx context.Context, upiID string, dailyLimit int64) (*model.UpiChannel, error) {
	if dailyLimit <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.channelRepo.Create(ctx, upiID, dailyLimit)
}

// ResetChannel zeroes a channel's daily counter.
func (s *PaymentService) ResetChannel(ctx context.Context, channelID int64) error {
	return s.channelRepo.ResetCurrent(ctx, channelID)
}

// SetChannelActive enables or disables a channel.
func (s *PaymentService) SetChannelActive(ctx context.Context, channelID int64, active bool) error {
	return s.channelRepo.SetActive(ctx, channelID, active)
}

// ListChannels returns all channels in rotation order.
func (s *PaymentService) ListChannels(ctx context.Context) ([]*model.UpiChannel, error) {
	return s.channelRepo.List(ctx)
}
