package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"ludo-arena-backend/internal/config"
	"ludo-arena-backend/internal/model"
	"ludo-arena-backend/internal/pkg/db"
	"ludo-arena-backend/internal/repository"
)

// Battle-related errors.
var (
	ErrBattleNotFound    = errors.New("battle not found")
	ErrBattleNotOpen     = errors.New("battle is not open for joining")
	ErrBattleNotOngoing  = errors.New("battle is not ongoing")
	ErrBattleNotInReview = errors.New("battle is not under review")
	ErrBattleNotVoidable = errors.New("battle cannot be voided")
	ErrSelfChallenge     = errors.New("cannot accept your own challenge")
	ErrNotParticipant    = errors.New("not a participant of this battle")
	ErrStakeOutOfRange   = errors.New("stake amount out of allowed range")
)

// BattleService drives the wagered match lifecycle:
// challenge -> ongoing -> under_review -> completed, with cancelled
// and disputed branches. Every money movement runs inside a database
// transaction together with the status change it belongs to.
type BattleService struct {
	pool       *pgxpool.Pool
	battleRepo *repository.BattleRepository
	userRepo   *repository.UserRepository
	statsRepo  *repository.StatsRepository
	wallet     *WalletService
	cfg        config.BattleConfig
}

// NewBattleService creates a new BattleService instance.
func NewBattleService(
	pool *pgxpool.Pool,
	battleRepo *repository.BattleRepository,
	userRepo *repository.UserRepository,
	statsRepo *repository.StatsRepository,
	wallet *WalletService,
	cfg config.BattleConfig,
) *BattleService {
	return &BattleService{
		pool:       pool,
		battleRepo: battleRepo,
		userRepo:   userRepo,
		statsRepo:  statsRepo,
		wallet:     wallet,
		cfg:        cfg,
	}
}

// Create opens a challenge. The creator's stake is debited and the
// configured commission rate is pinned onto the battle row, so a
// later rate change never affects this match.
func (s *BattleService) Create(ctx context.Context, creatorID, amount int64) (*model.Battle, error) {
	if amount < s.cfg.MinStake || amount > s.cfg.MaxStake {
		return nil, ErrStakeOutOfRange
	}

	var battle *model.Battle
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		notes := "battle stake"
		if err := s.wallet.DebitStakeTx(ctx, tx, creatorID, amount, model.TxTypeBattleStake, &notes); err != nil {
			return err
		}

		var err error
		battle, err = s.battleRepo.WithTx(tx).Create(ctx, creatorID, amount, s.cfg.CommissionBps)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("battle_id", battle.ID).
		Int64("creator_id", creatorID).
		Int64("amount", amount).
		Int32("commission_bps", battle.CommissionBps).
		Msg("Battle challenge created")
	return battle, nil
}

// Accept joins an open challenge. The opponent's stake is debited and
// a room code is issued in the same transaction that flips the status.
func (s *BattleService) Accept(ctx context.Context, battleID, opponentID int64) (*model.Battle, error) {
	var battle *model.Battle
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := s.battleRepo.WithTx(tx).GetByIDForUpdate(ctx, battleID)
		if err != nil {
			return mapBattleErr(err)
		}
		if current.Status != model.BattleChallenge {
			return ErrBattleNotOpen
		}
		if current.CreatorID == opponentID {
			return ErrSelfChallenge
		}

		notes := "battle stake"
		if err := s.wallet.DebitStakeTx(ctx, tx, opponentID, current.Amount, model.TxTypeBattleStake, &notes); err != nil {
			return err
		}

		battle, err = s.battleRepo.WithTx(tx).Accept(ctx, battleID, opponentID, newRoomCode())
		return mapBattleErr(err)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("battle_id", battle.ID).
		Int64("opponent_id", opponentID).
		Msg("Battle accepted")
	return battle, nil
}

// Cancel withdraws an unaccepted challenge and refunds the creator.
func (s *BattleService) Cancel(ctx context.Context, battleID, userID int64) (*model.Battle, error) {
	var battle *model.Battle
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := s.battleRepo.WithTx(tx).GetByIDForUpdate(ctx, battleID)
		if err != nil {
			return mapBattleErr(err)
		}
		if current.Status != model.BattleChallenge {
			return ErrBattleNotOpen
		}
		if current.CreatorID != userID {
			return ErrNotParticipant
		}

		notes := "challenge cancelled"
		if _, err := s.wallet.ApplyTx(ctx, tx, userID, current.Amount, model.BucketBalance, model.TxTypeBattleRefund, &notes); err != nil {
			return err
		}

		battle, err = s.battleRepo.WithTx(tx).SetStatus(ctx, battleID, model.BattleCancelled)
		return mapBattleErr(err)
	})
	if err != nil {
		return nil, err
	}
	return battle, nil
}

// SubmitResult records a participant's win claim with screenshot
// proof and queues the battle for admin review.
func (s *BattleService) SubmitResult(ctx context.Context, battleID, claimantID int64, screenshotURL string) (*model.Battle, error) {
	var battle *model.Battle
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := s.battleRepo.WithTx(tx).GetByIDForUpdate(ctx, battleID)
		if err != nil {
			return mapBattleErr(err)
		}
		if current.Status != model.BattleOngoing {
			return ErrBattleNotOngoing
		}
		if !isParticipant(current, claimantID) {
			return ErrNotParticipant
		}

		battle, err = s.battleRepo.WithTx(tx).ClaimResult(ctx, battleID, claimantID, screenshotURL)
		return mapBattleErr(err)
	})
	if err != nil {
		return nil, err
	}
	return battle, nil
}

// Settle is the admin approval of a reviewed result. Prize pool is
// twice the stake; commission is taken at the rate pinned when the
// challenge was created; the payout lands in the winner's winnings
// bucket and the commission in platform revenue - all one transaction.
func (s *BattleService) Settle(ctx context.Context, battleID, adminID, winnerID int64) (*model.Battle, error) {
	var battle *model.Battle
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := s.battleRepo.WithTx(tx).GetByIDForUpdate(ctx, battleID)
		if err != nil {
			return mapBattleErr(err)
		}
		if current.Status != model.BattleUnderReview {
			return ErrBattleNotInReview
		}
		if !isParticipant(current, winnerID) {
			return ErrNotParticipant
		}

		payout, commission := SettlementAmounts(current.Amount, current.CommissionBps)

		notes := fmt.Sprintf("battle %d won", battleID)
		if _, err := s.wallet.ApplyTx(ctx, tx, winnerID, payout, model.BucketWinnings, model.TxTypeBattleWin, &notes); err != nil {
			return err
		}
		if err := s.statsRepo.WithTx(tx).AddRevenue(ctx, commission); err != nil {
			return err
		}

		users := s.userRepo.WithTx(tx)
		if err := users.RecordGameResult(ctx, current.CreatorID, current.CreatorID == winnerID); err != nil {
			return err
		}
		if current.OpponentID != nil {
			if err := users.RecordGameResult(ctx, *current.OpponentID, *current.OpponentID == winnerID); err != nil {
				return err
			}
		}

		battle, err = s.battleRepo.WithTx(tx).SetWinner(ctx, battleID, winnerID, model.BattleCompleted)
		return mapBattleErr(err)
	})
	if err != nil {
		return nil, err
	}

	payout, commission := SettlementAmounts(battle.Amount, battle.CommissionBps)
	log.Info().
		Int64("battle_id", battle.ID).
		Int64("admin_id", adminID).
		Int64("winner_id", winnerID).
		Int64("payout", payout).
		Int64("commission", commission).
		Msg("Battle settled")
	return battle, nil
}

// Decline marks a reviewed result as disputed. No funds move; the
// stakes stay escrowed until an admin voids or settles the battle.
func (s *BattleService) Decline(ctx context.Context, battleID, adminID int64) (*model.Battle, error) {
	var battle *model.Battle
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := s.battleRepo.WithTx(tx).GetByIDForUpdate(ctx, battleID)
		if err != nil {
			return mapBattleErr(err)
		}
		if current.Status != model.BattleUnderReview {
			return ErrBattleNotInReview
		}

		battle, err = s.battleRepo.WithTx(tx).SetStatus(ctx, battleID, model.BattleDisputed)
		return mapBattleErr(err)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("battle_id", battle.ID).
		Int64("admin_id", adminID).
		Msg("Battle result declined")
	return battle, nil
}

// Void cancels an ongoing or disputed battle and refunds both stakes.
func (s *BattleService) Void(ctx context.Context, battleID, adminID int64) (*model.Battle, error) {
	var battle *model.Battle
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		current, err := s.battleRepo.WithTx(tx).GetByIDForUpdate(ctx, battleID)
		if err != nil {
			return mapBattleErr(err)
		}
		if current.Status != model.BattleOngoing && current.Status != model.BattleDisputed && current.Status != model.BattleUnderReview {
			return ErrBattleNotVoidable
		}

		notes := fmt.Sprintf("battle %d voided", battleID)
		if _, err := s.wallet.ApplyTx(ctx, tx, current.CreatorID, current.Amount, model.BucketBalance, model.TxTypeBattleRefund, &notes); err != nil {
			return err
		}
		if current.OpponentID != nil {
			if _, err := s.wallet.ApplyTx(ctx, tx, *current.OpponentID, current.Amount, model.BucketBalance, model.TxTypeBattleRefund, &notes); err != nil {
				return err
			}
		}

		battle, err = s.battleRepo.WithTx(tx).SetStatus(ctx, battleID, model.BattleCancelled)
		return mapBattleErr(err)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("battle_id", battle.ID).
		Int64("admin_id", adminID).
		Msg("Battle voided, stakes refunded")
	return battle, nil
}

// Get retrieves a battle by ID.
func (s *BattleService) Get(ctx context.Context, battleID int64) (*model.Battle, error) {
	battle, err := s.battleRepo.GetByID(ctx, battleID)
	if err != nil {
		return nil, mapBattleErr(err)
	}
	return battle, nil
}

// ListOpen returns joinable challenges for a viewer.
func (s *BattleService) ListOpen(ctx context.Context, viewerID int64, limit int) ([]*model.Battle, error) {
	return s.battleRepo.ListOpen(ctx, viewerID, limit)
}

// ListMine returns the battles the user participates in.
func (s *BattleService) ListMine(ctx context.Context, userID int64, limit int) ([]*model.Battle, error) {
	return s.battleRepo.ListByUser(ctx, userID, limit)
}

// ListByStatus returns battles in one status for admin queues.
func (s *BattleService) ListByStatus(ctx context.Context, status string, limit int) ([]*model.Battle, error) {
	return s.battleRepo.ListByStatus(ctx, status, limit)
}

// SettlementAmounts computes the winner payout and platform commission
// for a battle: pool is twice the stake, commission is pool times the
// pinned rate (rounded down), payout is the remainder.
func SettlementAmounts(stake int64, commissionBps int32) (payout, commission int64) {
	pool := stake * 2
	commission = pool * int64(commissionBps) / 10000
	payout = pool - commission
	return payout, commission
}

func isParticipant(b *model.Battle, userID int64) bool {
	if b.CreatorID == userID {
		return true
	}
	return b.OpponentID != nil && *b.OpponentID == userID
}

func mapBattleErr(err error) error {
	if errors.Is(err, repository.ErrBattleNotFound) {
		return ErrBattleNotFound
	}
	return err
}

// newRoomCode generates the Ludo room code shared with both players.
func newRoomCode() string {
	return strings.ToUpper(uuid.New().String()[:8])
}
