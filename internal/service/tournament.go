package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"ludo-arena-backend/internal/model"
	"ludo-arena-backend/internal/pkg/db"
	"ludo-arena-backend/internal/repository"
)

// Tournament-related errors.
var (
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrTournamentClosed   = errors.New("tournament is not open for joining")
	ErrTournamentFull     = errors.New("tournament is full")
	ErrAlreadyJoined      = errors.New("already joined this tournament")
	ErrNotEnoughPlayers   = errors.New("not enough players to start")
	ErrBadPrizeSplit      = errors.New("prize split must be positive shares summing to at most 10000 bps")
	ErrBadResults         = errors.New("results must rank every entrant exactly once")
	ErrTournamentNotLive  = errors.New("tournament is not live")
)

// TournamentService drives the tournament lifecycle. The join path is
// the busiest money flow in the system: it locks the tournament row,
// re-validates everything inside the transaction, and only then moves
// funds, so concurrent joiners can never overshoot the player cap or
// double-charge a user.
type TournamentService struct {
	pool           *pgxpool.Pool
	tournamentRepo *repository.TournamentRepository
	statsRepo      *repository.StatsRepository
	wallet         *WalletService
}

// NewTournamentService creates a new TournamentService instance.
func NewTournamentService(
	pool *pgxpool.Pool,
	tournamentRepo *repository.TournamentRepository,
	statsRepo *repository.StatsRepository,
	wallet *WalletService,
) *TournamentService {
	return &TournamentService{
		pool:           pool,
		tournamentRepo: tournamentRepo,
		statsRepo:      statsRepo,
		wallet:         wallet,
	}
}

// Create registers a new upcoming tournament.
func (s *TournamentService) Create(ctx context.Context, title string, entryFee int64, playerCap int32, commissionBps int32, prizeSplit []int32, startsAt time.Time) (*model.Tournament, error) {
	if entryFee < 0 || playerCap < 2 {
		return nil, ErrInvalidAmount
	}
	if err := validatePrizeSplit(prizeSplit); err != nil {
		return nil, err
	}
	if len(prizeSplit) > int(playerCap) {
		return nil, ErrBadPrizeSplit
	}

	return s.tournamentRepo.Create(ctx, &model.Tournament{
		Title:         title,
		EntryFee:      entryFee,
		PlayerCap:     playerCap,
		CommissionBps: commissionBps,
		PrizeSplit:    prizeSplit,
		StartsAt:      startsAt,
	})
}

// Join enters a user into an upcoming tournament. Within one
// transaction: the tournament row is locked, status, membership and
// cap are re-validated against the locked state, the entry fee is
// debited (deposit balance first, then winnings) and the prize pool
// grows by the fee. Any validation failure aborts with no partial
// writes.
func (s *TournamentService) Join(ctx context.Context, tournamentID, userID int64) (*model.Tournament, error) {
	var tournament *model.Tournament
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := s.tournamentRepo.WithTx(tx)

		current, err := repo.GetByIDForUpdate(ctx, tournamentID)
		if err != nil {
			return mapTournamentErr(err)
		}
		if current.Status != model.TournamentUpcoming {
			return ErrTournamentClosed
		}

		joined, err := repo.IsPlayer(ctx, tournamentID, userID)
		if err != nil {
			return err
		}
		if joined {
			return ErrAlreadyJoined
		}

		count, err := repo.CountPlayers(ctx, tournamentID)
		if err != nil {
			return err
		}
		if count >= current.PlayerCap {
			return ErrTournamentFull
		}

		notes := fmt.Sprintf("entry fee for %s", current.Title)
		if err := s.wallet.DebitStakeTx(ctx, tx, userID, current.EntryFee, model.TxTypeTournamentEntry, &notes); err != nil {
			return err
		}

		if err := repo.AddPlayer(ctx, tournamentID, userID); err != nil {
			if errors.Is(err, repository.ErrAlreadyJoined) {
				return ErrAlreadyJoined
			}
			return err
		}
		if err := repo.AddToPrizePool(ctx, tournamentID, current.EntryFee); err != nil {
			return err
		}

		tournament, err = repo.GetByID(ctx, tournamentID)
		return mapTournamentErr(err)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("tournament_id", tournamentID).
		Int64("user_id", userID).
		Int64("entry_fee", tournament.EntryFee).
		Int64("prize_pool", tournament.PrizePool).
		Msg("Tournament joined")
	return tournament, nil
}

// Start moves an upcoming tournament to live. At least two entrants
// are required.
func (s *TournamentService) Start(ctx context.Context, tournamentID int64) error {
	return db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := s.tournamentRepo.WithTx(tx)

		current, err := repo.GetByIDForUpdate(ctx, tournamentID)
		if err != nil {
			return mapTournamentErr(err)
		}
		if current.Status != model.TournamentUpcoming {
			return ErrTournamentClosed
		}

		count, err := repo.CountPlayers(ctx, tournamentID)
		if err != nil {
			return err
		}
		if count < 2 {
			return ErrNotEnoughPlayers
		}
		return repo.SetStatus(ctx, tournamentID, model.TournamentLive)
	})
}

// Complete settles a live tournament. ranked lists entrant user IDs
// best first and must cover every entrant. The post-commission pool is
// split per the prize distribution; the commission plus any rounding
// remainder goes to platform revenue. One transaction for everything.
func (s *TournamentService) Complete(ctx context.Context, tournamentID int64, ranked []int64) error {
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := s.tournamentRepo.WithTx(tx)

		current, err := repo.GetByIDForUpdate(ctx, tournamentID)
		if err != nil {
			return mapTournamentErr(err)
		}
		if current.Status != model.TournamentLive {
			return ErrTournamentNotLive
		}

		players, err := repo.ListPlayers(ctx, tournamentID)
		if err != nil {
			return err
		}
		if !coversEntrants(players, ranked) {
			return ErrBadResults
		}

		prizes, commission := PrizeAmounts(current.PrizePool, current.CommissionBps, current.PrizeSplit)

		// Fewer finishers than prize ranks can happen when the event
		// starts below its cap. Unclaimed shares go to revenue so the
		// pool still fully reconciles.
		if len(ranked) < len(prizes) {
			for _, unclaimed := range prizes[len(ranked):] {
				commission += unclaimed
			}
			prizes = prizes[:len(ranked)]
		}

		for i, userID := range ranked {
			if err := repo.SetFinalRank(ctx, tournamentID, userID, int32(i+1)); err != nil {
				return err
			}
			if i < len(prizes) && prizes[i] > 0 {
				notes := fmt.Sprintf("rank %d prize in %s", i+1, current.Title)
				if _, err := s.wallet.ApplyTx(ctx, tx, userID, prizes[i], model.BucketWinnings, model.TxTypeTournamentPrize, &notes); err != nil {
					return err
				}
			}
		}

		if commission > 0 {
			if err := s.statsRepo.WithTx(tx).AddRevenue(ctx, commission); err != nil {
				return err
			}
		}
		return repo.SetStatus(ctx, tournamentID, model.TournamentCompleted)
	})
	if err != nil {
		return err
	}

	log.Info().
		Int64("tournament_id", tournamentID).
		Int("players", len(ranked)).
		Msg("Tournament completed")
	return nil
}

// CancelAndRefund cancels an upcoming tournament and refunds every
// entrant's fee in one transaction.
func (s *TournamentService) CancelAndRefund(ctx context.Context, tournamentID int64) error {
	err := db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		repo := s.tournamentRepo.WithTx(tx)

		current, err := repo.GetByIDForUpdate(ctx, tournamentID)
		if err != nil {
			return mapTournamentErr(err)
		}
		if current.Status != model.TournamentUpcoming {
			return ErrTournamentClosed
		}

		players, err := repo.ListPlayers(ctx, tournamentID)
		if err != nil {
			return err
		}

		notes := fmt.Sprintf("%s cancelled", current.Title)
		for _, p := range players {
			if _, err := s.wallet.ApplyTx(ctx, tx, p.UserID, current.EntryFee, model.BucketBalance, model.TxTypeTournamentRefund, &notes); err != nil {
				return err
			}
		}
		return repo.SetStatus(ctx, tournamentID, model.TournamentCancelled)
	})
	if err != nil {
		return err
	}

	log.Info().Int64("tournament_id", tournamentID).Msg("Tournament cancelled, fees refunded")
	return nil
}

// Get retrieves a tournament by ID.
func (s *TournamentService) Get(ctx context.Context, tournamentID int64) (*model.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentErr(err)
	}
	return t, nil
}

// List returns tournaments, optionally filtered by status.
func (s *TournamentService) List(ctx context.Context, status string, limit int) ([]*model.Tournament, error) {
	return s.tournamentRepo.List(ctx, status, limit)
}

// Players returns a tournament's entrants in join order.
func (s *TournamentService) Players(ctx context.Context, tournamentID int64) ([]*model.TournamentPlayer, error) {
	return s.tournamentRepo.ListPlayers(ctx, tournamentID)
}

// PrizeAmounts splits a prize pool. Commission is taken off the top at
// the tournament's pinned rate; each rank gets its share of the
// remainder in basis points, rounded down; whatever rounding leaves
// over is added to the commission so the pool always fully reconciles.
func PrizeAmounts(pool int64, commissionBps int32, split []int32) (prizes []int64, commission int64) {
	commission = pool * int64(commissionBps) / 10000
	distributable := pool - commission

	prizes = make([]int64, len(split))
	var paid int64
	for i, share := range split {
		prizes[i] = distributable * int64(share) / 10000
		paid += prizes[i]
	}
	commission += distributable - paid
	return prizes, commission
}

func validatePrizeSplit(split []int32) error {
	if len(split) == 0 {
		return ErrBadPrizeSplit
	}
	var total int32
	for _, share := range split {
		if share <= 0 {
			return ErrBadPrizeSplit
		}
		total += share
	}
	if total > 10000 {
		return ErrBadPrizeSplit
	}
	return nil
}

// coversEntrants checks that ranked is a permutation of the entrants.
func coversEntrants(players []*model.TournamentPlayer, ranked []int64) bool {
	if len(players) != len(ranked) {
		return false
	}
	seen := make(map[int64]bool, len(ranked))
	for _, id := range ranked {
		if seen[id] {
			return false
		}
		seen[id] = true
	}
	for _, p := range players {
		if !seen[p.UserID] {
			return false
		}
	}
	return true
}

func mapTournamentErr(err error) error {
	if errors.Is(err, repository.ErrTournamentNotFound) {
		return ErrTournamentNotFound
	}
	return err
}
