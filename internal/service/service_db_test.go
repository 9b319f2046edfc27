// Integration tests for the money flows, using testcontainers-go.
// Skipped when Docker is not available.
package service

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ludo-arena-backend/internal/config"
	"ludo-arena-backend/internal/model"
	"ludo-arena-backend/internal/repository"
)

type testEnv struct {
	pool        *pgxpool.Pool
	users       *repository.UserRepository
	ledger      *repository.LedgerRepository
	stats       *repository.StatsRepository
	wallet      *WalletService
	accounts    *AccountService
	battles     *BattleService
	tournaments *TournamentService
	payments    *PaymentService
}

func setupEnv(t *testing.T) (*testEnv, func()) {
	if exec.Command("docker", "info").Run() != nil {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, applyTestSchema(ctx, pool))

	users := repository.NewUserRepository(pool)
	ledger := repository.NewLedgerRepository(pool)
	stats := repository.NewStatsRepository(pool)
	wallet := NewWalletService(pool, users, ledger)

	walletCfg := config.WalletConfig{SignupBonus: 0, ReferralBonus: 0, MinWithdrawal: 10000, MinDeposit: 1000}
	battleCfg := config.BattleConfig{MinStake: 100, MaxStake: 10_000_000, CommissionBps: 500}

	env := &testEnv{
		pool:        pool,
		users:       users,
		ledger:      ledger,
		stats:       stats,
		wallet:      wallet,
		accounts:    NewAccountService(pool, users, ledger, wallet, walletCfg),
		battles:     NewBattleService(pool, repository.NewBattleRepository(pool), users, stats, wallet, battleCfg),
		tournaments: NewTournamentService(pool, repository.NewTournamentRepository(pool), stats, wallet),
		payments: NewPaymentService(
			pool,
			repository.NewDepositRepository(pool),
			repository.NewWithdrawalRepository(pool),
			repository.NewUpiChannelRepository(pool),
			repository.NewPaymentOrderRepository(pool),
			users,
			wallet,
			walletCfg,
		),
	}

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return env, cleanup
}

func applyTestSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE users (
			id BIGSERIAL PRIMARY KEY,
			phone VARCHAR(15) NOT NULL UNIQUE,
			username VARCHAR(32) NOT NULL,
			password_hash VARCHAR(72) NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			winnings BIGINT NOT NULL DEFAULT 0 CHECK (winnings >= 0),
			kyc_status VARCHAR(16) NOT NULL DEFAULT 'pending',
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			role VARCHAR(16) NOT NULL DEFAULT 'none',
			referral_code VARCHAR(8) NOT NULL UNIQUE,
			referred_by BIGINT REFERENCES users(id),
			games_played BIGINT NOT NULL DEFAULT 0,
			games_won BIGINT NOT NULL DEFAULT 0,
			total_deposited BIGINT NOT NULL DEFAULT 0,
			total_withdrawn BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			bucket VARCHAR(16) NOT NULL,
			type VARCHAR(32) NOT NULL,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE battles (
			id BIGSERIAL PRIMARY KEY,
			amount BIGINT NOT NULL CHECK (amount > 0),
			status VARCHAR(16) NOT NULL DEFAULT 'challenge',
			creator_id BIGINT NOT NULL REFERENCES users(id),
			opponent_id BIGINT REFERENCES users(id),
			winner_id BIGINT REFERENCES users(id),
			claimant_id BIGINT REFERENCES users(id),
			room_code VARCHAR(8),
			commission_bps INT NOT NULL,
			screenshot_url TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE tournaments (
			id BIGSERIAL PRIMARY KEY,
			title VARCHAR(80) NOT NULL,
			entry_fee BIGINT NOT NULL CHECK (entry_fee >= 0),
			player_cap INT NOT NULL CHECK (player_cap >= 2),
			prize_pool BIGINT NOT NULL DEFAULT 0,
			commission_bps INT NOT NULL,
			prize_split INT[] NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'upcoming',
			starts_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE tournament_players (
			tournament_id BIGINT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id),
			final_rank INT,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tournament_id, user_id)
		);
		CREATE TABLE deposits (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			amount BIGINT NOT NULL CHECK (amount > 0),
			channel_id BIGINT NOT NULL,
			utr VARCHAR(32) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			reviewed_by BIGINT REFERENCES users(id),
			reviewed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE withdrawals (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			amount BIGINT NOT NULL CHECK (amount > 0),
			upi_id VARCHAR(64) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			utr VARCHAR(32),
			reviewed_by BIGINT REFERENCES users(id),
			reviewed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE upi_channels (
			id BIGSERIAL PRIMARY KEY,
			upi_id VARCHAR(64) NOT NULL UNIQUE,
			daily_limit BIGINT NOT NULL CHECK (daily_limit > 0),
			current_amount BIGINT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE payment_orders (
			order_id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			amount BIGINT NOT NULL CHECK (amount > 0),
			status VARCHAR(16) NOT NULL DEFAULT 'created',
			gateway_txn_id VARCHAR(64),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE platform_stats (
			id INT PRIMARY KEY,
			revenue BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		INSERT INTO platform_stats (id, revenue) VALUES (1, 0);
	`)
	return err
}

// fundUser registers a user and credits both wallet buckets through
// the wallet service so the ledger stays complete.
func fundUser(t *testing.T, env *testEnv, seq int, balance, winnings int64) *model.User {
	t.Helper()
	ctx := context.Background()

	user, err := env.accounts.Register(ctx, fmt.Sprintf("98765%05d", seq), fmt.Sprintf("player%d", seq), "secret123", "")
	require.NoError(t, err)

	if balance > 0 {
		user, err = env.wallet.Apply(ctx, user.ID, balance, model.BucketBalance, model.TxTypeAdminCredit, nil)
		require.NoError(t, err)
	}
	if winnings > 0 {
		user, err = env.wallet.Apply(ctx, user.ID, winnings, model.BucketWinnings, model.TxTypeAdminCredit, nil)
		require.NoError(t, err)
	}
	return user
}

// requireLedgerReconciles asserts the append-only ledger sums to the
// user's current wallet total.
func requireLedgerReconciles(t *testing.T, env *testEnv, userID int64) {
	t.Helper()
	ctx := context.Background()

	sum, err := env.ledger.SumByUser(ctx, userID)
	require.NoError(t, err)

	balance, winnings, err := env.wallet.Balances(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, balance+winnings, sum, "ledger must reconcile with wallet")
}

func TestWalletApplyRejectsOverdraft(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := fundUser(t, env, 1, 500, 0)

	_, err := env.wallet.Apply(ctx, user.ID, -600, model.BucketBalance, model.TxTypeAdminDebit, nil)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// Nothing moved and no ledger row was written.
	balance, _, err := env.wallet.Balances(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)
	requireLedgerReconciles(t, env, user.ID)
}

func TestDebitStakeSplitsAcrossBuckets(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := fundUser(t, env, 2, 300, 400)

	// 500 drains the 300 deposit balance and takes 200 from winnings.
	battle, err := env.battles.Create(ctx, user.ID, 500)
	require.NoError(t, err)
	assert.Equal(t, model.BattleChallenge, battle.Status)

	balance, winnings, err := env.wallet.Balances(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assert.Equal(t, int64(200), winnings)
	requireLedgerReconciles(t, env, user.ID)
}

func TestTournamentJoinExample(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := fundUser(t, env, 3, 100, 0)
	tournament, err := env.tournaments.Create(ctx, "Cup", 100, 2, 1000, []int32{10000}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	joined, err := env.tournaments.Join(ctx, tournament.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), joined.PrizePool)

	balance, winnings, err := env.wallet.Balances(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assert.Equal(t, int64(0), winnings)
	requireLedgerReconciles(t, env, user.ID)

	// The same user cannot enter twice, and a broke user cannot enter.
	_, err = env.tournaments.Join(ctx, tournament.ID, user.ID)
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	broke := fundUser(t, env, 4, 50, 0)
	_, err = env.tournaments.Join(ctx, tournament.ID, broke.ID)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestTournamentConcurrentJoinsRespectCap(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	const entrants = 6
	tournament, err := env.tournaments.Create(ctx, "Rush", 1000, 2, 500, []int32{10000}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	users := make([]*model.User, entrants)
	for i := range users {
		users[i] = fundUser(t, env, 10+i, 5000, 0)
	}

	var wg sync.WaitGroup
	errs := make([]error, entrants)
	wg.Add(entrants)
	for i, u := range users {
		go func(i int, userID int64) {
			defer wg.Done()
			_, errs[i] = env.tournaments.Join(ctx, tournament.ID, userID)
		}(i, u.ID)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrTournamentFull)
		}
	}
	assert.Equal(t, 2, succeeded)

	final, err := env.tournaments.Get(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), final.PrizePool)

	players, err := env.tournaments.Players(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, players, 2)
}

func TestTournamentCompletePaysPrizesAndCommission(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	first := fundUser(t, env, 20, 10000, 0)
	second := fundUser(t, env, 21, 10000, 0)

	tournament, err := env.tournaments.Create(ctx, "Final", 10000, 2, 1000, []int32{6000, 4000}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = env.tournaments.Join(ctx, tournament.ID, first.ID)
	require.NoError(t, err)
	_, err = env.tournaments.Join(ctx, tournament.ID, second.ID)
	require.NoError(t, err)
	require.NoError(t, env.tournaments.Start(ctx, tournament.ID))

	// Ranked results must cover every entrant.
	err = env.tournaments.Complete(ctx, tournament.ID, []int64{first.ID})
	assert.ErrorIs(t, err, ErrBadResults)

	require.NoError(t, env.tournaments.Complete(ctx, tournament.ID, []int64{second.ID, first.ID}))

	// Pool 20000, 10% commission, 60/40 of the remaining 18000.
	_, winnings, err := env.wallet.Balances(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10800), winnings)

	_, winnings, err = env.wallet.Balances(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7200), winnings)

	revenue, err := env.stats.Revenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), revenue)

	requireLedgerReconciles(t, env, first.ID)
	requireLedgerReconciles(t, env, second.ID)
}

func TestTournamentCompleteWithFewerFinishersThanPrizeRanks(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	first := fundUser(t, env, 25, 10000, 0)
	second := fundUser(t, env, 26, 10000, 0)

	// Three prize ranks, but the event starts with only two entrants.
	tournament, err := env.tournaments.Create(ctx, "Short Field", 10000, 3, 1000, []int32{5000, 3000, 2000}, time.Now().Add(time.Hour))
	require.NoError(t, err)

	_, err = env.tournaments.Join(ctx, tournament.ID, first.ID)
	require.NoError(t, err)
	_, err = env.tournaments.Join(ctx, tournament.ID, second.ID)
	require.NoError(t, err)
	require.NoError(t, env.tournaments.Start(ctx, tournament.ID))
	require.NoError(t, env.tournaments.Complete(ctx, tournament.ID, []int64{first.ID, second.ID}))

	// Pool 20000, 10% commission leaves 18000: ranks pay 9000, 5400
	// and an unclaimed 3600 which must land in revenue, not vanish.
	_, winnings, err := env.wallet.Balances(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), winnings)

	_, winnings, err = env.wallet.Balances(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5400), winnings)

	revenue, err := env.stats.Revenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5600), revenue)

	// Full pool accounted for.
	assert.Equal(t, int64(20000), 9000+5400+revenue)

	requireLedgerReconciles(t, env, first.ID)
	requireLedgerReconciles(t, env, second.ID)
}

func TestTournamentCreateRejectsSplitLongerThanCap(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	_, err := env.tournaments.Create(ctx, "Overbooked", 10000, 2, 1000, []int32{5000, 3000, 2000}, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrBadPrizeSplit)
}

func TestUserInsertConstraintsAreToldApart(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	_, err := env.users.Create(ctx, "9444444444", "first", "x", "SAMECODE", nil)
	require.NoError(t, err)

	// Same referral code, different phone: a collision to retry, not
	// a phone conflict to surface.
	_, err = env.users.Create(ctx, "9555555555", "second", "x", "SAMECODE", nil)
	require.Error(t, err)
	assert.ErrorIs(t, mapUserInsertErr(err), errReferralCodeCollision)

	// Same phone, different code: the caller's duplicate.
	_, err = env.users.Create(ctx, "9444444444", "third", "x", "OTHERCOD", nil)
	require.Error(t, err)
	assert.ErrorIs(t, mapUserInsertErr(err), ErrPhoneTaken)
}

func TestBattleSettlementExample(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	creator := fundUser(t, env, 30, 500, 0)
	opponent := fundUser(t, env, 31, 500, 0)
	admin := fundUser(t, env, 32, 0, 0)

	battle, err := env.battles.Create(ctx, creator.ID, 500)
	require.NoError(t, err)

	battle, err = env.battles.Accept(ctx, battle.ID, opponent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BattleOngoing, battle.Status)
	assert.NotNil(t, battle.RoomCode)

	battle, err = env.battles.SubmitResult(ctx, battle.ID, creator.ID, "https://cdn.example.com/win.png")
	require.NoError(t, err)
	assert.Equal(t, model.BattleUnderReview, battle.Status)

	battle, err = env.battles.Settle(ctx, battle.ID, admin.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BattleCompleted, battle.Status)

	// Stake 500 at 5%: winner nets +950 in winnings, platform keeps 50.
	balance, winnings, err := env.wallet.Balances(ctx, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assert.Equal(t, int64(950), winnings)

	revenue, err := env.stats.Revenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), revenue)

	winner, err := env.accounts.GetUser(ctx, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), winner.GamesPlayed)
	assert.Equal(t, int64(1), winner.GamesWon)

	requireLedgerReconciles(t, env, creator.ID)
	requireLedgerReconciles(t, env, opponent.ID)
}

func TestBattleVoidRefundsBothStakes(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	creator := fundUser(t, env, 40, 1000, 0)
	opponent := fundUser(t, env, 41, 1000, 0)
	admin := fundUser(t, env, 42, 0, 0)

	battle, err := env.battles.Create(ctx, creator.ID, 1000)
	require.NoError(t, err)
	_, err = env.battles.Accept(ctx, battle.ID, opponent.ID)
	require.NoError(t, err)

	battle, err = env.battles.Void(ctx, battle.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BattleCancelled, battle.Status)

	for _, id := range []int64{creator.ID, opponent.ID} {
		balance, _, err := env.wallet.Balances(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)
		requireLedgerReconciles(t, env, id)
	}
}

func TestDepositApprovalFlow(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := fundUser(t, env, 50, 0, 0)
	admin := fundUser(t, env, 51, 0, 0)

	_, err := env.payments.CreateChannel(ctx, "collect@upi", 1_000_000)
	require.NoError(t, err)

	deposit, err := env.payments.RequestDeposit(ctx, user.ID, 50000, "UTR12345678")
	require.NoError(t, err)

	approved, err := env.payments.ApproveDeposit(ctx, deposit.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, approved.Status)

	balance, _, err := env.wallet.Balances(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), balance)

	channels, err := env.payments.ListChannels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, int64(50000), channels[0].CurrentAmount)

	// Approving again hits the pending-status guard.
	_, err = env.payments.ApproveDeposit(ctx, deposit.ID, admin.ID)
	assert.ErrorIs(t, err, ErrNotPending)

	account, err := env.accounts.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), account.TotalDeposited)
	requireLedgerReconciles(t, env, user.ID)
}

func TestWithdrawalHoldAndReject(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := fundUser(t, env, 60, 0, 50000)
	admin := fundUser(t, env, 61, 0, 0)

	// Withdrawals require verified KYC.
	_, err := env.payments.RequestWithdrawal(ctx, user.ID, 20000, "user@upi")
	assert.ErrorIs(t, err, ErrKYCRequired)

	require.NoError(t, env.accounts.SubmitKYC(ctx, user.ID))
	require.NoError(t, env.accounts.ReviewKYC(ctx, user.ID, true))

	withdrawal, err := env.payments.RequestWithdrawal(ctx, user.ID, 20000, "user@upi")
	require.NoError(t, err)

	// The request holds the winnings immediately.
	_, winnings, err := env.wallet.Balances(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30000), winnings)

	rejected, err := env.payments.RejectWithdrawal(ctx, withdrawal.ID, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewRejected, rejected.Status)

	// Rejection refunds the hold in the same transaction.
	_, winnings, err = env.wallet.Balances(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), winnings)
	requireLedgerReconciles(t, env, user.ID)
}

func TestWithdrawalApproveRecordsUTR(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := fundUser(t, env, 70, 0, 50000)
	admin := fundUser(t, env, 71, 0, 0)

	require.NoError(t, env.accounts.SubmitKYC(ctx, user.ID))
	require.NoError(t, env.accounts.ReviewKYC(ctx, user.ID, true))

	withdrawal, err := env.payments.RequestWithdrawal(ctx, user.ID, 20000, "user@upi")
	require.NoError(t, err)

	approved, err := env.payments.ApproveWithdrawal(ctx, withdrawal.ID, admin.ID, "UTR99998888")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, approved.Status)
	require.NotNil(t, approved.UTR)
	assert.Equal(t, "UTR99998888", *approved.UTR)

	account, err := env.accounts.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), account.TotalWithdrawn)
	assert.Equal(t, int64(30000), account.Winnings)
}

func TestGatewayOrderConfirmIsIdempotent(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := fundUser(t, env, 80, 0, 0)

	order, err := env.payments.CreateOrder(ctx, user.ID, 50000)
	require.NoError(t, err)

	confirmed, err := env.payments.ConfirmOrder(ctx, order.OrderID, true, "T123", 50000)
	require.NoError(t, err)
	assert.Equal(t, model.OrderSuccess, confirmed.Status)

	// Replaying the callback must not credit twice.
	confirmed, err = env.payments.ConfirmOrder(ctx, order.OrderID, true, "T123", 50000)
	require.NoError(t, err)
	assert.Equal(t, model.OrderSuccess, confirmed.Status)

	balance, _, err := env.wallet.Balances(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), balance)
	requireLedgerReconciles(t, env, user.ID)
}

func TestGatewayOrderAmountMismatchAborts(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user := fundUser(t, env, 81, 0, 0)

	order, err := env.payments.CreateOrder(ctx, user.ID, 50000)
	require.NoError(t, err)

	_, err = env.payments.ConfirmOrder(ctx, order.OrderID, true, "T124", 90000)
	assert.ErrorIs(t, err, ErrOrderAmountMismatch)

	// The order stays open and nothing was credited.
	balance, _, err := env.wallet.Balances(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	current, err := env.payments.GetOrder(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCreated, current.Status)
}

func TestRegisterWithReferralCreditsBothInOneTx(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	bonusCfg := config.WalletConfig{SignupBonus: 2500, ReferralBonus: 2500, MinWithdrawal: 10000, MinDeposit: 1000}
	accounts := NewAccountService(env.pool, env.users, env.ledger, env.wallet, bonusCfg)

	referrer, err := accounts.Register(ctx, "9111111111", "referrer", "secret123", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), referrer.Balance)

	referred, err := accounts.Register(ctx, "9222222222", "referred", "secret123", referrer.ReferralCode)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), referred.Balance)

	after, err := accounts.GetUser(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), after.Balance)

	// A bad code aborts the whole signup.
	_, err = accounts.Register(ctx, "9333333333", "nobody", "secret123", "NOPE1234")
	assert.ErrorIs(t, err, ErrInvalidReferral)
	_, err = accounts.Login(ctx, "9333333333", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Duplicate phone is a clean conflict.
	_, err = accounts.Register(ctx, "9111111111", "again", "secret123", "")
	assert.ErrorIs(t, err, ErrPhoneTaken)

	requireLedgerReconciles(t, env, referrer.ID)
	requireLedgerReconciles(t, env, referred.ID)
}
