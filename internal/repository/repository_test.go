// Tests use testcontainers-go to spin up a PostgreSQL container and
// are skipped when Docker is not available.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ludo-arena-backend/internal/model"
)

func checkDockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// setupTestDB creates a PostgreSQL container, applies the schema and
// returns a connection pool with a cleanup function.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
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

	require.NoError(t, applySchema(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return pool, cleanup
}

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
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

func createTestUser(t *testing.T, repo *UserRepository, phone, code string) *model.User {
	t.Helper()
	user, err := repo.Create(context.Background(), phone, "player_"+code, "x", code, nil)
	require.NoError(t, err)
	return user
}

// ============================================================================
// UserRepository
// ============================================================================

func TestUserRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user := createTestUser(t, repo, "9876543210", "AAAA0001")
	assert.Equal(t, "9876543210", user.Phone)
	assert.Equal(t, int64(0), user.Balance)
	assert.Equal(t, model.KYCPending, user.KYCStatus)
	assert.Equal(t, model.RoleNone, user.Role)

	got, err := repo.GetByPhone(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	got, err = repo.GetByReferralCode(ctx, "AAAA0001")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_ApplyToBucket(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()
	user := createTestUser(t, repo, "9000000001", "AAAA0002")

	updated, err := repo.ApplyToBucket(ctx, user.ID, model.BucketBalance, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), updated.Balance)

	updated, err = repo.ApplyToBucket(ctx, user.ID, model.BucketWinnings, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(300), updated.Winnings)

	updated, err = repo.ApplyToBucket(ctx, user.ID, model.BucketBalance, -400)
	require.NoError(t, err)
	assert.Equal(t, int64(600), updated.Balance)

	// Overdrawing a bucket writes nothing.
	_, err = repo.ApplyToBucket(ctx, user.ID, model.BucketBalance, -601)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	after, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), after.Balance)
	assert.Equal(t, int64(300), after.Winnings)

	_, err = repo.ApplyToBucket(ctx, 99999, model.BucketBalance, 100)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_Counters(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()
	user := createTestUser(t, repo, "9000000002", "AAAA0003")

	require.NoError(t, repo.RecordGameResult(ctx, user.ID, true))
	require.NoError(t, repo.RecordGameResult(ctx, user.ID, false))
	require.NoError(t, repo.AddTotalDeposited(ctx, user.ID, 5000))
	require.NoError(t, repo.AddTotalWithdrawn(ctx, user.ID, 2000))

	after, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), after.GamesPlayed)
	assert.Equal(t, int64(1), after.GamesWon)
	assert.Equal(t, int64(5000), after.TotalDeposited)
	assert.Equal(t, int64(2000), after.TotalWithdrawn)
}

// ============================================================================
// LedgerRepository
// ============================================================================

func TestLedgerRepository_CreateAndSum(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	ledger := NewLedgerRepository(pool)
	ctx := context.Background()
	user := createTestUser(t, users, "9000000003", "AAAA0004")

	notes := "test credit"
	_, err := ledger.Create(ctx, user.ID, 1000, model.BucketBalance, model.TxTypeDeposit, &notes)
	require.NoError(t, err)
	_, err = ledger.Create(ctx, user.ID, -300, model.BucketBalance, model.TxTypeBattleStake, nil)
	require.NoError(t, err)
	_, err = ledger.Create(ctx, user.ID, 500, model.BucketWinnings, model.TxTypeBattleWin, nil)
	require.NoError(t, err)

	entries, err := ledger.ListByUser(ctx, user.ID, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	sum, err := ledger.SumByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), sum)

	balanceSum, err := ledger.SumByUserAndBucket(ctx, user.ID, model.BucketBalance)
	require.NoError(t, err)
	assert.Equal(t, int64(700), balanceSum)
}

// ============================================================================
// TournamentRepository
// ============================================================================

func TestTournamentRepository_DoubleJoinBlocked(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	tournaments := NewTournamentRepository(pool)
	ctx := context.Background()

	user := createTestUser(t, users, "9000000004", "AAAA0005")
	tournament, err := tournaments.Create(ctx, &model.Tournament{
		Title:         "Evening Cup",
		EntryFee:      10000,
		PlayerCap:     8,
		CommissionBps: 1000,
		PrizeSplit:    []int32{6000, 4000},
		StartsAt:      time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, model.TournamentUpcoming, tournament.Status)
	assert.Equal(t, []int32{6000, 4000}, tournament.PrizeSplit)

	require.NoError(t, tournaments.AddPlayer(ctx, tournament.ID, user.ID))
	assert.ErrorIs(t, tournaments.AddPlayer(ctx, tournament.ID, user.ID), ErrAlreadyJoined)

	count, err := tournaments.CountPlayers(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), count)

	joined, err := tournaments.IsPlayer(ctx, tournament.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, joined)
}

// ============================================================================
// UpiChannelRepository
// ============================================================================

func TestUpiChannelRotation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	channels := NewUpiChannelRepository(pool)
	ctx := context.Background()

	first, err := channels.Create(ctx, "pay1@upi", 10000)
	require.NoError(t, err)
	second, err := channels.Create(ctx, "pay2@upi", 50000)
	require.NoError(t, err)

	// Lowest-id channel with headroom wins.
	picked, err := channels.PickForAmount(ctx, 8000)
	require.NoError(t, err)
	assert.Equal(t, first.ID, picked.ID)

	// Filling the first channel rotates deposits to the second.
	require.NoError(t, channels.AddToCurrent(ctx, first.ID, 9000))
	picked, err = channels.PickForAmount(ctx, 8000)
	require.NoError(t, err)
	assert.Equal(t, second.ID, picked.ID)

	// Resetting the counter brings the first channel back.
	require.NoError(t, channels.ResetCurrent(ctx, first.ID))
	picked, err = channels.PickForAmount(ctx, 8000)
	require.NoError(t, err)
	assert.Equal(t, first.ID, picked.ID)

	// A disabled channel is never picked.
	require.NoError(t, channels.SetActive(ctx, first.ID, false))
	picked, err = channels.PickForAmount(ctx, 8000)
	require.NoError(t, err)
	assert.Equal(t, second.ID, picked.ID)

	// No channel can absorb an amount beyond every limit.
	_, err = channels.PickForAmount(ctx, 60000)
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

// ============================================================================
// DepositRepository
// ============================================================================

func TestDepositReviewIsOneWay(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	deposits := NewDepositRepository(pool)
	ctx := context.Background()

	user := createTestUser(t, users, "9000000005", "AAAA0006")
	admin := createTestUser(t, users, "9000000006", "AAAA0007")

	deposit, err := deposits.Create(ctx, user.ID, 50000, 1, "UTR12345678")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewPending, deposit.Status)

	approved, err := deposits.Review(ctx, deposit.ID, admin.ID, model.ReviewApproved)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, admin.ID, *approved.ReviewedBy)

	// A second review finds no pending row.
	_, err = deposits.Review(ctx, deposit.ID, admin.ID, model.ReviewRejected)
	assert.ErrorIs(t, err, ErrDepositNotFound)
}

// ============================================================================
// PaymentOrderRepository
// ============================================================================

func TestPaymentOrderFinish(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	orders := NewPaymentOrderRepository(pool)
	ctx := context.Background()

	user := createTestUser(t, users, "9000000007", "AAAA0008")

	order, err := orders.Create(ctx, "7f9c24e8-3b1a-4f6e-9c2d-8a5b7c1d2e3f", user.ID, 50000)
	require.NoError(t, err)
	assert.Equal(t, model.OrderCreated, order.Status)

	txnID := "T0001"
	finished, err := orders.Finish(ctx, order.OrderID, model.OrderSuccess, &txnID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderSuccess, finished.Status)
	require.NotNil(t, finished.GatewayTxnID)
	assert.Equal(t, "T0001", *finished.GatewayTxnID)

	_, err = orders.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

// ============================================================================
// StatsRepository
// ============================================================================

func TestStatsRepository_Revenue(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	stats := NewStatsRepository(pool)
	ctx := context.Background()

	require.NoError(t, stats.AddRevenue(ctx, 50))
	require.NoError(t, stats.AddRevenue(ctx, 100))

	revenue, err := stats.Revenue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(150), revenue)
}
