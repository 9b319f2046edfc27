// Package main is the entry point for the Ludo arena backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ludo-arena-backend/internal/config"
	"ludo-arena-backend/internal/gateway"
	"ludo-arena-backend/internal/handler"
	"ludo-arena-backend/internal/pkg/db"
	"ludo-arena-backend/internal/pkg/lock"
	"ludo-arena-backend/internal/repository"
	"ludo-arena-backend/internal/service"
	"ludo-arena-backend/internal/ws"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// .env is optional; real deployments set environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("auth.jwt_secret is required")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	ledgerRepo := repository.NewLedgerRepository(dbPool.Pool)
	battleRepo := repository.NewBattleRepository(dbPool.Pool)
	tournamentRepo := repository.NewTournamentRepository(dbPool.Pool)
	depositRepo := repository.NewDepositRepository(dbPool.Pool)
	withdrawalRepo := repository.NewWithdrawalRepository(dbPool.Pool)
	channelRepo := repository.NewUpiChannelRepository(dbPool.Pool)
	orderRepo := repository.NewPaymentOrderRepository(dbPool.Pool)
	statsRepo := repository.NewStatsRepository(dbPool.Pool)

	// Initialize services
	walletService := service.NewWalletService(dbPool.Pool, userRepo, ledgerRepo)
	accountService := service.NewAccountService(dbPool.Pool, userRepo, ledgerRepo, walletService, cfg.Wallet)
	battleService := service.NewBattleService(dbPool.Pool, battleRepo, userRepo, statsRepo, walletService, cfg.Battle)
	tournamentService := service.NewTournamentService(dbPool.Pool, tournamentRepo, statsRepo, walletService)
	paymentService := service.NewPaymentService(
		dbPool.Pool, depositRepo, withdrawalRepo, channelRepo, orderRepo, userRepo, walletService, cfg.Wallet,
	)
	tokenService := service.NewTokenService(cfg.Auth)

	router := handler.NewRouter(&handler.Deps{
		Accounts:    accountService,
		Wallet:      walletService,
		Battles:     battleService,
		Tournaments: tournamentService,
		Payments:    paymentService,
		Tokens:      tokenService,
		Stats:       statsRepo,
		Gateway:     gateway.NewClient(cfg.Paytm),
		Hub:         ws.NewHub(),
		Locks:       lock.NewKeyed(),
		RedirectURL: cfg.Server.RedirectURL,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Server is starting...")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: users
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
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
		CREATE INDEX IF NOT EXISTS idx_users_phone ON users(phone);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: transactions ledger (append-only)
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			bucket VARCHAR(16) NOT NULL,
			type VARCHAR(32) NOT NULL,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_transactions_type_time ON transactions(type, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: transactions table created")

	// Migration 3: battles
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS battles (
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
		CREATE INDEX IF NOT EXISTS idx_battles_status_time ON battles(status, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_battles_creator ON battles(creator_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: battles table created")

	// Migration 4: tournaments and entrants
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tournaments (
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
		CREATE TABLE IF NOT EXISTS tournament_players (
			tournament_id BIGINT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(id),
			final_rank INT,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (tournament_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_tournaments_status ON tournaments(status, starts_at);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: tournaments tables created")

	// Migration 5: deposits and withdrawals
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS deposits (
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
		CREATE TABLE IF NOT EXISTS withdrawals (
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
		CREATE INDEX IF NOT EXISTS idx_deposits_status_time ON deposits(status, created_at);
		CREATE INDEX IF NOT EXISTS idx_withdrawals_status_time ON withdrawals(status, created_at);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: deposits and withdrawals tables created")

	// Migration 6: UPI channels
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS upi_channels (
			id BIGSERIAL PRIMARY KEY,
			upi_id VARCHAR(64) NOT NULL UNIQUE,
			daily_limit BIGINT NOT NULL CHECK (daily_limit > 0),
			current_amount BIGINT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 6: upi_channels table created")

	// Migration 7: gateway payment orders
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS payment_orders (
			order_id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			amount BIGINT NOT NULL CHECK (amount > 0),
			status VARCHAR(16) NOT NULL DEFAULT 'created',
			gateway_txn_id VARCHAR(64),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_payment_orders_user ON payment_orders(user_id, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 7: payment_orders table created")

	// Migration 8: platform stats seed row
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS platform_stats (
			id INT PRIMARY KEY,
			revenue BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		INSERT INTO platform_stats (id, revenue) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 8: platform_stats table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
