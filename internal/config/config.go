// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Battle   BattleConfig   `mapstructure:"battle"`
	Paytm    PaytmConfig    `mapstructure:"paytm"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Env         string `mapstructure:"env"`
	RedirectURL string `mapstructure:"redirect_url"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AuthConfig holds JWT session configuration.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// WalletConfig holds bonus and payout limits.
type WalletConfig struct {
	SignupBonus   int64 `mapstructure:"signup_bonus"`
	ReferralBonus int64 `mapstructure:"referral_bonus"`
	MinWithdrawal int64 `mapstructure:"min_withdrawal"`
	MinDeposit    int64 `mapstructure:"min_deposit"`
}

// BattleConfig holds wager limits and the platform commission.
// CommissionBps is copied onto each battle at creation time.
type BattleConfig struct {
	MinStake      int64 `mapstructure:"min_stake"`
	MaxStake      int64 `mapstructure:"max_stake"`
	CommissionBps int32 `mapstructure:"commission_bps"`
}

// PaytmConfig holds payment gateway credentials.
type PaytmConfig struct {
	MerchantID  string `mapstructure:"merchant_id"`
	MerchantKey string `mapstructure:"merchant_key"`
	Website     string `mapstructure:"website"`
	BaseURL     string `mapstructure:"base_url"`
	CallbackURL string `mapstructure:"callback_url"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. DATABASE_HOST, AUTH_JWT_SECRET, PAYTM_MERCHANT_KEY.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - we can use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Battle.CommissionBps < 0 || cfg.Battle.CommissionBps > 10000 {
		return nil, fmt.Errorf("battle.commission_bps out of range: %d", cfg.Battle.CommissionBps)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.redirect_url", "/payment/status")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ludoarena")
	v.SetDefault("database.name", "ludoarena")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("auth.token_ttl", "24h")

	// Bonus and limit defaults, in paise.
	v.SetDefault("wallet.signup_bonus", 2500)
	v.SetDefault("wallet.referral_bonus", 2500)
	v.SetDefault("wallet.min_withdrawal", 10000)
	v.SetDefault("wallet.min_deposit", 1000)

	v.SetDefault("battle.min_stake", 5000)
	v.SetDefault("battle.max_stake", 10000000)
	v.SetDefault("battle.commission_bps", 500)

	v.SetDefault("paytm.website", "DEFAULT")
	v.SetDefault("paytm.base_url", "https://securegw.paytm.in")
}
