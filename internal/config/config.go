package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the root of config.yaml.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Slip     SlipConfig     `mapstructure:"slip"`
	Log      LogConfig      `mapstructure:"log"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig covers the three drivers the service can run on.
// DSN wins over the discrete fields when set.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	WalletEvents string `mapstructure:"wallet_events"`
	Push         string `mapstructure:"push"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
}

// SlipConfig points at the payment-slip verification service. An empty
// endpoint selects the manual verifier, which is refused in release mode.
type SlipConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// BusinessConfig holds business rules. Amounts are in satang (1/100 THB).
type BusinessConfig struct {
	TrialDays              int              `mapstructure:"trial_days"`
	DuplicateWindowSeconds int              `mapstructure:"duplicate_window_seconds"`
	WithdrawFeeRate        string           `mapstructure:"withdraw_fee_rate"`
	WithdrawMinFee         int64            `mapstructure:"withdraw_min_fee"`
	MerchantMinWithdraw    int64            `mapstructure:"merchant_min_withdraw"`
	ReferralMinWithdraw    int64            `mapstructure:"referral_min_withdraw"`
	PastDueGraceDays       int              `mapstructure:"past_due_grace_days"`
	DataRetentionDays      int              `mapstructure:"data_retention_days"`
	TopUpTimeoutMinutes    int              `mapstructure:"topup_timeout_minutes"`
	MaxRetryCount          int              `mapstructure:"max_retry_count"`
	SweepSpec              string           `mapstructure:"sweep_spec"`
	ReferralRewards        map[string]int64 `mapstructure:"referral_rewards"`
}

// FeeRate parses the configured withdrawal fee rate.
func (b BusinessConfig) FeeRate() decimal.Decimal {
	rate, err := decimal.NewFromString(b.WithdrawFeeRate)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func (b BusinessConfig) DuplicateWindow() time.Duration {
	return time.Duration(b.DuplicateWindowSeconds) * time.Second
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, Mode: "release"},
		Database: DatabaseConfig{Driver: "postgres", Port: 5432, MaxOpenConns: 50, MaxIdleConns: 10},
		Redis:    RedisConfig{Host: "localhost", Port: 6379},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   KafkaTopicConfig{WalletEvents: "couponhub.wallet", Push: "couponhub.push"},
		},
		Slip: SlipConfig{TimeoutSeconds: 10},
		Business: BusinessConfig{
			TrialDays:              30,
			DuplicateWindowSeconds: 10,
			WithdrawFeeRate:        "0.02",
			WithdrawMinFee:         1000,
			MerchantMinWithdraw:    50000,
			ReferralMinWithdraw:    10000,
			PastDueGraceDays:       7,
			DataRetentionDays:      90,
			TopUpTimeoutMinutes:    30,
			MaxRetryCount:          5,
			SweepSpec:              "@every 15m",
			ReferralRewards: map[string]int64{
				"basic":   5000,
				"pro":     10000,
				"premium": 20000,
			},
		},
	}
}

// LoadConfig reads .env, then config.yaml (config.local.yaml next to it takes
// precedence), then environment overrides such as DATABASE_HOST.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	localConfigPath := filepath.Join(filepath.Dir(configPath), "config.local.yaml")
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the values the service cannot run without are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver != "sqlite" && c.Database.DSN == "" && c.Database.Host == "" {
		return errors.New("database.host or database.dsn is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	// the manual verifier accepts every slip
	if c.Server.Mode == "release" && c.Slip.Endpoint == "" {
		return errors.New("slip.endpoint is required in release mode")
	}

	rate, err := decimal.NewFromString(c.Business.WithdrawFeeRate)
	if err != nil {
		return fmt.Errorf("invalid business.withdraw_fee_rate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("business.withdraw_fee_rate must be in [0, 1)")
	}
	if c.Business.WithdrawMinFee < 0 || c.Business.MerchantMinWithdraw < 0 || c.Business.ReferralMinWithdraw < 0 {
		return errors.New("business amounts must not be negative")
	}
	if c.Business.TrialDays <= 0 {
		return errors.New("business.trial_days must be positive")
	}
	return nil
}
