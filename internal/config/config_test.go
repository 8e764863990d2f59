package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Database.Driver = "sqlite"
	cfg.JWT.Secret = "secret"
	cfg.Slip.Endpoint = "https://slips.internal/verify"
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"release without slip verifier", func(c *Config) { c.Slip.Endpoint = "" }, "slip.endpoint is required in release mode"},
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "jwt.secret is required"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, `unsupported database driver "oracle"`},
		{"postgres without host", func(c *Config) { c.Database.Driver = "postgres" }, "database.host or database.dsn is required"},
		{"fee rate of one", func(c *Config) { c.Business.WithdrawFeeRate = "1" }, "business.withdraw_fee_rate must be in [0, 1)"},
		{"no trial days", func(c *Config) { c.Business.TrialDays = 0 }, "business.trial_days must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.EqualError(t, cfg.Validate(), tt.want)
		})
	}

	t.Run("manual verifier is allowed outside release", func(t *testing.T) {
		cfg := validConfig()
		cfg.Slip.Endpoint = ""
		cfg.Server.Mode = "debug"
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}

	write(`
server:
  mode: release
database:
  driver: sqlite
jwt:
  secret: s3cret
`)
	_, err := LoadConfig(path)
	assert.EqualError(t, err, "slip.endpoint is required in release mode")

	write(`
server:
  mode: release
database:
  driver: sqlite
jwt:
  secret: s3cret
slip:
  endpoint: https://slips.internal/verify
business:
  merchant_min_withdraw: 70000
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://slips.internal/verify", cfg.Slip.Endpoint)
	assert.Equal(t, int64(70000), cfg.Business.MerchantMinWithdraw)
	assert.Equal(t, 30, cfg.Business.TrialDays, "unset keys keep their defaults")
}
