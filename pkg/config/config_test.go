package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int             `env:"TEST_CFG_PORT" envDefault:"8080"`
	LogLevel string          `env:"TEST_CFG_LOG_LEVEL" envDefault:"info"`
	Interval time.Duration   `env:"TEST_CFG_INTERVAL" envDefault:"1500ms"`
	Rate     decimal.Decimal `env:"TEST_CFG_RATE" envDefault:"0.20"`
	Enabled  bool            `env:"TEST_CFG_ENABLED" envDefault:"true"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1500*time.Millisecond, cfg.Interval)
	assert.True(t, cfg.Rate.Equal(decimal.RequireFromString("0.2")))
	assert.True(t, cfg.Enabled)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_INTERVAL", "2s")
	t.Setenv("TEST_CFG_RATE", "0.05")
	t.Setenv("TEST_CFG_ENABLED", "false")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, "0.05", cfg.Rate.String())
	assert.False(t, cfg.Enabled)
}

func TestLoad_InvalidDecimal(t *testing.T) {
	t.Setenv("TEST_CFG_RATE", "twenty percent")

	var cfg testConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

type requiredConfig struct {
	APIKey string `env:"TEST_CFG_API_KEY,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	require.Error(t, Load(&cfg))
}

func TestLoad_NonPointer(t *testing.T) {
	require.Error(t, Load(testConfig{}))
}
