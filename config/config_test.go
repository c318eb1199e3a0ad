package config_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/progression-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "progression.db", cfg.Database.Path)
	assert.Equal(t, 10, cfg.App.WelcomeBonus)
	assert.Equal(t, 50.0, cfg.Server.RedeemRatePerSec)
	assert.False(t, cfg.App.IsProduction())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("APP_WELCOME_BONUS", "0")
	t.Setenv("APP_ENVIRONMENT", "production")

	cfg, err := config.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, 0, cfg.App.WelcomeBonus)
	assert.True(t, cfg.App.IsProduction())
}
