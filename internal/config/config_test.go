package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/autoparts-api/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL": "postgres://localhost/autoparts",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	env := baseEnv()
	env["PROMOTION_CACHE_TTL"] = ""
	env["PRICING_TAX_RATE_BPS"] = ""
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)

	require.Equal(t, 30*time.Second, cfg.PromotionCacheTTL)
	require.Equal(t, 0, cfg.PricingTaxRateBPS)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "300-M", cfg.RateLimit)
}

func TestLoadClampsPromotionCacheTTL(t *testing.T) {
	env := baseEnv()
	env["PROMOTION_CACHE_TTL"] = "5m"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)
	require.Equal(t, config.MaxPromotionCacheTTL, cfg.PromotionCacheTTL)
}

func TestLoadRejectsInvalidTaxRate(t *testing.T) {
	env := baseEnv()
	env["PRICING_TAX_RATE_BPS"] = "12000"
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}

func TestLoadRequiresSecrets(t *testing.T) {
	env := baseEnv()
	env["JWT_SECRET"] = ""
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}
