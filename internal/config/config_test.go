package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 384, cfg.EmbeddingDim)
	assert.Equal(t, 50.0, cfg.GeoRadiusKM)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.OfferTTL)
	assert.Equal(t, 0.05, cfg.MinEpsilon)
	assert.Equal(t, 0.30, cfg.BetaEquity)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LITGO_EMBEDDING_DIM", "768")
	t.Setenv("LITGO_GEO_RADIUS_KM", "25.5")
	t.Setenv("LITGO_OFFER_TTL", "48h")
	t.Setenv("LITGO_BETA_EQUITY", "0.2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 768, cfg.EmbeddingDim)
	assert.Equal(t, 25.5, cfg.GeoRadiusKM)
	assert.Equal(t, 48*time.Hour, cfg.OfferTTL)
	assert.Equal(t, 0.2, cfg.BetaEquity)
}

func TestLoadInvalidValueFallsBack(t *testing.T) {
	t.Setenv("LITGO_TOP_N", "abc")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.TopN)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	t.Setenv("LITGO_BETA_EQUITY", "1.5")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LITGO_BETA_EQUITY")
}

func TestValidateRejectsNonPositiveDim(t *testing.T) {
	t.Setenv("LITGO_EMBEDDING_DIM", "-1")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LITGO_EMBEDDING_DIM")
}
