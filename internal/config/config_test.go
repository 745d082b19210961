package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-volatility-alerts/internal/asset"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Detector.Window)
	assert.Equal(t, 2.0, cfg.Detector.ThresholdPct)
	assert.Equal(t, "usd", cfg.Source.VsCurrency)

	assets, err := cfg.Assets()
	require.NoError(t, err)
	assert.Equal(t, []asset.Asset{asset.BTC, asset.ETH, asset.XRP}, assets)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Scheduler.Interval = 0
	assert.Error(t, cfg.Validate())

	cfg, _ = Load("")
	cfg.Source.Assets = []string{"DOGE"}
	assert.Error(t, cfg.Validate())

	cfg, _ = Load("")
	cfg.Alerting.Enabled = true
	cfg.Alerting.WebhookURL = ""
	assert.Error(t, cfg.Validate())
}

func TestResolveMaxPoints(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100000, cfg.ResolveMaxPoints(0))
	assert.Equal(t, 50, cfg.ResolveMaxPoints(50))
}
