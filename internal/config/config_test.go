package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(50), cfg.Volatility.ConfidenceFloor)
	assert.Equal(t, int64(30), cfg.Volatility.ReliabilityFloor)
	assert.Equal(t, int64(5), cfg.Slippage.MinBps)
	assert.Equal(t, int64(1000), cfg.Slippage.MaxBps)
	assert.Equal(t, int64(300), cfg.Orders.RefreshIntervalSec)
	assert.Equal(t, int64(10), cfg.Orders.FillAttemptLimit)
	assert.Equal(t, 10, cfg.Optimizer.VolatilityBuckets)
}

func TestSlippageConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SlippageConfig
		wantErr bool
	}{
		{
			name: "valid",
			cfg: SlippageConfig{
				MinBps: 5, MaxBps: 1000, DefaultBaseBps: 50,
				VolatilityMultiplier: 100, EMAAlphaBps: 2000,
			},
		},
		{
			name: "min above max",
			cfg: SlippageConfig{
				MinBps: 100, MaxBps: 50, DefaultBaseBps: 60,
				VolatilityMultiplier: 100, EMAAlphaBps: 2000,
			},
			wantErr: true,
		},
		{
			name: "base below min",
			cfg: SlippageConfig{
				MinBps: 20, MaxBps: 1000, DefaultBaseBps: 10,
				VolatilityMultiplier: 100, EMAAlphaBps: 2000,
			},
			wantErr: true,
		},
		{
			name: "multiplier out of range",
			cfg: SlippageConfig{
				MinBps: 5, MaxBps: 1000, DefaultBaseBps: 50,
				VolatilityMultiplier: 5000, EMAAlphaBps: 2000,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOptimizerConfigValidate(t *testing.T) {
	valid := OptimizerConfig{
		VolatilityBuckets: 10, SizeBuckets: 3,
		FloorBps: 5, CeilingBps: 1000, Momentum: 30,
	}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.CeilingBps = 5
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Momentum = 150
	assert.Error(t, bad.Validate())
}
