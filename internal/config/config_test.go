package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pagewatch/internal/config"
)

func TestDefaults(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	cfg := config.GetConfig()

	assert.Equal(t, "pagewatch", cfg.AppName)
	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, config.Development, cfg.Environment)
	assert.Equal(t, config.LogLevelDebug, cfg.LogLevel)
	assert.Equal(t, 1000, cfg.EventCap)
	assert.Equal(t, 1800, cfg.SessionGapSeconds)
	assert.Equal(t, 50, cfg.InsightMinSampleInflow)
	assert.Equal(t, 1.0, cfg.InsightConversionFloor)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.HasRemoteConfig())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PAGEWATCH_ENV", config.Test)
	t.Setenv("PAGEWATCH_APP_PORT", "8080")
	t.Setenv("PAGEWATCH_EVENT_CAP", "250")
	t.Setenv("PAGEWATCH_STORAGE_PATH", "/tmp/pagewatch")

	config.Reset()
	t.Cleanup(config.Reset)

	cfg := config.GetConfig()

	assert.Equal(t, config.Test, cfg.Environment)
	assert.True(t, cfg.IsTest())
	assert.Equal(t, "8080", cfg.GetPort())
	assert.Equal(t, 250, cfg.EventCap)
	assert.Equal(t, "/tmp/pagewatch/pagewatch-test.db", cfg.GetDatabasePath())
}

func TestGetConfigIsCached(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	assert.Same(t, config.GetConfig(), config.GetConfig())
}

func TestHasRemoteConfig(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		key      string
		want     bool
	}{
		{"both empty", "", "", false},
		{"endpoint only", "postgres://db.example.com/analytics", "", false},
		{"key only", "", "real-key", false},
		{"both real", "postgres://db.example.com/analytics", "sk-live-abc123", true},
		{"placeholder endpoint", "postgres://your-project.example.com/analytics", "sk-live-abc123", false},
		{"placeholder key", "postgres://db.example.com/analytics", "changeme", false},
		{"masked key", "postgres://db.example.com/analytics", "xxxx-xxxx", false},
		{"whitespace key", "postgres://db.example.com/analytics", "   ", false},
		{"uppercase placeholder", "postgres://db.example.com/analytics", "CHANGEME", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				RemoteEndpoint:  tt.endpoint,
				RemoteAccessKey: tt.key,
			}
			assert.Equal(t, tt.want, cfg.HasRemoteConfig())
		})
	}
}
