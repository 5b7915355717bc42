package observability

import (
	"testing"

	"github.com/smallbiznis/ndpcatalog/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("OTEL_ENABLED", "")

	cfg := LoadConfig(config.Config{AppName: "", Environment: "test", AppVersion: "1.2.3"})
	assert.Equal(t, "ndpcatalog", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.OtelEnabled)
	assert.True(t, cfg.Debug())
}

func TestDebugInProduction(t *testing.T) {
	cfg := Config{Environment: "production", LogLevel: "info"}
	assert.False(t, cfg.Debug())

	cfg.LogLevel = "debug"
	assert.True(t, cfg.Debug())
}
