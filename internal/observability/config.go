package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/ndpcatalog/internal/config"
)

// Config holds observability settings resolved from the application config
// and the standard OTEL_* environment variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "ndpcatalog"
	}

	out := Config{
		ServiceName:          serviceName,
		Environment:          env("DEPLOYMENT_ENV", cfg.Environment),
		Version:              env("SERVICE_VERSION", cfg.AppVersion),
		LogLevel:             strings.ToLower(env("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(env("LOG_FORMAT", "json")),
		OtelEnabled:          false,
		OtelExporterEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(env("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", env("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
		OtelSamplingRatio:    1.0,
	}

	if enabled, err := strconv.ParseBool(env("OTEL_ENABLED", "false")); err == nil {
		out.OtelEnabled = enabled
	}
	if ratio, err := strconv.ParseFloat(env("OTEL_SAMPLING_RATIO", ""), 64); err == nil {
		out.OtelSamplingRatio = ratio
	}

	return out
}

// Debug reports whether verbose diagnostics (stack traces, error text in
// request logs) should be emitted.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func env(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return strings.TrimSpace(def)
}
