package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBAutoMigrate     bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Remote   RemoteCatalogConfig
	Identity IdentityConfig
	Approval ApprovalConfig
	HTTP     HTTPConfig
}

// RemoteCatalogConfig points at the production catalog action API.
type RemoteCatalogConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// IdentityConfig selects how bearer tokens are verified.
type IdentityConfig struct {
	Mode         string
	UserInfoURL  string
	JWTPublicKey string
	JWTIssuer    string
	JWTAudience  string
	Timeout      time.Duration
}

type ApprovalConfig struct {
	LockTTL     time.Duration
	RosterPaths []string
}

type HTTPConfig struct {
	RateLimitPerSecond int
	RateLimitBurst     int
}

const (
	IdentityModeUserInfo = "userinfo"
	IdentityModeJWT      = "jwt"
)

var (
	ErrMissingRemoteURL    = errors.New("remote catalog url is not configured")
	ErrMissingRemoteAPIKey = errors.New("remote catalog api key is not configured")
	ErrInvalidIdentityMode = errors.New("invalid identity mode")
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "ndpcatalog"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "ndpcatalog"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "ndpcatalog.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBAutoMigrate:     getenvBool("DATABASE_AUTO_MIGRATE", true),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		Remote: RemoteCatalogConfig{
			BaseURL: strings.TrimRight(strings.TrimSpace(getenv("NDP_REMOTE_CATALOG_URL", "")), "/"),
			APIKey:  strings.TrimSpace(getenv("NDP_REMOTE_CATALOG_API_KEY", "")),
			Timeout: getenvDuration("NDP_REMOTE_CATALOG_TIMEOUT", 15*time.Second),
		},
		Identity: IdentityConfig{
			Mode:         strings.ToLower(strings.TrimSpace(getenv("NDP_IDENTITY_MODE", IdentityModeUserInfo))),
			UserInfoURL:  strings.TrimSpace(getenv("NDP_IDENTITY_USERINFO_URL", "")),
			JWTPublicKey: getenv("NDP_IDENTITY_JWT_PUBLIC_KEY", ""),
			JWTIssuer:    strings.TrimSpace(getenv("NDP_IDENTITY_JWT_ISSUER", "")),
			JWTAudience:  strings.TrimSpace(getenv("NDP_IDENTITY_JWT_AUDIENCE", "")),
			Timeout:      getenvDuration("NDP_IDENTITY_TIMEOUT", 5*time.Second),
		},
		Approval: ApprovalConfig{
			LockTTL:     getenvDuration("NDP_APPROVAL_LOCK_TTL", 0),
			RosterPaths: splitList(getenv("NDP_REVIEWERS_CONFIG_PATH", "/etc/ndpcatalog,.")),
		},
		HTTP: HTTPConfig{
			RateLimitPerSecond: getenvInt("HTTP_RATE_LIMIT_PER_SECOND", 10),
			RateLimitBurst:     getenvInt("HTTP_RATE_LIMIT_BURST", 20),
		},
	}

	return cfg
}

// Validate fails when the remote catalog or identity settings are unusable.
func (c Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return ErrMissingRemoteURL
	}
	if _, err := url.ParseRequestURI(c.Remote.BaseURL); err != nil {
		return fmt.Errorf("remote catalog url: %w", err)
	}
	if c.Remote.APIKey == "" {
		return ErrMissingRemoteAPIKey
	}
	switch c.Identity.Mode {
	case IdentityModeUserInfo:
		if c.Identity.UserInfoURL == "" {
			return fmt.Errorf("%w: userinfo url is required", ErrInvalidIdentityMode)
		}
	case IdentityModeJWT:
		if strings.TrimSpace(c.Identity.JWTPublicKey) == "" {
			return fmt.Errorf("%w: jwt public key is required", ErrInvalidIdentityMode)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidIdentityMode, c.Identity.Mode)
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return def
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
