package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sync sources.
const (
	SourceNone     = "none"
	SourceHTTP     = "http"
	SourceS3       = "s3"
	SourcePostgres = "postgres"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	TLSEnabled     bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile    string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string        `mapstructure:"TLS_KEY_FILE"`

	SyncSource      string        `mapstructure:"SYNC_SOURCE"`
	SyncOnStart     bool          `mapstructure:"SYNC_ON_START"`
	SyncTimeout     time.Duration `mapstructure:"SYNC_TIMEOUT"`
	SyncBaseURL     string        `mapstructure:"SYNC_BASE_URL"`
	SyncAPIToken    string        `mapstructure:"SYNC_API_TOKEN"`
	SyncRetries     int           `mapstructure:"SYNC_RETRIES"`
	SyncS3Bucket    string        `mapstructure:"SYNC_S3_BUCKET"`
	SyncS3Region    string        `mapstructure:"SYNC_S3_REGION"`
	SyncS3Endpoint  string        `mapstructure:"SYNC_S3_ENDPOINT"`
	SyncS3Prefix    string        `mapstructure:"SYNC_S3_PREFIX"`
	SyncS3PathStyle bool          `mapstructure:"SYNC_S3_PATH_STYLE"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	SnapshotCachePath string        `mapstructure:"SNAPSHOT_CACHE_PATH"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	DraftTTL          time.Duration `mapstructure:"DRAFT_TTL"`
	ProtocolTieBreak  string        `mapstructure:"PROTOCOL_TIE_BREAK"`
}

var envKeys = []string{
	"PORT", "ENV", "AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY", "CORS_ORIGINS",
	"REQUEST_TIMEOUT", "BODY_LIMIT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	"SYNC_SOURCE", "SYNC_ON_START", "SYNC_TIMEOUT", "SYNC_BASE_URL", "SYNC_API_TOKEN", "SYNC_RETRIES",
	"SYNC_S3_BUCKET", "SYNC_S3_REGION", "SYNC_S3_ENDPOINT", "SYNC_S3_PREFIX", "SYNC_S3_PATH_STYLE",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SNAPSHOT_CACHE_PATH", "REDIS_URL", "DRAFT_TTL", "PROTOCOL_TIE_BREAK",
}

// Load reads the environment, optionally overlaid by a .env file in the
// working directory. It does not validate; call Validate before serving.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("SYNC_SOURCE", SourceNone)
	v.SetDefault("SYNC_ON_START", true)
	v.SetDefault("SYNC_TIMEOUT", "20s")
	v.SetDefault("SYNC_RETRIES", 2)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DRAFT_TTL", "12h")
	v.SetDefault("PROTOCOL_TIE_BREAK", "first")

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.SyncSource = strings.ToLower(strings.TrimSpace(cfg.SyncSource))
	cfg.ProtocolTieBreak = strings.ToLower(strings.TrimSpace(cfg.ProtocolTieBreak))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks cross-field rules. Outside development a JWT signing key is
// required because the dev auth middleware grants admin to every request.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q", c.Env)
	}
	if c.IsProduction() && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes in production")
	}

	switch c.SyncSource {
	case SourceNone:
	case SourceHTTP:
		if c.SyncBaseURL == "" {
			return fmt.Errorf("SYNC_BASE_URL is required when SYNC_SOURCE=http")
		}
		if u, err := url.Parse(c.SyncBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("SYNC_BASE_URL must be an absolute URL, got %q", c.SyncBaseURL)
		}
	case SourceS3:
		if c.SyncS3Bucket == "" {
			return fmt.Errorf("SYNC_S3_BUCKET is required when SYNC_SOURCE=s3")
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SYNC_SOURCE=postgres")
		}
	default:
		return fmt.Errorf("SYNC_SOURCE must be one of none, http, s3, postgres; got %q", c.SyncSource)
	}

	if c.SyncTimeout <= 0 {
		return fmt.Errorf("SYNC_TIMEOUT must be positive")
	}
	if c.DraftTTL <= 0 {
		return fmt.Errorf("DRAFT_TTL must be positive")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.ProtocolTieBreak != "first" && c.ProtocolTieBreak != "last" {
		return fmt.Errorf("PROTOCOL_TIE_BREAK must be \"first\" or \"last\", got %q", c.ProtocolTieBreak)
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}
	return nil
}
