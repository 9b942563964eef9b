// Package config describes the service configuration and loads it from a
// YAML file and/or environment variables with a predictable priority.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration.
// Sources, highest priority first:
//  1. explicit path from the --config flag;
//  2. path in the CONFIG_PATH environment variable;
//  3. local.yaml in the working directory;
//  4. environment variables only.
type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	S3        S3Config        `yaml:"s3"`
	Avatar    AvatarConfig    `yaml:"avatar"`
	Mongo     MongoConfig     `yaml:"mongo"`
	Comments  CommentsConfig  `yaml:"comments"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

// TimeoutConfig holds request-level timeouts.
type TimeoutConfig struct {
	Request time.Duration `yaml:"request" env:"REQUEST_TIMEOUT" env-default:"10s"`
}

// HTTPConfig is the HTTP server network setup.
type HTTPConfig struct {
	Host              string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port              string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	BasePath          string        `yaml:"base_path" env:"HTTP_BASE_PATH" env-default:"/api"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"HTTP_READ_HEADER_TIMEOUT" env-default:"5s"`
	// CORSOrigins lists browser origins allowed to call the API; "*" allows any.
	CORSOrigins []string `yaml:"cors_origins" env:"HTTP_CORS_ORIGINS"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig holds token issuance and validation parameters.
type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	RefreshSecret   string        `yaml:"refresh_secret" env:"JWT_REFRESH_SECRET"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"12h"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	Issuer          string        `yaml:"issuer" env:"ISSUER" env-default:"training-center"`
	Audience        []string      `yaml:"audience" env:"AUDIENCE" env-default:"training-center-web"`
	// TrackSessions enables server-side refresh sessions (single-use rotation and revocation on logout).
	TrackSessions bool          `yaml:"track_sessions" env:"AUTH_TRACK_SESSIONS" env-default:"false"`
	JanitorPeriod time.Duration `yaml:"janitor_period" env:"AUTH_JANITOR_PERIOD" env-default:"30m"`
}

// DBConfig is the postgres connection setup.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
}

// RedisConfig is optional: an empty URL disables the refresh session cache.
type RedisConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"auth:rt:"`
}

// S3Config describes the object storage used for avatars. An empty endpoint disables it.
type S3Config struct {
	Endpoint      string        `yaml:"endpoint" env:"S3_ENDPOINT"`
	Bucket        string        `yaml:"bucket" env:"S3_BUCKET" env-default:"avatars"`
	RootUser      string        `yaml:"root_user" env:"S3_ROOT_USER"`
	RootPassword  string        `yaml:"root_password" env:"S3_ROOT_PASSWORD"`
	PresignTTL    time.Duration `yaml:"presign_ttl" env:"S3_PRESIGN_TTL" env-default:"15m"`
	PublicBaseURL string        `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"`
}

// AvatarConfig limits avatar uploads.
type AvatarConfig struct {
	MaxSizeBytes        int64    `yaml:"max_size_bytes" env:"AVATAR_MAX_SIZE_BYTES" env-default:"5242880"`
	AllowedContentTypes []string `yaml:"allowed_content_types" env:"AVATAR_ALLOWED_CONTENT_TYPES" env-default:"image/jpeg,image/png,image/webp"`
}

// MongoConfig is optional: an empty URL disables course comments.
type MongoConfig struct {
	URL string `yaml:"url" env:"MONGO_URL"`
}

// CommentsConfig holds pagination and thread depth limits.
type CommentsConfig struct {
	DefaultPage int32 `yaml:"default_page" env:"COMMENTS_DEFAULT_PAGE" env-default:"20"`
	MaxPage     int32 `yaml:"max_page" env:"COMMENTS_MAX_PAGE" env-default:"100"`
	MaxDepth    int32 `yaml:"max_depth" env:"COMMENTS_MAX_DEPTH" env-default:"3"`
}

// RateLimitConfig is the per-IP token bucket for login endpoints.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"LOGIN_RATE_RPS" env-default:"1"`
	Burst int     `yaml:"burst" env:"LOGIN_RATE_BURST" env-default:"5"`
}

// MustLoad wraps Load and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load reads the configuration: 1) explicit path; 2) CONFIG_PATH; 3) ./local.yaml; 4) env.
// Environment variables are always overlaid on top of the file values.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if p == "" {
			return nil, fmt.Errorf("empty config path")
		}

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		return &cfg, nil
	}

	if path != "" {
		return tryRead(path)
	}

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	return &cfg, nil
}
