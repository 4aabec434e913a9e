package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	AWS      AWSConfig      `yaml:"aws" envPrefix:"AWS_"`
	JWT      JWTConfig      `yaml:"jwt" envPrefix:"JWT_"`
	OAuth    OAuthConfig    `yaml:"oauth" envPrefix:"OAUTH_"`
	SMTP     SMTPConfig     `yaml:"smtp" envPrefix:"SMTP_"`
	OTP      OTPConfig      `yaml:"otp" envPrefix:"OTP_"`
	Feed     FeedConfig     `yaml:"feed" envPrefix:"FEED_"`
	Composer ComposerConfig `yaml:"composer" envPrefix:"COMPOSER_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int      `yaml:"port" env:"PORT"`
	Host           string   `yaml:"host" env:"HOST"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	// WSWriteTimeout bounds each write to a WebSocket peer
	WSWriteTimeout time.Duration `yaml:"ws_write_timeout" env:"WS_WRITE_TIMEOUT"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string `yaml:"host" env:"HOST"`
	Port        int    `yaml:"port" env:"PORT"`
	User        string `yaml:"user" env:"USER"`
	Password    string `yaml:"password" env:"PASSWORD"`
	DBName      string `yaml:"dbname" env:"NAME"`
	SSLMode     string `yaml:"sslmode" env:"SSLMODE"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE"`
}

// RedisConfig holds redis configuration
type RedisConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	DB              int           `yaml:"db" env:"DB"`
	ProfileCacheTTL time.Duration `yaml:"profile_cache_ttl" env:"PROFILE_CACHE_TTL"`
}

// AWSConfig holds object storage configuration
type AWSConfig struct {
	Region        string `yaml:"region" env:"REGION"`
	S3Bucket      string `yaml:"s3_bucket" env:"S3_BUCKET"`
	AccessKey     string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey     string `yaml:"secret_key" env:"SECRET_KEY"`
	Endpoint      string `yaml:"endpoint" env:"ENDPOINT"`
	PublicBaseURL string `yaml:"public_base_url" env:"PUBLIC_BASE_URL"`
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret string        `yaml:"secret" env:"SECRET"`
	TTL    time.Duration `yaml:"ttl" env:"TTL"`
}

// OAuthConfig holds federated sign-in configuration
type OAuthConfig struct {
	GoogleClientID     string `yaml:"google_client_id" env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `yaml:"google_client_secret" env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL        string `yaml:"redirect_url" env:"REDIRECT_URL"`
	CookieSecret       string `yaml:"cookie_secret" env:"COOKIE_SECRET"`
	// Where the browser lands after a successful callback
	SuccessURL string `yaml:"success_url" env:"SUCCESS_URL"`
}

// SMTPConfig holds mail delivery configuration for one-time codes
type SMTPConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
	From     string `yaml:"from" env:"FROM"`
}

// OTPConfig holds one-time code settings
type OTPConfig struct {
	TTL   time.Duration `yaml:"ttl" env:"TTL"`
	RPS   float64       `yaml:"rps" env:"RPS"`
	Burst int           `yaml:"burst" env:"BURST"`
	// MaxTracked caps the number of addresses with an in-memory rate limiter
	MaxTracked int `yaml:"max_tracked" env:"MAX_TRACKED"`
}

// FeedConfig holds feed pagination settings
type FeedConfig struct {
	PageSize int `yaml:"page_size" env:"PAGE_SIZE"`
}

// ComposerConfig holds post composer limits
type ComposerConfig struct {
	MaxChars      int   `yaml:"max_chars" env:"MAX_CHARS"`
	MaxMediaBytes int64 `yaml:"max_media_bytes" env:"MAX_MEDIA_BYTES"`
	RecentLimit   int   `yaml:"recent_limit" env:"RECENT_LIMIT"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// Default returns the configuration used when a value is absent from both the file and the environment
func Default() Config {
	return Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080, AllowedOrigins: []string{"*"}, WSWriteTimeout: 10 * time.Second},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, SSLMode: "disable"},
		Redis:    RedisConfig{Addr: "localhost:6379", ProfileCacheTTL: time.Minute},
		AWS:      AWSConfig{Region: "us-east-1"},
		JWT:      JWTConfig{TTL: 7 * 24 * time.Hour},
		SMTP:     SMTPConfig{Port: 587},
		OTP:      OTPConfig{TTL: 10 * time.Minute, RPS: 1.0 / 60, Burst: 3, MaxTracked: 10000},
		Feed:     FeedConfig{PageSize: 10},
		Composer: ComposerConfig{MaxChars: 300, MaxMediaBytes: 5 * 1024 * 1024, RecentLimit: 5},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file and applies environment overrides.
// A missing file is not an error; defaults and the environment are used instead.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "SOCIALFEED_"}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.AWS.S3Bucket == "" {
		return errors.New("aws.s3_bucket is required")
	}
	if c.Feed.PageSize <= 0 {
		return fmt.Errorf("feed.page_size must be positive, got %d", c.Feed.PageSize)
	}
	if c.Composer.MaxChars <= 0 || c.Composer.MaxMediaBytes <= 0 {
		return errors.New("composer limits must be positive")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
