package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string
	HTTPAddress string

	// JWTSecret signs every token. DevSecret is true when it was generated
	// for this process only; such tokens die with the process and are not
	// verifiable by other instances.
	JWTSecret       string
	DevMode         bool
	DevSecret       bool
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	LoginMaxAttempts   int
	LoginAttemptWindow time.Duration
	KDFConcurrency     int

	LogLevel string
	// DebugAuth enables per-cause auth diagnostics. It is only honoured with
	// DEV_MODE; DebugAuthIgnored records a request made without it.
	DebugAuth        bool
	DebugAuthIgnored bool

	AllowedOrigins   []string
	AllowCredentials bool

	// HTTPRateLimit is requests per second per client IP; 0 disables it.
	HTTPRateLimit int
	HTTPRateBurst int
}

var ErrMissingSecret = errors.New("JWT_SECRET is required (set DEV_MODE=true to use a process-local secret)")

// Load reads the full server configuration.
func Load() (*Config, error) {
	return load(true)
}

// LoadForMaintenance reads the configuration for commands that only touch the
// database, such as migrate and promote. No signing secret is required.
func LoadForMaintenance() (*Config, error) {
	return load(false)
}

func load(needSecret bool) (*Config, error) {
	// .env is a convenience for local runs; real env always wins.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "720h")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 5)
	v.SetDefault("LOGIN_ATTEMPT_WINDOW", "15m")
	v.SetDefault("KDF_CONCURRENCY", runtime.NumCPU())
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_RATE_LIMIT", 50)
	v.SetDefault("HTTP_RATE_BURST", 100)

	for _, key := range []string{
		"DATABASE_URL", "JWT_SECRET", "DEV_MODE", "REDIS_ADDRESS", "REDIS_PASSWORD",
		"DEBUG_AUTH", "ALLOWED_ORIGINS", "ALLOW_CREDENTIALS",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:        strings.TrimSpace(v.GetString("DATABASE_URL")),
		HTTPAddress:        v.GetString("HTTP_ADDRESS"),
		JWTSecret:          strings.TrimSpace(v.GetString("JWT_SECRET")),
		DevMode:            v.GetBool("DEV_MODE"),
		AccessTokenTTL:     v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:    v.GetDuration("REFRESH_TOKEN_TTL"),
		RedisAddress:       v.GetString("REDIS_ADDRESS"),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		LoginMaxAttempts:   v.GetInt("LOGIN_MAX_ATTEMPTS"),
		LoginAttemptWindow: v.GetDuration("LOGIN_ATTEMPT_WINDOW"),
		KDFConcurrency:     v.GetInt("KDF_CONCURRENCY"),
		LogLevel:           v.GetString("LOG_LEVEL"),
		AllowedOrigins:     v.GetStringSlice("ALLOWED_ORIGINS"),
		AllowCredentials:   v.GetBool("ALLOW_CREDENTIALS"),
		HTTPRateLimit:      v.GetInt("HTTP_RATE_LIMIT"),
		HTTPRateBurst:      v.GetInt("HTTP_RATE_BURST"),
	}

	debugAuth := v.GetString("DEBUG_AUTH") == "1" || v.GetBool("DEBUG_AUTH")
	cfg.DebugAuth = debugAuth && cfg.DevMode
	cfg.DebugAuthIgnored = debugAuth && !cfg.DevMode

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if needSecret {
		if err := cfg.ensureSecret(); err != nil {
			return nil, err
		}
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, errors.New("token TTLs must be positive")
	}
	if cfg.KDFConcurrency < 1 {
		cfg.KDFConcurrency = 1
	}
	return cfg, nil
}

func (c *Config) ensureSecret() error {
	if c.JWTSecret != "" {
		return nil
	}
	if !c.DevMode {
		return ErrMissingSecret
	}
	secret, err := RandomSecret()
	if err != nil {
		return err
	}
	c.JWTSecret = secret
	c.DevSecret = true
	return nil
}

// RandomSecret returns 32 random bytes, hex encoded.
func RandomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
