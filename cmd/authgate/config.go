package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/authgate/internal/apperrors"
	"github.com/nkiryanov/authgate/internal/logger"
	"github.com/nkiryanov/authgate/internal/service/auth/bruteforce"
	"github.com/nkiryanov/authgate/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authgate/internal/service/ratelimit"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultRedisURL        = "redis://localhost:6379/0"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultAccessTokenTTL  = 30 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Redis with failed login counters, shared by all instances
	RedisURL string

	// Secret key to sign tokens, at least 32 bytes
	SecretKey string

	// Token lifetimes
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Failed logins before lock and lock duration
	MaxLoginAttempts int
	LockoutDuration  time.Duration

	// Requests per minute and client: auth endpoints, other writes, everything else
	RateLimitAuth   int
	RateLimitWrite  int
	RateLimitGlobal int

	// Environment
	Environment string

	// Sentry DSN, reporting disabled if empty
	SentryDSN string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:         defaultLoggingLevel,
		ListenAddr:       defaultListenAddr,
		RedisURL:         defaultRedisURL,
		AccessTTL:        defaultAccessTokenTTL,
		RefreshTTL:       defaultRefreshTokenTTL,
		MaxLoginAttempts: bruteforce.DefaultMaxAttempts,
		LockoutDuration:  bruteforce.DefaultLockoutDuration,
		RateLimitAuth:    ratelimit.DefaultAuthLimit,
		RateLimitWrite:   ratelimit.DefaultWriteLimit,
		RateLimitGlobal:  ratelimit.DefaultGlobalLimit,
		Environment:      defaultEnvironment,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setLifetime := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			return (*lifetimeValue)(o).Set(value)
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			*o = n
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"REDIS_URL":          setString(&c.RedisURL),
		"SECRET_KEY":         setString(&c.SecretKey),
		"ACCESS_TOKEN_TTL":   setLifetime(&c.AccessTTL),
		"REFRESH_TOKEN_TTL":  setLifetime(&c.RefreshTTL),
		"MAX_LOGIN_ATTEMPTS": setInt(&c.MaxLoginAttempts),
		"LOCKOUT_DURATION":   setLifetime(&c.LockoutDuration),
		"RATE_LIMIT_AUTH":    setInt(&c.RateLimitAuth),
		"RATE_LIMIT_WRITE":   setInt(&c.RateLimitWrite),
		"RATE_LIMIT_GLOBAL":  setInt(&c.RateLimitGlobal),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
		"SENTRY_DSN":         setString(&c.SentryDSN),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: %w", apperrors.ErrConfiguration, key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authgate", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.RedisURL, "redis", "R", c.RedisURL, "Redis url")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key to sign tokens, at least 32 bytes")
	fs.Var((*lifetimeValue)(&c.AccessTTL), "access-ttl", "Access token lifetime (e.g. 30m, 12h, 7d)")
	fs.Var((*lifetimeValue)(&c.RefreshTTL), "refresh-ttl", "Refresh token lifetime (e.g. 30m, 12h, 7d)")
	fs.IntVar(&c.MaxLoginAttempts, "max-attempts", c.MaxLoginAttempts, "Failed logins before account lock")
	fs.Var((*lifetimeValue)(&c.LockoutDuration), "lockout", "Account lock duration (e.g. 15m)")
	fs.IntVar(&c.RateLimitAuth, "rate-limit-auth", c.RateLimitAuth, "Auth requests per minute and client")
	fs.IntVar(&c.RateLimitWrite, "rate-limit-write", c.RateLimitWrite, "Write requests per minute and client")
	fs.IntVar(&c.RateLimitGlobal, "rate-limit-global", c.RateLimitGlobal, "Other requests per minute and client")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.SentryDSN, "sentry-dsn", c.SentryDSN, "Sentry DSN")

	return fs.Parse(args)
}

// Validate checks options that can't be checked while parsing
func (c *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{apperrors.ErrConfiguration}, args...)...))
	}

	if len(c.SecretKey) < tokenmanager.MinSecretKeyLen {
		invalid("secret key must be at least %d bytes", tokenmanager.MinSecretKeyLen)
	}
	if c.DatabaseDSN == "" {
		invalid("database uri is required")
	}
	if c.MaxLoginAttempts <= 0 {
		invalid("max login attempts must be positive, got %d", c.MaxLoginAttempts)
	}
	if c.RateLimitAuth <= 0 || c.RateLimitWrite <= 0 || c.RateLimitGlobal <= 0 {
		invalid("rate limits must be positive, got auth=%d write=%d global=%d", c.RateLimitAuth, c.RateLimitWrite, c.RateLimitGlobal)
	}
	if c.Environment != logger.EnvDevelopment && c.Environment != logger.EnvProduction {
		invalid("unknown environment %q", c.Environment)
	}

	return errors.Join(errs...)
}

// Token lifetime as pflag.Value, accepts tokenmanager.ParseLifetime format
type lifetimeValue time.Duration

func (v *lifetimeValue) String() string { return time.Duration(*v).String() }
func (v *lifetimeValue) Type() string   { return "lifetime" }

func (v *lifetimeValue) Set(s string) error {
	d, err := tokenmanager.ParseLifetime(s)
	if err != nil {
		return err
	}
	*v = lifetimeValue(d)
	return nil
}
