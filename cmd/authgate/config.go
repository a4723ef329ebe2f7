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

	"github.com/Mohamedseffine/01Blog/internal/logger"
	"github.com/Mohamedseffine/01Blog/internal/service/auth/tokenmanager"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultAccessTTL    = 15 * time.Minute
	defaultRefreshTTL   = 7 * 24 * time.Hour
	defaultTokenIssuer  = "authgate"
	defaultBuckets      = 100_000
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	// Accounts and refresh records are kept in memory if empty
	DatabaseDSN string

	// Secret key
	// Access and refresh tokens are signed with it
	SecretKey string

	// Environment
	Environment string

	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	TokenIssuer string

	// Redis shared by service instances for rate limit buckets
	// Buckets are kept in memory if empty
	RedisAddr string

	// Max rate limit buckets kept in memory
	RateLimitBuckets int

	// Mark refresh cookie as Secure (HTTPS only)
	CookieSecure bool

	// Admin account ensured at startup, skipped if username is empty
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:         defaultLoggingLevel,
		ListenAddr:       defaultListenAddr,
		Environment:      defaultEnvironment,
		AccessTTL:        defaultAccessTTL,
		RefreshTTL:       defaultRefreshTTL,
		TokenIssuer:      defaultTokenIssuer,
		RateLimitBuckets: defaultBuckets,
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
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
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
	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = b
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"SECRET_KEY":         setString(&c.SecretKey),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
		"ACCESS_TOKEN_TTL":   setDuration(&c.AccessTTL),
		"REFRESH_TOKEN_TTL":  setDuration(&c.RefreshTTL),
		"TOKEN_ISSUER":       setString(&c.TokenIssuer),
		"REDIS_ADDR":         setString(&c.RedisAddr),
		"RATE_LIMIT_BUCKETS": setInt(&c.RateLimitBuckets),
		"COOKIE_SECURE":      setBool(&c.CookieSecure),
		"ADMIN_USERNAME":     setString(&c.AdminUsername),
		"ADMIN_EMAIL":        setString(&c.AdminEmail),
		"ADMIN_PASSWORD":     setString(&c.AdminPassword),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authgate", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.StringVar(&c.TokenIssuer, "issuer", c.TokenIssuer, "Token issuer")
	fs.StringVarP(&c.RedisAddr, "redis", "r", c.RedisAddr, "Redis address for rate limit buckets")
	fs.IntVar(&c.RateLimitBuckets, "rate-limit-buckets", c.RateLimitBuckets, "Max rate limit buckets kept in memory")
	fs.BoolVar(&c.CookieSecure, "cookie-secure", c.CookieSecure, "Send refresh cookie over HTTPS only")
	fs.StringVar(&c.AdminUsername, "admin-username", c.AdminUsername, "Admin account username")
	fs.StringVar(&c.AdminEmail, "admin-email", c.AdminEmail, "Admin account email")
	fs.StringVar(&c.AdminPassword, "admin-password", c.AdminPassword, "Admin account password")

	return fs.Parse(args)
}

// Validate options that have no usable default
func (c *Config) Validate() error {
	switch {
	case c.SecretKey == "":
		return errors.New("secret key is required")
	case len(c.SecretKey) < tokenmanager.MinSecretKeyLength:
		return fmt.Errorf("secret key must be at least %d bytes, generate one with gensecret", tokenmanager.MinSecretKeyLength)
	case c.AccessTTL <= 0 || c.RefreshTTL <= 0:
		return errors.New("token ttl must be positive")
	case c.AdminUsername != "" && (c.AdminEmail == "" || c.AdminPassword == ""):
		return errors.New("admin email and password are required when admin username is set")
	}
	return nil
}
