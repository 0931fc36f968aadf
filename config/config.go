// Package config loads process configuration for the receipt verifier from
// the environment, after applying a .env file when one is present.
package config

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	receipts "github.com/x402-foundation/receipt-verifier"
	"github.com/x402-foundation/receipt-verifier/spsp"
	"github.com/x402-foundation/receipt-verifier/store"
)

// Environment variables
const (
	EnvPort           = "PORT"
	EnvReceiptSeed    = "RECEIPT_SEED"
	EnvReceiptTTL     = "RECEIPT_TTL"
	EnvRedisURI       = "REDIS_URI"
	EnvRedisKeyPrefix = "REDIS_KEY_PREFIX"
	EnvSPSPEndpoint   = "SPSP_ENDPOINT"
	EnvSPSPTimeout    = "SPSP_TIMEOUT"
	EnvHTTPFramework  = "HTTP_FRAMEWORK"
	EnvLogLevel       = "LOG_LEVEL"
)

const (
	DefaultPort = "3000"

	FrameworkGin  = "gin"
	FrameworkEcho = "echo"

	// MinSeedLength is the smallest accepted RECEIPT_SEED after base64 decoding.
	MinSeedLength = 32
)

var (
	ErrInvalidSeed      = errors.New("config: RECEIPT_SEED must be base64 of at least 32 bytes")
	ErrInvalidDuration  = errors.New("config: duration must be a positive number of seconds")
	ErrInvalidFramework = errors.New("config: HTTP_FRAMEWORK must be gin or echo")
	ErrInvalidPort      = errors.New("config: PORT must be a number between 1 and 65535")
	ErrInvalidLogLevel  = errors.New("config: LOG_LEVEL must be debug, info, warn or error")
)

// Config is the process configuration.
type Config struct {
	Port string

	// ReceiptSeed is the server-wide secret receipt secrets are derived from
	ReceiptSeed []byte
	// SeedGenerated is true when no seed was configured and a random one was used.
	// Receipts issued before a restart will then fail authentication.
	SeedGenerated bool
	ReceiptTTL    time.Duration

	// RedisURI selects the Redis progress store; empty means in-memory
	RedisURI       string
	RedisKeyPrefix string

	SPSPEndpoint string
	SPSPTimeout  time.Duration

	HTTPFramework string
	LogLevel      slog.Level
}

// Load applies the given .env files (".env" when none are named, missing
// files ignored) and reads the configuration from the environment.
// Variables already set in the environment take precedence over the files.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv reads the configuration through getenv and validates it.
func FromEnv(getenv func(string) string) (*Config, error) {
	c := &Config{
		Port:           valueOr(getenv(EnvPort), DefaultPort),
		ReceiptTTL:     receipts.DefaultReceiptTTL,
		RedisURI:       strings.TrimSpace(getenv(EnvRedisURI)),
		RedisKeyPrefix: valueOr(getenv(EnvRedisKeyPrefix), store.DefaultKeyPrefix),
		SPSPEndpoint:   strings.TrimSpace(getenv(EnvSPSPEndpoint)),
		SPSPTimeout:    spsp.DefaultTimeout,
		HTTPFramework:  strings.ToLower(valueOr(getenv(EnvHTTPFramework), FrameworkGin)),
		LogLevel:       slog.LevelInfo,
	}

	if raw := strings.TrimSpace(getenv(EnvReceiptSeed)); raw != "" {
		seed, err := base64.StdEncoding.DecodeString(raw)
		if err != nil || len(seed) < MinSeedLength {
			return nil, ErrInvalidSeed
		}
		c.ReceiptSeed = seed
	} else {
		seed := make([]byte, MinSeedLength)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("config: generate receipt seed: %w", err)
		}
		c.ReceiptSeed = seed
		c.SeedGenerated = true
	}

	var err error
	if c.ReceiptTTL, err = parseSeconds(getenv(EnvReceiptTTL), c.ReceiptTTL); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvReceiptTTL, err)
	}
	if c.SPSPTimeout, err = parseSeconds(getenv(EnvSPSPTimeout), c.SPSPTimeout); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvSPSPTimeout, err)
	}

	if raw := getenv(EnvLogLevel); raw != "" {
		if err := c.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			return nil, ErrInvalidLogLevel
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks if the config has all required fields
func (c *Config) Validate() error {
	if len(c.ReceiptSeed) < MinSeedLength {
		return ErrInvalidSeed
	}
	if c.ReceiptTTL <= 0 || c.SPSPTimeout <= 0 {
		return ErrInvalidDuration
	}
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return ErrInvalidPort
	}
	switch c.HTTPFramework {
	case FrameworkGin, FrameworkEcho:
	default:
		return ErrInvalidFramework
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort("", c.Port)
}

// Receipts returns the verifier configuration.
func (c *Config) Receipts() receipts.Config {
	return receipts.Config{
		ReceiptSeed: c.ReceiptSeed,
		ReceiptTTL:  c.ReceiptTTL,
	}
}

func valueOr(value, fallback string) string {
	if value = strings.TrimSpace(value); value == "" {
		return fallback
	}
	return value
}

func parseSeconds(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return 0, ErrInvalidDuration
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
