package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort       = 5000
	defaultAPIPrefix  = "/api/v1"
	defaultBcryptCost = 10
	defaultTokenTTL   = 24 * time.Hour
)

var ErrMissingSecret = errors.New("SECRET_TOKEN is not set")

type Config struct {
	Port        int
	SecretToken string
	DatabaseURL string
	BcryptCost  int
	TokenTTL    time.Duration
	APIPrefix   string
	LogFormat   string
	AutoMigrate bool
}

// LoadEnvFile loads variables from path into the process environment without
// overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

func Load() Config {
	cfg := Config{
		Port:        defaultPort,
		SecretToken: os.Getenv("SECRET_TOKEN"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		BcryptCost:  defaultBcryptCost,
		TokenTTL:    defaultTokenTTL,
		APIPrefix:   defaultAPIPrefix,
		LogFormat:   "json",
	}

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p < 65536 {
			cfg.Port = p
		}
	}

	if v := os.Getenv("BCRYPT_COST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 4 && n <= 31 {
			cfg.BcryptCost = n
		}
	}

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TokenTTL = d
		}
	}

	if v := strings.TrimSpace(os.Getenv("API_PREFIX")); v != "" {
		cfg.APIPrefix = "/" + strings.Trim(v, "/")
	}

	if v := strings.ToLower(os.Getenv("LOG_FORMAT")); v == "text" || v == "json" {
		cfg.LogFormat = v
	}

	if v := os.Getenv("AUTO_MIGRATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoMigrate = b
		}
	}

	return cfg
}

// Validate reports configuration that makes the server unable to start.
func (c Config) Validate() error {
	if strings.TrimSpace(c.SecretToken) == "" {
		return ErrMissingSecret
	}
	return nil
}

func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}
