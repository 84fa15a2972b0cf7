package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	SiteID   string

	DBDriver  string // sqlite|postgres|memory
	DBDSN     string
	SeedFile  string // optional JSON catalog loaded at startup
	SeedWatch bool   // reload SeedFile when it changes

	ProgressBackend string // sql|redis
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ProgressTTL     time.Duration

	AutosaveInterval time.Duration
	AutoAdvanceDelay time.Duration

	AuthHMACSecret string
	CORSOrigins    []string

	LogLevel  string
	LogFormat string
	LogFile   string
}

// LoadDotEnv loads KEY=VALUE files into the environment without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func FromEnv() (Config, error) {
	c := Config{
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		SiteID:          envOr("SITE_ID", "local"),
		DBDriver:        envOr("DB_DRIVER", "sqlite"),
		DBDSN:           envOr("DB_DSN", ""),
		SeedFile:        os.Getenv("SEED_FILE"),
		SeedWatch:       envBool("SEED_WATCH", false),
		ProgressBackend: envOr("PROGRESS_BACKEND", "sql"),
		RedisAddr:       envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		AuthHMACSecret:  envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		CORSOrigins:     csvOr("CORS_ORIGINS", "http://localhost:3000"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
		LogFile:         os.Getenv("LOG_FILE"),
	}
	var err error
	if c.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if c.ProgressTTL, err = envDuration("PROGRESS_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if c.AutosaveInterval, err = envDuration("AUTOSAVE_INTERVAL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if c.AutoAdvanceDelay, err = envDuration("AUTO_ADVANCE_DELAY", 400*time.Millisecond); err != nil {
		return Config{}, err
	}

	switch c.DBDriver {
	case "sqlite", "postgres", "memory":
	default:
		return Config{}, fmt.Errorf("DB_DRIVER must be sqlite, postgres or memory, got %q", c.DBDriver)
	}
	switch c.ProgressBackend {
	case "sql", "redis":
	default:
		return Config{}, fmt.Errorf("PROGRESS_BACKEND must be sql or redis, got %q", c.ProgressBackend)
	}
	if c.AutosaveInterval <= 0 {
		return Config{}, fmt.Errorf("AUTOSAVE_INTERVAL must be positive")
	}
	return c, nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
