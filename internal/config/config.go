// Package config centralizes all application configuration into typed structs.
//
// Go Learning Note — Configuration Management:
// Defaults live in NewDefaultConfig as struct literals. Load layers an
// optional .env file (github.com/joho/godotenv) and then the process
// environment on top of those defaults, so every knob has one typed home.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the top-level configuration container.
//
// Go Learning Note — Struct Composition:
// Config "has a" ServerConfig, StorageConfig, etc. Grouping by concern keeps
// each constructor's dependency list short: a service takes the sub-struct it
// needs, not the whole tree.
type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Auth        AuthConfig
	Log         LogConfig
	Geo         GeoConfig
	Checkin     CheckinConfig
	Scoring     ScoringConfig
	Leaderboard LeaderboardConfig
	Jobs        JobsConfig
}

// ServerConfig holds HTTP server settings.
//
// Go Learning Note — time.Duration:
// "10 * time.Second" is self-documenting; a bare 10 is not.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// StorageConfig selects the store implementations.
//
// DBDriver is "memory", "postgres" or "sqlite". RedisAddr, when set, moves the
// directory and the lock manager onto redis.
type StorageConfig struct {
	DBDriver          string
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	DirectorySeedFile string
}

// AuthConfig configures bearer-token verification and request throttling.
type AuthConfig struct {
	JWTSecret        string
	CheckinRateRPS   float64
	CheckinRateBurst int
}

type LogConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// GeoConfig bounds proximity queries.
type GeoConfig struct {
	MaxRadiusKm        float64
	DefaultSearchLimit int
	MaxSearchLimit     int
}

// CheckinConfig controls the per-user serialization lock. A request waits up
// to LockWait for a concurrent request of the same user to finish.
type CheckinConfig struct {
	LockTTL      time.Duration
	LockWait     time.Duration
	HistoryLimit int
}

// ScoringConfig holds the point values of a visit and the zone in which
// calendar days (and so streaks) are counted.
type ScoringConfig struct {
	BaseCompleted   int
	BaseIncomplete  int
	FirstVisitBonus int
	PrayerBonus     int
	TimeZone        string
}

// Location resolves TimeZone, falling back to the process local zone.
func (s ScoringConfig) Location() *time.Location {
	if s.TimeZone == "" || strings.EqualFold(s.TimeZone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

type LeaderboardConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// JobsConfig holds cron specs. robfig/cron v1 specs carry a leading seconds
// field.
type JobsConfig struct {
	Enabled         bool
	RankRecompute   string
	MonthlySnapshot string
	LockTTL         time.Duration
}

// NewDefaultConfig returns a Config populated with defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Storage: StorageConfig{
			DBDriver: "memory",
		},
		Auth: AuthConfig{
			JWTSecret:        "dev-secret-change-me",
			CheckinRateRPS:   1,
			CheckinRateBurst: 5,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Geo: GeoConfig{
			MaxRadiusKm:        5.0,
			DefaultSearchLimit: 20,
			MaxSearchLimit:     50,
		},
		Checkin: CheckinConfig{
			LockTTL:      10 * time.Second,
			LockWait:     3 * time.Second,
			HistoryLimit: 20,
		},
		Scoring: ScoringConfig{
			BaseCompleted:   10,
			BaseIncomplete:  5,
			FirstVisitBonus: 5,
			PrayerBonus:     10,
			TimeZone:        "Local",
		},
		Leaderboard: LeaderboardConfig{
			DefaultLimit: 50,
			MaxLimit:     100,
		},
		Jobs: JobsConfig{
			Enabled:         true,
			RankRecompute:   "0 */15 * * * *",
			MonthlySnapshot: "0 5 0 1 * *",
			LockTTL:         10 * time.Minute,
		},
	}
}

// Load returns the defaults overridden by .env (if present) and the
// environment. A missing .env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := NewDefaultConfig()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		if !strings.HasPrefix(v, ":") {
			v = ":" + v
		}
		c.Server.Port = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	setString(&c.Storage.DBDriver, "DB_DRIVER")
	setString(&c.Storage.DatabaseURL, "DATABASE_URL")
	setString(&c.Storage.RedisAddr, "REDIS_ADDR")
	setString(&c.Storage.RedisPassword, "REDIS_PASSWORD")
	setString(&c.Storage.DirectorySeedFile, "DIRECTORY_SEED_FILE")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Path, "LOG_PATH")
	setString(&c.Scoring.TimeZone, "SCORING_TIMEZONE")
	setString(&c.Jobs.RankRecompute, "JOB_RANK_RECOMPUTE")
	setString(&c.Jobs.MonthlySnapshot, "JOB_MONTHLY_SNAPSHOT")

	if err := setInt(&c.Storage.RedisDB, "REDIS_DB"); err != nil {
		return err
	}
	if err := setInt(&c.Auth.CheckinRateBurst, "CHECKIN_RATE_BURST"); err != nil {
		return err
	}
	if v := os.Getenv("CHECKIN_RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CHECKIN_RATE_RPS: %w", err)
		}
		c.Auth.CheckinRateRPS = f
	}
	if v := os.Getenv("CHECKIN_LOCK_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CHECKIN_LOCK_TTL: %w", err)
		}
		c.Checkin.LockTTL = d
	}
	if v := os.Getenv("CHECKIN_LOCK_WAIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CHECKIN_LOCK_WAIT: %w", err)
		}
		c.Checkin.LockWait = d
	}
	if v := os.Getenv("JOBS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("JOBS_ENABLED: %w", err)
		}
		c.Jobs.Enabled = b
	}
	if _, err := time.LoadLocation(c.Scoring.TimeZone); err != nil && !strings.EqualFold(c.Scoring.TimeZone, "local") {
		return fmt.Errorf("SCORING_TIMEZONE: %w", err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
