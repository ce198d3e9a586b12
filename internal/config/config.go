package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"groupguard/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	TelegramToken string          `yaml:"telegram_token"`
	PollTimeout   int             `yaml:"poll_timeout_seconds"`
	LogLevel      string          `yaml:"log_level"`
	Database      DatabaseConfig  `yaml:"database"`
	Health        HealthConfig    `yaml:"health"`
	Redis         RedisConfig     `yaml:"redis"`
	NATS          NATSConfig      `yaml:"nats"`
	Features      FeatureConfig   `yaml:"features"`
	Antiflood     AntifloodConfig `yaml:"antiflood"`
	Warns         WarnConfig      `yaml:"warns"`
	Blacklist     []string        `yaml:"blacklist"`
	AdminCacheTTL int             `yaml:"admin_cache_seconds"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// RedisConfig enables shared flood counters when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NATSConfig enables audit event publishing when URL is set.
type NATSConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type FeatureConfig struct {
	Antiflood bool `yaml:"antiflood"`
	Blacklist bool `yaml:"blacklist"`
}

type AntifloodConfig struct {
	Limit           int    `yaml:"limit"`
	WindowSeconds   int    `yaml:"window_seconds"`
	Action          string `yaml:"action"`
	DurationSeconds int    `yaml:"duration_seconds"`
}

type WarnConfig struct {
	Limit int `yaml:"limit"`
	// ExpirySeconds of zero means warnings never expire.
	ExpirySeconds int    `yaml:"expiry_seconds"`
	Punishment    string `yaml:"punishment"`
}

func (a AntifloodConfig) Settings() storage.FloodSettings {
	return storage.FloodSettings{
		Limit:    a.Limit,
		Window:   time.Duration(a.WindowSeconds) * time.Second,
		Action:   a.Action,
		Duration: time.Duration(a.DurationSeconds) * time.Second,
	}
}

func (w WarnConfig) Settings() storage.WarnSettings {
	return storage.WarnSettings{
		Limit:      w.Limit,
		Expiry:     time.Duration(w.ExpirySeconds) * time.Second,
		Punishment: w.Punishment,
	}
}

func DefaultConfig() Config {
	return Config{
		PollTimeout:   10,
		LogLevel:      "info",
		Database:      DatabaseConfig{Driver: storage.DriverSQLite, DSN: "/data/groupguard.db"},
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		NATS:          NATSConfig{Name: "groupguard"},
		Features:      FeatureConfig{Antiflood: true, Blacklist: true},
		Antiflood:     AntifloodConfig{Limit: 10, WindowSeconds: 15, Action: "mute", DurationSeconds: 900},
		Warns:         WarnConfig{Limit: 3, ExpirySeconds: 604800, Punishment: "ban"},
		AdminCacheTTL: 300,
	}
}

func Load() (Config, error) {
	// a missing .env file is fine; the environment may already be set
	_ = godotenv.Load()

	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.TelegramToken == "" {
		return Config{}, errors.New("TELEGRAM_TOKEN is required")
	}
	cfg.Database.Driver = normalizeDriver(cfg.Database.Driver)
	normalizeDefaults(&cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.TelegramToken = envString("TELEGRAM_TOKEN", cfg.TelegramToken)
	cfg.PollTimeout = envInt("POLL_TIMEOUT_SECONDS", cfg.PollTimeout)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Database.Driver = envString("DATABASE_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = envString("DATABASE_DSN", cfg.Database.DSN)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envString("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = envInt("REDIS_DB", cfg.Redis.DB)
	cfg.NATS.URL = envString("NATS_URL", cfg.NATS.URL)
	cfg.Features.Antiflood = envBool("FEATURE_ANTIFLOOD", cfg.Features.Antiflood)
	cfg.Features.Blacklist = envBool("FEATURE_BLACKLIST", cfg.Features.Blacklist)
	cfg.Antiflood.Limit = envInt("ANTIFLOOD_LIMIT", cfg.Antiflood.Limit)
	cfg.Antiflood.WindowSeconds = envInt("ANTIFLOOD_WINDOW_SECONDS", cfg.Antiflood.WindowSeconds)
	cfg.Antiflood.Action = envString("ANTIFLOOD_ACTION", cfg.Antiflood.Action)
	cfg.Antiflood.DurationSeconds = envInt("ANTIFLOOD_DURATION_SECONDS", cfg.Antiflood.DurationSeconds)
	cfg.Warns.Limit = envInt("WARN_LIMIT", cfg.Warns.Limit)
	cfg.Warns.ExpirySeconds = envInt("WARN_EXPIRY_SECONDS", cfg.Warns.ExpirySeconds)
	cfg.Warns.Punishment = envString("WARN_PUNISHMENT", cfg.Warns.Punishment)
	cfg.AdminCacheTTL = envInt("ADMIN_CACHE_SECONDS", cfg.AdminCacheTTL)
	if words := os.Getenv("BLACKLIST_WORDS"); words != "" {
		cfg.Blacklist = strings.Split(words, ",")
	}
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func normalizeDriver(value string) string {
	switch strings.ToLower(value) {
	case "postgres", "postgresql", "pgx":
		return storage.DriverPostgres
	default:
		return storage.DriverSQLite
	}
}

// normalizeDefaults clamps the global defaults to the same bounds the chat commands enforce.
func normalizeDefaults(cfg *Config) {
	if cfg.Antiflood.Limit < 3 {
		cfg.Antiflood.Limit = 3
	}
	if cfg.Antiflood.WindowSeconds < 3 {
		cfg.Antiflood.WindowSeconds = 3
	}
	switch strings.ToLower(cfg.Antiflood.Action) {
	case "warn", "mute", "kick", "ban":
		cfg.Antiflood.Action = strings.ToLower(cfg.Antiflood.Action)
	default:
		cfg.Antiflood.Action = "mute"
	}
	if cfg.Antiflood.DurationSeconds != 0 && cfg.Antiflood.DurationSeconds < 30 {
		cfg.Antiflood.DurationSeconds = 30
	}
	if cfg.Warns.Limit < 1 {
		cfg.Warns.Limit = 1
	}
	if cfg.Warns.ExpirySeconds < 0 {
		cfg.Warns.ExpirySeconds = 0
	}
	switch strings.ToLower(cfg.Warns.Punishment) {
	case "ban", "kick", "mute":
		cfg.Warns.Punishment = strings.ToLower(cfg.Warns.Punishment)
	default:
		cfg.Warns.Punishment = "ban"
	}
	var words []string
	for _, word := range cfg.Blacklist {
		if word = strings.TrimSpace(word); word != "" {
			words = append(words, word)
		}
	}
	cfg.Blacklist = words
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 10
	}
	if cfg.AdminCacheTTL < 0 {
		cfg.AdminCacheTTL = 0
	}
}
