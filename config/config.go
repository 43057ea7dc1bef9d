package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ScannerConfig        ScannerConfig        `json:"scanner"`
	TradingConfig        TradingConfig        `json:"trading"`
	CircuitBreakerConfig CircuitBreakerConfig `json:"circuit_breaker"`
	AdaptiveConfig       AdaptiveConfig       `json:"adaptive"`
	ConfidenceConfig     ConfidenceConfig     `json:"confidence"`
	MarketDataConfig     MarketDataConfig     `json:"market_data"`
	DatabaseConfig       DatabaseConfig       `json:"database"`
	RedisConfig          RedisConfig          `json:"redis"`
	NotificationConfig   NotificationConfig   `json:"notification"`
	ServerConfig         ServerConfig         `json:"server"`
	LoggingConfig        LoggingConfig        `json:"logging"`
}

type ScannerConfig struct {
	Enabled      bool     `json:"enabled"`
	ScanInterval int      `json:"scan_interval"` // seconds between cycles
	Watchlist    []string `json:"watchlist"`
	Timezone     string   `json:"timezone"` // exchange timezone, e.g. Asia/Kolkata
}

type TradingConfig struct {
	TotalCapital      float64  `json:"total_capital"`
	MaxPositions      int      `json:"max_positions"`
	EnabledStrategies []string `json:"enabled_strategies"` // empty = all
}

type CircuitBreakerConfig struct {
	SLLimit int `json:"sl_limit"` // stop-loss hits per day before trip
}

type AdaptiveConfig struct {
	ReduceAfter     int `json:"reduce_after"`
	PauseAfter      int `json:"pause_after"`
	ReducedMinStars int `json:"reduced_min_stars"`
}

type ConfidenceConfig struct {
	WindowMinutes int `json:"window_minutes"`
}

type MarketDataConfig struct {
	BaseURL        string  `json:"base_url"`
	RequestsPerSec float64 `json:"requests_per_sec"`
	RequestsPerMin int     `json:"requests_per_min"` // 0 disables the per-minute cap
}

type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

type ServerConfig struct {
	Port           int    `json:"port"`
	Host           string `json:"host"`
	AllowedOrigins string `json:"allowed_origins"`
}

type LoggingConfig struct {
	Level      string `json:"level"` // debug, info, warn, error
	JSONFormat bool   `json:"json_format"`
}

// Load reads config.json (optional) and applies environment overrides
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ScannerConfig.ScanInterval <= 0 {
		cfg.ScannerConfig.ScanInterval = 60
	}
	if cfg.ScannerConfig.Timezone == "" {
		cfg.ScannerConfig.Timezone = "Asia/Kolkata"
	}
	if len(cfg.ScannerConfig.Watchlist) == 0 {
		cfg.ScannerConfig.Watchlist = []string{"RELIANCE", "TCS", "HDFCBANK", "INFY", "SBIN"}
	}
	if cfg.TradingConfig.TotalCapital <= 0 {
		cfg.TradingConfig.TotalCapital = 100000
	}
	if cfg.TradingConfig.MaxPositions <= 0 {
		cfg.TradingConfig.MaxPositions = 8
	}
	if cfg.CircuitBreakerConfig.SLLimit <= 0 {
		cfg.CircuitBreakerConfig.SLLimit = 3
	}
	if cfg.AdaptiveConfig.ReduceAfter <= 0 {
		cfg.AdaptiveConfig.ReduceAfter = 3
	}
	if cfg.AdaptiveConfig.PauseAfter <= 0 {
		cfg.AdaptiveConfig.PauseAfter = 5
	}
	if cfg.AdaptiveConfig.ReducedMinStars <= 0 {
		cfg.AdaptiveConfig.ReducedMinStars = 5
	}
	if cfg.ConfidenceConfig.WindowMinutes <= 0 {
		cfg.ConfidenceConfig.WindowMinutes = 15
	}
	if cfg.MarketDataConfig.RequestsPerSec <= 0 {
		cfg.MarketDataConfig.RequestsPerSec = 5
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.AllowedOrigins == "" {
		cfg.ServerConfig.AllowedOrigins = "*"
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
}

// applyEnvOverrides applies environment variable overrides; these take
// precedence over the file.
func applyEnvOverrides(cfg *Config) {
	cfg.ScannerConfig.Enabled = getEnvOrDefault("SCANNER_ENABLED", boolStr(cfg.ScannerConfig.Enabled)) == "true"
	cfg.ScannerConfig.ScanInterval = getEnvIntOrDefault("SCAN_INTERVAL", cfg.ScannerConfig.ScanInterval)
	cfg.ScannerConfig.Timezone = getEnvOrDefault("EXCHANGE_TIMEZONE", cfg.ScannerConfig.Timezone)
	if v := os.Getenv("WATCHLIST"); v != "" {
		cfg.ScannerConfig.Watchlist = splitList(v)
	}

	cfg.TradingConfig.TotalCapital = getEnvFloatOrDefault("TOTAL_CAPITAL", cfg.TradingConfig.TotalCapital)
	cfg.TradingConfig.MaxPositions = getEnvIntOrDefault("MAX_POSITIONS", cfg.TradingConfig.MaxPositions)
	if v := os.Getenv("ENABLED_STRATEGIES"); v != "" {
		cfg.TradingConfig.EnabledStrategies = splitList(v)
	}

	cfg.CircuitBreakerConfig.SLLimit = getEnvIntOrDefault("CB_SL_LIMIT", cfg.CircuitBreakerConfig.SLLimit)

	cfg.MarketDataConfig.BaseURL = getEnvOrDefault("MARKET_DATA_URL", cfg.MarketDataConfig.BaseURL)
	cfg.MarketDataConfig.RequestsPerSec = getEnvFloatOrDefault("MARKET_DATA_RPS", cfg.MarketDataConfig.RequestsPerSec)
	cfg.MarketDataConfig.RequestsPerMin = getEnvIntOrDefault("MARKET_DATA_RPM", cfg.MarketDataConfig.RequestsPerMin)

	cfg.DatabaseConfig.Enabled = getEnvOrDefault("DB_ENABLED", boolStr(cfg.DatabaseConfig.Enabled)) == "true"
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", boolStr(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)

	cfg.NotificationConfig.Enabled = getEnvOrDefault("NOTIFICATIONS_ENABLED", boolStr(cfg.NotificationConfig.Enabled)) == "true"
	cfg.NotificationConfig.Telegram.Enabled = getEnvOrDefault("TELEGRAM_ENABLED", boolStr(cfg.NotificationConfig.Telegram.Enabled)) == "true"
	cfg.NotificationConfig.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.NotificationConfig.Telegram.BotToken)
	cfg.NotificationConfig.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.NotificationConfig.Telegram.ChatID)
	cfg.NotificationConfig.Discord.Enabled = getEnvOrDefault("DISCORD_ENABLED", boolStr(cfg.NotificationConfig.Discord.Enabled)) == "true"
	cfg.NotificationConfig.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord.WebhookURL)

	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", boolStr(cfg.LoggingConfig.JSONFormat)) == "true"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
