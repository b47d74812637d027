package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"tramboard/internal/board"
)

type Config struct {
	AppEnv          string
	LogLevel        slog.Level
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	UpstreamBaseURL  string
	UpstreamTimeout  time.Duration
	StopID           string
	StopName         string
	LineFilter       string
	LookaheadMinutes int
	FetchInterval    time.Duration
	ClockInterval    time.Duration

	DirectionMarkers  []string
	PrimaryTabLabel   string
	SecondaryTabLabel string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	RefreshLimitPerWindow int
	RefreshLimitWindow    time.Duration
	RefreshLimitWhitelist []string
}

func Load() (*Config, error) {
	appEnv := getEnv("APP_ENV", "prod")
	switch appEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	markers := getCSVEnv("DIRECTION_MARKERS")
	if len(markers) == 0 {
		markers = board.DefaultMarkers
	}

	cfg := &Config{
		AppEnv:          appEnv,
		LogLevel:        getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		UpstreamBaseURL:  strings.TrimRight(getEnv("UPSTREAM_BASE_URL", "https://v6.bvg.transport.rest"), "/"),
		UpstreamTimeout:  getDurationEnv("UPSTREAM_TIMEOUT", 30*time.Second),
		StopID:           getEnv("STOP_ID", "900120542"),
		StopName:         getEnv("STOP_NAME", "Forckenbeckplatz"),
		LineFilter:       getEnv("LINE_FILTER", "21"),
		LookaheadMinutes: getIntEnv("LOOKAHEAD_MINUTES", 30),
		FetchInterval:    getDurationEnv("FETCH_INTERVAL", time.Minute),
		ClockInterval:    getDurationEnv("CLOCK_INTERVAL", time.Second),

		DirectionMarkers:  markers,
		PrimaryTabLabel:   getEnv("PRIMARY_TAB_LABEL", "Towards Lidl"),
		SecondaryTabLabel: getEnv("SECONDARY_TAB_LABEL", "Towards Frankfurter Tor"),

		RedisEnabled:  getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		SnapshotTTL:   getDurationEnv("SNAPSHOT_TTL", 10*time.Minute),

		RefreshLimitPerWindow: getIntEnv("REFRESH_LIMIT_PER_WINDOW", 6),
		RefreshLimitWindow:    getDurationEnv("REFRESH_LIMIT_WINDOW", time.Minute),
		RefreshLimitWhitelist: getCSVEnv("REFRESH_LIMIT_WHITELIST"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.StopID == "" {
		return fmt.Errorf("STOP_ID must not be empty")
	}
	if c.LookaheadMinutes <= 0 {
		return fmt.Errorf("LOOKAHEAD_MINUTES must be positive, got %d", c.LookaheadMinutes)
	}
	if c.FetchInterval <= 0 {
		return fmt.Errorf("FETCH_INTERVAL must be positive, got %s", c.FetchInterval)
	}
	if c.ClockInterval <= 0 {
		return fmt.Errorf("CLOCK_INTERVAL must be positive, got %s", c.ClockInterval)
	}
	if c.RefreshLimitPerWindow <= 0 {
		return fmt.Errorf("REFRESH_LIMIT_PER_WINDOW must be positive, got %d", c.RefreshLimitPerWindow)
	}
	if c.RefreshLimitWindow <= 0 {
		return fmt.Errorf("REFRESH_LIMIT_WINDOW must be positive, got %s", c.RefreshLimitWindow)
	}
	if c.SnapshotTTL <= 0 {
		return fmt.Errorf("SNAPSHOT_TTL must be positive, got %s", c.SnapshotTTL)
	}
	return nil
}

// Title is the board heading.
func (c *Config) Title() string {
	return "Next Tram from " + c.StopName
}

func (c *Config) Lookahead() time.Duration {
	return time.Duration(c.LookaheadMinutes) * time.Minute
}

func getEnv(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			result = append(result, t)
		}
	}
	return result
}
