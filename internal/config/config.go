package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	CORSOrigins     []string

	// NASA NeoWs feed.
	NASAAPIKey    string
	FeedURL       string
	FeedTimeout   time.Duration
	LookaheadDays int
	// Listing responses reuse a fetched window for FeedCacheTTL; 0 disables.
	FeedCacheTTL  time.Duration
	FeedCacheSize int

	// Daily hazard scan.
	ScanEnabled    bool
	ScanHour       int
	ScanMinute     int
	ScanLocation   *time.Location
	ScanOnStart    bool
	AlertThreshold int

	DatabasePath     string
	BroadcastBuffer  int
	ChatHistoryLimit int

	// Optional Kafka mirror of hazard events; disabled when no brokers are set.
	KafkaBrokers     []string
	KafkaHazardTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	feedTimeout, err := parsePositiveDuration("FEED_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	lookahead, err := parseIntInRange("LOOKAHEAD_DAYS", 7, 0, 7)
	if err != nil {
		return nil, err
	}

	cacheTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("FEED_CACHE_TTL", "5m"))
	if err != nil || cacheTTL < 0 {
		return nil, errors.New("invalid FEED_CACHE_TTL")
	}

	cacheSize, err := parseIntInRange("FEED_CACHE_SIZE", 8, 1, 1024)
	if err != nil {
		return nil, err
	}

	scanHour, scanMinute, err := parseClock(sharedcfg.EnvOrDefault("SCAN_AT", "09:00"))
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("SCAN_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCAN_TIMEZONE: %w", err)
	}

	scanEnabled, err := parseBool("SCAN_ENABLED", true)
	if err != nil {
		return nil, err
	}

	scanOnStart, err := parseBool("SCAN_ON_START", false)
	if err != nil {
		return nil, err
	}

	threshold, err := parseIntInRange("ALERT_THRESHOLD", 90, 0, 100)
	if err != nil {
		return nil, err
	}

	buffer, err := parseIntInRange("BROADCAST_BUFFER", 16, 1, 4096)
	if err != nil {
		return nil, err
	}

	historyLimit, err := parseIntInRange("CHAT_HISTORY_LIMIT", 50, 1, 1000)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":5000"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		CORSOrigins:     splitList(sharedcfg.EnvOrDefault("CORS_ORIGINS", "http://localhost:3000")),

		NASAAPIKey:    sharedcfg.EnvOrDefault("NASA_API_KEY", "DEMO_KEY"),
		FeedURL:       sharedcfg.EnvOrDefault("NEO_FEED_URL", "https://api.nasa.gov/neo/rest/v1/feed"),
		FeedTimeout:   feedTimeout,
		LookaheadDays: lookahead,
		FeedCacheTTL:  cacheTTL,
		FeedCacheSize: cacheSize,

		ScanEnabled:    scanEnabled,
		ScanHour:       scanHour,
		ScanMinute:     scanMinute,
		ScanLocation:   loc,
		ScanOnStart:    scanOnStart,
		AlertThreshold: threshold,

		DatabasePath:     sharedcfg.EnvOrDefault("DATABASE_PATH", "neowatch.db"),
		BroadcastBuffer:  buffer,
		ChatHistoryLimit: historyLimit,

		KafkaBrokers:     brokers,
		KafkaHazardTopic: sharedcfg.EnvOrDefault("KAFKA_HAZARD_TOPIC", "neo-hazard-events"),
	}

	if cfg.NASAAPIKey == "" {
		return nil, errors.New("NASA_API_KEY is required")
	}
	if cfg.DatabasePath == "" {
		return nil, errors.New("DATABASE_PATH is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaHazardTopic == "" {
		return nil, errors.New("KAFKA_HAZARD_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether hazard events are mirrored to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseIntInRange(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be a boolean", key)
	}
	return b, nil
}

// parseClock parses a 24-hour "HH:MM" wall-clock time.
func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid SCAN_AT %q: want HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
