// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken  string
	GroupID           int64 // chat the board lives in
	TopicID           int   // forum topic the board is posted to
	DatabasePath      string
	AirportsCSV       string
	LogLevel          string
	SweepInterval     time.Duration
	MemberCacheTTL    time.Duration
	NonMemberCacheTTL time.Duration
	MetricsAddr       string // empty disables the endpoint
}

// Load reads configuration from environment variables. The bot token, group
// ID, and topic ID are required; everything else has a default.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	groupID, err := requiredInt64("GROUP_ID")
	if err != nil {
		return nil, err
	}
	topicID, err := requiredInt("TOPIC_ID")
	if err != nil {
		return nil, err
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/bot.db"
	}

	airportsCSV := os.Getenv("AIRPORTS_CSV")
	if airportsCSV == "" {
		airportsCSV = "./data/airports.csv"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	sweep, err := minutesOrDefault("SWEEP_INTERVAL_MINUTES", 5)
	if err != nil {
		return nil, err
	}
	memberTTL, err := minutesOrDefault("MEMBER_CACHE_MINUTES", 10)
	if err != nil {
		return nil, err
	}
	nonMemberTTL, err := minutesOrDefault("NON_MEMBER_CACHE_MINUTES", 1)
	if err != nil {
		return nil, err
	}

	metricsAddr := ":9091"
	if v, ok := os.LookupEnv("METRICS_ADDR"); ok {
		metricsAddr = v
	}

	return &Config{
		TelegramBotToken:  token,
		GroupID:           groupID,
		TopicID:           topicID,
		DatabasePath:      dbPath,
		AirportsCSV:       airportsCSV,
		LogLevel:          logLevel,
		SweepInterval:     sweep,
		MemberCacheTTL:    memberTTL,
		NonMemberCacheTTL: nonMemberTTL,
		MetricsAddr:       metricsAddr,
	}, nil
}

func requiredInt64(key string) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func requiredInt(key string) (int, error) {
	v, err := requiredInt64(key)
	return int(v), err
}

// minutesOrDefault parses a fractional-minute duration; fractions are
// allowed so tests and staging can sweep faster than once a minute.
func minutesOrDefault(key string, def float64) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return time.Duration(def * float64(time.Minute)), nil
	}
	mins, err := strconv.ParseFloat(raw, 64)
	if err != nil || mins <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive number of minutes", key, raw)
	}
	return time.Duration(mins * float64(time.Minute)), nil
}
