package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"schoolcal/internal/icloud"
)

const (
	ProviderGoogle = "google"
	ProviderCalDAV = "caldav"
)

// Config holds everything read from the environment.
type Config struct {
	Provider   string
	CalendarID string
	TimeZone   string
	Location   *time.Location

	LookaheadDays int
	Concurrency   int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleAccount      string

	CalDAVEndpoint string
	CalDAVUsername string
	CalDAVPassword string
	CalDAVCalendar string

	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAIBaseURL  string
	ExtractTimeout time.Duration

	LogLevel string
}

// Load reads the configuration from environment variables and validates it.
func Load() (Config, error) {
	cfg := Config{
		Provider:           strings.ToLower(getenvDefault("CALENDAR_PROVIDER", ProviderGoogle)),
		CalendarID:         getenvDefault("CALENDAR_ID", "primary"),
		TimeZone:           getenvDefault("PRIMARY_TIMEZONE", "America/New_York"),
		LookaheadDays:      getenvInt("LOOKAHEAD_DAYS", 365),
		Concurrency:        getenvInt("SYNC_CONCURRENCY", 1),
		GoogleClientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleClientSecret: strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET")),
		GoogleAccount:      strings.TrimSpace(os.Getenv("GOOGLE_ACCOUNT")),
		CalDAVEndpoint:     getenvDefault("CALDAV_ENDPOINT", icloud.DefaultEndpoint),
		CalDAVUsername:     strings.TrimSpace(os.Getenv("CALDAV_USERNAME")),
		CalDAVPassword:     strings.TrimSpace(os.Getenv("CALDAV_PASSWORD")),
		CalDAVCalendar:     strings.TrimSpace(os.Getenv("CALDAV_CALENDAR")),
		OpenAIAPIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:        strings.TrimSpace(os.Getenv("OPENAI_MODEL")),
		OpenAIBaseURL:      strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		ExtractTimeout:     getenvDuration("EXTRACT_TIMEOUT", 60*time.Second),
		LogLevel:           getenvDefault("LOG_LEVEL", "info"),
	}

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return Config{}, fmt.Errorf("invalid timezone '%s': %w", cfg.TimeZone, err)
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that every command needs. Credentials are
// checked by the command that uses them.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderGoogle:
	case ProviderCalDAV:
		if c.CalDAVUsername == "" || c.CalDAVPassword == "" {
			return errors.New("CALDAV_USERNAME and CALDAV_PASSWORD are required when CALENDAR_PROVIDER=caldav")
		}
	default:
		return fmt.Errorf("unknown calendar provider: %s", c.Provider)
	}
	if c.LookaheadDays <= 0 {
		return errors.New("LOOKAHEAD_DAYS must be > 0")
	}
	if c.Concurrency <= 0 {
		return errors.New("SYNC_CONCURRENCY must be > 0")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	return nil
}

// Lookahead is the default span of existing events fetched after now.
func (c Config) Lookahead() time.Duration {
	return time.Duration(c.LookaheadDays) * 24 * time.Hour
}

func getenvDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
