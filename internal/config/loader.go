package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AccountSpec describes one conferencing provider account. The wiring layer
// converts specs into provider accounts.
type AccountSpec struct {
	ID       string
	BaseURL  string
	MaxRooms int
}

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort            int
	SQLiteDSN           string
	SessionTTL          time.Duration
	CollaboratorTimeout time.Duration
	DefaultLocale       string
	LogLevel            string
	ConferenceAccounts  []AccountSpec
}

// Load parses configuration values from the current process environment. A
// .env file in the working directory is read first when present; real
// environment variables win over file entries.
//
// The loader applies defaults for optional fields while validating required
// values and reporting every missing or invalid entry at once.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:            8080,
		SQLiteDSN:           "file:booking.db",
		SessionTTL:          24 * time.Hour,
		CollaboratorTimeout: 10 * time.Second,
		DefaultLocale:       "ja",
		LogLevel:            "info",
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("BOOKING_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "BOOKING_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("BOOKING_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if ttlValue := strings.TrimSpace(os.Getenv("BOOKING_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "BOOKING_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if timeoutValue := strings.TrimSpace(os.Getenv("BOOKING_COLLABORATOR_TIMEOUT")); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "BOOKING_COLLABORATOR_TIMEOUT")
		} else {
			cfg.CollaboratorTimeout = timeout
		}
	}

	if locale := strings.TrimSpace(os.Getenv("BOOKING_DEFAULT_LOCALE")); locale != "" {
		cfg.DefaultLocale = locale
	}

	if level := strings.TrimSpace(os.Getenv("BOOKING_LOG_LEVEL")); level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(level)
		default:
			invalid = append(invalid, "BOOKING_LOG_LEVEL")
		}
	}

	if accountsValue := strings.TrimSpace(os.Getenv("BOOKING_CONFERENCE_ACCOUNTS")); accountsValue == "" {
		missing = append(missing, "BOOKING_CONFERENCE_ACCOUNTS")
	} else {
		accounts, err := parseAccounts(accountsValue)
		if err != nil {
			invalid = append(invalid, "BOOKING_CONFERENCE_ACCOUNTS")
		} else {
			cfg.ConferenceAccounts = accounts
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("必須の環境変数が設定されていません: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("環境変数の値が不正です: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// parseAccounts decodes the account pool from its compact env form:
// "id=baseURL" entries separated by commas, with an optional "|maxRooms"
// suffix per entry, e.g. "acct-1=https://one.example.com|4,acct-2=https://two.example.com".
func parseAccounts(value string) ([]AccountSpec, error) {
	entries := strings.Split(value, ",")
	accounts := make([]AccountSpec, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		id, rest, found := strings.Cut(entry, "=")
		if !found || strings.TrimSpace(id) == "" || strings.TrimSpace(rest) == "" {
			return nil, fmt.Errorf("config: malformed account entry %q", entry)
		}

		spec := AccountSpec{ID: strings.TrimSpace(id)}
		baseURL, limit, hasLimit := strings.Cut(rest, "|")
		spec.BaseURL = strings.TrimSpace(baseURL)
		if hasLimit {
			rooms, err := strconv.Atoi(strings.TrimSpace(limit))
			if err != nil || rooms < 0 {
				return nil, fmt.Errorf("config: malformed room limit in %q", entry)
			}
			spec.MaxRooms = rooms
		}
		accounts = append(accounts, spec)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("config: no accounts configured")
	}
	return accounts, nil
}
