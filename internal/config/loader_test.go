package config

import (
	"os"
	"testing"
	"time"
)

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		unset := []string{
			"BOOKING_HTTP_PORT",
			"BOOKING_SQLITE_DSN",
			"BOOKING_SESSION_TTL",
			"BOOKING_COLLABORATOR_TIMEOUT",
			"BOOKING_DEFAULT_LOCALE",
			"BOOKING_LOG_LEVEL",
		}
		for _, key := range unset {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}
		t.Setenv("BOOKING_CONFERENCE_ACCOUNTS", "acct-1=https://conf.example.com")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:booking.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.SessionTTL != 24*time.Hour {
			t.Fatalf("expected default session TTL 24h, got %s", cfg.SessionTTL)
		}
		if cfg.CollaboratorTimeout != 10*time.Second {
			t.Fatalf("expected default collaborator timeout 10s, got %s", cfg.CollaboratorTimeout)
		}
		if cfg.DefaultLocale != "ja" {
			t.Fatalf("expected default locale ja, got %q", cfg.DefaultLocale)
		}
	})

	t.Run("errors when the account pool is missing", func(t *testing.T) {
		for _, key := range []string{
			"BOOKING_CONFERENCE_ACCOUNTS",
			"BOOKING_HTTP_PORT",
			"BOOKING_SQLITE_DSN",
		} {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("failed to unset %s: %v", key, err)
			}
		}

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error when required values are missing")
		}
		expected := "必須の環境変数が設定されていません: BOOKING_CONFERENCE_ACCOUNTS"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses duration and numeric fields", func(t *testing.T) {
		t.Setenv("BOOKING_CONFERENCE_ACCOUNTS", "acct-1=https://one.example.com|4, acct-2=https://two.example.com")
		t.Setenv("BOOKING_HTTP_PORT", "9090")
		t.Setenv("BOOKING_SQLITE_DSN", "file:/tmp/booking.db")
		t.Setenv("BOOKING_SESSION_TTL", "12h")
		t.Setenv("BOOKING_COLLABORATOR_TIMEOUT", "5s")
		t.Setenv("BOOKING_LOG_LEVEL", "DEBUG")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:/tmp/booking.db" {
			t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.SessionTTL != 12*time.Hour {
			t.Fatalf("expected session TTL 12h, got %s", cfg.SessionTTL)
		}
		if cfg.CollaboratorTimeout != 5*time.Second {
			t.Fatalf("expected collaborator timeout 5s, got %s", cfg.CollaboratorTimeout)
		}
		if cfg.LogLevel != "debug" {
			t.Fatalf("expected normalized log level debug, got %q", cfg.LogLevel)
		}

		if len(cfg.ConferenceAccounts) != 2 {
			t.Fatalf("expected two accounts, got %d", len(cfg.ConferenceAccounts))
		}
		first := cfg.ConferenceAccounts[0]
		if first.ID != "acct-1" || first.BaseURL != "https://one.example.com" || first.MaxRooms != 4 {
			t.Fatalf("unexpected first account: %+v", first)
		}
		second := cfg.ConferenceAccounts[1]
		if second.ID != "acct-2" || second.MaxRooms != 0 {
			t.Fatalf("unexpected second account: %+v", second)
		}
	})

	t.Run("rejects malformed account entries", func(t *testing.T) {
		t.Setenv("BOOKING_CONFERENCE_ACCOUNTS", "acct-1")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for malformed account entry")
		}
		expected := "環境変数の値が不正です: BOOKING_CONFERENCE_ACCOUNTS"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}
