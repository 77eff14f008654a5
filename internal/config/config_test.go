package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var configKeys = []string{
	"TELEGRAM_BOT_TOKEN", "GROUP_ID", "TOPIC_ID", "DATABASE_PATH",
	"AIRPORTS_CSV", "LOG_LEVEL", "SWEEP_INTERVAL_MINUTES",
	"MEMBER_CACHE_MINUTES", "NON_MEMBER_CACHE_MINUTES", "METRICS_ADDR",
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    *Config
		wantErr bool
	}{
		{
			name:    "missing token",
			env:     map[string]string{"GROUP_ID": "-100", "TOPIC_ID": "7"},
			wantErr: true,
		},
		{
			name:    "missing group id",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "TOPIC_ID": "7"},
			wantErr: true,
		},
		{
			name:    "missing topic id",
			env:     map[string]string{"TELEGRAM_BOT_TOKEN": "tok", "GROUP_ID": "-100"},
			wantErr: true,
		},
		{
			name: "required only, defaults applied",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"GROUP_ID":           "-1001234",
				"TOPIC_ID":           "77",
			},
			want: &Config{
				TelegramBotToken:  "tok",
				GroupID:           -1001234,
				TopicID:           77,
				DatabasePath:      "./data/bot.db",
				AirportsCSV:       "./data/airports.csv",
				LogLevel:          "info",
				SweepInterval:     5 * time.Minute,
				MemberCacheTTL:    10 * time.Minute,
				NonMemberCacheTTL: time.Minute,
				MetricsAddr:       ":9091",
			},
		},
		{
			name: "all values set",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN":       "tok",
				"GROUP_ID":                 "-1001234",
				"TOPIC_ID":                 "77",
				"DATABASE_PATH":            "/tmp/board.db",
				"AIRPORTS_CSV":             "/tmp/airports.csv",
				"LOG_LEVEL":                "debug",
				"SWEEP_INTERVAL_MINUTES":   "0.5",
				"MEMBER_CACHE_MINUTES":     "30",
				"NON_MEMBER_CACHE_MINUTES": "2",
				"METRICS_ADDR":             "localhost:9100",
			},
			want: &Config{
				TelegramBotToken:  "tok",
				GroupID:           -1001234,
				TopicID:           77,
				DatabasePath:      "/tmp/board.db",
				AirportsCSV:       "/tmp/airports.csv",
				LogLevel:          "debug",
				SweepInterval:     30 * time.Second,
				MemberCacheTTL:    30 * time.Minute,
				NonMemberCacheTTL: 2 * time.Minute,
				MetricsAddr:       "localhost:9100",
			},
		},
		{
			name: "empty metrics addr disables the endpoint",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"GROUP_ID":           "-100",
				"TOPIC_ID":           "7",
				"METRICS_ADDR":       "",
			},
			want: &Config{
				TelegramBotToken:  "tok",
				GroupID:           -100,
				TopicID:           7,
				DatabasePath:      "./data/bot.db",
				AirportsCSV:       "./data/airports.csv",
				LogLevel:          "info",
				SweepInterval:     5 * time.Minute,
				MemberCacheTTL:    10 * time.Minute,
				NonMemberCacheTTL: time.Minute,
				MetricsAddr:       "",
			},
		},
		{
			name: "invalid group id",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN": "tok",
				"GROUP_ID":           "not-a-number",
				"TOPIC_ID":           "7",
			},
			wantErr: true,
		},
		{
			name: "negative sweep interval",
			env: map[string]string{
				"TELEGRAM_BOT_TOKEN":     "tok",
				"GROUP_ID":               "-100",
				"TOPIC_ID":               "7",
				"SWEEP_INTERVAL_MINUTES": "-1",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range configKeys {
				t.Setenv(key, "")
				os.Unsetenv(key)
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
