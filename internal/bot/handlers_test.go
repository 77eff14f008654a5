package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"

	"flightboard_bot/internal/entry"
	"flightboard_bot/internal/model"
)

func TestFormatEntryLine(t *testing.T) {
	e := model.Entry{Date: "2025-11-15", Departure: "BER", Arrival: "IST", Username: "alice"}
	if diff := cmp.Diff("1115 BER / IST @alice", FormatEntryLine(e)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatBoard(t *testing.T) {
	tests := []struct {
		name    string
		entries []model.Entry
		want    string
	}{
		{
			name:    "empty board renders the sentinel",
			entries: nil,
			want:    EmptyBoard,
		},
		{
			name: "entries render one line each in store order",
			entries: []model.Entry{
				{Date: "2025-11-14", Departure: "BER", Arrival: "IST", Username: "alice"},
				{Date: "2025-11-15", Departure: "MUC", Arrival: "LHR", Username: "bob"},
			},
			want: "1114 BER / IST @alice\n1115 MUC / LHR @bob",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, FormatBoard(tt.entries)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatUserEntries(t *testing.T) {
	if got := FormatUserEntries(nil); got != "You have no entries." {
		t.Errorf("empty listing = %q", got)
	}

	entries := []model.Entry{
		{Date: "2025-11-14", Departure: "BER", Arrival: "IST", Username: "alice"},
	}
	want := "Your entries:\n1114 BER / IST @alice"
	if diff := cmp.Diff(want, FormatUserEntries(entries)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestMMDD(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{date: "2025-11-15", want: "1115"},
		{date: "2026-01-02", want: "0102"},
		{date: "garbage", want: "garbage"},
	}
	for _, tt := range tests {
		if got := mmdd(tt.date); got != tt.want {
			t.Errorf("mmdd(%q) = %q, want %q", tt.date, got, tt.want)
		}
	}
}

func TestParseErrorMessage(t *testing.T) {
	format := &entry.ParseError{Kind: entry.KindFormat, Input: "9999 xx yy"}
	if got := parseErrorMessage(format); got == "" || !containsAll(got, "9999 xx yy", "MMDD DEP ARR") {
		t.Errorf("format message = %q", got)
	}

	limit := &entry.ParseError{Kind: entry.KindDateLimit, Input: "0101 ber ist"}
	if got := parseErrorMessage(limit); !containsAll(got, "0101 ber ist", "7 days") {
		t.Errorf("date limit message = %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user *tgbotapi.User
		want string
	}{
		{name: "handle preferred", user: &tgbotapi.User{UserName: "alice", FirstName: "Alice"}, want: "alice"},
		{name: "first name fallback", user: &tgbotapi.User{FirstName: "Alice"}, want: "Alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayName(tt.user); got != tt.want {
				t.Errorf("displayName = %q, want %q", got, tt.want)
			}
		})
	}
}
