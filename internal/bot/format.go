package bot

import (
	"fmt"
	"strings"
	"time"

	"flightboard_bot/internal/model"
)

// EmptyBoard is the fixed rendering of a board with no entries. Downstream
// consumers compare against it to detect the all-clear state.
const EmptyBoard = "No entries yet."

// FormatBoard renders the full board, one line per entry in store order.
func FormatBoard(entries []model.Entry) string {
	if len(entries) == 0 {
		return EmptyBoard
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = FormatEntryLine(e)
	}
	return strings.Join(lines, "\n")
}

// FormatEntryLine renders one entry as "MMDD DEP / ARR @username".
func FormatEntryLine(e model.Entry) string {
	return fmt.Sprintf("%s %s / %s @%s", mmdd(e.Date), e.Departure, e.Arrival, e.Username)
}

// FormatUserEntries renders a user's own entries for error-context replies.
func FormatUserEntries(entries []model.Entry) string {
	if len(entries) == 0 {
		return "You have no entries."
	}
	var b strings.Builder
	b.WriteString("Your entries:")
	for _, e := range entries {
		b.WriteString("\n")
		b.WriteString(FormatEntryLine(e))
	}
	return b.String()
}

// mmdd renders a canonical YYYY-MM-DD date back in the short form users
// type. An unparseable date is shown as stored.
func mmdd(date string) string {
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("0102")
}
