// Package entry validates free-form availability announcements and turns
// them into dated, timezone-stamped entries.
package entry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"flightboard_bot/internal/airport"
	"flightboard_bot/internal/model"
)

// ErrorKind discriminates parse failures. Format errors always take
// precedence over the date window check.
type ErrorKind string

// Parse failure kinds.
const (
	KindFormat    ErrorKind = "format"
	KindDateLimit ErrorKind = "date_limit"
)

// ParseError is the only error type returned by the parser.
type ParseError struct {
	Kind  ErrorKind
	Input string
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case KindDateLimit:
		return fmt.Sprintf("date in %q is outside the allowed window", e.Input)
	default:
		return fmt.Sprintf("cannot parse %q", e.Input)
	}
}

// Window boundaries for a resolved date, in calendar days relative to today.
// One day wider on each side than the 7-day rule shown to users, to absorb
// timezone skew between the user's wall clock and the server's.
const (
	minPastDays   = 2
	maxFutureDays = 8
)

// yearWindowDays bounds the this-year interpretation of a bare MMDD during
// year resolution.
const yearWindowDays = 15

// sep matches one entry-field separator: whitespace, a slash optionally
// surrounded by spaces, or a bare hyphen.
const sep = `(?:\s*/\s*|\s+|-)`

var (
	entryRe    = regexp.MustCompile(`(?i)^(\d{4})` + sep + `([a-z]{3})` + sep + `([a-z]{3})$`)
	importRe   = regexp.MustCompile(`(?i)^(\d{4})` + sep + `([a-z]{3})` + sep + `([a-z]{3})\s+@?([a-z0-9_]{1,64})$`)
	dateOnlyRe = regexp.MustCompile(`^\d{4}$`)
)

// Parser turns raw command text into validated entries. The airport resolver
// supplies each entry's expiry instant.
type Parser struct {
	airports *airport.Resolver
}

// NewParser creates a Parser backed by the given airport resolver.
func NewParser(airports *airport.Resolver) *Parser {
	return &Parser{airports: airports}
}

// Parse validates one announcement of the form "MMDD DEP ARR" (separators:
// spaces, slash, or hyphen; any case) and returns a fully populated entry.
// The returned error is always a *ParseError.
func (p *Parser) Parse(raw string, now time.Time) (*model.Entry, error) {
	trimmed := strings.TrimSpace(raw)

	m := entryRe.FindStringSubmatch(trimmed)
	if m == nil {
		return nil, &ParseError{Kind: KindFormat, Input: trimmed}
	}

	month, day, err := splitMonthDay(m[1])
	if err != nil {
		return nil, &ParseError{Kind: KindFormat, Input: trimmed}
	}

	date := resolveDate(month, day, now)
	if !withinWindow(date, now) {
		return nil, &ParseError{Kind: KindDateLimit, Input: trimmed}
	}

	departure := strings.ToUpper(m[2])
	return &model.Entry{
		Date:         date.Format(model.DateLayout),
		Departure:    departure,
		Arrival:      strings.ToUpper(m[3]),
		OriginalText: trimmed,
		ExpiresAt:    p.airports.LocalMidnightAfter(departure, date.Year(), date.Month(), date.Day()),
	}, nil
}

// ParseImportLine validates one board line, "MMDD DEP / ARR @username", and
// returns an unclaimed entry (nil UserID) with the username's case preserved.
func (p *Parser) ParseImportLine(raw string, now time.Time) (*model.Entry, error) {
	trimmed := strings.TrimSpace(raw)

	m := importRe.FindStringSubmatch(trimmed)
	if m == nil {
		return nil, &ParseError{Kind: KindFormat, Input: trimmed}
	}

	month, day, err := splitMonthDay(m[1])
	if err != nil {
		return nil, &ParseError{Kind: KindFormat, Input: trimmed}
	}

	date := resolveDate(month, day, now)
	if !withinWindow(date, now) {
		return nil, &ParseError{Kind: KindDateLimit, Input: trimmed}
	}

	departure := strings.ToUpper(m[2])
	return &model.Entry{
		Username:     m[4],
		Date:         date.Format(model.DateLayout),
		Departure:    departure,
		Arrival:      strings.ToUpper(m[3]),
		OriginalText: trimmed,
		ExpiresAt:    p.airports.LocalMidnightAfter(departure, date.Year(), date.Month(), date.Day()),
	}, nil
}

// Removal identifies which entry a user wants removed: either a full tuple
// or, with DateOnly set, a bare date whose disambiguation is left to the
// caller.
type Removal struct {
	Date      string
	Departure string
	Arrival   string
	DateOnly  bool
}

// ParseRemoval accepts either a full "MMDD DEP ARR" tuple or a bare "MMDD".
// No window check applies; removals of past-dated entries are legitimate.
func (p *Parser) ParseRemoval(raw string, now time.Time) (Removal, error) {
	trimmed := strings.TrimSpace(raw)

	if dateOnlyRe.MatchString(trimmed) {
		month, day, err := splitMonthDay(trimmed)
		if err != nil {
			return Removal{}, &ParseError{Kind: KindFormat, Input: trimmed}
		}
		date := resolveDate(month, day, now)
		return Removal{Date: date.Format(model.DateLayout), DateOnly: true}, nil
	}

	m := entryRe.FindStringSubmatch(trimmed)
	if m == nil {
		return Removal{}, &ParseError{Kind: KindFormat, Input: trimmed}
	}
	month, day, err := splitMonthDay(m[1])
	if err != nil {
		return Removal{}, &ParseError{Kind: KindFormat, Input: trimmed}
	}
	date := resolveDate(month, day, now)
	return Removal{
		Date:      date.Format(model.DateLayout),
		Departure: strings.ToUpper(m[2]),
		Arrival:   strings.ToUpper(m[3]),
	}, nil
}

// splitMonthDay validates a 4-digit MMDD string. The day check is a plain
// 1-31 range, not calendar-exact.
func splitMonthDay(s string) (int, int, error) {
	month, _ := strconv.Atoi(s[:2])
	day, _ := strconv.Atoi(s[2:])
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("month %d out of range", month)
	}
	if day < 1 || day > 31 {
		return 0, 0, fmt.Errorf("day %d out of range", day)
	}
	return month, day, nil
}

// resolveDate picks the year that makes a bare MMDD closest to today, with
// special handling at year boundaries: in January/February a December date
// may belong to last year, and in November/December a January/February date
// may belong to next year. Otherwise a this-year date within 15 days either
// way stands, and one more than 15 days in the past rolls to next year.
func resolveDate(month, day int, now time.Time) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	thisYear := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, time.UTC)

	if now.Month() <= time.February && time.Month(month) == time.December {
		lastYear := thisYear.AddDate(-1, 0, 0)
		if absDuration(today.Sub(lastYear)) < absDuration(today.Sub(thisYear)) {
			return lastYear
		}
		return thisYear
	}

	if now.Month() >= time.November && month <= 2 {
		nextYear := thisYear.AddDate(1, 0, 0)
		if absDuration(today.Sub(nextYear)) < absDuration(today.Sub(thisYear)) {
			return nextYear
		}
		return thisYear
	}

	diff := thisYear.Sub(today)
	window := yearWindowDays * 24 * time.Hour
	if diff >= -window && diff <= window {
		return thisYear
	}
	if diff < -window {
		return thisYear.AddDate(1, 0, 0)
	}
	return thisYear
}

// withinWindow reports whether date falls between minPastDays in the past
// and maxFutureDays in the future of now, inclusive, in calendar days.
func withinWindow(date, now time.Time) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(date.Sub(today).Hours() / 24)
	return days >= -minPastDays && days <= maxFutureDays
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
