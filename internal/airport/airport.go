// Package airport maps airport codes to timezones and computes the instant
// at which a calendar date ends locally at an airport.
package airport

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"flightboard_bot/internal/model"
)

// FallbackZone is the distinguished value returned for codes whose timezone
// cannot be determined. UTC-12 is the offset where any calendar date ends
// last, so falling back to it gives an entry the longest possible visible
// lifetime. It is not an IANA zone and is handled arithmetically.
const FallbackZone = "UTC-12"

// Finder maps geographic coordinates to an IANA timezone name, returning the
// empty string when the point has none (open ocean). *tzf.DefaultFinder
// satisfies it.
type Finder interface {
	GetTimezoneName(lng float64, lat float64) string
}

type coordinates struct {
	lat float64
	lng float64
}

// Resolver looks up airports in a static coordinate table loaded once at
// construction. Lookups never fail; anything unresolvable degrades to
// FallbackZone.
type Resolver struct {
	coords map[string]coordinates
	finder Finder
	log    *slog.Logger
}

// NewResolver loads the airport table from csvPath. A missing or unreadable
// file is logged and leaves the table empty — the resolver still functions,
// every lookup falls back. A nil finder has the same effect.
func NewResolver(csvPath string, finder Finder, log *slog.Logger) *Resolver {
	r := &Resolver{
		coords: make(map[string]coordinates),
		finder: finder,
		log:    log,
	}
	if err := r.loadTable(csvPath); err != nil {
		log.Warn("airport table unavailable, all lookups will fall back", "path", csvPath, "error", err)
	}
	return r
}

// loadTable reads rows of the form code,name,latitude,longitude. Rows that
// do not parse are skipped, they never abort the load.
func (r *Resolver) loadTable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	for row := 1; ; row++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.log.Debug("skipping unreadable airport row", "row", row, "error", err)
			continue
		}
		if row == 1 {
			continue // header
		}
		if len(rec) < 4 {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(rec[0]))
		if len(code) != 3 {
			continue
		}
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		lng, lngErr := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if latErr != nil || lngErr != nil {
			r.log.Debug("skipping airport row with bad coordinates", "row", row, "code", code)
			continue
		}
		r.coords[code] = coordinates{lat: lat, lng: lng}
	}

	r.log.Info("airport table loaded", "airports", len(r.coords))
	return nil
}

// TimezoneFor returns the IANA timezone of the airport, or FallbackZone when
// the code is unknown, the finder is absent, or the coordinates map to no
// timezone.
func (r *Resolver) TimezoneFor(code string) string {
	c, ok := r.coords[strings.ToUpper(code)]
	if !ok {
		return FallbackZone
	}
	if r.finder == nil {
		return FallbackZone
	}
	zone := r.finder.GetTimezoneName(c.lng, c.lat)
	if zone == "" {
		r.log.Debug("no timezone for airport coordinates", "code", code, "lat", c.lat, "lng", c.lng)
		return FallbackZone
	}
	return zone
}

// LocalMidnightAfter returns the instant at which the given calendar date
// ends at the airport: the start of the next calendar day in local time.
// The zone database supplies the offset in force on that specific date, so
// DST transitions are honored. For FallbackZone the boundary is computed
// directly as 12:00 UTC on the following day.
func (r *Resolver) LocalMidnightAfter(code string, year int, month time.Month, day int) time.Time {
	zone := r.TimezoneFor(code)
	if zone != FallbackZone {
		loc, err := time.LoadLocation(zone)
		if err == nil {
			return time.Date(year, month, day+1, 0, 0, 0, 0, loc)
		}
		r.log.Warn("load timezone", "zone", zone, "code", code, "error", err)
	}
	return time.Date(year, month, day+1, 12, 0, 0, 0, time.UTC)
}

// HasExpired reports whether the local day of date (YYYY-MM-DD) has already
// ended at the airport. An unparseable date counts as not expired, matching
// the fallback's keep-visible bias.
func (r *Resolver) HasExpired(code, date string, now time.Time) bool {
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return false
	}
	return !now.Before(r.LocalMidnightAfter(code, d.Year(), d.Month(), d.Day()))
}
