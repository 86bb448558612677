package flight

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/farescout/farescout/pkg/errors"
)

// Filters restricts the candidate set fetched for one ranking request.
// Route codes and airline match exactly after case normalization; free text
// is an OR-matched substring pre-filter over the searchable fields; price
// bounds apply to the latest observed amount after aggregates are derived.
type Filters struct {
	Origin      string
	Destination string
	Airline     string
	FreeText    string
	PriceMin    *float64
	PriceMax    *float64
	DateStart   *time.Time
	DateEnd     *time.Time
}

// FilterInput carries the raw, unparsed filter values as they arrive from
// HTTP query parameters or CLI flags.
type FilterInput struct {
	Origin      string
	Destination string
	Airline     string
	FreeText    string
	PriceMin    string
	PriceMax    string
	DateStart   string
	DateEnd     string
}

const dateLayout = "2006-01-02"

// ParseFilters validates raw inputs and produces normalized Filters. Every
// rejection names the offending field; nothing is fetched for an invalid
// filter set.
func ParseFilters(in FilterInput) (Filters, error) {
	f := Filters{
		Origin:      strings.ToUpper(strings.TrimSpace(in.Origin)),
		Destination: strings.ToUpper(strings.TrimSpace(in.Destination)),
		Airline:     strings.TrimSpace(in.Airline),
		FreeText:    strings.TrimSpace(in.FreeText),
	}

	if f.Origin != "" && !validRouteCode(f.Origin) {
		return Filters{}, apperrors.InvalidFilter("origin", "must be a 3-letter airport code, got %q", in.Origin)
	}
	if f.Destination != "" && !validRouteCode(f.Destination) {
		return Filters{}, apperrors.InvalidFilter("destination", "must be a 3-letter airport code, got %q", in.Destination)
	}

	if in.PriceMin != "" {
		v, err := strconv.ParseFloat(in.PriceMin, 64)
		if err != nil || v < 0 {
			return Filters{}, apperrors.InvalidFilter("price_min", "must be a non-negative number, got %q", in.PriceMin)
		}
		f.PriceMin = &v
	}
	if in.PriceMax != "" {
		v, err := strconv.ParseFloat(in.PriceMax, 64)
		if err != nil || v < 0 {
			return Filters{}, apperrors.InvalidFilter("price_max", "must be a non-negative number, got %q", in.PriceMax)
		}
		f.PriceMax = &v
	}
	if f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		return Filters{}, apperrors.InvalidFilter("price_min", "must not exceed price_max")
	}

	if in.DateStart != "" {
		t, err := parseDate(in.DateStart)
		if err != nil {
			return Filters{}, apperrors.InvalidFilter("date_start", "must be YYYY-MM-DD or RFC3339, got %q", in.DateStart)
		}
		start := StartOfDay(t)
		f.DateStart = &start
	}
	if in.DateEnd != "" {
		t, err := parseDate(in.DateEnd)
		if err != nil {
			return Filters{}, apperrors.InvalidFilter("date_end", "must be YYYY-MM-DD or RFC3339, got %q", in.DateEnd)
		}
		end := EndOfDay(t)
		f.DateEnd = &end
	}
	if f.DateStart != nil && f.DateEnd != nil && f.DateStart.After(*f.DateEnd) {
		return Filters{}, apperrors.InvalidFilter("date_start", "must not be after date_end")
	}

	return f, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func validRouteCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// StartOfDay returns t's UTC day at 00:00:00.000.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns t's UTC day at 23:59:59.999.
func EndOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, int(999*time.Millisecond), time.UTC)
}

// Matches reports whether f passes the structural filters: active flag, route
// and airline equality, date window, and the free-text substring pre-filter.
// Price bounds are checked separately once aggregates exist.
func (fl Filters) Matches(f Flight) bool {
	if !f.Active {
		return false
	}
	if fl.Origin != "" && !strings.EqualFold(fl.Origin, f.Origin) {
		return false
	}
	if fl.Destination != "" && !strings.EqualFold(fl.Destination, f.Destination) {
		return false
	}
	if fl.Airline != "" && !strings.EqualFold(fl.Airline, f.Airline) {
		return false
	}
	if fl.DateStart != nil && f.DepartureAt.Before(*fl.DateStart) {
		return false
	}
	if fl.DateEnd != nil && f.DepartureAt.After(*fl.DateEnd) {
		return false
	}
	if fl.FreeText != "" && !fl.matchesFreeText(f) {
		return false
	}
	return true
}

func (fl Filters) matchesFreeText(f Flight) bool {
	needle := strings.ToLower(fl.FreeText)
	for _, hay := range []string{
		f.Airline,
		f.Origin,
		f.Destination,
		f.Equipment,
		f.CabinClass,
		f.Notes,
	} {
		if strings.Contains(strings.ToLower(hay), needle) {
			return true
		}
	}
	return false
}

// PriceBoundsMatch applies the price-range filter to derived stats. A
// candidate without observations fails any explicit bound: its missing
// latest amount counts as +infinity against a minimum and -infinity against
// a maximum.
func (fl Filters) PriceBoundsMatch(stats PriceStats) bool {
	if fl.PriceMin == nil && fl.PriceMax == nil {
		return true
	}
	if stats.Count == 0 {
		return false
	}
	if fl.PriceMin != nil && stats.Latest < *fl.PriceMin {
		return false
	}
	if fl.PriceMax != nil && stats.Latest > *fl.PriceMax {
		return false
	}
	return true
}

// QueryText is the text the engine ranks against: the free-text query when
// present, otherwise the supplied structured filters joined by spaces.
func (fl Filters) QueryText() string {
	if fl.FreeText != "" {
		return fl.FreeText
	}
	parts := make([]string, 0, 3)
	for _, s := range []string{fl.Origin, fl.Destination, fl.Airline} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Applied lists the filters in effect, keyed by parameter name, for echoing
// back in search responses.
func (fl Filters) Applied() map[string]string {
	applied := make(map[string]string)
	if fl.Origin != "" {
		applied["origin"] = fl.Origin
	}
	if fl.Destination != "" {
		applied["destination"] = fl.Destination
	}
	if fl.Airline != "" {
		applied["airline"] = fl.Airline
	}
	if fl.FreeText != "" {
		applied["q"] = fl.FreeText
	}
	if fl.PriceMin != nil {
		applied["price_min"] = strconv.FormatFloat(*fl.PriceMin, 'f', -1, 64)
	}
	if fl.PriceMax != nil {
		applied["price_max"] = strconv.FormatFloat(*fl.PriceMax, 'f', -1, 64)
	}
	if fl.DateStart != nil {
		applied["date_start"] = fl.DateStart.Format(time.RFC3339)
	}
	if fl.DateEnd != nil {
		applied["date_end"] = fl.DateEnd.Format(time.RFC3339)
	}
	return applied
}
