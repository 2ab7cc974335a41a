package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DayLayout is the calendar-day format used by run artifacts and CLI flags.
const DayLayout = "2006/01/02"

// Day is a calendar day without a time-of-day or zone component.
type Day struct {
	t time.Time
}

// NewDay builds a Day, rejecting dates that time.Date would silently normalize.
func NewDay(year int, month time.Month, day int) (Day, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Day{}, fmt.Errorf("invalid calendar day %04d-%02d-%02d", year, int(month), day)
	}
	return Day{t: t}, nil
}

// DayOf truncates t to its calendar day in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses the YYYY/MM/DD form.
func ParseDay(value string) (Day, error) {
	t, err := time.Parse(DayLayout, strings.TrimSpace(value))
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", value, err)
	}
	return Day{t: t}, nil
}

func (d Day) IsZero() bool          { return d.t.IsZero() }
func (d Day) Before(other Day) bool { return d.t.Before(other.t) }
func (d Day) After(other Day) bool  { return d.t.After(other.t) }
func (d Day) AddDays(n int) Day     { return Day{t: d.t.AddDate(0, 0, n)} }

func (d Day) String() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(DayLayout)
}

// MarshalJSON writes the YYYY/MM/DD form.
func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts YYYY/MM/DD and the listing-header form
// ("Fri, 08 Mar 2024") written by older runs.
func (d *Day) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("day must be a string: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		*d = Day{}
		return nil
	}
	if parsed, err := ParseDay(raw); err == nil {
		*d = parsed
		return nil
	}
	parsed, err := ParseListingDay(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// listingDateExpr matches "Fri, 8 Mar 2024" at the start of a listing header;
// anything after the year ("(showing 25 of 120 entries)") is ignored.
var listingDateExpr = regexp.MustCompile(`^\s*(?:([A-Za-z.]+),?\s+)?(\d{1,2})\s+([A-Za-z.]+)\s+(\d{4})`)

// monthNames is a fixed table so parsing never depends on the host locale.
var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ParseListingDay parses the date prefix of a listing header such as
// "Fri, 8 Mar 2024" or "Thu, 06 June 2024". The weekday token is ignored.
func ParseListingDay(header string) (Day, error) {
	m := listingDateExpr.FindStringSubmatch(header)
	if m == nil {
		return Day{}, fmt.Errorf("no listing date in %q", strings.TrimSpace(header))
	}

	dayNum, err := strconv.Atoi(m[2])
	if err != nil {
		return Day{}, fmt.Errorf("listing day %q: %w", m[2], err)
	}

	monthKey := strings.ToLower(strings.TrimSuffix(m[3], "."))
	month, ok := monthNames[monthKey]
	if !ok {
		return Day{}, fmt.Errorf("unknown month %q in %q", m[3], strings.TrimSpace(header))
	}

	year, err := strconv.Atoi(m[4])
	if err != nil {
		return Day{}, fmt.Errorf("listing year %q: %w", m[4], err)
	}

	return NewDay(year, month, dayNum)
}
