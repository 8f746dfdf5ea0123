package fund

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// DATE - Reporting date with day granularity
// =============================================================================

// DateLayout is the persisted and wire format of an as-of date.
const DateLayout = "2006-01-02"

// Date is a calendar day in UTC. The zero Date means "absent".
type Date struct {
	Time time.Time
}

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current day in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"2006.01.02",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseDate accepts ISO dates plus the separators spreadsheets commonly emit.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

// MustParseDate panics on malformed input. Intended for tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) IsZero() bool             { return d.Time.IsZero() }
func (d Date) Before(other Date) bool   { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool    { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool    { return d.Time.Equal(other.Time) }
func (d Date) AddDays(n int) Date       { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) Compare(other Date) int   { return d.Time.Compare(other.Time) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// DATE RANGE - Inclusive [Start, End] filter
// =============================================================================

// DateRange is an inclusive range of as-of dates.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// TrailingYear is the default analysis window: 365 days ending at end.
func TrailingYear(end Date) DateRange {
	return DateRange{Start: end.AddDays(-365), End: end}
}

// Validate rejects missing bounds and inverted ranges.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidRange, r.End, r.Start)
	}
	return nil
}

// Contains reports whether d falls within the range. A zero date never does.
func (r DateRange) Contains(d Date) bool {
	if d.IsZero() {
		return false
	}
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}
