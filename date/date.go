// Package date provides a calendar-day value type for the simulation
// clock and ledger timestamps. A Date has no time-of-day component;
// two entries on the same day are ordered by their action id, not by
// wall-clock time.
package date

import (
	"encoding/json"
	"fmt"
	"time"
)

// Format is the canonical ISO-8601 day format used everywhere a date
// is persisted or displayed.
const Format = "2006-01-02"

// readFormat is more permissive on read (allows 2025-7-1).
const readFormat = "2006-1-2"

// Date represents a calendar day with no lower granularity.
// The zero Date is "unset" and sorts before every real date.
type Date struct {
	y int
	m time.Month
	d int
}

// New returns a normalized Date for the given year, month and day.
// Out-of-range values are normalized the way time.Date does.
func New(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.time().Date()
	return d
}

// Today returns the current date in UTC.
func Today() Date { return New(time.Now().UTC().Date()) }

// FromTime truncates a time.Time to its calendar day.
func FromTime(t time.Time) Date { return New(t.Date()) }

// Parse parses an ISO day string. It is lenient and accepts
// single-digit month/day like "2025-7-1".
func Parse(s string) (Date, error) {
	t, err := time.Parse(readFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want %q: %w", s, Format, err)
	}
	return New(t.Date()), nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// literals.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

// time returns the canonical representation of the day, midnight UTC.
func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// Time returns the day at midnight UTC.
func (d Date) Time() time.Time { return d.time() }

// IsZero reports whether d is the unset date.
func (d Date) IsZero() bool { return d == Date{} }

// Before reports whether d is strictly before x.
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }

// After reports whether d is strictly after x.
func (d Date) After(x Date) bool { return d.time().After(x.time()) }

// Add returns the date i calendar days after d (i may be negative).
func (d Date) Add(i int) Date { return New(d.y, d.m, d.d+i) }

// Sub returns the number of calendar days from x to d.
func (d Date) Sub(x Date) int {
	return int(d.time().Sub(x.time()) / (24 * time.Hour))
}

// Year returns the year.
func (d Date) Year() int { return d.y }

// Month returns the month.
func (d Date) Month() time.Month { return d.m }

// Day returns the day of the month.
func (d Date) Day() int { return d.d }

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

// String formats the date in its canonical form.
func (d Date) String() string { return d.time().Format(Format) }

// MarshalJSON encodes the date as a "YYYY-MM-DD" JSON string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a "YYYY-MM-DD" JSON string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var _ json.Marshaler = (*Date)(nil)
var _ json.Unmarshaler = (*Date)(nil)
