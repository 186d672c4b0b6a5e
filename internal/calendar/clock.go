package calendar

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Clock is a wall-clock time of day normalised to HH:MM:SS. Normalised values order
// correctly under plain string comparison.
type Clock string

// ClockLayout is the normalised wire and storage format.
const ClockLayout = "15:04:05"

// ClockOf returns the wall-clock time of t in t's own location.
func ClockOf(t time.Time) Clock {
	return Clock(t.Format(ClockLayout))
}

// ParseClock accepts HH:MM or HH:MM:SS (fractional seconds are dropped).
func ParseClock(raw string) (Clock, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("time is required")
	}
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	for _, layout := range []string{ClockLayout, "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return ClockOf(t), nil
		}
	}
	return "", fmt.Errorf("invalid time %q, expected HH:MM or HH:MM:SS", raw)
}

// MustClock parses raw and panics on malformed input. Intended for constants and tests.
func MustClock(raw string) Clock {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Before reports whether c is strictly earlier than o.
func (c Clock) Before(o Clock) bool { return c < o }

// After reports whether c is strictly later than o.
func (c Clock) After(o Clock) bool { return c > o }

// Parts splits c into hour, minute and second. Malformed values yield midnight.
func (c Clock) Parts() (h, m, s int) {
	t, err := time.Parse(ClockLayout, string(c))
	if err != nil {
		return 0, 0, 0
	}
	return t.Hour(), t.Minute(), t.Second()
}

// Offset returns the nominal elapsed time since midnight, ignoring DST shifts.
func (c Clock) Offset() time.Duration {
	h, m, s := c.Parts()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

// Short renders HH:MM.
func (c Clock) Short() string {
	if len(c) >= 5 {
		return string(c[:5])
	}
	return string(c)
}

// Scan implements sql.Scanner for TIME columns.
func (c *Clock) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*c = ""
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	case time.Time:
		*c = ClockOf(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into calendar.Clock", src)
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Value implements driver.Valuer.
func (c Clock) Value() (driver.Value, error) {
	if c == "" {
		return nil, nil
	}
	return string(c), nil
}

// Combine places a wall-clock time on a calendar day in loc. Wall times skipped
// by a DST gap normalise forward as time.Date does.
func Combine(d Date, c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	h, m, s := c.Parts()
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, s, 0, loc)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect. Touching
// boundaries do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd Clock) bool {
	return aStart < bEnd && aEnd > bStart
}
