package calendar

import (
	"errors"
	"time"
)

// ErrInvalidRange is returned when the end date precedes the start date.
var ErrInvalidRange = errors.New("end date cannot be before start date")

// maxSpanDays bounds a single expansion.
const maxSpanDays = 366

// ErrRangeTooLong is returned when a range exceeds maxSpanDays.
var ErrRangeTooLong = errors.New("date range exceeds one year")

// Expand lists every day from start to end inclusive in ascending order.
func Expand(start, end Date) ([]Date, error) {
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	span := int(end.Sub(start.Time).Hours()/24) + 1
	if span > maxSpanDays {
		return nil, ErrRangeTooLong
	}
	days := make([]Date, 0, span)
	for d := start; !d.After(end); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days, nil
}

// EffectiveEnd returns end when set, otherwise start.
func EffectiveEnd(start Date, end *Date) Date {
	if end == nil || end.IsZero() {
		return start
	}
	return *end
}

// Contains reports whether day falls within [start, effective end].
func Contains(start Date, end *Date, day Date) bool {
	return !day.Before(start) && !day.After(EffectiveEnd(start, end))
}

// RangeChanged reports whether the effective range moved. An absent end date and an end
// date equal to the start date describe the same range.
func RangeChanged(oldStart Date, oldEnd *Date, newStart Date, newEnd *Date) bool {
	if !oldStart.Equal(newStart) {
		return true
	}
	return !EffectiveEnd(oldStart, oldEnd).Equal(EffectiveEnd(newStart, newEnd))
}

// IsRestrictedDay flags Saturdays and Sundays.
func IsRestrictedDay(d Date) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Policy decides which days may not host new or moved events.
type Policy struct {
	WeekendLock bool
}

// Restricted reports whether d is closed under the policy.
func (p Policy) Restricted(d Date) bool {
	return p.WeekendLock && IsRestrictedDay(d)
}

// FirstRestricted returns the first closed day in days.
func (p Policy) FirstRestricted(days []Date) (Date, bool) {
	for _, d := range days {
		if p.Restricted(d) {
			return d, true
		}
	}
	return Date{}, false
}
