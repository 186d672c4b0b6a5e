package calendar

import (
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandInclusiveAscending(t *testing.T) {
	days, err := Expand(NewDate(2024, time.June, 3), NewDate(2024, time.June, 5))
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-06-03", days[0].String())
	assert.Equal(t, "2024-06-04", days[1].String())
	assert.Equal(t, "2024-06-05", days[2].String())
}

func TestExpandSingleDay(t *testing.T) {
	day := NewDate(2024, time.June, 3)
	days, err := Expand(day, day)
	require.NoError(t, err)
	assert.Equal(t, []Date{day}, days)
}

func TestExpandCrossesMonthAndLeapDay(t *testing.T) {
	days, err := Expand(NewDate(2024, time.February, 28), NewDate(2024, time.March, 1))
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-02-29", days[1].String())
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	_, err := Expand(NewDate(2024, time.June, 5), NewDate(2024, time.June, 4))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestExpandRejectsHugeRange(t *testing.T) {
	_, err := Expand(NewDate(2024, time.January, 1), NewDate(2026, time.January, 1))
	assert.ErrorIs(t, err, ErrRangeTooLong)

	leapYear, err := Expand(NewDate(2024, time.January, 1), NewDate(2024, time.December, 31))
	require.NoError(t, err)
	assert.Len(t, leapYear, 366)

	_, err = Expand(NewDate(2024, time.January, 1), NewDate(2025, time.January, 1))
	assert.ErrorIs(t, err, ErrRangeTooLong)
}

func TestRestrictedDays(t *testing.T) {
	assert.False(t, IsRestrictedDay(NewDate(2024, time.June, 7))) // Friday
	assert.True(t, IsRestrictedDay(NewDate(2024, time.June, 8)))
	assert.True(t, IsRestrictedDay(NewDate(2024, time.June, 9)))

	days, _ := Expand(NewDate(2024, time.June, 6), NewDate(2024, time.June, 10))
	first, found := Policy{WeekendLock: true}.FirstRestricted(days)
	require.True(t, found)
	assert.Equal(t, "2024-06-08", first.String())

	_, found = Policy{WeekendLock: false}.FirstRestricted(days)
	assert.False(t, found)
}

func TestRangeChanged(t *testing.T) {
	start := NewDate(2024, time.June, 7)
	end := NewDate(2024, time.June, 10)
	same := start

	assert.False(t, RangeChanged(start, &end, start, &end))
	assert.False(t, RangeChanged(start, nil, start, &same), "end equal to start is a single day")
	assert.True(t, RangeChanged(start, &end, start, nil))
	assert.True(t, RangeChanged(start, nil, start.AddDays(1), nil))
}

func TestContains(t *testing.T) {
	start := NewDate(2024, time.June, 3)
	end := NewDate(2024, time.June, 5)
	assert.True(t, Contains(start, &end, NewDate(2024, time.June, 4)))
	assert.True(t, Contains(start, &end, end))
	assert.False(t, Contains(start, &end, NewDate(2024, time.June, 6)))
	assert.False(t, Contains(start, nil, NewDate(2024, time.June, 4)))
}

func TestParseClockNormalises(t *testing.T) {
	c, err := ParseClock("9:05")
	require.NoError(t, err)
	assert.Equal(t, Clock("09:05:00"), c)

	c, err = ParseClock("17:30:15.250")
	require.NoError(t, err)
	assert.Equal(t, Clock("17:30:15"), c)

	_, err = ParseClock("25:00")
	assert.Error(t, err)
	_, err = ParseClock("")
	assert.Error(t, err)
}

func TestOverlapsIsExclusiveAtBoundaries(t *testing.T) {
	nine, ten, eleven := MustClock("09:00"), MustClock("10:00"), MustClock("11:00")
	half := MustClock("09:30")

	assert.False(t, Overlaps(nine, ten, ten, eleven))
	assert.False(t, Overlaps(ten, eleven, nine, ten))
	assert.True(t, Overlaps(nine, ten, half, eleven))
	assert.True(t, Overlaps(half, ten, nine, eleven))
}

func TestCombine(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	got := Combine(NewDate(2024, time.June, 3), MustClock("09:30"), loc)
	assert.Equal(t, time.Date(2024, time.June, 3, 9, 30, 0, 0, loc), got)
}

func TestCombineAcrossDSTTransitions(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	springForward := Combine(NewDate(2024, time.March, 10), MustClock("09:00"), loc)
	assert.Equal(t, 9, springForward.Hour())
	assert.Equal(t, time.Date(2024, time.March, 10, 13, 0, 0, 0, time.UTC), springForward.UTC())

	fallBack := Combine(NewDate(2024, time.November, 3), MustClock("17:30"), loc)
	assert.Equal(t, 17, fallBack.Hour())
	assert.Equal(t, 30, fallBack.Minute())
	assert.Equal(t, time.Date(2024, time.November, 3, 22, 30, 0, 0, time.UTC), fallBack.UTC())
}

func TestDateScanAndJSON(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan(time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-06-03", d.String())

	require.NoError(t, d.Scan([]byte("2024-06-04T00:00:00Z")))
	assert.Equal(t, "2024-06-04", d.String())

	payload, err := json.Marshal(struct {
		Day Date `json:"day"`
	}{Day: d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-06-04"}`, string(payload))

	var decoded struct {
		Day Date `json:"day"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"day":"2024-12-31"}`), &decoded))
	assert.Equal(t, NewDate(2024, time.December, 31), decoded.Day)
}

func TestClockScan(t *testing.T) {
	var c Clock
	require.NoError(t, c.Scan([]byte("08:15:00")))
	assert.Equal(t, Clock("08:15:00"), c)
	assert.Equal(t, "08:15", c.Short())
	assert.Equal(t, 8*time.Hour+15*time.Minute, c.Offset())
}

func TestToday(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	now := time.Date(2024, time.June, 3, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-04", Today(now, loc).String())
}
