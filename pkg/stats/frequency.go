// Package stats groups commit records into calendar-aligned time buckets.
package stats

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ErrInvalidFrequency is returned for unparsable frequency strings.
var ErrInvalidFrequency = errors.New("invalid frequency")

// Unit is a calendar period unit.
type Unit int

// Supported units.
const (
	Day Unit = iota
	Week
	Month
	Quarter
	Year
)

// MaxCount bounds the unit count of a frequency. Larger counts would
// overflow period arithmetic.
const MaxCount = 10000

const (
	daysPerWeek      = 7
	monthsPerQuarter = 3
	secondsPerDay    = 24 * 60 * 60
)

var unitNames = map[Unit]string{
	Day:     "day",
	Week:    "week",
	Month:   "month",
	Quarter: "quarter",
	Year:    "year",
}

// unitAliases maps accepted spellings (long and pandas-style short) to units.
var unitAliases = map[string]Unit{
	"d": Day, "day": Day, "days": Day,
	"w": Week, "week": Week, "weeks": Week,
	"m": Month, "ms": Month, "me": Month, "month": Month, "months": Month,
	"q": Quarter, "qs": Quarter, "qe": Quarter, "quarter": Quarter, "quarters": Quarter,
	"y": Year, "ys": Year, "ye": Year, "a": Year, "year": Year, "years": Year,
}

// String returns the unit name.
func (u Unit) String() string {
	return unitNames[u]
}

// weekEpoch is a Monday; weekly periods start on Mondays.
var weekEpoch = time.Date(1970, time.January, 5, 0, 0, 0, 0, time.UTC)

// Frequency is a fixed calendar period such as "1 month" or "2 weeks".
type Frequency struct {
	Count int
	Unit  Unit
}

// Monthly is the default frequency.
var Monthly = Frequency{Count: 1, Unit: Month}

// ParseFrequency parses "1 month", "2 weeks", "day", "1M", "W" and similar.
func ParseFrequency(s string) (Frequency, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Frequency{}, fmt.Errorf("%w: empty", ErrInvalidFrequency)
	}

	split := strings.IndexFunc(raw, func(r rune) bool { return !unicode.IsDigit(r) })
	if split < 0 {
		return Frequency{}, fmt.Errorf("%w: %q has no unit", ErrInvalidFrequency, s)
	}

	count := 1

	if split > 0 {
		n, err := strconv.Atoi(raw[:split])
		if err != nil || n <= 0 {
			return Frequency{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
		}

		if n > MaxCount {
			return Frequency{}, fmt.Errorf("%w: %q exceeds %d units", ErrInvalidFrequency, s, MaxCount)
		}

		count = n
	}

	unit, ok := unitAliases[strings.ToLower(strings.TrimSpace(raw[split:]))]
	if !ok {
		return Frequency{}, fmt.Errorf("%w: unknown unit in %q", ErrInvalidFrequency, s)
	}

	return Frequency{Count: count, Unit: unit}, nil
}

// String returns the long form, e.g. "2 weeks".
func (f Frequency) String() string {
	if f.Count == 1 {
		return "1 " + f.Unit.String()
	}

	return fmt.Sprintf("%d %ss", f.Count, f.Unit)
}

// Validate reports whether f can be used for bucketing.
func (f Frequency) Validate() error {
	if f.Count <= 0 {
		return fmt.Errorf("%w: count must be positive", ErrInvalidFrequency)
	}

	if f.Count > MaxCount {
		return fmt.Errorf("%w: count %d exceeds %d", ErrInvalidFrequency, f.Count, MaxCount)
	}

	if _, ok := unitNames[f.Unit]; !ok {
		return fmt.Errorf("%w: unknown unit %d", ErrInvalidFrequency, f.Unit)
	}

	return nil
}

// Truncate returns the start of the period containing t, in UTC. Multi-unit
// periods are anchored on the unit epoch: 2 months start in January, March
// and so on, 2 weeks count from the Monday 1970-01-05.
func (f Frequency) Truncate(t time.Time) time.Time {
	t = t.UTC()
	year, month, day := t.Date()

	switch f.Unit {
	case Day:
		start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		days := floorDiv(int(start.Unix()/secondsPerDay), f.Count) * f.Count

		return time.Unix(int64(days)*secondsPerDay, 0).UTC()
	case Week:
		start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		days := int((start.Unix() - weekEpoch.Unix()) / secondsPerDay)
		weeks := floorDiv(floorDiv(days, daysPerWeek), f.Count) * f.Count

		return weekEpoch.AddDate(0, 0, weeks*daysPerWeek)
	case Month, Quarter:
		step := f.Count
		if f.Unit == Quarter {
			step *= monthsPerQuarter
		}

		months := floorDiv(year*12+int(month)-1, step) * step

		return time.Date(months/12, time.Month(months%12+1), 1, 0, 0, 0, 0, time.UTC)
	case Year:
		return time.Date(floorDiv(year, f.Count)*f.Count, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// Next returns the start of the period following the one starting at start.
func (f Frequency) Next(start time.Time) time.Time {
	switch f.Unit {
	case Day:
		return start.AddDate(0, 0, f.Count)
	case Week:
		return start.AddDate(0, 0, f.Count*daysPerWeek)
	case Month:
		return start.AddDate(0, f.Count, 0)
	case Quarter:
		return start.AddDate(0, f.Count*monthsPerQuarter, 0)
	case Year:
		return start.AddDate(f.Count, 0, 0)
	default:
		return start
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}
