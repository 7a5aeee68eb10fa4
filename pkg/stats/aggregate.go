package stats

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/ecodash/pkg/commits"
)

// CommitCountField names the always-present per-bucket record count.
const CommitCountField = "commit_count"

// ErrUnknownField is returned when a requested field is not a numeric stat.
var ErrUnknownField = errors.New("unknown stat field")

// Bucket holds the sums of one calendar period [Start, freq.Next(Start)).
type Bucket struct {
	Start       time.Time      `json:"start"        yaml:"start"`
	Values      map[string]int `json:"values"       yaml:"values"`
	CommitCount int            `json:"commit_count" yaml:"commit_count"`
}

// Value returns a summed field, or the commit count for CommitCountField.
func (b Bucket) Value(field string) int {
	if field == CommitCountField {
		return b.CommitCount
	}

	return b.Values[field]
}

// Label returns the bucket start as YYYY-MM-DD.
func (b Bucket) Label() string {
	return b.Start.Format(time.DateOnly)
}

// Aggregate groups records by the period containing their author date and
// sums the requested fields. The result is dense: every period between the
// first and the last populated one is present, zero-filled, in ascending
// order. Nil or empty fields default to commits.StatKeys. Empty input yields
// an empty result.
func Aggregate(records []commits.Record, freq Frequency, fields []string) ([]Bucket, error) {
	err := freq.Validate()
	if err != nil {
		return nil, err
	}

	fields, err = normalizeFields(fields)
	if err != nil {
		return nil, err
	}

	if len(records) == 0 {
		return []Bucket{}, nil
	}

	sums := make(map[time.Time]*Bucket)

	for _, rec := range records {
		day, dateErr := rec.AuthorTime()
		if dateErr != nil {
			return nil, fmt.Errorf("record %s: %w", rec.Hash, dateErr)
		}

		start := freq.Truncate(day)

		b, ok := sums[start]
		if !ok {
			b = newBucket(start, fields)
			sums[start] = b
		}

		b.CommitCount++

		for _, field := range fields {
			v, statErr := rec.Stat(field)
			if statErr != nil {
				return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
			}

			b.Values[field] += v
		}
	}

	starts := slices.SortedFunc(maps.Keys(sums), func(a, b time.Time) int { return a.Compare(b) })
	first, last := starts[0], starts[len(starts)-1]

	var out []Bucket

	for start := first; !start.After(last); {
		if b, ok := sums[start]; ok {
			out = append(out, *b)
		} else {
			out = append(out, *newBucket(start, fields))
		}

		next := freq.Next(start)
		if !next.After(start) {
			return nil, fmt.Errorf("%w: %s does not advance past %s", ErrInvalidFrequency, freq, start.Format(time.DateOnly))
		}

		start = next
	}

	return out, nil
}

// Totals sums all buckets into one; its Start is the first bucket's start.
func Totals(buckets []Bucket) Bucket {
	total := Bucket{Values: make(map[string]int)}

	for i, b := range buckets {
		if i == 0 {
			total.Start = b.Start
		}

		total.CommitCount += b.CommitCount

		for k, v := range b.Values {
			total.Values[k] += v
		}
	}

	return total
}

func newBucket(start time.Time, fields []string) *Bucket {
	values := make(map[string]int, len(fields))
	for _, f := range fields {
		values[f] = 0
	}

	return &Bucket{Start: start, Values: values}
}

func normalizeFields(fields []string) ([]string, error) {
	if len(fields) == 0 {
		return slices.Clone(commits.StatKeys), nil
	}

	out := make([]string, 0, len(fields))

	for _, f := range fields {
		if f == CommitCountField {
			continue
		}

		if !slices.Contains(commits.StatKeys, f) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
		}

		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}

	return out, nil
}
