package stats

import (
	"maps"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/ecodash/pkg/alg/quantile"
)

// Spread describes how one field is distributed across a bucket series.
type Spread struct {
	Field     string    `json:"field"      yaml:"field"`
	Mean      float64   `json:"mean"       yaml:"mean"`
	Median    float64   `json:"median"     yaml:"median"`
	P90       float64   `json:"p90"        yaml:"p90"`
	Peak      int       `json:"peak"       yaml:"peak"`
	PeakStart time.Time `json:"peak_start" yaml:"peak_start"`
	Active    int       `json:"active"     yaml:"active"`
}

// Describe returns one Spread per field, commit count first, then the summed
// fields in sorted order. Empty buckets count towards the mean and quantiles
// but not towards Active.
func Describe(buckets []Bucket) []Spread {
	if len(buckets) == 0 {
		return nil
	}

	fields := append([]string{CommitCountField}, slices.Sorted(maps.Keys(buckets[0].Values))...)
	out := make([]Spread, 0, len(fields))
	series := make([]int, len(buckets))

	for _, field := range fields {
		for i, b := range buckets {
			series[i] = b.Value(field)
		}

		peak := quantile.ArgMax(series)

		out = append(out, Spread{
			Field:     field,
			Mean:      quantile.Mean(series),
			Median:    quantile.Of(series, quantile.Median),
			P90:       quantile.Of(series, quantile.P90),
			Peak:      series[peak],
			PeakStart: buckets[peak].Start,
			Active:    quantile.NonZero(series),
		})
	}

	return out
}
