// Package quantile summarizes small numeric series such as per-bucket commit
// counts. Quantiles interpolate linearly between the two closest ranks.
package quantile

import (
	"cmp"
	"math"
	"slices"
)

// Number is any integer or float type.
type Number interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Common quantile ranks.
const (
	Median = 0.5
	P90    = 0.9
)

// Mean returns the arithmetic mean, or 0 for an empty series.
func Mean[T Number](values []T) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += float64(v)
	}

	return sum / float64(len(values))
}

// Of returns the p-quantile of values with p clamped to [0, 1].
// The input is not reordered. An empty series yields 0.
func Of[T Number](values []T, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	for i, v := range values {
		sorted[i] = float64(v)
	}

	slices.Sort(sorted)

	rank := max(0, min(p, 1)) * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))

	if lo == hi {
		return sorted[lo]
	}

	frac := rank - float64(lo)

	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ArgMax returns the index of the first largest element, or -1 when empty.
func ArgMax[T cmp.Ordered](values []T) int {
	best := -1

	for i, v := range values {
		if best < 0 || v > values[best] {
			best = i
		}
	}

	return best
}

// NonZero counts the elements that differ from the zero value.
func NonZero[T Number](values []T) int {
	n := 0

	for _, v := range values {
		if v != 0 {
			n++
		}
	}

	return n
}
