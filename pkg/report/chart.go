package report

import (
	"github.com/guptarohit/asciigraph"

	"github.com/Sumatoshi-tech/ecodash/pkg/stats"
)

// CommitCountChart plots the commit count of every bucket as an ASCII chart.
// It returns "" when there is nothing to plot.
func CommitCountChart(buckets []stats.Bucket, height, width int) string {
	return FieldChart(buckets, stats.CommitCountField, height, width)
}

// FieldChart plots one bucket field as an ASCII chart.
func FieldChart(buckets []stats.Bucket, field string, height, width int) string {
	if len(buckets) == 0 {
		return ""
	}

	data := make([]float64, len(buckets))
	for i, b := range buckets {
		data[i] = float64(b.Value(field))
	}

	caption := field + " " + buckets[0].Label() + " .. " + buckets[len(buckets)-1].Label()

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}
