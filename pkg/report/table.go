package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/ecodash/pkg/commits"
	"github.com/Sumatoshi-tech/ecodash/pkg/stats"
)

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

// WriteCommitsTable writes records as a table of commits.DisplayKeys. A
// positive limit keeps only the most recent limit records.
func WriteCommitsTable(w io.Writer, records []commits.Record, limit int) {
	shown := records
	if limit > 0 && len(shown) > limit {
		shown = shown[len(shown)-limit:]
	}

	tbl := newTable(w)

	header := make(table.Row, len(commits.DisplayKeys))
	for i, k := range commits.DisplayKeys {
		header[i] = k
	}

	tbl.AppendHeader(header)

	for _, r := range shown {
		tbl.AppendRow(table.Row{
			r.AuthorDate,
			commits.Deref(r.AuthorName),
			commits.Deref(r.AuthorEmail),
			r.Insertions,
			r.Deletions,
			r.Lines,
			r.Files,
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Showing %d of %d commits", len(shown), len(records))})
	tbl.Render()
}

// WriteStatsTable writes one row per bucket with the requested fields and a
// humanized totals footer.
func WriteStatsTable(w io.Writer, buckets []stats.Bucket, fields []string) {
	if len(fields) == 0 {
		fields = commits.StatKeys
	}

	tbl := newTable(w)

	header := table.Row{"period", stats.CommitCountField}
	for _, f := range fields {
		header = append(header, f)
	}

	tbl.AppendHeader(header)

	for _, b := range buckets {
		row := table.Row{b.Label(), b.CommitCount}
		for _, f := range fields {
			row = append(row, b.Value(f))
		}

		tbl.AppendRow(row)
	}

	total := stats.Totals(buckets)

	footer := table.Row{"total", humanize.Comma(int64(total.CommitCount))}
	for _, f := range fields {
		footer = append(footer, humanize.Comma(int64(total.Value(f))))
	}

	tbl.AppendFooter(footer)
	tbl.Render()
}

// WriteSpreadTable writes the per-bucket distribution of each field.
func WriteSpreadTable(w io.Writer, spreads []stats.Spread) {
	if len(spreads) == 0 {
		return
	}

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"field", "mean", "median", "p90", "peak", "peak period", "active"})

	for _, s := range spreads {
		tbl.AppendRow(table.Row{
			s.Field,
			fmt.Sprintf("%.1f", s.Mean),
			fmt.Sprintf("%.1f", s.Median),
			fmt.Sprintf("%.1f", s.P90),
			humanize.Comma(int64(s.Peak)),
			s.PeakStart.Format(time.DateOnly),
			s.Active,
		})
	}

	tbl.Render()
}
