package plotpage

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/Sumatoshi-tech/ecodash/pkg/commits"
	"github.com/Sumatoshi-tech/ecodash/pkg/stats"
)

// Dashboard is the commit history page of one repository.
type Dashboard struct {
	Title     string
	Frequency stats.Frequency
	Records   []commits.Record
	Buckets   []stats.Bucket
	Theme     Theme
}

// Build assembles the page: headline totals, a smoothed commit-count line
// and stacked insertion/deletion bars per bucket.
func (d Dashboard) Build() *Page {
	cOpts := NewChartOpts(d.Theme)
	theme := cOpts.Theme()

	labels := make([]string, len(d.Buckets))
	counts := make([]int, len(d.Buckets))
	insertions := make([]int, len(d.Buckets))
	deletions := make([]int, len(d.Buckets))

	for i, b := range d.Buckets {
		labels[i] = b.Label()
		counts[i] = b.CommitCount
		insertions[i] = b.Values[commits.FieldInsertions]
		deletions[i] = b.Values[commits.FieldDeletions]
	}

	total := stats.Totals(d.Buckets)
	authors := make(map[string]struct{})

	for _, r := range d.Records {
		if r.AuthorEmail != nil {
			authors[*r.AuthorEmail] = struct{}{}
		}
	}

	page := NewPage(d.Title, fmt.Sprintf("Commit activity per %s", d.Frequency))
	page.Theme = d.Theme
	page.Stats = []Stat{
		{Label: "Commits", Value: humanize.Comma(int64(len(d.Records)))},
		{Label: "Authors", Value: humanize.Comma(int64(len(authors)))},
		{Label: "Insertions", Value: humanize.Comma(int64(total.Values[commits.FieldInsertions]))},
		{Label: "Deletions", Value: humanize.Comma(int64(total.Values[commits.FieldDeletions]))},
	}

	if n := len(d.Records); n > 0 {
		page.Stats = append(page.Stats,
			Stat{Label: "First commit", Value: d.Records[0].AuthorDate},
			Stat{Label: "Last commit", Value: d.Records[n-1].AuthorDate},
		)
	}

	page.Add(
		Section{
			Title:    "Commits",
			Subtitle: "Number of commits per period",
			Chart: BuildLineChart(cOpts, labels, []LineSeries{{
				Name: "commit_count", Data: counts, Color: theme.CommitCount, Smooth: true, AreaOpacity: 0.3,
			}}, "commits"),
		},
		Section{
			Title:    "Line changes",
			Subtitle: "Inserted and deleted lines per period",
			Chart: BuildBarChart(cOpts, labels, []BarSeries{
				{Name: commits.FieldInsertions, Data: insertions, Color: theme.Insertions, Stack: "changes"},
				{Name: commits.FieldDeletions, Data: deletions, Color: theme.Deletions, Stack: "changes"},
			}, "lines"),
		},
	)

	return page
}

// RenderDashboard writes the dashboard of records and buckets as HTML.
func RenderDashboard(w io.Writer, d Dashboard) error {
	return d.Build().Render(w)
}
