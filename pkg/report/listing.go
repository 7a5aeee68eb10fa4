package report

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/ecodash/pkg/ecosystem"
	"github.com/Sumatoshi-tech/ecodash/pkg/ghstats"
)

// WriteRowsTable writes an ad hoc table.
func WriteRowsTable(w io.Writer, header []string, rows [][]any) {
	tbl := newTable(w)

	hdr := make(table.Row, len(header))
	for i, h := range header {
		hdr[i] = h
	}

	tbl.AppendHeader(hdr)

	for _, r := range rows {
		tbl.AppendRow(table.Row(r))
	}

	tbl.Render()
}

// WriteProjectsTable lists project names with their repository counts.
func WriteProjectsTable(w io.Writer, idx *ecosystem.Index, names []string) {
	rows := make([][]any, 0, len(names))

	for _, name := range names {
		p, _ := idx.Project(name)
		rows = append(rows, []any{name, len(p.Repos)})
	}

	WriteRowsTable(w, []string{"project", "repos"}, rows)
}

// WriteResolution prints a resolution: the repositories of a found project,
// the candidates of an ambiguous query or a not-found notice.
func WriteResolution(w io.Writer, res ecosystem.Resolution) {
	switch res.Status {
	case ecosystem.StatusFound:
		Heading(w, "%s", res.Project)

		rows := make([][]any, 0, len(res.Repos))
		for _, name := range res.SortedRepoNames() {
			rows = append(rows, []any{name, res.Repos[name].URL})
		}

		WriteRowsTable(w, []string{"repo", "url"}, rows)
	case ecosystem.StatusAmbiguous:
		Warn(w, "%q matches several projects, please enter one of:", res.Query)

		for _, c := range res.Candidates {
			fmt.Fprintf(w, "  %s\n", c)
		}
	default:
		Warn(w, "no matching projects for %q", res.Query)
	}
}

// WriteContributorsTable lists the top contributors of an overview by
// commit total, with lifetime additions and deletions.
func WriteContributorsTable(w io.Writer, ov *ghstats.Overview, limit int) {
	contributors := slices.Clone(ov.Contributors)
	slices.SortStableFunc(contributors, func(a, b ghstats.Contributor) int {
		return b.Total - a.Total
	})

	if limit > 0 && len(contributors) > limit {
		contributors = contributors[:limit]
	}

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"contributor", "commits", "additions", "deletions", "last active"})

	for _, c := range contributors {
		var adds, dels int

		var last int64

		for _, wk := range c.Weeks {
			adds += wk.Additions
			dels += wk.Deletions

			if wk.Commits > 0 && wk.Week > last {
				last = wk.Week
			}
		}

		lastActive := "-"
		if last > 0 {
			lastActive = humanize.Time(time.Unix(last, 0))
		}

		tbl.AppendRow(table.Row{
			c.Login,
			humanize.Comma(int64(c.Total)),
			humanize.Comma(int64(adds)),
			humanize.Comma(int64(dels)),
			lastActive,
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("%s/%s", ov.Owner, ov.Repo)})
	tbl.Render()
}
