package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ecodash/pkg/ghstats"
	"github.com/Sumatoshi-tech/ecodash/pkg/report"
)

// GitHub report sections.
const (
	sectionOverview   = "overview"
	sectionCommits    = "commits"
	sectionEvents     = "events"
	sectionStargazers = "stargazers"
)

// ErrUnknownSection is returned for an unsupported --section value.
var ErrUnknownSection = errors.New("unknown section")

const defaultContributorRows = 15

func newGitHubCommand(a *app) *cobra.Command {
	var (
		section string
		format  string
		page    int
		perPage int
		top     int
		baseURL string
	)

	cmd := &cobra.Command{
		Use:   "github <owner/repo|url>",
		Short: "Show repository statistics from the GitHub REST API",
		Long: `Show repository statistics from the GitHub REST API. The overview section
fetches contributor, weekly activity and code frequency statistics; commits,
events and stargazers are paginated with --page and --per-page.
Set github.token (or GITHUB_TOKEN) to raise the API rate limit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format, report.FormatTable, report.FormatJSON, report.FormatYAML)
			if err != nil {
				return err
			}

			owner, repo, err := ghstats.ParseOwnerRepo(args[0])
			if err != nil {
				return err
			}

			opts := []ghstats.Option{ghstats.WithRateLimit(a.cfg.GitHub.RateLimit)}
			if baseURL != "" {
				opts = append(opts, ghstats.WithBaseURL(baseURL))
			}

			client, err := ghstats.NewClient(a.cfg.GitHub.Token, opts...)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			var (
				data any
				rows [][]any
				head []string
				next ghstats.Page
			)

			switch section {
			case sectionOverview:
				ov, ovErr := client.Overview(ctx, owner, repo)
				if ovErr != nil {
					return ovErr
				}

				if f == report.FormatTable {
					report.WriteContributorsTable(w, ov, top)

					return nil
				}

				data = ov
			case sectionCommits:
				list, pg, listErr := client.Commits(ctx, owner, repo, page, perPage)
				if listErr != nil {
					return listErr
				}

				data, next = list, pg
				head = []string{"sha", "date", "author", "message"}

				for _, c := range list {
					rows = append(rows, []any{shortSHA(c.SHA), c.Date, c.Author, firstLine(c.Message)})
				}
			case sectionEvents:
				list, pg, listErr := client.Events(ctx, owner, repo, page, perPage)
				if listErr != nil {
					return listErr
				}

				data, next = list, pg
				head = []string{"created", "type", "actor"}

				for _, e := range list {
					rows = append(rows, []any{e.CreatedAt, e.Type, e.Actor})
				}
			case sectionStargazers:
				list, pg, listErr := client.Stargazers(ctx, owner, repo, page, perPage)
				if listErr != nil {
					return listErr
				}

				data, next = list, pg
				head = []string{"login", "starred"}

				for _, s := range list {
					rows = append(rows, []any{s.Login, s.StarredAt})
				}
			default:
				return fmt.Errorf("%w: %q", ErrUnknownSection, section)
			}

			switch f {
			case report.FormatJSON:
				return report.WriteJSON(w, data)
			case report.FormatYAML:
				return report.WriteYAML(w, data)
			}

			report.WriteRowsTable(w, head, rows)

			if next.Next > 0 {
				fmt.Fprintf(w, "more results: --page %d\n", next.Next)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&section, "section", "s", sectionOverview, "overview, commits, events or stargazers")
	cmd.Flags().StringVarP(&format, "format", "f", report.FormatTable, "output format: table, json, yaml")
	cmd.Flags().IntVar(&page, "page", 1, "page of a paginated section")
	cmd.Flags().IntVar(&perPage, "per-page", ghstats.DefaultPerPage, "page size of a paginated section")
	cmd.Flags().IntVar(&top, "top", defaultContributorRows, "overview table: number of contributors shown")
	cmd.Flags().StringVar(&baseURL, "api-url", "", "GitHub API base URL (for GitHub Enterprise)")

	return cmd
}

func shortSHA(sha string) string {
	const n = 10
	if len(sha) > n {
		return sha[:n]
	}

	return sha
}

func firstLine(msg string) string {
	line, _, _ := strings.Cut(msg, "\n")

	return line
}
