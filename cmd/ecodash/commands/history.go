package commands

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/ecodash/pkg/commits"
	"github.com/Sumatoshi-tech/ecodash/pkg/gitlib"
	"github.com/Sumatoshi-tech/ecodash/pkg/report"
	"github.com/Sumatoshi-tech/ecodash/pkg/report/plotpage"
	"github.com/Sumatoshi-tech/ecodash/pkg/stats"
)

const (
	defaultChartHeight = 12
	defaultChartWidth  = 72
	defaultCommitLimit = 20
)

// parseFormat validates format against the formats a command supports.
func parseFormat(format string, allowed ...string) (string, error) {
	f, err := report.ParseFormat(format)
	if err != nil {
		return "", err
	}

	if !slices.Contains(allowed, f) {
		return "", fmt.Errorf("%w: %q (supported: %v)", report.ErrUnknownFormat, format, allowed)
	}

	return f, nil
}

// loadRecords resolves the target and extracts its commit records, keeping
// those authored on or after since when it is set.
func (a *app) loadRecords(ctx context.Context, target *targetFlags, args []string, since string) (string, []commits.Record, error) {
	ref, err := target.resolve(a, args)
	if err != nil {
		return "", nil, err
	}

	ctx, span := a.obs.Tracer.Start(ctx, "ecodash.extract", trace.WithAttributes(attribute.String("repo", ref)))
	defer span.End()

	extractor, err := a.newExtractor()
	if err != nil {
		return "", nil, err
	}

	start := time.Now()

	records, err := extractor.Summary(ctx, ref)
	if err != nil {
		span.RecordError(err)

		return "", nil, err
	}

	a.logger.DebugContext(ctx, "extracted commits", "repo", ref, "commits", len(records), "elapsed", time.Since(start))

	if since != "" {
		from, parseErr := gitlib.ParseTime(since)
		if parseErr != nil {
			return "", nil, fmt.Errorf("parse --since: %w", parseErr)
		}

		records = commits.Since(records, from)
	}

	return ref, records, nil
}

func newCommitsCommand(a *app) *cobra.Command {
	var (
		target targetFlags
		out    outputFlag
		format string
		limit  int
		since  string
	)

	cmd := &cobra.Command{
		Use:   "commits [repo-url-or-path]",
		Short: "List the commit records of a repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format, report.FormatTable, report.FormatJSON, report.FormatYAML, report.FormatCSV)
			if err != nil {
				return err
			}

			_, records, err := a.loadRecords(cmd.Context(), &target, args, since)
			if err != nil {
				return err
			}

			w, closeOut, err := out.open(cmd)
			if err != nil {
				return err
			}

			switch f {
			case report.FormatJSON:
				err = report.WriteJSON(w, records)
			case report.FormatYAML:
				err = report.WriteYAML(w, records)
			case report.FormatCSV:
				err = report.WriteRecordsCSV(w, records)
			default:
				report.WriteCommitsTable(w, records, limit)
			}

			if err != nil {
				_ = closeOut()

				return err
			}

			return closeOut()
		},
	}

	target.register(cmd)
	out.register(cmd, "write to this file instead of stdout")
	cmd.Flags().StringVarP(&format, "format", "f", report.FormatTable, "output format: table, json, yaml, csv")
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultCommitLimit, "table only: show the most recent n commits (0 = all)")
	cmd.Flags().StringVar(&since, "since", "", "only commits authored on or after this date (YYYY-MM-DD, RFC3339 or a duration like 720h)")

	return cmd
}

func newStatsCommand(a *app) *cobra.Command {
	var (
		target targetFlags
		out    outputFlag
		format string
		freq   string
		fields []string
		since  string
		chart  bool
		spread bool
	)

	cmd := &cobra.Command{
		Use:   "stats [repo-url-or-path]",
		Short: "Aggregate commit statistics into calendar buckets",
		Long: `Aggregate commit statistics into calendar buckets. Frequencies look like
"1 month", "2 weeks", "day", or the short forms D, W, M, Q and Y.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format, report.FormatTable, report.FormatJSON, report.FormatYAML, report.FormatCSV)
			if err != nil {
				return err
			}

			frequency, err := a.frequency(freq)
			if err != nil {
				return err
			}

			ref, records, err := a.loadRecords(cmd.Context(), &target, args, since)
			if err != nil {
				return err
			}

			buckets, err := stats.Aggregate(records, frequency, fields)
			if err != nil {
				return err
			}

			w, closeOut, err := out.open(cmd)
			if err != nil {
				return err
			}

			switch f {
			case report.FormatJSON:
				err = report.WriteJSON(w, buckets)
			case report.FormatYAML:
				err = report.WriteYAML(w, buckets)
			case report.FormatCSV:
				err = report.WriteBucketsCSV(w, buckets)
			default:
				report.Heading(w, "%s: %d commits in %s buckets", commits.ShortName(ref), len(records), frequency)
				report.WriteStatsTable(w, buckets, fields)

				if spread {
					fmt.Fprintln(w)
					report.WriteSpreadTable(w, stats.Describe(buckets))
				}

				if chart && len(buckets) > 1 {
					fmt.Fprintln(w)
					fmt.Fprintln(w, report.CommitCountChart(buckets, defaultChartHeight, defaultChartWidth))
				}
			}

			if err != nil {
				_ = closeOut()

				return err
			}

			return closeOut()
		},
	}

	target.register(cmd)
	out.register(cmd, "write to this file instead of stdout")
	cmd.Flags().StringVarP(&format, "format", "f", report.FormatTable, "output format: table, json, yaml, csv")
	cmd.Flags().StringVar(&freq, "freq", "", "bucket width (default: stats.frequency)")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "stat fields to sum (default: deletions,insertions,lines,files)")
	cmd.Flags().StringVar(&since, "since", "", "only commits authored on or after this date (YYYY-MM-DD, RFC3339 or a duration like 720h)")
	cmd.Flags().BoolVar(&chart, "chart", true, "table only: plot commit counts below the table")
	cmd.Flags().BoolVar(&spread, "spread", false, "table only: summarize how each field is spread across buckets")

	return cmd
}

func newRenderCommand(a *app) *cobra.Command {
	var (
		target targetFlags
		out    outputFlag
		freq   string
		theme  string
		since  string
	)

	cmd := &cobra.Command{
		Use:   "render [repo-url-or-path]",
		Short: "Render the HTML commit dashboard of a repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frequency, err := a.frequency(freq)
			if err != nil {
				return err
			}

			ref, records, err := a.loadRecords(cmd.Context(), &target, args, since)
			if err != nil {
				return err
			}

			buckets, err := stats.Aggregate(records, frequency, nil)
			if err != nil {
				return err
			}

			w, closeOut, err := out.open(cmd)
			if err != nil {
				return err
			}

			err = plotpage.RenderDashboard(w, plotpage.Dashboard{
				Title:     commits.ShortName(ref),
				Frequency: frequency,
				Records:   records,
				Buckets:   buckets,
				Theme:     plotpage.ParseTheme(theme),
			})
			if err != nil {
				_ = closeOut()

				return err
			}

			if out.path != "" {
				a.logger.InfoContext(cmd.Context(), "dashboard written", "path", out.path)
			}

			return closeOut()
		},
	}

	target.register(cmd)
	out.register(cmd, "HTML file to write (default: stdout)")
	cmd.Flags().StringVar(&freq, "freq", "", "bucket width (default: stats.frequency)")
	cmd.Flags().StringVar(&theme, "theme", string(plotpage.ThemeLight), "page theme: light or dark")
	cmd.Flags().StringVar(&since, "since", "", "only commits authored on or after this date (YYYY-MM-DD, RFC3339 or a duration like 720h)")

	return cmd
}
