package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ecodash/pkg/ecosystem"
	"github.com/Sumatoshi-tech/ecodash/pkg/report"
)

func newProjectsCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "projects [query...]",
		Short: "List projects, or those whose name fuzzy-matches the query",
		Long: `List projects of the exchange file. With a query, only names containing
every space separated word, in order and case-insensitively, are listed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format, report.FormatTable, report.FormatJSON, report.FormatYAML)
			if err != nil {
				return err
			}

			idx, err := a.loadIndex()
			if err != nil {
				return err
			}

			names := idx.Projects()
			if len(args) > 0 {
				names = idx.FindProject(strings.Join(args, " "))
			}

			w := cmd.OutOrStdout()

			switch f {
			case report.FormatJSON:
				return report.WriteJSON(w, names)
			case report.FormatYAML:
				return report.WriteYAML(w, names)
			default:
				report.WriteProjectsTable(w, idx, names)

				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", report.FormatTable, "output format: table, json, yaml")

	return cmd
}

func newReposCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "repos <query...>",
		Short: "Resolve a project query and list its repositories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format, report.FormatTable, report.FormatJSON, report.FormatYAML)
			if err != nil {
				return err
			}

			idx, err := a.loadIndex()
			if err != nil {
				return err
			}

			res := idx.Resolve(strings.Join(args, " "))
			w := cmd.OutOrStdout()

			switch f {
			case report.FormatJSON:
				err = report.WriteJSON(w, res)
			case report.FormatYAML:
				err = report.WriteYAML(w, res)
			default:
				report.WriteResolution(w, res)
			}

			if err != nil {
				return err
			}

			return resolutionError(res)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", report.FormatTable, "output format: table, json, yaml")

	return cmd
}

// resolutionError turns an unsuccessful resolution into the exit error.
func resolutionError(res ecosystem.Resolution) error {
	switch res.Status {
	case ecosystem.StatusFound:
		return nil
	case ecosystem.StatusAmbiguous:
		return &ecosystem.AmbiguousError{Query: res.Query, Candidates: res.Candidates}
	default:
		return ecosystem.ErrNotFound
	}
}
