package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ecodash/pkg/mcp"
	"github.com/Sumatoshi-tech/ecodash/pkg/observability"
)

func newMCPCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start an MCP server on stdio for AI agent integration",
		Long: `Start a Model Context Protocol server on stdio. It exposes:
  - ecodash_find_project: fuzzy project name search
  - ecodash_resolve_repos: resolve a query to one project's repositories
  - ecodash_commit_stats: bucketed commit statistics of a repository`,
		Args: cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			// stdout carries the protocol, logs go to stderr as JSON.
			a.logJSON = true

			return a.setup(observability.ModeMCP)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			freq, err := a.frequency("")
			if err != nil {
				return err
			}

			extractor, err := a.newExtractor()
			if err != nil {
				return err
			}

			index, err := a.loadIndex()
			if err != nil {
				a.logger.Warn("project tools disabled", "error", err)
			}

			red, err := observability.NewREDMetrics(a.obs.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:    a.logger,
				Index:     index,
				Extractor: extractor,
				Frequency: freq,
				Metrics:   red,
				Tracer:    a.obs.Tracer,
			})

			return srv.Run(cmd.Context())
		},
	}
}
