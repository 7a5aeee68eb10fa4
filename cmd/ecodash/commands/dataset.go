package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ecodash/pkg/dataset"
)

func newFetchCommand(a *app) *cobra.Command {
	var (
		url     string
		dir     string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Clone a fresh copy of the crypto-ecosystems dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url = valueOr(url, a.cfg.Dataset.URL)
			dir = valueOr(dir, a.cfg.Paths.DataDir)

			if timeout <= 0 {
				timeout = a.cfg.Repository.CloneTimeout
			}

			err := dataset.Fetch(cmd.Context(), url, dir, timeout)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Fetched %s into %s\n", url, dir)

			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "dataset repository URL (default: dataset.url)")
	cmd.Flags().StringVar(&dir, "dir", "", "target directory (default: paths.data_dir)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "clone timeout (default: repository.clone_timeout)")

	return cmd
}

func newExportCommand(a *app) *cobra.Command {
	var (
		dataDir string
		output  string
		fetch   bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Build the JSON exchange file from the dataset TOML definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dataDir = valueOr(dataDir, a.cfg.Paths.DataDir)
			output = valueOr(output, a.cfg.Paths.ExportPath)

			if fetch {
				err := dataset.Fetch(cmd.Context(), a.cfg.Dataset.URL, dataDir, a.cfg.Repository.CloneTimeout)
				if err != nil {
					return err
				}
			}

			count, err := dataset.Export(dataDir, output)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d projects to %s\n", count, output)

			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "dataset directory (default: paths.data_dir)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "exchange file path (default: paths.export_path)")
	cmd.Flags().BoolVar(&fetch, "fetch", false, "fetch the dataset before exporting")

	return cmd
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}

	return v
}
