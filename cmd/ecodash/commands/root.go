// Package commands implements the ecodash CLI commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ecodash/pkg/commits"
	"github.com/Sumatoshi-tech/ecodash/pkg/config"
	"github.com/Sumatoshi-tech/ecodash/pkg/ecosystem"
	"github.com/Sumatoshi-tech/ecodash/pkg/observability"
	"github.com/Sumatoshi-tech/ecodash/pkg/stats"
	"github.com/Sumatoshi-tech/ecodash/pkg/version"
)

// ErrConflictingVerbosity is returned when --verbose and --quiet are combined.
var ErrConflictingVerbosity = errors.New("--verbose and --quiet are mutually exclusive")

// app is the state shared by every command of one invocation. It is
// populated by the root PersistentPreRunE before any RunE executes.
type app struct {
	configPath string
	verbose    bool
	quiet      bool
	logJSON    bool

	cfg    *config.Config
	obs    observability.Providers
	logger *slog.Logger

	indexOnce sync.Once
	index     *ecosystem.Index
	indexErr  error
}

// NewRootCommand builds the ecodash command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ecodash",
		Short: "Commit-history dashboards for crypto ecosystem projects",
		Long: `ecodash resolves projects in the Electric Capital crypto-ecosystems
dataset to their repositories, extracts commit history and renders it as
tables, terminal charts, CSV/JSON/YAML or an HTML dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(observability.ModeCLI)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.shutdown(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: ecodash.yaml in ., ./config or ~/.config/ecodash)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "log errors only")
	flags.BoolVar(&a.logJSON, "log-json", false, "JSON log output")

	root.AddCommand(
		newFetchCommand(a),
		newExportCommand(a),
		newProjectsCommand(a),
		newReposCommand(a),
		newCommitsCommand(a),
		newStatsCommand(a),
		newRenderCommand(a),
		newGitHubCommand(a),
		newServeCommand(a),
		newMCPCommand(a),
		newVersionCommand(),
	)

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// Printing the version must not depend on a readable config.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// setup loads configuration and initializes observability for mode.
func (a *app) setup(mode observability.AppMode) error {
	if a.verbose && a.quiet {
		return ErrConflictingVerbosity
	}

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}

	obsCfg, err := a.observabilityConfig(cfg, mode)
	if err != nil {
		return err
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	a.cfg = cfg
	a.obs = providers
	a.logger = providers.Logger

	return nil
}

func (a *app) observabilityConfig(cfg *config.Config, mode observability.AppMode) (observability.Config, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = mode
	obsCfg.LogJSON = a.logJSON || cfg.Logging.Format == "json"
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"

	if obsCfg.OTLPEndpoint == "" {
		obsCfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return obsCfg, err
	}

	switch {
	case a.verbose:
		level = slog.LevelDebug
		obsCfg.DebugTrace = true
	case a.quiet:
		level = slog.LevelError
	}

	obsCfg.LogLevel = level

	return obsCfg, nil
}

func (a *app) shutdown(ctx context.Context) error {
	if a.obs.Shutdown == nil {
		return nil
	}

	return a.obs.Shutdown(context.WithoutCancel(ctx))
}

// loadIndex reads the exchange file once per invocation.
func (a *app) loadIndex() (*ecosystem.Index, error) {
	a.indexOnce.Do(func() {
		a.index, a.indexErr = ecosystem.Load(a.cfg.Paths.ExportPath, ecosystem.WithMemoSize(a.cfg.Cache.Size))
		if a.indexErr != nil {
			a.indexErr = fmt.Errorf("%w (run `ecodash export` to build it)", a.indexErr)
		}
	})

	return a.index, a.indexErr
}

func (a *app) newExtractor() (*commits.Extractor, error) {
	return commits.NewExtractor(a.cfg.Paths.RepoDir,
		commits.WithCacheSize(a.cfg.Cache.Size),
		commits.WithCloneTimeout(a.cfg.Repository.CloneTimeout),
		commits.WithAllBranches(a.cfg.Repository.AllBranches),
		commits.WithLogger(a.logger),
	)
}

// frequency parses flagValue, falling back to the configured default.
func (a *app) frequency(flagValue string) (stats.Frequency, error) {
	if flagValue == "" {
		flagValue = a.cfg.Stats.Frequency
	}

	return stats.ParseFrequency(flagValue)
}

// targetFlags select the repository a history command works on.
type targetFlags struct {
	project string
	repo    string
}

func (t *targetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&t.project, "project", "p", "", "resolve the repository through this project query")
	cmd.Flags().StringVarP(&t.repo, "repo", "r", "", "repository short name within --project")
}

// ErrRepoRequired is returned when a project has several repositories and
// none was chosen.
var ErrRepoRequired = errors.New("project has several repositories, choose one with --repo")

// ErrNoTarget is returned when neither a repository nor --project is given.
var ErrNoTarget = errors.New("give a repository URL or path, or --project")

// resolve returns the URL or path the command should extract.
func (t *targetFlags) resolve(a *app, args []string) (string, error) {
	if t.project == "" {
		if len(args) == 0 {
			return "", ErrNoTarget
		}

		return args[0], nil
	}

	idx, err := a.loadIndex()
	if err != nil {
		return "", err
	}

	return t.resolveIn(idx)
}

// resolveIn picks the repository of t.project named t.repo. The name may be
// omitted when the project has a single repository.
func (t *targetFlags) resolveIn(idx *ecosystem.Index) (string, error) {
	repos, err := idx.ResolveRepos(t.project)
	if err != nil {
		return "", err
	}

	if t.repo == "" {
		if len(repos) == 1 {
			for _, r := range repos {
				return r.URL, nil
			}
		}

		return "", fmt.Errorf("%w: %s", ErrRepoRequired, strings.Join(slices.Sorted(maps.Keys(repos)), ", "))
	}

	r, ok := repos[t.repo]
	if !ok {
		return "", fmt.Errorf("%w: %q is not a repository of %q", ecosystem.ErrNotFound, t.repo, t.project)
	}

	return r.URL, nil
}

// outputFlag writes to a file when set, stdout otherwise.
type outputFlag struct {
	path string
}

func (o *outputFlag) register(cmd *cobra.Command, usage string) {
	cmd.Flags().StringVarP(&o.path, "output", "o", "", usage)
}

func (o *outputFlag) open(cmd *cobra.Command) (io.Writer, func() error, error) {
	if o.path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}

	f, err := os.Create(o.path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}

	return f, f.Close, nil
}
