package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ecodash/pkg/alg/lru"
	"github.com/Sumatoshi-tech/ecodash/pkg/commits"
	"github.com/Sumatoshi-tech/ecodash/pkg/ecosystem"
	"github.com/Sumatoshi-tech/ecodash/pkg/gitlib"
	"github.com/Sumatoshi-tech/ecodash/pkg/observability"
	"github.com/Sumatoshi-tech/ecodash/pkg/report/plotpage"
	"github.com/Sumatoshi-tech/ecodash/pkg/stats"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

var (
	// ErrMissingTarget is answered with 400 when / has neither repo nor project.
	ErrMissingTarget = errors.New("query needs ?repo=<url> or ?project=<name>[&repo=<short name>]")
	// ErrLocalPath is answered with 403 for filesystem paths unless --allow-local is set.
	ErrLocalPath = errors.New("local repository paths are disabled, start with --allow-local")
	// ErrNoIndexLoaded is answered with 503 for project queries without an exchange file.
	ErrNoIndexLoaded = errors.New("no exchange file loaded")
)

func newServeCommand(a *app) *cobra.Command {
	var (
		host       string
		port       int
		allowLocal bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve HTML dashboards over HTTP",
		Long: `Serve HTML dashboards over HTTP.

  GET /?repo=<url>&freq=<freq>&theme=<light|dark>
  GET /?project=<query>&repo=<short name>
  GET /healthz   liveness
  GET /readyz    503 until an exchange file is loaded
  GET /metrics`,
		Args: cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup(observability.ModeServe)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if host == "" {
				host = a.cfg.Server.Host
			}

			if port == 0 {
				port = a.cfg.Server.Port
			}

			srv, err := newDashboardServer(a, allowLocal)
			if err != nil {
				return err
			}

			return srv.listenAndServe(cmd.Context(), net.JoinHostPort(host, strconv.Itoa(port)))
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default: server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: server.port)")
	cmd.Flags().BoolVar(&allowLocal, "allow-local", false, "accept local filesystem paths as ?repo=")

	return cmd
}

type dashboardServer struct {
	app        *app
	index      *ecosystem.Index
	extractor  *commits.Extractor
	freq       stats.Frequency
	allowLocal bool
	handler    http.Handler
}

func newDashboardServer(a *app, allowLocal bool) (*dashboardServer, error) {
	freq, err := a.frequency("")
	if err != nil {
		return nil, err
	}

	extractor, err := a.newExtractor()
	if err != nil {
		return nil, err
	}

	// A missing exchange file only disables project queries.
	index, indexErr := a.loadIndex()
	if indexErr != nil {
		a.logger.Warn("project queries disabled", "error", indexErr)
	}

	prom, err := observability.NewPrometheus()
	if err != nil {
		return nil, err
	}

	red, err := observability.NewREDMetrics(prom.Meter())
	if err != nil {
		return nil, err
	}

	caches := map[string]func() lru.Stats{"summary": extractor.CacheStats}
	if index != nil {
		caches["resolve"] = index.MemoStats
	}

	err = observability.RegisterCacheMetrics(prom.Meter(), caches)
	if err != nil {
		return nil, err
	}

	s := &dashboardServer{
		app:        a,
		index:      index,
		extractor:  extractor,
		freq:       freq,
		allowLocal: allowLocal,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.Handle("GET /healthz", observability.HealthHandler())
	mux.Handle("GET /readyz", observability.HealthHandler(s.indexReady, s.repoDirReady))
	mux.Handle("GET /metrics", prom.Handler)

	s.handler = observability.HTTPMiddleware(a.obs.Tracer, red, mux)

	return s, nil
}

func (s *dashboardServer) indexReady(context.Context) error {
	if s.index == nil {
		return ErrNoIndexLoaded
	}

	return nil
}

func (s *dashboardServer) repoDirReady(context.Context) error {
	info, err := os.Stat(s.extractor.DownloadDir())
	if err != nil {
		return fmt.Errorf("repository directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("repository directory %s is not a directory", s.extractor.DownloadDir())
	}

	return nil
}

func (s *dashboardServer) listenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		s.app.logger.Info("serving dashboards", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := httpSrv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func (s *dashboardServer) handleDashboard(rw http.ResponseWriter, hr *http.Request) {
	ctx := hr.Context()
	query := hr.URL.Query()

	ref, err := s.target(query.Get("project"), query.Get("repo"))
	if err != nil {
		s.fail(rw, hr, err)

		return
	}

	freq := s.freq

	if raw := query.Get("freq"); raw != "" {
		freq, err = stats.ParseFrequency(raw)
		if err != nil {
			s.fail(rw, hr, err)

			return
		}
	}

	records, err := s.extractor.Summary(ctx, ref)
	if err != nil {
		s.fail(rw, hr, err)

		return
	}

	buckets, err := stats.Aggregate(records, freq, nil)
	if err != nil {
		s.fail(rw, hr, err)

		return
	}

	rw.Header().Set("Content-Type", "text/html; charset=utf-8")

	err = plotpage.RenderDashboard(rw, plotpage.Dashboard{
		Title:     commits.ShortName(ref),
		Frequency: freq,
		Records:   records,
		Buckets:   buckets,
		Theme:     plotpage.ParseTheme(query.Get("theme")),
	})
	if err != nil {
		s.app.logger.ErrorContext(ctx, "render dashboard", "repo", ref, "error", err)
	}
}

// target maps the query parameters to a repository URL or path.
func (s *dashboardServer) target(project, repo string) (string, error) {
	if project == "" {
		if repo == "" {
			return "", ErrMissingTarget
		}

		if !gitlib.IsRemoteURL(repo) && !s.allowLocal {
			return "", ErrLocalPath
		}

		return repo, nil
	}

	if s.index == nil {
		return "", ErrNoIndexLoaded
	}

	t := targetFlags{project: project, repo: repo}

	return t.resolveIn(s.index)
}

func (s *dashboardServer) fail(rw http.ResponseWriter, hr *http.Request, err error) {
	code := http.StatusInternalServerError

	switch {
	case errors.Is(err, ErrMissingTarget),
		errors.Is(err, ErrRepoRequired),
		errors.Is(err, stats.ErrInvalidFrequency):
		code = http.StatusBadRequest
	case errors.Is(err, ErrLocalPath):
		code = http.StatusForbidden
	case errors.Is(err, ecosystem.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ecosystem.ErrAmbiguous):
		code = http.StatusConflict
	case errors.Is(err, ErrNoIndexLoaded):
		code = http.StatusServiceUnavailable
	case errors.Is(err, commits.ErrRepoUnavailable):
		code = http.StatusBadGateway
	}

	if code >= http.StatusInternalServerError {
		s.app.logger.ErrorContext(hr.Context(), "dashboard request failed", "url", hr.URL.String(), "error", err)
	}

	http.Error(rw, err.Error(), code)
}
