// Package mcp serves the ecodash pipeline as Model Context Protocol tools
// over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/ecodash/pkg/commits"
	"github.com/Sumatoshi-tech/ecodash/pkg/ecosystem"
	"github.com/Sumatoshi-tech/ecodash/pkg/observability"
	"github.com/Sumatoshi-tech/ecodash/pkg/stats"
	"github.com/Sumatoshi-tech/ecodash/pkg/version"
)

const (
	serverName = "ecodash"
	toolCount  = 3

	mcpSpanPrefix  = "mcp."
	traceIDMetaKey = "trace_id"
)

// ServerDeps holds the server's collaborators. Metrics and Tracer are optional.
type ServerDeps struct {
	Logger *slog.Logger

	// Index answers project lookups. Nil makes the lookup tools report
	// that no exchange file is loaded.
	Index *ecosystem.Index

	// Extractor produces commit records for ecodash_commit_stats.
	Extractor *commits.Extractor

	// Frequency is the bucket width used when a call does not name one.
	Frequency stats.Frequency

	Metrics *observability.REDMetrics
	Tracer  trace.Tracer
}

// Server wraps the MCP SDK server with the ecodash tools.
type Server struct {
	inner   *mcpsdk.Server
	mu      sync.RWMutex
	tools   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer

	index     *ecosystem.Index
	extractor *commits.Extractor
	frequency stats.Frequency
}

// NewServer creates a server with every tool registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	freq := deps.Frequency
	if freq.Validate() != nil {
		freq = stats.Monthly
	}

	srv := &Server{
		inner:     mcpsdk.NewServer(&mcpsdk.Implementation{Name: serverName, Version: version.Version}, opts),
		tools:     make([]string, 0, toolCount),
		metrics:   deps.Metrics,
		tracer:    deps.Tracer,
		index:     deps.Index,
		extractor: deps.Extractor,
		frequency: freq,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)

	return names
}

// Run serves on stdio until ctx is canceled or the peer disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves on transport until ctx is canceled or the
// connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	addTool[FindProjectInput](s, ToolNameFindProject, findProjectDescription, s.handleFindProject)
	addTool[ResolveReposInput](s, ToolNameResolveRepos, resolveReposDescription, s.handleResolveRepos)
	addTool[CommitStatsInput](s, ToolNameCommitStats, commitStatsDescription, s.handleCommitStats)
}

type toolHandler[Input any] = mcpsdk.ToolHandlerFor[Input, ToolOutput]

func addTool[Input any](s *Server, name, description string, handler toolHandler[Input]) {
	mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
		Name:        name,
		Description: description,
	}, withMetrics(s.metrics, name, withTracing(s.tracer, name, handler)))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append(s.tools, name)
}

// withTracing opens a span per call and appends trace_id to sampled results.
func withTracing[Input any](tracer trace.Tracer, toolName string, handler toolHandler[Input]) toolHandler[Input] {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			result.Content = append(result.Content,
				&mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())})
		}

		return result, output, err
	}
}

// withMetrics records RED metrics per call. Tool-level failures count as errors.
func withMetrics[Input any](metrics *observability.REDMetrics, toolName string, handler toolHandler[Input]) toolHandler[Input] {
	if metrics == nil {
		return handler
	}

	op := mcpSpanPrefix + toolName

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		defer metrics.TrackInflight(ctx, op)()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordRequest(ctx, op, status, time.Since(start))

		return result, output, err
	}
}

const (
	findProjectDescription = "Fuzzy-search project names in the crypto ecosystems index. " +
		"Space separated words must all appear in order, case-insensitively."

	resolveReposDescription = "Resolve a query to one project and list its repositories. " +
		"Returns status found, ambiguous (with candidates) or not_found."

	commitStatsDescription = "Aggregate commit statistics of a repository URL or local path " +
		"into calendar buckets (e.g. freq \"1 month\", \"2 weeks\", \"Q\")."
)
