package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/ecodash/pkg/commits"
	"github.com/Sumatoshi-tech/ecodash/pkg/gitlib"
	"github.com/Sumatoshi-tech/ecodash/pkg/stats"
)

// Tool names.
const (
	ToolNameFindProject  = "ecodash_find_project"
	ToolNameResolveRepos = "ecodash_resolve_repos"
	ToolNameCommitStats  = "ecodash_commit_stats"
)

// Tool input validation errors.
var (
	ErrEmptyQuery   = errors.New("query parameter is required and must not be empty")
	ErrEmptyRepo    = errors.New("repo parameter is required and must not be empty")
	ErrNoIndex      = errors.New("no exchange file loaded; run `ecodash export` first")
	ErrNoExtractor  = errors.New("commit extraction is not configured")
	ErrInvalidSince = errors.New("since must be a date, an RFC3339 time or a duration")
)

// FindProjectInput is the input of ecodash_find_project.
type FindProjectInput struct {
	Query string `json:"query" jsonschema:"space separated words that must appear in order in the project name"`
}

// ResolveReposInput is the input of ecodash_resolve_repos.
type ResolveReposInput struct {
	Query string `json:"query" jsonschema:"project name or fuzzy query"`
}

// CommitStatsInput is the input of ecodash_commit_stats.
type CommitStatsInput struct {
	Repo   string   `json:"repo"             jsonschema:"repository URL or local path"`
	Freq   string   `json:"freq,omitempty"   jsonschema:"bucket width such as 1 month, 2 weeks or Q (default: configured frequency)"`
	Fields []string `json:"fields,omitempty" jsonschema:"stat fields to sum: deletions insertions lines files (default: all)"`
	Since  string   `json:"since,omitempty"  jsonschema:"only count commits authored on or after this date (YYYY-MM-DD, RFC3339 or a duration like 720h)"`
}

// ToolOutput is the structured output of every tool.
type ToolOutput struct {
	Data any `json:"data"`
}

// FindProjectResult lists matching project names.
type FindProjectResult struct {
	Query    string   `json:"query"`
	Projects []string `json:"projects"`
}

// ResolveReposResult mirrors ecosystem.Resolution for JSON clients.
type ResolveReposResult struct {
	Status     string            `json:"status"`
	Query      string            `json:"query"`
	Project    string            `json:"project,omitempty"`
	Repos      map[string]string `json:"repos,omitempty"`
	Candidates []string          `json:"candidates,omitempty"`
}

// CommitStatsResult is the bucketed history of one repository.
type CommitStatsResult struct {
	Repo      string         `json:"repo"`
	Frequency string         `json:"frequency"`
	Commits   int            `json:"commits"`
	Buckets   []stats.Bucket `json:"buckets"`
	Totals    stats.Bucket   `json:"totals"`
	Spread    []stats.Spread `json:"spread"`
}

func (s *Server) handleFindProject(
	_ context.Context, _ *mcpsdk.CallToolRequest, input FindProjectInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return errorResult(ErrEmptyQuery)
	}

	if s.index == nil {
		return errorResult(ErrNoIndex)
	}

	return jsonResult(FindProjectResult{Query: query, Projects: s.index.FindProject(query)})
}

func (s *Server) handleResolveRepos(
	_ context.Context, _ *mcpsdk.CallToolRequest, input ResolveReposInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return errorResult(ErrEmptyQuery)
	}

	if s.index == nil {
		return errorResult(ErrNoIndex)
	}

	res := s.index.Resolve(query)

	out := ResolveReposResult{
		Status:     res.Status.String(),
		Query:      res.Query,
		Project:    res.Project,
		Candidates: res.Candidates,
	}

	if len(res.Repos) > 0 {
		out.Repos = make(map[string]string, len(res.Repos))
		for name, repo := range res.Repos {
			out.Repos[name] = repo.URL
		}
	}

	return jsonResult(out)
}

func (s *Server) handleCommitStats(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input CommitStatsInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	repo := strings.TrimSpace(input.Repo)
	if repo == "" {
		return errorResult(ErrEmptyRepo)
	}

	if s.extractor == nil {
		return errorResult(ErrNoExtractor)
	}

	freq := s.frequency

	if input.Freq != "" {
		parsed, err := stats.ParseFrequency(input.Freq)
		if err != nil {
			return errorResult(err)
		}

		freq = parsed
	}

	var from time.Time

	if input.Since != "" {
		parsed, err := gitlib.ParseTime(input.Since)
		if err != nil {
			return errorResult(fmt.Errorf("%w: %q", ErrInvalidSince, input.Since))
		}

		from = parsed
	}

	records, err := s.extractor.Summary(ctx, repo)
	if err != nil {
		return errorResult(err)
	}

	records = commits.Since(records, from)

	buckets, err := stats.Aggregate(records, freq, input.Fields)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(CommitStatsResult{
		Repo:      repo,
		Frequency: freq.String(),
		Commits:   len(records),
		Buckets:   buckets,
		Totals:    stats.Totals(buckets),
		Spread:    stats.Describe(buckets),
	})
}

func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, ToolOutput{Data: value}, nil
}
