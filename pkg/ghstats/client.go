// Package ghstats is a rate-limited client for the GitHub repository
// statistics endpoints.
package ghstats

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	// DefaultPerPage is the page size used when none is given.
	DefaultPerPage = 100
	// DefaultRateLimit is the default number of requests per second.
	DefaultRateLimit = 10.0

	maxPerPage = 100
)

var (
	// ErrStatsPending is returned while GitHub is still computing statistics.
	ErrStatsPending = errors.New("statistics are being computed, retry later")
	// ErrInvalidRepoURL is returned when owner and name cannot be extracted.
	ErrInvalidRepoURL = errors.New("not a GitHub repository URL")
)

// Client wraps the GitHub API client with rate limiting.
type Client struct {
	client      *github.Client
	rateLimiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(base string) Option {
	return func(c *Client) error {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}

		u, err := url.Parse(base)
		if err != nil {
			return fmt.Errorf("parse base URL: %w", err)
		}

		c.client.BaseURL = u

		return nil
	}
}

// WithRateLimit sets the requests-per-second budget.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) error {
		if perSecond > 0 {
			c.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}

		return nil
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		base := c.client.BaseURL
		c.client = github.NewClient(hc)
		c.client.BaseURL = base

		return nil
	}
}

// NewClient creates a client. An empty token sends unauthenticated requests.
func NewClient(token string, opts ...Option) (*Client, error) {
	c := &Client{
		client:      github.NewClient(nil),
		rateLimiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
	}

	for _, opt := range opts {
		err := opt(c)
		if err != nil {
			return nil, err
		}
	}

	if token != "" {
		c.client = c.client.WithAuthToken(token)
	}

	return c, nil
}

func (c *Client) wait(ctx context.Context) error {
	err := c.rateLimiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	return nil
}

// Contributor is one contributor's commit total and weekly history.
type Contributor struct {
	Login string       `json:"login"`
	Total int          `json:"total"`
	Weeks []WeekChange `json:"weeks"`
}

// WeekChange is one week of additions, deletions and commits.
type WeekChange struct {
	Week      int64 `json:"week"`
	Additions int   `json:"additions"`
	Deletions int   `json:"deletions"`
	Commits   int   `json:"commits"`
}

// WeekActivity is the weekly commit count with a per-day breakdown.
type WeekActivity struct {
	Week  int64 `json:"week"`
	Total int   `json:"total"`
	Days  []int `json:"days"`
}

// Commit is a summary of one commit.
type Commit struct {
	SHA         string `json:"sha"`
	Author      string `json:"author"`
	AuthorEmail string `json:"author_email"`
	Message     string `json:"message"`
	Date        string `json:"date"`
	Additions   int    `json:"additions"`
	Deletions   int    `json:"deletions"`
	Files       int    `json:"files"`
}

// Event is one repository event.
type Event struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Actor     string `json:"actor"`
	CreatedAt string `json:"created_at"`
}

// Stargazer is one user who starred the repository.
type Stargazer struct {
	Login     string `json:"login"`
	StarredAt string `json:"starred_at"`
}

// Page carries pagination state of a list call. Next is 0 on the last page.
type Page struct {
	Next int
}

// Contributors returns per-contributor statistics.
func (c *Client) Contributors(ctx context.Context, owner, repo string) ([]Contributor, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	stats, _, err := c.client.Repositories.ListContributorsStats(ctx, owner, repo)
	if err != nil {
		return nil, wrap("contributors", err)
	}

	out := make([]Contributor, 0, len(stats))

	for _, s := range stats {
		contrib := Contributor{Login: s.GetAuthor().GetLogin(), Total: s.GetTotal()}

		for _, w := range s.Weeks {
			contrib.Weeks = append(contrib.Weeks, WeekChange{
				Week:      w.GetWeek().Unix(),
				Additions: w.GetAdditions(),
				Deletions: w.GetDeletions(),
				Commits:   w.GetCommits(),
			})
		}

		out = append(out, contrib)
	}

	return out, nil
}

// CommitActivity returns the last year of weekly commit counts.
func (c *Client) CommitActivity(ctx context.Context, owner, repo string) ([]WeekActivity, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	activity, _, err := c.client.Repositories.ListCommitActivity(ctx, owner, repo)
	if err != nil {
		return nil, wrap("commit activity", err)
	}

	out := make([]WeekActivity, 0, len(activity))

	for _, a := range activity {
		out = append(out, WeekActivity{Week: a.GetWeek().Unix(), Total: a.GetTotal(), Days: a.Days})
	}

	return out, nil
}

// CodeFrequency returns weekly additions and deletions.
func (c *Client) CodeFrequency(ctx context.Context, owner, repo string) ([]WeekChange, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	freq, _, err := c.client.Repositories.ListCodeFrequency(ctx, owner, repo)
	if err != nil {
		return nil, wrap("code frequency", err)
	}

	out := make([]WeekChange, 0, len(freq))

	for _, f := range freq {
		out = append(out, WeekChange{
			Week:      f.GetWeek().Unix(),
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
		})
	}

	return out, nil
}

// Commits returns one page of the commit list.
func (c *Client) Commits(ctx context.Context, owner, repo string, page, perPage int) ([]Commit, Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, Page{}, err
	}

	opts := &github.CommitsListOptions{ListOptions: listOptions(page, perPage)}

	list, resp, err := c.client.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		return nil, Page{}, wrap("commits", err)
	}

	out := make([]Commit, 0, len(list))
	for _, rc := range list {
		out = append(out, commitFrom(rc))
	}

	return out, nextPage(resp), nil
}

// Commit returns a single commit with its change totals.
func (c *Client) Commit(ctx context.Context, owner, repo, ref string) (Commit, error) {
	if err := c.wait(ctx); err != nil {
		return Commit{}, err
	}

	rc, _, err := c.client.Repositories.GetCommit(ctx, owner, repo, ref, nil)
	if err != nil {
		return Commit{}, wrap("commit "+ref, err)
	}

	return commitFrom(rc), nil
}

// Events returns one page of repository events.
func (c *Client) Events(ctx context.Context, owner, repo string, page, perPage int) ([]Event, Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, Page{}, err
	}

	opts := listOptions(page, perPage)

	events, resp, err := c.client.Activity.ListRepositoryEvents(ctx, owner, repo, &opts)
	if err != nil {
		return nil, Page{}, wrap("events", err)
	}

	out := make([]Event, 0, len(events))

	for _, e := range events {
		ev := Event{ID: e.GetID(), Type: e.GetType(), Actor: e.GetActor().GetLogin()}
		if e.CreatedAt != nil {
			ev.CreatedAt = e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")
		}

		out = append(out, ev)
	}

	return out, nextPage(resp), nil
}

// Stargazers returns one page of stargazers with their starring time.
func (c *Client) Stargazers(ctx context.Context, owner, repo string, page, perPage int) ([]Stargazer, Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, Page{}, err
	}

	opts := listOptions(page, perPage)

	stars, resp, err := c.client.Activity.ListStargazers(ctx, owner, repo, &opts)
	if err != nil {
		return nil, Page{}, wrap("stargazers", err)
	}

	out := make([]Stargazer, 0, len(stars))

	for _, s := range stars {
		sg := Stargazer{Login: s.GetUser().GetLogin()}
		if s.StarredAt != nil {
			sg.StarredAt = s.StarredAt.UTC().Format("2006-01-02T15:04:05Z")
		}

		out = append(out, sg)
	}

	return out, nextPage(resp), nil
}

// Overview bundles the three statistics endpoints.
type Overview struct {
	Owner          string         `json:"owner"`
	Repo           string         `json:"repo"`
	Contributors   []Contributor  `json:"contributors"`
	CommitActivity []WeekActivity `json:"commit_activity"`
	CodeFrequency  []WeekChange   `json:"code_frequency"`
}

// Overview fetches contributors, commit activity and code frequency
// concurrently. The first failure cancels the others.
func (c *Client) Overview(ctx context.Context, owner, repo string) (*Overview, error) {
	ov := &Overview{Owner: owner, Repo: repo}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		ov.Contributors, err = c.Contributors(gctx, owner, repo)

		return err
	})

	g.Go(func() error {
		var err error

		ov.CommitActivity, err = c.CommitActivity(gctx, owner, repo)

		return err
	})

	g.Go(func() error {
		var err error

		ov.CodeFrequency, err = c.CodeFrequency(gctx, owner, repo)

		return err
	})

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	return ov, nil
}

// ParseOwnerRepo extracts owner and name from a GitHub https, ssh or
// owner/name reference. A trailing .git is dropped.
func ParseOwnerRepo(ref string) (owner, repo string, err error) {
	s := strings.TrimSpace(ref)

	switch {
	case strings.HasPrefix(s, "git@"):
		_, s, _ = strings.Cut(s, ":")
	case strings.Contains(s, "://"):
		u, parseErr := url.Parse(s)
		if parseErr != nil {
			return "", "", fmt.Errorf("%w: %s", ErrInvalidRepoURL, ref)
		}

		s = u.Path
	}

	s = strings.TrimSuffix(strings.Trim(s, "/"), ".git")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidRepoURL, ref)
	}

	return parts[0], parts[1], nil
}

func listOptions(page, perPage int) github.ListOptions {
	if page < 1 {
		page = 1
	}

	if perPage < 1 || perPage > maxPerPage {
		perPage = DefaultPerPage
	}

	return github.ListOptions{Page: page, PerPage: perPage}
}

func nextPage(resp *github.Response) Page {
	if resp == nil {
		return Page{}
	}

	return Page{Next: resp.NextPage}
}

func commitFrom(rc *github.RepositoryCommit) Commit {
	out := Commit{
		SHA:         rc.GetSHA(),
		Author:      rc.GetCommit().GetAuthor().GetName(),
		AuthorEmail: rc.GetCommit().GetAuthor().GetEmail(),
		Message:     rc.GetCommit().GetMessage(),
		Additions:   rc.GetStats().GetAdditions(),
		Deletions:   rc.GetStats().GetDeletions(),
		Files:       len(rc.Files),
	}

	if date := rc.GetCommit().GetAuthor().GetDate(); !date.IsZero() {
		out.Date = date.UTC().Format("2006-01-02T15:04:05Z")
	}

	return out
}

func wrap(what string, err error) error {
	var accepted *github.AcceptedError
	if errors.As(err, &accepted) {
		return fmt.Errorf("%s: %w", what, ErrStatsPending)
	}

	return fmt.Errorf("fetch %s: %w", what, err)
}
