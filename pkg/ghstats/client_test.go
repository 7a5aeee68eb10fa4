package ghstats_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ecodash/pkg/ghstats"
)

const (
	owner = "bitcoin"
	repo  = "bitcoin"
	token = "secret-token"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *ghstats.Client {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := ghstats.NewClient(token, ghstats.WithBaseURL(srv.URL), ghstats.WithRateLimit(1000))
	require.NoError(t, err)

	return client
}

func statsMux(t *testing.T) *http.ServeMux {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/repos/bitcoin/bitcoin/stats/contributors", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		fmt.Fprint(w, `[{"author":{"login":"satoshi"},"total":3,
			"weeks":[{"w":1230768000,"a":10,"d":2,"c":3}]}]`)
	})

	mux.HandleFunc("/repos/bitcoin/bitcoin/stats/commit_activity", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[{"days":[0,1,0,0,2,0,0],"total":3,"week":1230768000}]`)
	})

	mux.HandleFunc("/repos/bitcoin/bitcoin/stats/code_frequency", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[[1230768000,120,-30]]`)
	})

	return mux
}

func TestOverview(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, statsMux(t))

	ov, err := client.Overview(context.Background(), owner, repo)
	require.NoError(t, err)

	require.Len(t, ov.Contributors, 1)
	assert.Equal(t, "satoshi", ov.Contributors[0].Login)
	assert.Equal(t, 3, ov.Contributors[0].Total)
	assert.Equal(t, []ghstats.WeekChange{{Week: 1230768000, Additions: 10, Deletions: 2, Commits: 3}}, ov.Contributors[0].Weeks)

	require.Len(t, ov.CommitActivity, 1)
	assert.Equal(t, []int{0, 1, 0, 0, 2, 0, 0}, ov.CommitActivity[0].Days)

	require.Len(t, ov.CodeFrequency, 1)
	assert.Equal(t, 120, ov.CodeFrequency[0].Additions)
	assert.Equal(t, -30, ov.CodeFrequency[0].Deletions)
}

func TestStatsPending(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/bitcoin/bitcoin/stats/contributors", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{}`)
	})

	client := newTestClient(t, mux)

	_, err := client.Contributors(context.Background(), owner, repo)
	require.ErrorIs(t, err, ghstats.ErrStatsPending)
}

func TestCommitsPagination(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/bitcoin/bitcoin/commits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))

		w.Header().Set("Link", `<https://api.github.com/repos/bitcoin/bitcoin/commits?page=3&per_page=50>; rel="next"`)
		fmt.Fprint(w, `[{"sha":"abc","commit":{"author":{"name":"Satoshi","email":"s@example.com",
			"date":"2009-01-03T18:15:05Z"},"message":"genesis"}}]`)
	})

	client := newTestClient(t, mux)

	list, page, err := client.Commits(context.Background(), owner, repo, 2, 50)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ghstats.Commit{
		SHA: "abc", Author: "Satoshi", AuthorEmail: "s@example.com",
		Message: "genesis", Date: "2009-01-03T18:15:05Z",
	}, list[0])
	assert.Equal(t, 3, page.Next)
}

func TestCommitDefaultsPerPage(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/bitcoin/bitcoin/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		fmt.Fprint(w, `[{"id":"1","type":"PushEvent","actor":{"login":"satoshi"},"created_at":"2021-01-05T10:00:00Z"}]`)
	})

	client := newTestClient(t, mux)

	events, page, err := client.Events(context.Background(), owner, repo, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.Next)
	assert.Equal(t, []ghstats.Event{{ID: "1", Type: "PushEvent", Actor: "satoshi", CreatedAt: "2021-01-05T10:00:00Z"}}, events)
}

func TestSingleCommitAndStargazers(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/bitcoin/bitcoin/commits/abc", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"sha":"abc","stats":{"additions":5,"deletions":1,"total":6},
			"files":[{"filename":"a"},{"filename":"b"}]}`)
	})
	mux.HandleFunc("/repos/bitcoin/bitcoin/stargazers", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "star+json")
		fmt.Fprint(w, `[{"starred_at":"2020-05-01T00:00:00Z","user":{"login":"hal"}}]`)
	})

	client := newTestClient(t, mux)

	commit, err := client.Commit(context.Background(), owner, repo, "abc")
	require.NoError(t, err)
	assert.Equal(t, 5, commit.Additions)
	assert.Equal(t, 1, commit.Deletions)
	assert.Equal(t, 2, commit.Files)

	stars, _, err := client.Stargazers(context.Background(), owner, repo, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []ghstats.Stargazer{{Login: "hal", StarredAt: "2020-05-01T00:00:00Z"}}, stars)
}

func TestHTTPErrorIsWrapped(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/bitcoin/bitcoin/stats/code_frequency", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	})

	client := newTestClient(t, mux)

	_, err := client.CodeFrequency(context.Background(), owner, repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch code frequency")
}

func TestParseOwnerRepo(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"https://github.com/bitcoin/bitcoin",
		"https://github.com/bitcoin/bitcoin.git",
		"https://github.com/bitcoin/bitcoin/",
		"git@github.com:bitcoin/bitcoin.git",
		"bitcoin/bitcoin",
	} {
		o, r, err := ghstats.ParseOwnerRepo(in)
		require.NoError(t, err, in)
		assert.Equal(t, owner, o, in)
		assert.Equal(t, repo, r, in)
	}

	for _, bad := range []string{"", "bitcoin", "https://github.com/bitcoin", "https://github.com/a/b/c"} {
		_, _, err := ghstats.ParseOwnerRepo(bad)
		require.ErrorIs(t, err, ghstats.ErrInvalidRepoURL, bad)
	}
}
