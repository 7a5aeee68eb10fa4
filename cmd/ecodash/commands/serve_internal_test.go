package commands

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ecodash/pkg/observability"
)

const exchangeJSON = `{
  "Bitcoin": {"repo": [{"url": "https://github.com/bitcoin/bitcoin"}, {"url": "https://github.com/bitcoin/bips"}]},
  "Bitcoin Cash": {"repo": [{"url": "https://github.com/bitcoincashorg/bitcoincash.org"}]}
}`

func singleCommitRepo(t *testing.T) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "genesis")

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "block.txt"), []byte("0\n"), 0o644))

	index, err := repo.Index()
	require.NoError(t, err)

	defer index.Free()

	require.NoError(t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))

	treeID, err := index.WriteTree()
	require.NoError(t, err)

	tree, err := repo.LookupTree(treeID)
	require.NoError(t, err)

	defer tree.Free()

	sig := &git2go.Signature{Name: "Satoshi", Email: "s@example.com", When: time.Date(2009, time.January, 3, 18, 15, 5, 0, time.UTC)}

	_, err = repo.CreateCommit("HEAD", sig, sig, "genesis", tree)
	require.NoError(t, err)

	return dir
}

func newTestServer(t *testing.T, withIndex, allowLocal bool) *httptest.Server {
	t.Helper()

	dir := t.TempDir()
	exportPath := filepath.Join(dir, "projects.json")

	if withIndex {
		require.NoError(t, os.WriteFile(exportPath, []byte(exchangeJSON), 0o600))
	}

	cfgPath := filepath.Join(dir, "ecodash.yaml")
	cfg := "paths:\n  export_path: " + exportPath + "\n  repo_dir: " + filepath.Join(dir, "repos") + "\nlogging:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	a := &app{configPath: cfgPath}
	require.NoError(t, a.setup(observability.ModeServe))

	srv, err := newDashboardServer(a, allowLocal)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.handler)
	t.Cleanup(ts.Close)

	return ts
}

func get(t *testing.T, base, path string, query url.Values) (int, string) {
	t.Helper()

	target := base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	resp, err := http.Get(target)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestDashboardServerStatusCodes(t *testing.T) {
	ts := newTestServer(t, true, false)

	code, _ := get(t, ts.URL, "/", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = get(t, ts.URL, "/", url.Values{"repo": {"/var/lib/secret"}})
	assert.Equal(t, http.StatusForbidden, code)

	code, body := get(t, ts.URL, "/", url.Values{"project": {"bitcoin"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, "bips, bitcoin")

	code, _ = get(t, ts.URL, "/", url.Values{"project": {"dogecoin"}})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, ts.URL, "/", url.Values{"repo": {"https://example.invalid/x"}, "freq": {"often"}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = get(t, ts.URL, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	code, _ = get(t, ts.URL, "/readyz", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body = get(t, ts.URL, "/metrics", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "ecodash_requests_total")
	assert.Contains(t, body, "ecodash_cache_misses_total")
}

func TestDashboardServerNotReadyWithoutIndex(t *testing.T) {
	ts := newTestServer(t, false, false)

	code, body := get(t, ts.URL, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "unavailable")

	code, _ = get(t, ts.URL, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestDashboardServerRendersLocalRepo(t *testing.T) {
	ts := newTestServer(t, false, true)
	repoPath := singleCommitRepo(t)

	code, body := get(t, ts.URL, "/", url.Values{"repo": {repoPath}, "freq": {"W"}, "theme": {"dark"}})
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, "genesis")
	assert.Contains(t, body, "echarts")

	code, _ = get(t, ts.URL, "/", url.Values{"project": {"bitcoin"}})
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
