package commands_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ecodash/cmd/ecodash/commands"
)

const bitcoinTOML = `title = "Bitcoin"

[[repo]]
url = "https://github.com/bitcoin/bitcoin"

[[repo]]
url = "https://github.com/bitcoin/bips"
`

const bitcoinCashTOML = `title = "Bitcoin Cash"

[[repo]]
url = "https://github.com/bitcoincashorg/bitcoincash.org"
`

const ethereumTOML = `title = "Ethereum"

[[repo]]
url = "https://github.com/ethereum/go-ethereum"
`

// workspace is a scratch directory with a config file pointing every path
// inside it.
type workspace struct {
	dir        string
	configPath string
	dataDir    string
	exportPath string
	repoDir    string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()

	dir := t.TempDir()
	ws := &workspace{
		dir:        dir,
		configPath: filepath.Join(dir, "ecodash.yaml"),
		dataDir:    filepath.Join(dir, "data"),
		exportPath: filepath.Join(dir, "projects.json"),
		repoDir:    filepath.Join(dir, "repos"),
	}

	cfg := fmt.Sprintf(`paths:
  data_dir: %q
  export_path: %q
  repo_dir: %q
stats:
  frequency: "1 month"
logging:
  level: error
`, ws.dataDir, ws.exportPath, ws.repoDir)

	require.NoError(t, os.WriteFile(ws.configPath, []byte(cfg), 0o600))

	return ws
}

// withDataset writes TOML definitions and exports them.
func (ws *workspace) withDataset(t *testing.T) *workspace {
	t.Helper()

	defs := map[string]string{
		"b/bitcoin.toml":      bitcoinTOML,
		"b/bitcoin-cash.toml": bitcoinCashTOML,
		"e/ethereum.toml":     ethereumTOML,
	}

	for name, content := range defs {
		path := filepath.Join(ws.dataDir, "ecosystems", name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	_, err := ws.run(t, "export")
	require.NoError(t, err)

	return ws
}

// run executes the root command with the workspace config.
func (ws *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	root := commands.NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--config", ws.configPath))

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

// gitRepo creates a repository named name with one commit per date.
func gitRepo(t *testing.T, name string, dates ...time.Time) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), name)

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	for i, when := range dates {
		content := strings.Repeat("tx\n", i+1)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "chain.txt"), []byte(content), 0o644))

		index, indexErr := repo.Index()
		require.NoError(t, indexErr)
		require.NoError(t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
		require.NoError(t, index.Write())

		treeID, treeErr := index.WriteTree()
		require.NoError(t, treeErr)
		index.Free()

		tree, lookupErr := repo.LookupTree(treeID)
		require.NoError(t, lookupErr)

		sig := &git2go.Signature{Name: "Vitalik", Email: "v@example.com", When: when}

		var parents []*git2go.Commit

		if head, headErr := repo.Head(); headErr == nil {
			parent, parentErr := repo.LookupCommit(head.Target())
			require.NoError(t, parentErr)

			parents = append(parents, parent)
			head.Free()
		}

		_, err = repo.CreateCommit("HEAD", sig, sig, "block", tree, parents...)
		require.NoError(t, err)

		tree.Free()

		for _, p := range parents {
			p.Free()
		}
	}

	return dir
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 12, 0, 0, 0, time.UTC)
}
