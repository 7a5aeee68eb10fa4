package commits_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"
)

// fixtureRepo is a scratch repository populated commit by commit.
type fixtureRepo struct {
	t      *testing.T
	path   string
	native *git2go.Repository
}

func newFixtureRepo(t *testing.T, name string) *fixtureRepo {
	t.Helper()

	dir := filepath.Join(t.TempDir(), name)

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &fixtureRepo{t: t, path: dir, native: repo}
}

// commit writes content to file and commits it with the given author time.
func (f *fixtureRepo) commit(file, content string, when time.Time) {
	f.t.Helper()

	f.commitOn("HEAD", file, content, when)
}

// commitOn is commit for an arbitrary ref. The new commit's parent is the
// current HEAD commit, so a branch ref diverges from HEAD by one commit.
func (f *fixtureRepo) commitOn(ref, file, content string, when time.Time) {
	f.t.Helper()

	require.NoError(f.t, os.WriteFile(filepath.Join(f.path, file), []byte(content), 0o644))

	index, err := f.native.Index()
	require.NoError(f.t, err)

	defer index.Free()

	require.NoError(f.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(f.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(f.t, err)

	tree, err := f.native.LookupTree(treeID)
	require.NoError(f.t, err)

	defer tree.Free()

	sig := &git2go.Signature{Name: "Satoshi", Email: "satoshi@example.com", When: when}

	var parents []*git2go.Commit

	if head, headErr := f.native.Head(); headErr == nil {
		parent, lookupErr := f.native.LookupCommit(head.Target())
		require.NoError(f.t, lookupErr)

		parents = append(parents, parent)

		head.Free()
	}

	_, err = f.native.CreateCommit(ref, sig, sig, "update "+file, tree, parents...)
	require.NoError(f.t, err)

	for _, p := range parents {
		p.Free()
	}
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 15, 30, 0, 0, time.UTC)
}

// threeCommitRepo builds the history used across the package tests:
// 2021-01-05, 2021-01-20 and 2021-02-03, one inserted line each.
func threeCommitRepo(t *testing.T, name string) *fixtureRepo {
	t.Helper()

	f := newFixtureRepo(t, name)
	f.commit("a.txt", "1\n", date(2021, time.January, 5))
	f.commit("a.txt", "1\n2\n", date(2021, time.January, 20))
	f.commit("a.txt", "1\n2\n3\n", date(2021, time.February, 3))

	return f
}
