package gitlib_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/ecodash/pkg/gitlib"
)

// testRepo wraps a scratch repository for integration tests.
type testRepo struct {
	t      *testing.T
	path   string
	native *git2go.Repository
}

// newTestRepo initializes an empty repository in a temp dir.
func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &testRepo{t: t, path: dir, native: repo}
}

// writeFile writes a file in the working directory.
func (tr *testRepo) writeFile(name, content string) {
	tr.t.Helper()

	err := os.WriteFile(filepath.Join(tr.path, name), []byte(content), 0o644)
	require.NoError(tr.t, err)
}

// commitAt stages everything and commits with the given author time.
func (tr *testRepo) commitAt(message string, when time.Time) gitlib.Hash {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	require.NoError(tr.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(tr.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	sig := &git2go.Signature{Name: "Test User", Email: "test@example.com", When: when}

	var parents []*git2go.Commit

	head, err := tr.native.Head()
	if err == nil {
		headCommit, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(tr.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}

var baseTime = time.Date(2021, time.January, 5, 10, 0, 0, 0, time.UTC)

// logHashes drains a log iteration and returns the visited hashes.
func logHashes(t *testing.T, repo *gitlib.Repository, opts *gitlib.LogOptions) []gitlib.Hash {
	t.Helper()

	iter, err := repo.Log(opts)
	require.NoError(t, err)

	defer iter.Close()

	var hashes []gitlib.Hash

	for {
		commit, nextErr := iter.Next()
		if errors.Is(nextErr, io.EOF) {
			return hashes
		}

		require.NoError(t, nextErr)

		hashes = append(hashes, commit.Hash())
		commit.Free()
	}
}

func TestOpenRepository(t *testing.T) {
	tr := newTestRepo(t)
	tr.writeFile("a.txt", "a\n")
	tr.commitAt("initial", baseTime)

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	assert.Equal(t, tr.path, repo.Path())
	assert.Equal(t, filepath.Base(tr.path), repo.Name())
	assert.True(t, filepath.IsAbs(repo.WorkDir()))
}

func TestOpenRepositoryNotFound(t *testing.T) {
	repo, err := gitlib.OpenRepository("/nonexistent/path/to/repo")

	assert.Nil(t, repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open repository")
}

func TestRepositoryFreeTwice(t *testing.T) {
	tr := newTestRepo(t)

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	repo.Free()
	repo.Free()
}

func TestLogStartsAtHead(t *testing.T) {
	tr := newTestRepo(t)
	tr.writeFile("a.txt", "hello")
	tr.commitAt("initial", baseTime)
	tr.writeFile("a.txt", "hello again")
	expected := tr.commitAt("second", baseTime.Add(time.Hour))

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	hashes := logHashes(t, repo, nil)
	require.Len(t, hashes, 2)
	assert.Equal(t, expected, hashes[0])
}

func TestLogEmptyRepository(t *testing.T) {
	tr := newTestRepo(t)

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	empty, err := repo.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty)

	iter, err := repo.Log(nil)
	assert.Nil(t, iter)
	require.ErrorIs(t, err, gitlib.ErrEmptyRepository)

	reachable, err := repo.ReachableFromHead()
	require.NoError(t, err)
	assert.Empty(t, reachable)
}

func TestLogReverseIsChronological(t *testing.T) {
	tr := newTestRepo(t)

	tr.writeFile("a.txt", "1\n")
	first := tr.commitAt("first", baseTime)

	tr.writeFile("a.txt", "1\n2\n")
	second := tr.commitAt("second", baseTime.Add(time.Hour))

	tr.writeFile("a.txt", "1\n2\n3\n")
	third := tr.commitAt("third", baseTime.Add(2*time.Hour))

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	assert.Equal(t, []gitlib.Hash{first, second, third}, logHashes(t, repo, &gitlib.LogOptions{Reverse: true}))
	assert.Equal(t, []gitlib.Hash{third, second, first}, logHashes(t, repo, &gitlib.LogOptions{}))
}

func TestCommitIterCloseIsIdempotent(t *testing.T) {
	tr := newTestRepo(t)
	tr.writeFile("a.txt", "1")
	tr.commitAt("first", baseTime)

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	iter, err := repo.Log(nil)
	require.NoError(t, err)

	for {
		commit, nextErr := iter.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		require.NoError(t, nextErr)
		commit.Free()
	}

	iter.Close()
	iter.Close()

	commit, err := iter.Next()
	assert.Nil(t, commit)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCommitChangeStats(t *testing.T) {
	tr := newTestRepo(t)

	tr.writeFile("a.txt", "1\n2\n")
	tr.writeFile("b.txt", "b\n")
	root := tr.commitAt("root", baseTime)

	tr.writeFile("a.txt", "1\n3\n")
	child := tr.commitAt("child", baseTime.Add(time.Hour))

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	iter, err := repo.Log(&gitlib.LogOptions{Reverse: true})
	require.NoError(t, err)

	defer iter.Close()

	rootCommit, err := iter.Next()
	require.NoError(t, err)

	defer rootCommit.Free()

	require.Equal(t, root, rootCommit.Hash())

	stats, err := rootCommit.ChangeStats()
	require.NoError(t, err)
	assert.Equal(t, gitlib.ChangeStats{Insertions: 3, Deletions: 0, Files: 2}, stats)
	assert.Equal(t, 3, stats.Lines())

	childCommit, err := iter.Next()
	require.NoError(t, err)

	defer childCommit.Free()

	require.Equal(t, child, childCommit.Hash())

	stats, err = childCommit.ChangeStats()
	require.NoError(t, err)
	assert.Equal(t, gitlib.ChangeStats{Insertions: 1, Deletions: 1, Files: 1}, stats)

	assert.Equal(t, "Test User", childCommit.Author().Name)
	assert.Equal(t, "test@example.com", childCommit.Committer().Email)
	assert.True(t, childCommit.Author().HasIdentity())
	assert.Equal(t, 1, childCommit.NumParents())

	_, err = childCommit.Parent(1)
	assert.ErrorIs(t, err, gitlib.ErrParentNotFound)
}

func TestReachableFromHead(t *testing.T) {
	tr := newTestRepo(t)
	tr.writeFile("a.txt", "1")
	first := tr.commitAt("first", baseTime)
	tr.writeFile("a.txt", "2")
	second := tr.commitAt("second", baseTime.Add(time.Minute))

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	reachable, err := repo.ReachableFromHead()
	require.NoError(t, err)
	assert.Len(t, reachable, 2)
	assert.Contains(t, reachable, first)
	assert.Contains(t, reachable, second)
}

func TestCloneLocal(t *testing.T) {
	tr := newTestRepo(t)
	tr.writeFile("a.txt", "1")
	head := tr.commitAt("first", baseTime)

	target := filepath.Join(t.TempDir(), "copy")

	repo, err := gitlib.Clone(context.Background(), tr.path, target)
	require.NoError(t, err)

	defer repo.Free()

	assert.Equal(t, []gitlib.Hash{head}, logHashes(t, repo, nil))
	assert.Equal(t, "copy", repo.Name())
}

func TestCloneCanceledContext(t *testing.T) {
	tr := newTestRepo(t)
	tr.writeFile("a.txt", "1")
	tr.commitAt("first", baseTime)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo, err := gitlib.Clone(ctx, tr.path, filepath.Join(t.TempDir(), "copy"))

	assert.Nil(t, repo)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHashFromOid(t *testing.T) {
	t.Parallel()

	const hexStr = "abcdef1234567890abcdef1234567890abcdef12"

	oid, err := git2go.NewOid(hexStr)
	require.NoError(t, err)

	h := gitlib.HashFromOid(oid)
	assert.Equal(t, hexStr, h.String())
	assert.False(t, h.IsZero())

	assert.True(t, gitlib.HashFromOid(nil).IsZero())
	assert.True(t, gitlib.Hash{}.IsZero())
}

func TestIsRemoteURL(t *testing.T) {
	t.Parallel()

	assert.True(t, gitlib.IsRemoteURL("https://github.com/bitcoin/bitcoin"))
	assert.True(t, gitlib.IsRemoteURL("git@github.com:bitcoin/bitcoin.git"))
	assert.False(t, gitlib.IsRemoteURL("/tmp/repos/bitcoin"))
	assert.False(t, gitlib.IsRemoteURL("repos/bitcoin"))
}

func TestParseTime(t *testing.T) {
	t.Parallel()

	got, err := gitlib.ParseTime("2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = gitlib.ParseTime("2024-01-01T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 12, got.Hour())

	got, err = gitlib.ParseTime("24h")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), got, time.Minute)

	_, err = gitlib.ParseTime("yesterday")
	require.ErrorIs(t, err, gitlib.ErrInvalidTimeFormat)
}

func TestTestCommit(t *testing.T) {
	t.Parallel()

	author := gitlib.TestSignature("Ann", "ann@example.com", baseTime)
	committer := gitlib.TestSignature("Bob", "bob@example.com", baseTime)
	stats := gitlib.ChangeStats{Insertions: 2, Deletions: 1, Files: 1}

	commit := gitlib.NewTestCommit(gitlib.Hash{1}, author, stats)
	assert.Equal(t, author, commit.Committer())

	commit.WithCommitter(committer)
	assert.Equal(t, committer, commit.Committer())

	got, err := commit.ChangeStats()
	require.NoError(t, err)
	assert.Equal(t, stats, got)

	boom := errors.New("boom")
	_, err = commit.WithStatsError(boom).ChangeStats()
	assert.ErrorIs(t, err, boom)
}
