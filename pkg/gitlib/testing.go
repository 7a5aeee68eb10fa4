package gitlib

import "time"

// TestCommit is an in-memory commit for unit tests that do not need a real
// repository. It satisfies the same read-only accessors as Commit.
type TestCommit struct {
	hash      Hash
	author    *Signature
	committer *Signature
	stats     ChangeStats
	statsErr  error
}

// NewTestCommit creates a mock commit whose committer defaults to the author.
func NewTestCommit(hash Hash, author *Signature, stats ChangeStats) *TestCommit {
	return &TestCommit{
		hash:      hash,
		author:    author,
		committer: author,
		stats:     stats,
	}
}

// WithCommitter overrides the committer signature.
func (m *TestCommit) WithCommitter(committer *Signature) *TestCommit {
	m.committer = committer

	return m
}

// WithStatsError makes ChangeStats fail with err.
func (m *TestCommit) WithStatsError(err error) *TestCommit {
	m.statsErr = err

	return m
}

// Hash returns the commit hash.
func (m *TestCommit) Hash() Hash { return m.hash }

// Author returns the commit author.
func (m *TestCommit) Author() *Signature { return m.author }

// Committer returns the commit committer.
func (m *TestCommit) Committer() *Signature { return m.committer }

// ChangeStats returns the configured totals or error.
func (m *TestCommit) ChangeStats() (ChangeStats, error) {
	if m.statsErr != nil {
		return ChangeStats{}, m.statsErr
	}

	return m.stats, nil
}

// TestSignature creates a signature for testing.
func TestSignature(name, email string, when time.Time) *Signature {
	return &Signature{
		Name:  name,
		Email: email,
		When:  when,
	}
}
