package commits

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/Sumatoshi-tech/ecodash/pkg/gitlib"
)

// Source is the read-only commit view normalization needs.
type Source interface {
	Hash() gitlib.Hash
	Author() *gitlib.Signature
	Committer() *gitlib.Signature
	ChangeStats() (gitlib.ChangeStats, error)
}

// Origin identifies the repository a record came from.
type Origin struct {
	ProjectName string
	ProjectPath string
}

// Extract returns the commit records of repo, oldest first. Every call starts
// a fresh walk. The first commit that cannot be normalized yields an error
// wrapping ErrMalformedCommit and ends the sequence. An empty repository
// yields nothing.
func (e *Extractor) Extract(ctx context.Context, repo *gitlib.Repository) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		// Without AllBranches the walk starts at HEAD, so every commit is
		// in the main branch.
		var reachable map[gitlib.Hash]struct{}

		if e.allBranches {
			var err error

			reachable, err = repo.ReachableFromHead()
			if err != nil {
				yield(Record{}, fmt.Errorf("walk %s: %w", repo.Path(), err))

				return
			}
		}

		commits, err := repo.Log(&gitlib.LogOptions{Reverse: true, AllBranches: e.allBranches})
		if errors.Is(err, gitlib.ErrEmptyRepository) {
			return
		}

		if err != nil {
			yield(Record{}, fmt.Errorf("walk %s: %w", repo.Path(), err))

			return
		}
		defer commits.Close()

		origin := Origin{ProjectName: repo.Name(), ProjectPath: repo.WorkDir()}

		for {
			if ctxErr := ctx.Err(); ctxErr != nil {
				yield(Record{}, ctxErr)

				return
			}

			commit, nextErr := commits.Next()
			if errors.Is(nextErr, io.EOF) {
				return
			}

			if nextErr != nil {
				yield(Record{}, fmt.Errorf("%w: %w", ErrMalformedCommit, nextErr))

				return
			}

			inMain := true
			if reachable != nil {
				_, inMain = reachable[commit.Hash()]
			}

			rec, recErr := Normalize(commit, origin, inMain)
			commit.Free()

			if !yield(rec, recErr) || recErr != nil {
				return
			}
		}
	}
}

// Normalize flattens one commit into a Record. Missing identities become nil
// name and email fields. A commit without author or committer time, or whose
// change totals cannot be computed, is malformed.
func Normalize(c Source, origin Origin, inMainBranch bool) (Record, error) {
	hash := c.Hash()
	if hash.IsZero() {
		return Record{}, fmt.Errorf("%w: zero hash", ErrMalformedCommit)
	}

	author := c.Author()
	committer := c.Committer()

	if author == nil || author.When.IsZero() {
		return Record{}, fmt.Errorf("%w: %s: missing author date", ErrMalformedCommit, hash)
	}

	if committer == nil || committer.When.IsZero() {
		return Record{}, fmt.Errorf("%w: %s: missing committer date", ErrMalformedCommit, hash)
	}

	stats, err := c.ChangeStats()
	if err != nil {
		return Record{}, fmt.Errorf("%w: %s: %w", ErrMalformedCommit, hash, err)
	}

	rec := Record{
		Hash:          hash.String(),
		AuthorDate:    FormatDate(author.When),
		CommitterDate: FormatDate(committer.When),
		InMainBranch:  inMainBranch,
		ProjectName:   origin.ProjectName,
		ProjectPath:   origin.ProjectPath,
		Deletions:     stats.Deletions,
		Insertions:    stats.Insertions,
		Lines:         stats.Lines(),
		Files:         stats.Files,
	}

	rec.AuthorName, rec.AuthorEmail = identity(author)
	rec.CommitterName, rec.CommitterEmail = identity(committer)

	return rec, nil
}

func identity(sig *gitlib.Signature) (name, email *string) {
	if !sig.HasIdentity() {
		return nil, nil
	}

	n, m := sig.Name, sig.Email

	return &n, &m
}
