package gitlib

import (
	"context"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// Clone clones url into path. The context bounds the network transfer: once
// it is done the transfer callback aborts libgit2 and the context error is
// returned.
func Clone(ctx context.Context, url, path string) (*Repository, error) {
	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	nativeOpts := &git2go.CloneOptions{
		FetchOptions: git2go.FetchOptions{
			RemoteCallbacks: git2go.RemoteCallbacks{
				TransferProgressCallback: func(_ git2go.TransferProgress) error {
					return ctx.Err()
				},
			},
		},
	}

	repo, err := git2go.Clone(url, path, nativeOpts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("clone %s: %w", url, ctxErr)
		}

		return nil, fmt.Errorf("clone %s: %w", url, err)
	}

	return &Repository{repo: repo, path: path}, nil
}
