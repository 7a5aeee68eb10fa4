package commits

import "errors"

var (
	// ErrRepoUnavailable is returned when a local copy cannot be opened or cloned.
	ErrRepoUnavailable = errors.New("repository unavailable")
	// ErrMalformedCommit is returned when a commit cannot be normalized.
	ErrMalformedCommit = errors.New("malformed commit")
)
