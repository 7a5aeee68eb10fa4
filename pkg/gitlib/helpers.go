package gitlib

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidTimeFormat is returned when a time string cannot be parsed.
var ErrInvalidTimeFormat = errors.New("cannot parse time")

// scpLikeURL matches scp-style remotes such as git@github.com:owner/repo.
var scpLikeURL = regexp.MustCompile(`^[A-Za-z]\w*@[A-Za-z0-9][\w.]*:`)

// IsRemoteURL reports whether uri names a remote rather than a local path.
func IsRemoteURL(uri string) bool {
	return strings.Contains(uri, "://") || scpLikeURL.MatchString(uri)
}

// ParseTime accepts a calendar date (2024-01-31), an RFC3339 timestamp, or
// a Go duration meaning that long before now (720h).
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)

	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return time.Now().Add(-d), nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
}
