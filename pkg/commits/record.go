// Package commits turns repository history into flat, normalized commit
// records and caches them per repository.
package commits

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date layout of record dates.
const DateLayout = "20060102"

// Stat field names.
const (
	FieldDeletions  = "deletions"
	FieldInsertions = "insertions"
	FieldLines      = "lines"
	FieldFiles      = "files"
)

// StatKeys are the numeric fields that can be aggregated.
var StatKeys = []string{FieldDeletions, FieldInsertions, FieldLines, FieldFiles}

// DisplayKeys are the columns shown in commit listings.
var DisplayKeys = []string{
	"author_date", "author_name", "author_email",
	FieldInsertions, FieldDeletions, FieldLines, FieldFiles,
}

// ErrUnknownStat is returned by Record.Stat for a non-numeric field name.
var ErrUnknownStat = errors.New("unknown stat field")

// Record is the normalized view of one commit.
type Record struct {
	Hash           string  `json:"hash"            yaml:"hash"`
	AuthorDate     string  `json:"author_date"     yaml:"author_date"`
	CommitterDate  string  `json:"committer_date"  yaml:"committer_date"`
	InMainBranch   bool    `json:"in_main_branch"  yaml:"in_main_branch"`
	ProjectName    string  `json:"project_name"    yaml:"project_name"`
	ProjectPath    string  `json:"project_path"    yaml:"project_path"`
	Deletions      int     `json:"deletions"       yaml:"deletions"`
	Insertions     int     `json:"insertions"      yaml:"insertions"`
	Lines          int     `json:"lines"           yaml:"lines"`
	Files          int     `json:"files"           yaml:"files"`
	AuthorName     *string `json:"author_name"     yaml:"author_name"`
	AuthorEmail    *string `json:"author_email"    yaml:"author_email"`
	CommitterName  *string `json:"committer_name"  yaml:"committer_name"`
	CommitterEmail *string `json:"committer_email" yaml:"committer_email"`
}

// Stat returns the value of a numeric field by name.
func (r Record) Stat(field string) (int, error) {
	switch field {
	case FieldDeletions:
		return r.Deletions, nil
	case FieldInsertions:
		return r.Insertions, nil
	case FieldLines:
		return r.Lines, nil
	case FieldFiles:
		return r.Files, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStat, field)
	}
}

// AuthorTime parses AuthorDate.
func (r Record) AuthorTime() (time.Time, error) {
	return ParseDate(r.AuthorDate)
}

// FormatDate formats t as a YYYYMMDD calendar date in t's own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYYMMDD date into midnight UTC of that day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad date %q", ErrMalformedCommit, s)
	}

	return t, nil
}

// Since returns the records authored on or after the calendar day of from,
// preserving order. A zero from keeps everything.
func Since(records []Record, from time.Time) []Record {
	if from.IsZero() {
		return records
	}

	// YYYYMMDD compares lexically in date order.
	cutoff := FormatDate(from)
	kept := make([]Record, 0, len(records))

	for _, r := range records {
		if r.AuthorDate >= cutoff {
			kept = append(kept, r)
		}
	}

	return kept
}

// ShortName returns the last path segment of a repository URL or path.
func ShortName(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}

	return trimmed
}

// Deref returns the pointed-to string, or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
