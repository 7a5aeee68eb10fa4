package ecosystem

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

var (
	// ErrNotFound is returned by ResolveRepos when nothing matches.
	ErrNotFound = errors.New("no matching projects")
	// ErrAmbiguous is matched by AmbiguousError.
	ErrAmbiguous = errors.New("multiple matching projects")
)

// Status is the outcome of a resolution.
type Status int

// Resolution outcomes.
const (
	StatusNotFound Status = iota
	StatusFound
	StatusAmbiguous
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusAmbiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Resolution is the result of resolving a project query.
type Resolution struct {
	Status     Status                `json:"status"               yaml:"status"`
	Query      string                `json:"query"                yaml:"query"`
	Project    string                `json:"project,omitempty"    yaml:"project,omitempty"`    // Set when Status is StatusFound.
	Repos      map[string]Repository `json:"repos,omitempty"      yaml:"repos,omitempty"`      // Keyed by short name.
	Candidates []string              `json:"candidates,omitempty" yaml:"candidates,omitempty"` // Set when Status is StatusAmbiguous.
}

// AmbiguousError lists the candidates of an ambiguous query.
type AmbiguousError struct {
	Query      string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%s for %q, please enter one of: %s",
		ErrAmbiguous, e.Query, strings.Join(e.Candidates, ", "))
}

// Is matches ErrAmbiguous.
func (e *AmbiguousError) Is(target error) bool {
	return target == ErrAmbiguous
}

// Pattern builds the case-insensitive fuzzy pattern for query: each
// space-separated token must appear, in order, anywhere in the name.
func Pattern(query string) *regexp.Regexp {
	tokens := strings.Split(query, " ")
	for i, tok := range tokens {
		tokens[i] = regexp.QuoteMeta(tok)
	}

	return regexp.MustCompile("(?is)^.*" + strings.Join(tokens, ".*") + ".*$")
}

// FindProject returns the project names matching query, ascending.
func (ix *Index) FindProject(query string) []string {
	pat := Pattern(query)

	matches := []string{}

	for _, name := range ix.names {
		if pat.MatchString(name) {
			matches = append(matches, name)
		}
	}

	return matches
}

// Resolve narrows the fuzzy matches of query to case-insensitive exact
// matches and decides:
//
//	fuzzy > 1 and exact > 1  -> StatusAmbiguous, all fuzzy matches listed
//	exact >= 1               -> StatusFound, repos of the last exact match
//	otherwise                -> StatusNotFound
//
// Results are memoized per query string.
func (ix *Index) Resolve(query string) Resolution {
	if res, ok := ix.memo.Get(query); ok {
		return res.clone()
	}

	res := ix.resolve(query)
	ix.memo.Put(query, res)

	return res.clone()
}

func (ix *Index) resolve(query string) Resolution {
	fuzzy := ix.FindProject(query)

	var exact []string

	for _, name := range fuzzy {
		if strings.EqualFold(name, query) {
			exact = append(exact, name)
		}
	}

	switch {
	case len(fuzzy) > 1 && len(exact) > 1:
		return Resolution{Status: StatusAmbiguous, Query: query, Candidates: fuzzy}
	case len(exact) > 0:
		name := exact[len(exact)-1]

		repos := make(map[string]Repository)
		for _, r := range ix.projects[name].Repos {
			repos[r.ShortName()] = r
		}

		return Resolution{Status: StatusFound, Query: query, Project: name, Repos: repos}
	default:
		return Resolution{Status: StatusNotFound, Query: query}
	}
}

// ResolveRepos is Resolve reporting the non-found outcomes as errors.
func (ix *Index) ResolveRepos(query string) (map[string]Repository, error) {
	res := ix.Resolve(query)

	switch res.Status {
	case StatusFound:
		return res.Repos, nil
	case StatusAmbiguous:
		return nil, &AmbiguousError{Query: query, Candidates: res.Candidates}
	default:
		return nil, fmt.Errorf("%w: %q", ErrNotFound, query)
	}
}

// SortedRepoNames returns the short names of a resolution's repositories.
func (r Resolution) SortedRepoNames() []string {
	return slices.Sorted(maps.Keys(r.Repos))
}

func (r Resolution) clone() Resolution {
	r.Repos = maps.Clone(r.Repos)
	r.Candidates = slices.Clone(r.Candidates)

	return r
}
