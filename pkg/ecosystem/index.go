// Package ecosystem loads the project index exchange file and resolves
// project name queries to repository lists.
package ecosystem

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/ecodash/pkg/alg/lru"
)

// DefaultMemoSize bounds the resolution memo.
const DefaultMemoSize = 100

// ErrDataFormat is returned when the exchange file is missing or invalid.
var ErrDataFormat = errors.New("invalid exchange file")

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// Repository is one tracked repository. Its identity is the URL.
type Repository struct {
	URL  string `json:"url"            yaml:"url"`
	Tags any    `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// ShortName returns the last path segment of the URL.
func (r Repository) ShortName() string {
	trimmed := strings.TrimRight(r.URL, "/")

	return trimmed[strings.LastIndex(trimmed, "/")+1:]
}

// Project is one exchange file entry.
type Project struct {
	Repos               []Repository `json:"repo"`
	SubEcosystems       []string     `json:"sub_ecosystems,omitempty"`
	GithubOrganizations []string     `json:"github_organizations,omitempty"`
}

// Index is the immutable project name to project mapping.
type Index struct {
	projects map[string]Project
	names    []string
	memo     *lru.Cache[string, Resolution]
}

// Option configures an Index.
type Option func(*indexOptions)

type indexOptions struct {
	memoSize int
}

// WithMemoSize sets the resolution memo capacity.
func WithMemoSize(n int) Option {
	return func(o *indexOptions) {
		o.memoSize = n
	}
}

// New builds an Index over projects. The map is copied.
func New(projects map[string]Project, opts ...Option) *Index {
	cfg := indexOptions{memoSize: DefaultMemoSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.memoSize <= 0 {
		cfg.memoSize = DefaultMemoSize
	}

	return &Index{
		projects: maps.Clone(projects),
		names:    slices.Sorted(maps.Keys(projects)),
		memo:     lru.New(lru.WithMaxEntries[string, Resolution](cfg.memoSize)),
	}
}

// Load reads, validates and decodes the exchange file at path.
func Load(path string, opts ...Option) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataFormat, err)
	}

	return Parse(data, opts...)
}

// Parse validates and decodes exchange file contents.
func Parse(data []byte, opts ...Option) (*Index, error) {
	var raw any

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataFormat, err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataFormat, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrDataFormat, strings.Join(msgs, "; "))
	}

	var projects map[string]Project

	err = json.Unmarshal(data, &projects)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataFormat, err)
	}

	return New(projects, opts...), nil
}

// Projects returns every project name in ascending order.
func (ix *Index) Projects() []string {
	return slices.Clone(ix.names)
}

// Project returns the entry stored under name.
func (ix *Index) Project(name string) (Project, bool) {
	p, ok := ix.projects[name]

	return p, ok
}

// Len returns the number of projects.
func (ix *Index) Len() int {
	return len(ix.projects)
}

// MemoStats exposes the resolution memo counters.
func (ix *Index) MemoStats() lru.Stats {
	return ix.memo.Stats()
}
