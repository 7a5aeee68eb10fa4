package commits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Sumatoshi-tech/ecodash/pkg/alg/lru"
	"github.com/Sumatoshi-tech/ecodash/pkg/gitlib"
)

const (
	// DefaultCacheSize bounds the number of memoized repository summaries.
	DefaultCacheSize = 100
	// DefaultCloneTimeout bounds a single clone.
	DefaultCloneTimeout = 10 * time.Minute

	dirPerm = 0o755
)

// Cloner clones url into path.
type Cloner func(ctx context.Context, url, path string) (*gitlib.Repository, error)

func defaultCloner(ctx context.Context, url, path string) (*gitlib.Repository, error) {
	return gitlib.Clone(ctx, url, path)
}

// Extractor obtains local repository copies and extracts their commit records.
type Extractor struct {
	downloadDir  string
	cloneTimeout time.Duration
	allBranches  bool
	logger       *slog.Logger
	clone        Cloner

	locks   *keyedMutex
	cache   *lru.Cache[string, []Record]
	flights singleflight.Group

	cacheSize int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCacheSize sets the summary cache capacity.
func WithCacheSize(n int) Option {
	return func(e *Extractor) {
		e.cacheSize = n
	}
}

// WithCloneTimeout sets the per-clone timeout.
func WithCloneTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		e.cloneTimeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// WithAllBranches walks every local branch instead of HEAD only.
func WithAllBranches(all bool) Option {
	return func(e *Extractor) {
		e.allBranches = all
	}
}

// WithCloner replaces the clone implementation.
func WithCloner(c Cloner) Option {
	return func(e *Extractor) {
		e.clone = c
	}
}

// NewExtractor creates an Extractor storing clones under downloadDir,
// creating the directory if it does not exist.
func NewExtractor(downloadDir string, opts ...Option) (*Extractor, error) {
	e := &Extractor{
		downloadDir:  downloadDir,
		cloneTimeout: DefaultCloneTimeout,
		logger:       slog.Default(),
		clone:        defaultCloner,
		locks:        newKeyedMutex(),
		cacheSize:    DefaultCacheSize,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.cacheSize <= 0 {
		e.cacheSize = DefaultCacheSize
	}

	e.cache = lru.New(lru.WithMaxEntries[string, []Record](e.cacheSize))

	err := os.MkdirAll(downloadDir, dirPerm)
	if err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	return e, nil
}

// DownloadDir returns the directory clones are stored in.
func (e *Extractor) DownloadDir() string {
	return e.downloadDir
}

// LocalPath returns where the local copy of urlOrPath lives. A remote copy
// must land in its own entry directly under the download directory.
func (e *Extractor) LocalPath(urlOrPath string) (string, error) {
	if isDir(urlOrPath) {
		return urlOrPath, nil
	}

	name := ShortName(urlOrPath)
	switch name {
	case "", ".", "..":
		return "", fmt.Errorf("%w: %s: no repository name", ErrRepoUnavailable, urlOrPath)
	}

	target := filepath.Join(e.downloadDir, name)

	rel, err := filepath.Rel(e.downloadDir, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s: resolves outside %s", ErrRepoUnavailable, urlOrPath, e.downloadDir)
	}

	return target, nil
}

// ObtainLocalCopy opens urlOrPath if it is a local directory, otherwise opens
// the copy under the download directory, cloning it first when absent.
// The caller must Free the returned repository.
func (e *Extractor) ObtainLocalCopy(ctx context.Context, urlOrPath string) (*gitlib.Repository, error) {
	target, err := e.LocalPath(urlOrPath)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(target)
	defer unlock()

	if isDir(target) {
		e.logger.DebugContext(ctx, "loading repository", "path", target)

		repo, err := gitlib.OpenRepository(target)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRepoUnavailable, err)
		}

		return repo, nil
	}

	if !gitlib.IsRemoteURL(urlOrPath) {
		if _, err := os.Stat(urlOrPath); err != nil {
			return nil, fmt.Errorf("%w: %s: no such local path and not a remote URL", ErrRepoUnavailable, urlOrPath)
		}
	}

	e.logger.InfoContext(ctx, "cloning repository", "url", urlOrPath, "path", target)

	cloneCtx, cancel := context.WithTimeout(ctx, e.cloneTimeout)
	defer cancel()

	repo, err := e.clone(cloneCtx, urlOrPath, target)
	if err != nil {
		removeErr := os.RemoveAll(target)
		if removeErr != nil {
			e.logger.WarnContext(ctx, "remove partial clone", "path", target, "error", removeErr)
		}

		return nil, fmt.Errorf("%w: %w", ErrRepoUnavailable, err)
	}

	return repo, nil
}

// Summary returns every commit record of urlOrPath, memoized by the raw
// argument. Concurrent misses for the same key share one walk, which is
// not canceled when one of its callers gives up. The returned slice is
// owned by the caller.
func (e *Extractor) Summary(ctx context.Context, urlOrPath string) ([]Record, error) {
	if records, ok := e.cache.Get(urlOrPath); ok {
		return cloneRecords(records), nil
	}

	walkCtx := context.WithoutCancel(ctx)

	ch := e.flights.DoChan(urlOrPath, func() (any, error) {
		if records, ok := e.cache.Get(urlOrPath); ok {
			return records, nil
		}

		records, err := e.collect(walkCtx, urlOrPath)
		if err != nil {
			return nil, err
		}

		e.cache.Put(urlOrPath, records)

		return records, nil
	})

	var res singleflight.Result

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	if res.Err != nil {
		return nil, res.Err
	}

	records, ok := res.Val.([]Record)
	if !ok {
		return nil, errors.New("summary: unexpected result type")
	}

	return cloneRecords(records), nil
}

// CacheStats exposes the summary cache counters.
func (e *Extractor) CacheStats() lru.Stats {
	return e.cache.Stats()
}

func (e *Extractor) collect(ctx context.Context, urlOrPath string) ([]Record, error) {
	repo, err := e.ObtainLocalCopy(ctx, urlOrPath)
	if err != nil {
		return nil, err
	}
	defer repo.Free()

	records := []Record{}

	for rec, recErr := range e.Extract(ctx, repo) {
		if recErr != nil {
			return nil, recErr
		}

		records = append(records, rec)
	}

	e.logger.DebugContext(ctx, "extracted commits", "repo", urlOrPath, "count", len(records))

	return records, nil
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)

	return out
}

func isDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}

// keyedMutex serializes work per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()

	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}

	m.refs++
	k.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--

		if m.refs == 0 {
			delete(k.locks, key)
		}

		k.mu.Unlock()
	}
}
