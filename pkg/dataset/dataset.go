// Package dataset fetches the crypto-ecosystems TOML definitions and
// converts them into the JSON exchange file read by package ecosystem.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Sumatoshi-tech/ecodash/pkg/ecosystem"
	"github.com/Sumatoshi-tech/ecodash/pkg/gitlib"
)

// DefaultURL is the upstream ecosystems repository.
const DefaultURL = "https://github.com/electric-capital/crypto-ecosystems.git"

const (
	ecosystemsDir = "ecosystems"
	tomlExt       = ".toml"
	filePerm      = 0o644
)

// ErrNoDefinitions is returned when a data directory holds no TOML files.
var ErrNoDefinitions = errors.New("no ecosystem definitions found")

// definition mirrors one ecosystem TOML file.
type definition struct {
	Title               string   `toml:"title"`
	SubEcosystems       []string `toml:"sub_ecosystems"`
	GithubOrganizations []string `toml:"github_organizations"`
	Repo                []struct {
		URL  string   `toml:"url"`
		Tags []string `toml:"tags"`
	} `toml:"repo"`
}

// Fetch replaces dir with a fresh clone of url.
func Fetch(ctx context.Context, url, dir string, timeout time.Duration) error {
	err := os.RemoveAll(dir)
	if err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	slog.InfoContext(ctx, "cloning ecosystem dataset", "url", url, "dir", dir)

	repo, err := gitlib.Clone(ctx, url, dir)
	if err != nil {
		return fmt.Errorf("fetch dataset: %w", err)
	}

	repo.Free()

	return nil
}

// Build parses every TOML definition under dataDir/ecosystems (or dataDir
// itself when that subdirectory is absent). Files without a title are
// skipped; definitions sharing a title are merged.
func Build(dataDir string) (map[string]ecosystem.Project, error) {
	root := filepath.Join(dataDir, ecosystemsDir)
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		root = dataDir
	}

	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}

			return nil
		}

		if strings.EqualFold(filepath.Ext(path), tomlExt) {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDefinitions, root)
	}

	slices.Sort(files)

	projects := make(map[string]ecosystem.Project)

	for _, path := range files {
		def, parseErr := parseFile(path)
		if parseErr != nil {
			return nil, parseErr
		}

		if def.Title == "" {
			slog.Warn("skipping definition without title", "file", path)

			continue
		}

		projects[def.Title] = merge(projects[def.Title], def)
	}

	return projects, nil
}

// Export builds the index from dataDir and writes it to outputPath as
// indented JSON. It returns the number of projects written.
func Export(dataDir, outputPath string) (int, error) {
	projects, err := Build(dataDir)
	if err != nil {
		return 0, err
	}

	data, err := json.MarshalIndent(projects, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode exchange file: %w", err)
	}

	err = writeAtomic(outputPath, data)
	if err != nil {
		return 0, err
	}

	return len(projects), nil
}

func parseFile(path string) (definition, error) {
	var def definition

	data, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("read %s: %w", path, err)
	}

	err = toml.Unmarshal(data, &def)
	if err != nil {
		return def, fmt.Errorf("parse %s: %w", path, err)
	}

	return def, nil
}

func merge(p ecosystem.Project, def definition) ecosystem.Project {
	seen := make(map[string]struct{}, len(p.Repos))
	for _, r := range p.Repos {
		seen[r.URL] = struct{}{}
	}

	for _, r := range def.Repo {
		if r.URL == "" {
			continue
		}

		if _, dup := seen[r.URL]; dup {
			continue
		}

		seen[r.URL] = struct{}{}

		repo := ecosystem.Repository{URL: r.URL}
		if len(r.Tags) > 0 {
			repo.Tags = r.Tags
		}

		p.Repos = append(p.Repos, repo)
	}

	if p.Repos == nil {
		p.Repos = []ecosystem.Repository{}
	}

	p.SubEcosystems = appendUnique(p.SubEcosystems, def.SubEcosystems)
	p.GithubOrganizations = appendUnique(p.GithubOrganizations, def.GithubOrganizations)

	return p
}

func appendUnique(dst, src []string) []string {
	for _, s := range src {
		if !slices.Contains(dst, s) {
			dst = append(dst, s)
		}
	}

	return dst
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".ecodash-export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err == nil {
		err = os.Chmod(tmpName, filePerm)
	}

	if err == nil {
		err = os.Rename(tmpName, path)
	}

	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
