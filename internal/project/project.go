// Package project aggregates many repositories under one directory tree
// into combined analysis tables, with parallel bulk maintenance across
// the set.
package project

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"gittab/internal/cache"
	"gittab/internal/logging"
	"gittab/internal/repo"
)

// Options configures a ProjectDirectory and the repositories it builds.
type Options struct {
	// CacheBackend is shared by every repository; keys are scoped by
	// repository name. Nil disables caching.
	CacheBackend  cache.Backend
	DefaultBranch string
	Logger        *logging.Logger
}

// ProjectDirectory is a set of repositories analyzed together.
type ProjectDirectory struct {
	root   string
	repos  []*repo.Repository
	logger *logging.Logger
}

// Discover walks root for directories containing a .git entry and builds
// a ProjectDirectory over them. Nested repositories below a discovered
// one are not descended into.
func Discover(root string, opts Options) (*ProjectDirectory, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Name() == ".git" {
			dirs = append(dirs, filepath.Dir(path))
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("project: walking %s: %w", root, err)
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("project: no repositories under %s", root)
	}
	sort.Strings(dirs)

	return FromDirs(root, dirs, opts)
}

// FromDirs builds a ProjectDirectory over an explicit list of repository
// working directories.
func FromDirs(root string, dirs []string, opts Options) (*ProjectDirectory, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("project: no repositories given")
	}

	repos := make([]*repo.Repository, 0, len(dirs))
	for _, dir := range dirs {
		r, err := repo.New(dir, repo.Options{
			CacheBackend:  opts.CacheBackend,
			DefaultBranch: opts.DefaultBranch,
			Logger:        opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}

	return &ProjectDirectory{root: root, repos: repos, logger: opts.Logger}, nil
}

// fromRepos exists for tests that inject repositories with fake runners.
func fromRepos(root string, repos []*repo.Repository, logger *logging.Logger) *ProjectDirectory {
	return &ProjectDirectory{root: root, repos: repos, logger: logger}
}

// Root returns the directory the project was discovered under.
func (p *ProjectDirectory) Root() string {
	return p.root
}

// Repositories returns the member repositories.
func (p *ProjectDirectory) Repositories() []*repo.Repository {
	return p.repos
}

// CommitRow is a repository-tagged commit row.
type CommitRow struct {
	Repository string `json:"repository"`
	repo.CommitRow
}

// BlameRow is one committer's line share across the whole project.
type BlameRow struct {
	Committer string `json:"committer"`
	LOC       int    `json:"loc"`
}

// RepoInfoRow describes one member repository.
type RepoInfoRow struct {
	Repository string `json:"repository"`
	Directory  string `json:"directory"`
	IsBare     bool   `json:"is_bare"`
	Branches   int    `json:"branches"`
	Tags       int    `json:"tags"`
}

// CommitHistory merges member commit histories, newest first. A positive
// limit is divided evenly across repositories. Per-repository failures
// are logged as warnings and skipped.
func (p *ProjectDirectory) CommitHistory(branch string, limit int, filter repo.Filter) ([]CommitRow, error) {
	perRepo := limit
	if limit > 0 {
		perRepo = limit / len(p.repos)
		if perRepo < 1 {
			perRepo = 1
		}
	}

	var rows []CommitRow
	for _, r := range p.repos {
		history, err := r.CommitHistory(branch, perRepo, filter)
		if err != nil {
			p.warnSkip(r, "commit_history", err)
			continue
		}
		for _, row := range history {
			rows = append(rows, CommitRow{Repository: r.Name(), CommitRow: row})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Date.After(rows[j].Date)
	})
	return rows, nil
}

// Blame merges member blame tables, re-grouped by committer and sorted
// by line count descending.
func (p *ProjectDirectory) Blame(rev string, filter repo.Filter) ([]BlameRow, error) {
	counts := make(map[string]int)
	for _, r := range p.repos {
		blame, err := r.Blame(rev, filter)
		if err != nil {
			p.warnSkip(r, "blame", err)
			continue
		}
		for _, row := range blame {
			counts[row.Committer] += row.LOC
		}
	}

	rows := make([]BlameRow, 0, len(counts))
	for committer, loc := range counts {
		rows = append(rows, BlameRow{Committer: committer, LOC: loc})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LOC != rows[j].LOC {
			return rows[i].LOC > rows[j].LOC
		}
		return rows[i].Committer < rows[j].Committer
	})
	return rows, nil
}

// Branches concatenates member branch tables.
func (p *ProjectDirectory) Branches() ([]repo.BranchRow, error) {
	var rows []repo.BranchRow
	for _, r := range p.repos {
		branches, err := r.Branches()
		if err != nil {
			p.warnSkip(r, "branches", err)
			continue
		}
		rows = append(rows, branches...)
	}
	return rows, nil
}

// Tags concatenates member tag tables.
func (p *ProjectDirectory) Tags() ([]repo.TagRow, error) {
	var rows []repo.TagRow
	for _, r := range p.repos {
		tags, err := r.Tags()
		if err != nil {
			p.warnSkip(r, "tags", err)
			continue
		}
		rows = append(rows, tags...)
	}
	return rows, nil
}

// BusFactor computes each member repository's bus factor.
func (p *ProjectDirectory) BusFactor(branch string, filter repo.Filter) ([]repo.BusFactorRow, error) {
	var rows []repo.BusFactorRow
	for _, r := range p.repos {
		row, err := r.BusFactor(branch, filter)
		if err != nil {
			p.warnSkip(r, "bus_factor", err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// RepoInformation describes each member repository; ref listing failures
// leave zero counts rather than aborting the table.
func (p *ProjectDirectory) RepoInformation() ([]RepoInfoRow, error) {
	rows := make([]RepoInfoRow, 0, len(p.repos))
	for _, r := range p.repos {
		row := RepoInfoRow{Repository: r.Name(), Directory: r.WorkingDir()}
		if bare, err := r.IsBare(); err == nil {
			row.IsBare = bare
		} else {
			p.warnSkip(r, "repo_information", err)
		}
		if branches, err := r.Branches(); err == nil {
			row.Branches = len(branches)
		}
		if tags, err := r.Tags(); err == nil {
			row.Tags = len(tags)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (p *ProjectDirectory) warnSkip(r *repo.Repository, op string, err error) {
	p.logger.Warn("Skipping repository in aggregate", map[string]interface{}{
		"repository": r.Name(),
		"operation":  op,
		"error":      err.Error(),
	})
}
