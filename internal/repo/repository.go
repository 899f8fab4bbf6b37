// Package repo turns a single git repository's metadata into tabular
// records: commit history, blame, branches, tags, and derived measures
// like bus factor and punchcards. Expensive extractions go through the
// cache backend when one is configured.
package repo

import (
	"fmt"
	"path/filepath"
	"strings"

	"gittab/internal/cache"
	"gittab/internal/gitcmd"
	"gittab/internal/logging"
)

// Options configures a Repository.
type Options struct {
	// CacheBackend holds extraction results; nil disables caching.
	CacheBackend cache.Backend
	// DefaultBranch overrides branch resolution via git.
	DefaultBranch string
	Logger        *logging.Logger
	// Runner overrides git execution, for tests.
	Runner gitcmd.Runner
}

// Repository is one git repository under analysis. It is stateless apart
// from the reference to its cache backend; the same backend instance may
// be shared across repositories, with keys scoped by repository name.
type Repository struct {
	name          string
	workingDir    string
	defaultBranch string
	git           *gitcmd.Client
	backend       cache.Backend
	logger        *logging.Logger
}

// New creates a Repository rooted at workingDir.
func New(workingDir string, opts Options) (*Repository, error) {
	if workingDir == "" {
		return nil, fmt.Errorf("repo: working directory is required")
	}

	var client *gitcmd.Client
	if opts.Runner != nil {
		client = gitcmd.NewWithRunner(workingDir, opts.Runner)
	} else {
		client = gitcmd.New(workingDir)
	}

	name := filepath.Base(filepath.Clean(workingDir))
	if strings.TrimSpace(name) == "" || name == "." || name == string(filepath.Separator) {
		name = "unknown_repo"
	}

	return &Repository{
		name:          name,
		workingDir:    workingDir,
		defaultBranch: opts.DefaultBranch,
		git:           client,
		backend:       opts.CacheBackend,
		logger:        opts.Logger,
	}, nil
}

// Name returns the repository's identity, used to scope cache keys.
func (r *Repository) Name() string {
	return r.name
}

// WorkingDir returns the repository's root directory.
func (r *Repository) WorkingDir() string {
	return r.workingDir
}

// Backend returns the configured cache backend, or nil.
func (r *Repository) Backend() cache.Backend {
	return r.backend
}

// IsBare reports whether the repository has no working tree.
func (r *Repository) IsBare() (bool, error) {
	return r.git.IsBare()
}

// HasBranch reports whether a local branch exists.
func (r *Repository) HasBranch(branch string) (bool, error) {
	return r.git.HasBranch(branch)
}

// branchOrDefault resolves an empty branch argument to the configured
// default, falling back to the branch HEAD points at.
func (r *Repository) branchOrDefault(branch string) (string, error) {
	if branch != "" {
		return branch, nil
	}
	if r.defaultBranch != "" {
		return r.defaultBranch, nil
	}
	resolved, err := r.git.DefaultBranch()
	if err != nil {
		return "", fmt.Errorf("failed to resolve default branch: %w", err)
	}
	r.defaultBranch = resolved
	return resolved, nil
}

// Filter narrows extractions to certain file extensions and excludes
// directories. A nil/empty filter keeps everything.
type Filter struct {
	// Extensions keeps only files whose final dot-separated component
	// matches (no leading dot, e.g. "go", "py").
	Extensions []string
	// IgnoreDirs drops files under any path segment with these names.
	IgnoreDirs []string
}

// Keep reports whether path passes the filter.
func (f Filter) Keep(path string) bool {
	if len(f.IgnoreDirs) > 0 {
		segments := strings.Split(filepath.ToSlash(path), "/")
		dirs := segments[:max(0, len(segments)-1)]
		for _, dir := range dirs {
			for _, ignored := range f.IgnoreDirs {
				if dir == ignored {
					return false
				}
			}
		}
	}
	if len(f.Extensions) > 0 {
		parts := strings.Split(path, ".")
		ext := parts[len(parts)-1]
		for _, want := range f.Extensions {
			if ext == want {
				return true
			}
		}
		return false
	}
	return true
}
