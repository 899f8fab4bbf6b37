package repo

import (
	"strings"

	"gittab/internal/cache"
)

// BranchRow is one local branch.
type BranchRow struct {
	Repository string `json:"repository"`
	Branch     string `json:"branch"`
}

// TagRow is one tag.
type TagRow struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
}

// FileRow is one tracked file at a revision.
type FileRow struct {
	Repository string `json:"repository"`
	File       string `json:"file"`
	Extension  string `json:"extension"`
}

// Branches lists local branches.
func (r *Repository) Branches() ([]BranchRow, error) {
	plan := cache.Plan{KeyPrefix: "branches"}

	return cache.Exec(r.backend, plan, r.name, nil, r.logger, func() ([]BranchRow, error) {
		names, err := r.git.Branches()
		if err != nil {
			return nil, err
		}
		rows := make([]BranchRow, 0, len(names))
		for _, name := range names {
			rows = append(rows, BranchRow{Repository: r.name, Branch: name})
		}
		return rows, nil
	})
}

// Tags lists tags.
func (r *Repository) Tags() ([]TagRow, error) {
	plan := cache.Plan{KeyPrefix: "tags"}

	return cache.Exec(r.backend, plan, r.name, nil, r.logger, func() ([]TagRow, error) {
		names, err := r.git.Tags()
		if err != nil {
			return nil, err
		}
		rows := make([]TagRow, 0, len(names))
		for _, name := range names {
			rows = append(rows, TagRow{Repository: r.name, Tag: name})
		}
		return rows, nil
	})
}

// ListFiles lists tracked files at rev, after filtering.
func (r *Repository) ListFiles(rev string, filter Filter) ([]FileRow, error) {
	if rev == "" {
		resolved, err := r.branchOrDefault("")
		if err != nil {
			return nil, err
		}
		rev = resolved
	}

	plan := cache.Plan{
		KeyPrefix: "list_files",
		KeyList:   []string{"rev", "extensions", "ignore_dirs"},
	}
	args := cache.Args{
		"rev":         rev,
		"extensions":  filter.Extensions,
		"ignore_dirs": filter.IgnoreDirs,
	}

	return cache.Exec(r.backend, plan, r.name, args, r.logger, func() ([]FileRow, error) {
		files, err := r.git.ListFiles(rev)
		if err != nil {
			return nil, err
		}
		rows := make([]FileRow, 0, len(files))
		for _, path := range files {
			if !filter.Keep(path) {
				continue
			}
			ext := ""
			if idx := strings.LastIndexByte(path, '.'); idx >= 0 {
				ext = path[idx+1:]
			}
			rows = append(rows, FileRow{Repository: r.name, File: path, Extension: ext})
		}
		return rows, nil
	})
}
