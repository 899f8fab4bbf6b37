package repo

import (
	"sort"
	"time"

	"gittab/internal/cache"
)

// BlameRow is one committer's share of current lines at a revision.
type BlameRow struct {
	Committer string `json:"committer"`
	LOC       int    `json:"loc"`
}

// BusFactorRow reports the smallest set of committers owning at least
// half of a repository's lines.
type BusFactorRow struct {
	Repository string `json:"repository"`
	BusFactor  int    `json:"bus_factor"`
}

// CumulativeBlameRow is the blame distribution at one sampled revision.
type CumulativeBlameRow struct {
	Date time.Time      `json:"date"`
	Rev  string         `json:"rev"`
	LOC  map[string]int `json:"loc"`
}

// Blame attributes every current line at rev to its committer, sorted
// by line count descending. Files git cannot blame (binaries, renames
// at odd revisions) are skipped with a debug log.
func (r *Repository) Blame(rev string, filter Filter) ([]BlameRow, error) {
	if rev == "" {
		resolved, err := r.branchOrDefault("")
		if err != nil {
			return nil, err
		}
		rev = resolved
	}

	plan := cache.Plan{
		KeyPrefix: "blame",
		KeyList:   []string{"rev", "extensions", "ignore_dirs"},
	}
	args := cache.Args{
		"rev":         rev,
		"extensions":  filter.Extensions,
		"ignore_dirs": filter.IgnoreDirs,
	}

	return cache.Exec(r.backend, plan, r.name, args, r.logger, func() ([]BlameRow, error) {
		files, err := r.git.ListFiles(rev)
		if err != nil {
			return nil, err
		}

		counts := make(map[string]int)
		for _, path := range files {
			if !filter.Keep(path) {
				continue
			}
			lines, err := r.git.Blame(rev, path)
			if err != nil {
				r.logger.Debug("skipping unblameable file", map[string]interface{}{
					"repository": r.name,
					"file":       path,
					"error":      err.Error(),
				})
				continue
			}
			for _, line := range lines {
				counts[line.Committer]++
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
	})
}

// BusFactor computes the fewest committers that together own at least
// 50% of the lines at the head of branch.
func (r *Repository) BusFactor(branch string, filter Filter) (BusFactorRow, error) {
	blame, err := r.Blame(branch, filter)
	if err != nil {
		return BusFactorRow{}, err
	}
	return BusFactorRow{Repository: r.name, BusFactor: busFactorFromBlame(blame)}, nil
}

// busFactorFromBlame walks the blame rows (already sorted by LOC
// descending) until the running share reaches half the total.
func busFactorFromBlame(blame []BlameRow) int {
	total := 0
	for _, row := range blame {
		total += row.LOC
	}
	if total == 0 {
		return 0
	}

	running := 0
	for i, row := range blame {
		running += row.LOC
		if running*2 >= total {
			return i + 1
		}
	}
	return len(blame)
}

// CumulativeBlame samples revisions on branch and computes the blame
// distribution at each one, oldest first. limit and skip behave as in
// Revs.
func (r *Repository) CumulativeBlame(branch string, limit, skip int, filter Filter) ([]CumulativeBlameRow, error) {
	revs, err := r.Revs(branch, limit, skip)
	if err != nil {
		return nil, err
	}

	rows := make([]CumulativeBlameRow, 0, len(revs))
	// Revs come back newest first; walk in reverse for a time series.
	for i := len(revs) - 1; i >= 0; i-- {
		rev := revs[i]
		blame, err := r.Blame(rev.Rev, filter)
		if err != nil {
			r.logger.Warn("skipping revision in cumulative blame", map[string]interface{}{
				"repository": r.name,
				"rev":        rev.Rev,
				"error":      err.Error(),
			})
			continue
		}
		loc := make(map[string]int, len(blame))
		for _, b := range blame {
			loc[b.Committer] = b.LOC
		}
		rows = append(rows, CumulativeBlameRow{Date: rev.Date, Rev: rev.Rev, LOC: loc})
	}
	return rows, nil
}
