package repo

import (
	"sort"
	"time"

	"gittab/internal/cache"
)

// CommitRow is one commit's aggregated change stats.
type CommitRow struct {
	Date       time.Time `json:"date"`
	Author     string    `json:"author"`
	Committer  string    `json:"committer"`
	Message    string    `json:"message"`
	Lines      int       `json:"lines"`
	Insertions int       `json:"insertions"`
	Deletions  int       `json:"deletions"`
	Net        int       `json:"net"`
}

// FileChangeRow is one file edit within a commit.
type FileChangeRow struct {
	Date       time.Time `json:"date"`
	Author     string    `json:"author"`
	Committer  string    `json:"committer"`
	Message    string    `json:"message"`
	Filename   string    `json:"filename"`
	Insertions int       `json:"insertions"`
	Deletions  int       `json:"deletions"`
}

// RevRow is one revision with its commit timestamp.
type RevRow struct {
	Date time.Time `json:"date"`
	Rev  string    `json:"rev"`
}

// PunchcardRow is commit activity binned by weekday and hour.
type PunchcardRow struct {
	Weekday    int `json:"weekday"` // 0 = Sunday
	Hour       int `json:"hour"`
	Commits    int `json:"commits"`
	Lines      int `json:"lines"`
	Insertions int `json:"insertions"`
	Deletions  int `json:"deletions"`
}

// FileChangeRateRow summarizes one file's rate of change over the
// observed history window.
type FileChangeRateRow struct {
	Filename         string  `json:"filename"`
	UniqueCommitters int     `json:"unique_committers"`
	AbsChange        int     `json:"abs_change"`
	NetChange        int     `json:"net_change"`
	AbsRateOfChange  float64 `json:"abs_rate_of_change"`
	NetRateOfChange  float64 `json:"net_rate_of_change"`
	EditRate         float64 `json:"edit_rate"`
}

// CommitHistory returns one row per commit on branch, newest first.
// Commits whose file changes are entirely excluded by the filter are
// dropped. limit <= 0 means no limit.
func (r *Repository) CommitHistory(branch string, limit int, filter Filter) ([]CommitRow, error) {
	branch, err := r.branchOrDefault(branch)
	if err != nil {
		return nil, err
	}

	plan := cache.Plan{
		KeyPrefix: "commit_history",
		KeyList:   []string{"branch", "limit", "extensions", "ignore_dirs"},
	}
	args := cache.Args{
		"branch":      branch,
		"limit":       limit,
		"extensions":  filter.Extensions,
		"ignore_dirs": filter.IgnoreDirs,
	}

	return cache.Exec(r.backend, plan, r.name, args, r.logger, func() ([]CommitRow, error) {
		commits, err := r.git.Log(branch, limit)
		if err != nil {
			return nil, err
		}

		rows := make([]CommitRow, 0, len(commits))
		for _, c := range commits {
			row := CommitRow{
				Date:      c.Timestamp,
				Author:    c.Author,
				Committer: c.Committer,
				Message:   c.Message,
			}
			kept := 0
			for _, fc := range c.Files {
				if !filter.Keep(fc.Filename) {
					continue
				}
				kept++
				row.Insertions += fc.Insertions
				row.Deletions += fc.Deletions
			}
			if kept == 0 {
				continue
			}
			row.Lines = row.Insertions + row.Deletions
			row.Net = row.Insertions - row.Deletions
			rows = append(rows, row)
		}
		return rows, nil
	})
}

// FileChangeHistory returns one row per file edit on branch, newest
// first. This is the commit history exploded to file granularity.
func (r *Repository) FileChangeHistory(branch string, limit int, filter Filter) ([]FileChangeRow, error) {
	branch, err := r.branchOrDefault(branch)
	if err != nil {
		return nil, err
	}

	plan := cache.Plan{
		KeyPrefix: "file_change_history",
		KeyList:   []string{"branch", "limit", "extensions", "ignore_dirs"},
	}
	args := cache.Args{
		"branch":      branch,
		"limit":       limit,
		"extensions":  filter.Extensions,
		"ignore_dirs": filter.IgnoreDirs,
	}

	return cache.Exec(r.backend, plan, r.name, args, r.logger, func() ([]FileChangeRow, error) {
		commits, err := r.git.Log(branch, limit)
		if err != nil {
			return nil, err
		}

		var rows []FileChangeRow
		for _, c := range commits {
			for _, fc := range c.Files {
				if !filter.Keep(fc.Filename) {
					continue
				}
				rows = append(rows, FileChangeRow{
					Date:       c.Timestamp,
					Author:     c.Author,
					Committer:  c.Committer,
					Message:    c.Message,
					Filename:   fc.Filename,
					Insertions: fc.Insertions,
					Deletions:  fc.Deletions,
				})
			}
		}
		return rows, nil
	})
}

// Revs returns revisions on branch, newest first. skip > 1 samples every
// skip-th revision; with both limit and skip set, limit counts sampled
// rows.
func (r *Repository) Revs(branch string, limit, skip int) ([]RevRow, error) {
	branch, err := r.branchOrDefault(branch)
	if err != nil {
		return nil, err
	}

	plan := cache.Plan{
		KeyPrefix: "revs",
		KeyList:   []string{"branch", "limit", "skip"},
	}
	args := cache.Args{"branch": branch, "limit": limit, "skip": skip}

	return cache.Exec(r.backend, plan, r.name, args, r.logger, func() ([]RevRow, error) {
		fetchLimit := limit
		if limit > 0 && skip > 1 {
			fetchLimit = limit * skip
		}

		commits, err := r.git.Log(branch, fetchLimit)
		if err != nil {
			return nil, err
		}

		rows := make([]RevRow, 0, len(commits))
		for i, c := range commits {
			if skip > 1 && i%skip != 0 {
				continue
			}
			rows = append(rows, RevRow{Date: c.Timestamp, Rev: c.Hash})
		}
		return rows, nil
	})
}

// Punchcard bins branch commits by weekday and hour of day.
func (r *Repository) Punchcard(branch string, limit int, filter Filter) ([]PunchcardRow, error) {
	history, err := r.CommitHistory(branch, limit, filter)
	if err != nil {
		return nil, err
	}

	type bin struct{ weekday, hour int }
	bins := make(map[bin]*PunchcardRow)
	for _, row := range history {
		b := bin{int(row.Date.Weekday()), row.Date.Hour()}
		cell, ok := bins[b]
		if !ok {
			cell = &PunchcardRow{Weekday: b.weekday, Hour: b.hour}
			bins[b] = cell
		}
		cell.Commits++
		cell.Lines += row.Lines
		cell.Insertions += row.Insertions
		cell.Deletions += row.Deletions
	}

	rows := make([]PunchcardRow, 0, len(bins))
	for _, cell := range bins {
		rows = append(rows, *cell)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Weekday != rows[j].Weekday {
			return rows[i].Weekday < rows[j].Weekday
		}
		return rows[i].Hour < rows[j].Hour
	})
	return rows, nil
}

// FileChangeRates summarizes each file's change velocity over the
// observed window, sorted by absolute rate descending.
func (r *Repository) FileChangeRates(branch string, limit int, filter Filter) ([]FileChangeRateRow, error) {
	history, err := r.FileChangeHistory(branch, limit, filter)
	if err != nil {
		return nil, err
	}

	type agg struct {
		committers map[string]bool
		abs, net   int
		first      time.Time
		last       time.Time
	}
	files := make(map[string]*agg)
	for _, row := range history {
		a, ok := files[row.Filename]
		if !ok {
			a = &agg{committers: make(map[string]bool), first: row.Date, last: row.Date}
			files[row.Filename] = a
		}
		a.committers[row.Committer] = true
		a.abs += row.Insertions + row.Deletions
		a.net += row.Insertions - row.Deletions
		if row.Date.Before(a.first) {
			a.first = row.Date
		}
		if row.Date.After(a.last) {
			a.last = row.Date
		}
	}

	rows := make([]FileChangeRateRow, 0, len(files))
	for filename, a := range files {
		days := a.last.Sub(a.first).Hours() / 24
		if days < 1 {
			days = 1
		}
		absRate := float64(a.abs) / days
		netRate := float64(a.net) / days
		rows = append(rows, FileChangeRateRow{
			Filename:         filename,
			UniqueCommitters: len(a.committers),
			AbsChange:        a.abs,
			NetChange:        a.net,
			AbsRateOfChange:  absRate,
			NetRateOfChange:  netRate,
			EditRate:         absRate - netRate,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].AbsRateOfChange != rows[j].AbsRateOfChange {
			return rows[i].AbsRateOfChange > rows[j].AbsRateOfChange
		}
		return rows[i].Filename < rows[j].Filename
	})
	return rows, nil
}
