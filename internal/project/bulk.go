package project

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"gittab/internal/repo"
)

// BulkOptions configures BulkFetchAndWarm.
type BulkOptions struct {
	// Parallel fans the work out over Workers goroutines.
	Parallel bool
	// Workers bounds the fan-out; values below 1 mean 4.
	Workers int
	// DryRun makes the fetch phase non-mutating.
	DryRun bool
	// Methods to warm; empty uses the standard set.
	Methods []string
	Limit   int
	Filter  repo.Filter
}

// RepoBulkResult is one repository's outcome within a bulk run.
type RepoBulkResult struct {
	Repository string            `json:"repository"`
	Directory  string            `json:"directory"`
	Fetch      *repo.FetchStatus `json:"fetch,omitempty"`
	FetchError string            `json:"fetch_error,omitempty"`
	Warm       *repo.WarmResult  `json:"warm,omitempty"`
	WarmError  string            `json:"warm_error,omitempty"`
}

// BulkSummary counts outcomes across the run.
type BulkSummary struct {
	FetchSuccess  int `json:"fetch_success"`
	FetchFailures int `json:"fetch_failures"`
	WarmSuccess   int `json:"warm_success"`
	WarmFailures  int `json:"warm_failures"`
}

// BulkResult reports a whole bulk fetch-and-warm run. PerRepository is
// keyed by working directory, since base names need not be unique across
// the set.
type BulkResult struct {
	RunID                 string                    `json:"run_id"`
	Success               bool                      `json:"success"`
	RepositoriesProcessed int                       `json:"repositories_processed"`
	PerRepository         map[string]RepoBulkResult `json:"per_repository"`
	ExecutionTime         time.Duration             `json:"execution_time"`
	Summary               BulkSummary               `json:"summary"`
}

// BulkFetchAndWarm fetches each repository's remote and then warms its
// cache, optionally in parallel. One repository's failure never stops
// the others; every outcome lands in the per-repository map. Success is
// true when no repository failed either phase.
func (p *ProjectDirectory) BulkFetchAndWarm(opts BulkOptions) (*BulkResult, error) {
	result := &BulkResult{
		RunID:         uuid.NewString(),
		PerRepository: make(map[string]RepoBulkResult, len(p.repos)),
	}

	start := time.Now()
	outcomes := make([]RepoBulkResult, len(p.repos))

	if opts.Parallel && len(p.repos) > 1 {
		workers := opts.Workers
		if workers < 1 {
			workers = 4
		}
		sem := make(chan struct{}, workers)
		var wg sync.WaitGroup
		for i, r := range p.repos {
			wg.Add(1)
			go func(i int, r *repo.Repository) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				outcomes[i] = p.fetchAndWarmOne(r, opts)
			}(i, r)
		}
		wg.Wait()
	} else {
		for i, r := range p.repos {
			outcomes[i] = p.fetchAndWarmOne(r, opts)
		}
	}

	result.ExecutionTime = time.Since(start)
	result.RepositoriesProcessed = len(outcomes)
	result.Success = true
	for _, outcome := range outcomes {
		result.PerRepository[outcome.Directory] = outcome
		if outcome.FetchError == "" {
			result.Summary.FetchSuccess++
		} else {
			result.Summary.FetchFailures++
			result.Success = false
		}
		if outcome.Warm != nil && outcome.Warm.Success && outcome.WarmError == "" {
			result.Summary.WarmSuccess++
		} else {
			result.Summary.WarmFailures++
			result.Success = false
		}
	}

	p.logger.Info("Bulk fetch and warm complete", map[string]interface{}{
		"run_id":       result.RunID,
		"repositories": result.RepositoriesProcessed,
		"success":      result.Success,
		"duration":     result.ExecutionTime.String(),
	})
	return result, nil
}

// fetchAndWarmOne runs both phases for one repository; a fetch failure
// does not block the warm phase.
func (p *ProjectDirectory) fetchAndWarmOne(r *repo.Repository, opts BulkOptions) RepoBulkResult {
	outcome := RepoBulkResult{Repository: r.Name(), Directory: r.WorkingDir()}

	fetch, err := r.SafeFetchRemote(opts.DryRun)
	if err != nil {
		outcome.FetchError = err.Error()
		p.warnSkip(r, "fetch", err)
	} else {
		outcome.Fetch = fetch
	}

	warm, err := r.WarmCache(opts.Methods, opts.Limit, opts.Filter)
	if err != nil {
		outcome.WarmError = err.Error()
		p.warnSkip(r, "warm", err)
	} else {
		outcome.Warm = warm
	}
	return outcome
}
