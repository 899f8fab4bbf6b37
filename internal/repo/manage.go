package repo

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gittab/internal/cache"
)

// ErrNoCacheBackend is returned by management operations on a repository
// configured without caching.
var ErrNoCacheBackend = errors.New("repo: no cache backend configured")

// CacheStats pairs this repository's footprint with the backend's global
// state. The backend may be shared, so the two counts can differ.
type CacheStats struct {
	Repository        string       `json:"repository"`
	CacheBackend      string       `json:"cache_backend"`
	RepositoryEntries int          `json:"repository_entries"`
	GlobalStats       *cache.Stats `json:"global_cache_stats"`
}

// WarmResult reports one warm run.
type WarmResult struct {
	Repository          string        `json:"repository"`
	RunID               string        `json:"run_id"`
	Success             bool          `json:"success"`
	MethodsExecuted     []string      `json:"methods_executed"`
	MethodsFailed       []string      `json:"methods_failed"`
	CacheEntriesCreated int           `json:"cache_entries_created"`
	ExecutionTime       time.Duration `json:"execution_time"`
	Errors              []string      `json:"errors"`
}

// FetchStatus reports a SafeFetchRemote call.
type FetchStatus struct {
	Repository       string `json:"repository"`
	Success          bool   `json:"success"`
	RemoteExists     bool   `json:"remote_exists"`
	ChangesAvailable bool   `json:"changes_available"`
	DryRun           bool   `json:"dry_run"`
	Message          string `json:"message"`
}

// defaultWarmMethods are warmed when the caller does not name any.
var defaultWarmMethods = []string{"commit_history", "branches", "tags", "blame", "bus_factor"}

// GetCacheStats summarizes cache usage for this repository and the
// backend as a whole.
func (r *Repository) GetCacheStats() (*CacheStats, error) {
	if r.backend == nil {
		return nil, ErrNoCacheBackend
	}

	owned, err := cache.OwnedKeys(r.backend, r.name)
	if err != nil {
		return nil, err
	}
	global, err := r.backend.Stats()
	if err != nil {
		return nil, err
	}

	return &CacheStats{
		Repository:        r.name,
		CacheBackend:      fmt.Sprintf("%T", r.backend),
		RepositoryEntries: len(owned),
		GlobalStats:       global,
	}, nil
}

// ListCachedKeys returns metadata for this repository's entries only,
// even when the backend is shared.
func (r *Repository) ListCachedKeys() ([]cache.Info, error) {
	if r.backend == nil {
		return nil, ErrNoCacheBackend
	}

	infos, err := r.backend.ListCachedKeys()
	if err != nil {
		return nil, err
	}
	owned := make([]cache.Info, 0, len(infos))
	for _, info := range infos {
		if cache.KeyOwner(info.Key) == r.name {
			owned = append(owned, info)
		}
	}
	return owned, nil
}

// InvalidateCache clears this repository's entries. With methods, only
// entries for those method names are cleared; with pattern, only keys
// matching the glob. Supplying both is rejected. Returns the number of
// entries removed.
func (r *Repository) InvalidateCache(methods []string, pattern string) (int, error) {
	if r.backend == nil {
		return 0, ErrNoCacheBackend
	}

	removed, err := cache.InvalidateOwner(r.backend, r.name, methods, pattern)
	if err != nil {
		return 0, err
	}
	r.logger.Info("Invalidated cache entries", map[string]interface{}{
		"repository": r.name,
		"removed":    removed,
	})
	return removed, nil
}

// WarmCache pre-executes extraction methods so later calls hit the
// cache. Unknown method names and per-method failures are recorded,
// not fatal; Success is true only when every method ran cleanly.
func (r *Repository) WarmCache(methods []string, limit int, filter Filter) (*WarmResult, error) {
	if r.backend == nil {
		return nil, ErrNoCacheBackend
	}
	if len(methods) == 0 {
		methods = defaultWarmMethods
	}

	result := &WarmResult{
		Repository:      r.name,
		RunID:           uuid.NewString(),
		MethodsExecuted: []string{},
		MethodsFailed:   []string{},
		Errors:          []string{},
	}

	before, err := cache.OwnedKeys(r.backend, r.name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	for _, method := range methods {
		var err error
		switch method {
		case "commit_history":
			_, err = r.CommitHistory("", limit, filter)
		case "file_change_history":
			_, err = r.FileChangeHistory("", limit, filter)
		case "revs":
			_, err = r.Revs("", limit, 0)
		case "branches":
			_, err = r.Branches()
		case "tags":
			_, err = r.Tags()
		case "blame":
			_, err = r.Blame("", filter)
		case "bus_factor":
			_, err = r.BusFactor("", filter)
		case "list_files":
			_, err = r.ListFiles("", filter)
		default:
			err = fmt.Errorf("unknown method %q", method)
		}
		if err != nil {
			result.MethodsFailed = append(result.MethodsFailed, method)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", method, err))
			r.logger.Warn("Cache warm method failed", map[string]interface{}{
				"repository": r.name,
				"method":     method,
				"error":      err.Error(),
			})
			continue
		}
		result.MethodsExecuted = append(result.MethodsExecuted, method)
	}
	result.ExecutionTime = time.Since(start)
	result.Success = len(result.MethodsFailed) == 0

	after, err := cache.OwnedKeys(r.backend, r.name)
	if err != nil {
		return nil, err
	}
	result.CacheEntriesCreated = max(0, len(after)-len(before))

	r.logger.Info("Cache warm complete", map[string]interface{}{
		"repository":      r.name,
		"run_id":          result.RunID,
		"methods":         len(result.MethodsExecuted),
		"failed":          len(result.MethodsFailed),
		"entries_created": result.CacheEntriesCreated,
	})
	return result, nil
}

// SafeFetchRemote fetches from the repository's remote, if any. A
// repository without remotes succeeds as a no-op.
func (r *Repository) SafeFetchRemote(dryRun bool) (*FetchStatus, error) {
	fetch, err := r.git.Fetch(dryRun)
	if err != nil {
		return nil, err
	}

	status := &FetchStatus{
		Repository:       r.name,
		Success:          true,
		RemoteExists:     fetch.RemoteExists,
		ChangesAvailable: fetch.ChangesAvailable,
		DryRun:           dryRun,
	}
	switch {
	case !fetch.RemoteExists:
		status.Message = "no remote configured"
	case dryRun && fetch.ChangesAvailable:
		status.Message = "changes available"
	case dryRun:
		status.Message = "up to date"
	default:
		status.Message = "fetch complete"
	}
	return status, nil
}
