package cache

import (
	"encoding/json"
	"fmt"
	"sort"

	"gittab/internal/logging"
)

// Args carries a call's named argument values for key derivation and skip
// predicates.
type Args map[string]interface{}

// Plan declares how one cacheable method participates in caching: the key
// prefix naming the method, the ordered subset of arguments that derive
// the key, and an optional predicate that bypasses caching for a given
// call. Arguments not named in KeyList are ignored for key purposes; two
// calls differing only in an undeclared argument share one cache entry,
// so every argument that affects the result must be declared.
type Plan struct {
	KeyPrefix string
	KeyList   []string
	SkipIf    func(Args) bool
}

// Key derives the cache key for a call on the given owner.
func (p Plan) Key(owner string, args Args) string {
	values := make([]string, 0, len(p.KeyList))
	for _, name := range p.KeyList {
		values = append(values, RenderArg(args[name]))
	}
	return BuildKey(p.KeyPrefix, owner, values...)
}

// Exec runs compute through the cache: on a hit the stored result is
// decoded and returned without invoking compute; on a miss compute runs
// and its result is stored under the derived key. A nil backend, a
// satisfied skip predicate, or an undecodable stored payload all fall
// through to compute. A failed store is logged as a warning; the computed
// result is still returned.
func Exec[T any](backend Backend, plan Plan, owner string, args Args, logger *logging.Logger, compute func() (T, error)) (T, error) {
	if backend == nil || (plan.SkipIf != nil && plan.SkipIf(args)) {
		return compute()
	}

	key := plan.Key(owner, args)

	payload, found, err := backend.Get(key)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("cache get for %s: %w", key, err)
	}
	if found {
		var cached T
		if err := json.Unmarshal(payload, &cached); err == nil {
			logger.Debug("Cache hit", map[string]interface{}{"key": key})
			return cached, nil
		}
		// Undecodable payload is a miss; recompute and overwrite.
		logger.Warn("Cache entry undecodable, recomputing", map[string]interface{}{"key": key})
	}

	result, err := compute()
	if err != nil {
		return result, err
	}

	payload, err = json.Marshal(result)
	if err != nil {
		logger.Warn("Failed to encode result for cache", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return result, nil
	}
	if err := backend.Set(key, payload); err != nil {
		logger.Warn("Failed to store result in cache", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
	logger.Debug("Cache miss, stored", map[string]interface{}{"key": key})
	return result, nil
}

// OwnedKeys returns the keys on backend whose owner component matches
// owner, in listing order.
func OwnedKeys(backend Backend, owner string) ([]string, error) {
	infos, err := backend.ListCachedKeys()
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, info := range infos {
		if KeyOwner(info.Key) == owner {
			keys = append(keys, info.Key)
		}
	}
	return keys, nil
}

// InvalidateOwner clears owned entries on a shared backend without ever
// touching another owner's keys. With methods, only owned entries whose
// method component is named are cleared; with pattern, only owned keys
// matching the glob. Supplying both is rejected.
func InvalidateOwner(backend Backend, owner string, methods []string, pattern string) (int, error) {
	if len(methods) > 0 && pattern != "" {
		return 0, ErrAmbiguousInvalidation
	}

	owned, err := OwnedKeys(backend, owner)
	if err != nil {
		return 0, err
	}

	var doomed []string
	switch {
	case len(methods) > 0:
		wanted := make(map[string]bool, len(methods))
		for _, m := range methods {
			wanted[m] = true
		}
		for _, key := range owned {
			if wanted[KeyMethod(key)] {
				doomed = append(doomed, key)
			}
		}
	case pattern != "":
		for _, key := range owned {
			if MatchPattern(key, pattern) {
				doomed = append(doomed, key)
			}
		}
	default:
		doomed = owned
	}

	sort.Strings(doomed)
	return backend.Invalidate(doomed...)
}
