package cache

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// KeyDelimiter separates the method, owner, and argument components of a
// derived key. Two distinct argument tuples could in principle join to the
// same string if an argument value contains the delimiter; that collision
// risk is accepted in exchange for keys that stay readable and
// pattern-matchable.
const KeyDelimiter = "|"

// NoneToken renders an absent or nil declared argument inside a key.
const NoneToken = "None"

// BuildKey derives a deterministic cache key from a method name, the owning
// repository's identity, and the rendered declared-argument values. The
// owner component keeps keys from colliding when one backend instance is
// shared across repositories.
func BuildKey(method, owner string, argValues ...string) string {
	parts := make([]string, 0, 2+len(argValues))
	parts = append(parts, method, owner)
	parts = append(parts, argValues...)
	return strings.Join(parts, KeyDelimiter)
}

// KeyOwner extracts the owner component from a derived key, or "" when the
// key does not follow the derived layout.
func KeyOwner(key string) string {
	parts := strings.SplitN(key, KeyDelimiter, 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// KeyMethod extracts the method component from a derived key.
func KeyMethod(key string) string {
	parts := strings.SplitN(key, KeyDelimiter, 2)
	return parts[0]
}

// RenderArg converts a declared argument value into its key component.
// Unordered collections are sorted first so semantically identical calls
// with differently ordered inputs derive the same key.
func RenderArg(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return NoneToken
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case []string:
		if len(val) == 0 {
			return NoneToken
		}
		sorted := make([]string, len(val))
		copy(sorted, val)
		sort.Strings(sorted)
		return strings.Join(sorted, ",")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// MatchPattern reports whether key matches a glob-style pattern where "*"
// matches any run of characters. Supports prefix ("abc*"), suffix ("*abc"),
// substring ("*abc*"), and multi-segment ("a*b*c") forms; a pattern without
// wildcards requires an exact match.
func MatchPattern(key, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return key == pattern
	}

	segments := strings.Split(pattern, "*")

	// Anchored head and tail, then fixed segments in order between them.
	if head := segments[0]; head != "" {
		if !strings.HasPrefix(key, head) {
			return false
		}
		key = key[len(head):]
	}
	if tail := segments[len(segments)-1]; tail != "" {
		if !strings.HasSuffix(key, tail) {
			return false
		}
		key = key[:len(key)-len(tail)]
	}

	for _, seg := range segments[1 : len(segments)-1] {
		if seg == "" {
			continue
		}
		idx := strings.Index(key, seg)
		if idx < 0 {
			return false
		}
		key = key[idx+len(seg):]
	}
	return true
}
