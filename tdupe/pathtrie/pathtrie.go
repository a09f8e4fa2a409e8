// Package pathtrie provides a path-keyed ordered map backed by a compressed
// radix trie (patricia tree). Both the directory map and the file-count map of
// the tree merger are built on it.
package pathtrie

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/armon/go-radix"
)

// TrieStats tracks usage metrics for a Trie
type TrieStats struct {
	TotalKeys     int64
	Lookups       int64
	PrefixLookups int64
	Insertions    int64
	mu            sync.RWMutex
}

// Trie is a byte-path keyed associative container with O(k) operations where k
// is the key length. Keys are full paths; keys that differ only in length are
// distinct. Values are opaque to the trie.
type Trie struct {
	tree  *radix.Tree
	mu    sync.RWMutex
	stats *TrieStats
}

// New creates an empty path trie
func New() *Trie {
	return &Trie{
		tree:  radix.New(),
		stats: &TrieStats{},
	}
}

// Insert stores value under path with value-replace semantics.
// It reports whether an existing value was replaced.
func (t *Trie) Insert(path string, value interface{}) bool {
	key := NormalizePath(path)

	t.mu.Lock()
	defer t.mu.Unlock()

	_, updated := t.tree.Insert(key, value)

	t.stats.mu.Lock()
	if !updated {
		t.stats.TotalKeys++
	}
	t.stats.Insertions++
	t.stats.mu.Unlock()

	return updated
}

// Lookup finds the value stored under the exact path
func (t *Trie) Lookup(path string) (interface{}, bool) {
	key := NormalizePath(path)

	t.mu.RLock()
	defer t.mu.RUnlock()

	value, found := t.tree.Get(key)

	t.stats.mu.Lock()
	t.stats.Lookups++
	t.stats.mu.Unlock()

	return value, found
}

// LookupCount reads an integer counter stored under path, zero when absent
func (t *Trie) LookupCount(path string) int {
	value, found := t.Lookup(path)
	if !found {
		return 0
	}
	count, ok := value.(int)
	if !ok {
		slog.Warn("path trie value is not a counter", "path", path)
		return 0
	}
	return count
}

// IncrementCount bumps the integer counter stored under path by delta and
// returns the new value. Absent keys start at zero.
func (t *Trie) IncrementCount(path string, delta int) int {
	key := NormalizePath(path)

	t.mu.Lock()
	defer t.mu.Unlock()

	count := 0
	if value, found := t.tree.Get(key); found {
		if c, ok := value.(int); ok {
			count = c
		}
	}
	count += delta

	_, updated := t.tree.Insert(key, count)

	t.stats.mu.Lock()
	if !updated {
		t.stats.TotalKeys++
	}
	t.stats.Insertions++
	t.stats.mu.Unlock()

	return count
}

// Walk visits every (path, value) pair in the trie's stable iteration order.
// The visitor aborts the walk by returning true; Walk reports whether the
// visitor aborted.
func (t *Trie) Walk(fn func(path string, value interface{}) bool) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	aborted := false
	t.tree.Walk(func(key string, value interface{}) bool {
		if fn(key, value) {
			aborted = true
			return true
		}
		return false
	})
	return aborted
}

// WalkPrefix visits every pair whose path starts with the given prefix
func (t *Trie) WalkPrefix(prefix string, fn func(path string, value interface{}) bool) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	t.stats.mu.Lock()
	t.stats.PrefixLookups++
	t.stats.mu.Unlock()

	aborted := false
	t.tree.WalkPrefix(NormalizePath(prefix), func(key string, value interface{}) bool {
		if fn(key, value) {
			aborted = true
			return true
		}
		return false
	})
	return aborted
}

// Len returns the number of keys stored in the trie
func (t *Trie) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Len()
}

// GetStats returns a copy of the current trie statistics
func (t *Trie) GetStats() TrieStats {
	t.stats.mu.RLock()
	defer t.stats.mu.RUnlock()

	return TrieStats{
		TotalKeys:     t.stats.TotalKeys,
		Lookups:       t.stats.Lookups,
		PrefixLookups: t.stats.PrefixLookups,
		Insertions:    t.stats.Insertions,
	}
}

// NormalizePath ensures consistent path formatting for trie keys: forward
// slashes, cleaned components, no trailing slash except for the root.
func NormalizePath(path string) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	normalized = filepath.ToSlash(filepath.Clean(normalized))

	if len(normalized) > 1 && strings.HasSuffix(normalized, "/") {
		normalized = strings.TrimSuffix(normalized, "/")
	}

	return normalized
}

// ParentDir returns the parent directory of a normalized path. The root is its
// own parent, which terminates ancestor walks.
func ParentDir(path string) string {
	p := NormalizePath(path)
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return p
	}
	if idx == 0 {
		return "/"
	}
	return p[:idx]
}

// Depth counts the path separators in a normalized path
func Depth(path string) int {
	return strings.Count(NormalizePath(path), "/")
}
