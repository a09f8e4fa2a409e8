package scan

import (
	"context"
	"log/slog"

	"github.com/ZanzyTHEbar/treedupe/tdupe/config"
	"github.com/ZanzyTHEbar/treedupe/tdupe/pathtrie"
)

// CountFiles runs the one-time file-count pass: it enumerates every regular
// file under the given roots and populates countTrie so that every ancestor
// directory (up to and including "/") maps to the number of regular files
// beneath it. The pass runs after the much more expensive hashing pipeline, so
// the O(files * depth) accumulation is acceptable.
//
// Enumeration failures are logged once and reported via the returned error;
// the count trie is left untouched in that case.
func CountFiles(ctx context.Context, roots []string, cfg config.ScanConfig, countTrie *pathtrie.Trie) error {
	traverser := NewTraverser(cfg)

	files, err := traverser.EnumerateFiles(ctx, roots)
	if err != nil {
		slog.Error("file-count pass failed", "error", err)
		return err
	}

	// Stage the file paths in their own trie first; the trie deduplicates
	// paths reached through overlapping roots before any counting happens.
	fileTrie := pathtrie.New()
	for _, file := range files {
		fileTrie.Insert(file, struct{}{})
	}

	AccumulateCounts(fileTrie, countTrie)

	slog.Debug("file-count pass complete",
		"files", fileTrie.Len(),
		"directories", countTrie.Len())

	return nil
}

// AccumulateCounts walks the staged file trie and, for every file path,
// increments the count of each ancestor directory. The last path component is
// the filename and is never counted as a directory; the empty prefix counts as
// the root "/".
func AccumulateCounts(fileTrie *pathtrie.Trie, countTrie *pathtrie.Trie) {
	fileTrie.Walk(func(path string, _ interface{}) bool {
		// Ascend the separators right to left, one increment per ancestor
		for i := len(path) - 1; i >= 0; i-- {
			if path[i] != '/' {
				continue
			}
			dir := path[:i]
			if i == 0 {
				dir = "/"
			}
			countTrie.IncrementCount(dir, 1)
		}
		return false
	})
}
