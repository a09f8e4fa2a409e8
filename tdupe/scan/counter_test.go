package scan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/treedupe/tdupe/config"
	"github.com/ZanzyTHEbar/treedupe/tdupe/pathtrie"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0o644))
}

func TestCountFiles(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"AncestorCompleteness", testCountAncestorCompleteness},
		{"FilenamesAreNotDirectories", testCountFilenamesAreNotDirectories},
		{"RootFileCountsTowardsSlash", testCountRootFile},
		{"OverlappingRootsCountOnce", testCountOverlappingRoots},
		{"MissingRootFails", testCountMissingRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testCountAncestorCompleteness(t *testing.T) {
	tempDir := t.TempDir()

	files := []string{
		filepath.Join(tempDir, "a", "x"),
		filepath.Join(tempDir, "a", "sub", "y"),
		filepath.Join(tempDir, "b", "z"),
	}
	for _, file := range files {
		writeFile(t, file)
	}

	countTrie := pathtrie.New()
	err := CountFiles(context.Background(), []string{tempDir}, config.ScanConfig{}, countTrie)
	require.NoError(t, err)

	// Every ancestor prefix of every enumerated file carries the number of
	// files beneath it, all the way up to the root.
	assert.Equal(t, 3, countTrie.LookupCount(tempDir))
	assert.Equal(t, 2, countTrie.LookupCount(filepath.Join(tempDir, "a")))
	assert.Equal(t, 1, countTrie.LookupCount(filepath.Join(tempDir, "a", "sub")))
	assert.Equal(t, 1, countTrie.LookupCount(filepath.Join(tempDir, "b")))
	assert.Equal(t, 3, countTrie.LookupCount("/"))
}

func testCountFilenamesAreNotDirectories(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, filepath.Join(tempDir, "a", "x"))

	countTrie := pathtrie.New()
	err := CountFiles(context.Background(), []string{tempDir}, config.ScanConfig{}, countTrie)
	require.NoError(t, err)

	// The last path component is the filename, never a counted directory
	assert.Equal(t, 0, countTrie.LookupCount(filepath.Join(tempDir, "a", "x")))
}

func testCountRootFile(t *testing.T) {
	// A file directly below "/" counts towards the root itself; exercised on
	// the pure accumulation stage since tests cannot write to "/".
	fileTrie := pathtrie.New()
	fileTrie.Insert("/x", struct{}{})

	countTrie := pathtrie.New()
	AccumulateCounts(fileTrie, countTrie)

	assert.Equal(t, 1, countTrie.LookupCount("/"))
	assert.Equal(t, 1, countTrie.Len(), "only the root ancestor exists for /x")
}

func testCountOverlappingRoots(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, filepath.Join(tempDir, "a", "x"))

	// The same tree passed twice must not double any count: the staged file
	// trie deduplicates identical paths before accumulation.
	countTrie := pathtrie.New()
	err := CountFiles(context.Background(), []string{tempDir, filepath.Join(tempDir, "a")}, config.ScanConfig{}, countTrie)
	require.NoError(t, err)

	assert.Equal(t, 1, countTrie.LookupCount(filepath.Join(tempDir, "a")))
	assert.Equal(t, 1, countTrie.LookupCount(tempDir))
}

func testCountMissingRoot(t *testing.T) {
	countTrie := pathtrie.New()
	err := CountFiles(context.Background(), []string{"/does/not/exist"}, config.ScanConfig{}, countTrie)
	assert.Error(t, err)
}

func TestAccumulateCountsDeepPath(t *testing.T) {
	fileTrie := pathtrie.New()
	fileTrie.Insert("/a/b/c/file", struct{}{})
	fileTrie.Insert("/a/b/other", struct{}{})

	countTrie := pathtrie.New()
	AccumulateCounts(fileTrie, countTrie)

	assert.Equal(t, 1, countTrie.LookupCount("/a/b/c"))
	assert.Equal(t, 2, countTrie.LookupCount("/a/b"))
	assert.Equal(t, 2, countTrie.LookupCount("/a"))
	assert.Equal(t, 2, countTrie.LookupCount("/"))

	// No entry leaks for non-ancestor paths
	found := countTrie.Walk(func(path string, value interface{}) bool {
		return strings.Contains(path, "file") || strings.Contains(path, "other")
	})
	assert.False(t, found, "filenames must not appear in the count trie")
}
