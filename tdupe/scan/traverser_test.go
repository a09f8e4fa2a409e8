package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/treedupe/tdupe/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraverser(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{"RegularFilesOnly", testTraverserRegularFilesOnly},
		{"HiddenEntriesSkippedByDefault", testTraverserHiddenSkipped},
		{"HiddenEntriesIncludedWhenConfigured", testTraverserHiddenIncluded},
		{"SymlinksNotFollowed", testTraverserSymlinks},
		{"IgnoreFileHonoured", testTraverserIgnoreFile},
		{"FileRoot", testTraverserFileRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func testTraverserRegularFilesOnly(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, filepath.Join(tempDir, "a", "x"))
	writeFile(t, filepath.Join(tempDir, "a", "deep", "y"))
	writeFile(t, filepath.Join(tempDir, "z"))

	traverser := NewTraverser(config.ScanConfig{})
	files, err := traverser.EnumerateFiles(context.Background(), []string{tempDir})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(tempDir, "a", "x"),
		filepath.Join(tempDir, "a", "deep", "y"),
		filepath.Join(tempDir, "z"),
	}, files)
}

func testTraverserHiddenSkipped(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, filepath.Join(tempDir, "visible"))
	writeFile(t, filepath.Join(tempDir, ".hidden"))
	writeFile(t, filepath.Join(tempDir, ".hiddendir", "inner"))

	traverser := NewTraverser(config.ScanConfig{})
	files, err := traverser.EnumerateFiles(context.Background(), []string{tempDir})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{filepath.Join(tempDir, "visible")}, files)
}

func testTraverserHiddenIncluded(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, filepath.Join(tempDir, "visible"))
	writeFile(t, filepath.Join(tempDir, ".hidden"))

	traverser := NewTraverser(config.ScanConfig{IncludeHidden: true})
	files, err := traverser.EnumerateFiles(context.Background(), []string{tempDir})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.Join(tempDir, "visible"),
		filepath.Join(tempDir, ".hidden"),
	}, files)
}

func testTraverserSymlinks(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, filepath.Join(tempDir, "real", "x"))

	// A symlinked directory must not be followed: the file beneath it would
	// otherwise be enumerated twice.
	err := os.Symlink(filepath.Join(tempDir, "real"), filepath.Join(tempDir, "link"))
	if err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(tempDir, "real", "x"), filepath.Join(tempDir, "filelink")))

	traverser := NewTraverser(config.ScanConfig{})
	files, err := traverser.EnumerateFiles(context.Background(), []string{tempDir})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{filepath.Join(tempDir, "real", "x")}, files)
}

func testTraverserIgnoreFile(t *testing.T) {
	tempDir := t.TempDir()
	writeFile(t, filepath.Join(tempDir, "kept"))
	writeFile(t, filepath.Join(tempDir, "skipped.tmp"))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, IgnoreFileName), []byte("*.tmp\n"), 0o644))

	traverser := NewTraverser(config.ScanConfig{})
	files, err := traverser.EnumerateFiles(context.Background(), []string{tempDir})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{filepath.Join(tempDir, "kept")}, files)
}

func testTraverserFileRoot(t *testing.T) {
	tempDir := t.TempDir()
	target := filepath.Join(tempDir, "standalone")
	writeFile(t, target)

	traverser := NewTraverser(config.ScanConfig{})
	files, err := traverser.EnumerateFiles(context.Background(), []string{target})
	require.NoError(t, err)

	assert.Equal(t, []string{target}, files)
}
