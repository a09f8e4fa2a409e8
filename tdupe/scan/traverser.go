// Package scan enumerates candidate files under the configured root paths and
// runs the one-time file-count pass that tells every ancestor directory how
// many regular files live beneath it.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ZanzyTHEbar/treedupe/tdupe/config"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/conc/pool"
)

// IgnoreFileName is the per-directory ignore file honoured during enumeration
const IgnoreFileName = ".tdupe_ignore"

// Traverser walks directory trees with bounded concurrency, collecting the
// paths of regular files. Symlinked directories are not followed and symlinks
// are never reported as regular files, so each file is enumerated at most once.
type Traverser struct {
	maxWorkers    int
	includeHidden bool
	mu            sync.RWMutex
	visitedDirs   map[string]bool
}

// TraversalStats tracks counters during an enumeration run
type TraversalStats struct {
	DirsProcessed  int64
	FilesCollected int64
	ErrorsFound    int64
}

// NewTraverser creates a traverser configured from the scan settings
func NewTraverser(cfg config.ScanConfig) *Traverser {
	workers := cfg.Workers
	if workers <= 0 {
		workers = min(max(runtime.NumCPU()*2, 4), 32)
	}
	return &Traverser{
		maxWorkers:    workers,
		includeHidden: cfg.IncludeHidden,
		visitedDirs:   make(map[string]bool),
	}
}

// EnumerateFiles walks all roots breadth-first and returns the paths of every
// regular file found. Each returned path is absolute and cleaned.
func (tr *Traverser) EnumerateFiles(ctx context.Context, roots []string) ([]string, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("no root paths to enumerate")
	}

	var files []string
	var filesMu sync.Mutex
	stats := &TraversalStats{}

	currentLevel := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to stat root %s: %w", abs, err)
		}
		if !info.IsDir() {
			// A root that is itself a regular file is a candidate of its parent
			if info.Mode().IsRegular() {
				files = append(files, filepath.Clean(abs))
			}
			continue
		}
		currentLevel = append(currentLevel, filepath.Clean(abs))
	}

	// Process directories level by level with a bounded pool per level
	for len(currentLevel) > 0 {
		nextLevel := make([]string, 0)
		var nextLevelMu sync.Mutex

		levelPool := pool.New().WithMaxGoroutines(tr.maxWorkers).WithContext(ctx)

		for _, dir := range currentLevel {
			levelPool.Go(func(ctx context.Context) error {
				childDirs, childFiles, err := tr.processDir(ctx, dir)
				if err != nil {
					atomic.AddInt64(&stats.ErrorsFound, 1)
					slog.Error("Error processing directory",
						"path", dir,
						"error", err)
					return err
				}

				atomic.AddInt64(&stats.DirsProcessed, 1)
				atomic.AddInt64(&stats.FilesCollected, int64(len(childFiles)))

				filesMu.Lock()
				files = append(files, childFiles...)
				filesMu.Unlock()

				nextLevelMu.Lock()
				nextLevel = append(nextLevel, childDirs...)
				nextLevelMu.Unlock()
				return nil
			})
		}

		if err := levelPool.Wait(); err != nil {
			return files, err
		}

		currentLevel = nextLevel
	}

	slog.Info("Enumeration completed",
		"dirs", atomic.LoadInt64(&stats.DirsProcessed),
		"files", atomic.LoadInt64(&stats.FilesCollected),
		"errors", atomic.LoadInt64(&stats.ErrorsFound))

	return files, nil
}

// processDir reads one directory and splits its entries into child directories
// and regular-file paths.
func (tr *Traverser) processDir(ctx context.Context, dir string) (dirs []string, files []string, err error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	// Prevent duplicates when roots overlap
	tr.mu.RLock()
	seen := tr.visitedDirs[dir]
	tr.mu.RUnlock()
	if seen {
		return nil, nil, nil
	}
	tr.mu.Lock()
	tr.visitedDirs[dir] = true
	tr.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	ignored := tr.loadIgnoreFile(dir)

	for _, entry := range entries {
		name := entry.Name()
		if !tr.includeHidden && strings.HasPrefix(name, ".") {
			continue
		}

		childPath := filepath.Join(dir, name)
		if ignored != nil && ignored.MatchesPath(childPath) {
			slog.Debug("Ignoring entry", "path", childPath)
			continue
		}

		switch {
		case entry.IsDir():
			dirs = append(dirs, childPath)
		case entry.Type().IsRegular():
			files = append(files, childPath)
		default:
			// Symlinks, sockets, devices are not candidates
			slog.Debug("Skipping non-regular entry", "path", childPath)
		}
	}

	return dirs, files, nil
}

// loadIgnoreFile compiles the directory's ignore file, if present
func (tr *Traverser) loadIgnoreFile(dir string) *ignore.GitIgnore {
	ignorePath := filepath.Join(dir, IgnoreFileName)
	if _, err := os.Stat(ignorePath); err != nil {
		return nil
	}

	compiled, err := ignore.CompileIgnoreFile(ignorePath)
	if err != nil {
		slog.Warn("Failed to compile ignore file",
			"path", ignorePath,
			"error", err)
		return nil
	}
	return compiled
}
