package hashing

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// Pipeline hashes batches of files concurrently, producing the File records
// the tree merger consumes.
type Pipeline struct {
	maxWorkers int
}

// NewPipeline creates a hashing pipeline. workers <= 0 selects a worker count
// based on the available CPU cores.
func NewPipeline(workers int) *Pipeline {
	if workers <= 0 {
		// CPU cores * 2 for I/O bound hashing, bounded to avoid exhaustion
		workers = min(max(runtime.NumCPU()*2, 4), 32)
	}
	return &Pipeline{maxWorkers: workers}
}

// HashFile computes the SHA-256 digest of a single file
func HashFile(path string) (*File, error) {
	handle, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer handle.Close()

	hasher := sha256.New()
	size, err := io.Copy(hasher, handle)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return &File{
		Path:   path,
		Digest: NewDigest(hasher.Sum(nil)),
		Size:   size,
	}, nil
}

// HashFiles digests all given paths using a bounded worker pool. Files that
// fail to hash are logged and skipped; the error returned is the pool's first
// context error, if any.
func (p *Pipeline) HashFiles(ctx context.Context, paths []string) ([]*File, error) {
	files := make([]*File, 0, len(paths))
	var filesMu sync.Mutex

	workers := pool.New().WithMaxGoroutines(p.maxWorkers).WithContext(ctx)

	for _, path := range paths {
		workers.Go(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			file, err := HashFile(path)
			if err != nil {
				slog.Warn("skipping unreadable file",
					"path", path,
					"error", err)
				return nil
			}

			filesMu.Lock()
			files = append(files, file)
			filesMu.Unlock()
			return nil
		})
	}

	if err := workers.Wait(); err != nil {
		return files, err
	}

	slog.Debug("hashing pipeline finished",
		"requested", len(paths),
		"hashed", len(files))

	return files, nil
}
