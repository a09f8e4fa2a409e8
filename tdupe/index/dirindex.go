// Package index assigns dense IDs to directory paths and tracks directory
// lifecycle sets (tracked, full, reported) as roaring bitmaps. The merger
// updates it as records are created, fill up, and get reported; the merger's
// stats read from it. The results store does not use it.
package index

import (
	"sync"

	"github.com/ZanzyTHEbar/treedupe/tdupe/pathtrie"

	roaring "github.com/RoaringBitmap/roaring"
)

// DirID is a dense identifier for a directory path within one merger run
type DirID uint32

// DirIndex interns directory paths to DirIDs and keeps lifecycle bitmaps
type DirIndex struct {
	mu       sync.RWMutex
	pathToID map[string]DirID
	idToPath []string

	tracked  *roaring.Bitmap
	full     *roaring.Bitmap
	reported *roaring.Bitmap
}

// NewDirIndex creates an empty directory index
func NewDirIndex() *DirIndex {
	return &DirIndex{
		pathToID: make(map[string]DirID),
		tracked:  roaring.New(),
		full:     roaring.New(),
		reported: roaring.New(),
	}
}

// Intern returns the DirID for a path, assigning the next dense ID on first
// sight and adding it to the tracked set.
func (ix *DirIndex) Intern(path string) DirID {
	key := pathtrie.NormalizePath(path)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if id, ok := ix.pathToID[key]; ok {
		return id
	}

	id := DirID(len(ix.idToPath))
	ix.pathToID[key] = id
	ix.idToPath = append(ix.idToPath, key)
	ix.tracked.Add(uint32(id))
	return id
}

// Lookup returns the DirID previously interned for path
func (ix *DirIndex) Lookup(path string) (DirID, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	id, ok := ix.pathToID[pathtrie.NormalizePath(path)]
	return id, ok
}

// Path returns the path interned under id
func (ix *DirIndex) Path(id DirID) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if int(id) >= len(ix.idToPath) {
		return "", false
	}
	return ix.idToPath[id], true
}

// MarkFull records that the directory reached its expected file count
func (ix *DirIndex) MarkFull(id DirID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.full.Add(uint32(id))
}

// MarkReported records that the directory was emitted in a duplicate group
func (ix *DirIndex) MarkReported(id DirID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.reported.Add(uint32(id))
}

// WasReported reports whether the directory was emitted
func (ix *DirIndex) WasReported(id DirID) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.reported.Contains(uint32(id))
}

// Counts returns the cardinality of the tracked, full and reported sets
func (ix *DirIndex) Counts() (tracked, full, reported uint64) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.tracked.GetCardinality(), ix.full.GetCardinality(), ix.reported.GetCardinality()
}

// ReportedPaths returns the paths of all reported directories in ID order
func (ix *DirIndex) ReportedPaths() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	paths := make([]string, 0, ix.reported.GetCardinality())
	iter := ix.reported.Iterator()
	for iter.HasNext() {
		paths = append(paths, ix.idToPath[iter.Next()])
	}
	return paths
}

// FullUnreported returns the set of directories that filled up but were never
// part of an emitted group, as a fresh bitmap the caller owns.
func (ix *DirIndex) FullUnreported() *roaring.Bitmap {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	diff := roaring.New()
	diff.Or(ix.full)
	diff.AndNot(ix.reported)
	return diff
}
