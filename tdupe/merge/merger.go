// Package merge implements the tree-merger core of the duplicate detection
// pipeline. Files that upstream deduplication has already matched by content
// are fed in one at a time; the merger aggregates them bottom-up into
// directory records and reports whole directories whose content duplicates
// another directory, in preference to listing their files individually.
package merge

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/treedupe/tdupe/hashing"
	"github.com/ZanzyTHEbar/treedupe/tdupe/index"
	"github.com/ZanzyTHEbar/treedupe/tdupe/pathtrie"
	"github.com/ZanzyTHEbar/treedupe/tdupe/scan"

	"github.com/ZanzyTHEbar/assert-lib"
)

// dirClass is one equivalence class inside a fingerprint bucket: directories
// that share the rolling fingerprint AND compare equal by digest multiset.
// Fingerprint collisions coexist in the same bucket as distinct classes.
type dirClass struct {
	rep  *Directory
	dirs []*Directory
}

// TreeMerger discovers whole-directory duplicates from a stream of matched
// files. It owns every Directory record through the directory trie; children
// links and grouping-table entries are non-owning back-references.
//
// The merger is single-threaded by contract: Feed calls are serialized by the
// caller and Finish runs synchronously to completion.
type TreeMerger struct {
	session *Session

	dirTrie     *pathtrie.Trie         // directory path -> *Directory
	countTrie   *pathtrie.Trie         // directory path -> candidate file count
	resultTable map[uint64][]*dirClass // fingerprint -> equivalence classes
	validDirs   []*Directory           // directories that received files directly
	dirIndex    *index.DirIndex
	sinks       []Sink
	metrics     *MetricsCollector
	asserts     *assert.AssertHandler
	logger      *slog.Logger
	countOK     bool

	closeOnce sync.Once
}

// New creates a tree merger for one run and immediately performs the one-time
// file-count pass over the session's root paths. A failed count pass leaves
// the merger usable, but directories missing from the count trie never fill
// up, so few or no groups will be reported.
func New(session *Session, sinks ...Sink) *TreeMerger {
	tm := &TreeMerger{
		session:     session,
		dirTrie:     pathtrie.New(),
		countTrie:   pathtrie.New(),
		resultTable: make(map[uint64][]*dirClass),
		dirIndex:    index.NewDirIndex(),
		sinks:       sinks,
		metrics:     NewMetricsCollector(),
		asserts:     assert.NewAssertHandler(),
		logger:      session.Logger,
		countOK:     true,
	}

	if err := scan.CountFiles(session.Ctx, session.Settings.Paths, session.Settings.Scan, tm.countTrie); err != nil {
		tm.logger.Error("count pass failed, expected counts will be missing",
			"run", session.ID,
			"error", err)
		tm.countOK = false
	}

	tm.logger.Debug("tree merger ready",
		"run", session.ID,
		"roots", session.Settings.Paths,
		"counted_dirs", tm.countTrie.Len())

	return tm
}

// Feed folds one matched file into its owning directory record, creating the
// record on first sight. Each (directory, file) pair must be fed at most once;
// duplicate feeds corrupt the rolling fingerprint.
func (tm *TreeMerger) Feed(file *hashing.File) {
	if file == nil || file.Path == "" || file.Digest == nil || file.Digest.Len() == 0 {
		tm.asserts.Assert(tm.session.Ctx, false, "feed requires a file with a path and a non-empty digest")
		return
	}

	dirname := pathtrie.ParentDir(file.Path)

	directory := tm.lookupDir(dirname)
	if directory == nil {
		directory = NewDirectory(dirname)
		directory.fileCount = tm.countTrie.LookupCount(dirname)
		tm.dirTrie.Insert(dirname, directory)
		tm.dirIndex.Intern(dirname)
		tm.validDirs = append(tm.validDirs, directory)
		tm.metrics.Update(func(m *MergeMetrics) { m.DirsTracked++ })
	}

	directory.Add(file)
	tm.metrics.Update(func(m *MergeMetrics) { m.FilesFed++ })

	// The directory reached the number of candidate files beneath it
	if directory.IsFull() {
		tm.insertDir(directory)
	}
}

// Finish folds every directory bottom-up into its parent up to the root,
// grouping the ones that are full, then extracts the duplicate groups to the
// sinks.
// It must not be called until feeding is complete; afterwards the computation
// is pure and deterministic.
func (tm *TreeMerger) Finish() error {
	if !tm.countOK {
		tm.logger.Warn("finishing without a complete count pass; most directories cannot fill up",
			"run", tm.session.ID)
	}
	tm.promote()
	return tm.extract()
}

// Stats returns the merger's current metrics snapshot
func (tm *TreeMerger) Stats() *MergeMetrics {
	snapshot := tm.metrics.Snapshot()
	tracked, full, reported := tm.dirIndex.Counts()
	snapshot.DirsTracked = int64(tracked)
	snapshot.DirsFull = int64(full)
	snapshot.DirsReported = int64(reported)
	return snapshot
}

// Index exposes the directory lifecycle index for stores and inspection
func (tm *TreeMerger) Index() *index.DirIndex {
	return tm.dirIndex
}

// Destroy releases all owned state. Directory records, children links and
// grouping-table entries all become invalid; callers must not retain them.
func (tm *TreeMerger) Destroy() {
	tm.closeOnce.Do(func() {
		tm.dirTrie = nil
		tm.countTrie = nil
		tm.resultTable = nil
		tm.validDirs = nil
		tm.dirIndex = nil
		tm.sinks = nil
	})
}

// lookupDir fetches the live record for a directory path, nil when unknown
func (tm *TreeMerger) lookupDir(path string) *Directory {
	value, found := tm.dirTrie.Lookup(path)
	if !found {
		return nil
	}
	return value.(*Directory)
}

// insertDir places a full directory into the grouping table, keyed by its
// rolling fingerprint. Within a bucket the multiset equality predicate splits
// fingerprint collisions into distinct equivalence classes. Each directory is
// inserted at most once.
func (tm *TreeMerger) insertDir(directory *Directory) {
	if directory.grouped {
		return
	}
	directory.grouped = true

	if id, ok := tm.dirIndex.Lookup(directory.Path); ok {
		tm.dirIndex.MarkFull(id)
	}

	bucket := tm.resultTable[directory.Hash()]
	for _, class := range bucket {
		if class.rep.Equal(directory) {
			class.dirs = append(class.dirs, directory)
			return
		}
	}
	tm.resultTable[directory.Hash()] = append(bucket, &dirClass{
		rep:  directory,
		dirs: []*Directory{directory},
	})
}

// promote repeatedly lifts directories one level up, deepest level first, so
// every record is processed only after all of its descendants have merged into
// it. Whether or not a directory is full it folds into its parent; fullness
// only gates entry into the grouping table, since a parent missing any
// descendant file can never fill up either.
func (tm *TreeMerger) promote() {
	byDepth := make(map[int][]*Directory)
	maxDepth := 0
	enqueue := func(d *Directory) {
		depth := d.Depth()
		byDepth[depth] = append(byDepth[depth], d)
		if depth > maxDepth {
			maxDepth = depth
		}
	}

	for _, directory := range tm.validDirs {
		enqueue(directory)
	}
	tm.validDirs = nil

	for depth := maxDepth; depth >= 0; depth-- {
		for _, directory := range byDepth[depth] {
			// All children of this directory have already folded in;
			// a full directory is now a grouping candidate.
			if directory.IsFull() {
				tm.insertDir(directory)
			}

			parentPath := pathtrie.ParentDir(directory.Path)
			if parentPath == directory.Path {
				// The root has no parent; this branch terminates here
				continue
			}

			parent := tm.lookupDir(parentPath)
			if parent == nil {
				parent = NewDirectory(parentPath)
				parent.fileCount = tm.countTrie.LookupCount(parentPath)
				tm.dirTrie.Insert(parentPath, parent)
				tm.dirIndex.Intern(parentPath)
				enqueue(parent)
				tm.metrics.Update(func(m *MergeMetrics) { m.DirsTracked++ })
			}

			// Fold the aggregate into the parent; commutativity holds at
			// every level because Add commutes.
			for _, file := range directory.Files() {
				parent.Add(file)
			}
			parent.children = append(parent.children, directory)
			tm.metrics.Update(func(m *MergeMetrics) { m.Promotions++ })
		}
	}
}

// extract walks the grouping table shallowest-first, emits every class that
// keeps two or more disjoint, unreported members, and marks each reported
// subtree finished so that no
// descendant of a reported directory is ever reported again.
func (tm *TreeMerger) extract() error {
	classes := make([]*dirClass, 0, len(tm.resultTable))
	for _, bucket := range tm.resultTable {
		classes = append(classes, bucket...)
	}

	// Sort members shallowest-first within each class, then order the
	// classes themselves by their shallowest member. Processing shallow
	// groups first lets finished-propagation suppress nested duplicates
	// deterministically, independent of map iteration order.
	for _, class := range classes {
		sort.SliceStable(class.dirs, func(i, j int) bool {
			return class.dirs[i].Depth() < class.dirs[j].Depth()
		})
	}
	sort.SliceStable(classes, func(i, j int) bool {
		di, dj := classes[i].dirs[0], classes[j].dirs[0]
		if di.Depth() != dj.Depth() {
			return di.Depth() < dj.Depth()
		}
		return di.Path < dj.Path
	})

	for _, class := range classes {
		if len(class.dirs) < 2 {
			continue
		}

		// Select members before mutating any state. A member nested inside
		// another member of the same class is the same physical content seen
		// through a single-child ancestor, not a duplicate of it; a class
		// that keeps fewer than two disjoint, unreported members describes
		// no duplication at all and must not suppress anything.
		var selected []*Directory
		for _, directory := range class.dirs {
			if directory.Finished() {
				continue
			}
			nested := false
			for _, chosen := range selected {
				if isAncestorPath(chosen.Path, directory.Path) {
					nested = true
					break
				}
			}
			if !nested {
				selected = append(selected, directory)
			}
		}
		if len(selected) < 2 {
			continue
		}

		group := &DuplicateGroup{Fingerprint: class.rep.Fingerprint()}
		for _, directory := range selected {
			directory.markFinished()
			group.Members = append(group.Members, GroupMember{
				Path:      directory.Path,
				Depth:     directory.Depth(),
				FileCount: directory.MatchedCount(),
			})
			if id, ok := tm.dirIndex.Lookup(directory.Path); ok {
				tm.dirIndex.MarkReported(id)
			}
		}

		tm.metrics.Update(func(m *MergeMetrics) {
			m.GroupsEmitted++
			m.DirsReported += int64(len(group.Members))
		})

		for _, sink := range tm.sinks {
			if err := sink.EmitGroup(group); err != nil {
				return fmt.Errorf("failed to emit duplicate group: %w", err)
			}
		}
	}

	return nil
}

// isAncestorPath reports whether descendant lies strictly beneath ancestor
func isAncestorPath(ancestor, descendant string) bool {
	if ancestor == "/" {
		return descendant != "/"
	}
	return strings.HasPrefix(descendant, ancestor+"/")
}
