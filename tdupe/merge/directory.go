package merge

import (
	"github.com/ZanzyTHEbar/treedupe/tdupe/hashing"
	"github.com/ZanzyTHEbar/treedupe/tdupe/pathtrie"
)

// Directory aggregates every file matched so far beneath one directory path.
// Its rolling fingerprint and digest multiset are accumulated commutatively,
// so the result is independent of the order files are fed in.
type Directory struct {
	// Path is the canonical directory path without trailing slash,
	// immutable after creation.
	Path string

	knownFiles   []*hashing.File
	children     []*Directory
	commonHash   uint64
	hashMultiset map[string]int
	fileCount    int
	finished     bool
	grouped      bool
}

// NewDirectory creates an empty record with a zeroed fingerprint. The expected
// file count is set by the caller from the count trie right after creation.
func NewDirectory(path string) *Directory {
	return &Directory{
		Path:         pathtrie.NormalizePath(path),
		hashMultiset: make(map[string]int),
	}
}

// Add folds one matched file into the directory: the file joins the known
// list, the leading fingerprint word of its digest is XORed into the rolling
// fingerprint, and the digest joins the multiset. XOR and multiset insertion
// both commute, which keeps the aggregate independent of feed order.
func (d *Directory) Add(file *hashing.File) {
	d.knownFiles = append(d.knownFiles, file)
	d.commonHash ^= file.Digest.FirstWord()
	d.hashMultiset[string(file.Digest.Bytes())]++
}

// Equal reports whether two directories hold identical content. The rolling
// fingerprint is the fast path; the multiset comparison resolves fingerprint
// collisions.
func (d *Directory) Equal(other *Directory) bool {
	if d.commonHash != other.commonHash {
		return false
	}

	if len(d.hashMultiset) != len(other.hashMultiset) {
		return false
	}

	// Compare all digests manually. This only costs on collisions of the
	// rolling fingerprint.
	for digest, count := range d.hashMultiset {
		if other.hashMultiset[digest] != count {
			return false
		}
	}

	return true
}

// Hash returns the grouping-table key for this directory
func (d *Directory) Hash() uint64 {
	return d.commonHash
}

// Fingerprint returns the rolling fingerprint accumulated so far
func (d *Directory) Fingerprint() uint64 {
	return d.commonHash
}

// IsFull reports whether every candidate file beneath this directory has been
// matched. A directory with no count-trie entry keeps an expected count of
// zero and never fills up.
func (d *Directory) IsFull() bool {
	return d.fileCount > 0 && len(d.knownFiles) == d.fileCount
}

// MatchedCount returns the number of files folded in so far
func (d *Directory) MatchedCount() int {
	return len(d.knownFiles)
}

// ExpectedCount returns the total regular files beneath this directory as
// observed by the count pass.
func (d *Directory) ExpectedCount() int {
	return d.fileCount
}

// Files returns the matched files accumulated so far. The slice is owned by
// the directory; callers must not mutate it.
func (d *Directory) Files() []*hashing.File {
	return d.knownFiles
}

// Children returns the child records merged up into this one
func (d *Directory) Children() []*Directory {
	return d.children
}

// Finished reports whether this directory or one of its ancestors was already
// emitted in a duplicate group.
func (d *Directory) Finished() bool {
	return d.finished
}

// Depth returns the directory's path depth; the root "/" has depth zero
func (d *Directory) Depth() int {
	if d.Path == "/" {
		return 0
	}
	return pathtrie.Depth(d.Path)
}

// markFinished flags the directory and, transitively, every merged child so
// descendants of a reported directory are never reported again. The flag is
// monotonic; it never clears.
func (d *Directory) markFinished() {
	d.finished = true
	for _, child := range d.children {
		child.markFinished()
	}
}
