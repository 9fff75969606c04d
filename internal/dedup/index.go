// Package dedup holds the run-scoped duplicate index: exact-match key sets
// over the whole corpus plus a bounded window of recent fingerprints for
// near-duplicate lookups. The index is rebuilt from storage at the start of
// every run and mutated only by the single pipeline goroutine.
package dedup

import "horse.fit/clipper/internal/simhash"

type windowEntry struct {
	fingerprint uint64
	url         string
}

// Index answers "have we seen this before" three ways: by canonical URL, by
// title hash, and by fingerprint proximity against the recent window.
type Index struct {
	windowSize  int
	urls        map[string]struct{}
	titleHashes map[string]struct{}
	window      []windowEntry
}

// Entry is one accepted article's worth of dedup keys.
type Entry struct {
	CanonicalURL   string
	TitleHash      string
	Fingerprint    uint64
	HasFingerprint bool
	RawURL         string
}

// NewIndex returns an empty index whose fingerprint window holds at most
// windowSize entries. A non-positive windowSize disables near-duplicate
// tracking entirely.
func NewIndex(windowSize int) *Index {
	return &Index{
		windowSize:  windowSize,
		urls:        make(map[string]struct{}),
		titleHashes: make(map[string]struct{}),
	}
}

func (x *Index) AddURL(canonical string) {
	x.urls[canonical] = struct{}{}
}

func (x *Index) AddTitleHash(hash string) {
	x.titleHashes[hash] = struct{}{}
}

// AppendFingerprint pushes a fingerprint onto the window, evicting the oldest
// entries once the window is full.
func (x *Index) AppendFingerprint(fingerprint uint64, rawURL string) {
	if x.windowSize <= 0 {
		return
	}
	x.window = append(x.window, windowEntry{fingerprint: fingerprint, url: rawURL})
	if overflow := len(x.window) - x.windowSize; overflow > 0 {
		x.window = append(x.window[:0], x.window[overflow:]...)
	}
}

func (x *Index) ContainsURL(canonical string) bool {
	_, ok := x.urls[canonical]
	return ok
}

func (x *Index) ContainsTitleHash(hash string) bool {
	_, ok := x.titleHashes[hash]
	return ok
}

// FindNearDuplicate scans the window in insertion order and returns the raw
// URL of the first entry within maxHamming bits. First match, not nearest:
// the oldest qualifying article wins, which keeps duplicate_of chains rooted
// at the earliest copy. The scan is linear in the window size.
func (x *Index) FindNearDuplicate(fingerprint uint64, maxHamming int) (string, bool) {
	for _, entry := range x.window {
		if simhash.Distance(entry.fingerprint, fingerprint) <= maxHamming {
			return entry.url, true
		}
	}
	return "", false
}

// Insert records an accepted article in all three structures. Entries without
// a fingerprint still register their exact-match keys.
func (x *Index) Insert(e Entry) {
	x.AddURL(e.CanonicalURL)
	x.AddTitleHash(e.TitleHash)
	if e.HasFingerprint {
		x.AppendFingerprint(e.Fingerprint, e.RawURL)
	}
}

// WindowLen reports how many fingerprints the window currently holds.
func (x *Index) WindowLen() int {
	return len(x.window)
}
