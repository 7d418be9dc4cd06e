package crawler

import (
	"sync"

	"lukechampine.com/blake3"
)

// ContentFingerprint is a fixed-width digest of a page body.
type ContentFingerprint [32]byte

// DedupFilter is a membership test for "have I already seen this body?".
// Unlike the Frontier's bloom filter, this is an exact set: a false
// positive here would silently drop a distinct page, which an exact
// content fingerprint must never do.
type DedupFilter struct {
	mu   sync.Mutex
	seen map[ContentFingerprint]struct{}
}

// NewDedupFilter creates an empty DedupFilter.
func NewDedupFilter() *DedupFilter {
	return &DedupFilter{seen: make(map[ContentFingerprint]struct{})}
}

// Fingerprint computes the content digest used for deduplication.
func Fingerprint(body []byte) ContentFingerprint {
	return blake3.Sum256(body)
}

// IsDuplicate reports whether body's digest has been seen before; if not,
// it records the digest and returns false. No deletions are ever performed.
func (d *DedupFilter) IsDuplicate(body []byte) bool {
	fp := Fingerprint(body)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[fp]; ok {
		return true
	}
	d.seen[fp] = struct{}{}
	return false
}

// Len reports the number of distinct bodies recorded so far.
func (d *DedupFilter) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
