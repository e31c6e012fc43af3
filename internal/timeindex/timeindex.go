// Package timeindex maps every event-derived link to the sorted set of time
// buckets in which at least one of its events occurred, so that a time window
// can be answered without rescanning raw events.
package timeindex

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cdtdelta/4n6graph/internal/aggregate"
	"github.com/cdtdelta/4n6graph/internal/model"
)

// ErrInvalidGranularity is returned for a bucket width that is not positive.
var ErrInvalidGranularity = errors.New("granularity must be a positive number of milliseconds")

// DefaultGranularity is one minute.
const DefaultGranularity int64 = 60_000

// GranularityOptions are the bucket widths offered to the analyst.
var GranularityOptions = []int64{
	1_000,
	60_000,
	3_600_000,
	43_200_000,
	86_400_000,
}

// Lookup resolves the timestamp and size of the event id of a link kind.
type Lookup func(kind model.LinkKind, id string) (timestamp, size int64, ok bool)

// BucketOf returns floor(ts / g), rounding toward negative infinity.
func BucketOf(ts, g int64) int64 {
	b := ts / g
	if ts%g != 0 && (ts < 0) != (g < 0) {
		b--
	}
	return b
}

// entry holds the distinct buckets of one link in ascending order, and the
// running byte totals: prefix[i] is the byte sum of buckets[:i].
type entry struct {
	buckets []int64
	prefix  []int64
}

// Index is immutable once built. It is safe for concurrent readers.
type Index struct {
	granularity int64
	entries     map[string]*entry
}

// Build constructs the index for links at granularity g. Member events that
// lookup cannot resolve are ignored.
func Build(g int64, links []aggregate.TrafficLink, lookup Lookup) (*Index, error) {
	if g <= 0 {
		return nil, fmt.Errorf("build index: %w: %d", ErrInvalidGranularity, g)
	}
	ix := &Index{granularity: g, entries: make(map[string]*entry, len(links))}
	for _, l := range links {
		stats := l.Stats()
		perBucket := make(map[int64]int64)
		for _, id := range stats.MemberEventIDs {
			ts, size, ok := lookup(l.Kind(), id)
			if !ok {
				continue
			}
			perBucket[BucketOf(ts, g)] += size
		}
		e := &entry{buckets: make([]int64, 0, len(perBucket))}
		for b := range perBucket {
			e.buckets = append(e.buckets, b)
		}
		sort.Slice(e.buckets, func(i, j int) bool { return e.buckets[i] < e.buckets[j] })
		e.prefix = make([]int64, len(e.buckets)+1)
		for i, b := range e.buckets {
			e.prefix[i+1] = e.prefix[i] + perBucket[b]
		}
		ix.entries[stats.ID] = e
	}
	return ix, nil
}

// Granularity returns the bucket width in milliseconds.
func (ix *Index) Granularity() int64 { return ix.granularity }

// Len returns the number of indexed links.
func (ix *Index) Len() int { return len(ix.entries) }

// Bounds converts a window to inclusive bucket bounds.
func (ix *Index) Bounds(w model.Range) (lo, hi int64) {
	return BucketOf(w.Start, ix.granularity), BucketOf(w.End, ix.granularity)
}

// Buckets returns a copy of the sorted distinct buckets of a link.
func (ix *Index) Buckets(linkID string) []int64 {
	e, ok := ix.entries[linkID]
	if !ok {
		return nil
	}
	return append([]int64(nil), e.buckets...)
}

// span returns the half-open range of positions in e.buckets within [lo, hi].
func (e *entry) span(lo, hi int64) (int, int) {
	i := sort.Search(len(e.buckets), func(k int) bool { return e.buckets[k] >= lo })
	j := sort.Search(len(e.buckets), func(k int) bool { return e.buckets[k] > hi })
	return i, j
}

// ActiveIn reports whether the link has a bucket b with lo <= b <= hi.
func (ix *Index) ActiveIn(linkID string, lo, hi int64) bool {
	e, ok := ix.entries[linkID]
	if !ok || lo > hi {
		return false
	}
	i, j := e.span(lo, hi)
	return i < j
}

// BytesIn returns the byte total of the link's events in buckets [lo, hi].
func (ix *Index) BytesIn(linkID string, lo, hi int64) int64 {
	e, ok := ix.entries[linkID]
	if !ok || lo > hi {
		return 0
	}
	i, j := e.span(lo, hi)
	return e.prefix[j] - e.prefix[i]
}
