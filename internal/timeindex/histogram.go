package timeindex

import (
	"errors"
	"fmt"

	"github.com/cdtdelta/4n6graph/internal/model"
)

// MaxHistogramBuckets bounds the number of timeline buckets.
const MaxHistogramBuckets = 100_000

// ErrTooManyBuckets is returned when the range is too wide for the granularity.
var ErrTooManyBuckets = errors.New("too many histogram buckets")

// Bucket is one bar of the event timeline.
type Bucket struct {
	Index             int64 `json:"index"`
	Timestamp         int64 `json:"timestamp"`
	FileVersions      int   `json:"fileVersions"`
	NetworkActivities int   `json:"networkActivities"`
}

// Count returns the number of events of both kinds in the bucket.
func (b Bucket) Count() int { return b.FileVersions + b.NetworkActivities }

// Histogram counts events per bucket across rng. Every bucket in the range is
// present, empty ones included. Events outside rng are ignored.
func Histogram(rng model.Range, g int64, fvs []model.FileVersion, nas []model.NetworkActivity) ([]Bucket, error) {
	if g <= 0 {
		return nil, fmt.Errorf("histogram: %w: %d", ErrInvalidGranularity, g)
	}
	if !rng.Valid() {
		return nil, nil
	}
	first := BucketOf(rng.Start, g)
	last := BucketOf(rng.End-1, g)
	if n := last - first + 1; n > MaxHistogramBuckets {
		return nil, fmt.Errorf("histogram: %w: %d at granularity %d", ErrTooManyBuckets, n, g)
	}

	out := make([]Bucket, 0, last-first+1)
	for b := first; b <= last; b++ {
		out = append(out, Bucket{Index: b, Timestamp: b * g})
	}
	for _, fv := range fvs {
		if rng.Contains(fv.Timestamp) {
			out[BucketOf(fv.Timestamp, g)-first].FileVersions++
		}
	}
	for _, na := range nas {
		if rng.Contains(na.Timestamp) {
			out[BucketOf(na.Timestamp, g)-first].NetworkActivities++
		}
	}
	return out, nil
}

// Brush returns the buckets whose index lies within [lo, hi].
func Brush(buckets []Bucket, lo, hi int64) []Bucket {
	var out []Bucket
	for _, b := range buckets {
		if b.Index >= lo && b.Index <= hi {
			out = append(out, b)
		}
	}
	return out
}
