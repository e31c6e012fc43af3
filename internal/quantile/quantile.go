// Package quantile bins byte proportions into five intensity buckets, each
// mapped to a fixed color ordered from low to high intensity.
package quantile

import (
	"fmt"
	"sort"
	"strings"
)

// Buckets is the number of intensity buckets.
const Buckets = 5

// Colors maps bucket ids to their colors, lowest intensity first.
var Colors = [Buckets]string{"#9096f8", "#78f6ef", "#6ce18b", "#f19938", "#eb4d70"}

// Scale is a quantize scale over the domain [min, max] of the values it was
// built from. The zero value places every input in the highest bucket.
type Scale struct {
	n          int
	min, max   float64
	thresholds []float64
}

// New builds a scale over values. With no values, or when every value is
// equal, the scale has no thresholds and every input falls in one bucket.
func New(values []float64) Scale {
	if len(values) == 0 {
		return Scale{}
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	s := Scale{n: len(values), min: lo, max: hi}
	if lo == hi {
		return s
	}
	s.thresholds = make([]float64, Buckets-1)
	for i := range s.thresholds {
		s.thresholds[i] = lo + (hi-lo)*float64(i+1)/Buckets
	}
	return s
}

// Len returns the number of values the scale was built from. A scale of
// length zero colors nothing.
func (s Scale) Len() int { return s.n }

// Domain returns the smallest and largest value the scale was built from.
func (s Scale) Domain() (min, max float64) { return s.min, s.max }

// Thresholds returns a copy of the bucket boundaries, for legends.
func (s Scale) Thresholds() []float64 {
	return append([]float64(nil), s.thresholds...)
}

// Bucket returns the bucket id of p in [0, Buckets). A value equal to a
// threshold belongs to the bucket above it. A degenerate scale returns the
// highest bucket.
func (s Scale) Bucket(p float64) int {
	if len(s.thresholds) == 0 {
		return Buckets - 1
	}
	return sort.Search(len(s.thresholds), func(i int) bool { return s.thresholds[i] > p })
}

// Color returns the color of p's bucket.
func (s Scale) Color(p float64) string {
	return Colors[s.Bucket(p)]
}

// ColorBucket returns the bucket id of a color. The leading '#' and letter
// case are ignored.
func ColorBucket(color string) (int, error) {
	c := "#" + strings.ToLower(strings.TrimPrefix(strings.TrimSpace(color), "#"))
	for i, known := range Colors {
		if c == known {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown bucket color %q", color)
}
