package model

// Range is a span of absolute millisecond timestamps. Whether End is
// inclusive depends on the caller: searches aggregate over [Start, End),
// brush windows select buckets over [Start, End].
type Range struct {
	Start int64 `json:"startTime"`
	End   int64 `json:"endTime"`
}

// Valid reports whether the range has positive width.
func (r Range) Valid() bool { return r.Start < r.End }

// Contains reports whether ts lies in the half-open range [Start, End).
func (r Range) Contains(ts int64) bool { return ts >= r.Start && ts < r.End }

// Clamp restricts r to the bounds of outer. The result may be invalid when
// the two ranges do not overlap.
func (r Range) Clamp(outer Range) Range {
	if r.Start < outer.Start {
		r.Start = outer.Start
	}
	if r.End > outer.End {
		r.End = outer.End
	}
	return r
}
