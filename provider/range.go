package provider

import "math"

type boundKind uint8

const (
	boundIncluded boundKind = iota
	boundExcluded
	boundUnbounded
)

// Bound is one end of a row-key range: inclusive, exclusive, or unbounded.
type Bound struct {
	value uint64
	kind  boundKind
}

// Included returns an inclusive bound at v.
func Included(v uint64) Bound { return Bound{value: v} }

// Excluded returns an exclusive bound at v.
func Excluded(v uint64) Bound { return Bound{value: v, kind: boundExcluded} }

// Unbounded returns an open bound.
func Unbounded() Bound { return Bound{kind: boundUnbounded} }

// Range is a canonical half-open row-key range [Start, End).
type Range struct {
	Start uint64
	End   uint64
}

// Len returns the number of row keys the range spans.
func (r Range) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// NormalizeRange converts an arbitrary bound pair into a canonical
// half-open range. An unbounded start maps to 0 and an unbounded end to the
// maximum row key; callers iterating a normalized range clamp it to the
// segment's published row range first.
func NormalizeRange(start, end Bound) Range {
	var r Range

	switch start.kind {
	case boundIncluded:
		r.Start = start.value
	case boundExcluded:
		r.Start = start.value + 1
	case boundUnbounded:
		r.Start = 0
	}

	switch end.kind {
	case boundIncluded:
		r.End = end.value + 1
	case boundExcluded:
		r.End = end.value
	case boundUnbounded:
		r.End = math.MaxUint64
	}

	return r
}
