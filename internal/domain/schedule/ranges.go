// Package schedule holds the pure time-range math behind availability:
// merging, subtracting and quantizing half-open [Start, End) ranges.
package schedule

import (
	"sort"
	"time"
)

// Range is a half-open time range [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r Range) IsEmpty() bool {
	return !r.End.After(r.Start)
}

// Overlaps reports whether r and o share any instant.
// Abutting ranges ([9,10) and [10,11)) do not overlap.
func (r Range) Overlaps(o Range) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Contains reports whether o lies entirely within r
func (r Range) Contains(o Range) bool {
	return !o.Start.Before(r.Start) && !o.End.After(r.End)
}

// Expand widens the range by d on both sides
func (r Range) Expand(d time.Duration) Range {
	if d <= 0 {
		return r
	}
	return Range{Start: r.Start.Add(-d), End: r.End.Add(d)}
}

// Merge sorts ranges and joins overlapping or touching ones. Empty ranges are dropped.
func Merge(ranges []Range) []Range {
	sorted := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if !r.IsEmpty() {
			sorted = append(sorted, r)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !r.Start.After(last.End) {
			if r.End.After(last.End) {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Subtract removes every cut range from base and returns what is left, merged and ordered.
func Subtract(base, cuts []Range) []Range {
	base = Merge(base)
	cuts = Merge(cuts)

	var free []Range
	for _, b := range base {
		cur := b.Start
		for _, c := range cuts {
			if !c.End.After(cur) {
				continue
			}
			if !c.Start.Before(b.End) {
				break
			}
			if c.Start.After(cur) {
				free = append(free, Range{Start: cur, End: c.Start})
			}
			if c.End.After(cur) {
				cur = c.End
			}
		}
		if cur.Before(b.End) {
			free = append(free, Range{Start: cur, End: b.End})
		}
	}
	return free
}

// Quantize cuts each free range into consecutive slots of length step starting at the
// range start. A trailing piece shorter than step is dropped, never truncated.
// Slots starting before notBefore are skipped; pass the zero time to keep all.
func Quantize(free []Range, step time.Duration, notBefore time.Time) []Range {
	if step <= 0 {
		return nil
	}
	var slots []Range
	for _, r := range free {
		for t := r.Start; !t.Add(step).After(r.End); t = t.Add(step) {
			if t.Before(notBefore) {
				continue
			}
			slots = append(slots, Range{Start: t, End: t.Add(step)})
		}
	}
	return slots
}

// Covers reports whether want fits inside a single range of the merged open set.
func Covers(open []Range, want Range) bool {
	if want.IsEmpty() {
		return false
	}
	for _, r := range Merge(open) {
		if r.Contains(want) {
			return true
		}
	}
	return false
}

// OverlapsAny reports whether r overlaps any of the given ranges
func OverlapsAny(r Range, others []Range) bool {
	for _, o := range others {
		if r.Overlaps(o) {
			return true
		}
	}
	return false
}
