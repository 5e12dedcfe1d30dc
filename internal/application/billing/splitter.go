package billing

import (
	"sort"
	"time"

	"github.com/wrls/billing/internal/domain/shared/valueobject"
)

// Segment is one entry in an attribute's history: a value that held over a
// period. Periods may extend beyond the range being split; the splitter
// clips them.
type Segment[T any] struct {
	Validity valueobject.DateRange
	Value    T
}

// Slice is one output range of a split: a sub-range of the base over which
// the attribute was constant. Value is nil for a gap no segment covered.
// OriginalValidity keeps the segment's un-clipped bounds so callers can
// still see when the value really took effect.
type Slice[T any] struct {
	Range            valueobject.DateRange
	Value            *T
	OriginalValidity valueobject.DateRange
}

// SplitByHistory partitions base into the maximal contiguous sub-ranges
// over which the attribute is constant under eq. The output is ordered,
// non-overlapping and unions back to base. Consecutive slices whose values
// eq treats as equal are merged; uncovered gaps yield slices with a nil
// value rather than being dropped.
func SplitByHistory[T any](base valueobject.DateRange, history []Segment[T], eq func(a, b T) bool) []Slice[T] {
	if base.IsOpen() {
		// Charge periods are always closed; treat an open base as a
		// single uncovered slice.
		return []Slice[T]{{Range: base}}
	}

	clipped := make([]Segment[T], 0, len(history))
	originals := make([]valueobject.DateRange, 0, len(history))
	for _, seg := range history {
		r, ok := seg.Validity.Intersection(base)
		if !ok {
			continue
		}
		clipped = append(clipped, Segment[T]{Validity: r, Value: seg.Value})
		originals = append(originals, seg.Validity)
	}
	order := make([]int, len(clipped))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return clipped[order[i]].Validity.Start().Before(clipped[order[j]].Validity.Start())
	})

	var out []Slice[T]
	cursor := base.Start()
	end := *base.End()

	for _, idx := range order {
		seg := clipped[idx]
		segStart := seg.Validity.Start()
		segEnd := *seg.Validity.End()
		if segEnd.Before(cursor) {
			continue
		}
		if segStart.After(cursor) {
			out = append(out, gapSlice[T](cursor, segStart.AddDate(0, 0, -1)))
		} else if segStart.Before(cursor) {
			// Overlapping history: the later segment wins from the
			// cursor onward.
			segStart = cursor
		}
		value := seg.Value
		out = append(out, Slice[T]{
			Range:            valueobject.MustDateRange(segStart, segEnd),
			Value:            &value,
			OriginalValidity: originals[idx],
		})
		cursor = segEnd.AddDate(0, 0, 1)
		if cursor.After(end) {
			break
		}
	}
	if !cursor.After(end) {
		out = append(out, gapSlice[T](cursor, end))
	}

	return mergeEqual(out, eq)
}

func gapSlice[T any](start, end time.Time) Slice[T] {
	r := valueobject.MustDateRange(start, end)
	return Slice[T]{Range: r, OriginalValidity: r}
}

// mergeEqual collapses adjacent slices carrying equal values. The merged
// slice keeps the first slice's original start and the last's original
// end.
func mergeEqual[T any](slices []Slice[T], eq func(a, b T) bool) []Slice[T] {
	if len(slices) < 2 {
		return slices
	}
	out := slices[:1]
	for _, next := range slices[1:] {
		last := &out[len(out)-1]
		if sameValue(last.Value, next.Value, eq) {
			merged := valueobject.MustDateRange(last.Range.Start(), *next.Range.End())
			last.Range = merged
			if next.OriginalValidity.End() == nil || (last.OriginalValidity.End() != nil && next.OriginalValidity.End().After(*last.OriginalValidity.End())) {
				origEnd := next.OriginalValidity.End()
				if origEnd == nil {
					last.OriginalValidity = valueobject.NewOpenDateRange(last.OriginalValidity.Start())
				} else {
					last.OriginalValidity = valueobject.MustDateRange(last.OriginalValidity.Start(), *origEnd)
				}
			}
			continue
		}
		out = append(out, next)
	}
	return out
}

func sameValue[T any](a, b *T, eq func(x, y T) bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return eq(*a, *b)
}
