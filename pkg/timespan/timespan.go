// Package timespan provides an immutable half-open time interval and the
// set arithmetic the scheduling engine is built on.
package timespan

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

var ErrInvalidSpan = errors.New("span end must be after start")

// TimeSpan is the half-open interval [Start, End).
type TimeSpan struct {
	Start time.Time `json:"start" bson:"start"`
	End   time.Time `json:"end" bson:"end"`
}

func New(start, end time.Time) (TimeSpan, error) {
	if !start.Before(end) {
		return TimeSpan{}, fmt.Errorf("%w: [%s, %s)", ErrInvalidSpan, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeSpan{Start: start, End: end}, nil
}

// Of builds a span from a start and a duration.
func Of(start time.Time, d time.Duration) TimeSpan {
	return TimeSpan{Start: start, End: start.Add(d)}
}

func (s TimeSpan) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// IsValid reports whether Start < End.
func (s TimeSpan) IsValid() bool {
	return s.Start.Before(s.End)
}

func (s TimeSpan) IsZero() bool {
	return s.Start.IsZero() && s.End.IsZero()
}

// Overlaps reports whether the spans share at least one instant.
func (s TimeSpan) Overlaps(o TimeSpan) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Touches is Overlaps on closed intervals: adjacent spans touch.
func (s TimeSpan) Touches(o TimeSpan) bool {
	return !s.Start.After(o.End) && !o.Start.After(s.End)
}

func (s TimeSpan) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// Covers reports whether o lies entirely inside s.
func (s TimeSpan) Covers(o TimeSpan) bool {
	return !o.Start.Before(s.Start) && !o.End.After(s.End)
}

// Intersect returns the common part of s and o. ok is false when they do
// not overlap.
func (s TimeSpan) Intersect(o TimeSpan) (TimeSpan, bool) {
	start := maxTime(s.Start, o.Start)
	end := minTime(s.End, o.End)
	if !start.Before(end) {
		return TimeSpan{}, false
	}
	return TimeSpan{Start: start, End: end}, true
}

// Union returns the smallest span containing both s and o.
func (s TimeSpan) Union(o TimeSpan) TimeSpan {
	return TimeSpan{Start: minTime(s.Start, o.Start), End: maxTime(s.End, o.End)}
}

// Expanded grows the span by before at the start and after at the end.
func (s TimeSpan) Expanded(before, after time.Duration) TimeSpan {
	return TimeSpan{Start: s.Start.Add(-before), End: s.End.Add(after)}
}

func (s TimeSpan) Equal(o TimeSpan) bool {
	return s.Start.Equal(o.Start) && s.End.Equal(o.End)
}

func (s TimeSpan) UTC() TimeSpan {
	return TimeSpan{Start: s.Start.UTC(), End: s.End.UTC()}
}

func (s TimeSpan) String() string {
	return fmt.Sprintf("[%s, %s)", s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
}

// Compare orders spans by start, then end.
func Compare(a, b TimeSpan) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	return a.End.Compare(b.End)
}

// Merge sorts spans and joins every pair that overlaps or is adjacent.
// Invalid spans are dropped. The result is sorted and pairwise disjoint
// with gaps between neighbours, so Merge(Merge(x)) equals Merge(x).
func Merge(spans []TimeSpan) []TimeSpan {
	sorted := make([]TimeSpan, 0, len(spans))
	for _, s := range spans {
		if s.IsValid() {
			sorted = append(sorted, s)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	slices.SortFunc(sorted, Compare)

	out := make([]TimeSpan, 0, len(sorted))
	cur := sorted[0]
	for _, next := range sorted[1:] {
		if !next.Start.After(cur.End) {
			cur.End = maxTime(cur.End, next.End)
			continue
		}
		out = append(out, cur)
		cur = next
	}
	return append(out, cur)
}

// Subtract removes every instant covered by holes from spans.
func Subtract(spans, holes []TimeSpan) []TimeSpan {
	base := Merge(spans)
	cut := Merge(holes)
	if len(cut) == 0 {
		return base
	}

	var out []TimeSpan
	for _, s := range base {
		cur := s
		alive := true
		for _, h := range cut {
			if !h.End.After(cur.Start) {
				continue
			}
			if !h.Start.Before(cur.End) {
				break
			}
			if h.Start.After(cur.Start) {
				out = append(out, TimeSpan{Start: cur.Start, End: h.Start})
			}
			if !h.End.Before(cur.End) {
				alive = false
				break
			}
			cur.Start = h.End
		}
		if alive && cur.IsValid() {
			out = append(out, cur)
		}
	}
	return out
}

// Clip intersects every span with window, dropping the ones outside it.
func Clip(spans []TimeSpan, window TimeSpan) []TimeSpan {
	var out []TimeSpan
	for _, s := range spans {
		if c, ok := s.Intersect(window); ok {
			out = append(out, c)
		}
	}
	return out
}

// Hull returns the smallest span containing all valid spans.
func Hull(spans ...TimeSpan) (TimeSpan, bool) {
	var hull TimeSpan
	found := false
	for _, s := range spans {
		if !s.IsValid() {
			continue
		}
		if !found {
			hull = s
			found = true
			continue
		}
		hull = hull.Union(s)
	}
	return hull, found
}

// CoveredBy reports whether s is entirely inside the union of spans.
func CoveredBy(s TimeSpan, spans []TimeSpan) bool {
	return len(Subtract([]TimeSpan{s}, spans)) == 0
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
