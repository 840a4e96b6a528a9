package schedule

import (
	"slices"
	"strings"

	"agenda/pkg/timespan"
)

// tagged is a span together with the records it was built from.
type tagged struct {
	span timespan.TimeSpan
	ids  []string
}

func (t tagged) key() string {
	return t.span.Start.UTC().Format(keyLayout) + "|" + t.span.End.UTC().Format(keyLayout) + "|" + strings.Join(t.ids, ",")
}

const keyLayout = "20060102T150405.000000000"

// mergeTagged joins overlapping or adjacent spans like timespan.Merge and
// unions their ids.
func mergeTagged(in []tagged) []tagged {
	sorted := make([]tagged, 0, len(in))
	for _, t := range in {
		if t.span.IsValid() {
			sorted = append(sorted, tagged{span: t.span, ids: unionIDs(nil, t.ids)})
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	slices.SortFunc(sorted, func(a, b tagged) int {
		return timespan.Compare(a.span, b.span)
	})

	out := []tagged{sorted[0]}
	for _, next := range sorted[1:] {
		cur := &out[len(out)-1]
		if !next.span.Start.After(cur.span.End) {
			cur.span = cur.span.Union(next.span)
			cur.ids = unionIDs(cur.ids, next.ids)
			continue
		}
		out = append(out, next)
	}
	return out
}

func subtractTagged(in []tagged, holes []timespan.TimeSpan) []tagged {
	var out []tagged
	for _, t := range in {
		for _, piece := range timespan.Subtract([]timespan.TimeSpan{t.span}, holes) {
			out = append(out, tagged{span: piece, ids: t.ids})
		}
	}
	return out
}

func clipTagged(in []tagged, window timespan.TimeSpan) []tagged {
	var out []tagged
	for _, t := range in {
		if c, ok := t.span.Intersect(window); ok {
			out = append(out, tagged{span: c, ids: t.ids})
		}
	}
	return out
}

func spansOf(in []tagged) []timespan.TimeSpan {
	out := make([]timespan.TimeSpan, 0, len(in))
	for _, t := range in {
		out = append(out, t.span)
	}
	return out
}

// unionIDs returns the sorted, deduplicated union of a and b.
func unionIDs(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}
