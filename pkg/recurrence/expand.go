package recurrence

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"agenda/pkg/timespan"

	"github.com/teambition/rrule-go"
)

const DefaultMaxOccurrences = 5000

// Reference anchors a rule: the wall clock of the first occurrence, its
// wall-clock length and the zone both are interpreted in.
type Reference struct {
	Start    time.Time
	Duration time.Duration
	Location *time.Location
	// Until, when set, is the last date (inclusive) an occurrence may
	// start on.
	Until time.Time
	// MaxOccurrences caps a single expansion. Zero means
	// DefaultMaxOccurrences.
	MaxOccurrences int
}

// Expand returns the occurrences of rule that intersect window, in
// ascending order and in UTC. Nothing is computed until the sequence is
// ranged over, and every range starts from scratch. A window holding more
// than MaxOccurrences occurrences ends the sequence with an
// *InvalidRuleError.
func Expand(rule *Rule, ref Reference, window timespan.TimeSpan) iter.Seq2[timespan.TimeSpan, error] {
	return func(yield func(timespan.TimeSpan, error) bool) {
		if !window.IsValid() || ref.Duration <= 0 {
			return
		}
		loc := ref.Location
		if loc == nil {
			loc = time.UTC
		}
		limit := ref.MaxOccurrences
		if limit <= 0 {
			limit = DefaultMaxOccurrences
		}

		// Offsets never exceed a day, so a day of slack on each side keeps
		// every candidate whose real instant lands in the window.
		from := floating(window.Start.In(loc)).Add(-24*time.Hour - ref.Duration)
		to := floating(window.End.In(loc)).Add(24 * time.Hour)

		var lastDay time.Time
		if !ref.Until.IsZero() {
			lastDay = floating(ref.Until).Truncate(24 * time.Hour).Add(24 * time.Hour)
		}

		emitted := 0
		for wall := range rule.starts(floating(ref.Start), from, to, loc) {
			if !lastDay.IsZero() && !wall.Before(lastDay) {
				return
			}
			start := resolve(wall, loc)
			end := resolve(wall.Add(ref.Duration), loc)
			if !end.After(start) {
				end = start.Add(ref.Duration)
			}
			occ := timespan.TimeSpan{Start: start.UTC(), End: end.UTC()}
			if !occ.Overlaps(window) {
				continue
			}
			emitted++
			if emitted > limit {
				yield(timespan.TimeSpan{}, &InvalidRuleError{
					Rule:   rule.String(),
					Reason: fmt.Sprintf("more than %d occurrences in %s", limit, window),
				})
				return
			}
			if !yield(occ, nil) {
				return
			}
		}
	}
}

// cursor walks one ascending source of wall clocks.
type cursor struct {
	next rrule.Next
	t    time.Time
	ok   bool
}

func newCursor(next rrule.Next) *cursor {
	c := &cursor{next: next}
	c.advance()
	return c
}

func (c *cursor) advance() {
	c.t, c.ok = c.next()
}

// skipBefore moves c to its first value not before t.
func (c *cursor) skipBefore(t time.Time) {
	for c.ok && c.t.Before(t) {
		c.advance()
	}
}

func sliceNext(values []time.Time) rrule.Next {
	i := 0
	return func() (time.Time, bool) {
		if i >= len(values) {
			return time.Time{}, false
		}
		i++
		return values[i-1], true
	}
}

// starts yields the distinct wall-clock starts in [from, to] in ascending
// order. Every RRULE, the RDATEs and the reference start itself are merged
// as they are generated; EXRULE and EXDATE matches are dropped.
func (r *Rule) starts(dtstart, from, to time.Time, loc *time.Location) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		// The reference start is always an occurrence, as DTSTART is in
		// RFC 5545.
		extra := []time.Time{dtstart}
		var exclude []date
		if r != nil {
			for _, d := range r.rdates {
				extra = append(extra, alignDate(d.wall(loc), dtstart))
			}
			exclude = r.exdates
		}
		slices.SortFunc(extra, time.Time.Compare)

		sources := []*cursor{newCursor(sliceNext(extra))}
		var exrules []*cursor
		if r != nil {
			for _, rec := range r.rrules {
				if rr, ok := rec.build(dtstart, loc); ok {
					sources = append(sources, newCursor(rr.Iterator()))
				}
			}
			for _, rec := range r.exrules {
				if rr, ok := rec.build(dtstart, loc); ok {
					exrules = append(exrules, newCursor(rr.Iterator()))
				}
			}
		}

		var prev time.Time
		for {
			var head *cursor
			for _, c := range sources {
				if c.ok && (head == nil || c.t.Before(head.t)) {
					head = c
				}
			}
			if head == nil {
				return
			}
			t := head.t
			head.advance()

			if t.After(to) {
				return
			}
			if t.Equal(prev) || t.Before(from) {
				prev = t
				continue
			}
			prev = t
			if excludedBy(t, exclude, loc) || matchedBy(t, exrules) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// build instantiates the rule at dtstart. An UNTIL given in UTC is moved
// to the wall clock it names in loc.
func (rec recur) build(dtstart time.Time, loc *time.Location) (*rrule.RRule, bool) {
	opt := rec.opt
	opt.Dtstart = dtstart
	if rec.utcUntil && !opt.Until.IsZero() {
		opt.Until = floating(opt.Until.In(loc))
	}
	rr, err := rrule.NewRRule(opt)
	return rr, err == nil
}

func matchedBy(wall time.Time, exrules []*cursor) bool {
	for _, c := range exrules {
		c.skipBefore(wall)
		if c.ok && c.t.Equal(wall) {
			return true
		}
	}
	return false
}

func excludedBy(wall time.Time, exdates []date, loc *time.Location) bool {
	day := wall.Truncate(24 * time.Hour)
	for _, d := range exdates {
		if d.dateOnly {
			if d.t.Equal(day) {
				return true
			}
			continue
		}
		if d.wall(loc).Equal(wall) {
			return true
		}
	}
	return false
}

// alignDate gives a date-only RDATE the reference time of day.
func alignDate(d, dtstart time.Time) time.Time {
	if d.Hour() != 0 || d.Minute() != 0 || d.Second() != 0 {
		return d
	}
	return time.Date(d.Year(), d.Month(), d.Day(), dtstart.Hour(), dtstart.Minute(), dtstart.Second(), 0, time.UTC)
}

// floating drops the zone of t and keeps its wall clock, encoded as UTC.
func floating(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// resolve maps a floating wall clock to an instant in loc. A wall clock
// that happens twice resolves to its standard-time instant; one that
// never happens is read with the standard-time offset.
func resolve(wall time.Time, loc *time.Location) time.Time {
	probes := []time.Time{wall.Add(-24 * time.Hour), wall.Add(24 * time.Hour)}

	var candidates []time.Time
	for _, probe := range probes {
		_, offset := probe.In(loc).Zone()
		c := wall.Add(-time.Duration(offset) * time.Second).In(loc)
		if floating(c).Equal(wall) && !containsInstant(candidates, c) {
			candidates = append(candidates, c)
		}
	}

	switch len(candidates) {
	case 1:
		return candidates[0]
	case 2:
		for _, c := range candidates {
			if !c.IsDST() {
				return c
			}
		}
		return candidates[1]
	}

	offsetProbe := probes[0]
	for _, probe := range probes {
		if !probe.In(loc).IsDST() {
			offsetProbe = probe
			break
		}
	}
	_, offset := offsetProbe.In(loc).Zone()
	return wall.Add(-time.Duration(offset) * time.Second).In(loc)
}

func containsInstant(list []time.Time, t time.Time) bool {
	for _, v := range list {
		if v.Equal(t) {
			return true
		}
	}
	return false
}
