package schedule

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"agenda/pkg/model"
	"agenda/pkg/timespan"

	"github.com/google/uuid"
)

type slotKind int

const (
	slotFree slotKind = iota
	slotReserved
	slotPadding
)

type desiredSlot struct {
	tagged
	kind slotKind
}

func (d desiredSlot) key() string {
	return strconv.Itoa(int(d.kind)) + "|" + d.tagged.key()
}

func slotKey(s *model.TimeSlot) string {
	kind := slotFree
	switch {
	case s.Busy && s.Padding:
		kind = slotPadding
	case s.Busy:
		kind = slotReserved
	}
	return desiredSlot{tagged: tagged{span: s.Span(), ids: unionIDs(nil, s.BookingIDs)}, kind: kind}.key()
}

// padding returns the clamped padding of r around span.
func (e *Engine) padding(r Reservation, span timespan.TimeSpan) time.Duration {
	p := e.pad.Padding(r, span)
	if p < 0 {
		return 0
	}
	if e.opts.MaxPadding > 0 && p > e.opts.MaxPadding {
		return e.opts.MaxPadding
	}
	return p
}

// desiredSlots computes the slot set of window from scratch. Reserved
// spans are merged into busy slots naming their bookings, padding fills
// whatever is left around them, and free slots are the occurrences minus
// both.
func (e *Engine) desiredSlots(occurrences []tagged, reservations []Reservation, window timespan.TimeSpan) []desiredSlot {
	var reserved, padding []tagged
	for _, r := range reservations {
		id := []string{r.ReservationID()}
		for _, span := range r.ReservedSpans() {
			if !span.IsValid() {
				continue
			}
			reserved = append(reserved, tagged{span: span, ids: id})
			if p := e.padding(r, span); p > 0 {
				padding = append(padding,
					tagged{span: timespan.TimeSpan{Start: span.Start.Add(-p), End: span.Start}, ids: id},
					tagged{span: timespan.TimeSpan{Start: span.End, End: span.End.Add(p)}, ids: id},
				)
			}
		}
	}

	reserved = mergeTagged(reserved)
	reservedCover := spansOf(reserved)
	padding = mergeTagged(subtractTagged(mergeTagged(padding), reservedCover))
	busy := timespan.Merge(append(reservedCover, spansOf(padding)...))
	free := timespan.Subtract(spansOf(occurrences), busy)

	var out []desiredSlot
	for _, t := range clipTagged(reserved, window) {
		out = append(out, desiredSlot{tagged: t, kind: slotReserved})
	}
	for _, t := range clipTagged(padding, window) {
		out = append(out, desiredSlot{tagged: t, kind: slotPadding})
	}
	for _, s := range timespan.Clip(free, window) {
		out = append(out, desiredSlot{tagged: tagged{span: s}, kind: slotFree})
	}
	return out
}

func newSlot(owner model.OwnerRef, d desiredSlot) model.TimeSlot {
	return model.TimeSlot{
		ID:         uuid.NewString(),
		Owner:      owner,
		Start:      d.span.Start.UTC(),
		End:        d.span.End.UTC(),
		Busy:       d.kind != slotFree,
		Padding:    d.kind == slotPadding,
		BookingIDs: d.ids,
	}
}

// reconcileSlots replaces the stored slots in window with desired. Slots
// already matching are kept; the rest are deleted once and the missing
// ones inserted once.
func (e *Engine) reconcileSlots(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan, desired []desiredSlot, result *RegenerationResult) error {
	stored, err := e.store.ListTimeSlots(ctx, owner, window)
	if err != nil {
		return fmt.Errorf("failed to list time slots: %w", err)
	}

	want := make(map[string]struct{}, len(desired))
	for _, d := range desired {
		want[d.key()] = struct{}{}
	}

	var deleteIDs []string
	for i := range stored {
		key := slotKey(&stored[i])
		if _, ok := want[key]; ok {
			delete(want, key)
			result.SlotsKept++
			continue
		}
		deleteIDs = append(deleteIDs, stored[i].ID)
	}

	var inserts []model.TimeSlot
	for _, d := range desired {
		if _, ok := want[d.key()]; ok {
			inserts = append(inserts, newSlot(owner, d))
		}
	}

	if len(deleteIDs) > 0 {
		if err := e.store.DeleteTimeSlots(ctx, deleteIDs); err != nil {
			return fmt.Errorf("failed to delete time slots: %w", err)
		}
	}
	if len(inserts) > 0 {
		if err := e.store.InsertTimeSlots(ctx, inserts); err != nil {
			return fmt.Errorf("failed to insert time slots: %w", err)
		}
	}
	result.SlotsDeleted += len(deleteIDs)
	result.SlotsInserted += len(inserts)
	return nil
}
