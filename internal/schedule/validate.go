package schedule

import (
	"context"
	"fmt"

	"agenda/pkg/model"
	"agenda/pkg/timespan"
)

// ValidateBooking checks every requested span of r against the owner's
// stored schedule. A span must lie inside availability, must not overlap
// time held by another reservation or lie in that reservation's padding,
// and its own padded extent must not reach into another reservation. Time
// already held by r itself does not count.
//
// Validation reads the schedule without locking it, so it is only binding
// when run inside Commit.
func (e *Engine) ValidateBooking(ctx context.Context, r Reservation) error {
	owner := r.ScheduleOwnerRef()
	spans := r.RequestedSpans()
	if len(spans) == 0 {
		return fmt.Errorf("reservation %s requests no time: %w", r.ReservationID(), timespan.ErrInvalidSpan)
	}

	allowOverlap := e.opts.AllowOverlap
	if o, ok := r.(overlapAllower); ok && o.AllowsOverlap() {
		allowOverlap = true
	}

	for _, span := range spans {
		if !span.IsValid() {
			return fmt.Errorf("reservation %s: %w", r.ReservationID(), timespan.ErrInvalidSpan)
		}
		if err := e.validateSpan(ctx, owner, r, span, allowOverlap); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) validateSpan(ctx context.Context, owner model.OwnerRef, r Reservation, span timespan.TimeSpan, allowOverlap bool) error {
	if !e.opts.AllowUnscheduled {
		occurrences, err := e.store.ListOccurrences(ctx, owner, span)
		if err != nil {
			return fmt.Errorf("failed to list occurrences: %w", err)
		}
		available := make([]timespan.TimeSpan, 0, len(occurrences))
		for i := range occurrences {
			available = append(available, occurrences[i].Span())
		}
		if !timespan.CoveredBy(span, available) {
			return &ConflictError{Owner: owner, Span: span, Reason: ReasonUnavailable}
		}
	}

	if allowOverlap {
		return nil
	}

	p := e.padding(r, span)
	padded := span.Expanded(p, p)
	// Busy slots merge the time of several bookings, so conflicts are
	// decided against each other reservation's own spans.
	reservations, err := e.listReservations(ctx, owner, padded.Expanded(e.opts.MaxPadding, e.opts.MaxPadding))
	if err != nil {
		return err
	}

	id := r.ReservationID()
	var busyIDs, paddingIDs []string
	for _, other := range reservations {
		otherID := other.ReservationID()
		if id != "" && otherID == id {
			continue
		}
		for _, held := range other.ReservedSpans() {
			if !held.IsValid() {
				continue
			}
			q := e.padding(other, held)
			switch {
			case held.Overlaps(span):
				busyIDs = unionIDs(busyIDs, []string{otherID})
			case held.Overlaps(padded), held.Expanded(q, q).Overlaps(span):
				paddingIDs = unionIDs(paddingIDs, []string{otherID})
			}
		}
	}

	if len(busyIDs) > 0 {
		return &ConflictError{Owner: owner, Span: span, Reason: ReasonBusy, BookingIDs: busyIDs}
	}
	if len(paddingIDs) > 0 {
		return &ConflictError{Owner: owner, Span: span, Reason: ReasonPadding, BookingIDs: paddingIDs}
	}
	return nil
}

// Footprint is every span r requests or holds, widened by its padding.
// Regenerating it before and after a change to r covers every slot the
// change can affect.
func (e *Engine) Footprint(r Reservation) []timespan.TimeSpan {
	var out []timespan.TimeSpan
	for _, span := range append(r.RequestedSpans(), r.ReservedSpans()...) {
		if !span.IsValid() {
			continue
		}
		p := e.padding(r, span)
		out = append(out, span.Expanded(p, p))
	}
	return timespan.Merge(out)
}
