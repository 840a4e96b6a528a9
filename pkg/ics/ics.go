// Package ics renders an owner's time slots as an iCalendar feed. Free
// slots are transparent events, busy and padding slots are opaque.
package ics

import (
	"io"
	"strings"
	"time"

	"agenda/pkg/model"

	ical "github.com/arran4/golang-ical"
)

const (
	ProductID   = "-//agenda//time slots//EN"
	ContentType = "text/calendar; charset=utf-8"

	SummaryFree    = "Free"
	SummaryBusy    = "Busy"
	SummaryPadding = "Padding"
)

// Calendar builds the feed for owner. stamp is written as DTSTAMP on every
// event.
func Calendar(owner model.OwnerRef, slots []model.TimeSlot, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetXWRCalName(owner.Key())

	for i := range slots {
		s := &slots[i]
		event := cal.AddEvent(s.ID + "@" + owner.Key())
		event.SetDtStampTime(stamp.UTC())
		event.SetStartAt(s.Start.UTC())
		event.SetEndAt(s.End.UTC())
		event.SetSummary(summary(s))
		if s.Busy {
			event.SetProperty(ical.ComponentPropertyTransp, "OPAQUE")
		} else {
			event.SetProperty(ical.ComponentPropertyTransp, "TRANSPARENT")
		}
		if len(s.BookingIDs) > 0 {
			event.SetDescription("bookings: " + strings.Join(s.BookingIDs, ","))
		}
	}
	return cal
}

// Write serializes the feed for owner to w.
func Write(w io.Writer, owner model.OwnerRef, slots []model.TimeSlot, stamp time.Time) error {
	_, err := io.WriteString(w, Calendar(owner, slots, stamp).Serialize())
	return err
}

func summary(s *model.TimeSlot) string {
	switch {
	case s.Padding:
		return SummaryPadding
	case s.Busy:
		return SummaryBusy
	default:
		return SummaryFree
	}
}
