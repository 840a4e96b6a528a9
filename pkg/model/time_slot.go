package model

import (
	"time"

	"agenda/pkg/timespan"
)

// TimeSlot is a persisted free or busy span. Busy slots name the bookings
// that hold them; Padding marks the buffer around a booking.
type TimeSlot struct {
	ID         string    `json:"id" bson:"_id"`
	Owner      OwnerRef  `json:"owner" bson:"owner"`
	Start      time.Time `json:"start" bson:"start"`
	End        time.Time `json:"end" bson:"end"`
	Busy       bool      `json:"busy" bson:"busy"`
	Padding    bool      `json:"padding" bson:"padding"`
	BookingIDs []string  `json:"booking_ids,omitempty" bson:"booking_ids"`
}

func (s *TimeSlot) Span() timespan.TimeSpan {
	return timespan.TimeSpan{Start: s.Start, End: s.End}
}
