package model

import (
	"time"

	"agenda/pkg/timespan"
)

// AvailabilityOccurrence is a concrete, merged span of availability. One
// occurrence may come from several availabilities that overlap or touch.
type AvailabilityOccurrence struct {
	ID              string    `json:"id" bson:"_id"`
	Owner           OwnerRef  `json:"owner" bson:"owner"`
	AvailabilityIDs []string  `json:"availability_ids" bson:"availability_ids"`
	Start           time.Time `json:"start" bson:"start"`
	End             time.Time `json:"end" bson:"end"`
}

func (o *AvailabilityOccurrence) Span() timespan.TimeSpan {
	return timespan.TimeSpan{Start: o.Start, End: o.End}
}
