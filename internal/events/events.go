// Package events carries schedule changes out to Kafka and turns
// regeneration requests coming in from Kafka into agenda API calls.
package events

import (
	"time"

	"agenda/pkg/model"
	"agenda/pkg/timespan"
)

const (
	EventScheduleChanged       = "schedule.changed"
	EventRegenerationRequested = "schedule.regeneration_requested"

	SchemaVersion = "1"
	Source        = "agenda"
)

// ScheduleChanged is the payload published after a regeneration changed
// an owner's slots.
type ScheduleChanged struct {
	Owner               model.OwnerRef    `json:"owner"`
	Reason              string            `json:"reason"`
	Window              timespan.TimeSpan `json:"window"`
	OccurrencesInserted int               `json:"occurrences_inserted"`
	OccurrencesDeleted  int               `json:"occurrences_deleted"`
	SlotsInserted       int               `json:"slots_inserted"`
	SlotsDeleted        int               `json:"slots_deleted"`
	At                  time.Time         `json:"at"`
}

// RegenerationRequest asks for an owner's slots to be rebuilt. A zero
// window means the configured horizon from now.
type RegenerationRequest struct {
	Owner model.OwnerRef `json:"owner" validate:"required"`
	Start time.Time      `json:"start,omitzero"`
	End   time.Time      `json:"end,omitzero"`
}
