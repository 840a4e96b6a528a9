package model

import (
	"fmt"
	"time"

	"agenda/pkg/recurrence"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Availability is a declared, possibly recurring, window in which an owner
// can be booked. Dates and clock times are wall-clock values in TimeZone.
type Availability struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid"`
	Owner      OwnerRef  `json:"owner" bson:"owner" validate:"required"`
	StartDate  string    `json:"start_date" bson:"start_date" validate:"required,datetime=2006-01-02"`
	StartTime  string    `json:"start_time" bson:"start_time" validate:"required,clock_time"`
	EndTime    string    `json:"end_time" bson:"end_time" validate:"required,clock_time"`
	Recurrence string    `json:"recurrence,omitempty" bson:"recurrence" validate:"max=4000"`
	TimeZone   string    `json:"timezone" bson:"timezone" validate:"required,timezone"`
	RecurUntil string    `json:"recur_until,omitempty" bson:"recur_until,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

type AvailabilityUpdate struct {
	StartDate  string  `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	StartTime  string  `json:"start_time,omitempty" validate:"omitempty,clock_time"`
	EndTime    string  `json:"end_time,omitempty" validate:"omitempty,clock_time"`
	Recurrence *string `json:"recurrence,omitempty" validate:"omitempty,max=4000"`
	TimeZone   string  `json:"timezone,omitempty" validate:"omitempty,timezone"`
	RecurUntil *string `json:"recur_until,omitempty" validate:"omitempty"`
}

func (a *Availability) ScheduleOwnerRef() OwnerRef {
	return a.Owner
}

// Rule parses the recurrence text.
func (a *Availability) Rule() (*recurrence.Rule, error) {
	return recurrence.Parse(a.Recurrence)
}

// Reference anchors the recurrence on the start date and clock times.
func (a *Availability) Reference() (recurrence.Reference, error) {
	loc, err := time.LoadLocation(a.TimeZone)
	if err != nil {
		return recurrence.Reference{}, fmt.Errorf("unknown time zone %q: %w", a.TimeZone, err)
	}
	date, err := time.Parse(DateLayout, a.StartDate)
	if err != nil {
		return recurrence.Reference{}, fmt.Errorf("invalid start date %q: %w", a.StartDate, err)
	}
	start, err := time.Parse(ClockLayout, a.StartTime)
	if err != nil {
		return recurrence.Reference{}, fmt.Errorf("invalid start time %q: %w", a.StartTime, err)
	}
	end, err := time.Parse(ClockLayout, a.EndTime)
	if err != nil {
		return recurrence.Reference{}, fmt.Errorf("invalid end time %q: %w", a.EndTime, err)
	}
	if !end.After(start) {
		return recurrence.Reference{}, fmt.Errorf("end time %s must be after start time %s", a.EndTime, a.StartTime)
	}

	ref := recurrence.Reference{
		Start:    time.Date(date.Year(), date.Month(), date.Day(), start.Hour(), start.Minute(), 0, 0, time.UTC),
		Duration: end.Sub(start),
		Location: loc,
	}
	if a.RecurUntil != "" {
		until, err := time.Parse(DateLayout, a.RecurUntil)
		if err != nil {
			return recurrence.Reference{}, fmt.Errorf("invalid recur_until %q: %w", a.RecurUntil, err)
		}
		ref.Until = until
	}
	return ref, nil
}
