package model

import (
	"slices"
	"time"

	"agenda/pkg/timespan"
)

type BookingState string

const (
	BookingPending   BookingState = "pending"
	BookingConfirmed BookingState = "confirmed"
	BookingDeclined  BookingState = "declined"
	BookingCompleted BookingState = "completed"
	BookingCancelled BookingState = "cancelled"
	BookingExpired   BookingState = "expired"
	BookingMissed    BookingState = "missed"
)

const (
	MaxRequestedTimes = 2
	MaxDurationMin    = 1440
)

// Reserved reports whether a booking in state s holds its time.
func (s BookingState) Reserved() bool {
	switch s {
	case BookingConfirmed, BookingCompleted, BookingMissed:
		return true
	default:
		return false
	}
}

func (s BookingState) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingDeclined, BookingCompleted,
		BookingCancelled, BookingExpired, BookingMissed:
		return true
	default:
		return false
	}
}

type Booking struct {
	ID             string       `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,uuid"`
	Owner          OwnerRef     `json:"owner" bson:"owner" validate:"required"`
	Label          string       `json:"label" bson:"label" validate:"required,min=2,max=100"`
	State          BookingState `json:"state" bson:"state" validate:"required,oneof=pending confirmed declined completed cancelled expired missed"`
	RequestedTimes []time.Time  `json:"requested_times" bson:"requested_times" validate:"required,min=1,max=2"`
	ConfirmedTime  *time.Time   `json:"confirmed_time,omitempty" bson:"confirmed_time,omitempty" validate:"omitempty"`
	DurationMin    int          `json:"duration_min" bson:"duration_min" validate:"required,min=1,max=1440"`
	PaddingMin     *int         `json:"padding_min,omitempty" bson:"padding_min,omitempty" validate:"omitempty,min=0,max=1440"`
	AllowOverlap   bool         `json:"allow_overlap" bson:"allow_overlap"`
	CreatedAt      time.Time    `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt      time.Time    `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

type BookingUpdate struct {
	Label        string `json:"label,omitempty" validate:"omitempty,min=2,max=100"`
	AllowOverlap *bool  `json:"allow_overlap,omitempty" validate:"omitempty"`
}

type PaddingUpdate struct {
	PaddingMin *int `json:"padding_min" validate:"omitempty,min=0,max=1440"`
}

func (b *Booking) ReservationID() string {
	return b.ID
}

func (b *Booking) ScheduleOwnerRef() OwnerRef {
	return b.Owner
}

func (b *Booking) Duration() time.Duration {
	return time.Duration(b.DurationMin) * time.Minute
}

// RequestedSpans is the confirmed span once there is one, otherwise every
// requested span.
func (b *Booking) RequestedSpans() []timespan.TimeSpan {
	if b.ConfirmedTime != nil {
		return []timespan.TimeSpan{timespan.Of(b.ConfirmedTime.UTC(), b.Duration())}
	}
	spans := make([]timespan.TimeSpan, 0, len(b.RequestedTimes))
	for _, t := range b.RequestedTimes {
		spans = append(spans, timespan.Of(t.UTC(), b.Duration()))
	}
	return spans
}

// ReservedSpans is what the booking currently holds on the schedule.
func (b *Booking) ReservedSpans() []timespan.TimeSpan {
	if !b.State.Reserved() || b.ConfirmedTime == nil {
		return nil
	}
	return []timespan.TimeSpan{timespan.Of(b.ConfirmedTime.UTC(), b.Duration())}
}

// PaddingDuration returns the booking's own padding, if it set one.
func (b *Booking) PaddingDuration() (time.Duration, bool) {
	if b.PaddingMin == nil {
		return 0, false
	}
	return time.Duration(*b.PaddingMin) * time.Minute, true
}

func (b *Booking) AllowsOverlap() bool {
	return b.AllowOverlap
}

// Confirm fixes the booking on one of its requested times.
func (b *Booking) Confirm(at time.Time) error {
	if b.State != BookingPending {
		return ErrInvalidState
	}
	if !slices.ContainsFunc(b.RequestedTimes, at.Equal) {
		return ErrInvalidTime
	}
	t := at.UTC()
	b.ConfirmedTime = &t
	b.State = BookingConfirmed
	return nil
}

// Cancel declines a pending booking or cancels a confirmed one.
func (b *Booking) Cancel() error {
	switch b.State {
	case BookingPending:
		b.State = BookingDeclined
	case BookingConfirmed:
		b.State = BookingCancelled
	default:
		return ErrInvalidState
	}
	return nil
}

// Reschedule replaces the requested times and puts the booking back to
// pending.
func (b *Booking) Reschedule(times []time.Time) error {
	if b.State != BookingPending && b.State != BookingConfirmed {
		return ErrInvalidState
	}
	if len(times) == 0 || len(times) > MaxRequestedTimes {
		return ErrInvalidTime
	}
	requested := make([]time.Time, 0, len(times))
	for _, t := range times {
		if t.IsZero() {
			return ErrInvalidTime
		}
		requested = append(requested, t.UTC())
	}
	b.RequestedTimes = requested
	b.ConfirmedTime = nil
	b.State = BookingPending
	return nil
}

// Expire marks a pending booking that was never confirmed.
func (b *Booking) Expire(now time.Time) error {
	if b.State != BookingPending {
		return ErrInvalidState
	}
	for _, span := range b.RequestedSpans() {
		if span.Start.After(now) {
			return ErrInvalidTime
		}
	}
	b.State = BookingExpired
	return nil
}

// Finish closes a confirmed booking once its time has passed.
func (b *Booking) Finish(happened bool, now time.Time) error {
	if b.State != BookingConfirmed || b.ConfirmedTime == nil {
		return ErrInvalidState
	}
	if timespan.Of(*b.ConfirmedTime, b.Duration()).End.After(now) {
		return ErrInvalidTime
	}
	if happened {
		b.State = BookingCompleted
	} else {
		b.State = BookingMissed
	}
	return nil
}
