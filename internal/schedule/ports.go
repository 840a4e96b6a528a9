package schedule

import (
	"context"
	"time"

	"agenda/pkg/model"
	"agenda/pkg/timespan"
)

// Store persists what the engine reads and writes. Span queries return
// records that overlap or touch the span.
type Store interface {
	// WithinTx runs fn in one transaction. Calls nested inside fn join the
	// outer transaction.
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	ListAvailabilities(ctx context.Context, owner model.OwnerRef) ([]model.Availability, error)

	ListOccurrences(ctx context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]model.AvailabilityOccurrence, error)
	// ListOccurrencesByAvailability returns every stored occurrence of
	// owner that availabilityID contributed to, wherever it lies.
	ListOccurrencesByAvailability(ctx context.Context, owner model.OwnerRef, availabilityID string) ([]model.AvailabilityOccurrence, error)
	InsertOccurrences(ctx context.Context, occurrences []model.AvailabilityOccurrence) error
	DeleteOccurrences(ctx context.Context, ids []string) error

	ListTimeSlots(ctx context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]model.TimeSlot, error)
	InsertTimeSlots(ctx context.Context, slots []model.TimeSlot) error
	DeleteTimeSlots(ctx context.Context, ids []string) error

	// ListOwners returns every owner with at least one availability or
	// slot.
	ListOwners(ctx context.Context) ([]model.OwnerRef, error)
	// DeleteGenerated drops all occurrences and free slots.
	DeleteGenerated(ctx context.Context) (int64, error)
	// DeleteFreeSlotsBefore drops free slots that ended at or before t.
	DeleteFreeSlotsBefore(ctx context.Context, t time.Time) (int64, error)
}

// Reservation is anything that can hold time on an owner's schedule.
// RequestedSpans are checked on validation; ReservedSpans are what the
// reservation holds right now and become busy slots.
type Reservation interface {
	model.ScheduleOwner
	ReservationID() string
	RequestedSpans() []timespan.TimeSpan
	ReservedSpans() []timespan.TimeSpan
}

// ReservationSource lists the reservations of owner that may hold time in
// span.
type ReservationSource interface {
	Reservations(ctx context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]Reservation, error)
}

type overlapAllower interface {
	AllowsOverlap() bool
}

type ownPadding interface {
	PaddingDuration() (time.Duration, bool)
}

// PaddingPolicy decides the buffer kept free on both sides of a reserved
// span.
type PaddingPolicy interface {
	Padding(r Reservation, span timespan.TimeSpan) time.Duration
}

type PaddingFunc func(r Reservation, span timespan.TimeSpan) time.Duration

func (f PaddingFunc) Padding(r Reservation, span timespan.TimeSpan) time.Duration {
	return f(r, span)
}

// StaticPadding pads every reservation by the same amount.
type StaticPadding time.Duration

func (p StaticPadding) Padding(Reservation, timespan.TimeSpan) time.Duration {
	return time.Duration(p)
}

// BookingPadding uses the reservation's own padding when it has one and
// Default otherwise.
type BookingPadding struct {
	Default time.Duration
}

func (p BookingPadding) Padding(r Reservation, _ timespan.TimeSpan) time.Duration {
	if own, ok := r.(ownPadding); ok {
		if d, set := own.PaddingDuration(); set {
			return d
		}
	}
	return p.Default
}

const (
	ReasonAvailabilityChanged = "availability_changed"
	ReasonBookingChanged      = "booking_changed"
	ReasonPaddingChanged      = "padding_changed"
	ReasonRegenerate          = "regenerate"
	ReasonMaintenance         = "maintenance"
)

// ScheduleChange describes one committed regeneration.
type ScheduleChange struct {
	Owner  model.OwnerRef
	Reason string
	Result *RegenerationResult
	At     time.Time
}

// Publisher is told about every regeneration that changed something.
type Publisher interface {
	ScheduleChanged(ctx context.Context, change ScheduleChange) error
}

type RegenerationResult struct {
	Owner               model.OwnerRef    `json:"owner"`
	Window              timespan.TimeSpan `json:"window"`
	OccurrencesInserted int               `json:"occurrences_inserted"`
	OccurrencesDeleted  int               `json:"occurrences_deleted"`
	SlotsInserted       int               `json:"slots_inserted"`
	SlotsDeleted        int               `json:"slots_deleted"`
	SlotsKept           int               `json:"slots_kept"`
}

// add folds other into r. The window becomes the hull of both.
func (r *RegenerationResult) add(other *RegenerationResult) *RegenerationResult {
	if r == nil {
		return other
	}
	if hull, ok := timespan.Hull(r.Window, other.Window); ok {
		r.Window = hull
	}
	r.OccurrencesInserted += other.OccurrencesInserted
	r.OccurrencesDeleted += other.OccurrencesDeleted
	r.SlotsInserted += other.SlotsInserted
	r.SlotsDeleted += other.SlotsDeleted
	r.SlotsKept += other.SlotsKept
	return r
}

func (r *RegenerationResult) Changed() bool {
	return r != nil && r.OccurrencesInserted+r.OccurrencesDeleted+r.SlotsInserted+r.SlotsDeleted > 0
}
