package repository

import (
	"context"
	"fmt"

	"agenda/internal/schedule"
	"agenda/pkg/model"
	"agenda/pkg/timespan"
)

// ReservedStates lists the states in which a booking holds its time.
func ReservedStates() []model.BookingState {
	return []model.BookingState{model.BookingConfirmed, model.BookingCompleted, model.BookingMissed}
}

// Touching keeps the bookings with a reserved span that overlaps or touches
// span.
func Touching(bookings []*model.Booking, span timespan.TimeSpan) []*model.Booking {
	out := bookings[:0]
	for _, b := range bookings {
		for _, reserved := range b.ReservedSpans() {
			if reserved.Touches(span) {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

type reservationSource struct {
	repo BookingRepository
}

// NewReservationSource feeds the reserved bookings of repo to the schedule
// engine.
func NewReservationSource(repo BookingRepository) schedule.ReservationSource {
	return &reservationSource{repo: repo}
}

func (s *reservationSource) Reservations(ctx context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]schedule.Reservation, error) {
	bookings, err := s.repo.FindReserved(ctx, owner, span)
	if err != nil {
		return nil, fmt.Errorf("failed to find reserved bookings: %w", err)
	}
	reservations := make([]schedule.Reservation, 0, len(bookings))
	for _, b := range bookings {
		reservations = append(reservations, b)
	}
	return reservations, nil
}
