package model

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 4, hour, minute, 0, 0, time.UTC)
}

func newPending(times ...time.Time) *Booking {
	return &Booking{
		ID:             "b1",
		Owner:          OwnerRef{Type: "room", ID: "r1"},
		Label:          "Consultation",
		State:          BookingPending,
		RequestedTimes: times,
		DurationMin:    60,
	}
}

func TestBookingStateReserved(t *testing.T) {
	tests := []struct {
		state    BookingState
		reserved bool
	}{
		{BookingPending, false},
		{BookingConfirmed, true},
		{BookingDeclined, false},
		{BookingCompleted, true},
		{BookingCancelled, false},
		{BookingExpired, false},
		{BookingMissed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if !tt.state.Valid() {
				t.Errorf("expected %s to be valid", tt.state)
			}
			if got := tt.state.Reserved(); got != tt.reserved {
				t.Errorf("expected Reserved %v, got %v", tt.reserved, got)
			}
		})
	}

	if BookingState("UNC").Valid() {
		t.Error("expected unknown state to be invalid")
	}
}

func TestBookingConfirm(t *testing.T) {
	b := newPending(at(9, 0), at(14, 0))

	if err := b.Confirm(at(10, 0)); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("expected ErrInvalidTime for unrequested time, got %v", err)
	}
	if len(b.ReservedSpans()) != 0 {
		t.Errorf("expected pending booking to reserve nothing")
	}
	if got := len(b.RequestedSpans()); got != 2 {
		t.Errorf("expected 2 requested spans, got %d", got)
	}

	if err := b.Confirm(at(14, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State != BookingConfirmed {
		t.Errorf("expected confirmed, got %s", b.State)
	}
	reserved := b.ReservedSpans()
	if len(reserved) != 1 || !reserved[0].Start.Equal(at(14, 0)) || !reserved[0].End.Equal(at(15, 0)) {
		t.Errorf("expected 14:00-15:00 reserved, got %v", reserved)
	}
	if got := b.RequestedSpans(); len(got) != 1 {
		t.Errorf("expected only the confirmed span to be requested, got %v", got)
	}

	if err := b.Confirm(at(9, 0)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState confirming twice, got %v", err)
	}
}

func TestBookingCancel(t *testing.T) {
	tests := []struct {
		name    string
		state   BookingState
		want    BookingState
		wantErr error
	}{
		{"pending is declined", BookingPending, BookingDeclined, nil},
		{"confirmed is cancelled", BookingConfirmed, BookingCancelled, nil},
		{"completed cannot cancel", BookingCompleted, BookingCompleted, ErrInvalidState},
		{"expired cannot cancel", BookingExpired, BookingExpired, ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newPending(at(9, 0))
			b.State = tt.state
			err := b.Cancel()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if b.State != tt.want {
				t.Errorf("expected state %s, got %s", tt.want, b.State)
			}
		})
	}
}

func TestBookingReschedule(t *testing.T) {
	b := newPending(at(9, 0))
	if err := b.Confirm(at(9, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := b.Reschedule(nil); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime for no times, got %v", err)
	}
	if err := b.Reschedule([]time.Time{at(1, 0), at(2, 0), at(3, 0)}); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime for too many times, got %v", err)
	}

	if err := b.Reschedule([]time.Time{at(11, 0)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State != BookingPending || b.ConfirmedTime != nil {
		t.Errorf("expected pending without confirmed time, got %s %v", b.State, b.ConfirmedTime)
	}
	if len(b.ReservedSpans()) != 0 {
		t.Error("expected rescheduled booking to release its time")
	}

	b.State = BookingCancelled
	if err := b.Reschedule([]time.Time{at(12, 0)}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestBookingExpireAndFinish(t *testing.T) {
	b := newPending(at(9, 0))
	if err := b.Expire(at(8, 0)); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime before the requested time, got %v", err)
	}
	if err := b.Expire(at(9, 30)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State != BookingExpired {
		t.Errorf("expected expired, got %s", b.State)
	}

	b = newPending(at(9, 0))
	if err := b.Finish(true, at(12, 0)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState finishing a pending booking, got %v", err)
	}
	if err := b.Confirm(at(9, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Finish(true, at(9, 30)); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime before the end, got %v", err)
	}
	if err := b.Finish(false, at(10, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State != BookingMissed {
		t.Errorf("expected missed, got %s", b.State)
	}
	if len(b.ReservedSpans()) != 1 {
		t.Error("expected a missed booking to keep its time")
	}
}

func TestBookingPaddingDuration(t *testing.T) {
	b := newPending(at(9, 0))
	if _, ok := b.PaddingDuration(); ok {
		t.Error("expected no padding when unset")
	}
	thirty := 30
	b.PaddingMin = &thirty
	d, ok := b.PaddingDuration()
	if !ok || d != 30*time.Minute {
		t.Errorf("expected 30m padding, got %v %v", d, ok)
	}
}

func TestAvailabilityReference(t *testing.T) {
	tests := []struct {
		name    string
		a       Availability
		wantErr bool
	}{
		{
			name: "valid",
			a:    Availability{StartDate: "2024-03-04", StartTime: "08:00", EndTime: "17:00", TimeZone: "America/Vancouver"},
		},
		{
			name: "with until",
			a:    Availability{StartDate: "2024-03-04", StartTime: "08:00", EndTime: "17:00", TimeZone: "UTC", RecurUntil: "2024-04-01"},
		},
		{
			name:    "end before start",
			a:       Availability{StartDate: "2024-03-04", StartTime: "17:00", EndTime: "08:00", TimeZone: "UTC"},
			wantErr: true,
		},
		{
			name:    "unknown zone",
			a:       Availability{StartDate: "2024-03-04", StartTime: "08:00", EndTime: "17:00", TimeZone: "Mars/Olympus"},
			wantErr: true,
		},
		{
			name:    "bad date",
			a:       Availability{StartDate: "04/03/2024", StartTime: "08:00", EndTime: "17:00", TimeZone: "UTC"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := tt.a.Reference()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ref.Duration != 9*time.Hour {
				t.Errorf("expected 9h duration, got %v", ref.Duration)
			}
			if ref.Start.Hour() != 8 || ref.Start.Day() != 4 {
				t.Errorf("expected wall clock 2024-03-04 08:00, got %v", ref.Start)
			}
		})
	}
}

func TestOwnerRefKey(t *testing.T) {
	o := OwnerRef{Type: "room", ID: "42"}
	if o.Key() != "room:42" {
		t.Errorf("expected room:42, got %s", o.Key())
	}
	if o.ScheduleOwnerRef() != o {
		t.Error("expected OwnerRef to be its own schedule owner")
	}
	if !(OwnerRef{}).IsZero() || o.IsZero() {
		t.Error("unexpected IsZero result")
	}
}
