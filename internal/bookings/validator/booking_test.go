package validator

import (
	"errors"
	"testing"
	"time"

	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/validation"
)

var (
	t9  = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	t14 = time.Date(2024, 3, 4, 14, 0, 0, 0, time.UTC)
)

func validBooking() *model.Booking {
	return &model.Booking{
		Owner:          model.OwnerRef{Type: "room", ID: "r1"},
		Label:          "Team sync",
		State:          model.BookingPending,
		RequestedTimes: []time.Time{t9, t14},
		DurationMin:    60,
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestBookingValidator_Validate(t *testing.T) {
	v := NewBookingValidator(logger.Discard())

	tests := []struct {
		name      string
		mutate    func(b *model.Booking)
		wantField string
	}{
		{
			name:   "valid pending",
			mutate: func(*model.Booking) {},
		},
		{
			name: "valid confirmed",
			mutate: func(b *model.Booking) {
				b.State = model.BookingConfirmed
				b.ConfirmedTime = ptr(t14)
			},
		},
		{
			name:      "label too short",
			mutate:    func(b *model.Booking) { b.Label = "x" },
			wantField: "Label",
		},
		{
			name:      "unknown state",
			mutate:    func(b *model.Booking) { b.State = "tentative" },
			wantField: "State",
		},
		{
			name:      "too many times",
			mutate:    func(b *model.Booking) { b.RequestedTimes = append(b.RequestedTimes, t9.Add(time.Hour)) },
			wantField: "RequestedTimes",
		},
		{
			name:      "duplicate times",
			mutate:    func(b *model.Booking) { b.RequestedTimes = []time.Time{t9, t9.In(time.FixedZone("X", 3600))} },
			wantField: "RequestedTimes",
		},
		{
			name:      "zero duration",
			mutate:    func(b *model.Booking) { b.DurationMin = 0 },
			wantField: "DurationMin",
		},
		{
			name:      "duration over a day",
			mutate:    func(b *model.Booking) { b.DurationMin = 1441 },
			wantField: "DurationMin",
		},
		{
			name:      "negative padding",
			mutate:    func(b *model.Booking) { b.PaddingMin = ptr(-5) },
			wantField: "PaddingMin",
		},
		{
			name:      "confirmed without time",
			mutate:    func(b *model.Booking) { b.State = model.BookingConfirmed },
			wantField: "ConfirmedTime",
		},
		{
			name:      "pending with time",
			mutate:    func(b *model.Booking) { b.ConfirmedTime = ptr(t9) },
			wantField: "ConfirmedTime",
		},
		{
			name: "confirmed time not requested",
			mutate: func(b *model.Booking) {
				b.State = model.BookingConfirmed
				b.ConfirmedTime = ptr(t9.Add(30 * time.Minute))
			},
			wantField: "ConfirmedTime",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBooking()
			tt.mutate(b)
			err := v.Validate(b)

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var verrs validation.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if verrs[0].Field != tt.wantField {
				t.Errorf("expected field %s, got %s (%v)", tt.wantField, verrs[0].Field, verrs)
			}
		})
	}
}

func TestBookingValidator_ValidatePadding(t *testing.T) {
	v := NewBookingValidator(logger.Discard())

	if err := v.ValidatePadding(&model.PaddingUpdate{}); err != nil {
		t.Errorf("clearing padding should be allowed: %v", err)
	}
	if err := v.ValidatePadding(&model.PaddingUpdate{PaddingMin: ptr(15)}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.ValidatePadding(&model.PaddingUpdate{PaddingMin: ptr(2000)}); err == nil {
		t.Error("expected error for padding above a day")
	}
}
