package validator

import (
	"fmt"
	"slices"
	"time"

	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to initialize booking validator", "error", err)
	}

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func fieldError(field, message string) validation.ValidationErrors {
	return validation.ValidationErrors{
		validation.ValidationError{Field: field, Message: message},
	}
}

// Validate checks a whole booking: field formats, requested times, and that
// the confirmed time agrees with the state.
func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := validation.Struct(v.validate, booking); err != nil {
		return err
	}

	if err := v.ValidateTimes(booking.RequestedTimes); err != nil {
		return err
	}

	switch {
	case booking.State.Reserved() && booking.ConfirmedTime == nil:
		return fieldError("ConfirmedTime", fmt.Sprintf("confirmed_time is required in state %s", booking.State))
	case booking.State == model.BookingPending && booking.ConfirmedTime != nil:
		return fieldError("ConfirmedTime", "a pending booking cannot have a confirmed_time")
	case booking.ConfirmedTime != nil && !slices.ContainsFunc(booking.RequestedTimes, booking.ConfirmedTime.Equal):
		return fieldError("ConfirmedTime", "confirmed_time must be one of requested_times")
	}

	return nil
}

// ValidateTimes checks a set of requested start times.
func (v *BookingValidator) ValidateTimes(times []time.Time) error {
	if len(times) == 0 || len(times) > model.MaxRequestedTimes {
		return fieldError("RequestedTimes", fmt.Sprintf("between 1 and %d requested times are required", model.MaxRequestedTimes))
	}
	for i, t := range times {
		if t.IsZero() {
			return fieldError("RequestedTimes", "requested times must be set")
		}
		if slices.ContainsFunc(times[:i], t.Equal) {
			return fieldError("RequestedTimes", "requested times must be distinct")
		}
	}
	return nil
}

func (v *BookingValidator) ValidateUpdate(update *model.BookingUpdate) error {
	return validation.Struct(v.validate, update)
}

func (v *BookingValidator) ValidatePadding(update *model.PaddingUpdate) error {
	return validation.Struct(v.validate, update)
}
