package schedule

import (
	"errors"
	"fmt"
	"strings"

	"agenda/pkg/model"
	"agenda/pkg/recurrence"
	"agenda/pkg/timespan"

	apperrors "agenda/pkg/errors"
)

// InvalidRuleError is returned when an availability's recurrence cannot be
// parsed.
type InvalidRuleError = recurrence.InvalidRuleError

type ConflictReason string

const (
	ReasonUnavailable ConflictReason = "unavailable"
	ReasonBusy        ConflictReason = "busy"
	ReasonPadding     ConflictReason = "padding"
)

// ConflictError rejects a requested span that is not free for the owner.
type ConflictError struct {
	Owner      model.OwnerRef
	Span       timespan.TimeSpan
	Reason     ConflictReason
	BookingIDs []string
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case ReasonUnavailable:
		return fmt.Sprintf("%s is not available during %s", e.Owner, e.Span)
	case ReasonPadding:
		return fmt.Sprintf("%s conflicts with the padding of bookings %s", e.Span, strings.Join(e.BookingIDs, ","))
	default:
		return fmt.Sprintf("%s overlaps bookings %s", e.Span, strings.Join(e.BookingIDs, ","))
	}
}

// RegenerationError means the owner's occurrences or slots could not be
// rebuilt. Any write it was part of has been rolled back.
type RegenerationError struct {
	Owner  model.OwnerRef
	Window timespan.TimeSpan
	Err    error
}

func (e *RegenerationError) Error() string {
	return fmt.Sprintf("failed to regenerate schedule of %s over %s: %v", e.Owner, e.Window, e.Err)
}

func (e *RegenerationError) Unwrap() error {
	return e.Err
}

// ToAppError maps engine errors onto API errors. Other errors are returned
// unchanged.
func ToAppError(err error) error {
	if err == nil {
		return nil
	}

	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return apperrors.Conflict(conflict.Error()).WithDetails(map[string]any{
			"reason":      string(conflict.Reason),
			"start":       conflict.Span.Start,
			"end":         conflict.Span.End,
			"booking_ids": conflict.BookingIDs,
		})
	}

	var ruleErr *InvalidRuleError
	if errors.As(err, &ruleErr) {
		return apperrors.InvalidRule("Invalid recurrence rule", map[string]any{
			"rule":   ruleErr.Rule,
			"reason": ruleErr.Reason,
		})
	}

	var regenErr *RegenerationError
	if errors.As(err, &regenErr) {
		return apperrors.RegenerationFailed("Failed to regenerate schedule", err)
	}

	return err
}
