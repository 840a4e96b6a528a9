package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingserrors "agenda/internal/bookings/errors"
	"agenda/internal/bookings/repository"
	"agenda/internal/bookings/validator"
	"agenda/internal/schedule"
	"agenda/pkg/config"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/model"
	"agenda/pkg/sanitizer"
	"agenda/pkg/timespan"

	"github.com/google/uuid"
)

type BookingService interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	List(ctx context.Context, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error)
	Update(ctx context.Context, id string, updates *model.BookingUpdate) (*model.Booking, error)
	SetPadding(ctx context.Context, id string, update *model.PaddingUpdate) (*model.Booking, error)
	Confirm(ctx context.Context, id string, at time.Time) (*model.Booking, error)
	Cancel(ctx context.Context, id string) (*model.Booking, error)
	Reschedule(ctx context.Context, id string, times []time.Time) (*model.Booking, error)
	Finish(ctx context.Context, id string, happened bool) (*model.Booking, error)
	Expire(ctx context.Context, id string) (*model.Booking, error)
	// ExpireStale expires up to limit pending bookings whose requested
	// times have all started.
	ExpireStale(ctx context.Context, limit int) (int, error)
	Delete(ctx context.Context, id string) error
}

// Scheduler is the part of the schedule engine booking writes go through.
type Scheduler interface {
	Commit(ctx context.Context, owner model.OwnerRef, reason string, fn schedule.CommitFunc) (*schedule.RegenerationResult, error)
	ValidateBooking(ctx context.Context, r schedule.Reservation) error
	Footprint(r schedule.Reservation) []timespan.TimeSpan
}

type bookingService struct {
	repo      repository.BookingRepository
	scheduler Scheduler
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	scheduler Scheduler,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		scheduler: scheduler,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, booking *model.Booking) error {
	s.applyDefaults(booking)
	s.sanitize(booking)
	if booking.State != model.BookingPending && booking.State != model.BookingConfirmed {
		return apperrors.Validation("Booking validation failed", map[string]any{
			"error": fmt.Sprintf("a new booking must be %s or %s", model.BookingPending, model.BookingConfirmed),
		})
	}
	if err := s.validate(booking); err != nil {
		return err
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}

	_, err := s.scheduler.Commit(ctx, booking.Owner, schedule.ReasonBookingChanged, func(txCtx context.Context) ([]timespan.TimeSpan, error) {
		if err := s.scheduler.ValidateBooking(txCtx, booking); err != nil {
			return nil, err
		}
		if err := s.repo.Create(txCtx, booking); err != nil {
			return nil, apperrors.Internal("Failed to create booking", err)
		}
		return s.scheduler.Footprint(booking), nil
	})
	if err != nil {
		s.cfg.Log.Warn("Failed to create booking", "owner", booking.Owner.Key(), "error", err)
		return commitError(err, "Failed to create booking")
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"owner", booking.Owner.Key(),
		"state", booking.State,
		"requested_times", booking.RequestedTimes,
	)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id, "Failed to retrieve booking")
	}
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error) {
	filter.Owner = sanitizeOwner(filter.Owner)
	if (filter.Owner.Type == "") != (filter.Owner.ID == "") {
		return nil, 0, apperrors.InvalidInput("Owner type and id must be given together")
	}
	if filter.State != "" && !filter.State.Valid() {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("Unknown booking state: %s", filter.State))
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return nil, 0, apperrors.InvalidInput("'from' must be before 'to'")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.Find(ctx, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings",
				"limit", limit,
				"offset", offset,
				"error", errFind,
			)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	s.cfg.Log.Debug("Booking search completed",
		"owner", filter.Owner.Key(),
		"state", filter.State,
		"count", len(bookings),
		"total_count", count,
	)
	return bookings, count, nil
}

func (s *bookingService) Update(ctx context.Context, id string, updates *model.BookingUpdate) (*model.Booking, error) {
	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Booking update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	return s.change(ctx, id, "update", schedule.ReasonBookingChanged, func(b *model.Booking) (bool, error) {
		if updates.Label != "" {
			b.Label = sanitizer.NormalizeLabel(updates.Label)
		}
		overlapRevoked := false
		if updates.AllowOverlap != nil {
			overlapRevoked = b.AllowOverlap && !*updates.AllowOverlap
			b.AllowOverlap = *updates.AllowOverlap
		}
		return overlapRevoked && b.State.Reserved(), nil
	})
}

func (s *bookingService) SetPadding(ctx context.Context, id string, update *model.PaddingUpdate) (*model.Booking, error) {
	if err := s.validator.ValidatePadding(update); err != nil {
		s.cfg.Log.Warn("Booking padding validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid padding", map[string]any{"error": err.Error()})
	}

	return s.change(ctx, id, "set padding", schedule.ReasonPaddingChanged, func(b *model.Booking) (bool, error) {
		b.PaddingMin = update.PaddingMin
		return b.State.Reserved(), nil
	})
}

func (s *bookingService) Confirm(ctx context.Context, id string, at time.Time) (*model.Booking, error) {
	at = at.UTC().Truncate(time.Second)
	return s.change(ctx, id, "confirm", schedule.ReasonBookingChanged, func(b *model.Booking) (bool, error) {
		return true, b.Confirm(at)
	})
}

func (s *bookingService) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	return s.change(ctx, id, "cancel", schedule.ReasonBookingChanged, func(b *model.Booking) (bool, error) {
		return false, b.Cancel()
	})
}

func (s *bookingService) Reschedule(ctx context.Context, id string, times []time.Time) (*model.Booking, error) {
	times = normalizeTimes(times)
	if err := s.validator.ValidateTimes(times); err != nil {
		return nil, apperrors.Validation("Invalid requested times", map[string]any{"error": err.Error()})
	}
	return s.change(ctx, id, "reschedule", schedule.ReasonBookingChanged, func(b *model.Booking) (bool, error) {
		return true, b.Reschedule(times)
	})
}

func (s *bookingService) Finish(ctx context.Context, id string, happened bool) (*model.Booking, error) {
	return s.change(ctx, id, "finish", schedule.ReasonBookingChanged, func(b *model.Booking) (bool, error) {
		return false, b.Finish(happened, s.now())
	})
}

func (s *bookingService) Expire(ctx context.Context, id string) (*model.Booking, error) {
	return s.change(ctx, id, "expire", schedule.ReasonBookingChanged, func(b *model.Booking) (bool, error) {
		return false, b.Expire(s.now())
	})
}

func (s *bookingService) ExpireStale(ctx context.Context, limit int) (int, error) {
	stale, err := s.repo.FindPendingBefore(ctx, s.now().UTC(), limit)
	if err != nil {
		return 0, apperrors.Internal("Failed to find stale bookings", err)
	}

	expired := 0
	var errs []error
	for _, b := range stale {
		if _, err := s.Expire(ctx, b.ID); err != nil {
			s.cfg.Log.Warn("Failed to expire booking", "id", b.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		expired++
	}
	if expired > 0 {
		s.cfg.Log.Info("Expired stale bookings", "expired", expired, "failed", len(errs))
	}
	return expired, errors.Join(errs...)
}

func (s *bookingService) Delete(ctx context.Context, id string) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = s.scheduler.Commit(ctx, existing.Owner, schedule.ReasonBookingChanged, func(txCtx context.Context) ([]timespan.TimeSpan, error) {
		booking, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return nil, mapRepoError(err, id, "Failed to retrieve booking")
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			return nil, mapRepoError(err, id, "Failed to delete booking")
		}
		return s.scheduler.Footprint(booking), nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to delete booking", "id", id, "error", err)
		return commitError(err, "Failed to delete booking")
	}

	s.cfg.Log.Info("Booking deleted successfully", "id", id, "owner", existing.Owner.Key())
	return nil
}

// mutation changes a booking in place and reports whether the result must
// be validated against the schedule.
type mutation func(b *model.Booking) (validate bool, err error)

// change re-reads the booking under its owner's lock, applies mutate and
// stores the result. The booking's footprint before and after the change is
// regenerated in the same transaction.
func (s *bookingService) change(ctx context.Context, id, action, reason string, mutate mutation) (*model.Booking, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *model.Booking
	_, err = s.scheduler.Commit(ctx, existing.Owner, reason, func(txCtx context.Context) ([]timespan.TimeSpan, error) {
		booking, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return nil, mapRepoError(err, id, "Failed to retrieve booking")
		}
		before := s.scheduler.Footprint(booking)

		validate, err := mutate(booking)
		if err != nil {
			return nil, transitionError(err, action, booking)
		}
		if err := s.validate(booking); err != nil {
			return nil, err
		}
		if validate {
			if err := s.scheduler.ValidateBooking(txCtx, booking); err != nil {
				return nil, err
			}
		}
		if err := s.repo.Update(txCtx, booking); err != nil {
			return nil, mapRepoError(err, id, "Failed to update booking")
		}

		updated = booking
		return append(before, s.scheduler.Footprint(booking)...), nil
	})
	if err != nil {
		s.cfg.Log.Warn("Booking change rejected", "id", id, "action", action, "error", err)
		return nil, commitError(err, "Failed to "+action+" booking")
	}

	s.cfg.Log.Info("Booking changed successfully",
		"id", id,
		"action", action,
		"owner", updated.Owner.Key(),
		"state", updated.State,
	)
	return updated, nil
}

// --- Helpers ---

func (s *bookingService) sanitize(b *model.Booking) {
	b.Owner = sanitizeOwner(b.Owner)
	b.Label = sanitizer.NormalizeLabel(b.Label)
	b.RequestedTimes = normalizeTimes(b.RequestedTimes)
	if b.ConfirmedTime != nil {
		t := b.ConfirmedTime.UTC().Truncate(time.Second)
		b.ConfirmedTime = &t
	}
}

func (s *bookingService) applyDefaults(b *model.Booking) {
	if b.State == "" {
		b.State = model.BookingPending
	}
	if b.State == model.BookingConfirmed && b.ConfirmedTime == nil && len(b.RequestedTimes) == 1 {
		t := b.RequestedTimes[0]
		b.ConfirmedTime = &t
	}
}

func (s *bookingService) validate(booking *model.Booking) error {
	if err := s.validator.Validate(booking); err != nil {
		s.cfg.Log.Warn("Booking validation failed", "id", booking.ID, "error", err)
		return apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func sanitizeOwner(owner model.OwnerRef) model.OwnerRef {
	return model.OwnerRef{
		Type: sanitizer.SanitizeOwnerType(owner.Type),
		ID:   sanitizer.TrimAndNormalize(owner.ID),
	}
}

// normalizeTimes stores requested times in UTC at second precision so they
// compare equal after a round trip through either store.
func normalizeTimes(times []time.Time) []time.Time {
	out := make([]time.Time, 0, len(times))
	for _, t := range times {
		out = append(out, t.UTC().Truncate(time.Second))
	}
	return out
}

func transitionError(err error, action string, b *model.Booking) error {
	switch {
	case errors.Is(err, model.ErrInvalidState):
		return apperrors.Conflict(fmt.Sprintf("Cannot %s a booking in state %s", action, b.State)).WithDetails(map[string]any{
			"id":    b.ID,
			"state": string(b.State),
		})
	case errors.Is(err, model.ErrInvalidTime):
		return apperrors.Validation(fmt.Sprintf("Cannot %s booking at this time", action), map[string]any{
			"error": err.Error(),
		})
	default:
		return err
	}
}

func mapRepoError(err error, id, message string) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	default:
		return apperrors.Internal(message, err)
	}
}

func commitError(err error, message string) error {
	err = schedule.ToAppError(err)
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal(message, err)
}
