package service

import (
	"context"
	"errors"
	"sync"

	availabilitieserrors "agenda/internal/availabilities/errors"
	"agenda/internal/availabilities/repository"
	"agenda/internal/availabilities/validator"
	"agenda/internal/schedule"
	"agenda/pkg/config"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/model"
	"agenda/pkg/sanitizer"
	"agenda/pkg/timespan"

	"github.com/google/uuid"
)

type AvailabilityService interface {
	Create(ctx context.Context, availability *model.Availability) error
	GetByID(ctx context.Context, id string) (*model.Availability, error)
	GetByOwner(ctx context.Context, owner model.OwnerRef, limit int, offset int64) ([]*model.Availability, int64, error)
	Update(ctx context.Context, id string, updates *model.AvailabilityUpdate) (*model.Availability, error)
	Delete(ctx context.Context, id string) error
}

// Scheduler is the part of the schedule engine availability writes go
// through.
type Scheduler interface {
	Commit(ctx context.Context, owner model.OwnerRef, reason string, fn schedule.CommitFunc) (*schedule.RegenerationResult, error)
	HorizonWindow() timespan.TimeSpan
	AvailabilitySpans(ctx context.Context, owner model.OwnerRef, availabilityID string) ([]timespan.TimeSpan, error)
}

type availabilityService struct {
	repo      repository.AvailabilityRepository
	scheduler Scheduler
	validator *validator.AvailabilityValidator
	cfg       *config.Config
}

func NewAvailabilityService(
	repo repository.AvailabilityRepository,
	scheduler Scheduler,
	validator *validator.AvailabilityValidator,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{
		repo:      repo,
		scheduler: scheduler,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *availabilityService) Create(ctx context.Context, availability *model.Availability) error {
	s.sanitize(availability)
	if err := s.validate(availability); err != nil {
		return err
	}
	if availability.ID == "" {
		availability.ID = uuid.NewString()
	}

	_, err := s.scheduler.Commit(ctx, availability.Owner, schedule.ReasonAvailabilityChanged, func(txCtx context.Context) ([]timespan.TimeSpan, error) {
		if err := s.repo.Create(txCtx, availability); err != nil {
			return nil, apperrors.Internal("Failed to create availability", err)
		}
		return []timespan.TimeSpan{s.scheduler.HorizonWindow()}, nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create availability", "owner", availability.Owner.Key(), "error", err)
		return commitError(err, "Failed to create availability")
	}

	s.cfg.Log.Info("Availability created successfully",
		"id", availability.ID,
		"owner", availability.Owner.Key(),
		"start_date", availability.StartDate,
	)
	return nil
}

func (s *availabilityService) GetByID(ctx context.Context, id string) (*model.Availability, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Availability ID cannot be empty")
	}

	availability, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id, "Failed to retrieve availability")
	}
	return availability, nil
}

func (s *availabilityService) GetByOwner(ctx context.Context, owner model.OwnerRef, limit int, offset int64) ([]*model.Availability, int64, error) {
	owner = sanitizeOwner(owner)
	if owner.Type == "" || owner.ID == "" {
		return nil, 0, apperrors.InvalidInput("Owner type and id are required")
	}
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var availabilities []*model.Availability
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByOwner(ctx, owner)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count availabilities", "owner", owner.Key(), "error", errCount)
			errCount = apperrors.Internal("Failed to count availabilities", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		availabilities, errFind = s.repo.FindByOwner(ctx, owner, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list availabilities", "owner", owner.Key(), "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve availabilities", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return availabilities, count, nil
}

func (s *availabilityService) Update(ctx context.Context, id string, updates *model.AvailabilityUpdate) (*model.Availability, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Availability ID cannot be empty")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, id, "Failed to check availability existence")
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Availability update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := mergeAvailabilityUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(merged); err != nil {
		return nil, err
	}

	_, err = s.scheduler.Commit(ctx, merged.Owner, schedule.ReasonAvailabilityChanged, func(txCtx context.Context) ([]timespan.TimeSpan, error) {
		if err := s.repo.Update(txCtx, merged); err != nil {
			return nil, mapRepoError(err, id, "Failed to update availability")
		}
		return s.affectedSpans(txCtx, merged.Owner, id)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update availability", "id", id, "error", err)
		return nil, commitError(err, "Failed to update availability")
	}

	s.cfg.Log.Info("Availability updated successfully", "id", id, "owner", merged.Owner.Key())
	return merged, nil
}

func (s *availabilityService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Availability ID cannot be empty")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return mapRepoError(err, id, "Failed to check availability existence")
	}

	_, err = s.scheduler.Commit(ctx, existing.Owner, schedule.ReasonAvailabilityChanged, func(txCtx context.Context) ([]timespan.TimeSpan, error) {
		if err := s.repo.Delete(txCtx, id); err != nil {
			return nil, mapRepoError(err, id, "Failed to delete availability")
		}
		return s.affectedSpans(txCtx, existing.Owner, id)
	})
	if err != nil {
		s.cfg.Log.Error("Failed to delete availability", "id", id, "error", err)
		return commitError(err, "Failed to delete availability")
	}

	s.cfg.Log.Info("Availability deleted successfully", "id", id, "owner", existing.Owner.Key())
	return nil
}

// affectedSpans is the horizon plus wherever the availability already has
// occurrences, so none of them outlives an edit.
func (s *availabilityService) affectedSpans(ctx context.Context, owner model.OwnerRef, id string) ([]timespan.TimeSpan, error) {
	stored, err := s.scheduler.AvailabilitySpans(ctx, owner, id)
	if err != nil {
		return nil, apperrors.Internal("Failed to find availability occurrences", err)
	}
	return append([]timespan.TimeSpan{s.scheduler.HorizonWindow()}, stored...), nil
}

func (s *availabilityService) validate(availability *model.Availability) error {
	if err := s.validator.Validate(availability); err != nil {
		s.cfg.Log.Warn("Availability validation failed",
			"owner", availability.Owner.Key(),
			"error", err,
		)
		return apperrors.Validation("Invalid availability", map[string]any{
			"error": err.Error(),
		})
	}
	if _, err := availability.Rule(); err != nil {
		s.cfg.Log.Warn("Availability recurrence rejected",
			"owner", availability.Owner.Key(),
			"error", err,
		)
		return schedule.ToAppError(err)
	}
	return nil
}

func (s *availabilityService) sanitize(availability *model.Availability) {
	availability.Owner = sanitizeOwner(availability.Owner)
	availability.TimeZone = sanitizer.SanitizeTimeZone(availability.TimeZone)
	availability.Recurrence = sanitizer.SanitizeRecurrence(availability.Recurrence)
	availability.StartTime = sanitizer.TrimAndNormalize(availability.StartTime)
	availability.EndTime = sanitizer.TrimAndNormalize(availability.EndTime)
}

func sanitizeOwner(owner model.OwnerRef) model.OwnerRef {
	return model.OwnerRef{
		Type: sanitizer.SanitizeOwnerType(owner.Type),
		ID:   sanitizer.TrimAndNormalize(owner.ID),
	}
}

func mergeAvailabilityUpdates(existing *model.Availability, updates *model.AvailabilityUpdate) *model.Availability {
	merged := *existing
	if updates.StartDate != "" {
		merged.StartDate = updates.StartDate
	}
	if updates.StartTime != "" {
		merged.StartTime = updates.StartTime
	}
	if updates.EndTime != "" {
		merged.EndTime = updates.EndTime
	}
	if updates.Recurrence != nil {
		merged.Recurrence = *updates.Recurrence
	}
	if updates.TimeZone != "" {
		merged.TimeZone = updates.TimeZone
	}
	if updates.RecurUntil != nil {
		merged.RecurUntil = *updates.RecurUntil
	}
	return &merged
}

func mapRepoError(err error, id, message string) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, availabilitieserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Availability", id)
	case errors.Is(err, availabilitieserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid availability ID format")
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
