// Package schedule turns availabilities and reservations into persisted
// occurrences and free/busy time slots, and validates reservations against
// them.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agenda/pkg/lock"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/recurrence"
	"agenda/pkg/timespan"
)

const (
	DefaultHorizon    = 100 * 24 * time.Hour
	DefaultMaxPadding = 24 * time.Hour

	maxWindowExpansions = 8
	lockPrefix          = "schedule:"
)

type Options struct {
	// Horizon is how far ahead of now availability changes are
	// materialized.
	Horizon time.Duration
	// MaxPadding caps any padding the policy returns.
	MaxPadding time.Duration
	// AllowOverlap lets reservations share busy time.
	AllowOverlap bool
	// AllowUnscheduled lets reservations fall outside availability.
	AllowUnscheduled bool
	// MaxOccurrences caps one availability's expansion over one window.
	MaxOccurrences int
}

type Config struct {
	Store        Store
	Reservations ReservationSource
	Padding      PaddingPolicy
	Locker       lock.Locker
	Publisher    Publisher
	Log          *logger.Logger
	Options      Options
	Now          func() time.Time
}

type Engine struct {
	store        Store
	reservations ReservationSource
	pad          PaddingPolicy
	locker       lock.Locker
	publisher    Publisher
	log          *logger.Logger
	opts         Options
	now          func() time.Time
}

func NewEngine(cfg Config) *Engine {
	opts := cfg.Options
	if opts.Horizon <= 0 {
		opts.Horizon = DefaultHorizon
	}
	if opts.MaxPadding <= 0 {
		opts.MaxPadding = DefaultMaxPadding
	}
	if opts.MaxOccurrences <= 0 {
		opts.MaxOccurrences = recurrence.DefaultMaxOccurrences
	}

	e := &Engine{
		store:        cfg.Store,
		reservations: cfg.Reservations,
		pad:          cfg.Padding,
		locker:       cfg.Locker,
		publisher:    cfg.Publisher,
		log:          cfg.Log,
		opts:         opts,
		now:          cfg.Now,
	}
	if e.pad == nil {
		e.pad = StaticPadding(0)
	}
	if e.locker == nil {
		e.locker = lock.NewLocal()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = logger.Discard()
	}
	return e
}

func (e *Engine) Options() Options {
	return e.opts
}

// HorizonWindow is [now, now+Horizon).
func (e *Engine) HorizonWindow() timespan.TimeSpan {
	now := e.now().UTC().Truncate(time.Minute)
	return timespan.TimeSpan{Start: now, End: now.Add(e.opts.Horizon)}
}

// CommitFunc performs a write inside the owner's lock and transaction and
// returns the spans whose slots it may have changed.
type CommitFunc func(ctx context.Context) ([]timespan.TimeSpan, error)

// Commit runs fn for owner under the owner's lock and in one transaction,
// then regenerates the spans fn returns before committing. Spans that
// overlap or touch are regenerated together, the others one by one. If fn
// fails its error is returned as is; if regeneration fails the write is
// rolled back and a *RegenerationError is returned.
func (e *Engine) Commit(ctx context.Context, owner model.OwnerRef, reason string, fn CommitFunc) (*RegenerationResult, error) {
	unlock, err := e.locker.Lock(ctx, lockPrefix+owner.Key())
	if err != nil {
		return nil, &RegenerationError{Owner: owner, Err: fmt.Errorf("failed to lock owner: %w", err)}
	}
	defer unlock()

	var result *RegenerationResult
	err = e.store.WithinTx(ctx, func(txCtx context.Context) error {
		spans, err := fn(txCtx)
		if err != nil {
			return err
		}
		for _, window := range timespan.Merge(spans) {
			part, err := e.regenerate(txCtx, owner, window)
			if err != nil {
				return &RegenerationError{Owner: owner, Window: window, Err: err}
			}
			result = result.add(part)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, owner, reason, result)
	return result, nil
}

// Regenerate rebuilds owner's occurrences and slots over window.
func (e *Engine) Regenerate(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan) (*RegenerationResult, error) {
	return e.regenerateWithReason(ctx, owner, window, ReasonRegenerate)
}

// AvailabilityChanged rebuilds owner's schedule over the horizon.
func (e *Engine) AvailabilityChanged(ctx context.Context, owner model.OwnerRef) (*RegenerationResult, error) {
	return e.regenerateWithReason(ctx, owner, e.HorizonWindow(), ReasonAvailabilityChanged)
}

// AvailabilitySpans returns where the stored occurrences that
// availabilityID contributed to lie. Regenerating them drops whatever an
// edited or deleted availability no longer produces, inside the horizon
// or not.
func (e *Engine) AvailabilitySpans(ctx context.Context, owner model.OwnerRef, availabilityID string) ([]timespan.TimeSpan, error) {
	occurrences, err := e.store.ListOccurrencesByAvailability(ctx, owner, availabilityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list occurrences of availability %s: %w", availabilityID, err)
	}
	spans := make([]timespan.TimeSpan, 0, len(occurrences))
	for i := range occurrences {
		spans = append(spans, occurrences[i].Span())
	}
	return timespan.Merge(spans), nil
}

func (e *Engine) regenerateWithReason(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan, reason string) (*RegenerationResult, error) {
	if !window.IsValid() {
		return nil, &RegenerationError{Owner: owner, Window: window, Err: timespan.ErrInvalidSpan}
	}
	result, err := e.Commit(ctx, owner, reason, func(context.Context) ([]timespan.TimeSpan, error) {
		return []timespan.TimeSpan{window}, nil
	})
	if err != nil {
		var regenErr *RegenerationError
		if errors.As(err, &regenErr) {
			return nil, err
		}
		return nil, &RegenerationError{Owner: owner, Window: window, Err: err}
	}
	return result, nil
}

// regenerate must run under the owner's lock and inside a transaction.
func (e *Engine) regenerate(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan) (*RegenerationResult, error) {
	availabilities, err := e.store.ListAvailabilities(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list availabilities: %w", err)
	}
	sources, err := e.compile(availabilities)
	if err != nil {
		return nil, err
	}

	expanded, err := e.expandWindow(ctx, owner, window, sources)
	if err != nil {
		return nil, err
	}

	result := &RegenerationResult{Owner: owner, Window: expanded}

	occurrences, err := generate(sources, expanded)
	if err != nil {
		return nil, err
	}
	if err := e.reconcileOccurrences(ctx, owner, expanded, occurrences, result); err != nil {
		return nil, err
	}

	reservations, err := e.listReservations(ctx, owner, expanded.Expanded(e.opts.MaxPadding, e.opts.MaxPadding))
	if err != nil {
		return nil, err
	}
	desired := e.desiredSlots(occurrences, reservations, expanded)
	if err := e.reconcileSlots(ctx, owner, expanded, desired, result); err != nil {
		return nil, err
	}

	e.log.ForOwner(owner.Key()).Debug("Schedule regenerated",
		"window_start", expanded.Start,
		"window_end", expanded.End,
		"occurrences_inserted", result.OccurrencesInserted,
		"occurrences_deleted", result.OccurrencesDeleted,
		"slots_inserted", result.SlotsInserted,
		"slots_deleted", result.SlotsDeleted,
		"slots_kept", result.SlotsKept,
	)
	return result, nil
}

// expandWindow grows window until it covers every stored occurrence or
// slot, generated occurrence and padded reservation that touches it, so no
// record is ever cut at the window's edge.
func (e *Engine) expandWindow(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan, sources []source) (timespan.TimeSpan, error) {
	w := window
	for range maxWindowExpansions {
		next := w

		occurrences, err := e.store.ListOccurrences(ctx, owner, w)
		if err != nil {
			return w, fmt.Errorf("failed to list occurrences: %w", err)
		}
		for i := range occurrences {
			next = next.Union(occurrences[i].Span())
		}

		slots, err := e.store.ListTimeSlots(ctx, owner, w)
		if err != nil {
			return w, fmt.Errorf("failed to list time slots: %w", err)
		}
		for i := range slots {
			next = next.Union(slots[i].Span())
		}

		raw, err := rawSpans(sources, w.Expanded(time.Second, time.Second))
		if err != nil {
			return w, err
		}
		for _, span := range raw {
			next = next.Union(span)
		}

		reservations, err := e.listReservations(ctx, owner, w.Expanded(e.opts.MaxPadding, e.opts.MaxPadding))
		if err != nil {
			return w, err
		}
		for _, r := range reservations {
			for _, span := range r.ReservedSpans() {
				p := e.padding(r, span)
				padded := span.Expanded(p, p)
				if padded.Touches(w) {
					next = next.Union(padded)
				}
			}
		}

		if next.Equal(w) {
			return w, nil
		}
		w = next
	}

	e.log.ForOwner(owner.Key()).Warn("Schedule window still growing after expansion limit",
		"window_start", w.Start, "window_end", w.End)
	return w, nil
}

func (e *Engine) listReservations(ctx context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]Reservation, error) {
	if e.reservations == nil {
		return nil, nil
	}
	reservations, err := e.reservations.Reservations(ctx, owner, span)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservations, nil
}

func (e *Engine) publish(ctx context.Context, owner model.OwnerRef, reason string, result *RegenerationResult) {
	if e.publisher == nil || !result.Changed() {
		return
	}
	change := ScheduleChange{Owner: owner, Reason: reason, Result: result, At: e.now().UTC()}
	if err := e.publisher.ScheduleChanged(ctx, change); err != nil {
		e.log.Warn("Failed to publish schedule change", "owner", owner.Key(), "reason", reason, "error", err)
	}
}

// FreeTimes returns the free time of owner inside window, merged and
// clipped to it.
func (e *Engine) FreeTimes(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan) ([]timespan.TimeSpan, error) {
	if !window.IsValid() {
		return nil, timespan.ErrInvalidSpan
	}
	slots, err := e.store.ListTimeSlots(ctx, owner, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list time slots: %w", err)
	}
	var free []timespan.TimeSpan
	for i := range slots {
		if !slots[i].Busy {
			free = append(free, slots[i].Span())
		}
	}
	return timespan.Clip(timespan.Merge(free), window), nil
}

// TimeSlots returns the stored slots of owner that overlap window.
func (e *Engine) TimeSlots(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan) ([]model.TimeSlot, error) {
	if !window.IsValid() {
		return nil, timespan.ErrInvalidSpan
	}
	slots, err := e.store.ListTimeSlots(ctx, owner, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list time slots: %w", err)
	}
	out := slots[:0]
	for _, s := range slots {
		if s.Span().Overlaps(window) {
			out = append(out, s)
		}
	}
	return out, nil
}

// RecreateAll regenerates every known owner over window. It keeps going
// past failures and returns them joined.
func (e *Engine) RecreateAll(ctx context.Context, window timespan.TimeSpan) error {
	owners, err := e.store.ListOwners(ctx)
	if err != nil {
		return fmt.Errorf("failed to list owners: %w", err)
	}

	var errs []error
	for _, owner := range owners {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := e.regenerateWithReason(ctx, owner, window, ReasonMaintenance); err != nil {
			e.log.Error("Failed to recreate schedule", "owner", owner.Key(), "error", err)
			errs = append(errs, err)
		}
	}
	e.log.Info("Recreated schedules", "owners", len(owners), "failed", len(errs))
	return errors.Join(errs...)
}

// ClearOccurrences drops all occurrences and free slots. Busy slots stay
// until the next regeneration of their owner.
func (e *Engine) ClearOccurrences(ctx context.Context) (int64, error) {
	n, err := e.store.DeleteGenerated(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear occurrences: %w", err)
	}
	e.log.Info("Cleared occurrences", "deleted", n)
	return n, nil
}

// ClearOldSlots drops free slots that ended before now.
func (e *Engine) ClearOldSlots(ctx context.Context) (int64, error) {
	n, err := e.store.DeleteFreeSlotsBefore(ctx, e.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clear old slots: %w", err)
	}
	e.log.Info("Cleared old free slots", "deleted", n)
	return n, nil
}
