// Package handler serves an owner's computed schedule: free times, raw
// slots, an iCalendar feed, and on-demand regeneration.
package handler

import (
	"context"
	"net/http"
	"time"

	"agenda/internal/schedule"
	httputil "agenda/pkg/http"
	"agenda/pkg/ics"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/timespan"

	"github.com/julienschmidt/httprouter"
)

type Schedule interface {
	FreeTimes(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan) ([]timespan.TimeSpan, error)
	TimeSlots(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan) ([]model.TimeSlot, error)
	Regenerate(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan) (*schedule.RegenerationResult, error)
	AvailabilityChanged(ctx context.Context, owner model.OwnerRef) (*schedule.RegenerationResult, error)
}

type TimeSlotHandler struct {
	schedule  Schedule
	maxWindow time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func NewTimeSlotHandler(s Schedule, maxWindow time.Duration, log *logger.Logger) *TimeSlotHandler {
	return &TimeSlotHandler{
		schedule:  s,
		maxWindow: maxWindow,
		log:       log,
		now:       time.Now,
	}
}

type freeTimesResponse struct {
	Owner     model.OwnerRef      `json:"owner"`
	Window    timespan.TimeSpan   `json:"window"`
	FreeTimes []timespan.TimeSpan `json:"free_times"`
}

type timeSlotsResponse struct {
	Owner  model.OwnerRef    `json:"owner"`
	Window timespan.TimeSpan `json:"window"`
	Slots  []model.TimeSlot  `json:"slots"`
}

func (h *TimeSlotHandler) FreeTimes(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	owner, window, ok := h.ownerAndWindow(w, r, ps, "FreeTimes")
	if !ok {
		return
	}

	free, err := h.schedule.FreeTimes(r.Context(), owner, window)
	if err != nil {
		h.writeError(w, "FreeTimes", err)
		return
	}
	if free == nil {
		free = []timespan.TimeSpan{}
	}

	if err := httputil.WriteSuccess(w, freeTimesResponse{Owner: owner, Window: window, FreeTimes: free}); err != nil {
		h.log.Error("failed to write success response", "handler", "FreeTimes", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TimeSlotHandler) TimeSlots(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	owner, window, ok := h.ownerAndWindow(w, r, ps, "TimeSlots")
	if !ok {
		return
	}

	slots, err := h.schedule.TimeSlots(r.Context(), owner, window)
	if err != nil {
		h.writeError(w, "TimeSlots", err)
		return
	}
	if slots == nil {
		slots = []model.TimeSlot{}
	}

	if err := httputil.WriteSuccess(w, timeSlotsResponse{Owner: owner, Window: window, Slots: slots}); err != nil {
		h.log.Error("failed to write success response", "handler", "TimeSlots", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TimeSlotHandler) Calendar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	owner, window, ok := h.ownerAndWindow(w, r, ps, "Calendar")
	if !ok {
		return
	}

	slots, err := h.schedule.TimeSlots(r.Context(), owner, window)
	if err != nil {
		h.writeError(w, "Calendar", err)
		return
	}

	w.Header().Set("Content-Type", ics.ContentType)
	w.WriteHeader(http.StatusOK)
	if err := ics.Write(w, owner, slots, h.now()); err != nil {
		h.log.Error("failed to write calendar", "handler", "Calendar", "owner", owner.Key(), "error", err)
	}
}

// Regenerate rebuilds the owner's schedule over the requested window, or
// over the whole horizon when neither start nor end is given.
func (h *TimeSlotHandler) Regenerate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var (
		result *schedule.RegenerationResult
		owner  model.OwnerRef
		err    error
	)
	q := r.URL.Query()
	if q.Get("start") == "" && q.Get("end") == "" {
		if owner, err = httputil.ExtractOwner(ps); err != nil {
			h.writeError(w, "Regenerate", err)
			return
		}
		result, err = h.schedule.AvailabilityChanged(r.Context(), owner)
	} else {
		var window timespan.TimeSpan
		var ok bool
		if owner, window, ok = h.ownerAndWindow(w, r, ps, "Regenerate"); !ok {
			return
		}
		result, err = h.schedule.Regenerate(r.Context(), owner, window)
	}
	if err != nil {
		h.log.Error("Failed to regenerate schedule", "owner", owner.Key(), "error", err)
		h.writeError(w, "Regenerate", schedule.ToAppError(err))
		return
	}

	h.log.Info("Schedule regenerated on request",
		"owner", owner.Key(),
		"slots_inserted", result.SlotsInserted,
		"slots_deleted", result.SlotsDeleted,
	)
	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Regenerate", "operation", "WriteSuccess", "error", err)
	}
}

func (h *TimeSlotHandler) ownerAndWindow(w http.ResponseWriter, r *http.Request, ps httprouter.Params, handler string) (model.OwnerRef, timespan.TimeSpan, bool) {
	owner, err := httputil.ExtractOwner(ps)
	if err != nil {
		h.writeError(w, handler, err)
		return model.OwnerRef{}, timespan.TimeSpan{}, false
	}
	window, err := httputil.ExtractWindow(r, h.maxWindow)
	if err != nil {
		h.writeError(w, handler, err)
		return model.OwnerRef{}, timespan.TimeSpan{}, false
	}
	return owner, window, true
}

func (h *TimeSlotHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *TimeSlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/owners/:owner_type/:owner_id/free-times", h.FreeTimes)
	router.GET("/api/v1/owners/:owner_type/:owner_id/time-slots", h.TimeSlots)
	router.GET("/api/v1/owners/:owner_type/:owner_id/calendar.ics", h.Calendar)
	router.POST("/api/v1/owners/:owner_type/:owner_id/regenerate", h.Regenerate)
}
