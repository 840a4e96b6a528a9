package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"agenda/internal/bookings/repository"
	"agenda/internal/bookings/service"
	apperrors "agenda/pkg/errors"
	httputil "agenda/pkg/http"
	"agenda/pkg/logger"
	"agenda/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

type confirmRequest struct {
	Time time.Time `json:"time"`
}

type rescheduleRequest struct {
	RequestedTimes []time.Time `json:"requested_times"`
}

type finishRequest struct {
	Happened *bool `json:"happened"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var booking model.Booking
	if !h.decode(w, r, "Create", &booking) {
		return
	}

	if err := h.service.Create(r.Context(), &booking); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}
	h.writeBooking(w, "GetByID", booking)
}

// List filters by owner_type/owner_id, state and a from/to range on the
// requested times.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	filter := repository.Filter{
		Owner: model.OwnerRef{Type: query.Get("owner_type"), ID: query.Get("owner_id")},
		State: model.BookingState(query.Get("state")),
	}

	var err error
	if filter.From, err = httputil.ExtractTime(r, "from"); err != nil {
		h.writeError(w, "List", err)
		return
	}
	if filter.To, err = httputil.ExtractTime(r, "to"); err != nil {
		h.writeError(w, "List", err)
		return
	}
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	bookings, total, err := h.service.List(r.Context(), filter, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.BookingUpdate
	if !h.decode(w, r, "Update", &updates) {
		return
	}

	booking, err := h.service.Update(r.Context(), ps.ByName("id"), &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}
	h.writeBooking(w, "Update", booking)
}

func (h *BookingHandler) SetPadding(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update model.PaddingUpdate
	if !h.decode(w, r, "SetPadding", &update) {
		return
	}

	booking, err := h.service.SetPadding(r.Context(), ps.ByName("id"), &update)
	if err != nil {
		h.writeError(w, "SetPadding", err)
		return
	}
	h.writeBooking(w, "SetPadding", booking)
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req confirmRequest
	if !h.decode(w, r, "Confirm", &req) {
		return
	}
	if req.Time.IsZero() {
		h.writeError(w, "Confirm", apperrors.InvalidInput("'time' is required"))
		return
	}

	booking, err := h.service.Confirm(r.Context(), ps.ByName("id"), req.Time)
	if err != nil {
		h.writeError(w, "Confirm", err)
		return
	}
	h.writeBooking(w, "Confirm", booking)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.Cancel(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}
	h.writeBooking(w, "Cancel", booking)
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req rescheduleRequest
	if !h.decode(w, r, "Reschedule", &req) {
		return
	}

	booking, err := h.service.Reschedule(r.Context(), ps.ByName("id"), req.RequestedTimes)
	if err != nil {
		h.writeError(w, "Reschedule", err)
		return
	}
	h.writeBooking(w, "Reschedule", booking)
}

func (h *BookingHandler) Finish(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req finishRequest
	if !h.decode(w, r, "Finish", &req) {
		return
	}
	if req.Happened == nil {
		h.writeError(w, "Finish", apperrors.InvalidInput("'happened' is required"))
		return
	}

	booking, err := h.service.Finish(r.Context(), ps.ByName("id"), *req.Happened)
	if err != nil {
		h.writeError(w, "Finish", err)
		return
	}
	h.writeBooking(w, "Finish", booking)
}

func (h *BookingHandler) Expire(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, err := h.service.Expire(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Expire", err)
		return
	}
	h.writeBooking(w, "Expire", booking)
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) decode(w http.ResponseWriter, r *http.Request, handler string, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", handler, "operation", "WriteJSON", "error", writeErr)
		}
		return false
	}
	return true
}

func (h *BookingHandler) writeBooking(w http.ResponseWriter, handler string, booking *model.Booking) {
	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/bookings/id/:id", h.Update)
	router.DELETE("/api/v1/bookings/id/:id", h.Delete)
	router.PATCH("/api/v1/bookings/id/:id/padding", h.SetPadding)
	router.POST("/api/v1/bookings/id/:id/confirm", h.Confirm)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
	router.POST("/api/v1/bookings/id/:id/reschedule", h.Reschedule)
	router.POST("/api/v1/bookings/id/:id/finish", h.Finish)
	router.POST("/api/v1/bookings/id/:id/expire", h.Expire)
}
