package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"agenda/pkg/client"
	"agenda/pkg/kafka"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/sanitizer"
	"agenda/pkg/timespan"
	"agenda/pkg/validation"

	"github.com/go-playground/validator/v10"
)

// Regenerator is satisfied by *client.AgendaClient.
type Regenerator interface {
	Regenerate(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan, idempotencyKey string) (*client.RegenerationResult, error)
}

// RegenerationHandler consumes regeneration requests and forwards them to
// the agenda API. The event ID is sent as the idempotency key so a
// redelivered request is answered from the API's replay cache.
type RegenerationHandler struct {
	regenerator Regenerator
	validate    *validator.Validate
	horizon     time.Duration
	maxWindow   time.Duration
	now         func() time.Time
	log         *logger.Logger
}

func NewRegenerationHandler(r Regenerator, horizon, maxWindow time.Duration, log *logger.Logger) (*RegenerationHandler, error) {
	v, err := validation.New()
	if err != nil {
		return nil, err
	}
	return &RegenerationHandler{
		regenerator: r,
		validate:    v,
		horizon:     horizon,
		maxWindow:   maxWindow,
		now:         time.Now,
		log:         log,
	}, nil
}

// Handle is a kafka.MessageHandler.
func (h *RegenerationHandler) Handle(ctx context.Context, msg kafka.Message) error {
	if t := msg.GetEventType(); t != "" && t != EventRegenerationRequested {
		h.log.Debug("Skipping message", "event_type", t, "event_id", msg.GetEventID())
		return nil
	}

	var req RegenerationRequest
	if err := msg.DecodeValue(&req); err != nil {
		return err
	}

	req.Owner.Type = sanitizer.SanitizeOwnerType(req.Owner.Type)
	req.Owner.ID = sanitizer.TrimAndNormalize(req.Owner.ID)
	if err := validation.Struct(h.validate, req); err != nil {
		return kafka.NewPermanentError("invalid regeneration request", err)
	}

	window, err := h.window(req)
	if err != nil {
		return kafka.NewPermanentError("invalid regeneration window", err)
	}

	result, err := h.regenerator.Regenerate(ctx, req.Owner, window, msg.GetEventID())
	if err != nil {
		return classify(err)
	}

	h.log.ForOwner(req.Owner.Key()).Info("Regenerated schedule from request",
		"event_id", msg.GetEventID(),
		"correlation_id", msg.GetCorrelationID(),
		"window_start", window.Start,
		"window_end", window.End,
		"slots_inserted", result.SlotsInserted,
		"slots_deleted", result.SlotsDeleted,
	)
	return nil
}

func (h *RegenerationHandler) window(req RegenerationRequest) (timespan.TimeSpan, error) {
	if req.Start.IsZero() && req.End.IsZero() {
		start := h.now().UTC().Truncate(time.Second)
		return timespan.Of(start, h.horizon), nil
	}
	window, err := timespan.New(req.Start.UTC().Truncate(time.Second), req.End.UTC().Truncate(time.Second))
	if err != nil {
		return timespan.TimeSpan{}, err
	}
	if h.maxWindow > 0 && window.Duration() > h.maxWindow {
		return timespan.TimeSpan{}, fmt.Errorf("requested window is longer than %s", h.maxWindow)
	}
	return window, nil
}

// classify maps API answers onto retry semantics: the server being busy or
// down is worth retrying, a rejected request is not.
func classify(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return kafka.NewTransientError("agenda api unreachable", err)
	}
	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode >= 500:
		return kafka.NewTransientError("agenda api unavailable", err)
	case apiErr.StatusCode == http.StatusConflict, apiErr.StatusCode == http.StatusUnprocessableEntity:
		return kafka.NewBusinessError("agenda api rejected regeneration", err)
	default:
		return kafka.NewPermanentError("agenda api rejected regeneration", err)
	}
}
