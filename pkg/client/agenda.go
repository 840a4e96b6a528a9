package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"agenda/pkg/model"
	"agenda/pkg/timespan"
)

// APIError is a non-2xx answer from the agenda API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agenda api returned %d: %s", e.StatusCode, e.Message)
}

// AgendaClient is a typed client for the agenda HTTP API.
type AgendaClient struct {
	httpClient *HttpClient
}

func NewAgendaClient(baseURL string, timeout time.Duration) *AgendaClient {
	return &AgendaClient{
		httpClient: NewHttpClient(baseURL, timeout),
	}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type RegenerationResult struct {
	Owner               model.OwnerRef    `json:"owner"`
	Window              timespan.TimeSpan `json:"window"`
	OccurrencesInserted int               `json:"occurrences_inserted"`
	OccurrencesDeleted  int               `json:"occurrences_deleted"`
	SlotsInserted       int               `json:"slots_inserted"`
	SlotsDeleted        int               `json:"slots_deleted"`
	SlotsKept           int               `json:"slots_kept"`
}

func decode[T any](resp *Response, err error, want int) (T, error) {
	var out envelope[T]
	if err != nil {
		return out.Data, err
	}
	if resp.StatusCode != want {
		return out.Data, &APIError{StatusCode: resp.StatusCode, Message: GetErrorMessage(resp)}
	}
	if err := resp.DecodeJSON(&out); err != nil {
		return out.Data, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Data, nil
}

func ownerPath(owner model.OwnerRef) string {
	return "/api/v1/owners/" + url.PathEscape(owner.Type) + "/" + url.PathEscape(owner.ID)
}

func windowQuery(window timespan.TimeSpan) string {
	q := url.Values{}
	q.Set("start", window.Start.UTC().Format(time.RFC3339))
	q.Set("end", window.End.UTC().Format(time.RFC3339))
	return q.Encode()
}

func (c *AgendaClient) CreateAvailability(ctx context.Context, a *model.Availability) (*model.Availability, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/availabilities", a)
	return decode[*model.Availability](resp, err, http.StatusCreated)
}

func (c *AgendaClient) DeleteAvailability(ctx context.Context, id string) error {
	resp, err := c.httpClient.DELETE(ctx, "/api/v1/availabilities/id/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusNoContent {
		return &APIError{StatusCode: resp.StatusCode, Message: GetErrorMessage(resp)}
	}
	return nil
}

func (c *AgendaClient) CreateBooking(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/bookings", b)
	return decode[*model.Booking](resp, err, http.StatusCreated)
}

func (c *AgendaClient) GetBooking(ctx context.Context, id string) (*model.Booking, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/bookings/id/"+url.PathEscape(id))
	return decode[*model.Booking](resp, err, http.StatusOK)
}

func (c *AgendaClient) ConfirmBooking(ctx context.Context, id string, at time.Time) (*model.Booking, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/bookings/id/"+url.PathEscape(id)+"/confirm", map[string]time.Time{"time": at})
	return decode[*model.Booking](resp, err, http.StatusOK)
}

func (c *AgendaClient) CancelBooking(ctx context.Context, id string) (*model.Booking, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/bookings/id/"+url.PathEscape(id)+"/cancel", struct{}{})
	return decode[*model.Booking](resp, err, http.StatusOK)
}

func (c *AgendaClient) FreeTimes(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan) ([]timespan.TimeSpan, error) {
	resp, err := c.httpClient.GET(ctx, ownerPath(owner)+"/free-times?"+windowQuery(window))
	out, err := decode[struct {
		FreeTimes []timespan.TimeSpan `json:"free_times"`
	}](resp, err, http.StatusOK)
	return out.FreeTimes, err
}

func (c *AgendaClient) Regenerate(ctx context.Context, owner model.OwnerRef, window timespan.TimeSpan, idempotencyKey string) (*RegenerationResult, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}
	resp, err := c.httpClient.POSTWithHeaders(ctx, ownerPath(owner)+"/regenerate?"+windowQuery(window), struct{}{}, headers)
	return decode[*RegenerationResult](resp, err, http.StatusOK)
}

func (c *AgendaClient) WaitForHealthy(ctx context.Context, maxWait time.Duration) error {
	return c.httpClient.WaitForHealthy(ctx, maxWait)
}
