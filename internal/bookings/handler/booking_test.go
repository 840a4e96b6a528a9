package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"agenda/internal/bookings/repository"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/logger"
	"agenda/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockBookingService struct {
	listFunc    func(ctx context.Context, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error)
	confirmFunc func(ctx context.Context, id string, at time.Time) (*model.Booking, error)
	finishFunc  func(ctx context.Context, id string, happened bool) (*model.Booking, error)
}

func (m *mockBookingService) Create(ctx context.Context, b *model.Booking) error {
	b.ID = "b1"
	return nil
}

func (m *mockBookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return &model.Booking{ID: id}, nil
}

func (m *mockBookingService) List(ctx context.Context, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter, limit, offset)
	}
	return []*model.Booking{}, 0, nil
}

func (m *mockBookingService) Update(ctx context.Context, id string, updates *model.BookingUpdate) (*model.Booking, error) {
	return &model.Booking{ID: id, Label: updates.Label}, nil
}

func (m *mockBookingService) SetPadding(ctx context.Context, id string, update *model.PaddingUpdate) (*model.Booking, error) {
	return &model.Booking{ID: id, PaddingMin: update.PaddingMin}, nil
}

func (m *mockBookingService) Confirm(ctx context.Context, id string, at time.Time) (*model.Booking, error) {
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, id, at)
	}
	return &model.Booking{ID: id}, nil
}

func (m *mockBookingService) Cancel(ctx context.Context, id string) (*model.Booking, error) {
	return nil, apperrors.Conflict("Cannot cancel a booking in state expired")
}

func (m *mockBookingService) Reschedule(ctx context.Context, id string, times []time.Time) (*model.Booking, error) {
	return &model.Booking{ID: id, RequestedTimes: times}, nil
}

func (m *mockBookingService) Finish(ctx context.Context, id string, happened bool) (*model.Booking, error) {
	if m.finishFunc != nil {
		return m.finishFunc(ctx, id, happened)
	}
	return &model.Booking{ID: id}, nil
}

func (m *mockBookingService) Expire(ctx context.Context, id string) (*model.Booking, error) {
	return &model.Booking{ID: id, State: model.BookingExpired}, nil
}

func (m *mockBookingService) ExpireStale(ctx context.Context, limit int) (int, error) {
	return 0, nil
}

func (m *mockBookingService) Delete(ctx context.Context, id string) error {
	return apperrors.NotFoundWithID("Booking", id)
}

func serve(svc *mockBookingService, method, target, body string) *httptest.ResponseRecorder {
	router := httprouter.New()
	NewBookingHandler(svc, logger.Discard()).RegisterRoutes(router)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestList_QueryParameters(t *testing.T) {
	var got repository.Filter
	svc := &mockBookingService{
		listFunc: func(ctx context.Context, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error) {
			got = filter
			return []*model.Booking{}, 0, nil
		},
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		check      func(t *testing.T)
	}{
		{
			name:       "owner and state",
			query:      "?owner_type=room&owner_id=r1&state=confirmed",
			wantStatus: http.StatusOK,
			check: func(t *testing.T) {
				if got.Owner != (model.OwnerRef{Type: "room", ID: "r1"}) || got.State != model.BookingConfirmed {
					t.Errorf("filter = %+v", got)
				}
			},
		},
		{
			name:       "time range",
			query:      "?from=2024-03-04T00:00:00Z&to=2024-03-05T00:00:00%2B01:00",
			wantStatus: http.StatusOK,
			check: func(t *testing.T) {
				if got.From == nil || got.To == nil {
					t.Fatalf("range not parsed: %+v", got)
				}
				if want := time.Date(2024, 3, 4, 23, 0, 0, 0, time.UTC); !got.To.Equal(want) || got.To.Location() != time.UTC {
					t.Errorf("to = %v, want %v in UTC", got.To, want)
				}
			},
		},
		{
			name:       "bad from",
			query:      "?from=yesterday",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad offset",
			query:      "?offset=x",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = repository.Filter{}
			rr := serve(svc, http.MethodGet, "/api/v1/bookings"+tt.query, "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.check != nil {
				tt.check(t)
			}
		})
	}
}

func TestConfirm_Body(t *testing.T) {
	var gotAt time.Time
	svc := &mockBookingService{
		confirmFunc: func(ctx context.Context, id string, at time.Time) (*model.Booking, error) {
			gotAt = at
			if id == "busy" {
				return nil, apperrors.Conflict("overlaps bookings b2")
			}
			return &model.Booking{ID: id, State: model.BookingConfirmed}, nil
		},
	}

	tests := []struct {
		name       string
		id         string
		body       string
		wantStatus int
	}{
		{"confirmed", "b1", `{"time":"2024-03-04T09:00:00Z"}`, http.StatusOK},
		{"missing time", "b1", `{}`, http.StatusBadRequest},
		{"malformed", "b1", `{"time":`, http.StatusBadRequest},
		{"conflict", "busy", `{"time":"2024-03-04T09:00:00Z"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(svc, http.MethodPost, "/api/v1/bookings/id/"+tt.id+"/confirm", tt.body)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
	if !gotAt.Equal(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("service got %v", gotAt)
	}
}

func TestFinish_RequiresHappened(t *testing.T) {
	var gotHappened bool
	svc := &mockBookingService{
		finishFunc: func(ctx context.Context, id string, happened bool) (*model.Booking, error) {
			gotHappened = happened
			return &model.Booking{ID: id}, nil
		},
	}

	if rr := serve(svc, http.MethodPost, "/api/v1/bookings/id/b1/finish", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
	if rr := serve(svc, http.MethodPost, "/api/v1/bookings/id/b1/finish", `{"happened":true}`); rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if !gotHappened {
		t.Error("happened flag not passed through")
	}
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{http.MethodPost, "/api/v1/bookings", `{"label":"x"}`, http.StatusCreated},
		{http.MethodGet, "/api/v1/bookings/id/b1", "", http.StatusOK},
		{http.MethodPatch, "/api/v1/bookings/id/b1", `{"label":"New"}`, http.StatusOK},
		{http.MethodPatch, "/api/v1/bookings/id/b1/padding", `{"padding_min":10}`, http.StatusOK},
		{http.MethodPost, "/api/v1/bookings/id/b1/cancel", "", http.StatusConflict},
		{http.MethodPost, "/api/v1/bookings/id/b1/reschedule", `{"requested_times":["2024-03-05T09:00:00Z"]}`, http.StatusOK},
		{http.MethodPost, "/api/v1/bookings/id/b1/expire", "", http.StatusOK},
		{http.MethodDelete, "/api/v1/bookings/id/b1", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rr := serve(&mockBookingService{}, tt.method, tt.target, tt.body)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}
