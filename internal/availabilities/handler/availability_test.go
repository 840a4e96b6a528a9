package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "agenda/pkg/errors"
	"agenda/pkg/logger"
	"agenda/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type mockAvailabilityService struct {
	createFunc     func(ctx context.Context, a *model.Availability) error
	getByOwnerFunc func(ctx context.Context, owner model.OwnerRef, limit int, offset int64) ([]*model.Availability, int64, error)
	deleteFunc     func(ctx context.Context, id string) error
}

func (m *mockAvailabilityService) Create(ctx context.Context, a *model.Availability) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, a)
	}
	return nil
}

func (m *mockAvailabilityService) GetByID(ctx context.Context, id string) (*model.Availability, error) {
	return nil, apperrors.NotFoundWithID("Availability", id)
}

func (m *mockAvailabilityService) GetByOwner(ctx context.Context, owner model.OwnerRef, limit int, offset int64) ([]*model.Availability, int64, error) {
	if m.getByOwnerFunc != nil {
		return m.getByOwnerFunc(ctx, owner, limit, offset)
	}
	return []*model.Availability{}, 0, nil
}

func (m *mockAvailabilityService) Update(ctx context.Context, id string, updates *model.AvailabilityUpdate) (*model.Availability, error) {
	return &model.Availability{ID: id, EndTime: updates.EndTime}, nil
}

func (m *mockAvailabilityService) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func newRouter(svc *mockAvailabilityService) *httprouter.Router {
	router := httprouter.New()
	NewAvailabilityHandler(svc, logger.Discard()).RegisterRoutes(router)
	return router
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "created",
			body:       `{"owner":{"type":"room","id":"r1"},"start_date":"2024-03-01","start_time":"08:00","end_time":"17:00","timezone":"UTC"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "malformed body",
			body:       `{"owner":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid rule",
			body:       `{"recurrence":"FREQ=NEVER"}`,
			serviceErr: apperrors.InvalidRule("Invalid recurrence rule", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperrors.CodeInvalidRule,
		},
		{
			name:       "regeneration failed",
			body:       `{}`,
			serviceErr: apperrors.RegenerationFailed("Failed to regenerate schedule", nil),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   apperrors.CodeRegeneration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAvailabilityService{
				createFunc: func(ctx context.Context, a *model.Availability) error {
					if tt.serviceErr != nil {
						return tt.serviceErr
					}
					a.ID = "new-id"
					return nil
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/availabilities", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantCode != "" {
				var resp struct {
					Code string `json:"code"`
				}
				if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.Code != tt.wantCode {
					t.Errorf("code = %s, want %s", resp.Code, tt.wantCode)
				}
			}
		})
	}
}

func TestGetByOwner_Pagination(t *testing.T) {
	var gotOwner model.OwnerRef
	var gotLimit int
	var gotOffset int64
	svc := &mockAvailabilityService{
		getByOwnerFunc: func(ctx context.Context, owner model.OwnerRef, limit int, offset int64) ([]*model.Availability, int64, error) {
			gotOwner, gotLimit, gotOffset = owner, limit, offset
			return []*model.Availability{{ID: "a1"}}, 7, nil
		},
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
		wantOffset int64
	}{
		{"defaults", "", http.StatusOK, 10, 0},
		{"capped limit", "?limit=1000&offset=20", http.StatusOK, 100, 20},
		{"negative offset", "?offset=-3", http.StatusOK, 10, 0},
		{"bad limit", "?limit=abc", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLimit, gotOffset = 0, 0
			req := httptest.NewRequest(http.MethodGet, "/api/v1/availabilities/owner/room/r1"+tt.query, nil)
			rr := httptest.NewRecorder()
			newRouter(svc).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if gotOwner != (model.OwnerRef{Type: "room", ID: "r1"}) {
				t.Errorf("owner = %+v", gotOwner)
			}
			if gotLimit != tt.wantLimit || gotOffset != tt.wantOffset {
				t.Errorf("limit/offset = %d/%d, want %d/%d", gotLimit, gotOffset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestGetByID_NotFound(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/availabilities/id/missing", nil)
	rr := httptest.NewRecorder()
	newRouter(&mockAvailabilityService{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	router := newRouter(&mockAvailabilityService{})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/availabilities/id/a1", strings.NewReader(`{"end_time":"12:00"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"end_time":"12:00"`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/availabilities/id/a1", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rr.Code)
	}
}
