package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agenda/pkg/model"
	"agenda/pkg/timespan"
)

func TestAgendaClient_FreeTimes(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.EscapedPath(), r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"free_times": []timespan.TimeSpan{{Start: day.Add(8 * time.Hour), End: day.Add(9 * time.Hour)}},
			},
		})
	}))
	defer srv.Close()

	c := NewAgendaClient(srv.URL, time.Second)
	free, err := c.FreeTimes(context.Background(), model.OwnerRef{Type: "room", ID: "a b"}, timespan.TimeSpan{Start: day, End: day.Add(24 * time.Hour)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(free) != 1 || !free[0].Start.Equal(day.Add(8*time.Hour)) {
		t.Errorf("free = %v", free)
	}
	if gotPath != "/api/v1/owners/room/a%20b/free-times" {
		t.Errorf("path = %s", gotPath)
	}
	if gotQuery != "end=2024-03-05T00%3A00%3A00Z&start=2024-03-04T00%3A00%3A00Z" {
		t.Errorf("query = %s", gotQuery)
	}
}

func TestAgendaClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"overlaps bookings b2","code":"CONFLICT"}`))
	}))
	defer srv.Close()

	c := NewAgendaClient(srv.URL, time.Second)
	_, err := c.ConfirmBooking(context.Background(), "b1", time.Now())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != "overlaps bookings b2" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestAgendaClient_RegenerateSendsIdempotencyKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		_, _ = w.Write([]byte(`{"data":{"slots_inserted":3}}`))
	}))
	defer srv.Close()

	c := NewAgendaClient(srv.URL, time.Second)
	now := time.Now()
	res, err := c.Regenerate(context.Background(), model.OwnerRef{Type: "room", ID: "r1"}, timespan.TimeSpan{Start: now, End: now.Add(time.Hour)}, "evt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SlotsInserted != 3 || gotKey != "evt-1" {
		t.Errorf("result = %+v, key = %q", res, gotKey)
	}
}

func TestWaitForHealthy(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewAgendaClient(srv.URL, time.Second)
	if err := c.WaitForHealthy(context.Background(), 3*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	if err := NewAgendaClient(down.URL, time.Second).WaitForHealthy(context.Background(), 700*time.Millisecond); err == nil {
		t.Error("expected timeout error")
	}
}
