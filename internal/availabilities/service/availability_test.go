package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	availabilitieserrors "agenda/internal/availabilities/errors"
	"agenda/internal/availabilities/validator"
	"agenda/internal/schedule"
	"agenda/pkg/config"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"agenda/pkg/timespan"

	_ "time/tzdata"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockAvailabilityRepository struct {
	mu      sync.Mutex
	items   map[string]*model.Availability
	created int
	failOn  string
}

func newMockRepo() *mockAvailabilityRepository {
	return &mockAvailabilityRepository{items: make(map[string]*model.Availability)}
}

func (m *mockAvailabilityRepository) Create(_ context.Context, a *model.Availability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "create" {
		return errors.New("disk full")
	}
	cp := *a
	m.items[a.ID] = &cp
	m.created++
	return nil
}

func (m *mockAvailabilityRepository) FindByID(_ context.Context, id string) (*model.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id == "bad" {
		return nil, availabilitieserrors.ErrInvalidID
	}
	a, ok := m.items[id]
	if !ok {
		return nil, availabilitieserrors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAvailabilityRepository) FindByOwner(_ context.Context, owner model.OwnerRef, limit int, offset int64) ([]*model.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Availability
	for _, a := range m.items {
		if a.Owner == owner {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockAvailabilityRepository) CountByOwner(_ context.Context, owner model.OwnerRef) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "count" {
		return 0, errors.New("count failed")
	}
	var n int64
	for _, a := range m.items {
		if a.Owner == owner {
			n++
		}
	}
	return n, nil
}

func (m *mockAvailabilityRepository) ListAvailabilities(ctx context.Context, owner model.OwnerRef) ([]model.Availability, error) {
	return nil, nil
}

func (m *mockAvailabilityRepository) Update(_ context.Context, a *model.Availability) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[a.ID]; !ok {
		return availabilitieserrors.ErrNotFound
	}
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *mockAvailabilityRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return availabilitieserrors.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

// mockScheduler runs fn directly. commitErr replaces the result of a
// successful fn.
type mockScheduler struct {
	window    timespan.TimeSpan
	commitErr error
	owners    []model.OwnerRef
	reasons   []string
	spans     [][]timespan.TimeSpan
	// stored holds existing occurrence spans per availability ID.
	stored map[string][]timespan.TimeSpan
}

func (m *mockScheduler) Commit(ctx context.Context, owner model.OwnerRef, reason string, fn schedule.CommitFunc) (*schedule.RegenerationResult, error) {
	spans, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if m.commitErr != nil {
		return nil, m.commitErr
	}
	m.owners = append(m.owners, owner)
	m.reasons = append(m.reasons, reason)
	m.spans = append(m.spans, spans)
	return &schedule.RegenerationResult{Owner: owner}, nil
}

func (m *mockScheduler) HorizonWindow() timespan.TimeSpan {
	return m.window
}

func (m *mockScheduler) AvailabilitySpans(_ context.Context, _ model.OwnerRef, id string) ([]timespan.TimeSpan, error) {
	return m.stored[id], nil
}

func newTestService(repo *mockAvailabilityRepository, sched *mockScheduler) AvailabilityService {
	log := logger.Discard()
	cfg := &config.Config{Log: log}
	return NewAvailabilityService(repo, sched, validator.NewAvailabilityValidator(log), cfg)
}

func newScheduler() *mockScheduler {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return &mockScheduler{window: timespan.TimeSpan{Start: start, End: start.Add(100 * 24 * time.Hour)}}
}

func sampleAvailability() *model.Availability {
	return &model.Availability{
		Owner:      model.OwnerRef{Type: " Meeting Room ", ID: " r1 "},
		StartDate:  "2024-03-01",
		StartTime:  "08:00",
		EndTime:    "17:00",
		Recurrence: "rrule:FREQ=DAILY",
		TimeZone:   " America//Vancouver ",
	}
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %v", err)
	}
	return appErr.Code
}

// ────────────────────────────────────────────────
// Tests
// ────────────────────────────────────────────────

func TestCreate_SanitizesAndRegeneratesHorizon(t *testing.T) {
	repo := newMockRepo()
	sched := newScheduler()
	svc := newTestService(repo, sched)

	a := sampleAvailability()
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.ID == "" {
		t.Error("expected ID to be assigned")
	}
	wantOwner := model.OwnerRef{Type: "meeting_room", ID: "r1"}
	if a.Owner != wantOwner {
		t.Errorf("owner = %+v, want %+v", a.Owner, wantOwner)
	}
	if a.TimeZone != "America/Vancouver" {
		t.Errorf("timezone = %q", a.TimeZone)
	}
	if a.Recurrence != "RRULE:FREQ=DAILY" {
		t.Errorf("recurrence = %q", a.Recurrence)
	}
	if len(sched.reasons) != 1 || sched.reasons[0] != schedule.ReasonAvailabilityChanged {
		t.Fatalf("expected one availability_changed commit, got %v", sched.reasons)
	}
	if sched.owners[0] != wantOwner {
		t.Errorf("committed for %v, want %v", sched.owners[0], wantOwner)
	}
	if len(sched.spans[0]) != 1 || !sched.spans[0][0].Equal(sched.window) {
		t.Errorf("expected horizon window to be regenerated, got %v", sched.spans[0])
	}
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(a *model.Availability)
		wantCode string
	}{
		{"bad clock", func(a *model.Availability) { a.EndTime = "5pm" }, apperrors.CodeValidation},
		{"end before start", func(a *model.Availability) { a.EndTime = "06:00" }, apperrors.CodeValidation},
		{"unparseable rule", func(a *model.Availability) { a.Recurrence = "RRULE:FREQ=SOMETIMES" }, apperrors.CodeInvalidRule},
		{"unsupported property", func(a *model.Availability) { a.Recurrence = "FOO:BAR" }, apperrors.CodeInvalidRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			sched := newScheduler()
			svc := newTestService(repo, sched)

			a := sampleAvailability()
			tt.mutate(a)
			err := svc.Create(context.Background(), a)
			if got := appCode(t, err); got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
			if repo.created != 0 || len(sched.reasons) != 0 {
				t.Error("nothing should be written on rejection")
			}
		})
	}
}

func TestCreate_RegenerationFailure(t *testing.T) {
	repo := newMockRepo()
	sched := newScheduler()
	sched.commitErr = &schedule.RegenerationError{Err: errors.New("boom")}
	svc := newTestService(repo, sched)

	err := svc.Create(context.Background(), sampleAvailability())
	if got := appCode(t, err); got != apperrors.CodeRegeneration {
		t.Errorf("code = %s, want %s", got, apperrors.CodeRegeneration)
	}
}

func TestCreate_RepositoryFailureIsInternal(t *testing.T) {
	repo := newMockRepo()
	repo.failOn = "create"
	svc := newTestService(repo, newScheduler())

	err := svc.Create(context.Background(), sampleAvailability())
	if got := appCode(t, err); got != apperrors.CodeInternal {
		t.Errorf("code = %s, want %s", got, apperrors.CodeInternal)
	}
}

func TestUpdate_MergesAndCommits(t *testing.T) {
	repo := newMockRepo()
	sched := newScheduler()
	svc := newTestService(repo, sched)

	a := sampleAvailability()
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}

	empty := ""
	updated, err := svc.Update(context.Background(), a.ID, &model.AvailabilityUpdate{
		EndTime:    "12:00",
		Recurrence: &empty,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.EndTime != "12:00" || updated.Recurrence != "" || updated.StartTime != "08:00" {
		t.Errorf("unexpected merge result: %+v", updated)
	}
	stored, _ := repo.FindByID(context.Background(), a.ID)
	if stored.EndTime != "12:00" {
		t.Errorf("stored end time = %s", stored.EndTime)
	}
	if len(sched.reasons) != 2 {
		t.Errorf("expected 2 commits, got %d", len(sched.reasons))
	}
}

func TestUpdate_Errors(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, newScheduler())
	a := sampleAvailability()
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name     string
		id       string
		update   *model.AvailabilityUpdate
		wantCode string
	}{
		{"empty id", "", &model.AvailabilityUpdate{}, apperrors.CodeInvalidInput},
		{"invalid id", "bad", &model.AvailabilityUpdate{}, apperrors.CodeInvalidInput},
		{"missing", "00000000-0000-0000-0000-000000000000", &model.AvailabilityUpdate{}, apperrors.CodeNotFound},
		{"bad field", a.ID, &model.AvailabilityUpdate{StartTime: "noon"}, apperrors.CodeValidation},
		{"merged invalid", a.ID, &model.AvailabilityUpdate{StartTime: "18:00"}, apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), tt.id, tt.update)
			if got := appCode(t, err); got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	repo := newMockRepo()
	sched := newScheduler()
	svc := newTestService(repo, sched)
	a := sampleAvailability()
	if err := svc.Create(context.Background(), a); err != nil {
		t.Fatalf("create: %v", err)
	}

	beyond := timespan.TimeSpan{Start: sched.window.End.Add(10 * 24 * time.Hour)}
	beyond.End = beyond.Start.Add(9 * time.Hour)
	sched.stored = map[string][]timespan.TimeSpan{a.ID: {beyond}}

	if err := svc.Delete(context.Background(), a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	last := sched.spans[len(sched.spans)-1]
	if len(last) != 2 || !last[0].Equal(sched.window) || !last[1].Equal(beyond) {
		t.Errorf("expected the horizon and the stored occurrence to be regenerated, got %v", last)
	}
	if _, err := svc.GetByID(context.Background(), a.ID); appCode(t, err) != apperrors.CodeNotFound {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if got := sched.owners[len(sched.owners)-1]; got != a.Owner {
		t.Errorf("delete committed for %v, want %v", got, a.Owner)
	}
	if err := svc.Delete(context.Background(), a.ID); appCode(t, err) != apperrors.CodeNotFound {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestGetByOwner(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, newScheduler())
	for range 3 {
		if err := svc.Create(context.Background(), sampleAvailability()); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	items, total, err := svc.GetByOwner(context.Background(), model.OwnerRef{Type: "Meeting Room", ID: "r1"}, 0, -5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Errorf("got %d items, total %d; want 3, 3", len(items), total)
	}

	if _, _, err := svc.GetByOwner(context.Background(), model.OwnerRef{}, 10, 0); appCode(t, err) != apperrors.CodeInvalidInput {
		t.Errorf("expected invalid input for empty owner, got %v", err)
	}

	repo.failOn = "count"
	if _, _, err := svc.GetByOwner(context.Background(), model.OwnerRef{Type: "room", ID: "r1"}, 10, 0); appCode(t, err) != apperrors.CodeInternal {
		t.Errorf("expected internal error, got %v", err)
	}
}
