package schedule

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"agenda/pkg/model"
	"agenda/pkg/timespan"
)

// memStore is an in-memory Store and ReservationSource. WithinTx restores
// a snapshot when fn fails.
type memStore struct {
	mu             sync.Mutex
	availabilities map[string]model.Availability
	occurrences    map[string]model.AvailabilityOccurrence
	slots          map[string]model.TimeSlot
	bookings       map[string]*model.Booking

	failInsertSlots error
	inserts         int
	deletes         int
}

func newMemStore() *memStore {
	return &memStore{
		availabilities: make(map[string]model.Availability),
		occurrences:    make(map[string]model.AvailabilityOccurrence),
		slots:          make(map[string]model.TimeSlot),
		bookings:       make(map[string]*model.Booking),
	}
}

func touches(start, end time.Time, span timespan.TimeSpan) bool {
	return !start.After(span.End) && !end.Before(span.Start)
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	availabilities := maps.Clone(m.availabilities)
	occurrences := maps.Clone(m.occurrences)
	slots := maps.Clone(m.slots)
	bookings := make(map[string]*model.Booking, len(m.bookings))
	for id, b := range m.bookings {
		cp := *b
		bookings[id] = &cp
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.availabilities, m.occurrences, m.slots, m.bookings = availabilities, occurrences, slots, bookings
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) putAvailability(a model.Availability) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availabilities[a.ID] = a
}

func (m *memStore) deleteAvailability(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.availabilities, id)
}

func (m *memStore) putBooking(b *model.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.bookings[b.ID] = &cp
}

func (m *memStore) deleteBooking(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bookings, id)
}

func (m *memStore) ListAvailabilities(_ context.Context, owner model.OwnerRef) ([]model.Availability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Availability
	for _, a := range m.availabilities {
		if a.Owner == owner {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b model.Availability) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *memStore) ListOccurrences(_ context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]model.AvailabilityOccurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AvailabilityOccurrence
	for _, o := range m.occurrences {
		if o.Owner == owner && touches(o.Start, o.End, span) {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b model.AvailabilityOccurrence) int { return a.Start.Compare(b.Start) })
	return out, nil
}

func (m *memStore) ListOccurrencesByAvailability(_ context.Context, owner model.OwnerRef, availabilityID string) ([]model.AvailabilityOccurrence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AvailabilityOccurrence
	for _, o := range m.occurrences {
		if o.Owner == owner && slices.Contains(o.AvailabilityIDs, availabilityID) {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b model.AvailabilityOccurrence) int { return a.Start.Compare(b.Start) })
	return out, nil
}

func (m *memStore) InsertOccurrences(_ context.Context, occurrences []model.AvailabilityOccurrence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range occurrences {
		m.occurrences[o.ID] = o
	}
	return nil
}

func (m *memStore) DeleteOccurrences(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.occurrences, id)
	}
	return nil
}

func (m *memStore) ListTimeSlots(_ context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]model.TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TimeSlot
	for _, s := range m.slots {
		if s.Owner == owner && touches(s.Start, s.End, span) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b model.TimeSlot) int { return a.Start.Compare(b.Start) })
	return out, nil
}

func (m *memStore) InsertTimeSlots(_ context.Context, slots []model.TimeSlot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertSlots != nil {
		return m.failInsertSlots
	}
	for _, s := range slots {
		m.slots[s.ID] = s
	}
	m.inserts += len(slots)
	return nil
}

func (m *memStore) DeleteTimeSlots(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.slots, id)
	}
	m.deletes += len(ids)
	return nil
}

func (m *memStore) ListOwners(context.Context) ([]model.OwnerRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[model.OwnerRef]bool)
	var out []model.OwnerRef
	for _, a := range m.availabilities {
		if !seen[a.Owner] {
			seen[a.Owner] = true
			out = append(out, a.Owner)
		}
	}
	for _, s := range m.slots {
		if !seen[s.Owner] {
			seen[s.Owner] = true
			out = append(out, s.Owner)
		}
	}
	return out, nil
}

func (m *memStore) DeleteGenerated(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.occurrences))
	m.occurrences = make(map[string]model.AvailabilityOccurrence)
	for id, s := range m.slots {
		if !s.Busy {
			delete(m.slots, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteFreeSlotsBefore(_ context.Context, t time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.slots {
		if !s.Busy && !s.End.After(t) {
			delete(m.slots, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) Reservations(_ context.Context, owner model.OwnerRef, span timespan.TimeSpan) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reservation
	for _, b := range m.bookings {
		if b.Owner != owner {
			continue
		}
		for _, s := range b.ReservedSpans() {
			if touches(s.Start, s.End, span) {
				cp := *b
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) slotsOf(owner model.OwnerRef) []model.TimeSlot {
	slots, _ := m.ListTimeSlots(context.Background(), owner, timespan.TimeSpan{
		Start: time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	return slots
}

var errInjected = errors.New("injected failure")
