package ics

import (
	"strings"
	"testing"
	"time"

	"agenda/pkg/model"

	ical "github.com/arran4/golang-ical"
)

func TestWriteRoundTrip(t *testing.T) {
	owner := model.OwnerRef{Type: "room", ID: "r1"}
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	slots := []model.TimeSlot{
		{ID: "s1", Owner: owner, Start: day.Add(8 * time.Hour), End: day.Add(9 * time.Hour)},
		{ID: "s2", Owner: owner, Start: day.Add(9 * time.Hour), End: day.Add(11 * time.Hour), Busy: true, BookingIDs: []string{"b1"}},
		{ID: "s3", Owner: owner, Start: day.Add(11 * time.Hour), End: day.Add(11*time.Hour + 15*time.Minute), Busy: true, Padding: true, BookingIDs: []string{"b1"}},
	}

	var sb strings.Builder
	if err := Write(&sb, owner, slots, day); err != nil {
		t.Fatalf("write: %v", err)
	}

	cal, err := ical.ParseCalendar(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("parse: %v\n%s", err, sb.String())
	}
	events := cal.Events()
	if len(events) != len(slots) {
		t.Fatalf("got %d events, want %d", len(events), len(slots))
	}

	tests := []struct {
		summary string
		transp  string
	}{
		{SummaryFree, "TRANSPARENT"},
		{SummaryBusy, "OPAQUE"},
		{SummaryPadding, "OPAQUE"},
	}
	for i, tt := range tests {
		ev := events[i]
		if got := ev.GetProperty(ical.ComponentPropertySummary).Value; got != tt.summary {
			t.Errorf("event %d summary = %q, want %q", i, got, tt.summary)
		}
		if got := ev.GetProperty(ical.ComponentPropertyTransp).Value; got != tt.transp {
			t.Errorf("event %d transp = %q, want %q", i, got, tt.transp)
		}
		start, err := ev.GetStartAt()
		if err != nil {
			t.Fatalf("event %d start: %v", i, err)
		}
		if !start.Equal(slots[i].Start) {
			t.Errorf("event %d start = %v, want %v", i, start, slots[i].Start)
		}
		if uid := ev.GetProperty(ical.ComponentPropertyUniqueId).Value; uid != slots[i].ID+"@room:r1" {
			t.Errorf("event %d uid = %q", i, uid)
		}
	}

	if desc := events[1].GetProperty(ical.ComponentPropertyDescription); desc == nil || !strings.Contains(desc.Value, "b1") {
		t.Error("busy event should name its bookings")
	}
}

func TestEmptyCalendar(t *testing.T) {
	var sb strings.Builder
	if err := Write(&sb, model.OwnerRef{Type: "room", ID: "r1"}, nil, time.Now()); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "BEGIN:VCALENDAR") || strings.Contains(out, "BEGIN:VEVENT") {
		t.Errorf("unexpected calendar:\n%s", out)
	}
	if !strings.Contains(out, ProductID) {
		t.Error("product id missing")
	}
}
