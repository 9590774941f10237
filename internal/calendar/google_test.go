package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sergeylevashov/schedy/internal/assemble"
)

var testLoc = time.FixedZone("MSK", 3*60*60)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GoogleClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGoogleClient("test-token", "primary",
		WithBaseURL(srv.URL),
		WithLocation(testLoc))
}

func timedDraft() *assemble.Draft {
	start := time.Date(2025, 3, 11, 10, 0, 0, 0, testLoc)
	return &assemble.Draft{
		Summary:     "Встреча с Кирилл",
		Description: "Создано из текста: поставь встречу",
		Start:       start,
		End:         start.Add(time.Hour),
		ColorID:     "5",
		Reminders:   []assemble.Reminder{{Method: "popup", Minutes: 10}},
	}
}

func TestCreateEvent(t *testing.T) {
	var got googleEvent
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Fatalf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		got.ID = "ev1"
		got.HTMLLink = "https://calendar.example/ev1"
		json.NewEncoder(w).Encode(got)
	})

	ev, err := client.CreateEvent(context.Background(), timedDraft())
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if ev.ID != "ev1" || ev.Summary != "Встреча с Кирилл" {
		t.Fatalf("event = %+v", ev)
	}
	if got.ColorID != "5" {
		t.Fatalf("wire colorId = %q, want 5", got.ColorID)
	}
	if got.Start.TimeZone != "MSK" || got.Start.DateTime == "" {
		t.Fatalf("wire start = %+v", got.Start)
	}
	if got.Reminders == nil || got.Reminders.UseDefault || len(got.Reminders.Overrides) != 1 {
		t.Fatalf("wire reminders = %+v", got.Reminders)
	}
	if ov := got.Reminders.Overrides[0]; ov.Method != "popup" || ov.Minutes != 10 {
		t.Fatalf("reminder override = %+v", ov)
	}

	if _, err := client.CreateEvent(context.Background(), nil); err == nil {
		t.Fatal("CreateEvent(nil) succeeded")
	}
}

func TestCreateAllDayEvent(t *testing.T) {
	var got googleEvent
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		got.ID = "ev2"
		json.NewEncoder(w).Encode(got)
	})

	draft := &assemble.Draft{
		Summary: "Новое событие",
		AllDay:  true,
		Date:    time.Date(2025, 3, 14, 0, 0, 0, 0, testLoc),
	}
	ev, err := client.CreateEvent(context.Background(), draft)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if got.Start.Date != "2025-03-14" || got.End.Date != "2025-03-15" {
		t.Fatalf("wire dates = %+v / %+v", got.Start, got.End)
	}
	if !ev.AllDay {
		t.Fatal("returned event not all-day")
	}
}

func TestListEventsFiltersCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("singleEvents") != "true" {
			t.Fatalf("singleEvents missing in %s", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(googleEventsList{Items: []googleEvent{
			{ID: "a", Summary: "Планерка", Status: "confirmed",
				Start: googleEventTime{DateTime: "2025-03-11T10:00:00+03:00"},
				End:   googleEventTime{DateTime: "2025-03-11T11:00:00+03:00"}},
			{ID: "b", Summary: "Отмененная", Status: "cancelled"},
		}})
	})

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, testLoc)
	events, err := client.ListEvents(context.Background(), from, from.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || events[0].ID != "a" {
		t.Fatalf("events = %+v, want only confirmed", events)
	}
	if events[0].Start.Hour() != 10 {
		t.Fatalf("start = %v", events[0].Start)
	}
}

func TestFindEventsBySummary(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(googleEventsList{Items: []googleEvent{
			{ID: "a", Summary: "Встреча с Кирилл", Status: "confirmed"},
			{ID: "b", Summary: "Обед", Status: "confirmed"},
		}})
	})

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, testLoc)
	events, err := client.FindEventsBySummary(context.Background(), "встреча", from, from.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("FindEventsBySummary: %v", err)
	}
	if len(events) != 1 || events[0].ID != "a" {
		t.Fatalf("events = %+v, want the matching one", events)
	}
}

func TestDeleteEvent(t *testing.T) {
	deleted := ""
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("method = %s, want DELETE", r.Method)
		}
		deleted = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	if err := client.DeleteEvent(context.Background(), "ev1"); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if deleted != "/calendars/primary/events/ev1" {
		t.Fatalf("deleted path = %q", deleted)
	}
	if err := client.DeleteEvent(context.Background(), ""); err == nil {
		t.Fatal("DeleteEvent(\"\") succeeded")
	}
}

func TestAPIErrorSurfaces(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
	})

	_, err := client.CreateEvent(context.Background(), timedDraft())
	if err == nil {
		t.Fatal("CreateEvent succeeded against a 401")
	}
}
