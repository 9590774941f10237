package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sergeylevashov/schedy/internal/assemble"
	"github.com/sergeylevashov/schedy/internal/calendar"
	"github.com/sergeylevashov/schedy/internal/entity"
	"github.com/sergeylevashov/schedy/internal/intent"
)

var testLoc = time.FixedZone("MSK", 3*60*60)

// fixedNow is a Monday afternoon.
func fixedNow() time.Time {
	return time.Date(2025, 3, 10, 15, 0, 0, 0, testLoc)
}

func newTestPipeline(opts ...Option) *Pipeline {
	base := []Option{
		WithClock(fixedNow),
		WithAssembler(assemble.NewAssembler(testLoc, assemble.WithClock(fixedNow))),
	}
	return New(testLoc, append(base, opts...)...)
}

type fakeCalendar struct {
	created []*assemble.Draft
	events  []calendar.Event
	fail    error
}

func (f *fakeCalendar) CreateEvent(_ context.Context, d *assemble.Draft) (*calendar.Event, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.created = append(f.created, d)
	return &calendar.Event{ID: "ev1", Summary: d.Summary, Start: d.Start, End: d.End}, nil
}

func (f *fakeCalendar) ListEvents(context.Context, time.Time, time.Time) ([]calendar.Event, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return f.events, nil
}

func (f *fakeCalendar) UpdateEvent(context.Context, string, *assemble.Draft) (*calendar.Event, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeCalendar) DeleteEvent(context.Context, string) error { return f.fail }

func (f *fakeCalendar) FindEventsBySummary(context.Context, string, time.Time, time.Time) ([]calendar.Event, error) {
	return f.events, f.fail
}

func TestInterpretAddEvent(t *testing.T) {
	pl := newTestPipeline()

	res := pl.Interpret(context.Background(), "Поставь встречу с Кириллом на завтра в 10 утра")
	if !res.Success {
		t.Fatalf("Success = false: %+v", res)
	}
	if res.RequestID == "" {
		t.Fatal("missing request id")
	}
	if res.Intent.Intent != intent.AddEvent {
		t.Fatalf("Intent = %s, want ADD_EVENT", res.Intent.Intent)
	}
	if res.Entities[entity.Person] != "Кирилл" {
		t.Fatalf("PERSON = %q (entities %v)", res.Entities[entity.Person], res.Entities)
	}
	if res.Draft == nil {
		t.Fatal("Draft = nil")
	}
	if res.Draft.Summary != "Встреча с Кирилл" {
		t.Fatalf("Summary = %q", res.Draft.Summary)
	}
	wantStart := time.Date(2025, 3, 11, 10, 0, 0, 0, testLoc)
	if !res.Draft.Start.Equal(wantStart) {
		t.Fatalf("Start = %v, want %v", res.Draft.Start, wantStart)
	}
	if got := res.Draft.End.Sub(res.Draft.Start); got != time.Hour {
		t.Fatalf("duration = %v, want 1h", got)
	}
	if res.Message != "" {
		t.Fatalf("Message = %q, want empty", res.Message)
	}
	for _, st := range res.Stages {
		if !st.OK {
			t.Fatalf("stage %s not ok: %+v", st.Name, st)
		}
	}
}

func TestResultJSONCarriesTemporal(t *testing.T) {
	pl := newTestPipeline()

	res := pl.Interpret(context.Background(), "Отмени встречу на завтра")
	if res.Intent.Intent != intent.DeleteEvent {
		t.Fatalf("Intent = %s, want DELETE_EVENT", res.Intent.Intent)
	}
	if res.TemporalInfo == nil || res.TemporalInfo.Date != "2025-03-11" {
		t.Fatalf("TemporalInfo = %+v, want date 2025-03-11", res.TemporalInfo)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var wire struct {
		Temporal *struct {
			Date    string   `json:"date"`
			AllDay  bool     `json:"all_day"`
			Matched []string `json:"matched"`
		} `json:"temporal"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if wire.Temporal == nil || wire.Temporal.Date != "2025-03-11" {
		t.Fatalf("rendered temporal = %+v, want date 2025-03-11\nraw: %s", wire.Temporal, data)
	}
	if !wire.Temporal.AllDay {
		t.Fatalf("rendered temporal = %+v, want all-day", wire.Temporal)
	}
	if len(wire.Temporal.Matched) == 0 {
		t.Fatalf("rendered temporal lost its matched spans: %s", data)
	}
}

func TestResultCarriesRawAndProcessedEntities(t *testing.T) {
	pl := newTestPipeline()

	res := pl.Interpret(context.Background(), "Поставь встречу с Кириллом на завтра в 10 утра")
	if res.RawEntities[entity.Person] != "Кириллом" {
		t.Fatalf("raw PERSON = %q, want surface form %q (raw %v)", res.RawEntities[entity.Person], "Кириллом", res.RawEntities)
	}
	if res.Entities[entity.Person] != "Кирилл" {
		t.Fatalf("processed PERSON = %q, want %q", res.Entities[entity.Person], "Кирилл")
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var wire struct {
		Raw       map[string]string `json:"raw_entities"`
		Processed map[string]string `json:"entities"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if wire.Raw["PERSON"] != "Кириллом" || wire.Processed["PERSON"] != "Кирилл" {
		t.Fatalf("rendered entities = raw %v, processed %v", wire.Raw, wire.Processed)
	}
}

func TestInterpretDeleteEventHasNoDraft(t *testing.T) {
	pl := newTestPipeline()

	res := pl.Interpret(context.Background(), "Отмени встречу на завтра")
	if !res.Success {
		t.Fatalf("Success = false: %+v", res)
	}
	if res.Intent.Intent != intent.DeleteEvent {
		t.Fatalf("Intent = %s, want DELETE_EVENT", res.Intent.Intent)
	}
	if res.Draft != nil {
		t.Fatalf("Draft = %+v, want nil", res.Draft)
	}
}

func TestInterpretUnknown(t *testing.T) {
	pl := newTestPipeline()

	res := pl.Interpret(context.Background(), "Привет, как дела?")
	if !res.Success {
		t.Fatalf("Success = false: %+v", res)
	}
	if res.Intent.Intent != intent.Unknown {
		t.Fatalf("Intent = %s, want UNKNOWN", res.Intent.Intent)
	}
	if res.Draft != nil {
		t.Fatalf("Draft = %+v, want nil", res.Draft)
	}
	if res.Message != "" {
		t.Fatalf("Message = %q, want empty for UNKNOWN", res.Message)
	}
}

func TestInterpretMissingTimePrompt(t *testing.T) {
	pl := newTestPipeline()

	res := pl.Interpret(context.Background(), "Добавь встречу с Кириллом")
	if res.Intent.Intent != intent.AddEvent {
		t.Fatalf("Intent = %s", res.Intent.Intent)
	}
	if res.Message != assemble.MissingTimePrompt {
		t.Fatalf("Message = %q, want missing-time prompt", res.Message)
	}
	if res.Draft == nil {
		t.Fatal("Draft = nil, want default-slot draft")
	}
	wantStart := time.Date(2025, 3, 11, 10, 0, 0, 0, testLoc)
	if !res.Draft.Start.Equal(wantStart) {
		t.Fatalf("default Start = %v, want %v", res.Draft.Start, wantStart)
	}
}

func TestInterpretEmptyInput(t *testing.T) {
	pl := newTestPipeline()

	res := pl.Interpret(context.Background(), "   ")
	if res.Success {
		t.Fatal("Success = true for blank input")
	}
	if res.Error == "" {
		t.Fatal("missing error for blank input")
	}
}

type panicClassifier struct{}

func (panicClassifier) Classify(string) intent.Classification { panic("boom") }

func TestInterpretSurvivesStagePanic(t *testing.T) {
	pl := newTestPipeline(WithClassifier(panicClassifier{}))

	res := pl.Interpret(context.Background(), "Поставь встречу на завтра")
	if res.Intent.Intent != intent.Unknown {
		t.Fatalf("Intent = %s, want UNKNOWN after stage panic", res.Intent.Intent)
	}

	var intentStage *Stage
	for i := range res.Stages {
		if res.Stages[i].Name == StageIntent {
			intentStage = &res.Stages[i]
		}
	}
	if intentStage == nil || intentStage.OK || !intentStage.Degraded {
		t.Fatalf("intent stage = %+v, want degraded", intentStage)
	}

	// The other concurrent stages still produced output.
	if !res.Temporal.HasDate {
		t.Fatal("temporal stage lost its output")
	}
}

func TestInterpretAndCreate(t *testing.T) {
	cal := &fakeCalendar{}
	pl := newTestPipeline(WithCalendar(cal))

	res := pl.InterpretAndCreate(context.Background(), "Поставь встречу с Кириллом на завтра в 10 утра")
	if !res.Success || !res.CalendarCreated {
		t.Fatalf("result = %+v, want created", res)
	}
	if res.Event == nil || res.Event.ID != "ev1" {
		t.Fatalf("Event = %+v", res.Event)
	}
	if len(cal.created) != 1 {
		t.Fatalf("calendar got %d drafts", len(cal.created))
	}
}

func TestInterpretAndCreateNoDraft(t *testing.T) {
	cal := &fakeCalendar{}
	pl := newTestPipeline(WithCalendar(cal))

	res := pl.InterpretAndCreate(context.Background(), "Отмени встречу на завтра")
	if res.CalendarCreated {
		t.Fatal("CalendarCreated = true for DELETE_EVENT")
	}
	if len(cal.created) != 0 {
		t.Fatalf("calendar got %d drafts, want 0", len(cal.created))
	}
}

func TestInterpretAndCreateCalendarFailureDegrades(t *testing.T) {
	cal := &fakeCalendar{fail: errors.New("quota exceeded")}
	pl := newTestPipeline(WithCalendar(cal))

	res := pl.InterpretAndCreate(context.Background(), "Поставь встречу с Кириллом на завтра в 10 утра")
	if !res.Success {
		t.Fatal("interpretation should stay successful when calendar fails")
	}
	if res.CalendarCreated {
		t.Fatal("CalendarCreated = true despite failure")
	}
	last := res.Stages[len(res.Stages)-1]
	if last.Name != StageCalendar || last.OK || !last.Degraded {
		t.Fatalf("calendar stage = %+v", last)
	}
}

func TestGetUpcomingEvents(t *testing.T) {
	cal := &fakeCalendar{events: []calendar.Event{{ID: "a", Summary: "Планерка"}}}
	pl := newTestPipeline(WithCalendar(cal))

	events, err := pl.GetUpcomingEvents(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetUpcomingEvents: %v", err)
	}
	if len(events) != 1 || events[0].ID != "a" {
		t.Fatalf("events = %+v", events)
	}

	bare := newTestPipeline()
	if _, err := bare.GetUpcomingEvents(context.Background(), 7); err == nil {
		t.Fatal("GetUpcomingEvents without calendar succeeded")
	}
}
