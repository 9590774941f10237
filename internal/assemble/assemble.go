// Package assemble turns classified intent, extracted entities, and
// resolved temporal data into a calendar event draft.
package assemble

import (
	"fmt"
	"time"

	"github.com/sergeylevashov/schedy/internal/entity"
	"github.com/sergeylevashov/schedy/internal/intent"
	"github.com/sergeylevashov/schedy/internal/temporal"
)

// Defaults applied when the text names no usable time anchor.
const (
	DefaultStartHour    = 10
	DefaultDurationHrs  = 1
	DefaultReminderMins = 10
	DefaultColorID      = "5"
)

// MissingTimePrompt is the user-facing message for time-free requests.
const MissingTimePrompt = "Пожалуйста, укажите время или дату события."

// Reminder is one notification attached to a draft.
type Reminder struct {
	Method  string
	Minutes int
}

// Draft is a calendar event ready to be sent to a calendar backend.
type Draft struct {
	Summary     string
	Description string
	Location    string

	// Timed events carry Start and End; all-day events carry Date only.
	Start  time.Time
	End    time.Time
	AllDay bool
	Date   time.Time

	Recurrence []string
	Reminders  []Reminder
	ColorID    string
}

// Assembler builds drafts in a fixed location. The clock is injectable so
// the "tomorrow at 10" default is testable.
type Assembler struct {
	loc   *time.Location
	clock func() time.Time
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(a *Assembler) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// NewAssembler creates an assembler materializing drafts in loc. A nil
// loc falls back to time.Local.
func NewAssembler(loc *time.Location, opts ...Option) *Assembler {
	if loc == nil {
		loc = time.Local
	}
	a := &Assembler{loc: loc, clock: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build assembles a draft from the pipeline stage outputs. Only ADD_EVENT
// produces a draft; every other intent returns nil.
//
// Summary priority: explicit event name, then generic event, then a
// person-based title, then a constant fallback. When the temporal result
// has a date but no time the draft is all-day; with neither, the draft
// defaults to tomorrow 10:00 for one hour.
func (a *Assembler) Build(in intent.Intent, entities entity.Set, tr temporal.Result, originalText string) *Draft {
	if in != intent.AddEvent {
		return nil
	}

	d := &Draft{
		Summary:     a.summary(entities),
		Description: "Создано из текста: " + originalText,
		Location:    entities[entity.Location],
		ColorID:     DefaultColorID,
		Reminders:   []Reminder{{Method: "popup", Minutes: DefaultReminderMins}},
	}

	if tr.Recurrence != "" {
		d.Recurrence = []string{tr.Recurrence}
	}

	switch {
	case tr.Start != nil && tr.End != nil:
		d.Start = tr.Start.In(a.loc)
		d.End = tr.End.In(a.loc)
	case tr.HasDate:
		d.AllDay = true
		d.Date = tr.Date.In(a.loc)
	default:
		now := a.clock().In(a.loc)
		tomorrow := time.Date(now.Year(), now.Month(), now.Day(), DefaultStartHour, 0, 0, 0, a.loc).AddDate(0, 0, 1)
		d.Start = tomorrow
		d.End = tomorrow.Add(DefaultDurationHrs * time.Hour)
	}

	return d
}

func (a *Assembler) summary(entities entity.Set) string {
	if name := entities[entity.EventName]; name != "" {
		return name
	}
	if ev := entities[entity.Event]; ev != "" {
		return ev
	}
	if person := entities[entity.Person]; person != "" {
		return fmt.Sprintf("Встреча с %s", person)
	}
	return "Новое событие"
}

// MissingTimeMessage returns the clarification prompt when the temporal
// result carries no time anchor at all, and "" otherwise.
func MissingTimeMessage(tr temporal.Result) string {
	if tr.HasTimeInfo() {
		return ""
	}
	return MissingTimePrompt
}
