package assemble

import (
	"fmt"
	"strings"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

// ExportICS renders a draft as an iCalendar document, for handing drafts
// to calendar apps without going through an API backend.
func ExportICS(d *Draft) (string, error) {
	if d == nil {
		return "", fmt.Errorf("assemble: nil draft")
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//schedy//RU")

	ev := cal.AddEvent(uuid.NewString())
	ev.SetSummary(d.Summary)
	if d.Description != "" {
		ev.SetDescription(d.Description)
	}
	if d.Location != "" {
		ev.SetLocation(d.Location)
	}

	if d.AllDay {
		ev.SetAllDayStartAt(d.Date)
		ev.SetAllDayEndAt(d.Date.AddDate(0, 0, 1))
	} else {
		ev.SetStartAt(d.Start)
		ev.SetEndAt(d.End)
	}

	for _, rule := range d.Recurrence {
		ev.AddRrule(strings.TrimPrefix(rule, "RRULE:"))
	}

	return cal.Serialize(), nil
}
