package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sergeylevashov/schedy/internal/assemble"
)

// defaultBaseURL is the Google Calendar API base.
const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// GoogleClient implements Client against the Google Calendar REST API
// using a Bearer access token.
type GoogleClient struct {
	accessToken string
	calendarID  string
	baseURL     string
	httpClient  *http.Client
	loc         *time.Location
}

// GoogleOption configures a GoogleClient.
type GoogleOption func(*GoogleClient)

// WithBaseURL points the client at a different API endpoint, used by
// tests to inject a local server.
func WithBaseURL(u string) GoogleOption {
	return func(c *GoogleClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) GoogleOption {
	return func(c *GoogleClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLocation sets the timezone written into timed events.
func WithLocation(loc *time.Location) GoogleOption {
	return func(c *GoogleClient) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// NewGoogleClient creates a client for one calendar. calendarID may be
// "primary" or a calendar email address.
func NewGoogleClient(accessToken, calendarID string, opts ...GoogleOption) *GoogleClient {
	if calendarID == "" {
		calendarID = "primary"
	}
	c := &GoogleClient{
		accessToken: accessToken,
		calendarID:  calendarID,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		loc:         time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// eventsURL builds the events collection URL. The calendar ID needs path
// escaping because calendar IDs are email addresses.
func (c *GoogleClient) eventsURL(suffix string) string {
	u := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))
	if suffix != "" {
		u += "/" + url.PathEscape(suffix)
	}
	return u
}

// CreateEvent inserts the draft as a new event and returns the stored
// event.
func (c *GoogleClient) CreateEvent(ctx context.Context, draft *assemble.Draft) (*Event, error) {
	if draft == nil {
		return nil, fmt.Errorf("calendar: nil draft")
	}
	var created googleEvent
	if err := c.do(ctx, http.MethodPost, c.eventsURL(""), c.draftToWire(draft), &created); err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}
	ev := c.fromWire(created)
	return &ev, nil
}

// ListEvents returns the non-cancelled events between from and to,
// ordered by start time, with recurring events expanded.
func (c *GoogleClient) ListEvents(ctx context.Context, from, to time.Time) ([]Event, error) {
	params := url.Values{}
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("maxResults", "250")
	params.Set("timeMin", from.UTC().Format(time.RFC3339))
	params.Set("timeMax", to.UTC().Format(time.RFC3339))

	var out []Event
	pages := 0
	for {
		var page googleEventsList
		if err := c.do(ctx, http.MethodGet, c.eventsURL("")+"?"+params.Encode(), nil, &page); err != nil {
			return nil, fmt.Errorf("listing events: %w", err)
		}
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			out = append(out, c.fromWire(item))
		}
		if page.NextPageToken == "" {
			break
		}
		params.Set("pageToken", page.NextPageToken)
		pages++
		if pages > 10 {
			break // safety cap
		}
	}
	return out, nil
}

// UpdateEvent replaces the event's mutable fields with the draft.
func (c *GoogleClient) UpdateEvent(ctx context.Context, id string, draft *assemble.Draft) (*Event, error) {
	if id == "" {
		return nil, fmt.Errorf("calendar: empty event id")
	}
	if draft == nil {
		return nil, fmt.Errorf("calendar: nil draft")
	}
	var updated googleEvent
	if err := c.do(ctx, http.MethodPut, c.eventsURL(id), c.draftToWire(draft), &updated); err != nil {
		return nil, fmt.Errorf("updating event %s: %w", id, err)
	}
	ev := c.fromWire(updated)
	return &ev, nil
}

// DeleteEvent removes the event.
func (c *GoogleClient) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("calendar: empty event id")
	}
	if err := c.do(ctx, http.MethodDelete, c.eventsURL(id), nil, nil); err != nil {
		return fmt.Errorf("deleting event %s: %w", id, err)
	}
	return nil
}

// FindEventsBySummary lists the window and keeps events whose summary
// contains query, case-insensitively. The API's free-text search is too
// fuzzy for exact follow-up operations, so matching happens client-side.
func (c *GoogleClient) FindEventsBySummary(ctx context.Context, query string, from, to time.Time) ([]Event, error) {
	events, err := c.ListEvents(ctx, from, to)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return events, nil
	}
	matched := events[:0]
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Summary), needle) {
			matched = append(matched, ev)
		}
	}
	return matched, nil
}

// do executes one API call. A nil body sends no payload; a nil result
// discards the response body (delete returns 204 with no content).
func (c *GoogleClient) do(ctx context.Context, method, reqURL string, body, result any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, payload)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("Google API returned %d: %s", resp.StatusCode, string(msg))
	}
	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// draftToWire converts a draft into the Google event payload.
func (c *GoogleClient) draftToWire(d *assemble.Draft) googleEvent {
	ev := googleEvent{
		Summary:     d.Summary,
		Description: d.Description,
		Location:    d.Location,
		ColorID:     d.ColorID,
		Recurrence:  d.Recurrence,
	}

	if d.AllDay {
		ev.Start = googleEventTime{Date: d.Date.Format("2006-01-02")}
		ev.End = googleEventTime{Date: d.Date.AddDate(0, 0, 1).Format("2006-01-02")}
	} else {
		tz := c.loc.String()
		ev.Start = googleEventTime{DateTime: d.Start.Format(time.RFC3339), TimeZone: tz}
		ev.End = googleEventTime{DateTime: d.End.Format(time.RFC3339), TimeZone: tz}
	}

	if len(d.Reminders) > 0 {
		ev.Reminders = &googleReminders{UseDefault: false}
		for _, r := range d.Reminders {
			ev.Reminders.Overrides = append(ev.Reminders.Overrides, googleReminderOverride{
				Method:  r.Method,
				Minutes: r.Minutes,
			})
		}
	}
	return ev
}

// fromWire converts an API event to the package type.
func (c *GoogleClient) fromWire(ev googleEvent) Event {
	out := Event{
		ID:          ev.ID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Status:      ev.Status,
		HTMLLink:    ev.HTMLLink,
	}
	if ev.Start.Date != "" {
		out.AllDay = true
		if d, err := time.ParseInLocation("2006-01-02", ev.Start.Date, c.loc); err == nil {
			out.Start = d
		}
		if d, err := time.ParseInLocation("2006-01-02", ev.End.Date, c.loc); err == nil {
			out.End = d
		}
		return out
	}
	out.Start = parseGoogleTime(ev.Start.DateTime)
	out.End = parseGoogleTime(ev.End.DateTime)
	return out
}

// parseGoogleTime parses an API timestamp (RFC3339, with or without
// fractional seconds).
func parseGoogleTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

// --- Google Calendar API wire types ---

type googleEventsList struct {
	Items         []googleEvent `json:"items"`
	NextPageToken string        `json:"nextPageToken"`
}

type googleEvent struct {
	ID          string           `json:"id,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Description string           `json:"description,omitempty"`
	Location    string           `json:"location,omitempty"`
	Status      string           `json:"status,omitempty"`
	ColorID     string           `json:"colorId,omitempty"`
	Start       googleEventTime  `json:"start,omitempty"`
	End         googleEventTime  `json:"end,omitempty"`
	Recurrence  []string         `json:"recurrence,omitempty"`
	Reminders   *googleReminders `json:"reminders,omitempty"`
	HTMLLink    string           `json:"htmlLink,omitempty"`
}

type googleEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googleReminders struct {
	UseDefault bool                     `json:"useDefault"`
	Overrides  []googleReminderOverride `json:"overrides,omitempty"`
}

type googleReminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}
