// Package calendar talks to the calendar backend that interpreted events
// land in. The core pipeline only needs create and list; update, delete,
// and search exist for the CLI and MCP surfaces.
package calendar

import (
	"context"
	"time"

	"github.com/sergeylevashov/schedy/internal/assemble"
)

// Event is a calendar event as stored by the backend.
type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Status      string
	HTMLLink    string
}

// Client is the calendar backend capability.
type Client interface {
	CreateEvent(ctx context.Context, draft *assemble.Draft) (*Event, error)
	ListEvents(ctx context.Context, from, to time.Time) ([]Event, error)
	UpdateEvent(ctx context.Context, id string, draft *assemble.Draft) (*Event, error)
	DeleteEvent(ctx context.Context, id string) error
	FindEventsBySummary(ctx context.Context, query string, from, to time.Time) ([]Event, error)
}
