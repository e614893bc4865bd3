// Package notify pushes Keyturn alerts to chat platforms (Slack, Discord).
package notify

import (
	"context"
	"errors"
)

// Severity levels for events.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Event is an alert formatted for display in chat.
type Event struct {
	Title    string  // headline, e.g. "SLA breached: Jane Doe"
	Body     string  // detail text
	Severity string  // "info", "warning", "error"
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed with an event.
type Field struct {
	Name  string
	Value string
}

// Notifier is the interface platform-specific implementations must satisfy.
type Notifier interface {
	// Send delivers an event to the platform.
	Send(ctx context.Context, ev Event) error

	// Close gracefully shuts down the platform connection.
	Close() error
}

// Fanout delivers each event to every notifier. A failing notifier does not
// stop delivery to the rest.
type Fanout []Notifier

// Send delivers ev to all notifiers and joins any errors.
func (f Fanout) Send(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Send(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes all notifiers and joins any errors.
func (f Fanout) Close() error {
	var errs []error
	for _, n := range f {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
