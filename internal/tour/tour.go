// Package tour provides gate-checked tour booking.
package tour

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/openhouse-labs/keyturn/internal/compliance"
	"github.com/openhouse-labs/keyturn/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalid is returned when a booking request fails validation.
var ErrInvalid = errors.New("tour: invalid")

// DefaultSource tags bookings that don't name their origin.
const DefaultSource = "agent_app"

// listLimit caps list reads.
const listLimit = 200

// DeniedError is returned when the compliance gate blocks a booking. It
// carries the gate decision so callers can surface the reason and the task
// the decision was made from.
type DeniedError struct {
	Decision compliance.Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("tour: blocked by compliance gate: %s", e.Decision.Reason)
}

// BookOpts holds parameters for booking a tour.
type BookOpts struct {
	Client   string
	Property string
	StartsAt time.Time
	AgentID  string
	LeadID   string
	Source   string // defaults to DefaultSource
}

// GenerateID creates a unique tour ID in tr-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("tour: generate ID: %w", err)
	}
	return "tr-" + hex.EncodeToString(b)[:5], nil
}

// Book consults the compliance gate and, if allowed, inserts the tour. The
// insert does nothing on a (agent, client, property, starts_at) collision;
// a replayed booking returns the existing row with deduped=true instead of a
// second row or an error. The uniqueness check and insert are a single
// statement, so concurrent replays cannot double-book.
func Book(db *gorm.DB, opts BookOpts) (*models.Tour, bool, error) {
	if opts.Client == "" || opts.Property == "" {
		return nil, false, fmt.Errorf("%w: client and property are required", ErrInvalid)
	}
	if opts.StartsAt.IsZero() {
		return nil, false, fmt.Errorf("%w: startsAt is required", ErrInvalid)
	}

	decision, err := compliance.CanBookTour(db, opts.Client, opts.AgentID)
	if err != nil {
		return nil, false, err
	}
	if !decision.Allowed {
		return nil, false, &DeniedError{Decision: decision}
	}

	id, err := GenerateID()
	if err != nil {
		return nil, false, err
	}

	source := opts.Source
	if source == "" {
		source = DefaultSource
	}

	row := models.Tour{
		ID:       id,
		LeadID:   opts.LeadID,
		Client:   opts.Client,
		AgentID:  opts.AgentID,
		Property: opts.Property,
		StartsAt: opts.StartsAt,
		Source:   source,
	}

	result := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "client"}, {Name: "agent_id"}, {Name: "property"}, {Name: "starts_at"},
		},
		DoNothing: true,
	}).Create(&row)
	if result.Error != nil {
		return nil, false, fmt.Errorf("tour: book: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		existing, err := find(db, opts)
		if err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}
	return &row, false, nil
}

// find fetches the tour occupying a booking slot.
func find(db *gorm.DB, opts BookOpts) (*models.Tour, error) {
	var row models.Tour
	err := db.Where("client = ? AND agent_id = ? AND property = ? AND starts_at = ?",
		opts.Client, opts.AgentID, opts.Property, opts.StartsAt).First(&row).Error
	if err != nil {
		return nil, fmt.Errorf("tour: find existing booking: %w", err)
	}
	return &row, nil
}

// List returns tours, optionally filtered by agent, newest first.
func List(db *gorm.DB, agentID string) ([]models.Tour, error) {
	q := db.Model(&models.Tour{})
	if agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}

	var rows []models.Tour
	if err := q.Order("created_at DESC").Limit(listLimit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("tour: list: %w", err)
	}
	return rows, nil
}
