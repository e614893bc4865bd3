// Package lead provides lead store operations and speed-to-lead timing rules.
package lead

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/openhouse-labs/keyturn/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no lead matches the given ID.
var ErrNotFound = errors.New("lead: not found")

// ErrInvalid is returned when a lead fails validation.
var ErrInvalid = errors.New("lead: invalid")

// DefaultSLASeconds is the response target applied when a lead arrives
// without one.
const DefaultSLASeconds = 120

// DefaultScore is the lead score applied when none is given.
const DefaultScore = 0.5

// listLimit caps list reads; the dashboard never pages past this.
const listLimit = 200

// CreateOpts holds parameters for creating a new lead.
type CreateOpts struct {
	ID              string // optional; generated when empty
	Name            string
	Source          string
	Phone           string
	Email           string
	Location        string
	PriceRange      string
	Notes           string
	AssignedAgentID string
	SLASeconds      int      // defaults to DefaultSLASeconds
	Score           *float64 // defaults to DefaultScore; must be in [0,1]
	Responded       bool
	ResponseAt      *time.Time
}

// GenerateID creates a unique lead ID in ld-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lead: generate ID: %w", err)
	}
	return "ld-" + hex.EncodeToString(b)[:5], nil
}

// build validates opts and constructs an unsaved Lead row.
func build(opts CreateOpts) (*models.Lead, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if opts.SLASeconds < 0 {
		return nil, fmt.Errorf("%w: slaSeconds must not be negative", ErrInvalid)
	}
	if opts.Responded && opts.ResponseAt == nil {
		now := time.Now()
		opts.ResponseAt = &now
	}

	score := DefaultScore
	if opts.Score != nil {
		score = *opts.Score
	}
	if score < 0 || score > 1 {
		return nil, fmt.Errorf("%w: score %v outside [0,1]", ErrInvalid, score)
	}

	slaSeconds := opts.SLASeconds
	if slaSeconds == 0 {
		slaSeconds = DefaultSLASeconds
	}

	id := opts.ID
	if id == "" {
		var err error
		id, err = GenerateID()
		if err != nil {
			return nil, err
		}
	}

	return &models.Lead{
		ID:              id,
		Name:            opts.Name,
		Source:          opts.Source,
		Phone:           opts.Phone,
		Email:           opts.Email,
		Location:        opts.Location,
		PriceRange:      opts.PriceRange,
		Notes:           opts.Notes,
		AssignedAgentID: opts.AssignedAgentID,
		Responded:       opts.Responded,
		ResponseAt:      opts.ResponseAt,
		SLASeconds:      slaSeconds,
		Score:           score,
	}, nil
}

// Create inserts a single lead.
func Create(db *gorm.DB, opts CreateOpts) (*models.Lead, error) {
	row, err := build(opts)
	if err != nil {
		return nil, err
	}
	if err := db.Create(row).Error; err != nil {
		return nil, fmt.Errorf("lead: create: %w", err)
	}
	return row, nil
}

// Ingest validates every item, then batch-inserts them. Either all rows are
// created or none; the returned count equals len(items) on success.
func Ingest(db *gorm.DB, items []CreateOpts) (int, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("%w: no items", ErrInvalid)
	}

	rows := make([]*models.Lead, 0, len(items))
	for i, it := range items {
		row, err := build(it)
		if err != nil {
			return 0, fmt.Errorf("item %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	if err := db.Create(rows).Error; err != nil {
		return 0, fmt.Errorf("lead: ingest %d items: %w", len(rows), err)
	}
	return len(rows), nil
}

// Get retrieves a lead by ID.
func Get(db *gorm.DB, id string) (*models.Lead, error) {
	var row models.Lead
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("lead: get %s: %w", id, err)
	}
	return &row, nil
}

// List returns leads, optionally filtered by assigned agent, newest first.
func List(db *gorm.DB, agentID string) ([]models.Lead, error) {
	q := db.Model(&models.Lead{})
	if agentID != "" {
		q = q.Where("assigned_agent_id = ?", agentID)
	}

	var rows []models.Lead
	if err := q.Order("created_at DESC").Limit(listLimit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("lead: list: %w", err)
	}
	return rows, nil
}

// MarkResponded stamps a lead as responded now. Calling it again re-stamps
// the response time; there is no first-response-only rule.
func MarkResponded(db *gorm.DB, id string) (*models.Lead, error) {
	now := time.Now()
	result := db.Model(&models.Lead{}).Where("id = ?", id).Updates(map[string]interface{}{
		"responded":   true,
		"response_at": now,
	})
	if result.Error != nil {
		return nil, fmt.Errorf("lead: mark responded %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return Get(db, id)
}
