// Package compliance provides compliance task lifecycle operations and the
// tour booking gate.
package compliance

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/openhouse-labs/keyturn/internal/models"
	"gorm.io/gorm"
)

// Task types.
const (
	TypeBuyerAgreement = "buyer_agreement"
	TypeCompDisclosure = "comp_disclosure"
)

// Written task statuses. Overdue is derived, never stored; see EffectiveStatus.
const (
	StatusPending   = "pending"
	StatusInReview  = "in_review"
	StatusCompleted = "completed"
	StatusOverdue   = "overdue"
)

// ErrNotFound is returned when no task matches the given ID.
var ErrNotFound = errors.New("compliance: task not found")

// ErrInvalid is returned when a task fails validation.
var ErrInvalid = errors.New("compliance: invalid")

// ErrAlreadyCompleted is returned when an operation requires a non-terminal task.
var ErrAlreadyCompleted = errors.New("compliance: task already completed")

// ValidTypes holds the accepted task type tags.
var ValidTypes = map[string]bool{
	TypeBuyerAgreement: true,
	TypeCompDisclosure: true,
}

// ValidStatuses holds the statuses a task may be written with.
var ValidStatuses = map[string]bool{
	StatusPending:   true,
	StatusInReview:  true,
	StatusCompleted: true,
}

// listLimit caps list reads; the dashboard never pages past this.
const listLimit = 200

// CreateOpts holds parameters for creating a new compliance task.
type CreateOpts struct {
	ID      string // optional; generated when empty
	Type    string
	Client  string
	Status  string // defaults to pending
	AgentID string
	DueAt   *time.Time
}

// GenerateID creates a unique task ID in ct-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("compliance: generate ID: %w", err)
	}
	return "ct-" + hex.EncodeToString(b)[:5], nil
}

// build validates opts and constructs an unsaved task row.
func build(opts CreateOpts) (*models.ComplianceTask, error) {
	if opts.Type == "" || opts.Client == "" {
		return nil, fmt.Errorf("%w: type and client are required", ErrInvalid)
	}
	if !ValidTypes[opts.Type] {
		return nil, fmt.Errorf("%w: unknown type: %s", ErrInvalid, opts.Type)
	}

	status := opts.Status
	if status == "" {
		status = StatusPending
	}
	if !ValidStatuses[status] {
		return nil, fmt.Errorf("%w: invalid status: %s", ErrInvalid, status)
	}

	id := opts.ID
	if id == "" {
		var err error
		id, err = GenerateID()
		if err != nil {
			return nil, err
		}
	}

	return &models.ComplianceTask{
		ID:      id,
		Type:    opts.Type,
		Client:  opts.Client,
		Status:  status,
		AgentID: opts.AgentID,
		DueAt:   opts.DueAt,
	}, nil
}

// Create inserts a single compliance task.
func Create(db *gorm.DB, opts CreateOpts) (*models.ComplianceTask, error) {
	row, err := build(opts)
	if err != nil {
		return nil, err
	}
	if err := db.Create(row).Error; err != nil {
		return nil, fmt.Errorf("compliance: create: %w", err)
	}
	return row, nil
}

// Ingest validates every item, then batch-inserts them. Either all rows are
// created or none; the returned count equals len(items) on success.
func Ingest(db *gorm.DB, items []CreateOpts) (int, error) {
	if len(items) == 0 {
		return 0, fmt.Errorf("%w: no items", ErrInvalid)
	}

	rows := make([]*models.ComplianceTask, 0, len(items))
	for i, it := range items {
		row, err := build(it)
		if err != nil {
			return 0, fmt.Errorf("item %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	if err := db.Create(rows).Error; err != nil {
		return 0, fmt.Errorf("compliance: ingest %d items: %w", len(rows), err)
	}
	return len(rows), nil
}

// Get retrieves a task by ID.
func Get(db *gorm.DB, id string) (*models.ComplianceTask, error) {
	var row models.ComplianceTask
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("compliance: get %s: %w", id, err)
	}
	return &row, nil
}

// List returns tasks, optionally filtered by agent, newest first.
func List(db *gorm.DB, agentID string) ([]models.ComplianceTask, error) {
	q := db.Model(&models.ComplianceTask{})
	if agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}

	var rows []models.ComplianceTask
	if err := q.Order("created_at DESC, seq DESC").Limit(listLimit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("compliance: list: %w", err)
	}
	return rows, nil
}

// Snooze pushes a task's due date forward by days without changing its
// status. A null due date anchors at now, so the new due date is always in
// the future. Completed tasks cannot be snoozed.
func Snooze(db *gorm.DB, id string, days int) (*models.ComplianceTask, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: days must be at least 1, got %d", ErrInvalid, days)
	}

	task, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if task.Status == StatusCompleted {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
	}

	base := time.Now()
	if task.DueAt != nil && task.DueAt.After(base) {
		base = *task.DueAt
	}
	due := base.Add(time.Duration(days) * 24 * time.Hour)

	if err := db.Model(&models.ComplianceTask{}).Where("id = ?", id).
		Update("due_at", due).Error; err != nil {
		return nil, fmt.Errorf("compliance: snooze %s: %w", id, err)
	}

	task.DueAt = &due
	return task, nil
}

// Complete transitions a task to completed. Completing an already-completed
// task is not an error: it succeeds and reports that no state changed.
func Complete(db *gorm.DB, id string) (*models.ComplianceTask, bool, error) {
	task, err := Get(db, id)
	if err != nil {
		return nil, false, err
	}
	if task.Status == StatusCompleted {
		return task, true, nil
	}

	if err := db.Model(&models.ComplianceTask{}).Where("id = ?", id).
		Update("status", StatusCompleted).Error; err != nil {
		return nil, false, fmt.Errorf("compliance: complete %s: %w", id, err)
	}

	task.Status = StatusCompleted
	return task, false, nil
}

// EffectiveStatus is the status a reader should display: a non-completed task
// past its due date reads as overdue. Derived per read, never persisted.
func EffectiveStatus(task *models.ComplianceTask, now time.Time) string {
	if task.Status != StatusCompleted && task.DueAt != nil && task.DueAt.Before(now) {
		return StatusOverdue
	}
	return task.Status
}
