package api

import (
	"time"

	"github.com/openhouse-labs/keyturn/internal/compliance"
	"github.com/openhouse-labs/keyturn/internal/lead"
	"github.com/openhouse-labs/keyturn/internal/models"
)

// leadView is the JSON shape for a lead, including the derived SLA fields.
type leadView struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Source          string     `json:"source,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Email           string     `json:"email,omitempty"`
	Location        string     `json:"location,omitempty"`
	PriceRange      string     `json:"priceRange,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	AssignedAgentID string     `json:"assignedAgentId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	Responded       bool       `json:"responded"`
	ResponseAt      *time.Time `json:"responseAt,omitempty"`
	SLASeconds      int        `json:"slaSeconds"`
	Score           float64    `json:"score"`
	SLARemaining    int        `json:"slaRemaining"`
	Severity        string     `json:"severity"`
}

func newLeadView(l *models.Lead, warnSeconds int, now time.Time) leadView {
	remaining := lead.Remaining(l.SLASeconds, l.CreatedAt, now)
	return leadView{
		ID:              l.ID,
		Name:            l.Name,
		Source:          l.Source,
		Phone:           l.Phone,
		Email:           l.Email,
		Location:        l.Location,
		PriceRange:      l.PriceRange,
		Notes:           l.Notes,
		AssignedAgentID: l.AssignedAgentID,
		CreatedAt:       l.CreatedAt,
		Responded:       l.Responded,
		ResponseAt:      l.ResponseAt,
		SLASeconds:      l.SLASeconds,
		Score:           l.Score,
		SLARemaining:    remaining,
		Severity:        string(lead.SeverityFor(remaining, l.Responded, warnSeconds)),
	}
}

// taskView is the JSON shape for a compliance task. EffectiveStatus folds the
// derived overdue state in; Status is what the row actually holds.
type taskView struct {
	ID              string     `json:"id"`
	Type            string     `json:"type"`
	Client          string     `json:"client"`
	Status          string     `json:"status"`
	EffectiveStatus string     `json:"effectiveStatus"`
	AgentID         string     `json:"agentId,omitempty"`
	DueAt           *time.Time `json:"dueAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func newTaskView(t *models.ComplianceTask, now time.Time) taskView {
	return taskView{
		ID:              t.ID,
		Type:            t.Type,
		Client:          t.Client,
		Status:          t.Status,
		EffectiveStatus: compliance.EffectiveStatus(t, now),
		AgentID:         t.AgentID,
		DueAt:           t.DueAt,
		CreatedAt:       t.CreatedAt,
	}
}

// tourView is the JSON shape for a booked tour.
type tourView struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"leadId,omitempty"`
	Client    string    `json:"client"`
	AgentID   string    `json:"agentId,omitempty"`
	Property  string    `json:"property"`
	StartsAt  time.Time `json:"startsAt"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

func newTourView(t *models.Tour) tourView {
	return tourView{
		ID:        t.ID,
		LeadID:    t.LeadID,
		Client:    t.Client,
		AgentID:   t.AgentID,
		Property:  t.Property,
		StartsAt:  t.StartsAt,
		Source:    t.Source,
		CreatedAt: t.CreatedAt,
	}
}
