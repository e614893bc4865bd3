package models

import "time"

// ComplianceTask is a required paperwork item tied to a client.
//
// Status holds only written states (pending, in_review, completed).
// Overdue is derived from DueAt at read time and never stored. Seq is a
// strictly monotonic insert counter used to break created_at ties when
// selecting the most recent task for a client.
type ComplianceTask struct {
	ID        string `gorm:"primaryKey;size:32"`
	Seq       uint   `gorm:"autoIncrement;index"`
	Type      string `gorm:"size:32;not null;index"`
	Client    string `gorm:"size:128;not null;index"`
	Status    string `gorm:"size:16;default:pending;index"`
	AgentID   string `gorm:"size:64;index"`
	DueAt     *time.Time
	CreatedAt time.Time
}
