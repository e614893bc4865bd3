package models

import "time"

// Lead is an inbound prospect tracked against a speed-to-lead SLA.
type Lead struct {
	ID              string `gorm:"primaryKey;size:32"`
	Name            string `gorm:"not null"`
	Source          string `gorm:"size:64"`
	Phone           string `gorm:"size:32"`
	Email           string `gorm:"size:128"`
	Location        string `gorm:"size:128"`
	PriceRange      string `gorm:"size:64"`
	Notes           string `gorm:"type:text"`
	AssignedAgentID string `gorm:"size:64;index"`
	CreatedAt       time.Time
	Responded       bool `gorm:"default:false"`
	ResponseAt      *time.Time
	SLASeconds      int     `gorm:"column:sla_seconds;default:120"`
	Score           float64 `gorm:"default:0.5"`
}
