package models

import "time"

// Tour is a booked property showing.
//
// AgentID is stored as an empty string rather than NULL so the composite
// unique index dedupes unassigned bookings too.
type Tour struct {
	ID        string    `gorm:"primaryKey;size:32"`
	LeadID    string    `gorm:"size:32"`
	Client    string    `gorm:"size:128;not null;uniqueIndex:idx_tour_slot"`
	AgentID   string    `gorm:"size:64;uniqueIndex:idx_tour_slot"`
	Property  string    `gorm:"size:256;not null;uniqueIndex:idx_tour_slot"`
	StartsAt  time.Time `gorm:"uniqueIndex:idx_tour_slot"`
	Source    string    `gorm:"size:32;default:agent_app"`
	CreatedAt time.Time
}
