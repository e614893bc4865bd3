package compliance

import (
	"errors"
	"fmt"

	"github.com/openhouse-labs/keyturn/internal/models"
	"gorm.io/gorm"
)

// Gate denial reasons.
const (
	ReasonNoBuyerAgreement = "no_buyer_agreement"
	ReasonNotCompleted     = "buyer_agreement_not_completed"
)

// Decision is the outcome of the tour booking gate. Latest carries the task
// the decision was made from, when one exists.
type Decision struct {
	Allowed bool                   `json:"allowed"`
	Reason  string                 `json:"reason,omitempty"`
	Latest  *models.ComplianceTask `json:"latest,omitempty"`
}

// CanBookTour decides whether a tour may be booked for a client. It reads the
// most recently created buyer_agreement task matching the client exactly (and
// the agent exactly, when given) and allows booking only if that task is
// completed. Ties on created_at break on the insert sequence. Pure read; no
// side effects.
func CanBookTour(db *gorm.DB, client, agentID string) (Decision, error) {
	if client == "" {
		return Decision{}, fmt.Errorf("%w: client is required", ErrInvalid)
	}

	q := db.Where("type = ? AND client = ?", TypeBuyerAgreement, client)
	if agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}

	var latest models.ComplianceTask
	err := q.Order("created_at DESC, seq DESC").First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Decision{Allowed: false, Reason: ReasonNoBuyerAgreement}, nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf("compliance: gate lookup for %q: %w", client, err)
	}

	if latest.Status != StatusCompleted {
		return Decision{Allowed: false, Reason: ReasonNotCompleted, Latest: &latest}, nil
	}
	return Decision{Allowed: true, Latest: &latest}, nil
}
