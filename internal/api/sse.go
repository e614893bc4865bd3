package api

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openhouse-labs/keyturn/internal/lead"
	"github.com/openhouse-labs/keyturn/internal/models"
)

// breachEvent holds data for an sla_breach SSE event.
type breachEvent struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	AgentID    string  `json:"agentId,omitempty"`
	Score      float64 `json:"score"`
	SLASeconds int     `json:"slaSeconds"`
}

// handleSSE streams newly breached leads so the dashboard can alert without
// polling the list endpoints.
func handleSSE(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		// Tests exercise the handshake with a nil DB.
		if db == nil {
			return
		}

		// Leads already breached at connect time are not re-announced.
		alerted := breachedIDs(db, time.Now())

		ctx := c.Request.Context()
		ticker := time.NewTicker(3 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				now := time.Now()
				var candidates []models.Lead
				db.Where("responded = ?", false).Find(&candidates)

				sent := false
				for _, l := range candidates {
					if alerted[l.ID] || lead.Remaining(l.SLASeconds, l.CreatedAt, now) > 0 {
						continue
					}
					alerted[l.ID] = true
					writeSSE(c.Writer, "sla_breach", breachEvent{
						ID:         l.ID,
						Name:       l.Name,
						AgentID:    l.AssignedAgentID,
						Score:      l.Score,
						SLASeconds: l.SLASeconds,
					})
					sent = true
				}
				if sent {
					c.Writer.Flush()
				}
			}
		}
	}
}

// breachedIDs returns the set of unresponded leads already past their SLA.
func breachedIDs(db *gorm.DB, now time.Time) map[string]bool {
	ids := make(map[string]bool)
	var rows []models.Lead
	db.Where("responded = ?", false).Find(&rows)
	for _, l := range rows {
		if lead.Remaining(l.SLASeconds, l.CreatedAt, now) == 0 {
			ids[l.ID] = true
		}
	}
	return ids
}

// writeSSE writes a single SSE event frame.
func writeSSE(w io.Writer, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
