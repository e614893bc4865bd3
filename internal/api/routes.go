package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/openhouse-labs/keyturn/internal/compliance"
	"github.com/openhouse-labs/keyturn/internal/lead"
	"github.com/openhouse-labs/keyturn/internal/models"
	"github.com/openhouse-labs/keyturn/internal/tour"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, db *gorm.DB, warnSeconds int) {
	router.GET("/healthz", handleHealthz())

	router.GET("/leads", handleLeadList(db, warnSeconds))
	router.POST("/leads/ingest", handleLeadIngest(db))
	router.POST("/leads/:id/responded", handleLeadResponded(db, warnSeconds))

	router.GET("/tasks", handleTaskList(db))
	router.POST("/tasks", handleTaskCreate(db))
	router.POST("/tasks/ingest", handleTaskIngest(db))
	router.POST("/tasks/:id/complete", handleTaskComplete(db))
	router.POST("/tasks/:id/snooze", handleTaskSnooze(db))

	router.GET("/tours", handleTourList(db))
	router.POST("/tours/book", handleTourBook(db))

	router.GET("/diag/db", handleDiagDB(db))
	router.GET("/api/events", handleSSE(db))
}

// fail writes the uniform error body with a status derived from the error.
func fail(c *gin.Context, err error) {
	c.JSON(errStatus(err), gin.H{"error": err.Error()})
}

// errStatus maps domain errors to HTTP statuses: validation 400, not-found
// 404, terminal-state conflict 409, everything else 500.
func errStatus(err error) int {
	switch {
	case errors.Is(err, lead.ErrInvalid),
		errors.Is(err, compliance.ErrInvalid),
		errors.Is(err, tour.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, lead.ErrNotFound),
		errors.Is(err, compliance.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, compliance.ErrAlreadyCompleted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeOneOrMany accepts either a single JSON object or an array of them,
// mirroring the ingest endpoints' contract.
func decodeOneOrMany[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

func handleHealthz() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// leadPayload is the wire shape for lead creation and ingest.
type leadPayload struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Source          string     `json:"source"`
	Phone           string     `json:"phone"`
	Email           string     `json:"email"`
	Location        string     `json:"location"`
	PriceRange      string     `json:"priceRange"`
	Notes           string     `json:"notes"`
	AssignedAgentID string     `json:"assignedAgentId"`
	SLASeconds      int        `json:"slaSeconds"`
	Score           *float64   `json:"score"`
	Responded       bool       `json:"responded"`
	ResponseAt      *time.Time `json:"responseAt"`
}

func (p leadPayload) opts() lead.CreateOpts {
	return lead.CreateOpts{
		ID:              p.ID,
		Name:            p.Name,
		Source:          p.Source,
		Phone:           p.Phone,
		Email:           p.Email,
		Location:        p.Location,
		PriceRange:      p.PriceRange,
		Notes:           p.Notes,
		AssignedAgentID: p.AssignedAgentID,
		SLASeconds:      p.SLASeconds,
		Score:           p.Score,
		Responded:       p.Responded,
		ResponseAt:      p.ResponseAt,
	}
}

func handleLeadList(db *gorm.DB, warnSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := lead.List(db, c.Query("agentId"))
		if err != nil {
			fail(c, err)
			return
		}
		now := time.Now()
		views := make([]leadView, len(rows))
		for i := range rows {
			views[i] = newLeadView(&rows[i], warnSeconds, now)
		}
		c.JSON(http.StatusOK, gin.H{"data": views})
	}
}

func handleLeadIngest(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := c.GetRawData()
		if err != nil {
			fail(c, err)
			return
		}
		payloads, err := decodeOneOrMany[leadPayload](data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		items := make([]lead.CreateOpts, len(payloads))
		for i, p := range payloads {
			items[i] = p.opts()
		}

		inserted, err := lead.Ingest(db, items)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "inserted": inserted})
	}
}

func handleLeadResponded(db *gorm.DB, warnSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		row, err := lead.MarkResponded(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "data": newLeadView(row, warnSeconds, time.Now())})
	}
}

// taskPayload is the wire shape for task creation and ingest.
type taskPayload struct {
	ID      string     `json:"id"`
	Type    string     `json:"type"`
	Client  string     `json:"client"`
	Status  string     `json:"status"`
	AgentID string     `json:"agentId"`
	DueAt   *time.Time `json:"dueAt"`
}

func (p taskPayload) opts() compliance.CreateOpts {
	return compliance.CreateOpts{
		ID:      p.ID,
		Type:    p.Type,
		Client:  p.Client,
		Status:  p.Status,
		AgentID: p.AgentID,
		DueAt:   p.DueAt,
	}
}

func handleTaskList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := compliance.List(db, c.Query("agentId"))
		if err != nil {
			fail(c, err)
			return
		}
		now := time.Now()
		views := make([]taskView, len(rows))
		for i := range rows {
			views[i] = newTaskView(&rows[i], now)
		}
		c.JSON(http.StatusOK, gin.H{"data": views})
	}
}

func handleTaskCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p taskPayload
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		row, err := compliance.Create(db, p.opts())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": newTaskView(row, time.Now())})
	}
}

func handleTaskIngest(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := c.GetRawData()
		if err != nil {
			fail(c, err)
			return
		}
		payloads, err := decodeOneOrMany[taskPayload](data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		items := make([]compliance.CreateOpts, len(payloads))
		for i, p := range payloads {
			items[i] = p.opts()
		}

		inserted, err := compliance.Ingest(db, items)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "inserted": inserted})
	}
}

func handleTaskComplete(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		row, already, err := compliance.Complete(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":               true,
			"alreadyCompleted": already,
			"data":             newTaskView(row, time.Now()),
		})
	}
}

func handleTaskSnooze(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Body is optional; an absent or empty body means the default of
		// one day.
		days := 1
		if data, err := c.GetRawData(); err == nil && len(bytes.TrimSpace(data)) > 0 {
			var body struct {
				Days *int `json:"days"`
			}
			if err := json.Unmarshal(data, &body); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if body.Days != nil {
				days = *body.Days
			}
		}

		row, err := compliance.Snooze(db, c.Param("id"), days)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "data": newTaskView(row, time.Now())})
	}
}

// bookPayload is the wire shape for booking a tour. StartsAt stays a string
// so a malformed datetime reads as its own validation error.
type bookPayload struct {
	Client   string `json:"client"`
	Property string `json:"property"`
	StartsAt string `json:"startsAt"`
	AgentID  string `json:"agentId"`
	LeadID   string `json:"leadId"`
	Source   string `json:"source"`
}

func handleTourBook(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p bookPayload
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if p.Client == "" || p.Property == "" || p.StartsAt == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing client, property, or startsAt"})
			return
		}
		startsAt, err := time.Parse(time.RFC3339, p.StartsAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startsAt datetime"})
			return
		}

		row, deduped, err := tour.Book(db, tour.BookOpts{
			Client:   p.Client,
			Property: p.Property,
			StartsAt: startsAt,
			AgentID:  p.AgentID,
			LeadID:   p.LeadID,
			Source:   p.Source,
		})
		if err != nil {
			var denied *tour.DeniedError
			if errors.As(err, &denied) {
				body := gin.H{"error": "tour_blocked", "reason": denied.Decision.Reason}
				if denied.Decision.Latest != nil {
					body["latest"] = newTaskView(denied.Decision.Latest, time.Now())
				}
				c.JSON(http.StatusForbidden, body)
				return
			}
			fail(c, err)
			return
		}

		if deduped {
			c.JSON(http.StatusOK, gin.H{"ok": true, "data": newTourView(row), "deduped": true})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true, "data": newTourView(row)})
	}
}

func handleTourList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := tour.List(db, c.Query("agentId"))
		if err != nil {
			fail(c, err)
			return
		}
		views := make([]tourView, len(rows))
		for i := range rows {
			views[i] = newTourView(&rows[i])
		}
		c.JSON(http.StatusOK, gin.H{"data": views})
	}
}

// handleDiagDB reports connectivity, table presence, and row counts.
func handleDiagDB(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		migrator := db.Migrator()
		tables := gin.H{
			"leads":            migrator.HasTable(&models.Lead{}),
			"compliance_tasks": migrator.HasTable(&models.ComplianceTask{}),
			"tours":            migrator.HasTable(&models.Tour{}),
		}

		result := gin.H{"ok": true, "tables": tables}

		var leadCount, taskCount, tourCount int64
		if err := db.Model(&models.Lead{}).Count(&leadCount).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
			return
		}
		db.Model(&models.ComplianceTask{}).Count(&taskCount)
		db.Model(&models.Tour{}).Count(&tourCount)

		result["leadsCount"] = leadCount
		result["complianceTasksCount"] = taskCount
		result["toursCount"] = tourCount
		c.JSON(http.StatusOK, result)
	}
}
