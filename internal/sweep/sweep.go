// Package sweep scans for SLA breaches and overdue compliance tasks on a
// cron schedule and pushes alerts to notifiers. It never writes to the store:
// breach and overdue are derived states, computed per scan.
package sweep

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/openhouse-labs/keyturn/internal/compliance"
	"github.com/openhouse-labs/keyturn/internal/lead"
	"github.com/openhouse-labs/keyturn/internal/models"
	"github.com/openhouse-labs/keyturn/internal/notify"
)

// DefaultSchedule fires the sweep every minute.
const DefaultSchedule = "* * * * *"

// Sweeper scans the store and alerts on newly breached or overdue records.
type Sweeper struct {
	db       *gorm.DB
	notifier notify.Notifier
	schedule string
	out      io.Writer

	// seen tracks records already alerted on, so a breach fires once per
	// process lifetime.
	seen map[string]bool
}

// Opts holds parameters for creating a Sweeper.
type Opts struct {
	DB       *gorm.DB
	Notifier notify.Notifier
	Schedule string    // 5-field cron expression; defaults to DefaultSchedule
	Out      io.Writer // defaults to io.Discard
}

// New creates a Sweeper.
func New(opts Opts) (*Sweeper, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("sweep: db is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("sweep: notifier is required")
	}
	schedule := opts.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Sweeper{
		db:       opts.DB,
		notifier: opts.Notifier,
		schedule: schedule,
		out:      out,
		seen:     make(map[string]bool),
	}, nil
}

// Run schedules sweeps until ctx is cancelled, then waits for any in-flight
// sweep to finish.
func (s *Sweeper) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			log.Printf("sweep: %v", err)
		}
	}); err != nil {
		return fmt.Errorf("sweep: schedule %q: %w", s.schedule, err)
	}

	fmt.Fprintf(s.out, "Sweeper running (schedule %q)\n", s.schedule)
	c.Start()

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	fmt.Fprintf(s.out, "Sweeper stopped.\n")
	return nil
}

// RunOnce performs a single sweep and returns the number of alerts sent.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := time.Now()
	sent := 0

	breached, err := s.breachedLeads(now)
	if err != nil {
		return sent, err
	}
	for i := range breached {
		l := &breached[i]
		key := "lead:" + l.ID
		if s.seen[key] {
			continue
		}
		if err := s.notifier.Send(ctx, breachEvent(l)); err != nil {
			return sent, fmt.Errorf("sweep: notify lead %s: %w", l.ID, err)
		}
		s.seen[key] = true
		sent++
	}

	overdue, err := s.overdueTasks(now)
	if err != nil {
		return sent, err
	}
	for i := range overdue {
		t := &overdue[i]
		key := "task:" + t.ID
		if s.seen[key] {
			continue
		}
		if err := s.notifier.Send(ctx, overdueEvent(t)); err != nil {
			return sent, fmt.Errorf("sweep: notify task %s: %w", t.ID, err)
		}
		s.seen[key] = true
		sent++
	}

	return sent, nil
}

// breachedLeads returns unresponded leads whose SLA countdown has hit zero.
// The countdown is computed here, not in SQL, so the rule lives in one place.
func (s *Sweeper) breachedLeads(now time.Time) ([]models.Lead, error) {
	var candidates []models.Lead
	if err := s.db.Where("responded = ?", false).Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("sweep: scan leads: %w", err)
	}

	var breached []models.Lead
	for _, l := range candidates {
		if lead.Remaining(l.SLASeconds, l.CreatedAt, now) == 0 {
			breached = append(breached, l)
		}
	}
	return breached, nil
}

// overdueTasks returns non-completed tasks past their due date.
func (s *Sweeper) overdueTasks(now time.Time) ([]models.ComplianceTask, error) {
	var rows []models.ComplianceTask
	if err := s.db.Where("status != ? AND due_at IS NOT NULL AND due_at < ?",
		compliance.StatusCompleted, now).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sweep: scan tasks: %w", err)
	}
	return rows, nil
}

func breachEvent(l *models.Lead) notify.Event {
	ev := notify.Event{
		Title:    fmt.Sprintf("SLA breached: %s", l.Name),
		Body:     fmt.Sprintf("Lead %s has not been contacted within %ds.", l.ID, l.SLASeconds),
		Severity: notify.SeverityError,
		Fields: []notify.Field{
			{Name: "Lead", Value: l.ID},
			{Name: "Created", Value: l.CreatedAt.Format(time.RFC3339)},
		},
	}
	if l.AssignedAgentID != "" {
		ev.Fields = append(ev.Fields, notify.Field{Name: "Agent", Value: l.AssignedAgentID})
	}
	if l.Source != "" {
		ev.Fields = append(ev.Fields, notify.Field{Name: "Source", Value: l.Source})
	}
	return ev
}

func overdueEvent(t *models.ComplianceTask) notify.Event {
	ev := notify.Event{
		Title:    fmt.Sprintf("Compliance task overdue: %s", t.Client),
		Body:     fmt.Sprintf("Task %s (%s) is past due.", t.ID, t.Type),
		Severity: notify.SeverityWarning,
		Fields: []notify.Field{
			{Name: "Task", Value: t.ID},
			{Name: "Status", Value: t.Status},
		},
	}
	if t.DueAt != nil {
		ev.Fields = append(ev.Fields, notify.Field{Name: "Due", Value: t.DueAt.Format(time.RFC3339)})
	}
	if t.AgentID != "" {
		ev.Fields = append(ev.Fields, notify.Field{Name: "Agent", Value: t.AgentID})
	}
	return ev
}
