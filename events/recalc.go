// ABOUTME: Recalculation job handler run by the queue workers
// ABOUTME: Invalidates caches, records derived events and persists fresh score snapshots
package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harperreed/kith/metrics"
	"github.com/harperreed/kith/models"
)

// DerivedStore reads a contact's recent actions and records derived ones idempotently.
type DerivedStore interface {
	ListByContact(ctx context.Context, userID, contactID string, since time.Time) ([]models.ActionEvent, error)
	LastOccurrence(ctx context.Context, userID, contactID string, action models.ActionID) (*time.Time, error)
	AppendOnce(ctx context.Context, ev *models.ActionEvent) (bool, error)
}

// ContactGetter loads one contact.
type ContactGetter interface {
	GetContact(ctx context.Context, userID, contactID string) (*models.Contact, error)
}

// ScoreRecalculator is the engine surface a job needs.
type ScoreRecalculator interface {
	Invalidate(userID, contactID string)
	Recalculate(ctx context.Context, userID, contactID string) error
}

// Recalculator processes queue jobs.
type Recalculator struct {
	actions  DerivedStore
	contacts ContactGetter
	engine   ScoreRecalculator
	logger   *zap.Logger
	now      func() time.Time
}

// NewRecalculator creates the job handler.
func NewRecalculator(actions DerivedStore, contacts ContactGetter, engine ScoreRecalculator, logger *zap.Logger) *Recalculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recalculator{
		actions:  actions,
		contacts: contacts,
		engine:   engine,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock overrides the handler clock.
func (r *Recalculator) SetClock(now func() time.Time) {
	r.now = now
}

// Process is a ProcessFunc. Derived-event failures are logged and do not fail
// the job; a failed score recalculation does.
func (r *Recalculator) Process(ctx context.Context, job Job) error {
	r.engine.Invalidate(job.UserID, job.ContactID)

	if n, err := r.EmitDerived(ctx, job.UserID, job.ContactID); err != nil {
		r.logger.Warn("derived event detection failed",
			zap.String("job_id", job.ID),
			zap.String("contact_id", job.ContactID),
			zap.Error(err),
		)
	} else if n > 0 {
		r.engine.Invalidate(job.UserID, job.ContactID)
	}

	if err := r.engine.Recalculate(ctx, job.UserID, job.ContactID); err != nil {
		return fmt.Errorf("failed to recalculate scores: %w", err)
	}
	return nil
}

// EmitDerived detects and records derived events for one contact and returns
// how many were newly written.
func (r *Recalculator) EmitDerived(ctx context.Context, userID, contactID string) (int, error) {
	contact, err := r.contacts.GetContact(ctx, userID, contactID)
	if err != nil {
		return 0, fmt.Errorf("failed to load contact: %w", err)
	}

	now := r.now()
	events, err := r.actions.ListByContact(ctx, userID, contactID, now.AddDate(0, 0, -DerivedWindowDays))
	if err != nil {
		return 0, fmt.Errorf("failed to load action events: %w", err)
	}

	last := make(map[models.ActionID]time.Time, len(DerivedRules))
	for _, rule := range DerivedRules {
		t, err := r.actions.LastOccurrence(ctx, userID, contactID, rule.Action)
		if err != nil {
			return 0, fmt.Errorf("failed to look up %s: %w", rule.Action, err)
		}
		if t != nil {
			last[rule.Action] = *t
		}
	}

	candidates := DetectDerived(DerivedInput{
		Contact:     *contact,
		Events:      events,
		LastEmitted: last,
		Now:         now,
	})

	written := 0
	for _, c := range candidates {
		def, _ := models.LookupAction(c.ActionID)
		ev := &models.ActionEvent{
			UserID:          userID,
			ContactID:       contactID,
			ActionID:        def.ID,
			Category:        def.Category,
			BasePoints:      def.BasePoints,
			TotalMultiplier: 1,
			FinalPoints:     def.BasePoints,
			Metadata:        map[string]any{"reason": c.Reason},
			DedupeKey:       c.DedupeKey,
			Timestamp:       now,
		}
		inserted, err := r.actions.AppendOnce(ctx, ev)
		if err != nil {
			r.logger.Warn("failed to record derived event",
				zap.String("contact_id", contactID),
				zap.String("action_id", string(c.ActionID)),
				zap.Error(err),
			)
			continue
		}
		if inserted {
			written++
			metrics.DerivedEmitted.WithLabelValues(string(c.ActionID)).Inc()
			r.logger.Debug("derived event recorded",
				zap.String("contact_id", contactID),
				zap.String("action_id", string(c.ActionID)),
				zap.String("reason", c.Reason),
			)
		}
	}
	return written, nil
}
