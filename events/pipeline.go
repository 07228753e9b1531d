// ABOUTME: Action event pipeline turning user actions into scored, persisted events
// ABOUTME: Applies premium gating, customization classification and multipliers, then queues recalculation
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harperreed/kith/metrics"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/scoring"
)

// ReasonPremiumRequired is returned when a free user emits a premium-only action.
const ReasonPremiumRequired = "premium_required"

var (
	ErrUnknownAction = errors.New("unknown action id")
	ErrSystemAction  = errors.New("system actions cannot be emitted directly")
	ErrInvalidParams = errors.New("invalid emit params")
)

// ActionWriter appends action events.
type ActionWriter interface {
	Append(ctx context.Context, ev *models.ActionEvent) error
}

// ContactReader loads a contact and records its first engagement.
type ContactReader interface {
	GetContact(ctx context.Context, userID, contactID string) (*models.Contact, error)
	MarkEngaged(ctx context.Context, userID, contactID string, at time.Time) error
}

// Entitlements answers whether a user may use premium-only actions.
type Entitlements interface {
	IsPremium(ctx context.Context, userID string) bool
}

// Enqueuer schedules background recalculation.
type Enqueuer interface {
	Enqueue(userID, contactID string) (string, error)
}

// Invalidator drops cached scores so reads after Emit see the new event.
type Invalidator interface {
	Invalidate(userID, contactID string)
}

// EmitParams describes one user action.
type EmitParams struct {
	UserID         string                    `json:"user_id"`
	ContactID      string                    `json:"contact_id"`
	ActionID       models.ActionID           `json:"action_id"`
	Channel        models.Channel            `json:"channel,omitempty"`
	Customization  models.CustomizationLevel `json:"customization,omitempty"`
	OriginalDraft  string                    `json:"original_draft,omitempty"`
	SentText       string                    `json:"sent_text,omitempty"`
	IsMultiContact bool                      `json:"is_multi_contact,omitempty"`
	Metadata       map[string]any            `json:"metadata,omitempty"`
	Timestamp      time.Time                 `json:"timestamp,omitempty"` // zero means now
}

// EmitResult reports what happened. Emitted is false for gated actions.
type EmitResult struct {
	Event   *models.ActionEvent `json:"event,omitempty"`
	Emitted bool                `json:"emitted"`
	Reason  string              `json:"reason,omitempty"`
	JobID   string              `json:"job_id,omitempty"`
}

// Pipeline scores and records action events.
type Pipeline struct {
	actions      ActionWriter
	contacts     ContactReader
	entitlements Entitlements
	queue        Enqueuer
	invalidator  Invalidator
	logger       *zap.Logger
	now          func() time.Time
}

// NewPipeline creates a pipeline. A nil queue disables background recalculation.
func NewPipeline(actions ActionWriter, contacts ContactReader, entitlements Entitlements, queue Enqueuer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		actions:      actions,
		contacts:     contacts,
		entitlements: entitlements,
		queue:        queue,
		logger:       logger,
		now:          time.Now,
	}
}

// SetInvalidator sets the score cache cleared on every emit.
func (p *Pipeline) SetInvalidator(inv Invalidator) {
	p.invalidator = inv
}

// SetClock overrides the pipeline clock.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// Emit scores and persists an action, clears the contact's cached scores,
// then schedules recalculation without waiting on it. Only meaningful actions
// earn the freshness bonus.
func (p *Pipeline) Emit(ctx context.Context, params EmitParams) (EmitResult, error) {
	if params.UserID == "" || params.ContactID == "" {
		return EmitResult{}, fmt.Errorf("%w: user and contact are required", ErrInvalidParams)
	}
	def, ok := models.LookupAction(params.ActionID)
	if !ok {
		return EmitResult{}, fmt.Errorf("%w: %q", ErrUnknownAction, params.ActionID)
	}
	if def.System {
		return EmitResult{}, fmt.Errorf("%w: %s", ErrSystemAction, def.ID)
	}
	if !params.Channel.Valid() {
		return EmitResult{}, fmt.Errorf("%w: unknown channel %q", ErrInvalidParams, params.Channel)
	}
	if !params.Customization.Valid() {
		return EmitResult{}, fmt.Errorf("%w: unknown customization %q", ErrInvalidParams, params.Customization)
	}

	if def.Category.IsPremium() && !p.isPremium(ctx, params.UserID) {
		metrics.ActionsGated.Inc()
		p.logger.Debug("premium action gated",
			zap.String("user_id", params.UserID),
			zap.String("action_id", string(def.ID)),
		)
		return EmitResult{Emitted: false, Reason: ReasonPremiumRequired}, nil
	}

	contact, err := p.contacts.GetContact(ctx, params.UserID, params.ContactID)
	if err != nil {
		return EmitResult{}, fmt.Errorf("failed to load contact: %w", err)
	}

	now := p.now()
	ts := params.Timestamp
	if ts.IsZero() {
		ts = now
	}

	customization := resolveCustomization(params)
	m := scoring.ComputeMultipliers(scoring.MultiplierInput{
		Channel:            params.Channel,
		Customization:      customization,
		IsMultiContact:     params.IsMultiContact,
		IsFresh:            def.Meaningful && contact.IsFresh(now),
		DaysSinceFirstSeen: contact.DaysSinceFirstSeen(now),
	})

	ev := &models.ActionEvent{
		UserID:          params.UserID,
		ContactID:       params.ContactID,
		ActionID:        def.ID,
		Category:        def.Category,
		BasePoints:      def.BasePoints,
		TotalMultiplier: m.Total,
		FreshnessBonus:  m.FreshnessBonus,
		FinalPoints:     m.FinalPoints(def.BasePoints),
		Channel:         params.Channel,
		Customization:   customization,
		IsMultiContact:  params.IsMultiContact,
		Metadata:        params.Metadata,
		Timestamp:       ts,
	}
	if applied := m.Applied(); len(applied) > 0 {
		ev.Multipliers = applied
	}

	if err := p.actions.Append(ctx, ev); err != nil {
		return EmitResult{}, fmt.Errorf("failed to append action event: %w", err)
	}
	metrics.ActionsEmitted.WithLabelValues(string(def.Category)).Inc()

	if def.Meaningful {
		if err := p.contacts.MarkEngaged(ctx, params.UserID, params.ContactID, ts); err != nil {
			p.logger.Warn("failed to mark contact engaged",
				zap.String("contact_id", params.ContactID),
				zap.Error(err),
			)
		}
	}

	if p.invalidator != nil {
		p.invalidator.Invalidate(params.UserID, params.ContactID)
	}

	result := EmitResult{Event: ev, Emitted: true}
	result.JobID = p.schedule(params.UserID, params.ContactID)
	return result, nil
}

func (p *Pipeline) isPremium(ctx context.Context, userID string) bool {
	if p.entitlements == nil {
		return false
	}
	return p.entitlements.IsPremium(ctx, userID)
}

// schedule enqueues recalculation; failures are logged only.
func (p *Pipeline) schedule(userID, contactID string) string {
	if p.queue == nil {
		return ""
	}
	jobID, err := p.queue.Enqueue(userID, contactID)
	if err != nil {
		p.logger.Warn("recalculation not scheduled",
			zap.String("user_id", userID),
			zap.String("contact_id", contactID),
			zap.Error(err),
		)
		return ""
	}
	return jobID
}

// resolveCustomization prefers an explicit level, then classifies the sent text
// against the draft. Sent text without a draft is custom.
func resolveCustomization(params EmitParams) models.CustomizationLevel {
	if params.Customization != "" {
		return params.Customization
	}
	if strings.TrimSpace(params.SentText) == "" {
		return ""
	}
	if strings.TrimSpace(params.OriginalDraft) == "" {
		return models.CustomizationCustom
	}
	return scoring.ClassifyEdit(params.OriginalDraft, params.SentText).Level
}
