// ABOUTME: Action and scoring MCP tool handlers
// ABOUTME: Implements emit_action and compute_score tools
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/events"
	"github.com/harperreed/kith/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ActionHandlers struct {
	app *app.App
}

func NewActionHandlers(a *app.App) *ActionHandlers {
	return &ActionHandlers{app: a}
}

type EmitActionInput struct {
	UserID         string         `json:"user_id,omitempty" jsonschema:"Acting user (defaults to the configured user)"`
	ContactID      string         `json:"contact_id" jsonschema:"Contact the action concerns (required)"`
	ActionID       string         `json:"action_id" jsonschema:"Action id such as sms_sent, reply_received, card_opened (required)"`
	Channel        string         `json:"channel,omitempty" jsonschema:"sms, call, video, email or chat"`
	Customization  string         `json:"customization,omitempty" jsonschema:"untouched, light, heavy or custom; derived from the texts when omitted"`
	OriginalDraft  string         `json:"original_draft,omitempty" jsonschema:"Suggested draft text"`
	SentText       string         `json:"sent_text,omitempty" jsonschema:"Text actually sent"`
	IsMultiContact bool           `json:"is_multi_contact,omitempty" jsonschema:"True when the action reached several contacts at once"`
	Metadata       map[string]any `json:"metadata,omitempty" jsonschema:"Free-form details"`
}

type EmitActionOutput struct {
	Emitted         bool               `json:"emitted"`
	Reason          string             `json:"reason,omitempty"`
	EventID         string             `json:"event_id,omitempty"`
	Category        string             `json:"category,omitempty"`
	BasePoints      float64            `json:"base_points"`
	Multipliers     map[string]float64 `json:"multipliers,omitempty"`
	TotalMultiplier float64            `json:"total_multiplier"`
	FreshnessBonus  float64            `json:"freshness_bonus"`
	FinalPoints     float64            `json:"final_points"`
	JobID           string             `json:"job_id,omitempty"`
}

func (h *ActionHandlers) EmitAction(ctx context.Context, request *mcp.CallToolRequest, input EmitActionInput) (*mcp.CallToolResult, EmitActionOutput, error) {
	if input.ContactID == "" {
		return nil, EmitActionOutput{}, fmt.Errorf("contact_id is required")
	}
	if input.ActionID == "" {
		return nil, EmitActionOutput{}, fmt.Errorf("action_id is required")
	}

	result, err := h.app.Pipeline.Emit(ctx, events.EmitParams{
		UserID:         userOrDefault(h.app, input.UserID),
		ContactID:      input.ContactID,
		ActionID:       models.ActionID(input.ActionID),
		Channel:        models.Channel(input.Channel),
		Customization:  models.CustomizationLevel(input.Customization),
		OriginalDraft:  input.OriginalDraft,
		SentText:       input.SentText,
		IsMultiContact: input.IsMultiContact,
		Metadata:       input.Metadata,
	})
	if err != nil {
		return nil, EmitActionOutput{}, fmt.Errorf("failed to emit action: %w", err)
	}

	return nil, emitResultToOutput(result), nil
}

type ComputeScoreInput struct {
	UserID    string `json:"user_id,omitempty" jsonschema:"Owning user (defaults to the configured user)"`
	ContactID string `json:"contact_id" jsonschema:"Contact ID (required)"`
}

type ComputeScoreOutput struct {
	Model      string             `json:"model"`
	ContactID  string             `json:"contact_id"`
	Total      float64            `json:"total"`
	Components map[string]float64 `json:"components"`
	DaysSince  *int               `json:"days_since_touch,omitempty"`
	Overdue    bool               `json:"overdue,omitempty"`
	ComputedAt string             `json:"computed_at"`
}

func (h *ActionHandlers) ComputeScore(ctx context.Context, request *mcp.CallToolRequest, input ComputeScoreInput) (*mcp.CallToolResult, ComputeScoreOutput, error) {
	if input.ContactID == "" {
		return nil, ComputeScoreOutput{}, fmt.Errorf("contact_id is required")
	}

	rec, err := h.app.Score(ctx, userOrDefault(h.app, input.UserID), input.ContactID)
	if err != nil {
		return nil, ComputeScoreOutput{}, fmt.Errorf("failed to compute score: %w", err)
	}

	output := ComputeScoreOutput{
		Model:      rec.Model,
		ContactID:  rec.ContactID,
		Total:      rec.Total,
		Components: map[string]float64{},
		ComputedAt: h.app.Engine.Now().Format(time.RFC3339),
	}
	if s := rec.RHS; s != nil {
		output.Components["recency"] = s.Recency
		output.Components["freshness"] = s.Freshness
		output.Components["fatigue"] = s.Fatigue
		output.Components["cadence_adherence"] = s.CadenceAdherence
		output.Components["cadence_consistency"] = s.CadenceConsistency
		output.Components["cadence_trend"] = s.CadenceTrend
		output.Components["quality"] = s.Quality
		output.Components["depth"] = s.Depth
		output.DaysSince = s.DaysSinceTouch
		output.Overdue = s.IsOverdueByCadence
	}
	if s := rec.Contact; s != nil {
		output.Components["raw"] = s.RawScore
		output.Components["peak"] = s.PeakScore
		output.Components["decay_multiplier"] = s.DecayMultiplier
		output.Components["fatigue_penalty"] = s.FatiguePenalty
		output.DaysSince = s.DaysSinceLast
	}
	return nil, output, nil
}

func emitResultToOutput(result events.EmitResult) EmitActionOutput {
	output := EmitActionOutput{
		Emitted: result.Emitted,
		Reason:  result.Reason,
		JobID:   result.JobID,
	}
	if ev := result.Event; ev != nil {
		output.EventID = ev.ID
		output.Category = string(ev.Category)
		output.BasePoints = ev.BasePoints
		output.Multipliers = ev.Multipliers
		output.TotalMultiplier = ev.TotalMultiplier
		output.FreshnessBonus = ev.FreshnessBonus
		output.FinalPoints = ev.FinalPoints
	}
	return output
}
