// ABOUTME: Contact MCP tool handlers
// ABOUTME: Implements add_contact, list_contacts, set_cadence, log_interaction and record_outcome tools
package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type ContactHandlers struct {
	app *app.App
}

func NewContactHandlers(a *app.App) *ContactHandlers {
	return &ContactHandlers{app: a}
}

type AddContactInput struct {
	UserID      string   `json:"user_id,omitempty" jsonschema:"Owning user (defaults to the configured user)"`
	Name        string   `json:"name" jsonschema:"Contact name (required)"`
	Phones      []string `json:"phones,omitempty" jsonschema:"Phone numbers, primary first"`
	Emails      []string `json:"emails,omitempty" jsonschema:"Email addresses, primary first"`
	Tags        []string `json:"tags,omitempty" jsonschema:"Tags such as family, close-friend, work"`
	Mutuality   *int     `json:"mutuality,omitempty" jsonschema:"Manual 0-100 rating of how mutual the relationship is"`
	CadenceDays *int     `json:"cadence_days,omitempty" jsonschema:"Desired days between touches"`
}

type ContactOutput struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Phones            []string `json:"phones,omitempty"`
	Emails            []string `json:"emails,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	Mutuality         *int     `json:"mutuality,omitempty"`
	CadenceDays       *int     `json:"cadence_days,omitempty"`
	IsFresh           bool     `json:"is_fresh"`
	FirstSeenAt       string   `json:"first_seen_at"`
	FirstEngagementAt *string  `json:"first_engagement_at,omitempty"`
}

func (h *ContactHandlers) AddContact(ctx context.Context, request *mcp.CallToolRequest, input AddContactInput) (*mcp.CallToolResult, ContactOutput, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ContactOutput{}, fmt.Errorf("name is required")
	}
	if input.Mutuality != nil && (*input.Mutuality < 0 || *input.Mutuality > 100) {
		return nil, ContactOutput{}, fmt.Errorf("mutuality must be between 0 and 100")
	}

	contact := &models.Contact{
		UserID:      userOrDefault(h.app, input.UserID),
		Name:        input.Name,
		Phones:      input.Phones,
		Emails:      input.Emails,
		Tags:        input.Tags,
		Mutuality:   input.Mutuality,
		CadenceDays: input.CadenceDays,
	}
	if err := h.app.AddContact(ctx, contact); err != nil {
		return nil, ContactOutput{}, fmt.Errorf("failed to create contact: %w", err)
	}

	return nil, contactToOutput(contact, h.app.Engine.Now()), nil
}

type ListContactsInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"Owning user (defaults to the configured user)"`
	Query  string `json:"query,omitempty" jsonschema:"Search query (matches name, email and phone)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of results (default 50)"`
}

type ListContactsOutput struct {
	Contacts []ContactOutput `json:"contacts"`
}

func (h *ContactHandlers) ListContacts(ctx context.Context, request *mcp.CallToolRequest, input ListContactsInput) (*mcp.CallToolResult, ListContactsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}

	contacts, err := h.app.Contacts.FindContacts(ctx, userOrDefault(h.app, input.UserID), input.Query, limit)
	if err != nil {
		return nil, ListContactsOutput{}, fmt.Errorf("failed to list contacts: %w", err)
	}

	now := h.app.Engine.Now()
	result := make([]ContactOutput, len(contacts))
	for i := range contacts {
		result[i] = contactToOutput(&contacts[i], now)
	}
	return nil, ListContactsOutput{Contacts: result}, nil
}

type SetCadenceInput struct {
	UserID      string `json:"user_id,omitempty" jsonschema:"Owning user (defaults to the configured user)"`
	ContactID   string `json:"contact_id" jsonschema:"Contact ID (required)"`
	CadenceDays *int   `json:"cadence_days,omitempty" jsonschema:"Days between touches; omit to clear"`
}

type SetCadenceOutput struct {
	ContactID   string `json:"contact_id"`
	CadenceDays *int   `json:"cadence_days,omitempty"`
}

func (h *ContactHandlers) SetCadence(ctx context.Context, request *mcp.CallToolRequest, input SetCadenceInput) (*mcp.CallToolResult, SetCadenceOutput, error) {
	if input.ContactID == "" {
		return nil, SetCadenceOutput{}, fmt.Errorf("contact_id is required")
	}
	if input.CadenceDays != nil && *input.CadenceDays <= 0 {
		return nil, SetCadenceOutput{}, fmt.Errorf("cadence_days must be positive")
	}

	if err := h.app.SetCadence(ctx, userOrDefault(h.app, input.UserID), input.ContactID, input.CadenceDays); err != nil {
		return nil, SetCadenceOutput{}, fmt.Errorf("failed to set cadence: %w", err)
	}
	return nil, SetCadenceOutput{ContactID: input.ContactID, CadenceDays: input.CadenceDays}, nil
}

type LogInteractionInput struct {
	UserID     string         `json:"user_id,omitempty" jsonschema:"Owning user (defaults to the configured user)"`
	ContactIDs []string       `json:"contact_ids" jsonschema:"Contacts involved (required)"`
	Type       string         `json:"type" jsonschema:"One of sms_sent, call_made, email_sent, facetime_made, slack_sent, note_added, card_dismissed, card_snoozed"`
	CardID     string         `json:"card_id,omitempty" jsonschema:"Deck card this touch came from"`
	Timestamp  string         `json:"timestamp,omitempty" jsonschema:"RFC3339 time of the interaction (defaults to now)"`
	Metadata   map[string]any `json:"metadata,omitempty" jsonschema:"Free-form details"`
}

type LogInteractionOutput struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	ContactIDs []string `json:"contact_ids"`
	Timestamp  string   `json:"timestamp"`
}

func (h *ContactHandlers) LogInteraction(ctx context.Context, request *mcp.CallToolRequest, input LogInteractionInput) (*mcp.CallToolResult, LogInteractionOutput, error) {
	if len(input.ContactIDs) == 0 {
		return nil, LogInteractionOutput{}, fmt.Errorf("contact_ids is required")
	}
	typ := models.InteractionType(input.Type)
	if !typ.Valid() {
		return nil, LogInteractionOutput{}, fmt.Errorf("invalid interaction type: %s", input.Type)
	}

	ev := &models.InteractionEvent{
		UserID:     userOrDefault(h.app, input.UserID),
		Type:       typ,
		ContactIDs: input.ContactIDs,
		CardID:     input.CardID,
		Metadata:   input.Metadata,
	}
	if input.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, input.Timestamp)
		if err != nil {
			return nil, LogInteractionOutput{}, fmt.Errorf("invalid timestamp: %w", err)
		}
		ev.Timestamp = ts
	}

	id, err := h.app.LogInteraction(ctx, ev)
	if err != nil {
		return nil, LogInteractionOutput{}, fmt.Errorf("failed to log interaction: %w", err)
	}
	return nil, LogInteractionOutput{
		ID:         id,
		Type:       string(ev.Type),
		ContactIDs: ev.ContactIDs,
		Timestamp:  ev.Timestamp.Format(time.RFC3339),
	}, nil
}

type RecordOutcomeInput struct {
	UserID    string `json:"user_id,omitempty" jsonschema:"Owning user (defaults to the configured user)"`
	ContactID string `json:"contact_id" jsonschema:"Contact ID (required)"`
	Sentiment string `json:"sentiment" jsonschema:"positive, neutral or negative"`
	Note      string `json:"note,omitempty" jsonschema:"What happened"`
}

type RecordOutcomeOutput struct {
	ID        string `json:"id"`
	ContactID string `json:"contact_id"`
	Sentiment string `json:"sentiment"`
	CreatedAt string `json:"created_at"`
}

func (h *ContactHandlers) RecordOutcome(ctx context.Context, request *mcp.CallToolRequest, input RecordOutcomeInput) (*mcp.CallToolResult, RecordOutcomeOutput, error) {
	if input.ContactID == "" {
		return nil, RecordOutcomeOutput{}, fmt.Errorf("contact_id is required")
	}
	if !models.ValidSentiment(input.Sentiment) {
		return nil, RecordOutcomeOutput{}, fmt.Errorf("invalid sentiment: %s", input.Sentiment)
	}

	note := &models.OutcomeNote{
		UserID:    userOrDefault(h.app, input.UserID),
		ContactID: input.ContactID,
		Sentiment: input.Sentiment,
		Note:      input.Note,
	}
	if err := h.app.RecordOutcome(ctx, note); err != nil {
		return nil, RecordOutcomeOutput{}, fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil, RecordOutcomeOutput{
		ID:        note.ID,
		ContactID: note.ContactID,
		Sentiment: note.Sentiment,
		CreatedAt: note.CreatedAt.Format(time.RFC3339),
	}, nil
}

func contactToOutput(contact *models.Contact, now time.Time) ContactOutput {
	output := ContactOutput{
		ID:          contact.ID,
		Name:        contact.Name,
		Phones:      contact.Phones,
		Emails:      contact.Emails,
		Tags:        contact.Tags,
		Mutuality:   contact.Mutuality,
		CadenceDays: contact.CadenceDays,
		IsFresh:     contact.IsFresh(now),
		FirstSeenAt: contact.FirstSeenAt.Format(time.RFC3339),
	}

	if contact.FirstEngagementAt != nil {
		fe := contact.FirstEngagementAt.Format(time.RFC3339)
		output.FirstEngagementAt = &fe
	}

	return output
}

func userOrDefault(a *app.App, userID string) string {
	if userID != "" {
		return userID
	}
	return a.Config.User.ID
}
