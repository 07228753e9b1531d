// ABOUTME: MCP prompt handlers for reusable relationship workflow templates
// ABOUTME: Provides contact-summary and daily-deck prompts built from live data
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/db"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type PromptHandlers struct {
	app *app.App
}

func NewPromptHandlers(a *app.App) *PromptHandlers {
	return &PromptHandlers{app: a}
}

// GetPrompt generates the prompt message based on the template
func (h *PromptHandlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	arguments := request.Params.Arguments
	switch name {
	case "contact-summary":
		return h.getContactSummaryPrompt(ctx, arguments)
	case "daily-deck":
		return h.getDailyDeckPrompt(ctx, arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", name)
	}
}

func (h *PromptHandlers) getContactSummaryPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	contactID, ok := args["contact_id"]
	if !ok || contactID == "" {
		return nil, fmt.Errorf("contact_id is required")
	}
	userID := userOrDefault(h.app, args["user_id"])

	contact, err := h.app.Contacts.GetContact(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contact: %w", err)
	}

	var promptText strings.Builder
	promptText.WriteString("Please summarize my relationship with this contact and suggest a next step:\n\n")
	fmt.Fprintf(&promptText, "Name: %s\n", contact.Name)
	if email := contact.PrimaryEmail(); email != "" {
		fmt.Fprintf(&promptText, "Email: %s\n", email)
	}
	if phone := contact.PrimaryPhone(); phone != "" {
		fmt.Fprintf(&promptText, "Phone: %s\n", phone)
	}
	if len(contact.Tags) > 0 {
		fmt.Fprintf(&promptText, "Tags: %s\n", strings.Join(contact.Tags, ", "))
	}
	if c := contact.Cadence(); c > 0 {
		fmt.Fprintf(&promptText, "Desired cadence: every %d days\n", c)
	}

	if rec, err := h.app.Engine.ComputeScore(ctx, contact); err == nil {
		fmt.Fprintf(&promptText, "\nHealth score (%s model): %.0f/100\n", rec.Model, rec.Total)
		if rec.RHS != nil && rec.RHS.DaysSinceTouch != nil {
			fmt.Fprintf(&promptText, "Days since last touch: %d\n", *rec.RHS.DaysSinceTouch)
		}
	}

	interactions, err := h.app.Interactions.QueryByContact(ctx, userID, contactID, db.InteractionQuery{Limit: 10})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch interactions: %w", err)
	}
	if len(interactions) > 0 {
		promptText.WriteString("\nRecent interactions:\n")
		for _, ev := range interactions {
			fmt.Fprintf(&promptText, "- %s: %s\n", ev.Timestamp.Format("2006-01-02"), ev.Type)
		}
	}

	notes, err := h.app.Outcomes.ListByContact(ctx, userID, contactID, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch outcomes: %w", err)
	}
	if len(notes) > 0 {
		promptText.WriteString("\nRecent outcomes:\n")
		for _, n := range notes {
			fmt.Fprintf(&promptText, "- %s (%s) %s\n", n.CreatedAt.Format("2006-01-02"), n.Sentiment, n.Note)
		}
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Summary for contact: %s", contact.Name),
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: promptText.String(),
				},
			},
		},
	}, nil
}

func (h *PromptHandlers) getDailyDeckPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	userID := userOrDefault(h.app, args["user_id"])

	cards, err := h.app.Builder.TodayDeck(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch today's deck: %w", err)
	}

	var promptText strings.Builder
	fmt.Fprintf(&promptText, "Help me work through today's outreach deck (%s).\n", h.app.Builder.Today())
	fmt.Fprintf(&promptText, "Current streak: %d days\n\n", h.app.Archiver.CalculateStreak(ctx, userID))

	if len(cards) == 0 {
		promptText.WriteString("No deck has been built yet today. Suggest building one with build_deck.\n")
	}
	for _, c := range cards {
		name := c.ContactID
		if c.Contact != nil {
			name = c.Contact.Name
		}
		fresh := ""
		if c.IsFresh {
			fresh = " [new]"
		}
		fmt.Fprintf(&promptText, "%d. %s%s via %s (%s) - %s\n", c.Position+1, name, fresh, c.Channel, c.Status, c.Reason)
	}
	promptText.WriteString("\nFor each pending card, draft a short, personal opener that fits the suggested channel.\n")

	return &mcp.GetPromptResult{
		Description: "Daily deck coaching",
		Messages: []*mcp.PromptMessage{
			{
				Role: "user",
				Content: &mcp.TextContent{
					Text: promptText.String(),
				},
			},
		},
	}, nil
}
