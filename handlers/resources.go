// ABOUTME: MCP resource handlers for exposing relationship data
// ABOUTME: Provides read-only access to contacts, today's deck and deck history via URI
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harperreed/kith/app"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ResourceURIs lists the fixed resources the server advertises.
var ResourceURIs = []string{"kith://contacts", "kith://deck/today", "kith://history"}

type ResourceHandlers struct {
	app *app.App
}

func NewResourceHandlers(a *app.App) *ResourceHandlers {
	return &ResourceHandlers{app: a}
}

// ReadResource handles resource read requests
func (h *ResourceHandlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, "kith://") {
		return nil, fmt.Errorf("invalid URI scheme: expected kith://")
	}

	path := strings.TrimPrefix(uri, "kith://")
	parts := strings.Split(path, "/")
	userID := h.app.Config.User.ID

	switch parts[0] {
	case "contacts":
		if len(parts) == 1 {
			contacts, err := h.app.Contacts.ListContacts(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch contacts: %w", err)
			}
			return jsonResource(uri, contacts)
		}
		contact, err := h.app.Contacts.GetContact(ctx, userID, parts[1])
		if err != nil {
			return nil, fmt.Errorf("failed to fetch contact: %w", err)
		}
		return jsonResource(uri, contact)

	case "deck":
		cards, err := h.app.Builder.TodayDeck(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch deck: %w", err)
		}
		return jsonResource(uri, deckToOutput(h.app.Builder.Today(), cards))

	case "history":
		return jsonResource(uri, h.app.Archiver.History(ctx, userID, 0))

	default:
		return nil, fmt.Errorf("unknown resource: %s", parts[0])
	}
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
