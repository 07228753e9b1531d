// ABOUTME: MCP server subcommand
// ABOUTME: Starts the MCP server on stdio for assistant integration
package cli

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/handlers"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			a.Logger.Info("starting MCP server", zap.String("user_id", a.Config.User.ID))
			return NewMCPServer(a).Run(ctx, &mcp.StdioTransport{})
		})
	},
}

// NewMCPServer registers every kith tool, prompt and resource.
func NewMCPServer(a *app.App) *mcp.Server {
	contactHandlers := handlers.NewContactHandlers(a)
	actionHandlers := handlers.NewActionHandlers(a)
	deckHandlers := handlers.NewDeckHandlers(a)
	promptHandlers := handlers.NewPromptHandlers(a)
	resourceHandlers := handlers.NewResourceHandlers(a)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "kith",
		Version: Version,
	}, nil)

	// Contacts
	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_contact",
		Description: "Add a new contact",
	}, contactHandlers.AddContact)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_contacts",
		Description: "List or search contacts by name, email or phone",
	}, contactHandlers.ListContacts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "set_cadence",
		Description: "Set or clear how many days you want between touches with a contact",
	}, contactHandlers.SetCadence)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "log_interaction",
		Description: "Log a touch (text, call, email, video, chat or note) with one or more contacts",
	}, contactHandlers.LogInteraction)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "record_outcome",
		Description: "Record how a conversation with a contact went",
	}, contactHandlers.RecordOutcome)

	// Actions and scores
	mcp.AddTool(server, &mcp.Tool{
		Name:        "emit_action",
		Description: "Record a scored action toward a contact and schedule score recalculation",
	}, actionHandlers.EmitAction)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "compute_score",
		Description: "Compute a contact's relationship score with its breakdown",
	}, actionHandlers.ComputeScore)

	// Deck
	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_deck",
		Description: "Build or extend today's deck of people to reach out to",
	}, deckHandlers.BuildDeck)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "daily_quota_status",
		Description: "Report whether today's deck has already been built",
	}, deckHandlers.DailyQuotaStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_card_status",
		Description: "Move a deck card to active, completed, skipped or snoozed",
	}, deckHandlers.UpdateCardStatus)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "archive_old_decks",
		Description: "Archive every deck from before today into history",
	}, deckHandlers.ArchiveOldDecks)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_deck_history",
		Description: "List archived deck days, newest first, or a date range",
	}, deckHandlers.GetDeckHistory)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_streak",
		Description: "Get the current streak with completion and fresh conversion rates",
	}, deckHandlers.GetStreak)

	// Prompts
	server.AddPrompt(&mcp.Prompt{
		Name:        "contact-summary",
		Description: "Summarize a relationship and suggest a next step",
		Arguments: []*mcp.PromptArgument{
			{Name: "contact_id", Description: "Contact ID", Required: true},
		},
	}, promptHandlers.GetPrompt)

	server.AddPrompt(&mcp.Prompt{
		Name:        "daily-deck",
		Description: "Coach me through today's deck",
	}, promptHandlers.GetPrompt)

	// Resources
	for _, uri := range handlers.ResourceURIs {
		server.AddResource(&mcp.Resource{
			URI:      uri,
			Name:     uri,
			MIMEType: "application/json",
		}, resourceHandlers.ReadResource)
	}

	return server
}
