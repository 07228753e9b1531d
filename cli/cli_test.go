// ABOUTME: Tests for CLI plumbing and the MCP server wiring
// ABOUTME: Drives the registered tools over in-memory MCP transports
package cli

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/config"
	"github.com/harperreed/kith/models"
)

func setupTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.Default()
	cfg.User.ID = "u1"
	cfg.Deck.Timezone = "UTC"

	a, err := app.OpenInMemory(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestResolveContact(t *testing.T) {
	a := setupTestApp(t)
	ctx := context.Background()
	for _, name := range []string{"Ada Lovelace", "Ada Byron", "Grace Hopper"} {
		require.NoError(t, a.AddContact(ctx, &models.Contact{UserID: "u1", Name: name}))
	}

	c, err := resolveContact(ctx, a, "grace")
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", c.Name)

	byID, err := resolveContact(ctx, a, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, byID.ID)

	_, err = resolveContact(ctx, a, "ada")
	assert.ErrorContains(t, err, "matches 2 contacts")

	_, err = resolveContact(ctx, a, "nobody")
	assert.ErrorContains(t, err, "no contact matches")
}

func TestMCPServerTools(t *testing.T) {
	a := setupTestApp(t)
	ctx := context.Background()

	server := NewMCPServer(a)
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer func() { _ = serverSession.Close() }()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make(map[string]bool, len(tools.Tools))
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{
		"add_contact", "list_contacts", "set_cadence", "log_interaction", "record_outcome",
		"emit_action", "compute_score", "build_deck", "daily_quota_status",
		"update_card_status", "archive_old_decks", "get_deck_history", "get_streak",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "add_contact",
		Arguments: map[string]any{"name": "Ada"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "build_deck",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "emit_action",
		Arguments: map[string]any{"contact_id": "missing", "action_id": "sms_sent"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
