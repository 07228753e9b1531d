// ABOUTME: Daily deck CLI commands
// ABOUTME: Builds, shows and works through today's outreach deck
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/tui"
)

var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Work with today's deck",
}

var deckMax int

var deckBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build or extend today's deck",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			cards, err := a.BuildDeck(ctx, a.Config.User.ID, deckMax)
			if err != nil {
				return err
			}
			printDeck(a.Builder.Today(), cards)
			return nil
		})
	},
}

var deckShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show today's deck",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			cards, err := a.Builder.TodayDeck(ctx, a.Config.User.ID)
			if err != nil {
				return err
			}
			if len(cards) == 0 {
				fmt.Println("No deck yet today. Run `kith deck build`.")
				return nil
			}
			printDeck(a.Builder.Today(), cards)
			return nil
		})
	},
}

var deckStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether today's quota is used",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			userID := a.Config.User.ID
			premium := a.IsPremium(ctx, userID)
			tier := "free"
			if premium {
				tier = "premium"
			}
			fmt.Printf("Date:      %s\n", a.Builder.Today())
			fmt.Printf("Tier:      %s (%d cards)\n", tier, a.Builder.Quota(premium))
			fmt.Printf("Exhausted: %t\n", a.Builder.IsDailyQuotaExhausted(ctx, userID))
			return nil
		})
	},
}

// cardStatusCommand builds a subcommand moving a card to status.
func cardStatusCommand(use, short, status string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <card-id|position>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				cardID, err := resolveCard(ctx, a, args[0])
				if err != nil {
					return err
				}
				card, err := a.Builder.UpdateCardStatus(ctx, a.Config.User.ID, cardID, status)
				if err != nil {
					return fmt.Errorf("failed to update card: %w", err)
				}
				fmt.Printf("✓ Card %s is now %s\n", card.ID, card.Status)
				return nil
			})
		},
	}
}

// resolveCard accepts a card id or a 1-based position in today's deck.
func resolveCard(ctx context.Context, a *app.App, ref string) (string, error) {
	pos, err := strconv.Atoi(ref)
	if err != nil {
		return ref, nil
	}
	cards, err := a.Builder.TodayDeck(ctx, a.Config.User.ID)
	if err != nil {
		return "", err
	}
	if pos < 1 || pos > len(cards) {
		return "", fmt.Errorf("no card at position %d (deck has %d)", pos, len(cards))
	}
	return cards[pos-1].ID, nil
}

var deckTUICmd = &cobra.Command{
	Use:   "tui",
	Short: "Work through today's deck interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			return tui.Run(ctx, a)
		})
	},
}

func printDeck(date string, cards []models.DeckCard) {
	fmt.Printf("Deck for %s\n\n", date)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tNAME\tCHANNEL\tSCORE\tSTATUS\tWHY")
	_, _ = fmt.Fprintln(w, "-\t----\t-------\t-----\t------\t---")
	for _, c := range cards {
		name := c.ContactID
		if c.Contact != nil {
			name = c.Contact.Name
		}
		if c.IsFresh {
			name += " ✨"
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%.0f\t%s\t%s\n",
			c.Position+1, name, c.Channel, c.Score, c.Status, c.Reason)
	}
	_ = w.Flush()
}

func init() {
	deckBuildCmd.Flags().IntVar(&deckMax, "max", 0, "deck size (defaults to your tier quota)")

	deckCmd.AddCommand(
		deckBuildCmd,
		deckShowCmd,
		deckStatusCmd,
		deckTUICmd,
		cardStatusCommand("open", "Mark a card as being worked on", models.CardStatusActive),
		cardStatusCommand("done", "Mark a card completed", models.CardStatusCompleted),
		cardStatusCommand("skip", "Skip a card", models.CardStatusSkipped),
		cardStatusCommand("snooze", "Snooze a card", models.CardStatusSnoozed),
	)
}
