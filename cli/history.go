// ABOUTME: Deck history CLI commands
// ABOUTME: Archives old decks and reports history, streak and completion stats
package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/models"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive every deck from before today",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			summary := a.ArchiveOldDecks(ctx, a.Config.User.ID)
			for _, d := range summary.ArchivedDates {
				fmt.Printf("✓ Archived %s\n", d)
			}
			for _, e := range summary.Errors {
				fmt.Fprintf(os.Stderr, "✗ %s: %s\n", e.Date, e.Error)
			}
			if len(summary.ArchivedDates) == 0 && len(summary.Errors) == 0 {
				fmt.Println("Nothing to archive.")
			}
			return nil
		})
	},
}

var (
	historyLimit int
	historyFrom  string
	historyTo    string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived deck days",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			userID := a.Config.User.ID

			var recs []models.DeckHistoryRecord
			if historyFrom != "" || historyTo != "" {
				from, err := time.Parse(time.DateOnly, historyFrom)
				if err != nil {
					return fmt.Errorf("invalid --from date: %w", err)
				}
				to, err := time.Parse(time.DateOnly, historyTo)
				if err != nil {
					return fmt.Errorf("invalid --to date: %w", err)
				}
				recs = a.Archiver.HistoryRange(ctx, userID, from, to)
			} else {
				recs = a.Archiver.History(ctx, userID, historyLimit)
			}

			if len(recs) == 0 {
				fmt.Println("No history yet.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "DATE\tCARDS\tDONE\tSKIP\tSNOOZE\tRATE\tFRESH\tOUTCOMES +/=/-")
			_, _ = fmt.Fprintln(w, "----\t-----\t----\t----\t------\t----\t-----\t--------------")
			for _, r := range recs {
				_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d%%\t%d/%d\t%d/%d/%d\n",
					r.Date, r.TotalCards, r.Completed, r.Skipped, r.Snoozed, r.CompletionRate,
					r.FreshEngaged, r.FreshShown,
					r.PositiveOutcomes, r.NeutralOutcomes, r.NegativeOutcomes)
			}
			return w.Flush()
		})
	},
}

var streakDays int

var streakCmd = &cobra.Command{
	Use:     "streak",
	Aliases: []string{"stats"},
	Short:   "Show your streak and completion stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			userID := a.Config.User.ID
			streak := a.Archiver.CalculateStreak(ctx, userID)
			fmt.Printf("🔥 Streak: %d day(s)\n", streak)
			fmt.Printf("Completion rate (%dd): %.0f%%\n", streakDays, a.Archiver.CompletionRate(ctx, userID, streakDays))
			fmt.Printf("Fresh conversion (%dd): %.0f%%\n", streakDays, a.Archiver.FreshConversionRate(ctx, userID, streakDays))
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 30, "maximum number of days")
	historyCmd.Flags().StringVar(&historyFrom, "from", "", "first date (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "last date (YYYY-MM-DD)")

	streakCmd.Flags().IntVar(&streakDays, "days", 30, "window for the rate stats")
}
