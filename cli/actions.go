// ABOUTME: Action and score CLI commands
// ABOUTME: Emits scored actions and prints score breakdowns
package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/events"
	"github.com/harperreed/kith/models"
)

var (
	emitChannel       string
	emitCustomization string
	emitDraft         string
	emitSent          string
	emitMulti         bool
)

var emitCmd = &cobra.Command{
	Use:   "emit <action_id> <contact>",
	Short: "Record an action toward a contact (sms_sent, reply_received, gift_sent, ...)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			contact, err := resolveContact(ctx, a, args[1])
			if err != nil {
				return err
			}

			result, err := a.Pipeline.Emit(ctx, events.EmitParams{
				UserID:         a.Config.User.ID,
				ContactID:      contact.ID,
				ActionID:       models.ActionID(args[0]),
				Channel:        models.Channel(emitChannel),
				Customization:  models.CustomizationLevel(emitCustomization),
				OriginalDraft:  emitDraft,
				SentText:       emitSent,
				IsMultiContact: emitMulti,
			})
			if err != nil {
				return fmt.Errorf("failed to emit action: %w", err)
			}
			if !result.Emitted {
				fmt.Printf("✗ %s not recorded: %s\n", args[0], result.Reason)
				return nil
			}

			ev := result.Event
			fmt.Printf("✓ %s for %s: %+.1f points (base %.0f × %.2f + %.0f fresh bonus)\n",
				ev.ActionID, contact.Name, ev.FinalPoints, ev.BasePoints, ev.TotalMultiplier, ev.FreshnessBonus)
			return nil
		})
	},
}

var scoreAll bool

var scoreCmd = &cobra.Command{
	Use:   "score [contact]",
	Short: "Show a contact's relationship score, or rank every contact with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !scoreAll && len(args) == 0 {
			return fmt.Errorf("give a contact or --all")
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if scoreAll {
				return printAllScores(ctx, a)
			}

			contact, err := resolveContact(ctx, a, args[0])
			if err != nil {
				return err
			}
			rec, err := a.Engine.ComputeScore(ctx, contact)
			if err != nil {
				return fmt.Errorf("failed to compute score: %w", err)
			}
			printScore(contact, rec)
			return nil
		})
	},
}

func printScore(contact *models.Contact, rec models.ScoreRecord) {
	fmt.Printf("%s: %.0f/100 (%s model)\n", contact.Name, rec.Total, rec.Model)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if s := rec.RHS; s != nil {
		_, _ = fmt.Fprintf(w, "  recency\t%.1f\n", s.Recency)
		_, _ = fmt.Fprintf(w, "  freshness\t%.1f\n", s.Freshness)
		_, _ = fmt.Fprintf(w, "  fatigue\t%.1f\n", s.Fatigue)
		_, _ = fmt.Fprintf(w, "  cadence adherence\t%.1f\n", s.CadenceAdherence)
		_, _ = fmt.Fprintf(w, "  cadence consistency\t%.1f\n", s.CadenceConsistency)
		_, _ = fmt.Fprintf(w, "  cadence trend\t%.1f\n", s.CadenceTrend)
		_, _ = fmt.Fprintf(w, "  quality\t%.1f\n", s.Quality)
		_, _ = fmt.Fprintf(w, "  depth\t%.1f\n", s.Depth)
		if s.DaysSinceTouch != nil {
			_, _ = fmt.Fprintf(w, "  days since touch\t%d\n", *s.DaysSinceTouch)
		}
		if s.IsOverdueByCadence {
			_, _ = fmt.Fprintf(w, "  overdue by\t%d days\n", s.DaysOverdue)
		}
	}
	if s := rec.Contact; s != nil {
		_, _ = fmt.Fprintf(w, "  raw\t%.1f\n", s.RawScore)
		_, _ = fmt.Fprintf(w, "  decay\t×%.2f\n", s.DecayMultiplier)
		_, _ = fmt.Fprintf(w, "  fatigue penalty\t-%.1f\n", s.FatiguePenalty)
		_, _ = fmt.Fprintf(w, "  events\t%d\n", s.EventCount)
		if s.DaysSinceLast != nil {
			_, _ = fmt.Fprintf(w, "  days since last action\t%d\n", *s.DaysSinceLast)
		}
	}
	_ = w.Flush()
}

func printAllScores(ctx context.Context, a *app.App) error {
	contacts, err := a.Contacts.ListContacts(ctx, a.Config.User.ID)
	if err != nil {
		return fmt.Errorf("failed to list contacts: %w", err)
	}
	if err := a.Engine.PersistScores(ctx, a.Config.User.ID, contacts); err != nil {
		return err
	}
	recs, err := a.Snapshots.ListForUser(ctx, a.Engine.Model(), a.Config.User.ID)
	if err != nil {
		return fmt.Errorf("failed to load scores: %w", err)
	}

	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		names[c.ID] = c.Name
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Total > recs[j].Total })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tNAME")
	_, _ = fmt.Fprintln(w, "-----\t----")
	for _, rec := range recs {
		name, ok := names[rec.ContactID]
		if !ok {
			continue
		}
		_, _ = fmt.Fprintf(w, "%.0f\t%s\n", rec.Total, name)
	}
	return w.Flush()
}

func init() {
	emitCmd.Flags().StringVar(&emitChannel, "channel", "", "sms, call, video, email or chat")
	emitCmd.Flags().StringVar(&emitCustomization, "customization", "", "untouched, light, heavy or custom")
	emitCmd.Flags().StringVar(&emitDraft, "draft", "", "suggested draft text")
	emitCmd.Flags().StringVar(&emitSent, "sent", "", "text actually sent")
	emitCmd.Flags().BoolVar(&emitMulti, "multi", false, "action reached several contacts at once")

	scoreCmd.Flags().BoolVar(&scoreAll, "all", false, "score and rank every contact")
}
