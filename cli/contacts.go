// ABOUTME: Contact CLI commands
// ABOUTME: Commands for adding and listing contacts, setting cadence, logging touches and outcomes
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/models"
)

var contactsCmd = &cobra.Command{
	Use:     "contacts",
	Aliases: []string{"contact"},
	Short:   "Manage contacts",
}

var (
	addEmails    []string
	addPhones    []string
	addTags      []string
	addCadence   int
	addMutuality int
)

var contactsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a contact",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			contact := &models.Contact{
				UserID: a.Config.User.ID,
				Name:   strings.Join(args, " "),
				Emails: addEmails,
				Phones: addPhones,
				Tags:   addTags,
			}
			if cmd.Flags().Changed("cadence") {
				contact.CadenceDays = &addCadence
			}
			if cmd.Flags().Changed("mutuality") {
				if addMutuality < 0 || addMutuality > 100 {
					return fmt.Errorf("mutuality must be between 0 and 100")
				}
				contact.Mutuality = &addMutuality
			}

			if err := a.AddContact(ctx, contact); err != nil {
				return fmt.Errorf("failed to create contact: %w", err)
			}

			fmt.Printf("✓ Contact created: %s (ID: %s)\n", contact.Name, contact.ID)
			if email := contact.PrimaryEmail(); email != "" {
				fmt.Printf("  Email: %s\n", email)
			}
			if phone := contact.PrimaryPhone(); phone != "" {
				fmt.Printf("  Phone: %s\n", phone)
			}
			return nil
		})
	},
}

var (
	listQuery string
	listLimit int
)

var contactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			contacts, err := a.Contacts.FindContacts(ctx, a.Config.User.ID, listQuery, listLimit)
			if err != nil {
				return fmt.Errorf("failed to list contacts: %w", err)
			}
			if len(contacts) == 0 {
				fmt.Println("No contacts found.")
				return nil
			}

			now := a.Engine.Now()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tNAME\tCADENCE\tTAGS\tSTATUS")
			_, _ = fmt.Fprintln(w, "--\t----\t-------\t----\t------")
			for _, c := range contacts {
				cadence := "-"
				if d := c.Cadence(); d > 0 {
					cadence = fmt.Sprintf("%dd", d)
				}
				status := "engaged"
				if c.IsFresh(now) {
					status = "fresh"
				} else if c.FirstEngagementAt == nil {
					status = "dormant"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					c.ID, c.Name, cadence, strings.Join(c.Tags, ","), status)
			}
			_ = w.Flush()

			fmt.Printf("\nTotal: %d contact(s)\n", len(contacts))
			return nil
		})
	},
}

var contactsCadenceCmd = &cobra.Command{
	Use:   "cadence <contact> <days|clear>",
	Short: "Set or clear how often you want to be in touch",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var days *int
		if args[1] != "clear" {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("cadence must be a positive number of days or \"clear\"")
			}
			days = &n
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			contact, err := resolveContact(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.SetCadence(ctx, a.Config.User.ID, contact.ID, days); err != nil {
				return fmt.Errorf("failed to set cadence: %w", err)
			}
			if days == nil {
				fmt.Printf("✓ Cadence cleared for %s\n", contact.Name)
			} else {
				fmt.Printf("✓ %s: every %d days\n", contact.Name, *days)
			}
			return nil
		})
	},
}

var contactsDeleteCmd = &cobra.Command{
	Use:   "delete <contact>",
	Short: "Delete a contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			contact, err := resolveContact(ctx, a, args[0])
			if err != nil {
				return err
			}
			if err := a.Contacts.DeleteContact(ctx, a.Config.User.ID, contact.ID); err != nil {
				return fmt.Errorf("failed to delete contact: %w", err)
			}
			a.Engine.Invalidate(a.Config.User.ID, contact.ID)
			if err := a.Snapshots.DeleteForContact(ctx, a.Config.User.ID, contact.ID); err != nil {
				return fmt.Errorf("failed to delete score snapshots: %w", err)
			}
			fmt.Printf("✓ Contact deleted: %s\n", contact.Name)
			return nil
		})
	},
}

var (
	logCard string
	logAt   string
)

var logCmd = &cobra.Command{
	Use:   "log <type> <contact>...",
	Short: "Log a touch (sms_sent, call_made, email_sent, facetime_made, slack_sent, note_added)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ := models.InteractionType(args[0])
		if !typ.Valid() {
			return fmt.Errorf("unknown interaction type %q", args[0])
		}
		var ts time.Time
		if logAt != "" {
			var err error
			if ts, err = time.Parse(time.RFC3339, logAt); err != nil {
				return fmt.Errorf("invalid --at time: %w", err)
			}
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			ev := &models.InteractionEvent{
				UserID:    a.Config.User.ID,
				Type:      typ,
				CardID:    logCard,
				Timestamp: ts,
			}
			var names []string
			for _, ref := range args[1:] {
				contact, err := resolveContact(ctx, a, ref)
				if err != nil {
					return err
				}
				ev.ContactIDs = append(ev.ContactIDs, contact.ID)
				names = append(names, contact.Name)
			}

			if _, err := a.LogInteraction(ctx, ev); err != nil {
				return fmt.Errorf("failed to log interaction: %w", err)
			}
			fmt.Printf("✓ Logged %s with %s\n", typ, strings.Join(names, ", "))
			return nil
		})
	},
}

var outcomeCmd = &cobra.Command{
	Use:   "outcome <contact> <positive|neutral|negative> [note...]",
	Short: "Record how a conversation went",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !models.ValidSentiment(args[1]) {
			return fmt.Errorf("sentiment must be positive, neutral or negative")
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			contact, err := resolveContact(ctx, a, args[0])
			if err != nil {
				return err
			}
			note := &models.OutcomeNote{
				UserID:    a.Config.User.ID,
				ContactID: contact.ID,
				Sentiment: args[1],
				Note:      strings.Join(args[2:], " "),
			}
			if err := a.RecordOutcome(ctx, note); err != nil {
				return fmt.Errorf("failed to record outcome: %w", err)
			}
			fmt.Printf("✓ Recorded %s outcome for %s\n", note.Sentiment, contact.Name)
			return nil
		})
	},
}

func init() {
	contactsAddCmd.Flags().StringSliceVar(&addEmails, "email", nil, "email address (repeatable, first is primary)")
	contactsAddCmd.Flags().StringSliceVar(&addPhones, "phone", nil, "phone number (repeatable, first is primary)")
	contactsAddCmd.Flags().StringSliceVar(&addTags, "tag", nil, "tag such as family, close-friend, work (repeatable)")
	contactsAddCmd.Flags().IntVar(&addCadence, "cadence", 0, "desired days between touches")
	contactsAddCmd.Flags().IntVar(&addMutuality, "mutuality", 0, "0-100 rating of how mutual the relationship is")

	contactsListCmd.Flags().StringVarP(&listQuery, "query", "q", "", "filter by name, email or phone")
	contactsListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum number of contacts")

	contactsCmd.AddCommand(contactsAddCmd, contactsListCmd, contactsCadenceCmd, contactsDeleteCmd)

	logCmd.Flags().StringVar(&logCard, "card", "", "deck card this touch came from")
	logCmd.Flags().StringVar(&logAt, "at", "", "RFC3339 time of the touch (defaults to now)")
}
