// ABOUTME: Root cobra command and shared CLI plumbing
// ABOUTME: Loads config, builds the logger and opens the app for each subcommand
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/config"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/logging"
	"github.com/harperreed/kith/models"
)

var (
	configPath string
	userFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "kith",
	Short: "Keep in touch with the people who matter",
	Long: "kith scores your relationships from the actions you take, builds a short daily deck " +
		"of people worth reaching out to, and keeps a history of how each day went.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to config file")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "act as this user (defaults to user.id from config)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(contactsCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(outcomeCmd)
	rootCmd.AddCommand(emitCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(deckCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(streakCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads the config file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if userFlag != "" {
		cfg.User.ID = userFlag
	}
	return cfg, nil
}

// openApp loads config and opens the stores. Callers must Close the app.
func openApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	a, err := app.Open(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// withApp opens the app, starts its workers, runs fn and closes the app.
// Closing drains any recalculation fn scheduled.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a.Start(ctx)

	runErr := fn(ctx, a)
	if err := a.Close(); err != nil {
		a.Logger.Warn("failed to close stores", zap.Error(err))
	}
	return runErr
}

// resolveContact accepts a contact id or an unambiguous name fragment.
func resolveContact(ctx context.Context, a *app.App, ref string) (*models.Contact, error) {
	userID := a.Config.User.ID
	c, err := a.Contacts.GetContact(ctx, userID, ref)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, db.ErrContactNotFound) {
		return nil, err
	}

	matches, err := a.Contacts.FindContacts(ctx, userID, ref, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to search contacts: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no contact matches %q", ref)
	case 1:
		return &matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return nil, fmt.Errorf("%q matches %d contacts: %v", ref, len(matches), names)
	}
}
