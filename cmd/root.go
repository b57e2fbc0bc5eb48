package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/khrees2412/jobsift/internal/app"
	"github.com/spf13/cobra"
)

// application is closed by Execute once the command returns
var application *app.App

var rootCmd = &cobra.Command{
	Use:   "jobsift",
	Short: "Scrape, filter and triage job postings",
	Long: `jobsift pulls job postings from a search feed, drops duplicates and anything
your filters reject, and keeps the rest in a local database for triage.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		application = a
		cmd.SetContext(app.WithApp(cmd.Context(), a))
		return nil
	},
}

// Execute runs the root command until it returns or the process is signalled
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if application != nil {
		application.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

// appFrom returns the container set up by the root command
func appFrom(cmd *cobra.Command) (*app.App, error) {
	return app.FromContext(cmd.Context())
}
