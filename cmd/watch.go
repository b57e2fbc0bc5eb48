package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow round progress published by a running server",
	Long:  "Follow round progress published to redis by 'jobsift serve' or another scrape. Requires redis_url.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		events := a.Events()
		if events == nil {
			return errors.New("watch needs redis_url to be configured")
		}

		ctx := cmd.Context()
		printer := newProgressPrinter(cmd.OutOrStdout())
		updates := events.Subscribe(ctx)

		last, err := events.Last(ctx)
		if err != nil {
			return err
		}
		if last != nil {
			printer.Publish(ctx, *last)
		} else {
			cmd.Println(mutedStyle.Render("No round has reported progress yet. Waiting..."))
		}
		for p := range updates {
			printer.Publish(ctx, p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
