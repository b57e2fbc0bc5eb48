package cmd

import (
	"github.com/khrees2412/jobsift/internal/api"
	"github.com/khrees2412/jobsift/internal/scheduler"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run scheduled rounds",
	Long: `Serve the HTTP API for round control and triage. Unless --no-schedule is
given, a round and a retention sweep also run on the configured cron schedule,
starting immediately.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		addr := a.Config.Listen
		if cmd.Flags().Changed("listen") {
			addr, _ = cmd.Flags().GetString("listen")
		}

		coordinator := a.Coordinator()
		if noSchedule, _ := cmd.Flags().GetBool("no-schedule"); !noSchedule {
			sched := scheduler.New(a.Config.Schedule, coordinator, a.Sweeper, a.Plan, a.Logger)
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()
		}

		srv := api.NewServer(ctx, coordinator, a.Store, a.Sweeper, a.Plan, a.Logger)
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "", "Listen address (overrides listen)")
	serveCmd.Flags().Bool("no-schedule", false, "Only serve the API, never start rounds on a timer")
}
