package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete stale postings you never applied to",
	Long: `Delete stored postings older than the retention horizon that were never
marked applied. Applied postings are never deleted.`,
	Example: `  jobsift sweep
  jobsift sweep --days 30 --rejected-days 180`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		days := a.Config.RetentionDays
		if cmd.Flags().Changed("days") {
			days, _ = cmd.Flags().GetInt("days")
		}
		rejectedDays := a.Config.RejectedRetentionDays
		if cmd.Flags().Changed("rejected-days") {
			rejectedDays, _ = cmd.Flags().GetInt("rejected-days")
		}
		if days <= 0 && rejectedDays <= 0 {
			cmd.Println("Retention is disabled. Set retention_days or pass --days.")
			return nil
		}

		res, err := a.Sweeper.Run(cmd.Context(), days, rejectedDays)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		cmd.Printf("✓ Deleted %d stale %s\n", res.Postings, plural(int(res.Postings), "posting", "postings"))
		if rejectedDays > 0 {
			cmd.Printf("✓ Forgot %d filtered %s\n", res.RejectedIDs, plural(int(res.RejectedIDs), "id", "ids"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().Int("days", 0, "Retention horizon in days (overrides retention_days)")
	sweepCmd.Flags().Int("rejected-days", 0, "Forget filtered ids older than this (overrides rejected_retention_days)")
}
