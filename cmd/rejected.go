package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/khrees2412/jobsift/pkg/models"
	"github.com/spf13/cobra"
)

var rejectedCmd = &cobra.Command{
	Use:   "rejected",
	Short: "List postings the filters turned away",
	Example: `  jobsift rejected
  jobsift rejected --reason titleExclude --limit 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")
		limit, _ := cmd.Flags().GetInt("limit")

		rejected, err := a.Store.ListRejected(cmd.Context(), models.RejectReason(reason), limit)
		if err != nil {
			return fmt.Errorf("fetch rejected postings: %w", err)
		}
		if len(rejected) == 0 {
			cmd.Println("Nothing has been filtered out yet.")
			return nil
		}

		cmd.Println(titleStyle.Render("Filtered Out"))
		for _, r := range rejected {
			cmd.Printf("%s %s %s\n", labelStyle.Render(string(r.Reason)), r.Title, mutedStyle.Render("at "+r.Company))
			cmd.Printf("   %s · %s\n", mutedStyle.Render(r.ExternalID), humanize.Time(r.RejectedAt))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rejectedCmd)

	rejectedCmd.Flags().String("reason", "", "Only this reason (titleInclude, titleExclude, companyExclude, descriptionExclude, language, dateWindow, workMode)")
	rejectedCmd.Flags().Int("limit", 50, "Maximum entries to show (0 for all)")
}
