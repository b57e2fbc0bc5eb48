package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "View posting statistics",
	Long:  "Display counts of stored postings per status and source, and why postings were filtered out",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		st, err := a.Store.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("fetch stats: %w", err)
		}

		cmd.Println(titleStyle.Render("Posting Statistics"))

		cmd.Printf("%s\n", labelStyle.Render("Overview"))
		cmd.Printf("  Stored Postings: %s\n", humanize.Comma(int64(st.Total)))
		cmd.Printf("  Saved: %d\n", st.Saved)
		cmd.Printf("  Applied: %d\n", st.Applied)
		cmd.Printf("  Interviews: %d\n", st.Interview)
		cmd.Printf("  Rejected: %d\n", st.Rejected)
		cmd.Printf("  Hidden: %d\n", st.Hidden)
		cmd.Printf("  With Cover Letter: %d\n", st.WithCoverLetter)

		if st.Applied > 0 {
			rate := float64(st.Interview) / float64(st.Applied) * 100
			cmd.Printf("\n%s\n", labelStyle.Render("Response Rate"))
			cmd.Printf("  Interview Rate: %.1f%%\n", rate)
		}

		if len(st.BySource) > 0 {
			cmd.Printf("\n%s\n", labelStyle.Render("By Source"))
			for _, src := range slices.Sorted(maps.Keys(st.BySource)) {
				cmd.Printf("  %s: %s\n", src, humanize.Comma(int64(st.BySource[src])))
			}
		}

		cmd.Printf("\n%s\n", labelStyle.Render("Filtered Out"))
		cmd.Printf("  Remembered IDs: %s\n", humanize.Comma(int64(st.RejectedIDs)))
		for _, reason := range slices.Sorted(maps.Keys(st.RejectedByReason)) {
			count := st.RejectedByReason[reason]
			percentage := float64(count) / float64(max(st.RejectedIDs, 1)) * 100
			cmd.Printf("  %s: %d (%.1f%%)\n", reason, count, percentage)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
