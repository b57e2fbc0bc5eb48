package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export postings as CSV",
	Example: `  jobsift export > postings.csv
  jobsift export --rejected --output rejected.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		rejected, _ := cmd.Flags().GetBool("rejected")
		output, _ := cmd.Flags().GetString("output")

		var w io.Writer = cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create %s: %w", output, err)
			}
			defer f.Close()
			w = f
		}

		var n int
		if rejected {
			n, err = a.Store.ExportRejectedCSV(cmd.Context(), w)
		} else {
			n, err = a.Store.ExportPostingsCSV(cmd.Context(), w)
		}
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if output != "" {
			cmd.Printf("✓ Wrote %d rows to %s\n", n, output)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().Bool("rejected", false, "Export filtered-out ids instead of stored postings")
	exportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
}
