package cmd

import (
	"errors"
	"fmt"

	"github.com/khrees2412/jobsift/internal/ai"
	"github.com/spf13/cobra"
)

var letterCmd = &cobra.Command{
	Use:   "letter <posting-id|external-id>",
	Short: "Draft a cover letter for a posting",
	Long: `Draft a cover letter with the configured AI provider and attach it to the
posting. The applicant background comes from applicant_bio or --bio.`,
	Example: `  jobsift letter 12
  jobsift letter 12 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		p, err := lookupPosting(cmd, a.Store, args[0])
		if err != nil {
			return err
		}
		if p.CoverLetter != nil {
			if force, _ := cmd.Flags().GetBool("force"); !force {
				return errors.New("posting already has a cover letter. Use --force to replace it")
			}
		}

		gen, err := a.Generator()
		if err != nil {
			return err
		}
		bio := a.Config.ApplicantBio
		if cmd.Flags().Changed("bio") {
			bio, _ = cmd.Flags().GetString("bio")
		}

		cmd.PrintErrf("⏳ Drafting cover letter for %s at %s with %s...\n", p.Title, p.Company, a.Config.AIProvider)
		text, err := gen.GenerateCoverLetter(cmd.Context(), ai.RequestFor(p, bio))
		if err != nil {
			return fmt.Errorf("generate cover letter: %w", err)
		}

		cmd.Println(titleStyle.Render("Cover Letter"))
		cmd.Println(text)

		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			return nil
		}
		if err := a.Store.AttachCoverLetter(cmd.Context(), p.ID, text); err != nil {
			return fmt.Errorf("attach cover letter: %w", err)
		}
		cmd.Printf("\n✓ Attached to #%d\n", p.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(letterCmd)

	letterCmd.Flags().Bool("dry-run", false, "Print the letter without attaching it")
	letterCmd.Flags().Bool("force", false, "Replace an existing cover letter")
	letterCmd.Flags().String("bio", "", "Applicant background (overrides applicant_bio)")
}
