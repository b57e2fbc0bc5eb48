package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/khrees2412/jobsift/internal/app"
	"github.com/khrees2412/jobsift/internal/database"
	"github.com/khrees2412/jobsift/pkg/models"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:     "jobs",
	Aliases: []string{"job"},
	Short:   "Triage stored postings",
	Long:    "List, view, flag and remove the postings kept by past rounds",
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored postings, newest first",
	Example: `  jobsift jobs list
  jobsift jobs list --status saved
  jobsift jobs list --search acme --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}

		opts := database.ListOptions{}
		opts.IncludeHidden, _ = cmd.Flags().GetBool("all")
		opts.Source, _ = cmd.Flags().GetString("source")
		opts.Search, _ = cmd.Flags().GetString("search")
		opts.Limit, _ = cmd.Flags().GetInt("limit")
		if raw, _ := cmd.Flags().GetString("status"); raw != "" {
			flag, ok := models.ParseStatusFlag(raw)
			if !ok {
				return fmt.Errorf("%w: unknown status %q", app.ErrInvalidArgument, raw)
			}
			opts.Flag = flag
		}

		postings, err := a.Store.ListPostings(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("fetch postings: %w", err)
		}
		if len(postings) == 0 {
			cmd.Println("No postings found. Run 'jobsift scrape' to fetch some.")
			return nil
		}

		cmd.Println(titleStyle.Render(fmt.Sprintf("Postings (%d)", len(postings))))
		for _, p := range postings {
			cmd.Printf("\n%s %s\n", labelStyle.Render(fmt.Sprintf("#%d", p.ID)), p.Title)
			cmd.Printf("   %s %s\n", labelStyle.Render("Company:"), p.Company)
			if p.Location != "" {
				cmd.Printf("   %s %s (%s)\n", labelStyle.Render("Location:"), p.Location, p.WorkMode)
			}
			cmd.Printf("   %s %s\n", labelStyle.Render("Posted:"), humanize.Time(p.PostedAt))
			if flags := activeFlags(p); flags != "" {
				cmd.Printf("   %s %s\n", labelStyle.Render("Status:"), flags)
			}
		}
		return nil
	},
}

var showJobCmd = &cobra.Command{
	Use:   "show <posting-id|external-id>",
	Short: "Show details of a posting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		p, err := lookupPosting(cmd, a.Store, args[0])
		if err != nil {
			return err
		}

		cmd.Println(titleStyle.Render(p.Title))
		cmd.Printf("%s %s\n", labelStyle.Render("Company:"), p.Company)
		if p.Location != "" {
			cmd.Printf("%s %s\n", labelStyle.Render("Location:"), p.Location)
		}
		cmd.Printf("%s %s\n", labelStyle.Render("Work Mode:"), titleCase(string(p.WorkMode)))
		cmd.Printf("%s %s\n", labelStyle.Render("URL:"), p.URL)
		cmd.Printf("%s %s\n", labelStyle.Render("Source:"), p.Source)
		cmd.Printf("%s %s (%s)\n", labelStyle.Render("Posted:"), p.PostedAt.Local().Format("Jan 2, 2006"), humanize.Time(p.PostedAt))
		cmd.Printf("%s %s\n", labelStyle.Render("Added:"), p.IngestedAt.Local().Format("Jan 2, 2006 15:04"))
		for _, f := range flagStamps(p) {
			cmd.Printf("%s %s\n", labelStyle.Render(titleCase(string(f.flag))+":"), humanize.Time(f.at))
		}

		if p.Description != "" {
			cmd.Println(labelStyle.Render("\nDescription:"))
			cmd.Println(renderMarkdown(p.Description))
		}
		if p.CoverLetter != nil {
			cmd.Println(labelStyle.Render("Cover Letter:"))
			cmd.Println(*p.CoverLetter)
		}
		return nil
	},
}

var markJobCmd = &cobra.Command{
	Use:   "mark <posting-id> <saved|applied|interview|rejected|hidden>",
	Short: "Set or clear a status flag",
	Example: `  jobsift jobs mark 12 applied
  jobsift jobs mark 12 hidden --off`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		flag, ok := models.ParseStatusFlag(args[1])
		if !ok {
			return fmt.Errorf("%w: unknown status %q", app.ErrInvalidArgument, args[1])
		}
		off, _ := cmd.Flags().GetBool("off")

		if err := a.Store.SetStatus(cmd.Context(), id, flag, !off); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if off {
			cmd.Printf("✓ Cleared %s on #%d\n", flag, id)
		} else {
			cmd.Printf("✓ Marked #%d as %s\n", id, flag)
		}
		return nil
	},
}

var removeJobCmd = &cobra.Command{
	Use:   "remove <posting-id>",
	Short: "Remove a posting",
	Long:  "Remove a posting. A later round stores it again if it still shows up in results; use 'jobs mark <id> hidden' to keep it out of sight instead.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		p, err := a.Store.GetPosting(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("fetch posting: %w", err)
		}
		if err := a.Store.DeletePosting(cmd.Context(), id); err != nil {
			return fmt.Errorf("remove posting: %w", err)
		}
		cmd.Printf("✓ Removed posting: %s at %s\n", p.Title, p.Company)
		return nil
	},
}

// lookupPosting accepts either the row id or the source's external id
func lookupPosting(cmd *cobra.Command, store *database.Store, arg string) (*models.Posting, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil && id > 0 {
		p, err := store.GetPosting(cmd.Context(), id)
		if err != nil {
			return nil, fmt.Errorf("fetch posting: %w", err)
		}
		return p, nil
	}
	p, err := store.GetPostingByExternalID(cmd.Context(), arg)
	if err != nil {
		return nil, fmt.Errorf("fetch posting: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("posting %q: %w", arg, app.ErrNotFound)
	}
	return p, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: posting id must be a positive number", app.ErrInvalidArgument)
	}
	return id, nil
}

type flagStamp struct {
	flag models.StatusFlag
	at   time.Time
}

func flagStamps(p *models.Posting) []flagStamp {
	var out []flagStamp
	add := func(flag models.StatusFlag, on bool, at *time.Time) {
		if on && at != nil {
			out = append(out, flagStamp{flag, *at})
		}
	}
	add(models.FlagSaved, p.Saved, p.SavedAt)
	add(models.FlagApplied, p.Applied, p.AppliedAt)
	add(models.FlagInterview, p.Interview, p.InterviewAt)
	add(models.FlagRejected, p.Rejected, p.RejectedAt)
	add(models.FlagHidden, p.Hidden, p.HiddenAt)
	return out
}

func activeFlags(p *models.Posting) string {
	var names []string
	for _, f := range flagStamps(p) {
		names = append(names, string(f.flag))
	}
	return strings.Join(names, ", ")
}

func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(listJobsCmd)
	jobsCmd.AddCommand(showJobCmd)
	jobsCmd.AddCommand(markJobCmd)
	jobsCmd.AddCommand(removeJobCmd)

	listJobsCmd.Flags().Bool("all", false, "Include hidden postings")
	listJobsCmd.Flags().String("status", "", "Only postings with this flag set")
	listJobsCmd.Flags().String("source", "", "Only postings from this source")
	listJobsCmd.Flags().String("search", "", "Match title or company")
	listJobsCmd.Flags().Int("limit", 50, "Maximum postings to show (0 for all)")

	markJobCmd.Flags().Bool("off", false, "Clear the flag instead of setting it")
}
