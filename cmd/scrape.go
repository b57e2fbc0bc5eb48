package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/khrees2412/jobsift/internal/ingest"
	"github.com/khrees2412/jobsift/pkg/models"
	"github.com/spf13/cobra"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one ingest round",
	Long: `Fetch result pages for every configured query, drop postings seen before or
rejected by the filters, and store the rest.`,
	Example: `  jobsift scrape
  jobsift scrape --keywords "golang" --location "Berlin" --work-mode remote
  jobsift scrape --pages 3 --rounds 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := appFrom(cmd)
		if err != nil {
			return err
		}

		cfg := ingest.RoundConfigFromConfig(a.Config)
		if keywords, _ := cmd.Flags().GetString("keywords"); keywords != "" {
			location, _ := cmd.Flags().GetString("location")
			q := models.Query{Keywords: keywords, Location: location, Timespan: a.Config.Timespan}
			if mode, _ := cmd.Flags().GetString("work-mode"); mode != "" && mode != "any" {
				q.WorkMode = models.ParseWorkMode(mode)
				if q.WorkMode == models.WorkModeUnknown {
					return fmt.Errorf("unsupported work mode %q", mode)
				}
			}
			cfg.Queries = []models.Query{q}
		}
		if cmd.Flags().Changed("pages") {
			cfg.PagesPerQuery, _ = cmd.Flags().GetInt("pages")
		}
		if cmd.Flags().Changed("rounds") {
			cfg.Rounds, _ = cmd.Flags().GetInt("rounds")
		}
		if noDesc, _ := cmd.Flags().GetBool("no-descriptions"); noDesc {
			cfg.FetchDescriptions = false
		}
		if len(cfg.Queries) == 0 {
			return errors.New("no queries configured. Add some to the config file or pass --keywords")
		}
		if cfg.PagesPerQuery < 1 {
			return errors.New("--pages must be at least 1")
		}

		var pubs []ingest.Publisher
		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			pubs = append(pubs, newProgressPrinter(cmd.ErrOrStderr()))
		}
		coordinator := a.Coordinator(pubs...)

		cmd.Printf("🔍 Scraping %d %s, %d %s each\n", len(cfg.Queries), plural(len(cfg.Queries), "query", "queries"),
			cfg.PagesPerQuery, plural(cfg.PagesPerQuery, "page", "pages"))
		summary, runErr := coordinator.Run(cmd.Context(), cfg)
		printSummary(cmd, summary)
		if runErr != nil {
			if errors.Is(runErr, ingest.ErrAborted) {
				return fmt.Errorf("round aborted, committed pages were kept: %w", runErr)
			}
			return runErr
		}
		return nil
	},
}

func printSummary(cmd *cobra.Command, s ingest.Summary) {
	if s.RunID == "" {
		return
	}
	st := s.Stats
	cmd.Println(titleStyle.Render("Round Summary"))
	cmd.Printf("%s %s\n", labelStyle.Render("Run:"), mutedStyle.Render(s.RunID))
	cmd.Printf("%s %s\n", labelStyle.Render("Duration:"), s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	cmd.Printf("%s %s pages, %s postings parsed, %s malformed\n", labelStyle.Render("Fetched:"),
		humanize.Comma(int64(st.Fetched)), humanize.Comma(int64(st.Parsed)), humanize.Comma(int64(st.Skipped)))
	cmd.Printf("%s %s\n", labelStyle.Render("Already seen:"), humanize.Comma(int64(st.Duplicate)))
	cmd.Printf("%s %s\n", labelStyle.Render("Filtered out:"), humanize.Comma(int64(st.Filtered)))
	cmd.Printf("%s %s\n", labelStyle.Render("New postings:"), valueStyle.Render(humanize.Comma(int64(st.Accepted))))
	if st.FailedPages > 0 {
		cmd.Printf("%s %d\n", errorStyle.Render("Failed pages:"), st.FailedPages)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().String("keywords", "", "Run a single ad-hoc query instead of the configured ones")
	scrapeCmd.Flags().String("location", "", "Location for the ad-hoc query")
	scrapeCmd.Flags().String("work-mode", "", "Work mode for the ad-hoc query (onsite, hybrid, remote, any)")
	scrapeCmd.Flags().Int("pages", 0, "Pages per query (overrides config)")
	scrapeCmd.Flags().Int("rounds", 0, "Passes over every query (overrides config)")
	scrapeCmd.Flags().Bool("no-descriptions", false, "Skip fetching full descriptions")
	scrapeCmd.Flags().BoolP("quiet", "q", false, "Do not draw the progress line")
}
