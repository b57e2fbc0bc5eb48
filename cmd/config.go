package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/khrees2412/jobsift/internal/config"
	"github.com/spf13/cobra"
)

// settableKeys are the scalar settings config set can change. Lists and
// queries are edited in the YAML file.
var settableKeys = []string{
	"ai_provider", "default_model", "openai_key", "anthropic_key", "ollama_url", "applicant_bio",
	"source", "feed_url", "user_agent", "request_delay", "request_timeout",
	"pages_per_query", "rounds", "timespan", "date_window_days", "unknown_work_mode",
	"retention_days", "rejected_retention_days", "schedule", "listen", "redis_url", "log_level",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  "View and update configuration settings",
	// Config commands must work even when the database or redis is unreachable
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Initialize()
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.AppConfig
		row := func(label string, value any) {
			cmd.Printf("%s %v\n", labelStyle.Render(label), valueStyle.Render(fmt.Sprint(value)))
		}

		cmd.Println(titleStyle.Render("Configuration"))
		row("Config File:", config.GetConfigPath())
		row("Database:", cfg.DBPath)
		row("Source:", cfg.Source)
		row("Pages per Query:", cfg.PagesPerQuery)
		row("Rounds:", cfg.Rounds)
		row("Request Delay:", cfg.RequestDelay)
		row("Unknown Work Mode:", cfg.UnknownWorkMode)
		row("Retention Days:", cfg.RetentionDays)
		row("Schedule:", cfg.Schedule)

		cmd.Println(labelStyle.Render("\nQueries:"))
		if len(cfg.Queries) == 0 {
			cmd.Println(mutedStyle.Render("  none configured"))
		}
		for _, q := range cfg.SearchQueries() {
			cmd.Printf("  • %s\n", q)
		}

		cmd.Println(labelStyle.Render("\nFilters:"))
		lists := []struct {
			name  string
			terms []string
		}{
			{"title include", cfg.TitleInclude},
			{"title exclude", cfg.TitleExclude},
			{"company exclude", cfg.CompanyExclude},
			{"description exclude", cfg.DescriptionExclude},
			{"languages", cfg.Languages},
		}
		for _, l := range lists {
			terms := strings.Join(l.terms, ", ")
			if terms == "" {
				terms = mutedStyle.Render("(empty)")
			}
			cmd.Printf("  %s: %s\n", l.name, terms)
		}

		cmd.Println()
		row("AI Provider:", cfg.AIProvider)
		row("Default Model:", cfg.DefaultModel)
		// Show if API keys are configured but never the keys themselves
		row("OpenAI Key:", configured(cfg.OpenAIKey))
		row("Anthropic Key:", configured(cfg.AnthropicKey))
		row("Redis:", configured(cfg.RedisURL))
	},
}

func configured(s string) string {
	if s != "" {
		return "✓ Configured"
	}
	return "✗ Not configured"
}

var setConfigCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Update a configuration value",
	Example: `  jobsift config set openai_key sk-...
  jobsift config set ai_provider anthropic
  jobsift config set request_delay 5s`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if !slices.Contains(settableKeys, key) {
			return fmt.Errorf("invalid key %q. Must be one of: %s", key, strings.Join(settableKeys, ", "))
		}

		if err := config.Set(key, value); err != nil {
			return fmt.Errorf("update config: %w", err)
		}
		// Reload so a bad value is reported now rather than on the next run
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("config saved but no longer valid: %w", err)
		}
		cmd.Printf("✓ Configuration updated: %s\n", key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(showConfigCmd)
	configCmd.AddCommand(setConfigCmd)
}
