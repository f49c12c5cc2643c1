package main

import (
	"fmt"
	"log/slog"
	"os"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/use-agent/profilr/config"
	"github.com/use-agent/profilr/diag"
	"github.com/use-agent/profilr/logging"
	"github.com/use-agent/profilr/scraper"
	"github.com/use-agent/profilr/store"
)

var (
	flagSave     bool
	flagOut      string
	flagJSON     bool
	flagDebug    bool
	flagHeadless bool
	flagMode     string
)

func init() {
	rootCmd.Flags().BoolVar(&flagSave, "save", true, "Write the record to <profiles dir>/<handle>.json.")
	rootCmd.Flags().StringVar(&flagOut, "out", "", "Profiles directory (overrides PROFILR_PROFILES_DIR).")
	rootCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the full record as JSON instead of a summary table.")
	rootCmd.Flags().BoolVar(&flagDebug, "debug", false, "Write diagnostic snapshots to the debug dir.")
	rootCmd.Flags().BoolVar(&flagHeadless, "headless", true, "Run the browser headless.")
	rootCmd.Flags().StringVar(&flagMode, "mode", "", "Extraction mode: live or snapshot (overrides PROFILR_EXTRACT_MODE).")
}

var rootCmd = &cobra.Command{
	Use:   "profilr-scrape <profile-url>",
	Short: "Scrapes one LinkedIn profile with the session cookie from LINKEDIN_SESSION_COOKIE.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Usage is for argument errors, not scrape failures.
		cmd.SilenceUsage = true

		cfg := config.Load()
		applyFlags(cmd, cfg)

		logFile := logging.Setup(cfg.Log, os.Stderr)
		defer logFile.Close()

		profileURL := args[0]
		handle, err := scraper.ValidateProfileURL(profileURL)
		if err != nil {
			return err
		}

		st, err := store.NewFileStore(cfg.Storage.ProfilesDir)
		if err != nil {
			return err
		}
		sink, err := diag.New(cfg.Diagnostics)
		if err != nil {
			return err
		}

		sess, err := scraper.Open(cfg.Browser, cfg.Session, cfg.Scraper)
		if err != nil {
			return err
		}
		defer sess.Close()

		ctx := cmd.Context()
		sc := scraper.New(sess, cfg, scraper.WithSink(sink))
		if err := sc.VerifyLogin(ctx); err != nil {
			return fmt.Errorf("login check: %w", err)
		}
		slog.Info("login check passed")

		rec, err := sc.ScrapeProfile(ctx, profileURL)
		if err != nil {
			return err
		}

		savedTo := ""
		if flagSave {
			savedTo, err = st.Save(handle, rec)
			if err != nil {
				return fmt.Errorf("save profile: %w", err)
			}
			slog.Info("profile saved", "path", savedTo)
		}

		out := cmd.OutOrStdout()
		if flagJSON {
			data, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		}
		renderSummary(out, rec, savedTo)
		return nil
	},
}

// applyFlags lets explicitly set flags override the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flagOut != "" {
		cfg.Storage.ProfilesDir = flagOut
	}
	if flags.Changed("debug") {
		cfg.Diagnostics.Enabled = flagDebug
	}
	if flags.Changed("headless") {
		cfg.Browser.Headless = flagHeadless
	}
	if flagMode != "" {
		cfg.Scraper.ExtractMode = flagMode
	}
	// Logs go to stderr; keep them quiet unless asked.
	if os.Getenv("PROFILR_LOG_FORMAT") == "" {
		cfg.Log.Format = "text"
	}
}
