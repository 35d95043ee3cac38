package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/law-makers/scrape/internal/auth"
	"github.com/law-makers/scrape/internal/output"
	"github.com/law-makers/scrape/internal/ui"
	"github.com/law-makers/scrape/internal/utils/headers"
	urlutil "github.com/law-makers/scrape/internal/utils/url"
	"github.com/law-makers/scrape/pkg/models"
)

var (
	runTarget   string
	runBaseURL  string
	runHeaders  []string
	runParams   []string
	runSession  string
	runRender   bool
	runMaxPages int
	runOutput   string
)

var runCmd = &cobra.Command{
	Use:   "run <plugin>",
	Short: "Run a scraper plugin once",
	Long: `Runs the named plugin through its full lifecycle: pre-clear on the ingestion
backend, fetch with retries, parse, and session cleanup.

The record is printed as JSON, or written to --output (.json, .yaml, .csv).`,
	Example: `  # Scrape a listings page and save as YAML
  scrape run listings --target=https://example.com/flats --output=flats.yaml

  # Clear the dataset first and follow up to 5 pages
  scrape run listings --target=https://example.com/flats --base-url=http://ingest:8000 --max-pages=5

  # Reuse a saved login and render with headless Chrome
  scrape run listings --target=https://example.com/account/saved --session=example --render`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runTarget, "target", "t", "", "Target URL (defaults to the plugin's own)")
	runCmd.Flags().StringVar(&runBaseURL, "base-url", "", "Ingestion backend base URL for the pre-clear request")
	runCmd.Flags().StringArrayVarP(&runHeaders, "header", "H", nil, "Custom request header 'Name: value' (repeatable)")
	runCmd.Flags().StringArrayVar(&runParams, "param", nil, "Query parameter key=value (repeatable)")
	runCmd.Flags().StringVarP(&runSession, "session", "s", "", "Name of a saved auth session to use")
	runCmd.Flags().BoolVar(&runRender, "render", false, "Render pages with headless Chrome")
	runCmd.Flags().IntVar(&runMaxPages, "max-pages", 0, "Pages to follow for paginated plugins")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Write the record to a file (.json, .yaml, .csv)")
}

func runRun(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return errors.New("application not initialized")
	}

	if runTarget != "" {
		if err := urlutil.ValidateURL(runTarget); err != nil {
			return err
		}
	}
	params, err := headers.ParseParams(runParams)
	if err != nil {
		return err
	}

	run := models.RunConfig{
		PluginID:     args[0],
		TargetURL:    runTarget,
		Params:       params,
		Headers:      headers.ParseHeaders(runHeaders),
		ClearBaseURL: runBaseURL,
		SessionName:  runSession,
		Render:       runRender,
		MaxPages:     runMaxPages,
	}

	var cookies []*http.Cookie
	if runSession != "" {
		store, err := auth.NewStore()
		if err != nil {
			return err
		}
		saved, err := store.Load(runSession)
		if err != nil {
			return fmt.Errorf("failed to load session '%s': %w", runSession, err)
		}
		cookies = saved.HTTPCookies()
		for k, v := range saved.Headers {
			if _, set := run.Headers[k]; !set {
				run.Headers[k] = v
			}
		}
		log.Debug().Str("session", runSession).Int("cookies", len(cookies)).Msg("Loaded saved session")
	}

	bar := newSpinner(a.Config.LogLevel == "debug" || a.Config.JSONLog)
	ctrl := a.NewController(run, cookies, func(s models.State) {
		if bar != nil {
			bar.Describe(string(s))
			_ = bar.Add(1)
		}
	})

	rec, err := ctrl.Run(cmd.Context())
	if bar != nil {
		_ = bar.Finish()
	}
	log.Debug().Str("state", string(ctrl.State())).Msg("Run finished")
	if err != nil {
		return fmt.Errorf("run %s: %w", ui.State(ctrl.State()), err)
	}

	switch ctrl.State() {
	case models.StateAborted:
		return fmt.Errorf("run %s for plugin %q", ui.State(models.StateAborted), run.PluginID)
	case models.StateDone:
	default:
		return fmt.Errorf("run ended in state %s", ctrl.State())
	}

	if rec == nil {
		fmt.Fprintln(os.Stderr, ui.Info("No data fetched"))
		return nil
	}
	if runOutput != "" {
		if err := output.Save(rec, runOutput); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.Success("✓ Saved to"), runOutput)
		return nil
	}
	return output.WriteJSON(os.Stdout, rec)
}

// newSpinner returns nil when log output would interleave with it.
func newSpinner(quiet bool) *progressbar.ProgressBar {
	if quiet {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription(string(models.StateIdle)),
		progressbar.OptionClearOnFinish(),
	)
}
