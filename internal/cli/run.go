package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"parareq/internal/config"
	"parareq/internal/runner"
	"parareq/internal/spec"
	"parareq/internal/ui/live"
	"parareq/pkg/dispatch"
)

var runBatch = runner.Run

// runRun builds the handler for the run command.
func runRun(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		fs.SetOutput(stderr)
		configPath := fs.String("config", "parareq.yml", "Path to config file")
		requestsFile := fs.String("requests", "", "Override requests file")
		resultsFile := fs.String("results", "", "Override results file")
		requestURL := fs.String("url", "", "Override request URL")
		resultsDB := fs.String("results-db", "", "Also record results in a DuckDB database")
		rpm := fs.Float64("rpm", 0, "Override max requests per minute")
		tpm := fs.Float64("tpm", 0, "Override max tokens per minute")
		maxInFlight := fs.Int("max-in-flight", 0, "Override max concurrent calls")
		maxAttempts := fs.Int("max-attempts", 0, "Override max attempts per request")
		uiMode := fs.String("ui", "", "UI mode: auto, live, or plain")
		verbose := fs.Bool("verbose", false, "Print one line per dispatch event")
		noColor := fs.Bool("no-color", false, "Disable ANSI colors")
		if err := fs.Parse(args); err != nil {
			if err == flag.ErrHelp {
				printCommandUsage(cmd, stdout)
				return ExitOK
			}
			return ExitUsage
		}
		if fs.NArg() > 0 {
			fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
			printCommandUsage(cmd, stderr)
			return ExitUsage
		}

		cfg, err := config.LoadUnvalidated(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
			return ExitError
		}
		applyOverrides(&cfg, fs, overrides{
			requestsFile: *requestsFile,
			resultsFile:  *resultsFile,
			requestURL:   *requestURL,
			resultsDB:    *resultsDB,
			rpm:          *rpm,
			tpm:          *tpm,
			maxInFlight:  *maxInFlight,
			maxAttempts:  *maxAttempts,
			uiMode:       *uiMode,
		})
		if err := config.Validate(&cfg); err != nil {
			fmt.Fprintf(stderr, "Invalid config: %v\n", err)
			return ExitError
		}

		apiKey := os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			fmt.Fprintf(stderr, "API key environment variable %s is not set\n", cfg.APIKeyEnv)
			return ExitError
		}

		decision, err := resolveUIMode(cfg.UI, *verbose, stdout)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return ExitUsage
		}
		if decision.warning != "" {
			fmt.Fprintln(stderr, decision.warning)
		}

		tracker := runner.NewStatusTracker()
		observers := dispatch.MultiObserver{tracker}
		params := runner.RunParams{
			APIKey:  apiKey,
			Verbose: *verbose,
			NoColor: *noColor,
			Stderr:  stderr,
		}
		var controller *live.Controller
		if decision.useLive {
			controller = live.Start(stdout, live.Options{NoColor: *noColor})
			observers = append(observers, controller)
		}
		params.Observer = observers

		var stopProgress chan struct{}
		if !decision.useLive && !*verbose {
			stopProgress = make(chan struct{})
			go reportProgress(stderr, tracker, stopProgress)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, runErr := runBatch(ctx, cfg, params)
		if stopProgress != nil {
			close(stopProgress)
		}
		if controller != nil {
			controller.Close()
			controller.Wait()
		}
		if runErr != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(stderr, "Run interrupted; in-flight calls drained, remaining requests were not dispatched.")
			}
			fmt.Fprintf(stderr, "Run failed: %v\n", runErr)
			if result.ResultsPath != "" {
				runner.WriteSummary(stdout, result, *noColor)
			}
			return ExitError
		}

		runner.WriteSummary(stdout, result, *noColor)
		return ExitOK
	}
}

// progressInterval paces the plain-mode status line.
const progressInterval = 5 * time.Second

// reportProgress prints a status line periodically until the run ends.
func reportProgress(w io.Writer, tracker *runner.StatusTracker, stop <-chan struct{}) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s := tracker.Snapshot()
			fmt.Fprintf(w, "progress: started=%d succeeded=%d failed=%d retried=%d in_flight=%d\n",
				s.Started, s.Succeeded, s.Failed, s.Retried, s.InProgress)
		}
	}
}

// overrides holds the flag values that can replace config fields.
type overrides struct {
	requestsFile string
	resultsFile  string
	requestURL   string
	resultsDB    string
	rpm          float64
	tpm          float64
	maxInFlight  int
	maxAttempts  int
	uiMode       string
}

// applyOverrides replaces config fields for flags the user actually set.
func applyOverrides(cfg *spec.Config, fs *flag.FlagSet, o overrides) {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["requests"] {
		cfg.RequestsFile = o.requestsFile
		if !set["results"] {
			cfg.ResultsFile = config.DeriveResultsFile(o.requestsFile)
		}
	}
	if set["results"] {
		cfg.ResultsFile = o.resultsFile
	}
	if set["url"] {
		cfg.RequestURL = o.requestURL
	}
	if set["results-db"] {
		cfg.ResultsDB = o.resultsDB
	}
	if set["rpm"] {
		cfg.Limits.RequestsPerMinute = o.rpm
	}
	if set["tpm"] {
		cfg.Limits.TokensPerMinute = o.tpm
	}
	if set["max-in-flight"] {
		cfg.Limits.MaxInFlight = o.maxInFlight
	}
	if set["max-attempts"] {
		cfg.Retry.MaxAttempts = o.maxAttempts
	}
	if set["ui"] {
		cfg.UI = o.uiMode
	}
}
