package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"parareq/internal/caller"
	"parareq/internal/config"
	"parareq/internal/request"
	"parareq/internal/tokens"
)

// runEstimate builds the handler for the estimate command.
func runEstimate(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		fs.SetOutput(stderr)
		configPath := fs.String("config", "parareq.yml", "Path to config file")
		requestsFile := fs.String("requests", "", "Override requests file")
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
		if *requestsFile != "" {
			cfg.RequestsFile = *requestsFile
		}
		if err := config.Validate(&cfg); err != nil {
			fmt.Fprintf(stderr, "Invalid config: %v\n", err)
			return ExitError
		}

		requests, err := request.LoadFile(cfg.RequestsFile)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load requests: %v\n", err)
			return ExitError
		}

		endpoint, err := caller.EndpointFromURL(cfg.RequestURL)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return ExitError
		}
		estimator, err := tokens.NewEstimator(endpoint, cfg.TokenEncoding)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return ExitError
		}

		var total uint64
		oversize := 0
		ceiling := cfg.Limits.TokensPerMinute
		for _, req := range requests {
			cost, err := estimator.Estimate(req.Payload)
			if err != nil {
				fmt.Fprintf(stdout, "%d\testimate failed: %v\n", req.ID, err)
				oversize++
				continue
			}
			line := fmt.Sprintf("%d\t%d", req.ID, cost)
			if float64(cost) > ceiling {
				line += "\texceeds tokens_per_minute"
				oversize++
			}
			fmt.Fprintln(stdout, line)
			total += cost
		}

		fmt.Fprintf(stdout, "total\t%d tokens across %d requests\n", total, len(requests))
		if oversize > 0 {
			fmt.Fprintf(stderr, "%d requests would be rejected at ingestion\n", oversize)
			return ExitError
		}
		return ExitOK
	}
}
