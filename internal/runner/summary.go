package runner

import (
	"fmt"
	"io"
	"time"
)

// WriteSummary prints the end-of-run report and advisory warnings.
func WriteSummary(w io.Writer, result RunResult, noColor bool) {
	palette := paletteFor(w, noColor)
	fmt.Fprintf(w, "Run %s completed in %s\n", result.RunID, result.Elapsed.Round(10*time.Millisecond))
	fmt.Fprintf(w, "Results: %s\n", result.ResultsPath)
	fmt.Fprintf(w, "  ingested:  %d\n", result.Ingested)
	fmt.Fprintf(w, "  succeeded: %d\n", result.Stats.Succeeded)
	fmt.Fprintf(w, "  failed:    %d\n", result.Stats.Failed+result.Rejected)
	if result.Rejected > 0 {
		fmt.Fprintf(w, "  rejected at ingestion: %d\n", result.Rejected)
	}
	if result.Stats.Retried > 0 {
		fmt.Fprintf(w, "  retries:   %d\n", result.Stats.Retried)
	}
	if result.Stats.APIErrors > 0 {
		fmt.Fprintf(w, "  api errors:   %d\n", result.Stats.APIErrors)
	}
	if result.Stats.OtherErrors > 0 {
		fmt.Fprintf(w, "  other errors: %d\n", result.Stats.OtherErrors)
	}
	if failed := result.Stats.Failed + result.Rejected; failed > 0 {
		fmt.Fprintln(w, palette.apply(styleError,
			fmt.Sprintf("%d / %d requests failed. Errors are recorded in %s.", failed, result.Ingested, result.ResultsPath)))
	}
	if result.Stats.RateLimitErrors > 0 {
		fmt.Fprintln(w, palette.apply(styleRetry,
			fmt.Sprintf("%d rate limit errors received. Consider running at a lower rate.", result.Stats.RateLimitErrors)))
	}
}
