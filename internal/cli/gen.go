package cli

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// runGen builds the handler for the gen command. It writes a sample
// requests file suitable for the default embeddings endpoint.
func runGen(cmd *Command) func(args []string, stdout, stderr io.Writer) int {
	return func(args []string, stdout, stderr io.Writer) int {
		if wantsHelp(args) {
			printCommandUsage(cmd, stdout)
			return ExitOK
		}

		fs := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		fs.SetOutput(stderr)
		out := fs.String("out", "requests.jsonl", "Output path for the sample requests file")
		count := fs.Int("count", 100, "Number of requests to generate")
		model := fs.String("model", "text-embedding-3-small", "Model name to embed in each request")
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
		if *count <= 0 {
			fmt.Fprintln(stderr, "count must be positive")
			return ExitUsage
		}

		if err := writeSampleRequests(*out, *count, *model); err != nil {
			fmt.Fprintf(stderr, "Failed to write %s: %v\n", *out, err)
			return ExitError
		}
		fmt.Fprintf(stdout, "Wrote %d requests to %s\n", *count, *out)
		return ExitOK
	}
}

// writeSampleRequests emits numbered embedding requests, one per line,
// each tagged with a row_id in its metadata.
func writeSampleRequests(path string, count int, model string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	for i := 0; i < count; i++ {
		_, err := fmt.Fprintf(w, "{\"model\": %q, \"input\": \"%d\\n\", \"metadata\": {\"row_id\": %d}}\n", model, i, i)
		if err != nil {
			file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
