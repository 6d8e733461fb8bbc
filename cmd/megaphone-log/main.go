// Command megaphone-log views and analyzes megaphone client trace files.
//
// Trace files are written by megaphone-tail with the -trace flag, or by any
// program that sets client.Config.TraceLogger to a log.FileLogger.
//
// Usage:
//
//	megaphone-log <command> [flags] <file.mtrace>
//
// Commands:
//
//	view     View trace file in human-readable format
//	export   Export trace file to JSONL or CSV format
//	filter   Filter trace file and write to new file
//	stats    Show statistics about the trace file
//
// Examples:
//
//	# View all events
//	megaphone-log view client.mtrace
//
//	# View only raw chunks
//	megaphone-log view -category chunk client.mtrace
//
//	# Export one stream's messages to CSV
//	megaphone-log export -format csv -stream orders client.mtrace
//
//	# Keep one reader's events
//	megaphone-log filter -reader-id 6f1c2a9e-... -o reader.mtrace client.mtrace
//
//	# Show statistics
//	megaphone-log stats client.mtrace
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/megaphone-protocol/megaphone-go/cmd/megaphone-log/commands"
)

const usage = `megaphone-log - Megaphone Client Trace Analyzer

Usage:
  megaphone-log <command> [flags] <file.mtrace>

Commands:
  view     View trace file in human-readable format
  export   Export trace file to JSONL or CSV format
  filter   Filter trace file and write to new file
  stats    Show statistics about the trace file

Use "megaphone-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "view":
		err = runView(args)
	case "export":
		err = runExport(args)
	case "filter":
		err = runFilter(args)
	case "stats":
		err = runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet creates a flag set for a command with the shared filter flags.
func newFlagSet(name, summary string, opts *commands.FilterOptions) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "megaphone-log %s - %s\n\nUsage:\n  megaphone-log %s [flags] <file.mtrace>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.ReaderID, "reader-id", "", "Filter by reader ID")
	fs.StringVar(&opts.Channel, "channel", "", "Filter by channel address")
	fs.StringVar(&opts.StreamID, "stream", "", "Filter message events by stream ID")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, client)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (chunk, message, state, error)")
	return fs
}

// parseArgs parses flags and returns the trace file path.
func parseArgs(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return "", fmt.Errorf("trace file path required")
	}
	return fs.Arg(0), nil
}

func runView(args []string) error {
	var opts commands.FilterOptions
	fs := newFlagSet("view", "View trace file in human-readable format", &opts)
	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	return commands.RunView(path, opts, os.Stdout)
}

func runExport(args []string) error {
	var opts commands.FilterOptions
	fs := newFlagSet("export", "Export trace file to JSONL or CSV format", &opts)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return commands.RunExport(path, *format, opts, w)
}

func runFilter(args []string) error {
	var opts commands.FilterOptions
	fs := newFlagSet("filter", "Filter trace file and write to new file", &opts)
	output := fs.String("o", "", "Output file (required)")

	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if *output == "" {
		fs.Usage()
		return fmt.Errorf("output file (-o) required")
	}

	count, err := commands.RunFilter(path, *output, opts)
	if err != nil {
		return err
	}
	fmt.Printf("Filtered %d events to %s\n", count, *output)
	return nil
}

func runStats(args []string) error {
	var opts commands.FilterOptions
	fs := newFlagSet("stats", "Show statistics about the trace file", &opts)
	path, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	return commands.RunStats(path, opts, os.Stdout)
}
