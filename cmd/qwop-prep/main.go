// Command qwop-prep turns recorded QWOP game logs into normalized training
// data: feature statistics, TFRecord example files and reports.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/qwop.data/internal/fsutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, fsutil.OSFileSystem{}); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Printf("qwop-prep: %v", err)
		stop()
		os.Exit(1)
	}
}

// run dispatches one subcommand. Diagnostics go through monitoring.Logf;
// results meant for the user are written to stdout.
func run(ctx context.Context, args []string, stdout io.Writer, fsys fsutil.FileSystem) error {
	if len(args) < 1 {
		printUsage(stdout)
		return errors.New("no command given")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "stats":
		return runStats(ctx, rest, stdout, fsys)
	case "records":
		return runRecords(ctx, rest, stdout, fsys)
	case "report":
		return runReport(rest, stdout, fsys)
	case "history":
		return runHistory(rest, stdout)
	case "version":
		return runVersion(stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stdout)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `qwop-prep - QWOP game-log preprocessing

Usage: qwop-prep <command> [options]

Commands:
  stats      Compute per-feature normalization statistics
  records    Write TFRecord training examples
  report     Render statistics as HTML and PNG charts
  history    List statistics runs recorded in the catalogue
  version    Show version information
  help       Show this help message

Run 'qwop-prep <command> -h' for the options of a command.

Examples:
  # Compute statistics and keep a catalogue entry
  qwop-prep stats -config pipeline.json -dir ./logs -out state_stats.gob.gz -db stats.db

  # Write range-normalized, compressed examples
  qwop-prep records -config pipeline.json -stats state_stats.gob.gz -out train.tfrecord.gz

  # Chart the statistics
  qwop-prep report -stats state_stats.gob.gz -html stats.html -png stats.png`)
}
