package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hamed0406/jenkinsprobe/internal/hosts"
	"github.com/hamed0406/jenkinsprobe/internal/logging"
	"github.com/hamed0406/jenkinsprobe/internal/probe"
	"github.com/hamed0406/jenkinsprobe/internal/report"
	"github.com/hamed0406/jenkinsprobe/internal/scanner"
)

const usage = `Usage:
  jenkinsprobe -h | --help
  jenkinsprobe --rhosts=<rhosts>

Options:
  --rhosts=<rhosts>  file with one target host per line
`

// Overridden in tests.
var (
	logDir     = "logs"
	newChecker = func() probe.Checker {
		return probe.NewHTTPChecker(probe.DefaultPort, probe.DefaultPath, probe.DefaultTimeout)
	}
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 on success, 2 on bad usage and 1 when
// the host file cannot be loaded or the scan aborts.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("jenkinsprobe", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	rhosts := fs.String("rhosts", "", "targets to test")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprint(stdout, usage)
			return 0
		}
		fmt.Fprintf(stderr, "%v\n%s", err, usage)
		return 2
	}
	if *rhosts == "" {
		fmt.Fprint(stderr, usage)
		return 2
	}

	logger, err := logging.NewLogger(logDir, zapcore.DebugLevel)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer logger.Sync()

	fmt.Fprintf(stdout, "Generating set from: %s\n", *rhosts)
	set, err := hosts.LoadFile(*rhosts)
	if err != nil {
		logger.Error("hosts_load_error", zap.String("path", *rhosts), zap.Error(err))
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(stdout, "Entering concurrent url test")
	progress := report.NewProgress(stdout)
	engine := scanner.New(logger, newChecker(), scanner.Options{
		Concurrency: scanner.DefaultConcurrency,
		Timeout:     probe.DefaultTimeout,
		OnProbe:     progress.Probe,
	})

	part, err := engine.Run(ctx, set)
	if err != nil {
		logger.Error("scan_aborted", zap.Error(err))
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	if err := report.Summary(stdout, part); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	if err := report.JSON(stdout, part); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}
