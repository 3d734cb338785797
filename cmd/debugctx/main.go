// Package main is the entry point for the debugctx collector.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/debugctx/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	application, err := app.New(opts, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	if err := application.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags() app.Options {
	var opts app.Options
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.Adapter, "adapter", "", "Debug adapter: delve, python, node")
	flag.StringVar(&opts.Adapter, "a", "", "Debug adapter (shorthand)")
	flag.IntVar(&opts.ProcessID, "pid", 0, "Attach to a running process instead of launching")
	flag.StringVar(&opts.Host, "host", "", "Host of a running debug adapter")
	flag.IntVar(&opts.Port, "port", 0, "Port of a running debug adapter")
	flag.BoolVar(&opts.KeepRunning, "keep-running", false, "Resume the debuggee after each report")
	flag.BoolVar(&opts.Watch, "watch", false, "Reload budgets when the config file changes")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "debugctx - paused-program context collector\n\n")
		fmt.Fprintf(os.Stderr, "Usage: debugctx [options] [program [args...]]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  debugctx ./cmd/app              Debug a Go program\n")
		fmt.Fprintf(os.Stderr, "  debugctx -a python app.py       Debug a Python program\n")
		fmt.Fprintf(os.Stderr, "  debugctx -pid 4242              Attach to a running process\n")
		fmt.Fprintf(os.Stderr, "  debugctx -host 127.0.0.1 -port 38697 -pid 4242\n")
		fmt.Fprintf(os.Stderr, "                                  Attach through a running adapter\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("debugctx %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if opts.LogLevel != "" {
		switch opts.LogLevel {
		case "debug", "info", "warn", "error":
		default:
			fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
			os.Exit(1)
		}
	}

	// Remaining arguments are the program to debug and its arguments.
	if args := flag.Args(); len(args) > 0 {
		opts.Program = args[0]
		opts.ProgramArgs = args[1:]
	}

	return opts
}
