package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/citygrid/trafficsim/internal/config"
	"github.com/spf13/pflag"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	AppName string = "trafficsim"
)

const usage = `usage: trafficsim <command> [flags]

commands:
  run     play a run to completion and store it
  serve   serve the simulation over HTTP; every /positions poll plays one tick
  poll    poll a running server until its run finishes
  version print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := os.Args[1]
	if cmd == "version" {
		fmt.Printf("%s %s (built %s)\n", AppName, CurrentVersion, BuildDate)
		return
	}

	var run func(context.Context, *app) error
	switch cmd {
	case "run":
		run = runCommand
	case "serve":
		run = serveCommand
	case "poll":
		run = pollCommand
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	fs := newFlagSet(cmd)
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	configDir, _ := fs.GetString("config-dir")

	a, err := newApp(configDir, fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, a)
	stop()
	a.close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

func newFlagSet(cmd string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	fs.String("config-dir", ".", "directory containing "+config.FileName)
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "text", "log file format (text, json)")
	fs.Uint64("seed", 1, "random seed")
	fs.Int("vehicles", 17, "number of vehicles")
	fs.Uint64("max-ticks", 5000, "stop after this many ticks, 0 for no limit")
	fs.Duration("tick-interval", 0, "pause between ticks")
	fs.String("layout", "", "city layout file, empty for the built-in city")
	fs.String("storage", "memory", "storage backend (memory, sqlite, postgres, websocket, none)")
	fs.String("address", ":8000", "HTTP listen address")
	fs.String("server-url", "http://localhost:8000", "server polled by the poll command")
	return fs
}
