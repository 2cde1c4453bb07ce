// Command shodjinn creates a Shodan account verified through a disposable
// Guerrilla Mail inbox and prints its API key.
//
// Usage:
//
//	shodjinn                  # narrated run on a terminal
//	shodjinn | other-command  # prints only the API key
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nhle/shodjinn/internal/app"
	"github.com/nhle/shodjinn/internal/model"
	"github.com/nhle/shodjinn/internal/theme"
	"github.com/nhle/shodjinn/internal/ui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("shodjinn", pflag.ContinueOnError)
	configPath := flags.String("config", model.DefaultConfigPath(), "path to configuration file")
	showVersion := flags.Bool("version", false, "print version and exit")
	flags.Duration("poll-interval", 0, "delay between mailbox checks (e.g. 5s)")
	flags.Duration("timeout", 0, "per-request HTTP timeout (e.g. 15s)")
	flags.String("output", model.OutputAuto, "output mode: auto, verbose or silent")
	flags.Bool("no-banner", false, "do not print the banner")
	flags.String("log-level", "warn", "diagnostic log level: debug, info, warn or error")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return app.ExitOK
		}
		return app.ExitUsage
	}

	if *showVersion {
		fmt.Println(app.Version)
		return app.ExitOK
	}

	cfg, err := model.LoadConfig(*configPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, theme.ErrorStyle.Render("error:"), err)
		return app.ExitUsage
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, theme.ErrorStyle.Render("error:"), err)
		return app.ExitUsage
	}

	logger, err := app.NewLogger(os.Stderr, cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, theme.ErrorStyle.Render("error:"), err)
		return app.ExitUsage
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mode := ui.ResolveMode(cfg.Output.Mode, os.Stdout)
	_, code := app.New(cfg, os.Stdout, mode, logger).Run(ctx)
	return code
}
