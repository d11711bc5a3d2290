// Package main provides the minotaur command, which watches paths with
// inotify and prints each event.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/giannitedesco/minotaur/internal/config"
	"github.com/giannitedesco/minotaur/internal/di"
	"github.com/giannitedesco/minotaur/internal/di/providers"
	"github.com/giannitedesco/minotaur/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "minotaur: %v\n", err)
		os.Exit(2)
	}

	if cfg.ListFlags {
		printFlags(os.Stdout)
		return
	}

	injector := di.NewContainer(cfg)

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "minotaur: %v\n", err)
		injector.Shutdown()
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)
	w := do.MustInvoke[*providers.WatcherHandle](injector)

	printRegistrations(os.Stdout, w.Registered)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	readErr := printEvents(ctx, os.Stdout, w.Events(), w.Errors())
	stop()

	log.Debug("Shutting down")
	if report := injector.Shutdown(); !report.Succeed {
		log.Error("Shutdown error", "error", report)
	}

	if readErr != nil {
		fmt.Fprintf(os.Stderr, "minotaur: %v\n", readErr)
		os.Exit(1)
	}
}
