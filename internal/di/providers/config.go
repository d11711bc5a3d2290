// Package providers contains dependency injection providers for minotaur.
package providers

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/samber/do/v2"

	"github.com/giannitedesco/minotaur/internal/config"
	"github.com/giannitedesco/minotaur/internal/logger"
	"github.com/giannitedesco/minotaur/internal/metrics"
)

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	level := logger.ParseLevel(cfg.Logger.Level)
	log := logger.New(logger.Config{
		Format:    cfg.Logger.Format,
		Level:     level,
		AddSource: cfg.Logger.Level == "debug",
		NoColor:   os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stderr.Fd()),
	})

	log.Debug("Starting minotaur",
		"log_level", cfg.Logger.Level,
		"log_format", cfg.Logger.Format,
		"mask", cfg.Mask,
		"sync", cfg.Sync,
	)

	return log, nil
}

// ProvideMetrics provides the Prometheus metrics registry. It is also the
// session's observer, so it exists whether or not the HTTP server runs.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}
