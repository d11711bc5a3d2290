// Package di provides dependency injection configuration for minotaur.
package di

import (
	"github.com/samber/do/v2"

	"github.com/giannitedesco/minotaur/internal/config"
	"github.com/giannitedesco/minotaur/internal/di/providers"
	"github.com/giannitedesco/minotaur/internal/logger"
	"github.com/giannitedesco/minotaur/internal/metrics"
)

// NewContainer creates and configures the DI container with all providers.
// The config is parsed by the caller so that --help and --list-flags can
// exit before anything is opened.
func NewContainer(cfg *config.Config) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, cfg)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Watching
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideWatchList)
	do.Provide(injector, providers.ProvideWatcher)

	// Server
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideHTTPServer)
	do.Provide(injector, providers.ProvideAdvertiser)

	return injector
}

// Bootstrap initializes all services. It opens the session, registers
// the watch list and starts the HTTP server and mDNS advertisement if
// configured.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*logger.Logger](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*metrics.Metrics](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.WatchList](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.WatcherHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.AdvertiserHandle](injector); err != nil {
		return err
	}
	return nil
}
