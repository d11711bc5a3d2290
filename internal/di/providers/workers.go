package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/giannitedesco/minotaur/internal/config"
	"github.com/giannitedesco/minotaur/internal/logger"
	"github.com/giannitedesco/minotaur/internal/metrics"
	"github.com/giannitedesco/minotaur/internal/profile"
	"github.com/giannitedesco/minotaur/internal/sse"
	"github.com/giannitedesco/minotaur/internal/watcher"
	"github.com/giannitedesco/minotaur/pkg/inotify"
)

// WatchList is everything minotaur was asked to watch: the positional
// paths with the configured mask, then the profile's entries.
type WatchList struct {
	Watches []profile.Watch
	Ignore  []string
}

// ProvideWatchList builds the watch list from the config and profile.
func ProvideWatchList(i do.Injector) (*WatchList, error) {
	cfg := do.MustInvoke[*config.Config](i)

	mask, err := cfg.WatchMask()
	if err != nil {
		return nil, fmt.Errorf("parsing mask: %w", err)
	}

	list := &WatchList{Ignore: cfg.Ignore}
	for _, path := range cfg.Paths {
		list.Watches = append(list.Watches, profile.Watch{Path: path, Mask: mask})
	}

	if cfg.Profile != "" {
		p, err := profile.Load(cfg.Profile)
		if err != nil {
			return nil, err
		}
		watches, err := p.Resolve(mask)
		if err != nil {
			return nil, err
		}
		list.Watches = append(list.Watches, watches...)
		list.Ignore = append(list.Ignore, p.Ignore...)
	}

	return list, nil
}

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Manager.Shutdown(ctx)
	h.cancel()
	return err
}

// ProvideSSEManager provides the event stream broadcaster. It observes the
// session, so it runs whether or not the HTTP server does.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.With("component", "sse"))

	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)

	return &SSEManagerHandle{Manager: manager, cancel: cancel}, nil
}

// Registration is one watch added at startup.
type Registration struct {
	Path       string
	Descriptor inotify.Descriptor
}

// WatcherHandle wraps the watcher with shutdown capability.
type WatcherHandle struct {
	*watcher.Watcher
	Registered []Registration
	cancel     context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *WatcherHandle) Shutdown() error {
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideWatcher opens the inotify session, registers the watch list and
// starts the read loop in the background.
func ProvideWatcher(i do.Injector) (*WatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	list := do.MustInvoke[*WatchList](i)
	stream := do.MustInvoke[*SSEManagerHandle](i)

	session, err := inotify.Open(cfg.SessionFlags(),
		inotify.WithLogger(log.With("component", "inotify")),
		inotify.WithObserver(inotify.MultiObserver(m, stream.Manager)),
	)
	if err != nil {
		return nil, err
	}

	w, err := watcher.New(session, log.Logger, watcher.Options{
		IgnorePatterns: list.Ignore,
		Resolve:        cfg.Fancy,
	})
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	registered := make([]Registration, 0, len(list.Watches))
	for _, watch := range list.Watches {
		d, err := w.Watch(watch.Path, watch.Mask)
		if err != nil {
			_ = w.Stop()
			return nil, err
		}
		registered = append(registered, Registration{Path: watch.Path, Descriptor: d})
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := w.Start(ctx); err != nil {
			log.WithError(err).Error("Watcher error")
		}
	}()

	log.Info("Watcher started",
		"session", session.ID(),
		"watches", len(registered),
		"sync", cfg.Sync,
	)

	return &WatcherHandle{
		Watcher:    w,
		Registered: registered,
		cancel:     cancel,
	}, nil
}
