package providers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/samber/do/v2"

	"github.com/giannitedesco/minotaur/internal/api"
	"github.com/giannitedesco/minotaur/internal/config"
	"github.com/giannitedesco/minotaur/internal/logger"
	"github.com/giannitedesco/minotaur/internal/mdns"
	"github.com/giannitedesco/minotaur/internal/metrics"
	"github.com/giannitedesco/minotaur/internal/ratelimit"
	"github.com/giannitedesco/minotaur/internal/sse"
)

// RateLimiterHandle wraps the keyed rate limiter with Shutdownable.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRateLimiter provides the per-client limiter for watch changes
// made over HTTP.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &RateLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateBurst),
	}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable. Server is nil when
// no listen address is configured.
type HTTPServerHandle struct {
	*http.Server
	// Addr is the bound listen address.
	ListenAddr string
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	if h.Server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the metrics and watch API server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Server.Listen == "" {
		log.Debug("HTTP server disabled")
		return &HTTPServerHandle{}, nil
	}

	m := do.MustInvoke[*metrics.Metrics](i)
	w := do.MustInvoke[*WatcherHandle](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)
	stream := do.MustInvoke[*SSEManagerHandle](i)

	handler := api.NewServer(w.Session(), log.With("component", "http"), api.Options{
		Metrics:     m.Handler(),
		Events:      sse.NewHandler(stream.Manager, log.With("component", "sse")),
		Limiter:     limiter.KeyedRateLimiter,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Event streams never go idle on their own.
	srv.RegisterOnShutdown(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = stream.Manager.Shutdown(ctx)
	})

	// Bind now so a bad address fails startup.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("HTTP server running", "addr", ln.Addr().String())

	return &HTTPServerHandle{Server: srv, ListenAddr: ln.Addr().String()}, nil
}

// AdvertiserHandle wraps the mDNS service with Shutdownable. Service is nil
// when advertising is off.
type AdvertiserHandle struct {
	*mdns.Service
}

// Shutdown implements do.Shutdownable.
func (h *AdvertiserHandle) Shutdown() error {
	if h.Service != nil {
		h.Stop()
	}
	return nil
}

// ProvideAdvertiser announces the HTTP server over mDNS. A responder that
// fails to start is logged and skipped; watching carries on without it.
func ProvideAdvertiser(i do.Injector) (*AdvertiserHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	srv := do.MustInvoke[*HTTPServerHandle](i)

	if !cfg.Server.Advertise || srv.Server == nil {
		return &AdvertiserHandle{}, nil
	}

	w := do.MustInvoke[*WatcherHandle](i)

	_, portStr, err := net.SplitHostPort(srv.ListenAddr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}

	service := mdns.NewService(log.WithField("component", "mdns").Logger)
	err = service.Start(mdns.Announcement{
		Session: w.Session().ID(),
		Port:    port,
		Watches: len(w.Registered),
	})
	if err != nil {
		log.WithError(err).Warn("mDNS advertisement unavailable")
		return &AdvertiserHandle{}, nil
	}

	return &AdvertiserHandle{Service: service}, nil
}
