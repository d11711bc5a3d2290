// Package mdns announces the watch API on the local network.
package mdns

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the mDNS service type for minotaur's HTTP API.
	ServiceType = "_minotaur._tcp"

	// APIVersion is the API version advertised in TXT records.
	APIVersion = "v1"
)

// Announcement is what gets advertised for one running session.
type Announcement struct {
	// Instance is the mDNS instance name. Empty means the hostname.
	Instance string
	Session  uuid.UUID
	Port     int
	Watches  int
}

// TXT returns the TXT records for the announcement.
func (a Announcement) TXT() []string {
	return []string{
		"session=" + a.Session.String(),
		"api=" + APIVersion,
		fmt.Sprintf("watches=%d", a.Watches),
	}
}

// Service manages the mDNS responder.
type Service struct {
	server *mdns.Server
	logger *slog.Logger
	mu     sync.Mutex
}

// NewService creates a new mDNS service.
func NewService(logger *slog.Logger) *Service {
	return &Service{
		logger: logger,
	}
}

// Start begins advertising. Calling it again replaces the running
// responder. Errors are usually environmental, e.g. no multicast route
// inside a container, and callers may treat them as non-fatal.
func (s *Service) Start(a Announcement) error {
	if a.Port <= 0 || a.Port > 65535 {
		return fmt.Errorf("invalid port %d", a.Port)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		_ = s.server.Shutdown()
		s.server = nil
	}

	instance := a.Instance
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "minotaur"
		}
		instance = host
	}

	zone, err := mdns.NewMDNSService(instance, ServiceType, "", "", a.Port, nil, a.TXT())
	if err != nil {
		return fmt.Errorf("create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: zone})
	if err != nil {
		return fmt.Errorf("start mDNS server: %w", err)
	}
	s.server = server

	s.logger.Info("mDNS advertisement started",
		"service", ServiceType,
		"instance", instance,
		"port", a.Port,
		"session", a.Session,
	)

	return nil
}

// Running reports whether a responder is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// Stop stops advertising. Safe to call multiple times or if not started.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		_ = s.server.Shutdown()
		s.server = nil
		s.logger.Info("mDNS advertisement stopped")
	}
}
